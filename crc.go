package sstable

import "hash/crc32"

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is added, after a bit rotation, to a raw CRC32C value to avoid
// the trivial identity property of storing a checksum of data that itself
// contains bytes resembling a CRC (per the standard LevelDB/Snappy
// convention).
const maskDelta uint32 = 0xa282ead8

// maskCRC32C rotates c right by 15 bits (i.e. rotates the 32-bit value so
// the low 15 bits move to the top) and adds maskDelta.
func maskCRC32C(c uint32) uint32 {
	return ((c >> 15) | (c << 17)) + maskDelta
}

// unmaskCRC32C reverses maskCRC32C.
func unmaskCRC32C(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// checksum computes the masked CRC32C of data.
func checksum(data []byte) uint32 {
	return maskCRC32C(crc32.Checksum(data, castagnoliTable))
}

// blockChecksum computes the masked CRC32C of payload followed by the
// single compression-type byte, without allocating a combined buffer.
func blockChecksum(payload []byte, compressionType byte) uint32 {
	c := crc32.Update(0, castagnoliTable, payload)
	c = crc32.Update(c, castagnoliTable, []byte{compressionType})
	return maskCRC32C(c)
}
