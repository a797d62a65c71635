package sstable

import "encoding/binary"

// putFixed32 appends a little-endian uint32 to dst.
func putFixed32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// fixed32 decodes a little-endian uint32 from the start of b.
func fixed32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// putFixed64 appends a little-endian uint64 to dst.
func putFixed64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// fixed64 decodes a little-endian uint64 from the start of b.
func fixed64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// putUvarint appends a LEB128 varint to dst and returns the result.
func putUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// getUvarint decodes a varint from the start of b, returning the value,
// the number of bytes consumed (0 on failure) and whether decoding
// succeeded.
func getUvarint(b []byte) (v uint64, n int, ok bool) {
	v, n = binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, false
	}
	return v, n, true
}

// sharedPrefixLen returns the length of the longest common prefix of a
// and b.
func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
