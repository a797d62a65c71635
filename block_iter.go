package sstable

// blockIter reads a single decoded block payload (the restart-indexed,
// prefix-compressed format produced by blockWriter) and iterates over its
// entries forward or backward.
//
// It is deliberately a plain state machine — no stack-unwinding control
// flow — so it composes cleanly as the inner half of a two-level
// iterator (see table_reader.go).
type blockIter struct {
	cmp Comparator

	data           []byte // full block payload, including restart array + count
	restartsOffset int    // byte offset, within data, of the restart array
	numRestarts    int

	// current entry, valid only when valid == true
	valid    bool
	offset   int // byte offset of the current entry within data
	nextOff  int // byte offset immediately after the current entry
	restartI int // index of the restart at-or-before the current entry
	key      []byte
	value    []byte

	corrupt bool
}

// newBlockIter parses contents (a data block, index block, or meta-index
// block payload) for iteration. It does not fully validate the block;
// malformed restart metadata surfaces as a Corruption error only once an
// operation is attempted, matching spec.md's "skip bad blocks, don't
// panic" policy at the call sites that use it.
func newBlockIter(cmp Comparator, contents []byte) (*blockIter, error) {
	n := len(contents)
	if n < 4 {
		return nil, corruptf("block: too small to contain a restart count (%d bytes)", n)
	}
	numRestarts := int(fixed32(contents[n-4:]))
	restartsOffset := n - 4 - numRestarts*4
	if numRestarts < 0 || restartsOffset < 0 {
		return nil, corruptf("block: invalid restart count %d for %d-byte block", numRestarts, n)
	}
	return &blockIter{
		cmp:            cmp,
		data:           contents,
		restartsOffset: restartsOffset,
		numRestarts:    numRestarts,
	}, nil
}

func (it *blockIter) Valid() bool { return it.valid && !it.corrupt }

func (it *blockIter) Key() []byte   { return it.key }
func (it *blockIter) Value() []byte { return it.value }

// restartPoint returns the byte offset of the i-th restart entry.
func (it *blockIter) restartPoint(i int) int {
	return int(fixed32(it.data[it.restartsOffset+i*4:]))
}

func (it *blockIter) invalidate() {
	it.valid = false
	it.key = nil
	it.value = nil
}

// parseEntryAt decodes the entry starting at offset, given prevKey as the
// basis for shared-prefix reconstruction. It returns the reconstructed
// key, the value slice, and the offset immediately following the entry.
func (it *blockIter) parseEntryAt(offset int, prevKey []byte) (key, value []byte, next int, err error) {
	if offset > it.restartsOffset {
		return nil, nil, 0, corruptf("block: entry offset %d lies past the entries region (%d bytes)", offset, it.restartsOffset)
	}
	p := it.data[offset:it.restartsOffset]

	shared, n1, ok := getUvarint(p)
	if !ok {
		return nil, nil, 0, corruptf("block: truncated varint (shared) at offset %d", offset)
	}
	p = p[n1:]

	nonShared, n2, ok := getUvarint(p)
	if !ok {
		return nil, nil, 0, corruptf("block: truncated varint (non_shared) at offset %d", offset)
	}
	p = p[n2:]

	valueLen, n3, ok := getUvarint(p)
	if !ok {
		return nil, nil, 0, corruptf("block: truncated varint (value_len) at offset %d", offset)
	}
	p = p[n3:]

	if shared > uint64(len(prevKey)) {
		return nil, nil, 0, corruptf("block: shared prefix %d exceeds previous key length %d", shared, len(prevKey))
	}
	if nonShared > uint64(len(p)) || valueLen > uint64(len(p))-nonShared {
		return nil, nil, 0, corruptf("block: entry at offset %d runs past end of block", offset)
	}

	key = make([]byte, shared+nonShared)
	copy(key, prevKey[:shared])
	copy(key[shared:], p[:nonShared])
	value = p[nonShared : nonShared+valueLen]

	headerLen := n1 + n2 + n3
	next = offset + headerLen + int(nonShared) + int(valueLen)
	return key, value, next, nil
}

func (it *blockIter) seekToRestartPoint(i int) {
	it.invalidate()
	it.restartI = i
	it.offset = it.restartPoint(i)
	it.nextOff = it.offset
}

func (it *blockIter) SeekToFirst() {
	if it.numRestarts == 0 {
		it.invalidate()
		return
	}
	it.seekToRestartPoint(0)
	it.Next()
}

// SeekToLast positions the iterator at the block's final entry by
// scanning forward from the last restart point to the end of the block.
func (it *blockIter) SeekToLast() {
	if it.numRestarts == 0 {
		it.invalidate()
		return
	}
	it.seekToRestartPoint(it.numRestarts - 1)

	var key, value []byte
	found := false
	for it.nextOff < it.restartsOffset {
		off := it.nextOff
		k, v, next, err := it.parseEntryAt(off, key)
		if err != nil {
			it.corrupt = true
			it.invalidate()
			return
		}
		key, value = k, v
		it.offset = off
		it.nextOff = next
		found = true
	}

	it.key, it.value = key, value
	it.valid = found
}

// Next decodes and moves to the entry immediately following the current
// one. It returns false when the block is exhausted or corrupt.
func (it *blockIter) Next() bool {
	if it.corrupt {
		return false
	}
	if it.nextOff >= it.restartsOffset {
		it.invalidate()
		return false
	}

	off := it.nextOff
	key, value, next, err := it.parseEntryAt(off, it.key)
	if err != nil {
		it.corrupt = true
		it.invalidate()
		return false
	}

	// Track which restart interval we're in so Prev can resume a
	// backward scan from the right anchor.
	for it.restartI+1 < it.numRestarts && it.restartPoint(it.restartI+1) <= off {
		it.restartI++
	}

	it.offset = off
	it.nextOff = next
	it.key = key
	it.value = value
	it.valid = true
	return true
}

// Prev moves to the entry immediately preceding the current one, by
// restarting from the nearest restart point at or before the current
// entry and scanning forward. This is O(restartInterval) amortized.
func (it *blockIter) Prev() bool {
	if it.corrupt || !it.valid {
		return false
	}
	original := it.offset

	for it.restartPoint(it.restartI) >= original {
		if it.restartI == 0 {
			it.invalidate()
			return false
		}
		it.restartI--
	}

	it.seekToRestartPoint(it.restartI)
	var prevOffset, prevNext int
	var prevKey, prevValue []byte
	for {
		off := it.nextOff
		key, value, next, err := it.parseEntryAt(off, it.key)
		if err != nil {
			it.corrupt = true
			it.invalidate()
			return false
		}
		prevOffset, prevNext, prevKey, prevValue = off, next, key, value
		it.key, it.value = key, value
		it.nextOff = next
		if next >= original {
			break
		}
	}

	it.offset = prevOffset
	it.nextOff = prevNext
	it.key = prevKey
	it.value = prevValue
	it.valid = true
	return true
}

// Seek positions the iterator at the first entry whose key is >= target,
// or invalidates it if no such entry exists.
func (it *blockIter) Seek(target []byte) bool {
	if it.numRestarts == 0 {
		it.invalidate()
		return false
	}

	// Binary search the restart array for the last restart whose key is
	// <= target.
	lo, hi := 0, it.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		key, _, _, err := it.parseEntryAt(it.restartPoint(mid), nil)
		if err != nil {
			it.corrupt = true
			it.invalidate()
			return false
		}
		if it.cmp.Compare(key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	it.seekToRestartPoint(lo)
	for it.Next() {
		if it.cmp.Compare(it.key, target) >= 0 {
			return true
		}
	}
	return false
}
