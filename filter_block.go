package sstable

// filterBlockBuilder groups keys by the data block they land in — by file
// offset divided into 2^filterBaseLg-byte buckets — and emits one filter
// blob per bucket. Buckets that never receive a key get a zero-length
// filter region rather than being omitted, so every bucket index up to
// the table's final offset is addressable by the reader.
type filterBlockBuilder struct {
	policy  FilterPolicy
	baseLg  byte
	keys    [][]byte
	result  []byte
	offsets []uint32
}

func newFilterBlockBuilder(policy FilterPolicy) *filterBlockBuilder {
	return &filterBlockBuilder{policy: policy, baseLg: defaultFilterBaseLg}
}

// startBlock is called with the file offset at which a new data block is
// about to begin, rotating in as many (possibly empty) filters as needed
// to reach that offset's bucket.
func (b *filterBlockBuilder) startBlock(blockOffset uint64) {
	filterIndex := blockOffset >> b.baseLg
	for uint64(len(b.offsets)) < filterIndex {
		b.generateFilter()
	}
}

// addKey feeds a key into the filter currently being accumulated.
func (b *filterBlockBuilder) addKey(key []byte) {
	b.keys = append(b.keys, append([]byte(nil), key...))
}

func (b *filterBlockBuilder) generateFilter() {
	if len(b.keys) == 0 {
		// No keys landed in this bucket: record a zero-length filter
		// region by repeating the current result offset.
		b.offsets = append(b.offsets, uint32(len(b.result)))
		return
	}
	b.offsets = append(b.offsets, uint32(len(b.result)))
	b.result = append(b.result, b.policy.CreateFilter(b.keys)...)
	b.keys = b.keys[:0]
}

// finish flushes any pending keys into a final filter and returns the
// complete filter block payload: filter data, then the per-filter offset
// array, then the array's own offset, then baseLg.
func (b *filterBlockBuilder) finish() []byte {
	if len(b.keys) > 0 {
		b.generateFilter()
	}

	arrayOffset := uint32(len(b.result))
	out := append([]byte(nil), b.result...)
	for _, off := range b.offsets {
		out = putFixed32(out, off)
	}
	out = putFixed32(out, arrayOffset)
	out = append(out, b.baseLg)
	return out
}

// filterBlockReader consults a parsed filter block at lookup time.
type filterBlockReader struct {
	policy      FilterPolicy
	data        []byte
	arrayOffset int
	num         int
	baseLg      byte
}

func newFilterBlockReader(policy FilterPolicy, contents []byte) (*filterBlockReader, error) {
	n := len(contents)
	if n < 5 {
		return nil, corruptf("filter block: too small (%d bytes)", n)
	}
	baseLg := contents[n-1]
	arrayOffset := fixed32(contents[n-5 : n-1])
	if int(arrayOffset) > n-5 {
		return nil, corruptf("filter block: array offset %d exceeds data length %d", arrayOffset, n-5)
	}
	num := (n - 5 - int(arrayOffset)) / 4
	return &filterBlockReader{
		policy:      policy,
		data:        contents,
		arrayOffset: int(arrayOffset),
		num:         num,
		baseLg:      baseLg,
	}, nil
}

// keyMayMatch reports whether key might be present among the keys fed
// into the bucket covering blockOffset. It fails open (returns true) on
// any out-of-range or malformed index, per spec.md's "no false negatives"
// contract: failing to filter is always safe, filtering incorrectly is
// not.
func (r *filterBlockReader) keyMayMatch(blockOffset uint64, key []byte) bool {
	if r == nil || r.policy == nil {
		return true
	}
	index := blockOffset >> r.baseLg
	if int(index) >= r.num {
		return true
	}

	start := fixed32(r.data[r.arrayOffset+int(index)*4:])
	var limit uint32
	if int(index)+1 < r.num {
		limit = fixed32(r.data[r.arrayOffset+(int(index)+1)*4:])
	} else {
		limit = uint32(r.arrayOffset)
	}
	if start > limit || int(limit) > r.arrayOffset {
		return true
	}

	return r.policy.KeyMayMatch(key, r.data[start:limit])
}
