package sstable

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang/snappy"
	"go.uber.org/zap"
)

// Source is the random-access byte source a Reader opens: a length plus
// positioned reads. It is satisfied by *os.File and similar handles.
type Source interface {
	io.ReaderAt
	Size() int64
}

// NewSource adapts an io.ReaderAt of a known size into a Source.
func NewSource(r io.ReaderAt, size int64) Source {
	return readerAtSource{r, size}
}

type readerAtSource struct {
	io.ReaderAt
	size int64
}

func (s readerAtSource) Size() int64 { return s.size }

// Properties is a read-only snapshot of table metadata, useful for
// introspection and tooling.
type Properties struct {
	NumDataBlocks int
	IndexSize     int64
	FilterSize    int64
	FilterName    string
}

// Reader opens a finalized table for point lookups and ordered
// iteration. A Reader is safe for concurrent use: Get and NewIterator may
// be called from multiple goroutines simultaneously, provided the
// underlying Source tolerates concurrent positioned reads (true for
// *os.File and any Source backed by one).
type Reader struct {
	src     Source
	opts    *Options
	cmp     Comparator
	tableID uint64

	cache    *BlockCache
	ownCache bool

	indexContents []byte
	filter        *filterBlockReader

	metaIndexHandle blockHandle
	indexHandle     blockHandle

	props Properties

	corruptionCount uint64
	logger          *zap.Logger

	closed bool
}

// Open parses the footer, index block, meta-index block, and (if
// configured) filter block of src, returning a ready-to-use Reader.
// Footer or index/meta-index corruption is fatal; Open returns an error
// and no Reader. Per-block corruption discovered later, during Get or
// iteration, is instead recovered locally (see Get and Iterator).
func Open(src Source, opts *Options) (*Reader, error) {
	o := opts.norm()

	size := src.Size()
	if size < footerLen {
		return nil, corruptf("table: file of %d bytes too small to contain a footer", size)
	}

	var footerBuf [footerLen]byte
	if _, err := src.ReadAt(footerBuf[:], size-footerLen); err != nil {
		return nil, wrapIOErr(err, "reading footer")
	}
	metaHandle, indexHandle, err := decodeFooter(footerBuf[:])
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:             src,
		opts:            o,
		cmp:             o.Comparator,
		tableID:         newTableID(),
		logger:          o.Logger,
		metaIndexHandle: metaHandle,
		indexHandle:     indexHandle,
	}

	if o.BlockCache != nil {
		r.cache = o.BlockCache
	} else if o.BlockCacheCapacityBytes > 0 {
		r.cache = NewBlockCache(o.BlockCacheCapacityBytes)
		r.ownCache = true
	}

	indexContents, err := r.readRawBlock(indexHandle)
	if err != nil {
		return nil, err
	}
	if _, err := newBlockIter(r.cmp, indexContents); err != nil {
		return nil, err
	}
	r.indexContents = indexContents
	r.props.IndexSize = int64(len(indexContents))

	metaContents, err := r.readRawBlock(metaHandle)
	if err != nil {
		return nil, err
	}

	if o.FilterPolicy != nil {
		r.loadFilter(o.FilterPolicy, metaContents)
	}

	count := 0
	ci, _ := newBlockIter(r.cmp, indexContents)
	for ci.SeekToFirst(); ci.Valid(); ci.Next() {
		count++
	}
	r.props.NumDataBlocks = count

	return r, nil
}

// loadFilter looks up "filter.<policy.Name()>" in the parsed meta-index
// block and, if present and well-formed, loads the filter block. A
// missing or malformed filter is not fatal: lookups simply fall back to
// always consulting the data block directly.
func (r *Reader) loadFilter(policy FilterPolicy, metaContents []byte) {
	// Meta-index keys are plain ASCII names written in bytewise order
	// regardless of the table's own comparator.
	metaIter, err := newBlockIter(DefaultComparator, metaContents)
	if err != nil {
		r.logger.Warn("sstable: meta-index block malformed, filter disabled", zap.Error(err))
		return
	}

	name := []byte(metaIndexFilterKey(policy))
	if !metaIter.Seek(name) || !bytes.Equal(metaIter.Key(), name) {
		return
	}

	handle, _, err := decodeBlockHandle(metaIter.Value())
	if err != nil {
		r.logger.Warn("sstable: meta-index filter handle malformed", zap.Error(err))
		return
	}

	filterContents, err := r.readRawBlock(handle)
	if err != nil {
		r.logger.Warn("sstable: filter block unreadable, disabling filter", zap.Error(err))
		return
	}

	fr, err := newFilterBlockReader(policy, filterContents)
	if err != nil {
		r.logger.Warn("sstable: filter block malformed, disabling filter", zap.Error(err))
		return
	}

	r.filter = fr
	r.props.FilterSize = int64(len(filterContents))
	r.props.FilterName = policy.Name()
}

// Properties returns a snapshot of this table's metadata.
func (r *Reader) Properties() Properties { return r.props }

// CorruptionCount returns the number of blocks skipped so far due to
// local corruption (bad checksum, malformed encoding, failed
// decompression).
func (r *Reader) CorruptionCount() uint64 { return atomic.LoadUint64(&r.corruptionCount) }

func (r *Reader) reportCorruption(err error) {
	atomic.AddUint64(&r.corruptionCount, 1)
	r.logger.Warn("sstable: skipping corrupt block", zap.Error(err))
}

// Close releases this Reader's private block cache, if it allocated one.
// A BlockCache passed in via Options.BlockCache is shared and is left
// untouched; its owner is responsible for it.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.ownCache {
		r.cache.evictTable(r.tableID)
	}
	return nil
}

// readRawBlock reads, checksum-verifies, and decompresses the block at
// handle, without consulting the block cache. Used for the index,
// meta-index, and filter blocks, which the Reader holds directly for its
// entire lifetime rather than caching.
func (r *Reader) readRawBlock(handle blockHandle) ([]byte, error) {
	buf := make([]byte, handle.size+blockTrailerLen)
	if _, err := r.src.ReadAt(buf, int64(handle.offset)); err != nil {
		return nil, wrapIOErr(err, fmt.Sprintf("reading block at offset %d", handle.offset))
	}

	payload := buf[:handle.size]
	ctype := buf[handle.size]
	wantSum := fixed32(buf[handle.size+1:])
	if gotSum := blockChecksum(payload, ctype); gotSum != wantSum {
		return nil, corruptf("block at offset %d: checksum mismatch (want %#x, got %#x)", handle.offset, wantSum, gotSum)
	}

	switch ctype {
	case compressionTypeNone:
		return payload, nil
	case compressionTypeSnappy:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, corruptf("block at offset %d: invalid snappy length: %v", handle.offset, err)
		}
		out, err := snappy.Decode(make([]byte, n), payload)
		if err != nil {
			return nil, corruptf("block at offset %d: snappy decode failed: %v", handle.offset, err)
		}
		return out, nil
	default:
		return nil, &Error{Kind: Unsupported, Err: fmt.Errorf("block at offset %d: unknown compression type %d", handle.offset, ctype)}
	}
}

// getDataBlock reads a data block, consulting and populating the block
// cache (if any) keyed by this Reader's table id and the block's offset.
func (r *Reader) getDataBlock(handle blockHandle) ([]byte, error) {
	if r.cache != nil {
		if block, ok := r.cache.get(r.tableID, handle.offset); ok {
			return block, nil
		}
	}
	block, err := r.readRawBlock(handle)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.insert(r.tableID, handle.offset, block)
	}
	return block, nil
}

// dataBlockIterAt decodes a BlockHandle from an index/meta entry's value
// and returns a fresh iterator over the data block it locates.
func (r *Reader) dataBlockIterAt(encodedHandle []byte) (*blockIter, error) {
	handle, _, err := decodeBlockHandle(encodedHandle)
	if err != nil {
		return nil, err
	}
	block, err := r.getDataBlock(handle)
	if err != nil {
		return nil, err
	}
	return newBlockIter(r.cmp, block)
}

// Get looks up key, returning its value or ErrNotFound. A block that
// fails its checksum, fails to decompress, or is otherwise malformed is
// treated exactly like a missing key: the corruption is logged and
// counted, and ErrNotFound is returned, per the documented "skip bad
// blocks" policy.
func (r *Reader) Get(key []byte) ([]byte, error) {
	idx, err := newBlockIter(r.cmp, r.indexContents)
	if err != nil {
		return nil, err
	}
	if !idx.Seek(key) {
		return nil, ErrNotFound
	}

	handle, _, err := decodeBlockHandle(idx.Value())
	if err != nil {
		r.reportCorruption(err)
		return nil, ErrNotFound
	}

	if r.filter != nil && !r.filter.keyMayMatch(handle.offset, key) {
		return nil, ErrNotFound
	}

	bi, err := r.dataBlockIterAt(idx.Value())
	if err != nil {
		r.reportCorruption(err)
		return nil, ErrNotFound
	}
	if !bi.Seek(key) {
		return nil, ErrNotFound
	}
	if r.cmp.Compare(bi.Key(), key) != 0 {
		return nil, ErrNotFound
	}
	return append([]byte(nil), bi.Value()...), nil
}

// NewIterator returns a fresh, independently positioned iterator over
// the whole table. Multiple iterators may be live concurrently; each
// borrows from this Reader and must not be used after the Reader is
// closed.
func (r *Reader) NewIterator() *Iterator {
	outer, _ := newBlockIter(r.cmp, r.indexContents) // validated once at Open
	return &Iterator{r: r, outer: outer}
}

// Iterator is a two-level iterator: an outer index iterator composed
// with a lazily-loaded inner data-block iterator. It implements
// Seek/Next/Prev with the same corruption-skipping behavior as Get.
type Iterator struct {
	r     *Reader
	outer *blockIter
	inner *blockIter
}

// Valid reports whether the iterator is currently positioned at an
// entry.
func (it *Iterator) Valid() bool { return it.inner != nil && it.inner.Valid() }

// Key returns the current entry's key. Valid must be true.
func (it *Iterator) Key() []byte { return it.inner.Key() }

// Value returns the current entry's value. Valid must be true. The
// returned slice is borrowed and must be copied to outlive the next
// cursor move.
func (it *Iterator) Value() []byte { return it.inner.Value() }

func (it *Iterator) loadCurrentOuter() bool {
	bi, err := it.r.dataBlockIterAt(it.outer.Value())
	if err != nil {
		it.r.reportCorruption(err)
		it.inner = nil
		return false
	}
	it.inner = bi
	return true
}

// scanForward loads and positions the inner iterator starting at the
// outer iterator's current position, advancing outer forward (skipping
// and reporting corrupt or unexpectedly empty blocks) until position
// yields a valid entry or outer is exhausted.
func (it *Iterator) scanForward(position func(*blockIter)) {
	for it.outer.Valid() {
		if it.loadCurrentOuter() {
			position(it.inner)
			if it.inner.Valid() {
				return
			}
			it.r.reportCorruption(corruptf("data block at index offset yielded no matching entry"))
		}
		if !it.outer.Next() {
			break
		}
	}
	it.inner = nil
}

// scanBackward is scanForward's mirror image, used by Prev/SeekToLast.
func (it *Iterator) scanBackward(position func(*blockIter)) {
	for it.outer.Valid() {
		if it.loadCurrentOuter() {
			position(it.inner)
			if it.inner.Valid() {
				return
			}
			it.r.reportCorruption(corruptf("data block at index offset yielded no matching entry"))
		}
		if !it.outer.Prev() {
			break
		}
	}
	it.inner = nil
}

// SeekToFirst positions the iterator at the table's first entry.
func (it *Iterator) SeekToFirst() {
	it.outer.SeekToFirst()
	it.scanForward(func(bi *blockIter) { bi.SeekToFirst() })
}

// SeekToLast positions the iterator at the table's last entry.
func (it *Iterator) SeekToLast() {
	it.outer.SeekToLast()
	it.scanBackward(func(bi *blockIter) { bi.SeekToLast() })
}

// Seek positions the iterator at the first entry with key >= target, or
// invalidates it if no such entry exists.
func (it *Iterator) Seek(target []byte) {
	if !it.outer.Seek(target) {
		it.inner = nil
		return
	}
	if !it.loadCurrentOuter() {
		// This outer block was corrupt; resume the ordinary
		// forward skip-scan from the next index entry.
		if !it.outer.Next() {
			it.inner = nil
			return
		}
		it.scanForward(func(bi *blockIter) { bi.SeekToFirst() })
		return
	}

	it.inner.Seek(target)
	if it.inner.Valid() {
		return
	}
	// target falls after every key in this block; the next block's
	// keys are all > this block's index separator, which is itself
	// >= target, so its first entry is the answer.
	if !it.outer.Next() {
		it.inner = nil
		return
	}
	it.scanForward(func(bi *blockIter) { bi.SeekToFirst() })
}

// Next advances to the next entry in ascending key order, returning
// false once the table is exhausted.
func (it *Iterator) Next() bool {
	if it.inner == nil {
		return false
	}
	if it.inner.Next() {
		return true
	}
	if !it.outer.Next() {
		it.inner = nil
		return false
	}
	it.scanForward(func(bi *blockIter) { bi.SeekToFirst() })
	return it.Valid()
}

// Prev moves to the previous entry in descending key order, returning
// false once the beginning of the table is reached.
func (it *Iterator) Prev() bool {
	if it.inner == nil {
		return false
	}
	if it.inner.Prev() {
		return true
	}
	if !it.outer.Prev() {
		it.inner = nil
		return false
	}
	it.scanBackward(func(bi *blockIter) { bi.SeekToLast() })
	return it.Valid()
}
