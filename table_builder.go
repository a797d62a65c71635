package sstable

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"go.uber.org/zap"
)

// Builder streams a sorted sequence of key/value pairs into a new table.
// It is strictly single-owner: one Builder per table, no concurrent
// calls. Add must be called with strictly ascending keys; Finish must be
// called exactly once, after which the Builder is unusable.
type Builder struct {
	sink io.Writer
	opts *Options

	cmp          Comparator
	filterPolicy FilterPolicy

	offset     uint64
	numEntries int
	closed     bool

	dataBlock      *blockWriter
	indexBlock     *blockWriter
	metaIndexBlock *blockWriter
	filterBuilder  *filterBlockBuilder

	lastKey           []byte
	prevBlockLastKey  []byte
	pendingIndexEntry bool
	pendingHandle     blockHandle

	compressedBuf []byte
	logger        *zap.Logger
}

// NewBuilder wraps sink (a sequential byte sink with no seek requirement)
// and returns a Builder ready to accept entries.
func NewBuilder(sink io.Writer, opts *Options) *Builder {
	o := opts.norm()
	b := &Builder{
		sink:           sink,
		opts:           o,
		cmp:            o.Comparator,
		filterPolicy:   o.FilterPolicy,
		dataBlock:      newBlockWriter(o.BlockRestartInterval),
		indexBlock:     newBlockWriter(o.BlockRestartInterval),
		metaIndexBlock: newBlockWriter(o.BlockRestartInterval),
		logger:         o.Logger,
	}
	if o.FilterPolicy != nil {
		b.filterBuilder = newFilterBlockBuilder(o.FilterPolicy)
	}
	return b
}

// EstimatedSize returns the approximate number of bytes that would be
// written if Finish were called right now: everything flushed so far
// plus the pending data block.
func (b *Builder) EstimatedSize() int {
	return int(b.offset) + b.dataBlock.sizeEstimate()
}

// Entries returns how many key/value pairs have been added.
func (b *Builder) Entries() int { return b.numEntries }

// Add appends a key/value pair. key must be strictly greater, under the
// configured Comparator, than the key of the previous Add call.
func (b *Builder) Add(key, value []byte) error {
	if b.closed {
		return newError(InvalidArgument, "Add called after Finish")
	}
	if b.numEntries > 0 && b.cmp.Compare(b.lastKey, key) >= 0 {
		return newError(InvalidArgument, "out-of-order or duplicate key %q (previous %q)", key, b.lastKey)
	}

	if b.pendingIndexEntry {
		sep := b.cmp.FindShortestSeparator(b.prevBlockLastKey, key)
		b.indexBlock.add(sep, b.pendingHandle.encode(nil))
		b.pendingIndexEntry = false
	}

	if b.filterBuilder != nil {
		b.filterBuilder.startBlock(b.offset)
		b.filterBuilder.addKey(key)
	}

	b.dataBlock.add(key, value)
	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++

	if b.dataBlock.sizeEstimate() >= b.opts.BlockSize {
		return b.flushBlock()
	}
	return nil
}

// flushBlock finalizes the pending data block, writes it to the sink, and
// leaves its index entry pending (it is appended lazily: either at the
// start of the next Add, once the next block's first key is known, or in
// Finish, via FindShortSuccessor).
func (b *Builder) flushBlock() error {
	contents := b.dataBlock.finish()
	handle, err := b.writeBlock(contents, true)
	if err != nil {
		return err
	}

	b.prevBlockLastKey = append(b.prevBlockLastKey[:0], b.dataBlock.lastKeyBytes()...)
	b.pendingHandle = handle
	b.pendingIndexEntry = true
	b.dataBlock.reset()

	b.logger.Debug("sstable: flushed data block",
		zap.Uint64("offset", handle.offset), zap.Uint64("size", handle.size))
	return nil
}

// writeBlock encodes contents as a full on-disk block (optionally
// compressing it, per allowCompression and the configured codec), writes
// it to the sink, and returns its handle.
func (b *Builder) writeBlock(contents []byte, allowCompression bool) (blockHandle, error) {
	payload := contents
	ctype := compressionTypeNone

	if allowCompression && b.opts.Compression == SnappyCompression {
		b.compressedBuf = snappy.Encode(b.compressedBuf[:cap(b.compressedBuf)], contents)
		// Skip compression if it didn't buy much: spec-mandated
		// threshold is 0.875 * raw size (i.e. at least 12.5% smaller).
		threshold := len(contents) - len(contents)/8
		if len(b.compressedBuf) < threshold {
			payload = b.compressedBuf
			ctype = compressionTypeSnappy
		}
	}

	handle := blockHandle{offset: b.offset, size: uint64(len(payload))}
	sum := blockChecksum(payload, ctype)

	if _, err := b.sink.Write(payload); err != nil {
		return blockHandle{}, wrapIOErr(err, "writing block payload")
	}
	var trailer [blockTrailerLen]byte
	trailer[0] = ctype
	binary.LittleEndian.PutUint32(trailer[1:], sum)
	if _, err := b.sink.Write(trailer[:]); err != nil {
		return blockHandle{}, wrapIOErr(err, "writing block trailer")
	}

	b.offset += uint64(len(payload)) + blockTrailerLen
	return handle, nil
}

// Finish flushes any pending data, then writes the filter block, the
// meta-index block, the index block and the footer, in that order. The
// Builder must not be used afterwards.
func (b *Builder) Finish() error {
	if b.closed {
		return newError(InvalidArgument, "Finish called more than once")
	}
	b.closed = true

	if b.dataBlock.entries() > 0 {
		if err := b.flushBlock(); err != nil {
			return err
		}
	}
	if b.pendingIndexEntry {
		succ := b.cmp.FindShortSuccessor(b.prevBlockLastKey)
		b.indexBlock.add(succ, b.pendingHandle.encode(nil))
		b.pendingIndexEntry = false
	}

	var filterHandle blockHandle
	if b.filterBuilder != nil {
		filterContents := b.filterBuilder.finish()
		h, err := b.writeBlock(filterContents, false) // filter block stays uncompressed
		if err != nil {
			return err
		}
		filterHandle = h
		b.metaIndexBlock.add([]byte(metaIndexFilterKey(b.filterPolicy)), filterHandle.encode(nil))

		b.logger.Debug("sstable: wrote filter block",
			zap.Uint64("offset", filterHandle.offset), zap.Uint64("size", filterHandle.size))
	}

	metaIndexContents := b.metaIndexBlock.finish()
	metaIndexHandle, err := b.writeBlock(metaIndexContents, true)
	if err != nil {
		return err
	}

	indexContents := b.indexBlock.finish()
	indexHandle, err := b.writeBlock(indexContents, true)
	if err != nil {
		return err
	}

	footer := encodeFooter(metaIndexHandle, indexHandle)
	if _, err := b.sink.Write(footer); err != nil {
		return wrapIOErr(err, "writing footer")
	}
	b.offset += uint64(len(footer))

	if f, ok := b.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return wrapIOErr(err, "flushing sink")
		}
	}
	return nil
}

// flusher is satisfied by sinks that buffer writes (e.g. *bufio.Writer).
// It is entirely optional: Builder only calls Flush via type assertion,
// never requiring it.
type flusher interface {
	Flush() error
}
