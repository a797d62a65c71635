package sstable

import "go.uber.org/zap"

// Compression identifies the block compression codec a Builder uses. These
// values are not written to disk: each block's trailer records one of the
// compressionType bytes below instead.
type Compression byte

// Recognized compression codecs. The zero value selects Snappy.
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c <= unknownCompression
}

func (c Compression) String() string {
	switch c {
	case SnappyCompression:
		return "snappy"
	case NoCompression:
		return "none"
	default:
		return "unknown"
	}
}

// On-disk compression type bytes, per the block trailer format.
const (
	compressionTypeNone   byte = 0
	compressionTypeSnappy byte = 1
)

const (
	defaultBlockSize            = 4 << 10
	defaultBlockRestartInterval = 16
	defaultFilterBaseLg         = 11 // 2 KiB groups
)

// Options configure a table Builder or Reader. A zero Options is valid;
// every field defaults sensibly via norm().
type Options struct {
	// BlockSize is the soft threshold, in bytes, at which a pending data
	// block is flushed. Default 4 KiB.
	BlockSize int

	// BlockRestartInterval is the number of entries between restart
	// points within a data block. Default 16.
	BlockRestartInterval int

	// Compression selects the block compression codec. Default
	// SnappyCompression.
	Compression Compression

	// FilterPolicy, if set, causes a filter block to be built and
	// consulted. Default: none (no filter block).
	FilterPolicy FilterPolicy

	// Comparator orders keys. Readers must use the same comparator the
	// table was built with. Default: DefaultComparator (lexicographic).
	Comparator Comparator

	// BlockCache, if set, is consulted and populated for data block
	// reads. Shared across readers of the same or different tables. If
	// nil and BlockCacheCapacityBytes > 0, a private cache is created
	// for this Reader alone.
	BlockCache *BlockCache

	// BlockCacheCapacityBytes bounds a private per-reader cache when
	// BlockCache is nil. Default: 8 MiB.
	BlockCacheCapacityBytes int64

	// Logger receives structured diagnostics, notably corruption events
	// recovered locally during iteration. Default: a no-op logger.
	Logger *zap.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = defaultBlockSize
	}
	if oo.BlockRestartInterval < 1 {
		oo.BlockRestartInterval = defaultBlockRestartInterval
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}
	if oo.Comparator == nil {
		oo.Comparator = DefaultComparator
	}
	if oo.BlockCacheCapacityBytes <= 0 {
		oo.BlockCacheCapacityBytes = 8 << 20
	}
	if oo.Logger == nil {
		oo.Logger = zap.NewNop()
	}
	return &oo
}
