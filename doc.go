/*
Package sstable is an immutable, ordered, on-disk key/value store in the
LevelDB table lineage. A table is built once, in ascending key order, by
a Builder, and afterwards opened for point lookups and ordered
iteration by any number of Readers.

Data Structure Documentation

Table

A table is a series of data blocks, an optional filter block, a
meta-index block, an index block, and a fixed-size footer.

    Table layout:
    +-----------+-------+-----------+--------+-------------+-------+--------+
    | data blk1 |  ...  | data blkN | filter | meta-index  | index | footer |
    +-----------+-------+-----------+--------+-------------+-------+--------+

    Footer (48 bytes):
    +--------------------------+----------------------+------------------+
    | meta-index handle (var)  |   index handle (var) |  magic (8 bytes) |
    +--------------------------+----------------------+------------------+

    meta-index and index handles are varint-encoded (offset, size) pairs,
    zero-padded to 40 bytes combined so the footer is a fixed size
    regardless of how large the offsets get.

Block

Every block (data, filter, meta-index, index) is followed by the same
5-byte trailer: a one-byte compression type and a masked CRC32C over the
block payload plus that type byte.

    Block + trailer:
    +----------------+------------------------+---------------------------+
    |  block payload  | compression type (1B) | masked CRC32C (4B, LE)    |
    +----------------+------------------------+---------------------------+

Data block / index block / meta-index block

Data, index, and meta-index blocks share one format: a sequence of
entries with shared-prefix compression against the most recent "restart
point", followed by an array of restart offsets so a reader can binary
search without decoding from the start of the block.

    Block payload:
    +----------+-------+----------+----------------+----------------+------------------------+
    | entry 1  |  ...  | entry n  | restart 1 (4B) |  ... restart m | num restarts (4B)      |
    +----------+-------+----------+----------------+----------------+------------------------+

    Entry:
    +------------------+---------------------+-----------------+----------------+-------------+
    | shared len (var) | non-shared len (var)| value len (var) | key suffix     | value bytes |
    +------------------+---------------------+-----------------+----------------+-------------+

An index block entry's value is a BlockHandle pointing at a data block;
its key is the shortest separator >= the data block's last key and <
the following block's first key. A meta-index block entry's value is a
BlockHandle too, keyed by a human-readable name ("filter."+policy name).

Filter block

The filter block partitions keys by which 2KiB-aligned region of the
file their data block starts in, and stores one filter per region, so a
lookup only has to consult the filter covering the data block it would
otherwise have to read.

    Filter block payload:
    +-----------+-------+-----------+-------------------+-------+---------------------+------------------------+--------+
    | filter 1  |  ...  | filter k  | filter 1 off (4B) |  ...  | filter k off (4B)   | offset array off (4B) | baseLg |
    +-----------+-------+-----------+-------------------+-------+---------------------+------------------------+--------+
*/
package sstable
