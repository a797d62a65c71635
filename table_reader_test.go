package sstable_test

import (
	"bytes"
	"fmt"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	const n = 1000

	It("round-trips 1,000 keys: every Get and both iteration directions", func() {
		data, err := buildTable(n, nil)
		Expect(err).NotTo(HaveOccurred())

		r, err := openTable(data, nil)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		for i := 0; i < n; i++ {
			key := fmt.Sprintf("key%05d", i)
			v, err := r.Get([]byte(key))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal([]byte(fmt.Sprintf("val%d", i*2))))
		}

		_, err = r.Get([]byte("key99999"))
		Expect(err).To(MatchError(sstable.ErrNotFound))
		_, err = r.Get([]byte("aaaaaaaa"))
		Expect(err).To(MatchError(sstable.ErrNotFound))

		it := r.NewIterator()
		i := 0
		for it.SeekToFirst(); it.Valid(); it.Next() {
			Expect(it.Key()).To(Equal([]byte(fmt.Sprintf("key%05d", i))))
			i++
		}
		Expect(i).To(Equal(n))

		i = n - 1
		for it.SeekToLast(); it.Valid(); it.Prev() {
			Expect(it.Key()).To(Equal([]byte(fmt.Sprintf("key%05d", i))))
			i--
		}
		Expect(i).To(Equal(-1))
	})

	It("seeks to the first key at or after a target, across block boundaries", func() {
		opts := &sstable.Options{BlockSize: 64, Compression: sstable.NoCompression}
		data, err := buildTable(n, opts)
		Expect(err).NotTo(HaveOccurred())

		r, err := openTable(data, opts)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		it := r.NewIterator()
		it.Seek([]byte("key00500"))
		Expect(it.Valid()).To(BeTrue())
		Expect(it.Key()).To(Equal([]byte("key00500")))

		it.Seek([]byte("key005005")) // between key00500 and key00501
		Expect(it.Valid()).To(BeTrue())
		Expect(it.Key()).To(Equal([]byte("key00501")))

		it.Seek([]byte("zzz"))
		Expect(it.Valid()).To(BeFalse())

		it.Seek([]byte(""))
		Expect(it.Valid()).To(BeTrue())
		Expect(it.Key()).To(Equal([]byte("key00000")))
	})

	It("recovers from a corrupt data block: affected keys miss, others are unaffected", func() {
		opts := &sstable.Options{BlockSize: 64, Compression: sstable.NoCompression}
		data, err := buildTable(n, opts)
		Expect(err).NotTo(HaveOccurred())

		corrupted := append([]byte(nil), data...)
		// Flip a byte well inside the first data block's payload region,
		// away from the footer and any block trailer.
		corrupted[40] ^= 0xff

		r, err := openTable(corrupted, opts)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		_, err = r.Get([]byte("key00000"))
		Expect(err).To(MatchError(sstable.ErrNotFound))
		Expect(r.CorruptionCount()).To(BeNumerically(">", 0))

		seen := map[string]bool{}
		it := r.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
			seen[string(it.Key())] = true
		}
		// Keys outside the corrupted block still surface, while
		// key00000, which lives in it, does not.
		Expect(len(seen)).To(BeNumerically(">", 0))
		Expect(len(seen)).To(BeNumerically("<", n))
		for k := range seen {
			Expect(k).NotTo(Equal("key00000"))
		}
	})

	It("reports table properties", func() {
		data, err := buildTable(n, nil)
		Expect(err).NotTo(HaveOccurred())

		r, err := openTable(data, nil)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		props := r.Properties()
		Expect(props.NumDataBlocks).To(BeNumerically(">", 0))
		Expect(props.IndexSize).To(BeNumerically(">", 0))
		Expect(props.FilterName).To(Equal(""))
	})

	Describe("with a Bloom filter configured", func() {
		It("loads the filter, resolves every key and reports absent keys as not found", func() {
			opts := &sstable.Options{
				BlockSize:    64,
				Compression:  sstable.NoCompression,
				FilterPolicy: sstable.NewBloomFilterPolicy(10),
			}
			data, err := buildTable(n, opts)
			Expect(err).NotTo(HaveOccurred())

			r, err := openTable(data, opts)
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()

			Expect(r.Properties().FilterName).To(Equal("leveldb.BuiltinBloomFilter2"))
			Expect(r.Properties().FilterSize).To(BeNumerically(">", 0))

			for i := 0; i < n; i++ {
				key := fmt.Sprintf("key%05d", i)
				v, err := r.Get([]byte(key))
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal([]byte(fmt.Sprintf("val%d", i*2))))
			}

			_, err = r.Get([]byte("absent-key"))
			Expect(err).To(MatchError(sstable.ErrNotFound))
		})
	})

	Describe("with a shared block cache", func() {
		It("returns correct values when reads go through the cache", func() {
			cache := sstable.NewBlockCache(1 << 20)
			opts := &sstable.Options{BlockCache: cache}
			data, err := buildTable(n, opts)
			Expect(err).NotTo(HaveOccurred())

			r, err := openTable(data, opts)
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()

			for i := 0; i < 10; i++ {
				key := fmt.Sprintf("key%05d", i)
				v, err := r.Get([]byte(key))
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal([]byte(fmt.Sprintf("val%d", i*2))))
			}
		})
	})

	It("rejects a file too small to hold a footer", func() {
		_, err := openTable(bytes.Repeat([]byte{0}, 10), nil)
		Expect(sstable.IsKind(err, sstable.Corruption)).To(BeTrue())
	})

	It("rejects a footer with a bad magic number", func() {
		data, err := buildTable(10, nil)
		Expect(err).NotTo(HaveOccurred())
		corrupted := append([]byte(nil), data...)
		corrupted[len(corrupted)-1] ^= 0xff

		_, err = openTable(corrupted, nil)
		Expect(sstable.IsKind(err, sstable.Corruption)).To(BeTrue())
	})
})
