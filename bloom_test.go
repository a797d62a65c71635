package sstable_test

import (
	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("BloomFilterPolicy", func() {
	subject := sstable.NewBloomFilterPolicy(12)

	keys := [][]byte{
		[]byte("abc123def456"),
		[]byte("xxx111xxx222"),
		[]byte("ab00cd00ab"),
		[]byte("908070605040302010"),
	}

	It("has a stable, persisted name", func() {
		Expect(subject.Name()).To(Equal("leveldb.BuiltinBloomFilter2"))
	})

	It("builds the expected filter bytes for a known key set", func() {
		filter := subject.CreateFilter(keys)
		Expect(filter).To(Equal([]byte{194, 148, 129, 140, 192, 196, 132, 164, 8}))
	})

	It("never reports a false negative for a key it was built from", func() {
		filter := subject.CreateFilter(keys)
		for _, k := range keys {
			Expect(subject.KeyMayMatch(k, filter)).To(BeTrue())
		}
	})

	It("fails open on a malformed or empty filter", func() {
		Expect(subject.KeyMayMatch([]byte("x"), nil)).To(BeTrue())
		Expect(subject.KeyMayMatch([]byte("x"), []byte{})).To(BeTrue())
	})
})
