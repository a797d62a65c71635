package sstable_test

import (
	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("DefaultComparator", func() {
	subject := sstable.DefaultComparator

	It("orders lexicographically", func() {
		Expect(subject.Compare([]byte("a"), []byte("b"))).To(BeNumerically("<", 0))
		Expect(subject.Compare([]byte("b"), []byte("a"))).To(BeNumerically(">", 0))
		Expect(subject.Compare([]byte("a"), []byte("a"))).To(Equal(0))
	})

	It("finds the shortest separator between two keys", func() {
		Expect(subject.FindShortestSeparator([]byte("abcd"), []byte("abcf"))).To(Equal([]byte("abce")))
		Expect(subject.FindShortestSeparator([]byte("abc"), []byte("acd"))).To(Equal([]byte("abc")))
		Expect(subject.FindShortestSeparator([]byte("abcdefghi"), []byte("abcffghi"))).To(Equal([]byte("abce")))
		Expect(subject.FindShortestSeparator([]byte("a"), []byte("a"))).To(Equal([]byte("a")))
		Expect(subject.FindShortestSeparator([]byte("a"), []byte("b"))).To(Equal([]byte("a")))
		Expect(subject.FindShortestSeparator([]byte("abc"), []byte("zzz"))).To(Equal([]byte("b")))
		Expect(subject.FindShortestSeparator([]byte(""), []byte(""))).To(Equal([]byte("")))
	})

	It("finds the shortest successor of a key", func() {
		Expect(subject.FindShortSuccessor([]byte("abcd"))).To(Equal([]byte("b")))
		Expect(subject.FindShortSuccessor([]byte("zzzz"))).To(Equal([]byte("{")))
		Expect(subject.FindShortSuccessor([]byte{})).To(Equal([]byte{0xff}))
		Expect(subject.FindShortSuccessor([]byte{0xff, 0xff, 0xff})).To(Equal([]byte{0xff, 0xff, 0xff, 0xff}))
	})
})
