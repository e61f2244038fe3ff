package export_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/export"
)

var _ = Describe("DiskStore", func() {
	var store *export.DiskStore

	BeforeEach(func() {
		var err error
		store, err = export.NewDiskStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips a file through the storage root", func() {
		Expect(store.Write("a.json", []byte("content"))).To(Succeed())

		got, err := store.Read("a.json")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("content")))

		names, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(ConsistOf("a.json"))
	})

	It("refuses names that resolve outside the root", func() {
		_, err := store.Read("../../etc/passwd")
		Expect(err).To(MatchError(internal.ErrPathEscape))

		err = store.Write("../escape.json", []byte("x"))
		Expect(err).To(MatchError(internal.ErrPathEscape))
	})

	It("reports a missing file as unusable rather than a raw fs error", func() {
		_, err := store.Read("gone.json")
		Expect(err).To(MatchError(internal.ErrFileMissing))
	})

	It("treats removing an absent file as done", func() {
		Expect(store.Remove("never-existed.json")).To(Succeed())
	})
})
