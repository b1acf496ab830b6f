package ledger

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "files"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the file under its key", func() {
			key, err := storage.Save("abc_invoice.pdf", []byte("pdf bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("abc_invoice.pdf"))
			Expect(filepath.Join(tmpDir, "files", "abc_invoice.pdf")).To(BeAnExistingFile())
		})

		It("refuses keys that leave the directory", func() {
			_, err := storage.Save("../escape.pdf", []byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(filepath.Join(tmpDir, "escape.pdf")).NotTo(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		It("reads back what was saved", func() {
			_, err := storage.Save("a.png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png bytes")))
		})

		It("returns ErrNotFound for a missing file", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			_, err := storage.Save("a.png", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("a.png")).To(Succeed())
			_, statErr := os.Stat(filepath.Join(tmpDir, "files", "a.png"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("fails for a missing file", func() {
			Expect(storage.Delete("missing.png")).To(HaveOccurred())
		})
	})
})
