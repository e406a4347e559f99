package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/storage/sqlite"
	"github.com/papercomputeco/ssechat/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	Context("conformance", func() {
		storagetest.DescribeDriver(func() storage.Driver {
			d, err := sqlite.NewDriver(":memory:")
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reopens an existing database", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, storagetest.NewRecord("kept", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.Get(ctx, "kept")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Turn.MessageText).To(Equal("reply kept"))
		})
	})
})
