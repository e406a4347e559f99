package backend_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/backend"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/eventstream/kafka"
	"github.com/papercomputeco/ssechat/pkg/eventstream/nop"
	"github.com/papercomputeco/ssechat/pkg/storage/inmemory"
	"github.com/papercomputeco/ssechat/pkg/storage/sqlite"
)

var _ = Describe("OpenStorage", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("falls back to memory", func() {
		driver, err := backend.OpenStorage(ctx, config.StorageConfig{}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens SQLite", func() {
		path := filepath.Join(GinkgoT().TempDir(), "turns.db")
		driver, err := backend.OpenStorage(ctx, config.StorageConfig{SQLitePath: path}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
	})

	It("refuses more than one backend", func() {
		_, err := backend.OpenStorage(ctx, config.StorageConfig{
			SQLitePath: "turns.db",
			RedisAddr:  "localhost:6379",
		}, nil)
		Expect(err).To(MatchError(backend.ErrMultipleStores))
	})

	It("reports unreachable servers", func() {
		_, err := backend.OpenStorage(ctx, config.StorageConfig{
			PostgresDSN: "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
		}, nil)
		Expect(err).To(MatchError(ContainSubstring("PostgreSQL")))
	})
})

var _ = Describe("OpenPublisher", func() {
	It("is a nop without brokers", func() {
		pub, err := backend.OpenPublisher(config.PublisherConfig{KafkaTopic: "t"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a Kafka publisher from the broker list", func() {
		pub, err := backend.OpenPublisher(config.PublisherConfig{
			KafkaBrokers: "localhost:9092, localhost:9093",
			KafkaTopic:   "ssechat.turns",
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer pub.Close()
		Expect(pub).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("requires a topic", func() {
		_, err := backend.OpenPublisher(config.PublisherConfig{KafkaBrokers: "localhost:9092"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
