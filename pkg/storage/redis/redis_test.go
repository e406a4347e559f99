package redis_test

import (
	"context"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/storage/redis"
	"github.com/papercomputeco/ssechat/pkg/storage/storagetest"
)

func redisAddr() string {
	addr := os.Getenv("SSECHAT_TEST_REDIS_ADDR")
	if addr == "" {
		Skip("SSECHAT_TEST_REDIS_ADDR not set, skipping Redis tests")
	}
	return addr
}

var _ = Describe("Driver", func() {
	Context("conformance", func() {
		storagetest.DescribeDriver(func() storage.Driver {
			// A fresh prefix per spec keeps specs isolated on a shared server.
			d, err := redis.NewDriver(context.Background(), redis.Options{
				Addr:   redisAddr(),
				Prefix: "ssechat-test-" + uuid.NewString(),
			})
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	It("fails fast on an unreachable server", func() {
		_, err := redis.NewDriver(context.Background(), redis.Options{Addr: "127.0.0.1:1"})
		Expect(err).To(MatchError(ContainSubstring("failed to connect to Redis")))
	})
})
