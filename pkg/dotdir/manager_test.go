package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()

		origEnv, had := os.LookupEnv(dotdir.HomeEnv)
		Expect(os.Unsetenv(dotdir.HomeEnv)).To(Succeed())
		DeferCleanup(func() {
			if had {
				os.Setenv(dotdir.HomeEnv, origEnv)
			} else {
				os.Unsetenv(dotdir.HomeEnv)
			}
		})
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	chdir := func(dir string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })
	}

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .ssechat dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".ssechat"), 0o755)).To(Succeed())
			chdir(tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .ssechat dir when no override is provided", func() {
			local := filepath.Join(tmpDir, ".ssechat")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to and creates the home .ssechat dir", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdir(emptyDir)

			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", emptyDir)).To(Succeed())
			DeferCleanup(func() { os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(emptyDir, ".ssechat")))
			Expect(filepath.Join(emptyDir, ".ssechat")).To(BeADirectory())
		})
	})

	Describe("Resolve", func() {
		It("reports the override as the source", func() {
			dir := filepath.Join(tmpDir, "override")
			loc, err := m.Resolve(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Dir).To(Equal(dir))
			Expect(loc.Source).To(Equal(dotdir.SourceOverride))
			Expect(loc.Source.String()).To(Equal("--config-dir"))
		})

		It("prefers $SSECHAT_HOME over a local .ssechat dir", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".ssechat"), 0o755)).To(Succeed())
			chdir(tmpDir)

			envDir := filepath.Join(tmpDir, "from-env")
			Expect(os.Setenv(dotdir.HomeEnv, envDir)).To(Succeed())

			loc, err := m.Resolve("")
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Dir).To(Equal(envDir))
			Expect(loc.Source).To(Equal(dotdir.SourceEnv))
			Expect(envDir).To(BeADirectory())
		})

		It("lets the override win over $SSECHAT_HOME", func() {
			Expect(os.Setenv(dotdir.HomeEnv, filepath.Join(tmpDir, "from-env"))).To(Succeed())

			loc, err := m.Resolve(filepath.Join(tmpDir, "flag"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Source).To(Equal(dotdir.SourceOverride))
			Expect(filepath.Join(tmpDir, "from-env")).NotTo(BeAnExistingFile())
		})

		It("makes a relative override absolute", func() {
			chdir(tmpDir)

			loc, err := m.Resolve("rel")
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Dir).To(Equal(filepath.Join(tmpDir, "rel")))
		})

		It("labels local and home sources", func() {
			Expect(dotdir.SourceLocal.String()).To(Equal("local"))
			Expect(dotdir.SourceHome.String()).To(Equal("home"))
			Expect(dotdir.SourceEnv.String()).To(Equal(dotdir.HomeEnv))
		})
	})
})
