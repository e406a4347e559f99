package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/ssechat/internal/dagger"
)

// Build and return directory of ssechat binaries for every supported
// platform. The SQLite driver needs cgo, so each platform builds natively in
// its own container rather than cross-compiling.
func (s *Ssechat) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		build := s.platformContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/ssechat"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (s *Ssechat) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/ssechat/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/ssechat/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/ssechat/pkg/utils.Buildtime=%s'", buildtime),
	}

	return s.Build(ctx, strings.Join(ldflags, " "))
}
