package main

import (
	"context"
	"fmt"
	"path"
	"time"

	"dagger/ssechat/internal/dagger"
)

// checksumFile is written next to the platform directories of every release.
const checksumFile = "SHA256SUMS"

// bucketTarget is an S3-compatible bucket that release artifacts sync to.
type bucketTarget struct {
	endpoint        *dagger.Secret
	bucket          *dagger.Secret
	accessKeyId     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// sync uploads artifacts under each prefix in turn. The first failing prefix
// stops the upload, so a later prefix (such as "latest") never points at a
// release whose versioned copy is missing.
func (b *bucketTarget) sync(ctx context.Context, artifacts *dagger.Directory, prefixes ...string) error {
	bucketName, err := b.bucket.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}

	endpointUrl, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	awsCli := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	for _, prefix := range prefixes {
		destination := fmt.Sprintf("s3://%s", path.Join(bucketName, prefix))

		_, err = awsCli.
			WithExec([]string{
				"aws", "s3", "sync", ".",
				destination,
				"--endpoint-url", endpointUrl,
			}).
			Sync(ctx)
		if err != nil {
			return fmt.Errorf("failed to upload artifacts to %q: %w", prefix, err)
		}
	}

	return nil
}

// withChecksums adds a SHA256SUMS manifest covering every binary in
// artifacts.
func withChecksums(artifacts *dagger.Directory) *dagger.Directory {
	sums := dag.Container().
		From("alpine:3").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{
			"sh", "-c",
			"find . -type f -name ssechat | sort | xargs sha256sum > /" + checksumFile,
		}).
		File("/" + checksumFile)

	return artifacts.WithFile(checksumFile, sums)
}

// Checksums builds release binaries and returns them with a SHA256SUMS
// manifest, without uploading anything
func (s *Ssechat) Checksums(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,
) *dagger.Directory {
	return withChecksums(s.BuildRelease(ctx, version, commit))
}

// ReleaseLatest builds release binaries and uploads them under both the
// version prefix and "latest"
func (s *Ssechat) ReleaseLatest(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucket *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := s.Checksums(ctx, version, commit)
	target := &bucketTarget{
		endpoint:        endpoint,
		bucket:          bucket,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}

	if err := target.sync(ctx, artifacts, version, "latest"); err != nil {
		return artifacts, fmt.Errorf("could not publish release %s: %w", version, err)
	}

	return artifacts, nil
}

// Nightly builds nightly artifacts and uploads them under a dated
// "nightly/YYYY-MM-DD" prefix, kept for bisecting, and "nightly/latest"
func (s *Ssechat) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucket *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	dated := path.Join("nightly", time.Now().UTC().Format(time.DateOnly))

	artifacts := s.Checksums(ctx, "nightly-"+commit, commit)
	target := &bucketTarget{
		endpoint:        endpoint,
		bucket:          bucket,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}

	if err := target.sync(ctx, artifacts, dated, "nightly/latest"); err != nil {
		return artifacts, fmt.Errorf("could not publish nightly %s: %w", commit, err)
	}
	return artifacts, nil
}
