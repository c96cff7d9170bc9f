// Package archive uploads finished audit log files to S3-compatible object
// storage (MinIO in the default deployment). Archiving is best effort: a
// failed upload is logged and never blocks shutdown.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/aurachat/internal/logging"
)

// test seams
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options carries the object storage credentials and target bucket.
type Options struct {
	RootUser     string // MINIO_ROOT_USER
	RootPassword string // MINIO_ROOT_PASSWORD
	Bucket       string
	Region       string
	BaseEndpoint string
}

// Enabled reports whether archiving was configured at all.
func (o Options) Enabled() bool {
	return o.RootUser != "" && o.RootPassword != ""
}

// Uploader copies audit log files into an object storage bucket.
type Uploader struct {
	opts   Options
	client objectPutter
	logger logging.Logger
}

func NewUploader(ctx context.Context, opts Options, logger logging.Logger) (*Uploader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,
			opts.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		opts:   opts,
		client: client,
		logger: logger.With("module", "archive"),
	}, nil
}

// UploadFile stores one file under its base name in the bucket.
func (u *Uploader) UploadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	key := filepath.Base(path)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	u.logger.Info(ctx, "audit log archived", "key", key, "bucket", u.opts.Bucket)
	return nil
}

// UploadDir archives every regular file in dir, continuing past individual
// failures and returning the count of successful uploads.
func (u *Uploader) UploadDir(ctx context.Context, dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		u.logger.Error(ctx, "archive scan failed", "dir", dir, "error", err)
		return 0
	}

	uploaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := u.UploadFile(ctx, filepath.Join(dir, e.Name())); err != nil {
			u.logger.Warn(ctx, "archive upload failed", "file", e.Name(), "error", err)
			continue
		}
		uploaded++
	}
	return uploaded
}
