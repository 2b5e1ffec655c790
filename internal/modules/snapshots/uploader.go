// Package snapshots archives database files to S3 so scenario definitions
// and run history survive host loss. The uploader is optional: without a
// configured bucket it stays disabled.
package snapshots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Uploader pushes snapshot files to one S3 bucket under a key prefix.
type Uploader struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
	log      zerolog.Logger
}

// New creates an uploader, or a disabled one when bucket is empty. AWS
// credentials and region come from the default chain.
func New(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*Uploader, error) {
	u := &Uploader{
		bucket: bucket,
		prefix: prefix,
		log:    log.With().Str("component", "snapshots").Logger(),
	}
	if bucket == "" {
		return u, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	u.uploader = manager.NewUploader(s3.NewFromConfig(cfg))
	return u, nil
}

// Enabled reports whether a bucket is configured.
func (u *Uploader) Enabled() bool { return u.uploader != nil }

// UploadFile archives one local file under
// <prefix>/<yyyy-mm-dd>/<basename> and returns the object key.
func (u *Uploader) UploadFile(ctx context.Context, path string) (string, error) {
	if !u.Enabled() {
		return "", fmt.Errorf("snapshot uploads disabled: no bucket configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	key := u.objectKey(filepath.Base(path), time.Now().UTC())
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to s3: %w", err)
	}

	u.log.Info().Str("bucket", u.bucket).Str("key", key).Msg("snapshot uploaded")
	return key, nil
}

func (u *Uploader) objectKey(name string, now time.Time) string {
	prefix := u.prefix
	if prefix == "" {
		prefix = "snapshots"
	}
	return fmt.Sprintf("%s/%s/%s", prefix, now.Format("2006-01-02"), name)
}
