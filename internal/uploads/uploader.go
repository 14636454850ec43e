package uploads

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/PIO-VIA/Snapppy/internal/config"
)

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	bucket  string
	client  ObjectPutter
	maxSize int64
}

func New(bucket string, client ObjectPutter, maxSize int64) *Uploader {
	return &Uploader{bucket: bucket, client: client, maxSize: maxSize}
}

func NewS3Client(ctx context.Context, cfg config.UploadsConfig) (*s3.Client, error) {
	const op = "uploads.NewS3Client"

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: load aws config: %w", op, err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload stores the local file in the bucket and returns its object key.
func (u *Uploader) Upload(ctx context.Context, f File) (string, error) {
	const op = "uploads.Upload"

	f, err := Describe(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if f.ContentType == "" {
		return "", fmt.Errorf("%s: %w", op, ErrContentTypeIsRequired)
	}

	if u.maxSize > 0 && f.Size > u.maxSize {
		return "", fmt.Errorf("%s: %d bytes: %w", op, f.Size, ErrFileTooLarge)
	}

	key, err := GenerateKey(f.ContentType)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, f.ContentType, err)
	}

	body, err := os.Open(f.LocalPath)
	if err != nil {
		return "", fmt.Errorf("%s: open: %w", op, err)
	}
	defer body.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(BaseMime(f.ContentType)),
		ContentLength: aws.Int64(f.Size),
		Metadata: map[string]string{
			"original-filename": f.Filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: put object: %w", op, err)
	}

	return key, nil
}
