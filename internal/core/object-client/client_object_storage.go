package objectclient

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	cfg "github.com/SiegfredLorelle/iskobot-api/internal/config"
	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.ObjectClient = (*S3Client)(nil)

// S3API is the subset of the S3 client used here.
type S3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

type S3Client struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

func NewS3Client(ctx context.Context, cfg *cfg.Config, logger *zap.Logger) (*S3Client, error) {
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("s3 client configured", zap.String("bucket", cfg.BucketName), zap.String("region", cfg.AwsRegion))
	return NewS3ClientFromAPI(s3.NewFromConfig(awsCfg), cfg.BucketName, cfg.StoragePrefix, logger), nil
}

// NewS3ClientFromAPI wraps an existing S3 API implementation.
func NewS3ClientFromAPI(api S3API, bucket, prefix string, logger *zap.Logger) *S3Client {
	return &S3Client{client: api, bucket: bucket, prefix: prefix, logger: logger.Named("s3")}
}

// ListFilesByExtension pages through the bucket (under the configured
// prefix) and returns the objects whose extension is in exts.
func (c *S3Client) ListFilesByExtension(ctx context.Context, exts []string) ([]models.FileRef, error) {
	ctxList, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if c.prefix != "" {
		input.Prefix = aws.String(c.prefix)
	}

	var out []models.FileRef
	p := s3.NewListObjectsV2Paginator(c.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctxList)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			ref, ok := matchExtension(key, aws.ToInt64(obj.Size), exts)
			if ok {
				out = append(out, ref)
			}
		}
	}
	c.logger.Debug("listed objects", zap.Int("matched", len(out)))
	return out, nil
}

// Download reads the whole object into memory.
func (c *S3Client) Download(ctx context.Context, name string) ([]byte, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(c.client)
	if _, err := downloader.Download(ctxGet, buf, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	}); err != nil {
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return buf.Bytes(), nil
}
