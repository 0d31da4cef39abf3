package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the exporter uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads clips to a bucket under a key prefix.
type S3Exporter struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// NewS3Exporter loads the default AWS configuration (env, shared config,
// instance role) and returns an exporter for bucket.
func NewS3Exporter(ctx context.Context, bucket, prefix string) (*S3Exporter, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return &S3Exporter{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Prefix: prefix,
	}, nil
}

// Export implements Exporter.
func (e *S3Exporter) Export(ctx context.Context, name string, clip []byte) (string, error) {
	key := path.Join(e.Prefix, AudioName(name))
	_, err := e.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(clip),
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload to s3://%s/%s: %w", e.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", e.Bucket, key), nil
}
