package aws

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/emberlink/ember/internal/config"
	storagetypes "github.com/emberlink/ember/internal/storage/types"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader is satisfied by manager.Uploader, which streams non-seekable
// bodies that a plain PutObject cannot sign.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store holds blob ciphertext in a bucket. Expiry of never-retrieved blobs
// is left to a bucket lifecycle rule spanning the maximum secret TTL.
type S3Store struct {
	client   S3API
	uploader S3Uploader
}

func NewS3Store() storagetypes.FileStore {
	cfg, _ := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(config.AWSRegion))
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (s *S3Store) StoreBlob(ctx context.Context, id string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(config.S3Bucket),
		Key:                  aws.String(id + ".enc"),
		Body:                 body,
		ACL:                  s3types.ObjectCannedACLPrivate,
		ServerSideEncryption: s3types.ServerSideEncryptionAwsKms,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob to S3: %w", err)
	}

	return nil
}

func (s *S3Store) OpenBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(config.S3Bucket),
		Key:    aws.String(id + ".enc"),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storagetypes.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob from S3: %w", err)
	}

	return out.Body, nil
}

func (s *S3Store) DeleteBlob(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(config.S3Bucket),
		Key:    aws.String(id + ".enc"),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob from S3: %w", err)
	}

	return nil
}
