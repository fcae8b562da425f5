package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-multierror"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/awsretry"
)

// maxDeleteKeys is the DeleteObjects per-request limit.
const maxDeleteKeys = 1000

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store reads and relocates objects.
type S3Store struct {
	client S3API
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// Get streams an object. The caller closes the body. A missing object or
// bucket yields an error wrapping domain.ErrObjectNotFound.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || awsretry.IsNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s: %w", domain.ErrObjectNotFound, bucket, key, err)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// GetText reads a whole object as a string.
func (s *S3Store) GetText(ctx context.Context, bucket, key string) (string, error) {
	body, err := s.Get(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading s3://%s/%s: %w", bucket, key, err)
	}
	return string(data), nil
}

// Put writes an object.
func (s *S3Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Copy duplicates an object.
func (s *S3Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return fmt.Errorf("copying s3://%s/%s to s3://%s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}
	return nil
}

// DeleteMany removes keys from bucket in chunks of 1000. Per-key failures
// reported by S3 are aggregated.
func (s *S3Store) DeleteMany(ctx context.Context, bucket string, keys []string) error {
	var result *multierror.Error
	for chunk := range slices.Chunk(keys, maxDeleteKeys) {
		ids := make([]types.ObjectIdentifier, len(chunk))
		for i, k := range chunk {
			ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("deleting %d objects from %s: %w", len(chunk), bucket, err))
			continue
		}
		for _, e := range out.Errors {
			result = multierror.Append(result, fmt.Errorf("deleting s3://%s/%s: %s: %s",
				bucket, aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
	}
	return result.ErrorOrNil()
}

// Move relocates one object within or across buckets.
type Move struct {
	Bucket string
	Key    string
	// ToBucket defaults to Bucket.
	ToBucket string
	ToKey    string
}

// MoveObjects copies every object to its destination, then deletes the
// copied sources with one batch per bucket. A failed copy leaves its source
// in place. All failures are returned together.
func (s *S3Store) MoveObjects(ctx context.Context, moves []Move) error {
	var result *multierror.Error
	copied := make(map[string][]string)
	var buckets []string

	for _, m := range moves {
		dst := m.ToBucket
		if dst == "" {
			dst = m.Bucket
		}
		if err := s.Copy(ctx, m.Bucket, m.Key, dst, m.ToKey); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if _, ok := copied[m.Bucket]; !ok {
			buckets = append(buckets, m.Bucket)
		}
		copied[m.Bucket] = append(copied[m.Bucket], m.Key)
	}

	for _, b := range buckets {
		if err := s.DeleteMany(ctx, b, copied[b]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// copySource renders "bucket/key" with every key segment URL-escaped.
func copySource(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segs, "/")
}
