// Package blob is the object-store adapter: immutable bytes keyed by
// object_key = "<scan_id>/<uuid>__<filename>". It wraps
// github.com/aws/aws-sdk-go-v2/service/s3 against any S3-compatible
// endpoint (AWS, MinIO, etc.).
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var (
	ErrNotFound = errors.New("blob: not found")
	ErrPut      = errors.New("blob: put failed")
	ErrGet      = errors.New("blob: get failed")
)

// Options configures the S3-compatible endpoint: endpoint, region, bucket,
// and credentials.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// UsePathStyle is required by most S3-compatible local-dev endpoints
	// (e.g. MinIO), which don't support virtual-hosted-style addressing.
	UsePathStyle bool
}

// Store is the object-store collaborator used by the ingress boundary and
// the normalizer worker.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store from opts. It resolves its own aws.Config rather than
// requiring the caller to thread one through, since codesim's only AWS
// client is this one.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Store{client: client, bucket: opts.Bucket}, nil
}

// PutResult is the deterministic write outcome of Put.
type PutResult struct {
	ObjectKey string
	Checksum  string // hex SHA-256 of the raw bytes, matches File.Checksum
	Size      int64
}

// Put stores body immutably under objectKey and returns its checksum,
// computed here so callers never diverge on how it's derived.
func (s *Store) Put(ctx context.Context, objectKey string, body []byte) (PutResult, error) {
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("%w: %s: %v", ErrPut, objectKey, err)
	}
	return PutResult{ObjectKey: objectKey, Checksum: checksum, Size: int64(len(body))}, nil
}

// Get fetches the raw bytes stored at objectKey.
func (s *Store) Get(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectKey)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrGet, objectKey, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body %s: %v", ErrGet, objectKey, err)
	}
	return data, nil
}

// ObjectKey builds the canonical object key for a file upload.
func ObjectKey(scanID, uploadUUID, filename string) string {
	return scanID + "/" + uploadUUID + "__" + filename
}
