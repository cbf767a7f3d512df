// Package storage provides content backends for file-based storefronts.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
)

// Ensure S3ContentStore implements ContentStore
var _ ecommerce.ContentStore = (*S3ContentStore)(nil)

// maxDocumentSize bounds a product document read from the bucket (10MB)
const maxDocumentSize = 10 * 1024 * 1024

// S3ContentStore keeps storefront documents in an S3 compatible bucket
// (AWS S3, MinIO, RustFS). Versions are ETags and writes are conditional,
// so two writers never silently overwrite each other.
type S3ContentStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ContentStoreOption is a functional option for configuring S3ContentStore
type S3ContentStoreOption func(*S3ContentStore)

// WithLogger sets a custom logger for S3ContentStore
func WithLogger(logger *zap.Logger) S3ContentStoreOption {
	return func(s *S3ContentStore) {
		s.logger = logger
	}
}

// NewS3ContentStore creates a new S3ContentStore from configuration
func NewS3ContentStore(ctx context.Context, cfg *config.S3Config, opts ...S3ContentStoreOption) (*S3ContentStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint *string
	if cfg.Endpoint != "" {
		e := cfg.Endpoint
		if !strings.HasPrefix(e, "http://") && !strings.HasPrefix(e, "https://") {
			e = "https://" + e
		}
		if _, err := url.Parse(e); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
		endpoint = aws.String(e)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})

	store := &S3ContentStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Get implements ecommerce.ContentStore
func (s *S3ContentStore) Get(ctx context.Context, creds integration.PlatformCredentials, filePath string) (ecommerce.ContentFile, error) {
	key, err := s.key(creds, filePath)
	if err != nil {
		return ecommerce.ContentFile{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return ecommerce.ContentFile{}, fmt.Errorf("%w: %s", ecommerce.ErrContentNotFound, filePath)
		}
		return ecommerce.ContentFile{}, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(io.LimitReader(out.Body, maxDocumentSize))
	if err != nil {
		return ecommerce.ContentFile{}, fmt.Errorf("failed to read object: %w", err)
	}
	return ecommerce.ContentFile{
		Path:    filePath,
		Content: content,
		Version: aws.ToString(out.ETag),
	}, nil
}

// Put implements ecommerce.ContentStore. An empty version writes only if the
// object does not exist; otherwise the write must match the current ETag.
func (s *S3ContentStore) Put(ctx context.Context, creds integration.PlatformCredentials, file ecommerce.ContentFile, message string) (string, error) {
	key, err := s.key(creds, file.Path)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file.Content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	}
	if file.Version == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(file.Version)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "PreconditionFailed", "ConditionalRequestConflict":
				return "", fmt.Errorf("%w: %s", ecommerce.ErrContentConflict, file.Path)
			}
		}
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	s.logger.Debug("storefront document written",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.String("message", message),
	)
	return aws.ToString(out.ETag), nil
}

// key maps a document path to {prefix}/{store}/{path}
func (s *S3ContentStore) key(creds integration.PlatformCredentials, filePath string) (string, error) {
	clean := path.Clean("/" + filePath)
	if filePath == "" || clean == "/" || clean != "/"+strings.Trim(filePath, "/") {
		return "", fmt.Errorf("storage: invalid document path %q", filePath)
	}
	if creds.StoreID == "" {
		return "", errors.New("storage: store id is required")
	}
	parts := []string{creds.StoreID, strings.TrimPrefix(clean, "/")}
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return strings.Join(parts, "/"), nil
}

// GetBucket returns the bucket name
func (s *S3ContentStore) GetBucket() string {
	return s.bucket
}
