// Package storage keeps digital product files in S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
)

var (
	ErrDisabled           = errors.New("object storage is not configured")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// allowed maps accepted upload content types to the extension stored in the key.
var allowed = map[string]string{
	"application/pdf":      ".pdf",
	"application/epub+zip": ".epub",
	"application/zip":      ".zip",
	"audio/mpeg":           ".mp3",
	"audio/mp4":            ".m4a",
	"audio/wav":            ".wav",
	"video/mp4":            ".mp4",
	"video/webm":           ".webm",
	"image/jpeg":           ".jpg",
	"image/png":            ".png",
	"text/plain":           ".txt",
}

// Store is what the marketplace needs from object storage.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     *zap.Logger
}

// NewS3Store builds a client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS chain applies. A custom endpoint
// switches to path-style addressing for MinIO and similar servers.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		log:     log.Named("storage"),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.log.Info("object stored", zap.String("key", key), zap.Int64("bytes", size))
	return nil
}

// PresignGet returns a time-limited download URL. filename, when set, is
// offered to the browser as the attachment name.
func (s *S3Store) PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		in.ResponseContentDisposition = aws.String(ContentDisposition(filename))
	}
	req, err := s.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Disabled is used when no bucket is configured; every call fails with
// ErrDisabled.
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.Reader, int64) error { return ErrDisabled }

func (Disabled) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

// New returns an S3 store, or Disabled when cfg has no bucket.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	if cfg.Bucket == "" {
		log.Warn("no storage bucket configured, product uploads are disabled")
		return Disabled{}, nil
	}
	return NewS3Store(ctx, cfg, log)
}

// ProductKey builds the object key for a product file.
func ProductKey(readerID, productID, contentType string) (string, error) {
	ext, ok := allowed[normalizeType(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	return path.Join("products", readerID, productID, ksuid.New().String()+ext), nil
}

// Allowed reports whether contentType may be uploaded.
func Allowed(contentType string) bool {
	_, ok := allowed[normalizeType(contentType)]
	return ok
}

// ContentDisposition quotes filename for an attachment header, dropping
// characters that would break the quoted string.
func ContentDisposition(filename string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, filename)
	return `attachment; filename="` + clean + `"`
}

func normalizeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
