// Package share implements the share targets behind export.Sharer: a
// hand-off directory, an S3-compatible bucket, and none.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/catchlog/internal/atomicfile"
	"github.com/mesh-intelligence/catchlog/pkg/export"
)

// Supported share targets.
const (
	TargetNone  = "none"
	TargetDir   = "dir"
	TargetMinio = "minio"
)

// ErrUnavailable is returned by Share on a target that cannot share.
var ErrUnavailable = errors.New("sharing is not available")

// ErrUnknownTarget is returned by New for an unrecognized target.
var ErrUnknownTarget = errors.New("unknown share target")

// DefaultLinkExpiry is how long presigned links stay valid.
const DefaultLinkExpiry = 24 * time.Hour

// Config selects and configures a share target.
type Config struct {
	Target    string        `mapstructure:"target" yaml:"target"`
	Dir       string        `mapstructure:"dir" yaml:"dir,omitempty"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKey string        `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string        `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Bucket    string        `mapstructure:"bucket" yaml:"bucket,omitempty"`
	UseSSL    bool          `mapstructure:"use_ssl" yaml:"use_ssl,omitempty"`
	Expiry    time.Duration `mapstructure:"expiry" yaml:"expiry,omitempty"`
}

// New builds the share target cfg names. An empty target is none.
func New(cfg Config, logger zerolog.Logger) (export.Sharer, error) {
	switch cfg.Target {
	case "", TargetNone:
		return None{}, nil
	case TargetDir:
		return NewDir(cfg.Dir, logger), nil
	case TargetMinio:
		return NewMinio(cfg, logger)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, cfg.Target)
}

// ContentType returns the media type for an export file name.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// None never shares.
type None struct{}

func (None) Available(context.Context) bool { return false }

func (None) Share(context.Context, string) (string, error) { return "", ErrUnavailable }

// Dir shares by copying files into a hand-off directory, such as a synced
// folder.
type Dir struct {
	dir    string
	logger zerolog.Logger
}

// NewDir returns a Dir target copying into dir.
func NewDir(dir string, logger zerolog.Logger) *Dir {
	return &Dir{dir: dir, logger: logger}
}

// Available reports whether dir is configured and is, or can become, a
// directory.
func (d *Dir) Available(context.Context) bool {
	if d.dir == "" {
		return false
	}
	info, err := os.Stat(d.dir)
	if os.IsNotExist(err) {
		return true
	}
	return err == nil && info.IsDir()
}

// Share copies path into the directory and returns the copy's path.
func (d *Dir) Share(ctx context.Context, path string) (string, error) {
	if !d.Available(ctx) {
		return "", ErrUnavailable
	}
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating share dir: %w", err)
	}
	dst := filepath.Join(d.dir, filepath.Base(path))
	err = atomicfile.Write(dst, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", err
	}
	d.logger.Debug().Str("from", path).Str("to", dst).Msg("copied to share dir")
	return dst, nil
}

// Minio shares by uploading to an S3-compatible bucket and returning a
// presigned download link.
type Minio struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger zerolog.Logger
}

// NewMinio creates the client. No request is made until Available or Share.
func NewMinio(cfg Config, logger zerolog.Logger) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio share target requires endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	return &Minio{client: client, bucket: cfg.Bucket, expiry: expiry, logger: logger}, nil
}

// Available reports whether the endpoint answers.
func (m *Minio) Available(ctx context.Context) bool {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		m.logger.Debug().Err(err).Str("bucket", m.bucket).Msg("minio unavailable")
		return false
	}
	return true
}

// ObjectKey returns the bucket key for an upload of name.
func ObjectKey(id uuid.UUID, name string) string {
	return fmt.Sprintf("exports/%s/%s", id, filepath.Base(name))
}

// Share uploads path, creating the bucket if needed, and returns a
// presigned GET link.
func (m *Minio) Share(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	key := ObjectKey(uuid.New(), path)
	_, err = m.client.PutObject(ctx, m.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: ContentType(path),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	link, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return link.String(), nil
}
