// Package storagesvc stores uploaded files on the local filesystem or in Google Cloud Storage.
package storagesvc

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrObjectNotFound = core.NewNotFoundError("object")
	ErrInvalidKey     = errors.New("invalid object key")
)

// Bucket is a flat object store addressed by slash separated keys.
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// New returns the bucket selected by conf.Storage.Driver.
func New(ctx context.Context, conf *core.Config) (Bucket, error) {
	switch conf.Storage.Driver {
	case "gcs":
		return NewGCSBucket(ctx, conf.Storage.GCSBucket, conf.Storage.PublicBaseURL)
	case "", "local":
		return NewLocalBucket(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}

// cleanKey rejects keys escaping the bucket root.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
