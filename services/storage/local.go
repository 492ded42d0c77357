package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type localBucket struct {
	root          string
	publicBaseURL string
}

var _ Bucket = (*localBucket)(nil)

// NewLocalBucket stores objects under root; the API serves them under publicBaseURL.
func NewLocalBucket(root, publicBaseURL string) (Bucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &localBucket{root: root, publicBaseURL: publicBaseURL}, nil
}

func (b *localBucket) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(key)), nil
}

func (b *localBucket) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	fp, err := b.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating object dir")
	}

	// write next to the target then rename, so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing object")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing object")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fp), "moving object")
}

func (b *localBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, "opening object")
	}
	return f, nil
}

func (b *localBucket) Delete(_ context.Context, key string) error {
	fp, err := b.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (b *localBucket) PublicURL(key string) string {
	return publicURL(b.publicBaseURL, key)
}

// Root is the directory holding the objects.
func (b *localBucket) Root() string { return b.root }

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
