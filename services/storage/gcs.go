package storagesvc

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

var gcsUploadTimeout = 2 * time.Minute

type gcsBucket struct {
	client        *storage.Client
	name          string
	publicBaseURL string
}

var _ Bucket = (*gcsBucket)(nil)

// NewGCSBucket uses the application default credentials.
// publicBaseURL defaults to https://storage.googleapis.com/<bucket>.
func NewGCSBucket(ctx context.Context, name, publicBaseURL string, opts ...option.ClientOption) (Bucket, error) {
	if name == "" {
		return nil, errors.New("missing GCS bucket name")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://storage.googleapis.com/%s", name)
	}
	return &gcsBucket{client: client, name: name, publicBaseURL: publicBaseURL}, nil
}

func (b *gcsBucket) object(key string) (*storage.ObjectHandle, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return b.client.Bucket(b.name).Object(key), nil
}

func (b *gcsBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsUploadTimeout)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err = io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing object to GCS")
	}
	return errors.Wrap(w.Close(), "closing GCS writer")
}

func (b *gcsBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.object(key)
	if err != nil {
		return nil, err
	}
	rc, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Cause(err) == storage.ErrObjectNotExist {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, "reading object from GCS")
	}
	return rc, nil
}

func (b *gcsBucket) Delete(ctx context.Context, key string) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}
	if err = obj.Delete(ctx); err != nil && errors.Cause(err) != storage.ErrObjectNotExist {
		return errors.Wrap(err, "deleting object from GCS")
	}
	return nil
}

func (b *gcsBucket) PublicURL(key string) string {
	return publicURL(b.publicBaseURL, key)
}

func (b *gcsBucket) Close() error { return b.client.Close() }
