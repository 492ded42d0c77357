package storagesvc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "courses/1/a.mp4", want: "courses/1/a.mp4"},
		{key: "/courses/a.pdf", want: "courses/a.pdf"},
		{key: "../../etc/passwd", want: "etc/passwd"},
		{key: "a/../../b", want: "b"},
		{key: "", wantErr: true},
		{key: "/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalBucket(t *testing.T) {
	ctx := context.Background()
	bucket, err := NewLocalBucket(t.TempDir(), "http://localhost:8000/storage/")
	require.NoError(t, err)

	key := "courses/c1/intro.pdf"
	require.NoError(t, bucket.Upload(ctx, key, strings.NewReader("%PDF-1.4"), "application/pdf"))
	assert.Equal(t, "http://localhost:8000/storage/courses/c1/intro.pdf", bucket.PublicURL(key))

	rc, err := bucket.Open(ctx, key)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	require.NoError(t, bucket.Delete(ctx, key))
	_, err = bucket.Open(ctx, key)
	assert.Equal(t, ErrObjectNotFound, err)

	// deleting twice is fine
	assert.NoError(t, bucket.Delete(ctx, key))
}

func TestLocalBucket_UploadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bucket, err := NewLocalBucket(t.TempDir(), "http://localhost/storage")
	require.NoError(t, err)

	err = bucket.Upload(ctx, "a.txt", strings.NewReader("data"), "text/plain")
	assert.Error(t, err)
	_, err = bucket.Open(context.Background(), "a.txt")
	assert.Equal(t, ErrObjectNotFound, err)
}
