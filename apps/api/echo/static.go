package echoapi

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	storagesvc "github.com/trezcool/darasa/services/storage"
)

// cleanWildcard returns the `*` param as a rooted, traversal free path.
func cleanWildcard(ctx echo.Context) (string, error) {
	p, err := url.PathUnescape(ctx.Param("*"))
	if err != nil {
		return "", errHttpNotFound
	}
	return path.Clean("/" + p), nil
}

// hiddenPath reports whether any segment of p starts with a dot.
func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// serveDir serves the files under root; directories serve their index.html.
// Hidden files and directories are never served.
func serveDir(root string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := cleanWildcard(ctx)
		if err != nil {
			return err
		}
		if hiddenPath(p) {
			return errHttpNotFound
		}
		return ctx.File(filepath.Join(root, filepath.FromSlash(p)))
	}
}

// serveBucket streams objects stored by the local storage driver.
func serveBucket(bucket storagesvc.Bucket) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := cleanWildcard(ctx)
		if err != nil {
			return err
		}
		key := p[1:]

		rc, err := bucket.Open(ctx.Request().Context(), key)
		if err != nil {
			if core.IsNotFound(err) || errors.Cause(err) == storagesvc.ErrInvalidKey {
				return errHttpNotFound
			}
			return errors.Wrap(err, "opening object")
		}
		defer rc.Close()

		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = echo.MIMEOctetStream
		}
		ctx.Response().Header().Set("Cache-Control", "public, max-age=86400")
		ctx.Response().Header().Set(echo.HeaderContentType, ct)
		ctx.Response().WriteHeader(http.StatusOK)
		_, err = io.Copy(ctx.Response(), rc)
		return err
	}
}
