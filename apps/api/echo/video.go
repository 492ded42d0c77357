package echoapi

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/video"
)

type videoApi struct {
	library   *video.Library
	extractor *video.Extractor
}

// registerVideoAPI serves the HLS library; the API server and the HLS companion server share it.
func registerVideoAPI(e *echo.Echo, api *videoApi) {
	e.GET("/api/hls-videos", api.list)
	e.GET("/api/hls-video/:id", api.retrieve)
	e.GET("/hls/*", serveDir(api.library.Dir()), hlsHeaders)

	if api.extractor != nil {
		e.POST("/api/extract-video", api.extract)
	}
}

// hlsHeaders sets the content types players expect and lets any origin play the videos.
func hlsHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		h := ctx.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		switch path.Ext(ctx.Request().URL.Path) {
		case ".m3u8":
			h.Set(echo.HeaderContentType, "application/vnd.apple.mpegurl")
			h.Set("Cache-Control", "no-cache")
		case ".ts":
			h.Set(echo.HeaderContentType, "video/mp2t")
			h.Set("Cache-Control", "public, max-age=31536000")
		}
		return next(ctx)
	}
}

func (api *videoApi) list(ctx echo.Context) error {
	videos, err := api.library.List()
	if err != nil {
		return errors.Wrap(err, "listing videos")
	}
	return ctx.JSON(http.StatusOK, VideosResponse{Videos: videos, Count: len(videos)})
}

func (api *videoApi) retrieve(ctx echo.Context) error {
	vid, err := api.library.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting video")
	}
	return ctx.JSON(http.StatusOK, vid)
}

func (api *videoApi) extract(ctx echo.Context) error {
	var data ExtractVideoRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExtractVideoRequest")
	}

	ext, err := api.extractor.Extract(ctx.Request().Context(), data.URL)
	if err != nil {
		return errors.Wrap(err, "extracting video")
	}
	return ctx.JSON(http.StatusOK, ext)
}

type (
	VideosResponse struct {
		Videos []video.Video `json:"videos"`
		Count  int           `json:"count"`
	}

	ExtractVideoRequest struct {
		URL string `json:"url"`
	}
)
