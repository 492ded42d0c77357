package video

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/trezcool/darasa/core"
)

var ErrUnsupportedURL = core.NewValidationError(nil, core.FieldError{Field: "url", Error: "unsupported video url"})

// Extraction describes a directly playable video URL.
type Extraction struct {
	URL             string  `json:"url"`
	Source          string  `json:"source"` // youtube | direct
	Title           string  `json:"title,omitempty"`
	MimeType        string  `json:"mime_type,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

type Extractor struct {
	yt YouTube
}

func NewExtractor(yt YouTube) *Extractor {
	return &Extractor{yt: yt}
}

func (ext *Extractor) Extract(ctx context.Context, rawURL string) (Extraction, error) {
	rawURL = strings.TrimSpace(rawURL)
	if IsYouTubeURL(rawURL) {
		stream, err := ext.yt.Resolve(ctx, rawURL)
		if err != nil {
			return Extraction{}, err
		}
		return Extraction{
			URL:             stream.URL,
			Source:          "youtube",
			Title:           stream.Title,
			MimeType:        stream.MimeType,
			DurationSeconds: stream.Duration.Seconds(),
		}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Extraction{}, ErrUnsupportedURL
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8":
		return Extraction{URL: rawURL, Source: "direct", MimeType: "application/vnd.apple.mpegurl"}, nil
	case ".mp4":
		return Extraction{URL: rawURL, Source: "direct", MimeType: "video/mp4"}, nil
	}
	return Extraction{}, ErrUnsupportedURL
}
