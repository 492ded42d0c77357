package video

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var ErrNoStream = core.NewNotFoundError("playable stream")

var youtubeHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be"}

// Stream is a single muxed (audio + video) rendition of a YouTube video.
type Stream struct {
	URL      string
	Title    string
	MimeType string
	Duration time.Duration
	Height   int
}

// YouTube resolves and downloads YouTube videos.
type YouTube interface {
	Resolve(ctx context.Context, videoURL string) (Stream, error)
	Open(ctx context.Context, videoURL string) (io.ReadCloser, Stream, error)
}

type youtubeClient struct {
	client youtube.Client
}

var _ YouTube = (*youtubeClient)(nil)

func NewYouTube(httpClient *http.Client) YouTube {
	return &youtubeClient{client: youtube.Client{HTTPClient: httpClient}}
}

// IsYouTubeURL reports whether raw points to a YouTube host.
func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return core.StringInSlice(strings.ToLower(u.Hostname()), youtubeHosts)
}

func (yt *youtubeClient) fetch(ctx context.Context, videoURL string) (*youtube.Video, *youtube.Format, error) {
	vid, err := yt.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetching youtube video")
	}
	format := bestMuxed(vid.Formats)
	if format == nil {
		return nil, nil, ErrNoStream
	}
	return vid, format, nil
}

func (yt *youtubeClient) Resolve(ctx context.Context, videoURL string) (Stream, error) {
	vid, format, err := yt.fetch(ctx, videoURL)
	if err != nil {
		return Stream{}, err
	}
	streamURL, err := yt.client.GetStreamURLContext(ctx, vid, format)
	if err != nil {
		return Stream{}, errors.Wrap(err, "resolving stream url")
	}
	return newStream(vid, format, streamURL), nil
}

func (yt *youtubeClient) Open(ctx context.Context, videoURL string) (io.ReadCloser, Stream, error) {
	vid, format, err := yt.fetch(ctx, videoURL)
	if err != nil {
		return nil, Stream{}, err
	}
	rc, _, err := yt.client.GetStreamContext(ctx, vid, format)
	if err != nil {
		return nil, Stream{}, errors.Wrap(err, "opening youtube stream")
	}
	return rc, newStream(vid, format, format.URL), nil
}

func newStream(vid *youtube.Video, format *youtube.Format, streamURL string) Stream {
	return Stream{
		URL:      streamURL,
		Title:    vid.Title,
		MimeType: format.MimeType,
		Duration: vid.Duration,
		Height:   format.Height,
	}
}

// bestMuxed picks the highest resolution format carrying both audio and video, mp4 first.
func bestMuxed(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 {
			continue
		}
		if best == nil || better(f, best) {
			best = f
		}
	}
	return best
}

func better(a, b *youtube.Format) bool {
	aMP4, bMP4 := strings.HasPrefix(a.MimeType, "video/mp4"), strings.HasPrefix(b.MimeType, "video/mp4")
	if aMP4 != bMP4 {
		return aMP4
	}
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.Bitrate > b.Bitrate
}
