package video

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/darasa/core"
)

// mockable
var (
	commandContext = exec.CommandContext
	nowFunc        = time.Now
)

var (
	// errors
	ErrConverting  = core.NewConflictError("video is already being converted")
	ErrVideoExists = core.NewConflictError("video already exists")
)

// Result reports the outcome of a conversion.
type Result struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"video_id"`
	Playlist string `json:"playlist,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Converter turns a video source into an HLS rendition stored in the Library.
type Converter struct {
	conf       core.VideoConfig
	lib        *Library
	yt         YouTube
	httpClient *http.Client
	logger     core.Logger
}

func NewConverter(conf core.VideoConfig, lib *Library, yt YouTube, logger core.Logger) *Converter {
	return &Converter{conf: conf, lib: lib, yt: yt, httpClient: http.DefaultClient, logger: logger}
}

// Convert streams source (YouTube URL, http URL or local file) through ffmpeg.
// The video only appears in the library once ffmpeg succeeded.
func (c *Converter) Convert(ctx context.Context, source, id string) Result {
	res := Result{VideoID: id}
	if err := c.convert(ctx, source, id); err != nil {
		c.logger.Error("converting video", err, map[string]interface{}{"video_id": id, "source": source})
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Playlist = PlaylistURL(id)
	c.logger.Info("video converted", map[string]interface{}{"video_id": id, "playlist": res.Playlist})
	return res
}

func (c *Converter) convert(ctx context.Context, source, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if strings.TrimSpace(source) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "source", Error: "this field is required"})
	}
	if err := os.MkdirAll(c.conf.WorkDir, 0o755); err != nil {
		return errors.Wrap(err, "creating work dir")
	}
	if err := os.MkdirAll(c.lib.Dir(), 0o755); err != nil {
		return errors.Wrap(err, "creating library dir")
	}

	lock := flock.New(filepath.Join(c.conf.WorkDir, id+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquiring video lock")
	}
	if !locked {
		return ErrConverting
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("releasing video lock", err)
		}
	}()

	if c.lib.Exists(id) {
		return ErrVideoExists
	}

	// temp dirs start with a dot: the library never lists them
	tmp, err := os.MkdirTemp(c.lib.Dir(), "."+id+"-")
	if err != nil {
		return errors.Wrap(err, "creating temp dir")
	}
	defer os.RemoveAll(tmp)

	src, meta, err := c.open(ctx, source)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := c.transcode(ctx, src, tmp); err != nil {
		return err
	}

	if meta.Title == "" {
		meta.Title = id
	}
	meta.CreatedAt = nowFunc().UTC()
	if err := writeMeta(tmp, meta); err != nil {
		return err
	}
	return errors.Wrap(os.Rename(tmp, filepath.Join(c.lib.Dir(), id)), "publishing video")
}

// transcode pipes src into ffmpeg, which writes the playlist and segments into outDir.
// src is closed as soon as ffmpeg exits so a stalled read cannot outlive it.
func (c *Converter) transcode(ctx context.Context, src io.ReadCloser, outDir string) error {
	var stderr bytes.Buffer
	cmd := commandContext(ctx, c.binary(), c.args(outDir)...) //nolint:gosec
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "opening ffmpeg stdin")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting ffmpeg")
	}

	ffmpegDone := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		_, err := io.Copy(stdin, src)
		_ = stdin.Close()
		select {
		case <-ffmpegDone:
			return nil
		default:
		}
		if err == nil || errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) { // ffmpeg stopped reading
			return nil
		}
		return errors.Wrap(err, "reading source")
	})

	g.Go(func() error {
		err := cmd.Wait()
		close(ffmpegDone)
		_ = src.Close()
		if err != nil {
			return errors.Wrapf(err, "ffmpeg: %s", lastLine(stderr.String()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(outDir, playlistName)); err != nil {
		return errors.New("ffmpeg produced no playlist")
	}
	return nil
}

func (c *Converter) binary() string {
	if c.conf.FFmpegBinary == "" {
		return "ffmpeg"
	}
	return c.conf.FFmpegBinary
}

func (c *Converter) args(outDir string) []string {
	seg := c.conf.SegmentSeconds
	if seg <= 0 {
		seg = 10
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c:v", "libx264", "-c:a", "aac",
		"-f", "hls",
		"-hls_time", strconv.Itoa(seg),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, "segment_%03d.ts"),
		filepath.Join(outDir, playlistName),
	}
}

func (c *Converter) open(ctx context.Context, source string) (io.ReadCloser, Meta, error) {
	meta := Meta{SourceURL: source}
	switch {
	case IsYouTubeURL(source):
		rc, stream, err := c.yt.Open(ctx, source)
		if err != nil {
			return nil, meta, err
		}
		meta.Title = stream.Title
		meta.DurationSeconds = stream.Duration.Seconds()
		return rc, meta, nil

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, meta, errors.Wrap(err, "building source request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, meta, errors.Wrap(err, "downloading source")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, meta, errors.Errorf("downloading source: unexpected status %d", resp.StatusCode)
		}
		return resp.Body, meta, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, meta, errors.Wrap(err, "opening source file")
	}
	meta.SourceURL = ""
	meta.Title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return f, meta, nil
}

// FFmpegAvailable reports whether the configured ffmpeg binary can be found.
func (c *Converter) FFmpegAvailable() bool {
	_, err := exec.LookPath(c.binary())
	return err == nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
