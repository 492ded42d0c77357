package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	logsvc "github.com/trezcool/darasa/services/logger"
)

// TestHelperProcess stands in for ffmpeg: it drains stdin and writes a one segment playlist.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("FFMPEG_HELPER_MODE") == "fail" {
		fmt.Fprintln(os.Stderr, "pipe:0: Invalid data found when processing input")
		os.Exit(1)
	}
	data, _ := io.ReadAll(os.Stdin)
	out := os.Args[len(os.Args)-1]
	dir := filepath.Dir(out)
	_ = os.WriteFile(filepath.Join(dir, "segment_000.ts"), data, 0o644)
	_ = os.WriteFile(out, []byte("#EXTM3U\n#EXTINF:10,\nsegment_000.ts\n#EXT-X-ENDLIST\n"), 0o644)
	os.Exit(0)
}

func fakeFFmpeg(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
	return &captured
}

func writeVideo(t *testing.T, root, id string, meta *Meta) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, playlistName), []byte("#EXTM3U\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_000.ts"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_001.ts"), make([]byte, 50), 0o644))
	if meta != nil {
		require.NoError(t, writeMeta(dir, *meta))
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: "intro-to-go_1", want: true},
		{id: "", want: false},
		{id: "../etc", want: false},
		{id: "a/b", want: false},
		{id: ".hidden", want: false},
		{id: strings.Repeat("a", 129), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidID(tt.id))
		})
	}
}

func TestLibrary_ListAndGet(t *testing.T) {
	root := t.TempDir()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	writeVideo(t, root, "older", &Meta{Title: "Older one", CreatedAt: older})
	writeVideo(t, root, "newer", &Meta{Title: "Newer one", SourceURL: "https://youtu.be/x", CreatedAt: newer})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "incomplete"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".tmp-x"), 0o755))

	lib := NewLibrary(root, logsvc.NewNopLogger())
	videos, err := lib.List()
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "newer", videos[0].ID)
	assert.Equal(t, "older", videos[1].ID)

	vid, err := lib.Get("newer")
	require.NoError(t, err)
	assert.Equal(t, "Newer one", vid.Title)
	assert.Equal(t, "https://youtu.be/x", vid.SourceURL)
	assert.Equal(t, "/hls/newer/index.m3u8", vid.PlaylistURL)
	assert.Equal(t, 2, vid.Segments)
	assert.True(t, vid.SizeBytes > 150)

	_, err = lib.Get("incomplete")
	assert.True(t, core.IsNotFound(err))
	_, err = lib.Get("../older")
	assert.Equal(t, ErrInvalidID, err)
}

func TestLibrary_MissingDir(t *testing.T) {
	videos, err := NewLibrary(filepath.Join(t.TempDir(), "nope"), logsvc.NewNopLogger()).List()
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestLibrary_NoMetaUsesID(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, root, "bare", nil)

	vid, err := NewLibrary(root, logsvc.NewNopLogger()).Get("bare")
	require.NoError(t, err)
	assert.Equal(t, "bare", vid.Title)
	assert.False(t, vid.CreatedAt.IsZero())
}

func TestLibrary_BrokenMetaFallsBack(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, root, "good", &Meta{Title: "Good one", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	writeVideo(t, root, "bad", nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad", metaName), []byte("{not json"), 0o644))

	lib := NewLibrary(root, logsvc.NewNopLogger())
	videos, err := lib.List()
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	vid, err := lib.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, "bad", vid.Title)
	assert.False(t, vid.CreatedAt.IsZero())
}

func newTestConverter(t *testing.T) (*Converter, *Library) {
	t.Helper()
	lib := NewLibrary(filepath.Join(t.TempDir(), "hls"), logsvc.NewNopLogger())
	conf := core.VideoConfig{WorkDir: t.TempDir(), FFmpegBinary: "ffmpeg", SegmentSeconds: 6}
	return NewConverter(conf, lib, nil, logsvc.NewNopLogger()), lib
}

func TestConverter_Convert(t *testing.T) {
	captured := fakeFFmpeg(t, "ok")
	conv, lib := newTestConverter(t)

	src := filepath.Join(t.TempDir(), "lecture-1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("not really a video"), 0o644))

	res := conv.Convert(context.Background(), src, "lecture-1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/hls/lecture-1/index.m3u8", res.Playlist)
	assert.Contains(t, strings.Join(*captured, " "), "-hls_time 6")
	assert.Contains(t, strings.Join(*captured, " "), "-hls_playlist_type vod")

	vid, err := lib.Get("lecture-1")
	require.NoError(t, err)
	assert.Equal(t, "lecture-1", vid.Title)
	assert.Equal(t, 1, vid.Segments)

	entries, err := os.ReadDir(lib.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1) // no temp dir left behind

	res = conv.Convert(context.Background(), src, "lecture-1")
	assert.False(t, res.Success)
	assert.Equal(t, ErrVideoExists.Error(), res.Error)
}

func TestConverter_FailureLeavesNoVideo(t *testing.T) {
	fakeFFmpeg(t, "fail")
	conv, lib := newTestConverter(t)

	src := filepath.Join(t.TempDir(), "broken.mp4")
	require.NoError(t, os.WriteFile(src, []byte("garbage"), 0o644))

	res := conv.Convert(context.Background(), src, "broken")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid data found")
	assert.False(t, lib.Exists("broken"))

	entries, err := os.ReadDir(lib.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConverter_FailureClosesStalledSource(t *testing.T) {
	fakeFFmpeg(t, "fail")
	conv, lib := newTestConverter(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select { // the rest never comes
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	done := make(chan Result, 1)
	go func() { done <- conv.Convert(context.Background(), srv.URL+"/lecture.mp4", "stalled") }()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "Invalid data found")
		assert.False(t, lib.Exists("stalled"))
	case <-time.After(10 * time.Second):
		t.Fatal("convert still blocked on the source after ffmpeg exited")
	}
}

func TestConverter_RejectsBadInput(t *testing.T) {
	conv, _ := newTestConverter(t)

	res := conv.Convert(context.Background(), "/tmp/x.mp4", "../escape")
	assert.False(t, res.Success)
	assert.Equal(t, "../escape", res.VideoID)

	res = conv.Convert(context.Background(), " ", "ok-id")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "source")
}

type fakeYouTube struct {
	stream Stream
	err    error
}

func (f fakeYouTube) Resolve(context.Context, string) (Stream, error) { return f.stream, f.err }

func (f fakeYouTube) Open(context.Context, string) (io.ReadCloser, Stream, error) {
	return io.NopCloser(strings.NewReader("yt")), f.stream, f.err
}

func TestExtractor_Extract(t *testing.T) {
	ext := NewExtractor(fakeYouTube{stream: Stream{URL: "https://rr1.googlevideo.com/x", Title: "Go talk", MimeType: "video/mp4", Duration: 90 * time.Second}})

	tests := []struct {
		name    string
		url     string
		want    Extraction
		wantErr error
	}{
		{
			name: "youtube",
			url:  "https://www.youtube.com/watch?v=abc",
			want: Extraction{URL: "https://rr1.googlevideo.com/x", Source: "youtube", Title: "Go talk", MimeType: "video/mp4", DurationSeconds: 90},
		},
		{
			name: "short youtube",
			url:  "https://youtu.be/abc",
			want: Extraction{URL: "https://rr1.googlevideo.com/x", Source: "youtube", Title: "Go talk", MimeType: "video/mp4", DurationSeconds: 90},
		},
		{
			name: "hls",
			url:  "https://cdn.test/v/index.m3u8",
			want: Extraction{URL: "https://cdn.test/v/index.m3u8", Source: "direct", MimeType: "application/vnd.apple.mpegurl"},
		},
		{
			name: "mp4",
			url:  "https://cdn.test/v/clip.MP4",
			want: Extraction{URL: "https://cdn.test/v/clip.MP4", Source: "direct", MimeType: "video/mp4"},
		},
		{name: "page", url: "https://vimeo.com/123", wantErr: ErrUnsupportedURL},
		{name: "not a url", url: "file:///etc/passwd", wantErr: ErrUnsupportedURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ext.Extract(context.Background(), tt.url)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestMuxed(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1"`, Height: 1080},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a"`, AudioChannels: 2},
		{ItagNo: 43, MimeType: `video/webm; codecs="vp8"`, Height: 720, AudioChannels: 2},
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1, mp4a"`, Height: 360, AudioChannels: 2, Bitrate: 500},
		{ItagNo: 22, MimeType: `video/mp4; codecs="avc1, mp4a"`, Height: 720, AudioChannels: 2, Bitrate: 1000},
	}
	best := bestMuxed(formats)
	require.NotNil(t, best)
	assert.Equal(t, 22, best.ItagNo)

	assert.Nil(t, bestMuxed(formats[:2]))
}
