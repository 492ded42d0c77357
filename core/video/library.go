package video

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const (
	playlistName = "index.m3u8"
	metaName     = "meta.json"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("video")
	ErrInvalidID = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "may only contain letters, digits, '-' and '_'"})
)

// Meta is stored as meta.json next to the playlist.
type Meta struct {
	Title           string    `json:"title"`
	SourceURL       string    `json:"source_url,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Video struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"source_url,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	PlaylistURL     string    `json:"playlist_url"`
	Segments        int       `json:"segments"`
	SizeBytes       int64     `json:"size_bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidID reports whether id is safe to use as a directory name.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// PlaylistURL is the path the HLS file server exposes the video under.
func PlaylistURL(id string) string {
	return path.Join("/hls", id, playlistName)
}

// Library reads converted videos from disk: one directory per video.
type Library struct {
	dir    string
	logger core.Logger
}

func NewLibrary(dir string, logger core.Logger) *Library {
	return &Library{dir: dir, logger: logger}
}

func (lib *Library) Dir() string {
	return lib.dir
}

// List returns the videos, newest first. A missing library directory is an empty library.
func (lib *Library) List() ([]Video, error) {
	entries, err := os.ReadDir(lib.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Video{}, nil
		}
		return nil, errors.Wrap(err, "reading library")
	}

	videos := make([]Video, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}
		vid, err := lib.load(entry.Name())
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return nil, err
		}
		videos = append(videos, vid)
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

func (lib *Library) Get(id string) (Video, error) {
	if !ValidID(id) {
		return Video{}, ErrInvalidID
	}
	return lib.load(id)
}

// Exists reports whether a playable video is stored under id.
func (lib *Library) Exists(id string) bool {
	_, err := os.Stat(filepath.Join(lib.dir, id, playlistName))
	return err == nil
}

func (lib *Library) load(id string) (Video, error) {
	dir := filepath.Join(lib.dir, id)
	if _, err := os.Stat(filepath.Join(dir, playlistName)); err != nil {
		if os.IsNotExist(err) {
			return Video{}, ErrNotFound
		}
		return Video{}, errors.Wrap(err, "reading playlist")
	}

	vid := Video{ID: id, Title: id, PlaylistURL: PlaylistURL(id)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Video{}, errors.Wrap(err, "reading video dir")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return Video{}, errors.Wrap(err, "reading segment info")
		}
		vid.SizeBytes += info.Size()
		if ext := filepath.Ext(entry.Name()); ext == ".ts" || ext == ".m4s" {
			vid.Segments++
		}
	}

	meta, err := readMeta(dir)
	switch {
	case err == nil:
		if strings.TrimSpace(meta.Title) != "" {
			vid.Title = meta.Title
		}
		vid.SourceURL = meta.SourceURL
		vid.DurationSeconds = meta.DurationSeconds
		vid.CreatedAt = meta.CreatedAt
	case !os.IsNotExist(errors.Cause(err)):
		// a broken sidecar only loses the metadata
		lib.logger.Warn("reading video metadata", err, map[string]interface{}{"video_id": id})
	}
	if vid.CreatedAt.IsZero() {
		if info, err := os.Stat(dir); err == nil {
			vid.CreatedAt = info.ModTime().UTC()
		}
	}
	return vid, nil
}

func readMeta(dir string) (Meta, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaName))
	if err != nil {
		return Meta{}, errors.WithStack(err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, errors.Wrap(err, "decoding meta.json")
	}
	return meta, nil
}

func writeMeta(dir string, meta Meta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding meta.json")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, metaName), raw, 0o644), "writing meta.json")
}
