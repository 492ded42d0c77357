package material

import (
	"path"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Kinds
const (
	KindVideo    = "video"
	KindHLS      = "hls"
	KindPDF      = "pdf"
	KindDocument = "document"
	KindLink     = "link"
)

var (
	Kinds = []string{KindVideo, KindHLS, KindPDF, KindDocument, KindLink}

	kindTag  = "mkind"
	kindText = "kind must be one of video, hls, pdf, document or link"

	extKinds = map[string]string{
		".mp4":  KindVideo,
		".webm": KindVideo,
		".mov":  KindVideo,
		".mkv":  KindVideo,
		".m3u8": KindHLS,
		".pdf":  KindPDF,
	}
)

type Material struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	Kind            string    `json:"kind"`
	URL             string    `json:"url"`
	StorageKey      string    `json:"-"`
	Position        int       `json:"position"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type NewMaterial struct {
	Title           string `json:"title" validate:"required,max=200"`
	Kind            string `json:"kind" validate:"required,mkind"`
	URL             string `json:"url" validate:"required,url"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Kind = core.CleanString(nm.Kind, true /* lower */)
	nm.URL = core.CleanString(nm.URL)
	return validate.Struct(nm)
}

type UpdateMaterial struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=200"`
	Kind            *string `json:"kind" validate:"omitempty,mkind"`
	URL             *string `json:"url" validate:"omitempty,url"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	if um.Title != nil {
		*um.Title = core.CleanString(*um.Title)
	}
	if um.Kind != nil {
		*um.Kind = core.CleanString(*um.Kind, true /* lower */)
	}
	return validate.Struct(um)
}

// Upload describes a file to store in the bucket as a course material.
type Upload struct {
	Title           string
	Filename        string
	ContentType     string
	DurationSeconds int
}

// KindFromFilename guesses the material kind from a file extension.
func KindFromFilename(filename string) string {
	if kind, ok := extKinds[strings.ToLower(path.Ext(filename))]; ok {
		return kind
	}
	return KindDocument
}

// InitValidators registers the material validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, kindTag, kindText, Kinds...)
}
