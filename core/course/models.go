package course

import (
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
)

// Lesson video sources
const (
	SourceBili  = "bili"
	SourceQiniu = "qiniu"
	SourceLocal = "local"
)

var AllVideoSources = []string{SourceBili, SourceLocal, SourceQiniu}

type Course struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       int         `json:"price"` // 0 = free
	Featured    bool        `json:"feature"`
	Thumbnail   null.String `json:"thumbnail"`
	Tags        []string    `json:"tags"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

func (c Course) IsFree() bool { return c.Price == 0 }

type Lesson struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"course_id"`
	Title       string      `json:"title"`
	FreePreview bool        `json:"free_preview"`
	VideoSource string      `json:"video_source"`
	VideoURL    null.String `json:"video_url"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       int      `json:"price" validate:"gte=0"`
	Featured    bool     `json:"feature"`
	Thumbnail   string   `json:"thumbnail"`
	Tags        []string `json:"tags"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	for i, tag := range nc.Tags {
		nc.Tags[i] = core.CleanString(tag, true /* lower */)
	}
	return validate.Struct(nc)
}

// NewLesson contains information needed to create a new Lesson on a Course.
type NewLesson struct {
	Title       string `json:"title" validate:"required"`
	FreePreview bool   `json:"free_preview"`
	VideoSource string `json:"video_source" validate:"required,videosource"`
	VideoURL    string `json:"video_url"`
	Content     string `json:"content"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Tag      string `query:"tag"`
	Featured *bool  `query:"feature"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Tag == "" && qf.Featured == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Tag = core.CleanString(qf.Tag, true /* lower */)
}

var (
	videoSourceTag  = "videosource"
	videoSourceText = "invalid video source"
)

// RegisterValidators registers course-specific validation tags.
// Must be called once at startup, after core.InitValidators.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(videoSourceTag, videoSourceValidation)
	core.RegisterCustomTranslation(validate, translator, videoSourceTag, videoSourceText)
}

func videoSourceValidation(fl validator.FieldLevel) bool {
	src := fl.Field().String()
	sort.Strings(AllVideoSources)
	if idx := sort.SearchStrings(AllVideoSources, src); idx < len(AllVideoSources) {
		return AllVideoSources[idx] == src
	}
	return false
}
