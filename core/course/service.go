package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
)

var (
	// errors
	ErrCourseNotFound = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")

	nowFunc = time.Now // mockable
)

type (
	// Repository is the catalog's persistence boundary. It deliberately has no
	// membership mutators: the course member set is written only by the order
	// engine's transition, in the same storage package.
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		// FilterCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Course.Title or
		// Course.Description; QueryFilter.Tag matches a tag name exactly.
		FilterCourses(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error)

		CreateLesson(ctx context.Context, les Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, courseID string) ([]Lesson, error)

		IsCourseMember(ctx context.Context, courseID, userID string) (bool, error)
		QueryMemberCourses(ctx context.Context, userID string) ([]Course, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	now := nowFunc().UTC()
	crs := Course{
		ID:          uuid.New().String(),
		Title:       nc.Title,
		Description: nc.Description,
		Price:       nc.Price,
		Featured:    nc.Featured,
		Thumbnail:   null.NewString(nc.Thumbnail, nc.Thumbnail != ""),
		Tags:        nc.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	return svc.repo.FilterCourses(ctx, filter, ordering...)
}

func (svc *Service) AddLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error) {
	if err := nl.Validate(svc.validate); err != nil {
		return Lesson{}, err
	}
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Lesson{}, err
	}
	now := nowFunc().UTC()
	les := Lesson{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       nl.Title,
		FreePreview: nl.FreePreview,
		VideoSource: nl.VideoSource,
		VideoURL:    null.NewString(nl.VideoURL, nl.VideoURL != ""),
		Content:     nl.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateLesson(ctx, les)
}

func (svc *Service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

// Lessons returns all lessons of a course, ungated: entitlement checks are the
// resolver's concern, not the catalog's.
func (svc *Service) Lessons(ctx context.Context, courseID string) ([]Lesson, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryLessons(ctx, courseID)
}

// UserCourses lists the courses a user can open from their library:
// all of them for a valid VIP, otherwise the courses they are a member of.
func (svc *Service) UserCourses(ctx context.Context, userID string, vip bool) ([]Course, error) {
	if vip {
		return svc.repo.FilterCourses(ctx, nil)
	}
	return svc.repo.QueryMemberCourses(ctx, userID)
}

// Search does a substring match on course titles and descriptions.
func (svc *Service) Search(ctx context.Context, keyword string, limit int) ([]Course, error) {
	keyword = core.CleanString(keyword)
	if keyword == "" {
		return nil, nil
	}
	courses, err := svc.repo.FilterCourses(ctx, &QueryFilter{Search: keyword})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(courses) > limit {
		courses = courses[:limit]
	}
	return courses, nil
}
