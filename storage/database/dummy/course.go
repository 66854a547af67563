package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		courses = append(courses, *c)
	}
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter *course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	courses := repo.query()

	if filter != nil && !filter.IsEmpty() {
		filtered := courses[:0]
		for _, crs := range courses {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(crs.Title), search) &&
					!strings.Contains(strings.ToLower(crs.Description), search) {
					continue
				}
			}
			if filter.Tag != "" && !hasTag(crs, filter.Tag) {
				continue
			}
			if filter.Featured != nil && crs.Featured != *filter.Featured {
				continue
			}
			filtered = append(filtered, crs)
		}
		courses = filtered
	}

	sortCourses(courses, ordering...)
	return courses, nil
}

func hasTag(crs course.Course, tag string) bool {
	for _, t := range crs.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// sortCourses defaults to newest first, like the SQL repository.
func sortCourses(courses []course.Course, ordering ...core.DBOrdering) {
	less := func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) }
	if len(ordering) > 0 {
		ord := ordering[0]
		switch ord.Field {
		case "title":
			less = func(i, j int) bool {
				if ord.Ascending {
					return courses[i].Title < courses[j].Title
				}
				return courses[i].Title > courses[j].Title
			}
		case "created_at":
			less = func(i, j int) bool {
				if ord.Ascending {
					return courses[i].CreatedAt.Before(courses[j].CreatedAt)
				}
				return courses[i].CreatedAt.After(courses[j].CreatedAt)
			}
		}
	}
	sort.Slice(courses, less)
}

func (repo *courseRepository) CreateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[les.CourseID]; !ok {
		return course.Lesson{}, course.ErrCourseNotFound
	}
	repo.db.lessons[les.ID] = &les
	return les, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if les, ok := repo.db.lessons[id]; ok {
		return *les, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) QueryLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lessons := make([]course.Lesson, 0)
	for _, les := range repo.db.lessons {
		if les.CourseID == courseID {
			lessons = append(lessons, *les)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].CreatedAt.Before(lessons[j].CreatedAt) })
	return lessons, nil
}

func (repo *courseRepository) IsCourseMember(ctx context.Context, courseID, userID string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.db.isMember(courseID, userID), nil
}

func (repo *courseRepository) QueryMemberCourses(ctx context.Context, userID string) ([]course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	courses := make([]course.Course, 0)
	for courseID, set := range repo.db.members {
		if set[userID] {
			if crs, ok := repo.db.courses[courseID]; ok {
				courses = append(courses, *crs)
			}
		}
	}
	sortCourses(courses)
	return courses, nil
}
