package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Price       int            `db:"price"`
	Featured    bool           `db:"featured"`
	Thumbnail   null.String    `db:"thumbnail"`
	Tags        pq.StringArray `db:"tags"`
	CreatedAt   null.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Featured:    r.Featured,
		Thumbnail:   r.Thumbnail,
		Tags:        r.Tags,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// courseSelect aggregates tag names into an array; courses without tags get
// an empty array, not NULL.
const courseSelect = `
	SELECT c.*,
	       COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}') AS tags
	FROM course c
	LEFT JOIN course_tag ct ON ct.course_id = c.id
	LEFT JOIN tag t ON t.id = ct.tag_id`

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO course (id, title, description, price, featured, thumbnail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, query,
		crs.ID, crs.Title, crs.Description, crs.Price, crs.Featured, crs.Thumbnail, crs.CreatedAt, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}

	if err = setCourseTags(ctx, tx, crs.ID, crs.Tags); err != nil {
		return course.Course{}, err
	}

	if err = tx.Commit(); err != nil {
		return course.Course{}, errors.Wrap(err, "committing course")
	}
	return crs, nil
}

func setCourseTags(ctx context.Context, exec core.DBExecutor, courseID string, tags []string) error {
	for _, tag := range tags {
		var tagID int
		query := `
			INSERT INTO tag (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`
		if err := exec.QueryRowContext(ctx, query, tag).Scan(&tagID); err != nil {
			return errors.Wrap(err, "upserting tag")
		}
		query = `INSERT INTO course_tag (course_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := exec.ExecContext(ctx, query, courseID, tagID); err != nil {
			return errors.Wrap(err, "linking tag")
		}
	}
	return nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	query := courseSelect + ` WHERE c.id = $1 GROUP BY c.id`
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound)
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter *course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	query := courseSelect
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			where = append(where, `(c.title ILIKE `+arg(pattern)+` OR c.description ILIKE `+arg(pattern)+`)`)
		}
		if filter.Tag != "" {
			where = append(where, `EXISTS (
				SELECT 1 FROM course_tag fct
				JOIN tag ft ON ft.id = fct.tag_id
				WHERE fct.course_id = c.id AND ft.name = `+arg(filter.Tag)+`)`)
		}
		if filter.Featured != nil {
			where = append(where, `c.featured = `+arg(*filter.Featured))
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` GROUP BY c.id ORDER BY ` + orderBy("c.", "created_at DESC", map[string]bool{"created_at": true, "title": true}, ordering...)

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

type lessonRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	Title       string      `db:"title"`
	FreePreview bool        `db:"free_preview"`
	VideoSource string      `db:"video_source"`
	VideoURL    null.String `db:"video_url"`
	Content     string      `db:"content"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (r lessonRow) toLesson() course.Lesson {
	return course.Lesson{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		FreePreview: r.FreePreview,
		VideoSource: r.VideoSource,
		VideoURL:    r.VideoURL,
		Content:     r.Content,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

func (repo *courseRepository) CreateLesson(ctx context.Context, les course.Lesson) (course.Lesson, error) {
	query := `
		INSERT INTO lesson (id, course_id, title, free_preview, video_source, video_url, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, query,
		les.ID, les.CourseID, les.Title, les.FreePreview, les.VideoSource, les.VideoURL, les.Content, les.CreatedAt, les.UpdatedAt)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return les, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	var row lessonRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lesson WHERE id = $1`, id); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound)
	}
	return row.toLesson(), nil
}

func (repo *courseRepository) QueryLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	var rows []lessonRow
	query := `SELECT * FROM lesson WHERE course_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, nil
}

func (repo *courseRepository) IsCourseMember(ctx context.Context, courseID, userID string) (bool, error) {
	var member bool
	query := `SELECT EXISTS (SELECT 1 FROM course_member WHERE course_id = $1 AND user_id = $2)`
	if err := repo.db.GetContext(ctx, &member, query, courseID, userID); err != nil {
		return false, errors.Wrap(err, "checking membership")
	}
	return member, nil
}

func (repo *courseRepository) QueryMemberCourses(ctx context.Context, userID string) ([]course.Course, error) {
	query := courseSelect + `
		WHERE EXISTS (SELECT 1 FROM course_member cm WHERE cm.course_id = c.id AND cm.user_id = $1)
		GROUP BY c.id ORDER BY c.created_at DESC`
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying member courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}
