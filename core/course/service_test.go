package course_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
	dummydb "github.com/mekesim/backend/storage/database/dummy"
	testutil "github.com/mekesim/backend/tests"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()

	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	course.RegisterValidators(validate, translator)
	return validate
}

func setup(t *testing.T) (*dummydb.DB, *course.Service, course.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("opening dummy db: %v", err)
	}
	repo := dummydb.NewCourseRepository(db)
	return db, course.NewService(repo, newValidator(t)), repo
}

func TestService_Create(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	t.Run("title required", func(t *testing.T) {
		_, err := svc.Create(ctx, course.NewCourse{Price: 100})
		if _, ok := err.(validator.ValidationErrors); !ok {
			t.Errorf("Create() error = %v, want validator.ValidationErrors", err)
		}
	})

	t.Run("negative price rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, course.NewCourse{Title: "Nope", Price: -1})
		if _, ok := err.(validator.ValidationErrors); !ok {
			t.Errorf("Create() error = %v, want validator.ValidationErrors", err)
		}
	})

	t.Run("ok", func(t *testing.T) {
		crs, err := svc.Create(ctx, course.NewCourse{Title: " Go from scratch ", Price: 199, Tags: []string{" Go ", "beginner"}})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if crs.ID == "" {
			t.Error("Create() did not assign an ID")
		}
		if crs.Title != "Go from scratch" {
			t.Errorf("Create() title = %q, want cleaned", crs.Title)
		}
		if len(crs.Tags) != 2 || crs.Tags[0] != "go" {
			t.Errorf("Create() tags = %v, want lowered and cleaned", crs.Tags)
		}
	})

	t.Run("free course", func(t *testing.T) {
		crs, err := svc.Create(ctx, course.NewCourse{Title: "Intro"})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if !crs.IsFree() {
			t.Error("Create() price 0 should be free")
		}
	})
}

func TestService_Query(t *testing.T) {
	_, svc, repo := setup(t)
	ctx := context.Background()

	goCrs := testutil.CreateCourse(t, repo, "Go from scratch", 199, true, "go")
	pyCrs := testutil.CreateCourse(t, repo, "Python deep dive", 299, false, "python")
	free := testutil.CreateCourse(t, repo, "Welcome aboard", 0, false)

	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name    string
		filter  *course.QueryFilter
		wantIDs []string
	}{
		{name: "all", filter: nil, wantIDs: []string{goCrs.ID, pyCrs.ID, free.ID}},
		{name: "search title", filter: &course.QueryFilter{Search: "python"}, wantIDs: []string{pyCrs.ID}},
		{name: "search miss", filter: &course.QueryFilter{Search: "rust"}, wantIDs: nil},
		{name: "tag", filter: &course.QueryFilter{Tag: "go"}, wantIDs: []string{goCrs.ID}},
		{name: "featured", filter: &course.QueryFilter{Featured: bPtr(true)}, wantIDs: []string{goCrs.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := svc.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(courses) != len(tt.wantIDs) {
				t.Fatalf("Query() returned %d courses, want %d", len(courses), len(tt.wantIDs))
			}
			got := make(map[string]bool, len(courses))
			for _, crs := range courses {
				got[crs.ID] = true
			}
			for _, id := range tt.wantIDs {
				if !got[id] {
					t.Errorf("Query() missing course %s", id)
				}
			}
		})
	}
}

func TestService_Lessons(t *testing.T) {
	_, svc, repo := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, repo, "Go from scratch", 199, false)

	t.Run("unknown course", func(t *testing.T) {
		if _, err := svc.Lessons(ctx, "nope"); err != course.ErrCourseNotFound {
			t.Errorf("Lessons() error = %v, want %v", err, course.ErrCourseNotFound)
		}
	})

	t.Run("add and list", func(t *testing.T) {
		les, err := svc.AddLesson(ctx, crs.ID, course.NewLesson{Title: "Hello", VideoSource: course.SourceBili})
		if err != nil {
			t.Fatalf("AddLesson() failed: %v", err)
		}
		lessons, err := svc.Lessons(ctx, crs.ID)
		if err != nil {
			t.Fatalf("Lessons() failed: %v", err)
		}
		if len(lessons) != 1 || lessons[0].ID != les.ID {
			t.Errorf("Lessons() = %v, want [%s]", lessons, les.ID)
		}
	})

	t.Run("invalid video source", func(t *testing.T) {
		_, err := svc.AddLesson(ctx, crs.ID, course.NewLesson{Title: "Bad", VideoSource: "youtube"})
		if _, ok := err.(validator.ValidationErrors); !ok {
			t.Errorf("AddLesson() error = %v, want validator.ValidationErrors", err)
		}
	})
}

func TestService_UserCourses(t *testing.T) {
	db, svc, repo := setup(t)
	ctx := context.Background()

	crs1 := testutil.CreateCourse(t, repo, "Go from scratch", 199, false)
	crs2 := testutil.CreateCourse(t, repo, "Python deep dive", 299, false)
	db.SetCourseMember(crs1.ID, "u1", true)

	t.Run("member sees own courses", func(t *testing.T) {
		courses, err := svc.UserCourses(ctx, "u1", false)
		if err != nil {
			t.Fatalf("UserCourses() failed: %v", err)
		}
		if len(courses) != 1 || courses[0].ID != crs1.ID {
			t.Errorf("UserCourses() = %v, want [%s]", courses, crs1.ID)
		}
	})

	t.Run("vip sees everything", func(t *testing.T) {
		courses, err := svc.UserCourses(ctx, "u1", true)
		if err != nil {
			t.Fatalf("UserCourses() failed: %v", err)
		}
		if len(courses) != 2 {
			t.Errorf("UserCourses() returned %d courses, want 2 (incl %s)", len(courses), crs2.ID)
		}
	})
}

func TestService_Search(t *testing.T) {
	_, svc, repo := setup(t)
	ctx := context.Background()

	testutil.CreateCourse(t, repo, "Go from scratch", 199, false)
	testutil.CreateCourse(t, repo, "Go web services", 299, false)
	testutil.CreateCourse(t, repo, "Python deep dive", 299, false)

	t.Run("empty keyword", func(t *testing.T) {
		courses, err := svc.Search(ctx, "  ", 10)
		if err != nil {
			t.Fatalf("Search() failed: %v", err)
		}
		if courses != nil {
			t.Errorf("Search() = %v, want nil", courses)
		}
	})

	t.Run("match", func(t *testing.T) {
		courses, err := svc.Search(ctx, "go", 10)
		if err != nil {
			t.Fatalf("Search() failed: %v", err)
		}
		if len(courses) != 2 {
			t.Errorf("Search() returned %d courses, want 2", len(courses))
		}
	})

	t.Run("limit", func(t *testing.T) {
		courses, err := svc.Search(ctx, "go", 1)
		if err != nil {
			t.Fatalf("Search() failed: %v", err)
		}
		if len(courses) != 1 {
			t.Errorf("Search() returned %d courses, want 1", len(courses))
		}
	})
}
