package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
)

// NewConfig returns a self-contained configuration for tests; nothing is read
// from the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:              true,
		TestMode:           true,
		Env:                "test",
		AppName:            "Mekesim",
		SecretKey:          "secret",
		FrontendBaseURL:    "https://mekesim.test",
		DefaultFromEmail:   mail.Address{Name: "Mekesim", Address: "noreply@mekesim.test"},
		VIPDefaultDuration: 365 * 24 * time.Hour,
		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           5 * time.Second,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// SetRole writes the user's profile with the given role; a vip role gets the
// provided expiry.
func SetRole(t *testing.T, repo user.Repository, userID, role string, vipExpiry ...time.Time) user.Profile {
	t.Helper()

	prof := user.Profile{UserID: userID, Role: role}
	if len(vipExpiry) > 0 {
		prof.VIPExpiry = null.TimeFrom(vipExpiry[0].UTC())
	}
	prof, err := repo.UpsertProfile(context.Background(), prof)
	if err != nil {
		t.Fatalf("SetRole() failed: %v", err)
	}
	return prof
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title string,
	price int,
	featured bool,
	tags ...string,
) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs := course.Course{
		ID:        uuid.New().String(),
		Title:     title,
		Price:     price,
		Featured:  featured,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateLesson(
	t *testing.T,
	repo course.Repository,
	courseID, title string,
	freePreview bool,
) course.Lesson {
	t.Helper()

	now := time.Now().UTC()
	les := course.Lesson{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       title,
		FreePreview: freePreview,
		VideoSource: course.SourceLocal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	les, err := repo.CreateLesson(context.Background(), les)
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return les
}

func CreateOrder(
	t *testing.T,
	repo order.Repository,
	number, userID, courseID, status string,
	price int,
) order.Order {
	t.Helper()

	now := time.Now().UTC()
	ord := order.Order{
		ID:          uuid.New().String(),
		OrderNumber: number,
		UserID:      userID,
		CourseID:    courseID,
		Price:       types.NewDecimal(decimal.New(int64(price), 0)),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ord, err := repo.CreateOrder(context.Background(), ord)
	if err != nil {
		t.Fatalf("CreateOrder() failed: %v", err)
	}
	return ord
}
