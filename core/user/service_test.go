package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/user"
	emailsvc "github.com/mekesim/backend/services/email"
	dummydb "github.com/mekesim/backend/storage/database/dummy"
	testutil "github.com/mekesim/backend/tests"
)

func setup(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("opening dummy db: %v", err)
	}
	conf := testutil.NewConfig()
	repo := dummydb.NewUserRepository(db)
	emailsvc.ClearSentMessages()
	return user.NewService(conf, repo, emailsvc.NewConsoleServiceMock(conf)), repo
}

func TestProfile_IsVIPValid(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		prof user.Profile
		want bool
	}{
		{name: "regular", prof: user.DefaultProfile("u1")},
		{name: "admin", prof: user.Profile{UserID: "u1", Role: user.RoleAdmin}},
		{name: "vip without expiry", prof: user.Profile{UserID: "u1", Role: user.RoleVIP}},
		{name: "vip expired", prof: user.Profile{UserID: "u1", Role: user.RoleVIP, VIPExpiry: null.TimeFrom(now.Add(-time.Second))}},
		{name: "vip valid", prof: user.Profile{UserID: "u1", Role: user.RoleVIP, VIPExpiry: null.TimeFrom(now.Add(time.Hour))}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prof.IsVIPValid(now); got != tt.want {
				t.Errorf("IsVIPValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Register(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{
		Name:            "Tester",
		Username:        "tester01",
		Email:           "tester@test.cd",
		Password:        "s3cretW0rd!",
		PasswordConfirm: "s3cretW0rd!",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if usr.ID == "" {
		t.Error("Register() did not assign an ID")
	}
	if !usr.IsActive {
		t.Error("Register() should create an active account")
	}
	if err := usr.CheckPassword("s3cretW0rd!"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("wrong"); err == nil {
		t.Error("CheckPassword() accepted a wrong password")
	}

	// welcome email
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent emails = %d, want 1", len(emailsvc.SentMessages))
	}
	if got := emailsvc.SentMessages[0].Subject; got != "Welcome!" {
		t.Errorf("welcome subject = %q", got)
	}
}

func TestService_CheckUniqueness(t *testing.T) {
	svc, repo := setup(t)

	existing := testutil.CreateUser(t, repo, "Tester", "tester01", "tester@test.cd", "", true)

	tests := []struct {
		name      string
		uname     string
		email     string
		excl      []user.User
		wantField string
	}{
		{name: "available", uname: "other01", email: "other@test.cd"},
		{name: "username taken", uname: "tester01", email: "other@test.cd", wantField: "username"},
		{name: "email taken", uname: "other01", email: "tester@test.cd", wantField: "email"},
		{name: "self excluded", uname: "tester01", email: "tester@test.cd", excl: []user.User{existing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckUniqueness(tt.uname, tt.email, tt.excl...)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("CheckUniqueness() error = %v, want nil", err)
				}
				return
			}
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("CheckUniqueness() error = %v, want *core.ValidationError", err)
			}
			if len(vErr.Fields) != 1 || vErr.Fields[0].Field != tt.wantField {
				t.Errorf("CheckUniqueness() fields = %v, want %q", vErr.Fields, tt.wantField)
			}
		})
	}
}

func TestService_GetProfile_defaults(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Tester", "tester01", "tester@test.cd", "", true)

	prof, err := svc.GetProfile(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetProfile() failed: %v", err)
	}
	if prof.UserID != usr.ID || prof.Role != user.RoleRegular || prof.VIPExpiry.Valid {
		t.Errorf("GetProfile() = %+v, want default regular profile", prof)
	}
}

func TestService_GrantVIP(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Tester", "tester01", "tester@test.cd", "", true)
	conf := testutil.NewConfig()

	t.Run("unknown user", func(t *testing.T) {
		if _, err := svc.GrantVIP(ctx, "nope", 0); err != user.ErrNotFound {
			t.Errorf("GrantVIP() error = %v, want %v", err, user.ErrNotFound)
		}
	})

	t.Run("default duration from now", func(t *testing.T) {
		before := time.Now().UTC()
		prof, err := svc.GrantVIP(ctx, usr.ID, 0)
		if err != nil {
			t.Fatalf("GrantVIP() failed: %v", err)
		}
		if prof.Role != user.RoleVIP {
			t.Errorf("GrantVIP() role = %s, want %s", prof.Role, user.RoleVIP)
		}
		if !prof.VIPExpiry.Valid {
			t.Fatal("GrantVIP() did not set an expiry")
		}
		want := before.Add(conf.VIPDefaultDuration)
		if prof.VIPExpiry.Time.Before(want) || prof.VIPExpiry.Time.After(want.Add(time.Minute)) {
			t.Errorf("GrantVIP() expiry = %v, want ~%v", prof.VIPExpiry.Time, want)
		}
	})

	t.Run("valid vip extends from current expiry", func(t *testing.T) {
		prof, err := svc.GetProfile(ctx, usr.ID)
		if err != nil {
			t.Fatalf("GetProfile() failed: %v", err)
		}
		firstExpiry := prof.VIPExpiry.Time

		prof, err = svc.GrantVIP(ctx, usr.ID, 30*24*time.Hour)
		if err != nil {
			t.Fatalf("GrantVIP() failed: %v", err)
		}
		want := firstExpiry.Add(30 * 24 * time.Hour)
		if !prof.VIPExpiry.Time.Equal(want) {
			t.Errorf("GrantVIP() expiry = %v, want %v", prof.VIPExpiry.Time, want)
		}
	})
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Tester", "tester01", "tester@test.cd", "oldPassw0rd!", true)

	t.Run("wrong old password", func(t *testing.T) {
		_, err := svc.ChangePassword(ctx, usr, user.ChangePassword{
			OldPassword: "wrong", NewPassword: "newPassw0rd!", NewPasswordConfirm: "newPassw0rd!",
		})
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("ChangePassword() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("ok", func(t *testing.T) {
		updated, err := svc.ChangePassword(ctx, usr, user.ChangePassword{
			OldPassword: "oldPassw0rd!", NewPassword: "newPassw0rd!", NewPasswordConfirm: "newPassw0rd!",
		})
		if err != nil {
			t.Fatalf("ChangePassword() failed: %v", err)
		}
		if err := updated.CheckPassword("newPassw0rd!"); err != nil {
			t.Errorf("CheckPassword() after change failed: %v", err)
		}
	})
}

func TestService_UpdateProfile(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Tester", "tester01", "tester@test.cd", "", true)

	prof, err := svc.UpdateProfile(ctx, usr.ID, user.UpdateProfile{Avatar: "avatars/tester.png"})
	if err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}
	if !prof.Avatar.Valid || prof.Avatar.String != "avatars/tester.png" {
		t.Errorf("UpdateProfile() avatar = %v", prof.Avatar)
	}
	if prof.Role != user.RoleRegular {
		t.Errorf("UpdateProfile() must not touch the role, got %s", prof.Role)
	}
}
