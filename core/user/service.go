package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name,
		// User.Username or User.Email.
		FilterUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)

		// GetProfile returns ErrNotFound when no profile row exists;
		// callers normally go through Service.GetProfile which defaults it.
		GetProfile(ctx context.Context, userID string) (Profile, error)
		UpsertProfile(ctx context.Context, prof Profile) (Profile, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{conf: conf, repo: repo, mailSvc: mailSvc}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

// Register creates an active account and sends the welcome email.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeEmail(usr User) {
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: struct{ Username string }{Username: usr.Username},
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		UpdatedAt: nowFunc().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: "old password is incorrect"})
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// GetProfile never fails on a missing row: accounts that predate profiles
// resolve to the explicit default (regular, no VIP expiry).
func (svc *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	prof, err := svc.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return DefaultProfile(userID), nil
		}
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	return prof, nil
}

// UpdateProfile sets the profile fields a user may edit themselves; role and
// VIP expiry are not among them.
func (svc *Service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error) {
	prof, err := svc.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if up.Avatar != "" {
		prof.Avatar = null.StringFrom(up.Avatar)
	}
	return svc.repo.UpsertProfile(ctx, prof)
}

// GrantVIP makes the user a VIP and extends the expiry by the given duration.
// A still-valid VIP extends from the current expiry, anyone else from now.
// Passing 0 uses the configured default duration.
func (svc *Service) GrantVIP(ctx context.Context, userID string, duration time.Duration) (Profile, error) {
	if _, err := svc.GetByID(ctx, userID); err != nil {
		return Profile{}, err
	}
	if duration <= 0 {
		duration = svc.conf.VIPDefaultDuration
	}

	prof, err := svc.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	now := nowFunc().UTC()
	base := now
	if prof.IsVIPValid(now) {
		base = prof.VIPExpiry.Time
	}
	prof.Role = RoleVIP
	prof.VIPExpiry = null.TimeFrom(base.Add(duration))
	return svc.repo.UpsertProfile(ctx, prof)
}

// MakeAdmin promotes the user's profile to the admin role.
// Operational tooling only; not exposed over the API.
func (svc *Service) MakeAdmin(ctx context.Context, userID string) (Profile, error) {
	if _, err := svc.GetByID(ctx, userID); err != nil {
		return Profile{}, err
	}
	prof, err := svc.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	prof.Role = RoleAdmin
	return svc.repo.UpsertProfile(ctx, prof)
}
