package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, ex := range excludedUsers {
		if ex.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, usr := range repo.query() {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.query() {
		switch {
		case filter.Username != "" && usr.Username == filter.Username:
			return usr, nil
		case filter.Email != "" && usr.Email == filter.Email:
			return usr, nil
		case filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users := repo.query()

	if filter != nil && !filter.IsEmpty() {
		filtered := users[:0]
		for _, usr := range users {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(usr.Name), search) &&
					!strings.Contains(strings.ToLower(usr.Username), search) &&
					!strings.Contains(strings.ToLower(usr.Email), search) {
					continue
				}
			}
			if filter.Role != "" {
				prof := repo.db.profiles[usr.ID]
				role := user.RoleRegular
				if prof != nil {
					role = prof.Role
				}
				if role != filter.Role {
					continue
				}
			}
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
			if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
				continue
			}
			if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
				continue
			}
			filtered = append(filtered, usr)
		}
		users = filtered
	}

	sortUsers(users, ordering...)
	return users, nil
}

// sortUsers defaults to newest first, like the SQL repository.
func sortUsers(users []user.User, ordering ...core.DBOrdering) {
	less := func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) }
	if len(ordering) > 0 {
		ord := ordering[0]
		switch ord.Field {
		case "username":
			less = func(i, j int) bool {
				if ord.Ascending {
					return users[i].Username < users[j].Username
				}
				return users[i].Username > users[j].Username
			}
		case "created_at":
			less = func(i, j int) bool {
				if ord.Ascending {
					return users[i].CreatedAt.Before(users[j].CreatedAt)
				}
				return users[i].CreatedAt.After(users[j].CreatedAt)
			}
		}
	}
	sort.Slice(users, less)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if !usr.UpdatedAt.IsZero() {
		orig.UpdatedAt = usr.UpdatedAt
	}
	return *orig, nil
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if prof, ok := repo.db.profiles[userID]; ok {
		return *prof, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) UpsertProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.profiles[prof.UserID] = &prof
	return prof, nil
}
