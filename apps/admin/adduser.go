package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/user"
)

// addUser updates or creates an account. -admin promotes its profile.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Name:      uname,
			Username:  uname,
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
	} else {
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		isActive := true
		if usr, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive); err != nil {
			return err
		}
	}

	if isAdmin {
		if _, err = cli.usrSvc.MakeAdmin(ctx, usr.ID); err != nil {
			return err
		}
	}
	return nil
}
