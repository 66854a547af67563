package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mekesim/backend/core/user"
)

func (cli *commandLine) grantVIP(uname string, days int) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		return err
	}
	prof, err := cli.usrSvc.GrantVIP(ctx, usr.ID, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now VIP until %s\n", usr.Username, prof.VIPExpiry.Time.Format(time.RFC3339))
	return nil
}
