package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates an active user.User with the given role.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd, role string) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if !core.StringInSlice(role, user.AllRoles) {
		return errors.Errorf("unknown role %q", role)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil && !core.IsNotFound(err) {
		return err
	}
	created := err != nil
	if created {
		// a user with this username doesn't exist, but one may already use the email
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email); err != nil {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{ID: uuid.NewString(), Username: uname, CreatedAt: now}
	} else if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email, usr); err != nil {
		return err
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Email = email
	if !core.StringInSlice(role, usr.Roles) {
		usr.Roles = append(usr.Roles, role)
	}
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()

	if created {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved\n", usr.Username)
	return nil
}
