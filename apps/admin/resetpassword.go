package main

import (
	"context"

	"github.com/collegepense/pense/core/user"
)

// resetPassword replaces the password and signs the professor out everywhere.
func (cli *commandLine) resetPassword(email, pwd, confirm string) error {
	return cli.usrSvc.SetPassword(context.Background(), user.SetUserPassword{
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
}
