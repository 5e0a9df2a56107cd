package main

import (
	"context"

	"github.com/showtime/portal/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	emp, err := cli.empRepo.GetEmployeeByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := emp.SetPassword(pwd); err != nil {
		return err
	}
	emp.UpdatedAt = core.NowFunc()
	if _, err := cli.empRepo.UpdateEmployee(ctx, emp); err != nil {
		return err
	}
	return nil
}
