package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
)

type newUser struct {
	name        string
	email       string
	designation string
	department  string
	password    string
	isAdmin     bool
}

// addUser updates or creates an active employee.Employee
func (cli *commandLine) addUser(nu newUser) error {
	ctx := context.Background()
	email := core.CleanString(nu.email, true /* lower */)
	now := core.NowFunc()

	emp, err := cli.empRepo.GetEmployeeByEmail(ctx, email)
	exists := err == nil
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		emp = employee.Employee{
			Email:     email,
			Role:      employee.RoleMember,
			CreatedAt: now,
		}
	}

	emp.Name = core.CleanString(nu.name)
	emp.Designation = core.CleanString(nu.designation)
	emp.Department = core.CleanString(nu.department)
	if nu.isAdmin {
		emp.Role = employee.RoleAdmin
	}
	emp.IsActive = true
	emp.UpdatedAt = now
	if err = emp.SetPassword(nu.password); err != nil {
		return err
	}

	if exists {
		_, err = cli.empRepo.UpdateEmployee(ctx, emp)
	} else {
		_, err = cli.empRepo.CreateEmployee(ctx, emp)
	}
	return err
}
