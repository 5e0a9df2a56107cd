package employee

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/presence"
)

var (
	// errors
	ErrNotFound    = fmt.Errorf("employee %w", core.ErrNotFound)
	ErrEmailExists = errors.New("an employee with this email already exists")
	ErrInvalidUID  = errors.New("invalid password reset link")
)

type (
	Repository interface {
		CreateEmployee(ctx context.Context, emp Employee) (Employee, error)
		GetEmployeeByID(ctx context.Context, id string) (Employee, error)
		GetEmployeeByEmail(ctx context.Context, email string) (Employee, error)
		// QueryEmployees applies AND operation on available QueryFilter fields.
		QueryEmployees(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Employee, error)
		UpdateEmployee(ctx context.Context, emp Employee) (Employee, error)
		DeleteEmployeesByID(ctx context.Context, ids ...string) error
	}

	// StatusSource reports the live presence of an employee.
	StatusSource interface {
		Status(id string) presence.Status
	}

	Service struct {
		repo     Repository
		statuses StatusSource
		mailSvc  core.EmailService
		logger   core.Logger
		tokenGen tokenGenerator
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	statuses StatusSource,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		statuses: statuses,
		mailSvc:  mailSvc,
		logger:   logger,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
			nowFunc:   time.Now,
		},
	}
}

func (svc *Service) withStatus(emp Employee) Employee {
	emp.Status = presence.StatusOffline
	if svc.statuses != nil {
		emp.Status = svc.statuses.Status(emp.ID)
	}
	return emp
}

func (svc *Service) Create(ctx context.Context, ne NewEmployee) (Employee, error) {
	now := core.NowFunc()
	emp := Employee{
		Name:        ne.Name,
		Email:       ne.Email,
		Designation: ne.Designation,
		Department:  ne.Department,
		DateOfBirth: ne.DateOfBirth,
		Role:        ne.Role,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if emp.Role == "" {
		emp.Role = RoleMember
	}
	if err := emp.SetPassword(ne.Password); err != nil {
		return Employee{}, errors.Wrap(err, "hashing password")
	}

	emp, err := svc.repo.CreateEmployee(ctx, emp)
	if err != nil {
		return Employee{}, uniquenessError(err)
	}
	return svc.withStatus(emp), nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Employee, error) {
	emps, err := svc.repo.QueryEmployees(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	for i := range emps {
		emps[i] = svc.withStatus(emps[i])
	}
	return emps, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Employee, error) {
	emp, err := svc.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	return svc.withStatus(emp), nil
}

// Exists reports whether an employee with the given id exists.
func (svc *Service) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := svc.repo.GetEmployeeByID(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Employee, error) {
	emp, err := svc.repo.GetEmployeeByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return Employee{}, err
	}
	return svc.withStatus(emp), nil
}

// Update applies a cleaned UpdateEmployee (see UpdateEmployee.Clean) to the Employee with given id.
func (svc *Service) Update(ctx context.Context, id string, ue UpdateEmployee) (Employee, error) {
	emp, err := svc.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		return Employee{}, err
	}

	emp.Name = ue.Name
	emp.Email = ue.Email
	emp.Designation = ue.Designation
	emp.Department = ue.Department
	emp.DateOfBirth = ue.DateOfBirth
	emp.Role = ue.Role
	if ue.IsActive != nil {
		emp.IsActive = *ue.IsActive
	}
	if ue.Password != "" {
		if err := emp.SetPassword(ue.Password); err != nil {
			return Employee{}, errors.Wrap(err, "hashing password")
		}
	}
	emp.UpdatedAt = core.NowFunc()

	emp, err = svc.repo.UpdateEmployee(ctx, emp)
	if err != nil {
		return Employee{}, uniquenessError(err)
	}
	return svc.withStatus(emp), nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteEmployeesByID(ctx, ids...)
}

func (svc *Service) SetLastLogin(ctx context.Context, emp Employee) (Employee, error) {
	emp.LastLogin = core.NowFunc()
	return svc.repo.UpdateEmployee(ctx, emp)
}

// RequestPasswordReset mails a password reset link to the active employee with the given email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	emp, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !emp.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: emp.Name, Address: emp.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  emp.Name,
			"UID":   encodeUID(emp),
			"Token": svc.tokenGen.makeToken(emp),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidUID, core.FieldError{Field: "uid", Error: ErrInvalidUID.Error()})
	}
	emp, err := svc.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError(ErrInvalidUID, core.FieldError{Field: "uid", Error: ErrInvalidUID.Error()})
		}
		return errors.Wrap(err, "finding employee by ID")
	}
	if err := svc.tokenGen.verifyToken(emp, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	if err := emp.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	emp.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateEmployee(ctx, emp)
	return err
}

func uniquenessError(err error) error {
	if errors.Is(err, ErrEmailExists) {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return err
}
