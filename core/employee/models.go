package employee

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/presence"
)

// Role is the access level of an Employee.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

var Roles = []RoleInfo{
	{Name: "Member", Value: RoleMember},
	{Name: "Admin", Value: RoleAdmin},
}

func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleAdmin
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type Employee struct {
	ID           string          `json:"id" bson:"_id"`
	Name         string          `json:"name" bson:"name"`
	Email        string          `json:"email" bson:"email"`
	Designation  string          `json:"designation" bson:"designation"`
	Department   string          `json:"department" bson:"department"`
	DateOfBirth  string          `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty"`
	Role         Role            `json:"role" bson:"role"`
	IsActive     bool            `json:"is_active" bson:"is_active"`
	Status       presence.Status `json:"status" bson:"-"` // derived from presence on read
	PasswordHash []byte          `json:"-" bson:"password_hash"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at" bson:"updated_at"` // UTC
	LastLogin    time.Time       `json:"last_login" bson:"last_login"` // UTC
}

func (e *Employee) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	e.PasswordHash = hash
	return nil
}

func (e *Employee) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(e.PasswordHash, []byte(pwd))
}

func (e *Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// NewEmployee contains information needed to create a new Employee.
type NewEmployee struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Designation     string `json:"designation" validate:"required"`
	Department      string `json:"department" validate:"required"`
	DateOfBirth     string `json:"date_of_birth" validate:"omitempty,isodate"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ne *NewEmployee) Clean() {
	ne.Name = core.CleanString(ne.Name)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.Designation = core.CleanString(ne.Designation)
	ne.Department = core.CleanString(ne.Department)
	ne.DateOfBirth = core.CleanString(ne.DateOfBirth)
	if ne.Role == "" {
		ne.Role = RoleMember
	}
}

// UpdateEmployee defines what information may be provided to modify an existing Employee.
type UpdateEmployee struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Designation     string `json:"designation"`
	Department      string `json:"department"`
	DateOfBirth     string `json:"date_of_birth" validate:"omitempty,isodate"`
	IsActive        *bool  `json:"is_active"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Clean fills blank fields from the original Employee.
func (ue *UpdateEmployee) Clean(orig Employee) {
	pick := func(val, origVal string, lower ...bool) string {
		if v := core.CleanString(val, lower...); v != "" {
			return v
		}
		return origVal
	}
	ue.Name = pick(ue.Name, orig.Name)
	ue.Email = pick(ue.Email, orig.Email, true /* lower */)
	ue.Designation = pick(ue.Designation, orig.Designation)
	ue.Department = pick(ue.Department, orig.Department)
	ue.DateOfBirth = pick(ue.DateOfBirth, orig.DateOfBirth)
	if ue.Role == "" {
		ue.Role = orig.Role
	}
	if ue.IsActive == nil {
		active := orig.IsActive
		ue.IsActive = &active
	}
}

type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

type QueryFilter struct {
	Search     string `query:"search"` // case-insensitive match on name, email or department
	Department string `query:"department"`
	Role       Role   `query:"role"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Department = core.CleanString(qf.Department)
}
