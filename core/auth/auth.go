// Package auth is the session gate of the portal: it checks credentials, issues signed
// session tokens and resolves tokens back to employee identities.
package auth

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
)

var (
	// errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrExpiredOrInvalidToken = errors.New("token is expired or invalid")
	ErrAccountDeactivated    = errors.New("account deactivated")
	ErrRefreshExpired        = errors.New("refresh has expired")

	signingMethod = jwt.SigningMethodHS256
)

const audience = "Portal"

type (
	// Claims represents the authorization claims transmitted via a JWT.
	Claims struct {
		jwt.StandardClaims
		OrigIssuedAt int64         `json:"oriat,omitempty"`
		Name         string        `json:"name,omitempty"`
		Email        string        `json:"email,omitempty"`
		Role         employee.Role `json:"role,omitempty"`
	}

	// Session is handed out on successful authentication.
	Session struct {
		Token    string            `json:"token"`
		Employee employee.Employee `json:"user"`
	}

	Employees interface {
		GetByID(ctx context.Context, id string) (employee.Employee, error)
		GetByEmail(ctx context.Context, email string) (employee.Employee, error)
		SetLastLogin(ctx context.Context, emp employee.Employee) (employee.Employee, error)
	}

	// RevocationStore remembers logged out token IDs until they expire.
	RevocationStore interface {
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}

	Gate struct {
		secretKey    []byte
		issuer       string
		expiry       time.Duration
		refreshDelta time.Duration
		employees    Employees
		revoked      RevocationStore
	}
)

func (c Claims) IsAdmin() bool {
	return c.Role == employee.RoleAdmin
}

func NewGate(conf *core.Config, employees Employees, revoked RevocationStore) *Gate {
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	return &Gate{
		secretKey:    []byte(conf.SecretKey),
		issuer:       conf.AppName,
		expiry:       conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
		employees:    employees,
		revoked:      revoked,
	}
}

// Authenticate checks the email & password pair and opens a new Session.
// Unknown emails and wrong passwords fail alike with ErrInvalidCredentials.
func (g *Gate) Authenticate(ctx context.Context, email, pwd string) (Session, error) {
	emp, err := g.employees.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "finding employee by email")
	}
	if err = emp.CheckPassword(pwd); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !emp.IsActive {
		return Session{}, ErrAccountDeactivated
	}

	emp, err = g.employees.SetLastLogin(ctx, emp)
	if err != nil {
		return Session{}, errors.Wrap(err, "setting lastLogin")
	}
	token, err := g.GenerateToken(g.NewClaims(emp))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Employee: emp}, nil
}

// NewClaims returns fresh Claims for the Employee. origIat carries the original issue time over refreshes.
func (g *Gate) NewClaims(emp employee.Employee, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    g.issuer,
			Subject:   emp.ID,
			Audience:  audience,
			ExpiresAt: now.Add(g.expiry).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         emp.Name,
		Email:        emp.Email,
		Role:         emp.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (g *Gate) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Authorize resolves a signed token into its Claims.
func (g *Gate) Authorize(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrExpiredOrInvalidToken
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrExpiredOrInvalidToken
	}

	revoked, err := g.revoked.IsRevoked(ctx, claims.Id)
	if err != nil {
		return nil, errors.Wrap(err, "checking token revocation")
	}
	if revoked {
		return nil, ErrExpiredOrInvalidToken
	}
	return claims, nil
}

// Refresh issues a new token for still valid Claims, as long as the refresh window
// opened at the first login has not elapsed.
func (g *Gate) Refresh(ctx context.Context, claims *Claims) (string, error) {
	emp, err := g.employees.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", ErrExpiredOrInvalidToken
		}
		return "", errors.Wrap(err, "finding employee by ID")
	}
	if !emp.IsActive {
		return "", ErrAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(g.refreshDelta)
	if time.Now().After(expTime) {
		return "", ErrRefreshExpired
	}
	return g.GenerateToken(g.NewClaims(emp, claims.OrigIssuedAt))
}

// Revoke invalidates the token the Claims were read from.
func (g *Gate) Revoke(ctx context.Context, claims *Claims) error {
	until := time.Unix(claims.ExpiresAt, 0)
	return errors.Wrap(g.revoked.Revoke(ctx, claims.Id, until), "revoking token")
}
