package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/notehub/gatekeeper/internal/domain"
)

// Issuer is stamped on every credential and required on validation.
const Issuer = "NoteHub"

type Scope string

const (
	ScopePassword Scope = "password"
	ScopeEmail    Scope = "email"
)

// Use says what a credential was minted for. Each validator accepts one use.
type Use string

const (
	UseAccess     Use = "access"
	UseActivation Use = "activation"
	UseScoped     Use = "scoped"
)

type claims struct {
	Use   Use   `json:"use,omitempty"`
	Scope Scope `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 credentials with a server-held secret.
type Signer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewSigner(secret string, accessTTL time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, domain.ErrMissingSigningKey
	}
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}

	return &Signer{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}, nil
}

func (s *Signer) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccess signs a short-lived credential whose subject is the user id.
func (s *Signer) IssueAccess(userID string) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.accessTTL)

	signed, err := s.sign(claims{
		Use: UseAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueActivation signs a credential without expiry used to confirm a new account.
func (s *Signer) IssueActivation(userID string) (string, error) {
	return s.sign(claims{
		Use: UseActivation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(s.now().UTC()),
		},
	})
}

// IssueScoped signs a credential for a single operation, addressed by email.
func (s *Signer) IssueScoped(email string, scope Scope) (string, error) {
	now := s.now().UTC()
	return s.sign(claims{
		Use:   UseScoped,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
}

// Validate verifies signature, issuer and expiry and returns the subject,
// whatever the credential was minted for.
func (s *Signer) Validate(raw string) (string, error) {
	c, err := s.parse(raw)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ValidateAccess accepts only access credentials and returns the user id.
func (s *Signer) ValidateAccess(raw string) (string, error) {
	return s.validateUse(raw, UseAccess)
}

// ValidateActivation accepts only activation credentials and returns the user id.
func (s *Signer) ValidateActivation(raw string) (string, error) {
	return s.validateUse(raw, UseActivation)
}

// ValidateScoped is Validate plus a check that the credential was minted for scope.
func (s *Signer) ValidateScoped(raw string, scope Scope) (string, error) {
	c, err := s.parse(raw)
	if err != nil {
		return "", err
	}
	if c.Use != UseScoped || c.Scope != scope {
		return "", domain.ErrScopeNotAllowed
	}
	return c.Subject, nil
}

func (s *Signer) validateUse(raw string, use Use) (string, error) {
	c, err := s.parse(raw)
	if err != nil {
		return "", err
	}
	if c.Use != use {
		return "", domain.ErrInvalidCredential
	}
	return c.Subject, nil
}

func (s *Signer) sign(c claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

func (s *Signer) parse(raw string) (*claims, error) {
	if raw == "" {
		return nil, domain.ErrInvalidCredential
	}

	c := &claims{}
	tok, err := jwt.ParseWithClaims(raw, c, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredCredential
		}
		return nil, domain.ErrInvalidCredential
	}
	if !tok.Valid || c.Subject == "" {
		return nil, domain.ErrInvalidCredential
	}
	return c, nil
}
