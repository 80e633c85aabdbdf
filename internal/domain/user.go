package domain

import (
	"context"
)

// Role codes carried in access tokens.
const (
	RoleStudent   = "student"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User is the read-only projection of an account owned by the identity provider.
// swagger:model User
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
}

// DisplayName returns "Name LastName", falling back to the email.
func (u *User) DisplayName() string {
	name := u.Name
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Principal is the authenticated caller as supplied by the identity provider.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal holds any of the given roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TokenVerifier verifies a bearer token and returns the authenticated principal.
type TokenVerifier interface {
	Verify(token string) (Principal, error)
}

// UserRepository reads user projections.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
