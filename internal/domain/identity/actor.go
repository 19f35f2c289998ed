// Package identity describes who is acting on the marketplace. Accounts live in an
// external identity provider; this package only models the verified caller.
package identity

import (
	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
)

// Role is the marketplace role of a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProducer Role = "producer"
	RoleAdmin    Role = "admin"
	// RoleSystem is used for transitions driven by the platform itself, such as
	// payment callbacks.
	RoleSystem Role = "system"
)

// IsValid checks if the role is one a user can hold
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleProducer, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Identity is what the identity provider returns for a verified credential
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  Role      `json:"role"`
}

// Actor is the caller of a domain operation
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// NewActor creates an actor, rejecting unknown roles
func NewActor(userID uuid.UUID, role Role) (Actor, error) {
	if userID == uuid.Nil {
		return Actor{}, shared.ErrUnauthorized
	}
	if !role.IsValid() {
		return Actor{}, shared.NewDomainError(shared.CodeForbidden, "Unknown role: "+string(role))
	}
	return Actor{UserID: userID, Role: role}, nil
}

// SystemActor returns the actor used for platform-driven transitions
func SystemActor() Actor {
	return Actor{UserID: uuid.Nil, Role: RoleSystem}
}

// Actor converts a verified identity into an actor
func (i Identity) Actor() Actor {
	return Actor{UserID: i.ID, Role: i.Role}
}

// IsAdmin reports whether the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsSystem reports whether the actor is the platform itself
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}
