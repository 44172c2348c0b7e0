// Package authz holds the capability predicates that guard mutating
// operations. Checks are pure: they read the actor and the resource owner
// and never touch storage.
package authz

import (
	"errors"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden")

// Role is the part of an account role the policy looks at. user.Role
// satisfies it.
type Role interface {
	IsAdmin() bool
}

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role != nil && a.Role.IsAdmin()
}

// Resource is anything with an owning user.
type Resource struct {
	OwnerID uuid.UUID
}

// Capability decides whether actor may act on res.
type Capability func(actor Actor, res Resource) bool

func OwnerOnly(actor Actor, res Resource) bool {
	return actor.ID != uuid.Nil && actor.ID == res.OwnerID
}

func OwnerOrAdmin(actor Actor, res Resource) bool {
	return OwnerOnly(actor, res) || actor.IsAdmin()
}

func AdminOnly(actor Actor, _ Resource) bool {
	return actor.IsAdmin()
}

// Authorize returns ErrForbidden unless capability holds.
func Authorize(actor Actor, res Resource, capability Capability) error {
	if capability == nil || !capability(actor, res) {
		return ErrForbidden
	}
	return nil
}
