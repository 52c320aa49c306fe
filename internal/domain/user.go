// Package domain contains the core business entities and interfaces.
package domain

// Role classifies an account on the platform.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleVet    Role = "vet"
	RoleSitter Role = "sitter"
	RoleAdmin  Role = "admin"
)

// User is the authoritative profile record. ID and Email are non-empty for
// any User that exists; everything else is optional. HasPhoto and HasPets
// are tri-state: nil means the flag was never stated explicitly and must be
// derived from AvatarURL / PetIDs when needed.
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Verified  bool
	Phone     string
	Country   string
	City      string
	PetIDs    []string
	Role      Role
	HasPhoto  *bool
	HasPets   *bool
}

// PhotoKnown reports whether the user has a photo, combining the explicit
// flag with the structural fallback.
func (u *User) PhotoKnown() bool {
	if u == nil {
		return false
	}
	if u.HasPhoto != nil {
		return *u.HasPhoto
	}
	return u.AvatarURL != ""
}

// PetsKnown reports whether the user has pets, combining the explicit flag
// with the structural fallback.
func (u *User) PetsKnown() bool {
	if u == nil {
		return false
	}
	if u.HasPets != nil {
		return *u.HasPets
	}
	return len(u.PetIDs) > 0
}

// Clone returns a deep copy of the user, or nil for a nil receiver.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PetIDs != nil {
		c.PetIDs = append([]string(nil), u.PetIDs...)
	}
	if u.HasPhoto != nil {
		v := *u.HasPhoto
		c.HasPhoto = &v
	}
	if u.HasPets != nil {
		v := *u.HasPets
		c.HasPets = &v
	}
	return &c
}

// Bool returns a pointer to b, for filling the tri-state flags.
func Bool(b bool) *bool {
	return &b
}
