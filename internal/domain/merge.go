package domain

import "strings"

// MergeUser reconciles a freshly fetched user record with the previously
// held one. Server data wins field by field, but an empty or absent server
// field falls back to the cached value so a partial response (a /me call
// that omits phone, say) cannot erase data we already know.
//
// ID and Email are the exception: they always come from the server when a
// server record exists, never backfilled from stale cache.
//
// The function is pure, total and idempotent: MergeUser(u, u) == u, and
// merging the same server record twice is a no-op.
func MergeUser(server, cached *User) *User {
	if server == nil {
		return cached.Clone()
	}
	if cached == nil {
		return server.Clone()
	}

	merged := &User{
		ID:        server.ID,
		Email:     server.Email,
		Name:      pickString(server.Name, cached.Name),
		AvatarURL: pickString(server.AvatarURL, cached.AvatarURL),
		Verified:  server.Verified || cached.Verified,
		Phone:     pickString(server.Phone, cached.Phone),
		Country:   pickString(server.Country, cached.Country),
		City:      pickString(server.City, cached.City),
		Role:      Role(pickString(string(server.Role), string(cached.Role))),
	}

	if len(server.PetIDs) > 0 {
		merged.PetIDs = append([]string(nil), server.PetIDs...)
	} else if len(cached.PetIDs) > 0 {
		merged.PetIDs = append([]string(nil), cached.PetIDs...)
	}

	merged.HasPhoto = pickBool(server.HasPhoto, cached.HasPhoto,
		server.AvatarURL != "" || cached.AvatarURL != "")
	merged.HasPets = pickBool(server.HasPets, cached.HasPets,
		len(server.PetIDs) > 0 || len(cached.PetIDs) > 0)

	return merged
}

// pickString prefers the server value when it is non-empty after trimming.
func pickString(server, cached string) string {
	if strings.TrimSpace(server) != "" {
		return server
	}
	return cached
}

// pickBool resolves a tri-state flag: explicit server value, then explicit
// cached value, then the structurally derived one.
func pickBool(server, cached *bool, derived bool) *bool {
	if server != nil {
		v := *server
		return &v
	}
	if cached != nil {
		v := *cached
		return &v
	}
	return &derived
}
