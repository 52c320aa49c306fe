package httpapi

import (
	"encoding/json"
	"strings"

	"petsession/internal/domain"
)

// The API's JSON has accumulated field aliases over several backend
// generations (Mongo-era "_id", early "profileImage", etc). Decoding is
// centralized here so the alias table exists in exactly one tested place
// and never leaks past the transport boundary.
var userFieldAliases = map[string][]string{
	"id":       {"id", "_id", "userId"},
	"email":    {"email"},
	"name":     {"name", "fullName", "displayName"},
	"avatar":   {"avatarUrl", "profileImage", "avatar", "photoUrl"},
	"verified": {"isVerified", "verified", "emailVerified"},
	"phone":    {"phone", "phoneNumber"},
	"country":  {"country"},
	"city":     {"city"},
	"pets":     {"pets", "petIds"},
	"role":     {"role", "userType"},
	"hasPhoto": {"hasPhoto"},
	"hasPets":  {"hasPets"},
}

// userPayload decodes a user object in any of its historical shapes.
type userPayload struct {
	user *domain.User
}

// UnmarshalJSON implements alias-tolerant decoding per userFieldAliases.
func (p *userPayload) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	// Some endpoints nest the record under "user" or "data".
	for _, wrap := range []string{"user", "data"} {
		if inner, ok := m[wrap]; ok {
			var innerMap map[string]json.RawMessage
			if err := json.Unmarshal(inner, &innerMap); err == nil {
				m = innerMap
			}
		}
	}

	u := &domain.User{
		ID:        firstString(m, userFieldAliases["id"]...),
		Email:     firstString(m, userFieldAliases["email"]...),
		Name:      firstString(m, userFieldAliases["name"]...),
		AvatarURL: firstString(m, userFieldAliases["avatar"]...),
		Phone:     firstString(m, userFieldAliases["phone"]...),
		Country:   firstString(m, userFieldAliases["country"]...),
		City:      firstString(m, userFieldAliases["city"]...),
		Role:      domain.Role(firstString(m, userFieldAliases["role"]...)),
		PetIDs:    firstPetList(m, userFieldAliases["pets"]...),
		HasPhoto:  firstBool(m, userFieldAliases["hasPhoto"]...),
		HasPets:   firstBool(m, userFieldAliases["hasPets"]...),
	}
	if v := firstBool(m, userFieldAliases["verified"]...); v != nil {
		u.Verified = *v
	}

	if u.ID == "" && u.Email == "" {
		p.user = nil
		return nil
	}
	p.user = u
	return nil
}

func (p *userPayload) toDomain() *domain.User {
	return p.user
}

// tokensPayload decodes a token pair under its historical key variants.
type tokensPayload struct {
	access  string
	refresh string
}

// UnmarshalJSON accepts accessToken/access_token/token and
// refreshToken/refresh_token, flat or nested under "tokens".
func (p *tokensPayload) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if inner, ok := m["tokens"]; ok {
		var innerMap map[string]json.RawMessage
		if err := json.Unmarshal(inner, &innerMap); err == nil {
			m = innerMap
		}
	}
	p.access = firstString(m, "accessToken", "access_token", "token")
	p.refresh = firstString(m, "refreshToken", "refresh_token")
	return nil
}

func (p *tokensPayload) toDomain() domain.Tokens {
	return domain.Tokens{Access: p.access, Refresh: p.refresh}
}

// authResponse is the combined payload of register/login/verify/provider
// endpoints: an optional user, an optional token pair and the server's
// verdict on whether verification is still outstanding.
type authResponse struct {
	user                 *domain.User
	tokens               domain.Tokens
	verificationRequired bool
}

// UnmarshalJSON decodes the combined shape leniently: each part is
// optional and each part tolerates its own aliases.
func (r *authResponse) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	// userPayload handles both flat records and ones nested under
	// "user"/"data" itself.
	var up userPayload
	if err := up.UnmarshalJSON(b); err == nil {
		r.user = up.toDomain()
	}

	var tp tokensPayload
	if err := tp.UnmarshalJSON(b); err == nil {
		r.tokens = tp.toDomain()
	}

	if v := firstBool(m, "verificationRequired", "requiresVerification", "needsVerification"); v != nil {
		r.verificationRequired = *v
	}
	return nil
}

func (r *authResponse) toDomain() *domain.AuthResult {
	return &domain.AuthResult{
		User:                 r.user,
		Tokens:               r.tokens,
		VerificationRequired: r.verificationRequired,
	}
}

// --- decode helpers --------------------------------------------------------

// firstString returns the first alias that decodes to a non-empty string.
func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// firstBool returns the first alias that decodes to a boolean, or nil when
// none is present; absence and false are distinct for the tri-state flags.
func firstBool(m map[string]json.RawMessage, keys ...string) *bool {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v
		}
	}
	return nil
}

// firstPetList accepts either a list of id strings or a list of pet
// objects carrying id/_id.
func firstPetList(m map[string]json.RawMessage, keys ...string) []string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err == nil && len(ids) > 0 {
			return ids
		}
		var objs []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &objs); err == nil && len(objs) > 0 {
			out := make([]string, 0, len(objs))
			for _, o := range objs {
				if id := firstString(o, "id", "_id"); id != "" {
					out = append(out, id)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}
