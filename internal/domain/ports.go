package domain

import "context"

// TokenStore defines the port for the secure credential store. Implementations
// must survive process restarts; Load returns a zero Tokens value when nothing
// is stored.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// ProfileCache defines the port for the local user snapshot used to seed
// optimistic UI before the network responds. Load returns (nil, nil) when
// no snapshot exists.
type ProfileCache interface {
	Load() (*User, error)
	Save(u *User) error
	Clear() error
}

// RegisterInput carries the fields of a new account request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate carries a partial profile edit. Nil pointer fields are left
// untouched server-side.
type ProfileUpdate struct {
	Name     *string
	Phone    *string
	Country  *string
	City     *string
	HasPhoto bool
	HasPets  bool
	ImageRef *string
}

// AuthResult is the typed success payload of the auth endpoints that may
// establish a session. Tokens may be zero when the server withholds them
// until the email is verified.
type AuthResult struct {
	User                 *User
	Tokens               Tokens
	VerificationRequired bool
}

// AuthClient is the port to the auth API. Implementations return either a
// typed payload or an error classified by package autherr (API status +
// message, timeout, connectivity, decode).
type AuthClient interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	Me(ctx context.Context, accessToken string) (*User, error)
	Logout(ctx context.Context, accessToken string) error
	VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	GoogleAuth(ctx context.Context, idToken, email string) (*AuthResult, error)
	AppleAuth(ctx context.Context, identityToken, email, name string) (*AuthResult, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, accessToken string, upd ProfileUpdate) (*User, error)
	DeleteMe(ctx context.Context, accessToken string) error
}
