package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"petsession/internal/autherr"
	"petsession/internal/domain"
)

const minPasswordLen = 6

// SignIn authenticates with email and password. The caller inspects the
// snapshot afterwards: exactly one of LastError, the verification flag or
// a navigation hint is raised on any non-success outcome.
func (s *Session) SignIn(ctx context.Context, email, password string) {
	s.begin()
	if err := validateCredentials(email, password); err != nil {
		s.fail(validationMessage(err))
		return
	}

	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		if autherr.IsStatus(err, 403) {
			// Account exists but the email channel is unconfirmed.
			s.commit(func(snap *Snapshot) {
				snap.State = StatePendingVerification
				snap.PendingEmail = email
			})
			return
		}
		s.fail(s.classify(err))
		return
	}
	s.establish(ctx, res, email)
	s.log.Info("signed in", "email", email)
}

// SignUp registers a new account. Depending on what the server returns the
// session ends Authenticated or PendingVerification; when the server
// withholds tokens an immediate login is attempted, and a 401 there means
// verification must happen first, so the password is held in memory to
// auto-sign-in right after the code is accepted.
func (s *Session) SignUp(ctx context.Context, name, email, password string) bool {
	s.begin()
	if err := validateCredentials(email, password); err != nil {
		s.fail(validationMessage(err))
		return false
	}

	res, err := s.client.Register(ctx, domain.RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		if autherr.IsStatus(err, 400, 409) {
			s.fail(msgAlreadyRegistered)
			return false
		}
		s.fail(s.classify(err))
		return false
	}

	if res != nil && res.Tokens.Complete() {
		s.establish(ctx, res, email)
		return true
	}

	// Registration succeeded without tokens; try to log straight in. A
	// rejection here means the account is parked behind verification.
	lres, lerr := s.client.Login(ctx, email, password)
	if lerr != nil {
		s.mu.Lock()
		s.pendingPassword = password
		s.mu.Unlock()
		s.commit(func(snap *Snapshot) {
			snap.State = StatePendingVerification
			snap.PendingEmail = email
		})
		return true
	}
	s.establish(ctx, lres, email)
	return true
}

// VerifyEmail submits a verification code. On success the retained signup
// password (if any) is used to sign the user in automatically; otherwise
// existing tokens are validated, and failing both the user is asked to
// sign in. The pending password is dropped on every outcome.
func (s *Session) VerifyEmail(ctx context.Context, email, code string) bool {
	s.begin()

	res, err := s.client.VerifyEmail(ctx, email, code)

	s.mu.Lock()
	pending := s.pendingPassword
	s.pendingPassword = ""
	s.mu.Unlock()

	if err != nil {
		s.fail(s.classify(err))
		return false
	}

	if res != nil && res.Tokens.Complete() {
		s.establish(ctx, markVerified(res), email)
		return true
	}

	if pending != "" {
		lres, lerr := s.client.Login(ctx, email, pending)
		if lerr == nil {
			s.establish(ctx, markVerified(lres), email)
			return true
		}
		s.log.Warn("auto sign-in after verification failed", "error", lerr)
	}

	tokens, terr := s.store.Load(ctx)
	if terr == nil && tokens.Complete() {
		if user, merr := s.client.Me(ctx, tokens.Access); merr == nil {
			if user != nil {
				user.Verified = true
			}
			s.adoptUser(ctx, user, tokens)
			return true
		}
	}

	s.commit(func(snap *Snapshot) {
		snap.State = StateUnauthenticated
		snap.LastError = msgSignInAfterVerify
	})
	return true
}

// ResendVerification asks the server to send a fresh code.
func (s *Session) ResendVerification(ctx context.Context, email string) bool {
	s.begin()
	if err := s.client.ResendVerification(ctx, email); err != nil {
		s.fail(s.classify(err))
		return false
	}
	return true
}

// ForgotPassword starts the reset flow for the given email.
func (s *Session) ForgotPassword(ctx context.Context, email string) bool {
	s.begin()
	if !validEmail(email) {
		s.fail(msgInvalidEmail)
		return false
	}
	if err := s.client.ForgotPassword(ctx, email); err != nil {
		s.fail(s.classify(err))
		return false
	}
	return true
}

// ResetPassword completes the reset flow with the emailed code.
func (s *Session) ResetPassword(ctx context.Context, email, code, newPassword string) bool {
	s.begin()
	if len(newPassword) < minPasswordLen {
		s.fail(msgShortPassword)
		return false
	}
	if err := s.client.ResetPassword(ctx, email, code, newPassword); err != nil {
		s.fail(s.classify(err))
		return false
	}
	return true
}

// GoogleSignup runs the provider signup sequence: an email that already
// exists server-side redirects to login instead of creating an ambiguous
// duplicate account.
func (s *Session) GoogleSignup(ctx context.Context, idToken, email string) {
	s.providerSignup(ctx, email, func() (*domain.AuthResult, error) {
		return s.client.GoogleAuth(ctx, idToken, email)
	})
}

// GoogleSignin runs the provider signin sequence: an email unknown to the
// server redirects to signup.
func (s *Session) GoogleSignin(ctx context.Context, idToken, email string) {
	s.providerSignin(ctx, email, func() (*domain.AuthResult, error) {
		return s.client.GoogleAuth(ctx, idToken, email)
	})
}

// AppleSignup is the Apple variant of GoogleSignup.
func (s *Session) AppleSignup(ctx context.Context, identityToken, email, name string) {
	s.providerSignup(ctx, email, func() (*domain.AuthResult, error) {
		return s.client.AppleAuth(ctx, identityToken, email, name)
	})
}

// AppleSignin is the Apple variant of GoogleSignin.
func (s *Session) AppleSignin(ctx context.Context, identityToken, email, name string) {
	s.providerSignin(ctx, email, func() (*domain.AuthResult, error) {
		return s.client.AppleAuth(ctx, identityToken, email, name)
	})
}

func (s *Session) providerSignup(ctx context.Context, email string, exchange func() (*domain.AuthResult, error)) {
	s.begin()
	exists, err := s.client.CheckEmailExists(ctx, email)
	if err != nil {
		s.fail(s.classify(err))
		return
	}
	if exists {
		s.commit(func(snap *Snapshot) { snap.ShouldNavigateToLogin = true })
		return
	}
	s.providerExchange(ctx, email, exchange)
}

func (s *Session) providerSignin(ctx context.Context, email string, exchange func() (*domain.AuthResult, error)) {
	s.begin()
	exists, err := s.client.CheckEmailExists(ctx, email)
	if err != nil {
		s.fail(s.classify(err))
		return
	}
	if !exists {
		s.commit(func(snap *Snapshot) { snap.ShouldNavigateToSignup = true })
		return
	}
	s.providerExchange(ctx, email, exchange)
}

// providerExchange completes a Google/Apple sign-in. Verification is scoped
// to our own email channel, not the provider's trust: an unverified account
// lands in PendingVerification and a fresh code is requested immediately.
func (s *Session) providerExchange(ctx context.Context, email string, exchange func() (*domain.AuthResult, error)) {
	res, err := exchange()
	if err != nil {
		s.fail(s.classify(err))
		return
	}
	s.establish(ctx, res, email)

	if s.Snapshot().State == StatePendingVerification {
		if err := s.client.ResendVerification(ctx, email); err != nil {
			s.log.Warn("resend after provider sign-in failed", "error", err)
		}
	}
}

// UpdateProfile submits a partial profile edit and merges the server's
// canonical record back in. A malformed success response is recovered
// locally: the server most likely persisted the edit, so the canonical
// record is re-fetched and the submitted fields re-applied client-side
// instead of surfacing a failure.
func (s *Session) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) bool {
	s.begin()

	s.mu.Lock()
	access := s.snap.Tokens.Access
	tokens := s.snap.Tokens
	current := s.snap.User.Clone()
	s.mu.Unlock()

	if access == "" {
		s.fail(msgNotSignedIn)
		return false
	}

	user, err := s.client.UpdateProfile(ctx, access, upd)
	if err != nil {
		if errors.Is(err, autherr.ErrDecode) {
			fresh, ferr := s.client.Me(ctx, access)
			if ferr != nil {
				fresh = current
			}
			s.adoptUser(ctx, applyUpdate(fresh, upd), tokens)
			return true
		}
		s.fail(s.classify(err))
		return false
	}
	s.adoptUser(ctx, user, tokens)
	return true
}

// applyUpdate overlays the submitted fields onto a user record; used when
// the server's response could not be trusted byte-for-byte.
func applyUpdate(u *domain.User, upd domain.ProfileUpdate) *domain.User {
	out := u.Clone()
	if out == nil {
		out = &domain.User{}
	}
	if upd.Name != nil {
		out.Name = *upd.Name
	}
	if upd.Phone != nil {
		out.Phone = *upd.Phone
	}
	if upd.Country != nil {
		out.Country = *upd.Country
	}
	if upd.City != nil {
		out.City = *upd.City
	}
	if upd.ImageRef != nil {
		out.AvatarURL = *upd.ImageRef
	}
	out.HasPhoto = domain.Bool(upd.HasPhoto)
	out.HasPets = domain.Bool(upd.HasPets)
	return out
}

// establish persists tokens when present, merges the user and routes the
// state machine. Used by every flow that may end a sign-in.
func (s *Session) establish(ctx context.Context, res *domain.AuthResult, email string) {
	if res == nil {
		s.commit(func(snap *Snapshot) {
			snap.State = StatePendingVerification
			snap.PendingEmail = email
		})
		return
	}

	tokens := res.Tokens
	if tokens.Complete() {
		if err := s.store.Save(ctx, tokens); err != nil {
			s.log.Warn("persisting tokens failed", "error", err)
		}
	} else {
		s.mu.Lock()
		tokens = s.snap.Tokens
		s.mu.Unlock()
	}

	if res.VerificationRequired || res.User == nil || !res.User.Verified {
		s.mu.Lock()
		merged := domain.MergeUser(res.User, s.snap.User)
		s.mu.Unlock()
		if merged != nil {
			if err := s.cache.Save(merged); err != nil {
				s.log.Warn("profile cache write failed", "error", err)
			}
		}
		s.commit(func(snap *Snapshot) {
			snap.User = merged
			snap.Tokens = tokens
			snap.State = StatePendingVerification
			snap.PendingEmail = email
		})
		return
	}

	s.adoptUser(ctx, res.User, tokens)
}

// markVerified stamps the verified flag on a login payload obtained right
// after a successful code check, where the server copy may still lag.
func markVerified(res *domain.AuthResult) *domain.AuthResult {
	if res != nil && res.User != nil {
		res.User.Verified = true
	}
	return res
}

func validateCredentials(email, password string) error {
	if !validEmail(email) {
		return autherr.ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return autherr.ErrShortPassword
	}
	return nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, autherr.ErrInvalidEmail):
		return msgInvalidEmail
	case errors.Is(err, autherr.ErrShortPassword):
		return msgShortPassword
	default:
		return err.Error()
	}
}
