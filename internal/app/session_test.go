package app

import (
	"context"
	"fmt"
	"testing"

	"petsession/internal/adapter/memory"
	"petsession/internal/autherr"
	"petsession/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock transport (function-fields pattern)
// ---------------------------------------------------------------------------

type mockClient struct {
	registerFn    func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error)
	loginFn       func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	refreshFn     func(ctx context.Context, refreshToken string) (domain.Tokens, error)
	meFn          func(ctx context.Context, accessToken string) (*domain.User, error)
	logoutFn      func(ctx context.Context, accessToken string) error
	verifyFn      func(ctx context.Context, email, code string) (*domain.AuthResult, error)
	resendFn      func(ctx context.Context, email string) error
	forgotFn      func(ctx context.Context, email string) error
	resetFn       func(ctx context.Context, email, code, newPassword string) error
	googleFn      func(ctx context.Context, idToken, email string) (*domain.AuthResult, error)
	appleFn       func(ctx context.Context, identityToken, email, name string) (*domain.AuthResult, error)
	checkEmailFn  func(ctx context.Context, email string) (bool, error)
	updateFn      func(ctx context.Context, accessToken string, upd domain.ProfileUpdate) (*domain.User, error)
	deleteFn      func(ctx context.Context, accessToken string) error
	resendCalls   int
	loginAttempts []string
}

func (m *mockClient) Register(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &domain.AuthResult{}, nil
}

func (m *mockClient) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	m.loginAttempts = append(m.loginAttempts, password)
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, autherr.NewAPI(401, "invalid credentials")
}

func (m *mockClient) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return domain.Tokens{}, autherr.NewAPI(401, "refresh token expired")
}

func (m *mockClient) Me(ctx context.Context, accessToken string) (*domain.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx, accessToken)
	}
	return nil, autherr.NewAPI(401, "unauthorized")
}

func (m *mockClient) Logout(ctx context.Context, accessToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockClient) VerifyEmail(ctx context.Context, email, code string) (*domain.AuthResult, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, email, code)
	}
	return nil, autherr.NewAPI(400, "invalid code")
}

func (m *mockClient) ResendVerification(ctx context.Context, email string) error {
	m.resendCalls++
	if m.resendFn != nil {
		return m.resendFn(ctx, email)
	}
	return nil
}

func (m *mockClient) ForgotPassword(ctx context.Context, email string) error {
	if m.forgotFn != nil {
		return m.forgotFn(ctx, email)
	}
	return nil
}

func (m *mockClient) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, email, code, newPassword)
	}
	return nil
}

func (m *mockClient) GoogleAuth(ctx context.Context, idToken, email string) (*domain.AuthResult, error) {
	if m.googleFn != nil {
		return m.googleFn(ctx, idToken, email)
	}
	return nil, autherr.NewAPI(400, "bad provider token")
}

func (m *mockClient) AppleAuth(ctx context.Context, identityToken, email, name string) (*domain.AuthResult, error) {
	if m.appleFn != nil {
		return m.appleFn(ctx, identityToken, email, name)
	}
	return nil, autherr.NewAPI(400, "bad provider token")
}

func (m *mockClient) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	if m.checkEmailFn != nil {
		return m.checkEmailFn(ctx, email)
	}
	return false, nil
}

func (m *mockClient) UpdateProfile(ctx context.Context, accessToken string, upd domain.ProfileUpdate) (*domain.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, accessToken, upd)
	}
	return nil, autherr.NewAPI(500, "internal error")
}

func (m *mockClient) DeleteMe(ctx context.Context, accessToken string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, accessToken)
	}
	return nil
}

var _ domain.AuthClient = (*mockClient)(nil)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func verifiedUser(email string) *domain.User {
	return &domain.User{
		ID: "u1", Email: email, Name: "Ann", Verified: true,
		AvatarURL: "http://img", Phone: "1", Country: "NO", City: "Oslo",
	}
}

func newTestSession(client *mockClient) (*Session, *memory.TokenStore, *memory.ProfileCache) {
	store := memory.NewTokenStore()
	cache := memory.NewProfileCache()
	return New(client, store, cache, nil), store, cache
}

// ---------------------------------------------------------------------------
// Sign-in
// ---------------------------------------------------------------------------

func TestSignIn_Success(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{
				User:   verifiedUser(email),
				Tokens: domain.Tokens{Access: "acc", Refresh: "ref"},
			}, nil
		},
	}
	s, store, cache := newTestSession(client)

	s.SignIn(ctx, "a@b.example", "secret1")

	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.State != StateAuthenticated {
		t.Fatalf("expected authenticated, got %v", snap.State)
	}
	if snap.LastError != "" {
		t.Errorf("unexpected error: %q", snap.LastError)
	}
	if tokens, _ := store.Load(ctx); tokens.Access != "acc" {
		t.Errorf("tokens not persisted: %+v", tokens)
	}
	if cached, _ := cache.Load(); cached == nil || cached.Email != "a@b.example" {
		t.Errorf("user not cached: %+v", cached)
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	client := &mockClient{} // default login is a 401
	s, _, _ := newTestSession(client)

	s.SignIn(context.Background(), "a@b.example", "secret1")

	snap := s.Snapshot()
	if snap.IsAuthenticated {
		t.Fatal("must not authenticate")
	}
	if snap.LastError != msgInvalidCredentials {
		t.Errorf("LastError = %q, want %q", snap.LastError, msgInvalidCredentials)
	}
	if snap.RequiresEmailVerification {
		t.Error("a 401 must not raise the verification flag")
	}
}

func TestSignIn_UnverifiedAccount(t *testing.T) {
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return nil, autherr.NewAPI(403, "email not verified")
		},
	}
	s, _, _ := newTestSession(client)

	s.SignIn(context.Background(), "a@b.example", "secret1")

	snap := s.Snapshot()
	if snap.State != StatePendingVerification {
		t.Fatalf("expected pending verification, got %v", snap.State)
	}
	if snap.PendingEmail != "a@b.example" {
		t.Errorf("PendingEmail = %q", snap.PendingEmail)
	}
	if snap.LastError != "" {
		t.Errorf("a 403 must transition, not error; got %q", snap.LastError)
	}
}

func TestSignIn_ValidationSkipsNetwork(t *testing.T) {
	called := false
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			called = true
			return nil, autherr.NewAPI(401, "nope")
		},
	}
	s, _, _ := newTestSession(client)

	s.SignIn(context.Background(), "not-an-email", "secret1")
	if called {
		t.Error("malformed email must be rejected before the transport")
	}
	if s.Snapshot().LastError != msgInvalidEmail {
		t.Errorf("LastError = %q", s.Snapshot().LastError)
	}

	s.SignIn(context.Background(), "a@b.example", "abc")
	if called {
		t.Error("short password must be rejected before the transport")
	}
	if s.Snapshot().LastError != msgShortPassword {
		t.Errorf("LastError = %q", s.Snapshot().LastError)
	}
}

// ---------------------------------------------------------------------------
// Sign-up and verification
// ---------------------------------------------------------------------------

func TestSignUp_ImmediateTokensVerified(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return &domain.AuthResult{
				User:   verifiedUser(in.Email),
				Tokens: domain.Tokens{Access: "acc", Refresh: "ref"},
			}, nil
		},
	}
	s, _, _ := newTestSession(client)

	ok := s.SignUp(ctx, "Ann", "a@b.example", "secret1")

	if !ok {
		t.Fatal("signup should succeed")
	}
	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatalf("expected authenticated, got %v", snap.State)
	}
	if snap.RequiresEmailVerification {
		t.Error("verified signup must not require verification")
	}
}

func TestSignUp_NoTokensThenLogin401(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil // no tokens issued
		},
	}
	s, store, _ := newTestSession(client)

	ok := s.SignUp(ctx, "Ann", "a@b.example", "secret1")

	if !ok {
		t.Fatal("signup should report success")
	}
	snap := s.Snapshot()
	if snap.State != StatePendingVerification {
		t.Fatalf("expected pending verification, got %v", snap.State)
	}
	if snap.PendingEmail != "a@b.example" {
		t.Errorf("PendingEmail = %q", snap.PendingEmail)
	}
	if tokens, _ := store.Load(ctx); !tokens.Empty() {
		t.Errorf("no tokens should be persisted, got %+v", tokens)
	}
}

func TestVerifyEmail_AutoLoginWithPendingPassword(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil
		},
	}
	s, _, _ := newTestSession(client)
	s.SignUp(ctx, "Ann", "a@b.example", "secret1")

	// From here on the account is verified and logins succeed.
	client.verifyFn = func(ctx context.Context, email, code string) (*domain.AuthResult, error) {
		return &domain.AuthResult{}, nil
	}
	client.loginFn = func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
		return &domain.AuthResult{
			User:   verifiedUser(email),
			Tokens: domain.Tokens{Access: "acc", Refresh: "ref"},
		}, nil
	}

	ok := s.VerifyEmail(ctx, "a@b.example", "123456")

	if !ok {
		t.Fatal("verification should succeed")
	}
	if got := s.Snapshot(); !got.IsAuthenticated {
		t.Fatalf("expected authenticated after auto-login, got %v", got.State)
	}
	last := client.loginAttempts[len(client.loginAttempts)-1]
	if last != "secret1" {
		t.Errorf("auto-login used %q, want the retained signup password", last)
	}
}

func TestVerifyEmail_RejectedCode(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil
		},
	}
	s, _, _ := newTestSession(client)
	s.SignUp(ctx, "Ann", "a@b.example", "secret1")

	ok := s.VerifyEmail(ctx, "a@b.example", "000000") // default verify is a 400

	if ok {
		t.Fatal("verification should fail")
	}
	snap := s.Snapshot()
	if snap.State != StatePendingVerification {
		t.Errorf("rejected code must not change state, got %v", snap.State)
	}
	if snap.LastError == "" {
		t.Error("rejected code must surface an error")
	}
}

func TestVerifyEmail_NoCredentialsLeftAsksToSignIn(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		verifyFn: func(ctx context.Context, email, code string) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil
		},
	}
	s, _, _ := newTestSession(client)

	ok := s.VerifyEmail(ctx, "a@b.example", "123456")

	if !ok {
		t.Fatal("verification itself succeeded")
	}
	snap := s.Snapshot()
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", snap.State)
	}
	if snap.LastError != msgSignInAfterVerify {
		t.Errorf("LastError = %q, want sign-in prompt", snap.LastError)
	}
}

// ---------------------------------------------------------------------------
// Refresh and restore
// ---------------------------------------------------------------------------

func TestRefresh_RejectedClearsEverything(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{} // default refresh is a 401
	s, store, _ := newTestSession(client)
	_ = store.Save(ctx, domain.Tokens{Access: "old", Refresh: "old-ref"})

	s.RefreshTokensIfPossible(ctx)

	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", snap.State)
	}
	if tokens, _ := store.Load(ctx); !tokens.Empty() {
		t.Errorf("tokens must be erased from the store, got %+v", tokens)
	}
}

func TestRefresh_Success(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		refreshFn: func(ctx context.Context, refreshToken string) (domain.Tokens, error) {
			if refreshToken != "old-ref" {
				return domain.Tokens{}, fmt.Errorf("unexpected refresh token %q", refreshToken)
			}
			return domain.Tokens{Access: "new", Refresh: "new-ref"}, nil
		},
		meFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return verifiedUser("a@b.example"), nil
		},
	}
	s, store, _ := newTestSession(client)
	_ = store.Save(ctx, domain.Tokens{Access: "old", Refresh: "old-ref"})

	s.RefreshTokensIfPossible(ctx)

	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatalf("expected authenticated, got %v", snap.State)
	}
	if tokens, _ := store.Load(ctx); tokens.Access != "new" {
		t.Errorf("refreshed tokens not persisted: %+v", tokens)
	}
}

func TestRestore_ValidTokens(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		meFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return verifiedUser("a@b.example"), nil
		},
	}
	s, store, cache := newTestSession(client)
	_ = store.Save(ctx, domain.Tokens{Access: "acc", Refresh: "ref"})
	_ = cache.Save(&domain.User{ID: "u1", Email: "a@b.example", Name: "Cached Ann"})

	s.Restore(ctx)

	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatalf("expected authenticated, got %v", snap.State)
	}
	if snap.User == nil || snap.User.Email != "a@b.example" {
		t.Errorf("user = %+v", snap.User)
	}
}

func TestRestore_CachedUserVisibleBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	var duringMe Snapshot
	client := &mockClient{}
	s, store, cache := newTestSession(client)
	_ = store.Save(ctx, domain.Tokens{Access: "acc", Refresh: "ref"})
	_ = cache.Save(&domain.User{ID: "u1", Email: "a@b.example", Name: "Cached Ann"})

	client.meFn = func(ctx context.Context, accessToken string) (*domain.User, error) {
		duringMe = s.Snapshot()
		return nil, autherr.NewAPI(401, "unauthorized")
	}

	s.Restore(ctx)

	if duringMe.User == nil || duringMe.User.Name != "Cached Ann" {
		t.Errorf("cached user should be visible before the network answers, got %+v", duringMe.User)
	}
}

func TestRestore_DeadTokensAndFailedRefresh(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{} // me and refresh both reject
	s, store, cache := newTestSession(client)
	_ = store.Save(ctx, domain.Tokens{Access: "dead", Refresh: "dead-ref"})
	_ = cache.Save(&domain.User{ID: "gone", Email: "deleted@pets.example"})

	s.Restore(ctx)

	snap := s.Snapshot()
	if snap.State != StateUnauthenticated || snap.User != nil {
		t.Fatalf("deleted-server-side user must be fully logged out, got %v %+v", snap.State, snap.User)
	}
	if tokens, _ := store.Load(ctx); !tokens.Empty() {
		t.Errorf("store must be cleared, got %+v", tokens)
	}
	if cached, _ := cache.Load(); cached != nil {
		t.Errorf("cache must be cleared, got %+v", cached)
	}
}

// ---------------------------------------------------------------------------
// Provider flows
// ---------------------------------------------------------------------------

func TestGoogleSignin_UnknownEmailRedirectsToSignup(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{} // checkEmail defaults to false
	s, store, _ := newTestSession(client)

	s.GoogleSignin(ctx, "id-token", "new@pets.example")

	snap := s.Snapshot()
	if !snap.ShouldNavigateToSignup {
		t.Error("ShouldNavigateToSignup must be raised")
	}
	if snap.IsAuthenticated {
		t.Error("must not authenticate")
	}
	if tokens, _ := store.Load(ctx); !tokens.Empty() {
		t.Errorf("no tokens may be persisted, got %+v", tokens)
	}
}

func TestGoogleSignup_ExistingEmailRedirectsToLogin(t *testing.T) {
	ctx := context.Background()
	googleCalled := false
	client := &mockClient{
		checkEmailFn: func(ctx context.Context, email string) (bool, error) { return true, nil },
		googleFn: func(ctx context.Context, idToken, email string) (*domain.AuthResult, error) {
			googleCalled = true
			return nil, autherr.NewAPI(400, "unexpected")
		},
	}
	s, _, _ := newTestSession(client)

	s.GoogleSignup(ctx, "id-token", "taken@pets.example")

	snap := s.Snapshot()
	if !snap.ShouldNavigateToLogin {
		t.Error("ShouldNavigateToLogin must be raised")
	}
	if googleCalled {
		t.Error("exchange must not run for an existing email")
	}
}

func TestGoogleSignin_UnverifiedUserGetsResend(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		checkEmailFn: func(ctx context.Context, email string) (bool, error) { return true, nil },
		googleFn: func(ctx context.Context, idToken, email string) (*domain.AuthResult, error) {
			u := verifiedUser(email)
			u.Verified = false
			return &domain.AuthResult{User: u, Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
	}
	s, _, _ := newTestSession(client)

	s.GoogleSignin(ctx, "id-token", "a@b.example")

	snap := s.Snapshot()
	if snap.State != StatePendingVerification {
		t.Fatalf("expected pending verification, got %v", snap.State)
	}
	if client.resendCalls != 1 {
		t.Errorf("resend calls = %d, want 1", client.resendCalls)
	}
}

func TestAppleSignup_NewUser(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		appleFn: func(ctx context.Context, identityToken, email, name string) (*domain.AuthResult, error) {
			u := verifiedUser(email)
			u.Verified = false
			u.Name = name
			return &domain.AuthResult{User: u, Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
	}
	s, _, _ := newTestSession(client)

	s.AppleSignup(ctx, "apple-token", "new@pets.example", "Ann")

	snap := s.Snapshot()
	if snap.State != StatePendingVerification {
		t.Fatalf("provider signup must funnel through verification, got %v", snap.State)
	}
	if client.resendCalls != 1 {
		t.Errorf("resend calls = %d, want 1", client.resendCalls)
	}
}

// ---------------------------------------------------------------------------
// Logout, exclusivity, completion
// ---------------------------------------------------------------------------

func TestLogout_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			u := verifiedUser(email)
			u.Phone = "" // incomplete profile so the prompt fires
			return &domain.AuthResult{User: u, Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
	}
	s, store, cache := newTestSession(client)

	s.SignIn(ctx, "a@b.example", "secret1")
	if !s.Snapshot().ShouldPresentEditProfile {
		t.Fatal("prompt should have fired on first incomplete evaluation")
	}

	s.Logout(ctx)

	snap := s.Snapshot()
	if snap.State != StateUnauthenticated || snap.User != nil || !snap.Tokens.Empty() {
		t.Fatalf("logout left state behind: %+v", snap)
	}
	if snap.RequiresProfileCompletion || snap.ShouldPresentEditProfile ||
		snap.ShouldNavigateToLogin || snap.ShouldNavigateToSignup {
		t.Errorf("logout left flags raised: %+v", snap)
	}
	if tokens, _ := store.Load(ctx); !tokens.Empty() {
		t.Errorf("store not cleared: %+v", tokens)
	}
	if cached, _ := cache.Load(); cached != nil {
		t.Errorf("cache not cleared: %+v", cached)
	}

	// The one-shot bit resets on logout: a new session prompts again.
	s.SignIn(ctx, "a@b.example", "secret1")
	if !s.Snapshot().ShouldPresentEditProfile {
		t.Error("prompt must fire again in the next authenticated session")
	}
}

func TestStateExclusivity(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil
		},
	}
	s, _, _ := newTestSession(client)

	var violations int
	unsub := s.Subscribe(func(snap Snapshot) {
		if snap.IsAuthenticated && snap.RequiresEmailVerification {
			violations++
		}
	})
	defer unsub()

	s.SignUp(ctx, "Ann", "a@b.example", "secret1")
	client.verifyFn = func(ctx context.Context, email, code string) (*domain.AuthResult, error) {
		return &domain.AuthResult{}, nil
	}
	client.loginFn = func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: verifiedUser(email), Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
	}
	s.VerifyEmail(ctx, "a@b.example", "123456")
	s.Logout(ctx)

	if violations > 0 {
		t.Errorf("observed %d snapshots with both exclusive flags raised", violations)
	}
}

func TestOneShotPromptFiresOnce(t *testing.T) {
	ctx := context.Background()
	incomplete := func(email string) *domain.User {
		u := verifiedUser(email)
		u.Phone = ""
		return u
	}
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: incomplete(email), Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
		meFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return incomplete("a@b.example"), nil
		},
		refreshFn: func(ctx context.Context, refreshToken string) (domain.Tokens, error) {
			return domain.Tokens{Access: "a2", Refresh: "r2"}, nil
		},
	}
	s, _, _ := newTestSession(client)

	s.SignIn(ctx, "a@b.example", "secret1")
	snap := s.Snapshot()
	if !snap.RequiresProfileCompletion || !snap.ShouldPresentEditProfile {
		t.Fatalf("prompt should fire on first evaluation: %+v", snap)
	}

	s.DismissEditProfilePrompt()
	s.RefreshTokensIfPossible(ctx) // user re-fetched, still incomplete

	snap = s.Snapshot()
	if !snap.RequiresProfileCompletion {
		t.Error("completion requirement must persist")
	}
	if snap.ShouldPresentEditProfile {
		t.Error("prompt must not fire twice in one session")
	}
}

// ---------------------------------------------------------------------------
// Profile update
// ---------------------------------------------------------------------------

func TestUpdateProfile_Success(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: verifiedUser(email), Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
		updateFn: func(ctx context.Context, accessToken string, upd domain.ProfileUpdate) (*domain.User, error) {
			u := verifiedUser("a@b.example")
			u.City = *upd.City
			return u, nil
		},
	}
	s, _, _ := newTestSession(client)
	s.SignIn(ctx, "a@b.example", "secret1")

	city := "Bergen"
	ok := s.UpdateProfile(ctx, domain.ProfileUpdate{City: &city, HasPhoto: true, HasPets: true})

	if !ok {
		t.Fatal("update should succeed")
	}
	if got := s.Snapshot().User.City; got != "Bergen" {
		t.Errorf("city = %q", got)
	}
}

func TestUpdateProfile_DecodeErrorRecovers(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: verifiedUser(email), Tokens: domain.Tokens{Access: "a", Refresh: "r"}}, nil
		},
		updateFn: func(ctx context.Context, accessToken string, upd domain.ProfileUpdate) (*domain.User, error) {
			return nil, fmt.Errorf("%w: unexpected token", autherr.ErrDecode)
		},
		meFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return verifiedUser("a@b.example"), nil
		},
	}
	s, _, _ := newTestSession(client)
	s.SignIn(ctx, "a@b.example", "secret1")

	phone := "555-9999"
	ok := s.UpdateProfile(ctx, domain.ProfileUpdate{Phone: &phone, HasPhoto: true, HasPets: true})

	if !ok {
		t.Fatal("a decode failure on a likely-persisted write must be recovered, not surfaced")
	}
	snap := s.Snapshot()
	if snap.LastError != "" {
		t.Errorf("no error may surface, got %q", snap.LastError)
	}
	if snap.User.Phone != "555-9999" {
		t.Errorf("submitted field must be re-applied locally, phone = %q", snap.User.Phone)
	}
}

func TestUpdateProfile_NotSignedIn(t *testing.T) {
	s, _, _ := newTestSession(&mockClient{})
	ok := s.UpdateProfile(context.Background(), domain.ProfileUpdate{})
	if ok {
		t.Fatal("update without a session must fail")
	}
	if s.Snapshot().LastError != msgNotSignedIn {
		t.Errorf("LastError = %q", s.Snapshot().LastError)
	}
}

// ---------------------------------------------------------------------------
// Misc surface
// ---------------------------------------------------------------------------

func TestAuthorizedHeaders(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{
		loginFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: verifiedUser(email), Tokens: domain.Tokens{Access: "acc-token", Refresh: "r"}}, nil
		},
	}
	s, _, _ := newTestSession(client)

	if h := s.AuthorizedHeaders(); len(h) != 0 {
		t.Errorf("headers before sign-in = %v", h)
	}

	s.SignIn(ctx, "a@b.example", "secret1")

	h := s.AuthorizedHeaders()
	if h["Authorization"] != "Bearer acc-token" {
		t.Errorf("Authorization = %q", h["Authorization"])
	}
}

func TestSignUp_AlreadyRegistered(t *testing.T) {
	client := &mockClient{
		registerFn: func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
			return nil, autherr.NewAPI(409, "duplicate")
		},
	}
	s, _, _ := newTestSession(client)

	ok := s.SignUp(context.Background(), "Ann", "a@b.example", "secret1")
	if ok {
		t.Fatal("signup should fail")
	}
	if s.Snapshot().LastError != msgAlreadyRegistered {
		t.Errorf("LastError = %q", s.Snapshot().LastError)
	}
}
