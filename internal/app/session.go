// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"petsession/internal/autherr"
	"petsession/internal/domain"

	"golang.org/x/sync/singleflight"
)

// State is the authentication phase of the session. Exactly one holds at
// any time; the machine cycles for the lifetime of the process.
type State int

const (
	StateUnauthenticated State = iota
	StatePendingVerification
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePendingVerification:
		return "pending_verification"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Snapshot is the fixed-shape session state published to observers. It is
// a value; the User pointer inside is a private clone.
type Snapshot struct {
	State  State
	User   *domain.User
	Tokens domain.Tokens

	IsAuthenticated           bool
	RequiresEmailVerification bool
	PendingEmail              string
	RequiresProfileCompletion bool
	ShouldPresentEditProfile  bool
	ShouldNavigateToLogin     bool
	ShouldNavigateToSignup    bool
	LastError                 string
}

// Observer receives every published snapshot.
type Observer func(Snapshot)

// User-facing strings written to LastError. The UI layer localizes by key
// lookup; these are the English fallbacks.
const (
	msgInvalidCredentials = "invalid email or password"
	msgNetworkProblem     = "connection problem, please try again"
	msgAlreadyRegistered  = "this email is already registered, try signing in"
	msgUserNotFound       = "user not found"
	msgInvalidEmail       = "please enter a valid email address"
	msgShortPassword      = "password must be at least 6 characters"
	msgSignInAfterVerify  = "email verified, please sign in"
	msgNotSignedIn        = "you are not signed in"
)

// Session is the authentication lifecycle core. It owns tokens, the merged
// user entity and the UI-facing flags, and it is the only writer of all
// three. Construct one per process with New and share it by injection.
type Session struct {
	client domain.AuthClient
	store  domain.TokenStore
	cache  domain.ProfileCache
	log    *slog.Logger

	// refreshGroup serializes concurrent refresh attempts so a failed
	// refresh cannot clobber tokens written by one that won the race.
	refreshGroup singleflight.Group

	mu              sync.Mutex
	snap            Snapshot
	pendingPassword string
	promptShown     bool
	subs            map[int]Observer
	nextSub         int
}

// New creates a session core wired to the given transport, secure store
// and profile cache. Call Restore to pick up a persisted session.
func New(client domain.AuthClient, store domain.TokenStore, cache domain.ProfileCache, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		client: client,
		store:  store,
		cache:  cache,
		log:    log,
		subs:   make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns its cancel function. The
// observer is called after every state change with a snapshot copy; there
// is no backpressure since snapshots are small fixed-shape values.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapLocked()
}

// AuthorizedHeaders returns the header fields collaborators (chat,
// booking, notifications) attach to their own requests. Empty when no
// access token is held.
func (s *Session) AuthorizedHeaders() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Tokens.Access == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + s.snap.Tokens.Access}
}

// DismissEditProfilePrompt lowers the one-shot completion prompt after the
// UI has presented it. The prompt will not fire again until logout.
func (s *Session) DismissEditProfilePrompt() {
	s.commit(func(snap *Snapshot) {
		snap.ShouldPresentEditProfile = false
	})
}

// ClearNavigationHints resets the transient navigate-elsewhere flags once
// the UI has acted on them.
func (s *Session) ClearNavigationHints() {
	s.commit(func(snap *Snapshot) {
		snap.ShouldNavigateToLogin = false
		snap.ShouldNavigateToSignup = false
	})
}

// Restore rebuilds session state at process start. The cached user is
// loaded synchronously and exposed immediately so the UI has something to
// render; tokens are then read from the secure store and validated against
// the server. A dead access token gets one refresh attempt; if that also
// fails the session is fully torn down (covers a user deleted server-side).
func (s *Session) Restore(ctx context.Context) {
	if cached, err := s.cache.Load(); err != nil {
		s.log.Warn("profile cache unreadable", "error", err)
	} else if cached != nil {
		s.commit(func(snap *Snapshot) {
			snap.User = cached
			snap.RequiresProfileCompletion = !domain.ProfileComplete(cached)
		})
	}

	tokens, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("secure store unreadable", "error", err)
		return
	}
	if !tokens.Complete() {
		return
	}
	s.commit(func(snap *Snapshot) { snap.Tokens = tokens })

	user, err := s.client.Me(ctx, tokens.Access)
	if err != nil {
		s.log.Info("restore: /me failed, attempting refresh", "error", err)
		s.RefreshTokensIfPossible(ctx)
		return
	}
	s.adoptUser(ctx, user, tokens)
	s.log.Info("session restored", "state", s.Snapshot().State.String())
}

// RefreshTokensIfPossible exchanges the refresh token for a new pair and
// re-fetches the user. Any failure, including a missing refresh token,
// silently demotes the session to unauthenticated. Concurrent calls are
// collapsed into a single flight.
func (s *Session) RefreshTokensIfPossible(ctx context.Context) {
	_, _, _ = s.refreshGroup.Do("refresh", func() (interface{}, error) {
		s.refresh(ctx)
		return nil, nil
	})
}

func (s *Session) refresh(ctx context.Context) {
	tokens, err := s.store.Load(ctx)
	if err != nil || tokens.Refresh == "" {
		s.teardown(ctx)
		return
	}

	fresh, err := s.client.Refresh(ctx, tokens.Refresh)
	if err != nil {
		s.log.Info("token refresh rejected, signing out", "error", err)
		s.teardown(ctx)
		return
	}
	if err := s.store.Save(ctx, fresh); err != nil {
		s.log.Warn("persisting refreshed tokens failed", "error", err)
	}
	s.commit(func(snap *Snapshot) { snap.Tokens = fresh })

	user, err := s.client.Me(ctx, fresh.Access)
	if err != nil {
		if autherr.Retriable(err) {
			// Tokens are good; ride on the cached user until the network
			// comes back.
			s.commit(func(snap *Snapshot) { snap.State = StateAuthenticated })
			return
		}
		s.teardown(ctx)
		return
	}
	s.adoptUser(ctx, user, fresh)
}

// Logout tears the session down: server notification is best effort, local
// state is cleared unconditionally.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	access := s.snap.Tokens.Access
	s.mu.Unlock()

	if access != "" {
		if err := s.client.Logout(ctx, access); err != nil {
			s.log.Warn("server logout failed", "error", err)
		}
	}
	s.teardown(ctx)
	s.log.Info("signed out")
}

// DeleteAccount removes the account server-side and tears down local state
// exactly like logout.
func (s *Session) DeleteAccount(ctx context.Context) bool {
	s.mu.Lock()
	access := s.snap.Tokens.Access
	s.mu.Unlock()

	if access == "" {
		s.fail(msgNotSignedIn)
		return false
	}
	if err := s.client.DeleteMe(ctx, access); err != nil {
		s.fail(s.classify(err))
		return false
	}
	s.teardown(ctx)
	return true
}

// --- internals -------------------------------------------------------------

// commit applies a mutation to the snapshot under the lock, derives the
// exclusive state booleans, and broadcasts the result. All state writes go
// through here.
func (s *Session) commit(mutate func(*Snapshot)) Snapshot {
	s.mu.Lock()
	mutate(&s.snap)
	s.snap.IsAuthenticated = s.snap.State == StateAuthenticated
	s.snap.RequiresEmailVerification = s.snap.State == StatePendingVerification
	if s.snap.State != StatePendingVerification {
		s.snap.PendingEmail = ""
	}
	out := s.copySnapLocked()
	obs := make([]Observer, 0, len(s.subs))
	for _, fn := range s.subs {
		obs = append(obs, fn)
	}
	s.mu.Unlock()

	for _, fn := range obs {
		fn(out)
	}
	return out
}

func (s *Session) copySnapLocked() Snapshot {
	out := s.snap
	out.User = s.snap.User.Clone()
	return out
}

// begin clears the per-operation signals so each outcome raises at most
// one of {LastError, verification flag, navigation hint}.
func (s *Session) begin() {
	s.commit(func(snap *Snapshot) {
		snap.LastError = ""
		snap.ShouldNavigateToLogin = false
		snap.ShouldNavigateToSignup = false
	})
}

func (s *Session) fail(msg string) {
	s.commit(func(snap *Snapshot) { snap.LastError = msg })
}

// adoptUser merges a server record into the session, persists the cache
// and routes to Authenticated or PendingVerification based on the server's
// verdict on the email channel.
func (s *Session) adoptUser(ctx context.Context, user *domain.User, tokens domain.Tokens) {
	s.mu.Lock()
	merged := domain.MergeUser(user, s.snap.User)
	s.mu.Unlock()

	if merged != nil {
		if err := s.cache.Save(merged); err != nil {
			s.log.Warn("profile cache write failed", "error", err)
		}
	}

	s.commit(func(snap *Snapshot) {
		snap.User = merged
		snap.Tokens = tokens
		if merged != nil && merged.Verified {
			snap.State = StateAuthenticated
		} else {
			snap.State = StatePendingVerification
			if merged != nil {
				snap.PendingEmail = merged.Email
			}
		}
		s.evaluateCompletionLocked(snap)
	})
}

// evaluateCompletionLocked recomputes the profile-completion flags. The
// one-shot prompt fires at most once per authenticated session; the
// already-shown bit resets only on logout. Caller holds s.mu via commit.
func (s *Session) evaluateCompletionLocked(snap *Snapshot) {
	incomplete := !domain.ProfileComplete(snap.User)
	snap.RequiresProfileCompletion = incomplete
	if incomplete && snap.State == StateAuthenticated && !s.promptShown {
		snap.ShouldPresentEditProfile = true
		s.promptShown = true
	}
	if !incomplete {
		snap.ShouldPresentEditProfile = false
	}
}

// teardown erases tokens, user, cache and every flag. Used both for
// explicit logout and for the implicit demotion after a failed refresh.
func (s *Session) teardown(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn("secure store clear failed", "error", err)
	}
	if err := s.cache.Clear(); err != nil {
		s.log.Warn("profile cache clear failed", "error", err)
	}
	s.mu.Lock()
	s.pendingPassword = ""
	s.promptShown = false
	s.mu.Unlock()
	s.commit(func(snap *Snapshot) {
		*snap = Snapshot{State: StateUnauthenticated}
	})
}

// classify maps a transport error to exactly one user-facing string.
func (s *Session) classify(err error) string {
	switch {
	case err == nil:
		return ""
	case autherr.IsStatus(err, 400, 401):
		return msgInvalidCredentials
	case autherr.IsStatus(err, 404):
		return msgUserNotFound
	case autherr.Status(err) != 0:
		var apiErr *autherr.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return msgNetworkProblem
	default:
		return msgNetworkProblem
	}
}
