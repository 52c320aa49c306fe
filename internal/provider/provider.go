// Package provider bridges identity-provider SDK flows into a single typed
// result, so the session core never sees provider callback shapes. Each
// flow ends with an Identity: the raw token to forward to our backend plus
// the email (and optional display name) extracted from it.
package provider

// Identity is the outcome of a provider sign-in, handed to the session
// core's google/apple operations.
type Identity struct {
	// Token is the provider-issued credential, forwarded verbatim to the
	// auth API which performs its own verification.
	Token string
	Email string
	Name  string
}
