package platform

import "sync"

// TokenSource yields the bearer token to attach to the next request.
// An empty string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

// Token calls f.
func (f TokenSourceFunc) Token() string { return f() }

// NoToken never authenticates.
var NoToken TokenSource = StaticToken("")

// StaticToken always yields the same token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token() string { return string(t) }

// TokenBinding is the single writable slot the session controller updates on
// every transition and the client reads immediately before dispatch.
type TokenBinding struct {
	mu    sync.RWMutex
	token string
}

// Token returns the currently bound token.
func (b *TokenBinding) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// Set binds token. An empty token unbinds.
func (b *TokenBinding) Set(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// Clear unbinds the token.
func (b *TokenBinding) Clear() {
	b.Set("")
}
