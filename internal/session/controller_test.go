package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/agriconnect/internal/credstore"
	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

type fakeAPI struct {
	login    func(ctx context.Context, username, password string) (*platform.LoginResponse, error)
	register func(ctx context.Context, reg platform.RegistrationRequest) (*platform.RegisterResponse, error)
	profile  func(ctx context.Context) (principal.Envelope, error)
	logout   func(token string)

	profileCalls atomic.Int32
	logoutCalls  atomic.Int32
	lastRegister platform.RegistrationRequest
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*platform.LoginResponse, error) {
	return f.login(ctx, username, password)
}

func (f *fakeAPI) Register(ctx context.Context, reg platform.RegistrationRequest) (*platform.RegisterResponse, error) {
	f.lastRegister = reg
	return f.register(ctx, reg)
}

func (f *fakeAPI) Profile(ctx context.Context) (principal.Envelope, error) {
	f.profileCalls.Add(1)
	return f.profile(ctx)
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	f.logoutCalls.Add(1)
	if f.logout != nil {
		f.logout(token)
	}
	return nil
}

// gatedStore blocks the first Save until release is closed.
type gatedStore struct {
	*credstore.MemoryStore
	saving  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(inner *credstore.MemoryStore) *gatedStore {
	return &gatedStore{MemoryStore: inner, saving: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Save(ctx context.Context, snap credstore.Snapshot) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.saving)
		<-g.release
	}
	return g.MemoryStore.Save(ctx, snap)
}

func loginResponse(token string) *platform.LoginResponse {
	return &platform.LoginResponse{Success: true, AccessToken: token, Type: "user", User: userJSON(7, principal.UserTypeFarmer)}
}

// logoutWhileSaving calls Logout once the pending Save is blocked, waits for
// the reset transition, then lets the Save finish.
func logoutWhileSaving(t *testing.T, c *Controller, store *gatedStore) {
	t.Helper()
	<-store.saving
	before := c.currentEpoch()

	loggedOut := make(chan struct{})
	go func() {
		c.Logout(context.Background())
		close(loggedOut)
	}()
	require.Eventually(t, func() bool {
		return c.currentEpoch() > before && c.Snapshot().State == Unauthenticated
	}, time.Second, time.Millisecond)

	close(store.release)
	<-loggedOut
}

func userJSON(id int64, userType string) json.RawMessage {
	raw, _ := json.Marshal(principal.User{ID: id, Username: "alice", UserType: userType})
	return raw
}

func seededStore(t *testing.T, token string) *credstore.MemoryStore {
	t.Helper()
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), credstore.Snapshot{
		Token:       token,
		Principal:   string(userJSON(7, principal.UserTypeFarmer)),
		Role:        "user",
		PrincipalID: "7",
	}))
	return store
}

func TestBootWithoutSnapshotMakesNoCall(t *testing.T) {
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		t.Fatal("profile must not be called")
		return principal.Envelope{}, nil
	}}
	c := New(api, credstore.NewMemoryStore())

	require.NoError(t, c.Boot(context.Background()))
	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	assert.Zero(t, api.profileCalls.Load())
}

func TestBootIncompleteSnapshotIsDiscarded(t *testing.T) {
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), credstore.Snapshot{Token: "tok"}))

	api := &fakeAPI{}
	c := New(api, store)
	require.NoError(t, c.Boot(context.Background()))

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero())
}

func TestBootConfirmationUnauthorizedResets(t *testing.T) {
	store := seededStore(t, "tok")
	binding := &platform.TokenBinding{}
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusUnauthorized, Message: "Token has expired"}
	}}
	c := New(api, store, WithBinder(binding))

	require.NoError(t, c.Boot(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, Unauthenticated, s.State)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, binding.Token())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero())
}

func TestBootConfirmationServerErrorKeepsSession(t *testing.T) {
	store := seededStore(t, "tok")
	binding := &platform.TokenBinding{}
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error"}
	}}
	c := New(api, store, WithBinder(binding))

	err := c.Boot(context.Background())
	require.Error(t, err)
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeSessionBootFailed))

	s := c.Snapshot()
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.Confirming)
	assert.Equal(t, principal.RoleUser, s.Role)
	assert.Equal(t, int64(7), s.Principal.PrincipalID())
	assert.True(t, s.IsFarmer())
	assert.Equal(t, "tok", binding.Token())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", snap.Token)
}

func TestBootConfirmationRefreshesPrincipal(t *testing.T) {
	store := seededStore(t, "tok")
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, principal.UserTypeSupplier)}, nil
	}}

	var states []State
	c := New(api, store)
	c.Subscribe(func(s Session) { states = append(states, s.State) })

	require.NoError(t, c.Boot(context.Background()))

	s := c.Snapshot()
	assert.True(t, s.IsSupplier())
	assert.Equal(t, []State{Authenticated, Authenticated}, states)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Principal, principal.UserTypeSupplier)
}

func TestBootIsNoopAfterFirstCall(t *testing.T) {
	api := &fakeAPI{}
	c := New(api, credstore.NewMemoryStore())
	require.NoError(t, c.Boot(context.Background()))
	require.NoError(t, c.Boot(context.Background()))
	assert.Equal(t, Unauthenticated, c.Snapshot().State)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestBootExpiredJWTSkipsConfirmation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := seededStore(t, signedToken(t, now.Add(-time.Hour)))
	api := &fakeAPI{}

	c := New(api, store, WithClock(func() time.Time { return now }))
	require.NoError(t, c.Boot(context.Background()))

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	assert.Zero(t, api.profileCalls.Load())
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero())
}

func TestBootValidJWTRecordsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	store := seededStore(t, signedToken(t, exp))
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, principal.UserTypeFarmer)}, nil
	}}

	c := New(api, store, WithClock(func() time.Time { return now }))
	require.NoError(t, c.Boot(context.Background()))

	s := c.Snapshot()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, exp.Unix(), s.ExpiresAt.Unix())
}

func TestBootRetriesTransientOnly(t *testing.T) {
	t.Run("transient then success", func(t *testing.T) {
		var calls int
		api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
			calls++
			if calls < 3 {
				return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}
			}
			return principal.Envelope{Type: "user", User: userJSON(7, principal.UserTypeFarmer)}, nil
		}}
		c := New(api, seededStore(t, "tok"), WithConfirmRetry(3, time.Millisecond))

		require.NoError(t, c.Boot(context.Background()))
		assert.Equal(t, 3, calls)
		assert.True(t, c.Snapshot().IsAuthenticated())
	})

	t.Run("auth failure is not retried", func(t *testing.T) {
		var calls int
		api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
			calls++
			return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusForbidden, Message: "forbidden"}
		}}
		c := New(api, seededStore(t, "tok"), WithConfirmRetry(5, time.Millisecond))

		require.NoError(t, c.Boot(context.Background()))
		assert.Equal(t, 1, calls)
		assert.Equal(t, Unauthenticated, c.Snapshot().State)
	})
}

func TestBootInjectedClassifier(t *testing.T) {
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusUnauthorized}
	}}
	never := ClassifierFunc(func(error) Verdict { return Transient })

	c := New(api, seededStore(t, "tok"), WithClassifier(never))
	require.Error(t, c.Boot(context.Background()))
	assert.True(t, c.Snapshot().IsAuthenticated())
}

func TestLoginRoundTrip(t *testing.T) {
	store := credstore.NewMemoryStore()
	binding := &platform.TokenBinding{}
	api := &fakeAPI{login: func(_ context.Context, username, password string) (*platform.LoginResponse, error) {
		assert.Equal(t, "alice", username)
		assert.Equal(t, "secret", password)
		return &platform.LoginResponse{
			Success:     true,
			AccessToken: "tok-7",
			Type:        "user",
			User:        userJSON(7, principal.UserTypeFarmer),
		}, nil
	}}
	c := New(api, store, WithBinder(binding))
	require.NoError(t, c.Boot(context.Background()))

	res := c.Login(context.Background(), "alice", "secret")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, principal.RoleUser, res.Role)

	s := c.Snapshot()
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.IsAdmin())
	assert.True(t, s.IsUser())
	assert.Equal(t, "tok-7", binding.Token())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user", snap.Role)
	assert.Equal(t, "7", snap.PrincipalID)
	assert.Equal(t, "tok-7", snap.Token)
}

func TestLoginAdmin(t *testing.T) {
	api := &fakeAPI{login: func(context.Context, string, string) (*platform.LoginResponse, error) {
		return &platform.LoginResponse{
			Success:     true,
			AccessToken: "tok-a",
			Type:        "admin",
			Admin:       json.RawMessage(`{"id": 1, "username": "root"}`),
		}, nil
	}}
	c := New(api, credstore.NewMemoryStore())

	res := c.Login(context.Background(), "root", "pw")
	require.True(t, res.Success)
	_, isAdmin := res.Principal.(*principal.Admin)
	assert.True(t, isAdmin)
	assert.True(t, c.Snapshot().IsAdmin())
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    *platform.LoginResponse
		err     error
		wantErr string
	}{
		{
			name:    "rejected by backend",
			err:     &platform.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"},
			wantErr: "Invalid credentials",
		},
		{
			name:    "unsuccessful body",
			resp:    &platform.LoginResponse{Success: false, Error: "Account disabled"},
			wantErr: "Account disabled",
		},
		{
			name:    "no token",
			resp:    &platform.LoginResponse{Success: true},
			wantErr: "Login failed",
		},
		{
			name:    "network",
			err:     agerrors.NewAPIUnreachableError("http://localhost:5000/api", errors.New("connection refused")),
			wantErr: "cannot reach API at http://localhost:5000/api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{login: func(context.Context, string, string) (*platform.LoginResponse, error) {
				return tt.resp, tt.err
			}}
			store := credstore.NewMemoryStore()
			c := New(api, store)
			require.NoError(t, c.Boot(context.Background()))

			res := c.Login(context.Background(), "alice", "wrong")
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantErr, res.Error)
			assert.Equal(t, Unauthenticated, c.Snapshot().State)

			snap, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, snap.IsZero())
		})
	}
}

func TestLoginInFlightGuard(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	api := &fakeAPI{login: func(context.Context, string, string) (*platform.LoginResponse, error) {
		close(entered)
		<-unblock
		return &platform.LoginResponse{Success: true, AccessToken: "tok", Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	c := New(api, credstore.NewMemoryStore())

	var wg sync.WaitGroup
	var first Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = c.Login(context.Background(), "alice", "secret")
	}()
	<-entered

	second := c.Login(context.Background(), "alice", "secret")
	assert.False(t, second.Success)
	assert.Equal(t, string(agerrors.ErrCodeSessionInProgress), second.Code)

	reg := c.Register(context.Background(), Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	assert.False(t, reg.Success)
	assert.Equal(t, string(agerrors.ErrCodeSessionInProgress), reg.Code)

	close(unblock)
	wg.Wait()
	assert.True(t, first.Success)
}

func TestRegisterLeavesSessionUntouched(t *testing.T) {
	api := &fakeAPI{register: func(context.Context, platform.RegistrationRequest) (*platform.RegisterResponse, error) {
		return &platform.RegisterResponse{Message: "check your email"}, nil
	}}
	c := New(api, credstore.NewMemoryStore())
	require.NoError(t, c.Boot(context.Background()))
	before := c.Snapshot()

	res := c.Register(context.Background(), Registration{
		Username:  "bob",
		Email:     "bob@example.com",
		Password:  "pw",
		FirstName: "Bob",
		Phone:     "0712 345678",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "check your email", res.Message)
	assert.Equal(t, before, c.Snapshot())

	assert.Equal(t, "bob", api.lastRegister.User.Username)
	assert.Equal(t, principal.UserTypeFarmer, api.lastRegister.User.UserType)
	assert.Equal(t, "+254712345678", api.lastRegister.Profile.Phone)
}

func TestRegisterFailures(t *testing.T) {
	var called bool
	api := &fakeAPI{register: func(context.Context, platform.RegistrationRequest) (*platform.RegisterResponse, error) {
		called = true
		return nil, &platform.APIError{StatusCode: http.StatusBadRequest, Message: "Username already exists"}
	}}
	c := New(api, credstore.NewMemoryStore())

	res := c.Register(context.Background(), Registration{Username: "bob", Email: "not-an-email", Password: "pw"})
	assert.False(t, res.Success)
	assert.Equal(t, string(agerrors.ErrCodeValidationFailed), res.Code)
	assert.Contains(t, res.Error, "email")
	assert.False(t, called)

	res = c.Register(context.Background(), Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	assert.False(t, res.Success)
	assert.Equal(t, "Username already exists", res.Error)
	assert.Equal(t, string(agerrors.ErrCodeAPIRequest), res.Code)
	assert.True(t, called)
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := seededStore(t, "tok")
	binding := &platform.TokenBinding{}
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	c := New(api, store, WithBinder(binding))
	require.NoError(t, c.Boot(context.Background()))
	require.True(t, c.Snapshot().IsAuthenticated())

	for i := 0; i < 2; i++ {
		c.Logout(context.Background())
		assert.Equal(t, Unauthenticated, c.Snapshot().State)
		assert.Empty(t, binding.Token())
		snap, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, snap.IsZero())
	}
	assert.Equal(t, int32(1), api.logoutCalls.Load())
}

func TestLogoutDuringConfirmationWins(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		close(entered)
		<-release
		return principal.Envelope{Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	store := seededStore(t, "tok")
	c := New(api, store)

	done := make(chan error, 1)
	go func() { done <- c.Boot(context.Background()) }()
	<-entered

	c.Logout(context.Background())
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero(), "late confirmation must not re-persist")
}

func TestLogoutDuringLoginSaveKeepsStoreClear(t *testing.T) {
	store := newGatedStore(credstore.NewMemoryStore())
	api := &fakeAPI{login: func(context.Context, string, string) (*platform.LoginResponse, error) {
		return loginResponse("tok"), nil
	}}
	c := New(api, store)
	require.NoError(t, c.Boot(context.Background()))

	done := make(chan Result, 1)
	go func() { done <- c.Login(context.Background(), "alice", "pw") }()

	logoutWhileSaving(t, c, store)
	<-done

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero(), "credentials resurrected: %+v", snap)

	next := New(api, store.MemoryStore)
	require.NoError(t, next.Boot(context.Background()))
	assert.Equal(t, Unauthenticated, next.Snapshot().State)
}

func TestLogoutDuringBootSaveKeepsStoreClear(t *testing.T) {
	inner := seededStore(t, "tok")
	store := newGatedStore(inner)
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	c := New(api, store)

	done := make(chan error, 1)
	go func() { done <- c.Boot(context.Background()) }()

	logoutWhileSaving(t, c, store)
	require.NoError(t, <-done)

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	snap, err := inner.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero(), "credentials resurrected: %+v", snap)
}

// loadGatedStore reads the snapshot, then holds the first Load until release
// is closed, so the caller sees what was stored before the gate opened.
type loadGatedStore struct {
	*credstore.MemoryStore
	loading chan struct{}
	release chan struct{}
	once    sync.Once
}

func newLoadGatedStore(inner *credstore.MemoryStore) *loadGatedStore {
	return &loadGatedStore{MemoryStore: inner, loading: make(chan struct{}), release: make(chan struct{})}
}

func (g *loadGatedStore) Load(ctx context.Context) (credstore.Snapshot, error) {
	snap, err := g.MemoryStore.Load(ctx)
	g.once.Do(func() {
		close(g.loading)
		<-g.release
	})
	return snap, err
}

func TestLogoutDuringBootLoadWins(t *testing.T) {
	inner := seededStore(t, "old")
	store := newLoadGatedStore(inner)
	binding := &platform.TokenBinding{}
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, principal.UserTypeFarmer)}, nil
	}}
	c := New(api, store, WithBinder(binding))

	done := make(chan error, 1)
	go func() { done <- c.Boot(context.Background()) }()
	<-store.loading

	c.Logout(context.Background())
	close(store.release)
	require.NoError(t, <-done)

	assert.Equal(t, Unauthenticated, c.Snapshot().State)
	assert.Empty(t, binding.Token())
	assert.Zero(t, api.profileCalls.Load())
	snap, err := inner.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsZero(), "credentials restored after logout: %+v", snap)
}

func TestLoginDuringBootLoadWins(t *testing.T) {
	inner := credstore.NewMemoryStore()
	store := newLoadGatedStore(inner)
	binding := &platform.TokenBinding{}
	api := &fakeAPI{login: func(context.Context, string, string) (*platform.LoginResponse, error) {
		return loginResponse("fresh"), nil
	}}
	c := New(api, store, WithBinder(binding))

	done := make(chan error, 1)
	go func() { done <- c.Boot(context.Background()) }()
	<-store.loading

	res := c.Login(context.Background(), "alice", "pw")
	require.True(t, res.Success)
	close(store.release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "fresh", s.Token)
	assert.Equal(t, "fresh", binding.Token())
	snap, err := inner.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", snap.Token)
}

func TestConcurrentBootRunsOnce(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		<-release
		return principal.Envelope{Type: "user", User: userJSON(7, principal.UserTypeFarmer)}, nil
	}}
	c := New(api, seededStore(t, "tok"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Boot(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return api.profileCalls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), api.profileCalls.Load())
	assert.True(t, c.Snapshot().IsAuthenticated())
}

func TestRejectedConfirmationKeepsNewerLogin(t *testing.T) {
	store := seededStore(t, "stale")
	var c *Controller
	api := &fakeAPI{
		login: func(context.Context, string, string) (*platform.LoginResponse, error) {
			return loginResponse("fresh"), nil
		},
	}
	api.profile = func(ctx context.Context) (principal.Envelope, error) {
		require.True(t, c.Login(ctx, "alice", "pw").Success)
		return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusUnauthorized, Message: "Token has expired"}
	}
	c = New(api, store)

	require.NoError(t, c.Boot(context.Background()))

	s := c.Snapshot()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "fresh", s.Token)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", snap.Token)
}

func TestLogoutResetsBeforeNotifyingBackend(t *testing.T) {
	store := seededStore(t, "tok-live")
	binding := &platform.TokenBinding{}
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	c := New(api, store, WithBinder(binding))
	require.NoError(t, c.Boot(context.Background()))

	var (
		gotToken   string
		stateThen  State
		boundThen  string
		storedThen credstore.Snapshot
	)
	api.logout = func(token string) {
		gotToken = token
		stateThen = c.Snapshot().State
		boundThen = binding.Token()
		storedThen, _ = store.Load(context.Background())
	}

	c.Logout(context.Background())

	assert.Equal(t, "tok-live", gotToken)
	assert.Equal(t, Unauthenticated, stateThen)
	assert.Empty(t, boundThen)
	assert.True(t, storedThen.IsZero())
}

func TestUpdatePrincipal(t *testing.T) {
	store := seededStore(t, "tok")
	api := &fakeAPI{profile: func(context.Context) (principal.Envelope, error) {
		return principal.Envelope{Type: "user", User: userJSON(7, "farmer")}, nil
	}}
	c := New(api, store)

	err := c.UpdatePrincipal(context.Background(), &principal.User{ID: 7})
	require.Error(t, err, "booting session cannot be updated")

	require.NoError(t, c.Boot(context.Background()))
	calls := api.profileCalls.Load()

	updated := &principal.User{ID: 7, Username: "alice", UserType: "farmer", Profile: &principal.Profile{FirstName: "Alice", LastName: "Wambui"}}
	require.NoError(t, c.UpdatePrincipal(context.Background(), updated))

	assert.Equal(t, "Alice Wambui", c.Snapshot().Principal.DisplayName())
	assert.Equal(t, calls, api.profileCalls.Load())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Principal, "Wambui")

	err = c.UpdatePrincipal(context.Background(), &principal.Admin{ID: 1})
	assert.True(t, agerrors.HasCode(err, agerrors.ErrCodeAuthUnknownRole))
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []State
	attempts    map[string]int
	boots       []string
}

func (o *recordingObserver) ObserveTransition(to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, to)
}

func (o *recordingObserver) ObserveAuthAttempt(operation string, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempts == nil {
		o.attempts = map[string]int{}
	}
	key := operation + ":failure"
	if success {
		key = operation + ":success"
	}
	o.attempts[key]++
}

func (o *recordingObserver) ObserveBootConfirmation(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.boots = append(o.boots, outcome)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	api := &fakeAPI{
		profile: func(context.Context) (principal.Envelope, error) {
			return principal.Envelope{}, &platform.APIError{StatusCode: http.StatusServiceUnavailable}
		},
		login: func(context.Context, string, string) (*platform.LoginResponse, error) {
			return nil, &platform.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
		},
	}
	c := New(api, seededStore(t, "tok"), WithObserver(obs))

	_ = c.Boot(context.Background())
	c.Login(context.Background(), "alice", "bad")

	assert.Equal(t, []string{OutcomeKept}, obs.boots)
	assert.Equal(t, 1, obs.attempts["login:failure"])
	assert.Equal(t, []State{Authenticated, Authenticated}, obs.transitions)
}
