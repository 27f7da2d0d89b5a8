package session

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/agriconnect/internal/credstore"
	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/log"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/telemetry"
)

// API is the subset of the backend client the controller calls.
type API interface {
	Login(ctx context.Context, username, password string) (*platform.LoginResponse, error)
	Register(ctx context.Context, reg platform.RegistrationRequest) (*platform.RegisterResponse, error)
	Profile(ctx context.Context) (principal.Envelope, error)
	Logout(ctx context.Context, token string) error
}

// Binder receives the token on every transition.
type Binder interface {
	Set(token string)
	Clear()
}

// Observer is notified of controller activity, typically for metrics.
type Observer interface {
	ObserveTransition(to State)
	ObserveAuthAttempt(operation string, success bool)
	ObserveBootConfirmation(outcome string)
}

// Boot confirmation outcomes reported to the Observer.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReset     = "reset"
	OutcomeKept      = "kept"
)

// Controller is the session/auth state machine.
type Controller struct {
	api        API
	store      credstore.Store
	binder     Binder
	classifier Classifier
	observer   Observer
	logger     *log.Logger
	now        func() time.Time

	confirmAttempts uint
	confirmBackoff  time.Duration
	phoneRegion     string

	mu        sync.RWMutex
	state     Session
	epoch     uint64
	listeners []func(Session)

	// storeMu orders store writes against resets.
	storeMu sync.Mutex

	busy   atomic.Bool
	booted atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithBinder sets the token binding updated on every transition.
func WithBinder(b Binder) Option {
	return func(c *Controller) { c.binder = b }
}

// WithClassifier replaces DefaultClassifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Controller) { c.classifier = cl }
}

// WithObserver reports transitions and auth attempts.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithConfirmRetry sets how many times the boot confirmation is attempted
// and the initial backoff between attempts. Auth failures are never retried.
func WithConfirmRetry(attempts int, initial time.Duration) Option {
	return func(c *Controller) {
		if attempts > 0 {
			c.confirmAttempts = uint(attempts)
		}
		if initial > 0 {
			c.confirmBackoff = initial
		}
	}
}

// WithPhoneRegion sets the region used to parse local phone numbers.
func WithPhoneRegion(region string) Option {
	return func(c *Controller) { c.phoneRegion = region }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller in the Booting state.
func New(api API, store credstore.Store, opts ...Option) *Controller {
	c := &Controller{
		api:             api,
		store:           store,
		binder:          &platform.TokenBinding{},
		classifier:      DefaultClassifier,
		logger:          log.Discard(),
		now:             time.Now,
		confirmAttempts: 1,
		confirmBackoff:  500 * time.Millisecond,
		phoneRegion:     DefaultPhoneRegion,
		state:           Session{State: Booting},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers fn to run after every transition. fn must not call
// back into the controller synchronously.
func (c *Controller) Subscribe(fn func(Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// transition replaces the session, rebinds the token and notifies listeners.
// It returns the new epoch.
func (c *Controller) transition(next Session) uint64 {
	epoch, _ := c.commit(next, nil)
	return epoch
}

// transitionIf applies next only if no other transition happened since epoch.
// The check and the swap happen under one lock.
func (c *Controller) transitionIf(epoch uint64, next Session) (uint64, bool) {
	return c.commit(next, &epoch)
}

func (c *Controller) commit(next Session, expect *uint64) (uint64, bool) {
	c.mu.Lock()
	if expect != nil && c.epoch != *expect {
		c.mu.Unlock()
		return 0, false
	}
	c.state = next
	c.epoch++
	epoch := c.epoch
	listeners := append([]func(Session){}, c.listeners...)
	c.mu.Unlock()

	if next.State == Authenticated && next.Token != "" {
		c.binder.Set(next.Token)
	} else {
		c.binder.Clear()
	}

	c.logger.Info("session transition",
		"state", next.State.String(),
		"role", string(next.Role),
		"token_present", next.Token != "",
		"confirming", next.Confirming,
	)
	if c.observer != nil {
		c.observer.ObserveTransition(next.State)
	}
	for _, fn := range listeners {
		fn(next)
	}
	return epoch, true
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *Controller) snapshotAt() (Session, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.epoch
}

func (c *Controller) authenticated(token string, p principal.Principal) Session {
	s := Session{
		State:     Authenticated,
		Principal: p,
		Role:      p.Role(),
		Token:     token,
	}
	if exp, ok := tokenExpiry(token); ok {
		s.ExpiresAt = exp
	}
	return s
}

// Boot restores the persisted session and confirms it with the backend.
// It returns once the session has settled. Calling Boot outside the Booting
// state is a no-op. The returned error is informational; the session is
// always usable afterwards.
func (c *Controller) Boot(ctx context.Context) (err error) {
	if !c.booted.CompareAndSwap(false, true) {
		return nil
	}
	current, bootEpoch := c.snapshotAt()
	if current.State != Booting {
		return nil
	}
	ctx, span := telemetry.StartSessionSpan(ctx, "boot")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	snap, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "credential store unreadable, starting signed out")
		c.transitionIf(bootEpoch, Session{State: Unauthenticated})
		return err
	}

	restored, ok := c.restore(snap)
	if !ok {
		if snap.IsZero() {
			c.transitionIf(bootEpoch, Session{State: Unauthenticated})
			return nil
		}
		if c.resetIf(ctx, bootEpoch) {
			c.logger.WarnContext(ctx, "discarded incomplete credential snapshot")
		}
		return nil
	}

	if !restored.ExpiresAt.IsZero() && !restored.ExpiresAt.After(c.now()) {
		if c.resetIf(ctx, bootEpoch) {
			c.logger.InfoContext(ctx, "persisted token expired, skipped confirmation", "expired_at", restored.ExpiresAt)
			c.observeBoot(OutcomeReset)
		}
		return nil
	}

	restored.Confirming = true
	epoch, ok := c.transitionIf(bootEpoch, restored)
	if !ok {
		// a login or logout settled the session while the store was read
		return nil
	}

	env, err := c.confirm(ctx)
	if err != nil {
		return c.triage(ctx, epoch, restored, err)
	}

	p, err := env.Principal()
	if err != nil {
		return c.triage(ctx, epoch, restored, err)
	}

	confirmed := c.authenticated(restored.Token, p)
	epoch, ok = c.transitionIf(epoch, confirmed)
	if !ok {
		return nil
	}
	if err := c.persistIf(ctx, epoch, confirmed); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to re-persist confirmed session")
	}
	c.observeBoot(OutcomeConfirmed)
	return nil
}

func (c *Controller) restore(snap credstore.Snapshot) (Session, bool) {
	if !snap.Complete() {
		return Session{}, false
	}
	role, err := principal.ParseRole(snap.Role)
	if err != nil {
		return Session{}, false
	}
	p, err := principal.Decode(role, []byte(snap.Principal))
	if err != nil {
		return Session{}, false
	}
	return c.authenticated(snap.Token, p), true
}

func (c *Controller) confirm(ctx context.Context) (principal.Envelope, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.confirmBackoff

	return backoff.Retry(ctx, func() (principal.Envelope, error) {
		env, err := c.api.Profile(ctx)
		if err != nil && c.classifier.Classify(err) == AuthFailure {
			return env, backoff.Permanent(err)
		}
		return env, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.confirmAttempts))
}

func (c *Controller) triage(ctx context.Context, epoch uint64, optimistic Session, err error) error {
	verdict := c.classifier.Classify(err)
	c.logger.WithError(err).WarnContext(ctx, "boot confirmation failed", "verdict", verdict.String())

	if verdict == AuthFailure {
		if c.resetIf(ctx, epoch) {
			c.observeBoot(OutcomeReset)
		}
		return nil
	}

	optimistic.Confirming = false
	c.transitionIf(epoch, optimistic)
	c.observeBoot(OutcomeKept)
	return agerrors.Wrap(agerrors.ErrCodeSessionBootFailed, "could not confirm session, continuing with stored credentials", err)
}

func (c *Controller) observeBoot(outcome string) {
	if c.observer != nil {
		c.observer.ObserveBootConfirmation(outcome)
	}
}

// reset moves to Unauthenticated and clears the store. It never fails.
func (c *Controller) reset(ctx context.Context) {
	c.clearIf(ctx, c.transition(Session{State: Unauthenticated}))
}

// resetIf resets only if no other transition happened since epoch.
func (c *Controller) resetIf(ctx context.Context, epoch uint64) bool {
	next, ok := c.transitionIf(epoch, Session{State: Unauthenticated})
	if !ok {
		return false
	}
	c.clearIf(ctx, next)
	return true
}

// clearIf clears the store while the session is still at epoch. It waits for
// any in-progress persistIf, so a snapshot saved for an older epoch never
// outlives the reset, and skips the clear when a newer session has already
// taken over the store.
func (c *Controller) clearIf(ctx context.Context, epoch uint64) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.currentEpoch() != epoch {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to clear credential store")
	}
}

// persistIf saves s only while the session is still at epoch. Saves and
// clears are serialized by storeMu.
func (c *Controller) persistIf(ctx context.Context, epoch uint64, s Session) error {
	raw, err := principal.Encode(s.Principal)
	if err != nil {
		return err
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.currentEpoch() != epoch {
		return nil
	}
	return c.store.Save(ctx, credstore.Snapshot{
		Token:       s.Token,
		Principal:   string(raw),
		Role:        string(s.Role),
		PrincipalID: principal.IDString(s.Principal),
	})
}

// acquire claims the single login/register slot.
func (c *Controller) acquire(operation string) (release func(), res Result, ok bool) {
	if !c.busy.CompareAndSwap(false, true) {
		err := agerrors.NewOperationInProgressError(operation)
		return nil, failure(err, err.Message), false
	}
	return func() { c.busy.Store(false) }, Result{}, true
}

// Login exchanges credentials for a session.
func (c *Controller) Login(ctx context.Context, username, password string) (res Result) {
	release, res, ok := c.acquire("login")
	if !ok {
		return res
	}
	defer release()
	ctx, span := telemetry.StartSessionSpan(ctx, "login")
	defer func() {
		endAttempt(span, res)
		if c.observer != nil {
			c.observer.ObserveAuthAttempt("login", res.Success)
		}
	}()

	resp, err := c.api.Login(ctx, username, password)
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "login failed", "username", username)
		return failure(err, "Login failed. Please try again.")
	}
	if !resp.Success || resp.AccessToken == "" {
		reason := resp.Error
		if reason == "" {
			reason = "Login failed"
		}
		return failure(agerrors.NewCredentialRejectedError(reason), reason)
	}

	p, err := resp.Envelope().Principal()
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "login response carried no usable principal")
		return failure(err, "Login failed")
	}

	next := c.authenticated(resp.AccessToken, p)
	epoch := c.transition(next)
	if err := c.persistIf(ctx, epoch, next); err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to persist session")
	}

	c.logger.InfoContext(ctx, "login succeeded", "role", string(next.Role), "principal_id", p.PrincipalID())
	return Result{Success: true, Principal: p, Role: next.Role}
}

// Register validates reg and creates the account. Session state is left
// untouched; the caller logs in afterwards.
func (c *Controller) Register(ctx context.Context, reg Registration) (res Result) {
	release, res, ok := c.acquire("registration")
	if !ok {
		return res
	}
	defer release()
	ctx, span := telemetry.StartSessionSpan(ctx, "register")
	defer func() {
		endAttempt(span, res)
		if c.observer != nil {
			c.observer.ObserveAuthAttempt("register", res.Success)
		}
	}()

	body, err := reg.Validate(c.phoneRegion)
	if err != nil {
		return failure(err, "Registration failed")
	}

	resp, err := c.api.Register(ctx, body)
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "registration failed", "username", body.User.Username)
		return failure(err, "Registration failed. Please try again.")
	}

	return Result{Success: true, Message: resp.Message}
}

// Logout resets the session and clears the store. It never fails and is
// never blocked by a pending login. The backend is notified best-effort
// afterwards, with the token captured before the reset.
func (c *Controller) Logout(ctx context.Context) {
	ctx, span := telemetry.StartSessionSpan(ctx, "logout")
	defer span.End()
	prev := c.Snapshot()
	c.reset(ctx)

	if prev.IsAuthenticated() && prev.Token != "" {
		if err := c.api.Logout(ctx, prev.Token); err != nil {
			c.logger.WithError(err).DebugContext(ctx, "backend logout failed")
		}
	}
}

// UpdatePrincipal replaces the in-memory principal and re-persists it without
// re-confirming with the backend.
func (c *Controller) UpdatePrincipal(ctx context.Context, p principal.Principal) error {
	current, at := c.snapshotAt()
	if !current.IsAuthenticated() {
		return agerrors.NewNotAuthenticatedError()
	}
	if p == nil || p.Role() != current.Role {
		return agerrors.New(agerrors.ErrCodeAuthUnknownRole, "principal role does not match the session")
	}

	next := current
	next.Principal = p
	next.Confirming = false
	epoch, ok := c.transitionIf(at, next)
	if !ok {
		return agerrors.NewNotAuthenticatedError()
	}
	return c.persistIf(ctx, epoch, next)
}

func endAttempt(span trace.Span, res Result) {
	if res.Success {
		telemetry.RecordSuccess(span, attribute.String("role", string(res.Role)))
	} else {
		telemetry.RecordError(span, stderrors.New(res.Error))
		span.SetAttributes(attribute.String("error.code", res.Code))
	}
	span.End()
}

func failure(err error, fallback string) Result {
	reason := fallback
	var apiErr *platform.APIError
	var agriErr *agerrors.AgriError
	switch {
	case stderrors.As(err, &apiErr):
		if apiErr.Message != "" {
			reason = apiErr.Message
		}
		return Result{Error: reason, Code: string(agerrors.ErrCodeAPIRequest)}
	case stderrors.As(err, &agriErr):
		reason = agriErr.Message
		if agriErr.Cause != nil && agriErr.Code == agerrors.ErrCodeValidationFailed {
			reason = agriErr.Cause.Error()
		}
		return Result{Error: reason, Code: string(agriErr.Code)}
	}
	return Result{Error: reason, Code: string(agerrors.CodeOf(err))}
}
