package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
)

const (
	testAccessSecret  = "access-secret-access-secret-0001"
	testRefreshSecret = "refresh-secret-refresh-secret-01"
	testPassword      = "Sup3rSecret!"
)

type testDB struct{}

func (testDB) GetDriver() string { return "sqlite" }
func (testDB) GetDSN() string    { return "file::memory:" }
func (testDB) GetDebug() bool    { return false }

type testTokens struct{}

func (testTokens) GetAccessSecret() string  { return testAccessSecret }
func (testTokens) GetRefreshSecret() string { return testRefreshSecret }
func (testTokens) GetIssuer() string        { return "tests" }

type testMail struct{}

func (testMail) GetFrom() string            { return "no-reply@example.com" }
func (testMail) GetActivationURL() string   { return "http://app.test/activate?token={{ token }}" }
func (testMail) GetVerificationURL() string { return "http://app.test/verify?token={{ token }}" }

// testClock is a settable clock shared by the stores, the codec and the
// handlers of one test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// outbox records every email handed to the mailer
type outbox struct {
	mu   sync.Mutex
	sent []auth.MailMessage
	fail bool
}

func (o *outbox) Send(_ context.Context, msg auth.MailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return context.DeadlineExceeded
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) Last() (auth.MailMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return auth.MailMessage{}, false
	}
	return o.sent[len(o.sent)-1], true
}

func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

// events records activity events
type events struct {
	mu   sync.Mutex
	list []auth.ActivityEvent
}

func (e *events) Record(_ context.Context, event auth.ActivityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, event)
	return nil
}

func (e *events) Types() []auth.ActivityEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(e.list))
	for _, ev := range e.list {
		out = append(out, ev.EventType)
	}
	return out
}

// logRecorder keeps warning and error lines written through the Logger
// interface
type logRecorder struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *logRecorder) Debug(string, ...any) {}
func (l *logRecorder) Info(string, ...any)  {}

func (l *logRecorder) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *logRecorder) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *logRecorder) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *logRecorder) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type harness struct {
	db     *bun.DB
	clock  *testClock
	repo   auth.RepositoryManager
	codec  *auth.TokenCodec
	auther *auth.Auther
	mail   *outbox
	events *events
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, dialect, err := auth.OpenDB(testDB{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db.DB, dialect))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		db:     openTestDB(t),
		clock:  newTestClock(),
		mail:   &outbox{},
		events: &events{},
	}

	h.repo = auth.NewRepositoryManager(h.db, h.clock)

	codec, err := auth.NewTokenCodec(testTokens{})
	require.NoError(t, err)
	h.codec = codec.WithClock(h.clock)

	notifier, err := auth.NewNotifier(h.mail, testMail{})
	require.NoError(t, err)

	h.auther = auth.NewAuthenticator(h.repo, h.codec, auth.NewPasswordHasher(auth.MinPasswordIterations)).
		WithClock(h.clock).
		WithNotifier(notifier).
		WithActivitySink(h.events).
		WithLogger(auth.NewSlogLogger(nil))

	return h
}

// register creates an account through the registration command and returns
// it with its activation token.
func (h *harness) register(t *testing.T, username, email string) (*auth.User, *auth.ShortLivedToken) {
	t.Helper()

	var res *auth.RegisterUserResponse
	err := h.auther.RegisterUserHandler().Execute(context.Background(), auth.RegisterUserMessage{
		Username:   username,
		Email:      email,
		Password:   testPassword,
		OnResponse: func(r *auth.RegisterUserResponse) { res = r },
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	return res.User, res.Token
}

// seedUser inserts a user directly through the store
func (h *harness) seedUser(t *testing.T, username string) *auth.User {
	t.Helper()

	digest, err := h.auther.Hasher().Hash(testPassword)
	require.NoError(t, err)

	user, err := h.repo.Users().Register(context.Background(), &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: digest,
	})
	require.NoError(t, err)
	return user
}
