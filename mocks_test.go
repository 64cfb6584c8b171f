package readers_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	readers "github.com/spannertools/go-readers"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Readers() readers.Readers {
	args := m.Called()
	return args.Get(0).(readers.Readers)
}

type MockReaders struct {
	mock.Mock
}

func (m *MockReaders) FindByLogin(ctx context.Context, login string) (*readers.Reader, error) {
	args := m.Called(ctx, login)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*readers.Reader, error) {
	args := m.Called(ctx, tx, login)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) FindByID(ctx context.Context, id uuid.UUID) (*readers.Reader, error) {
	args := m.Called(ctx, id)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*readers.Reader, error) {
	args := m.Called(ctx, tx, id)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) GetByIdentifier(ctx context.Context, identifier string) (*readers.Reader, error) {
	args := m.Called(ctx, identifier)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*readers.Reader, error) {
	args := m.Called(ctx, tx, identifier)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaders) Register(ctx context.Context, record *readers.Reader) (*readers.Reader, error) {
	args := m.Called(ctx, record)
	if rec := readerArg(args, 0); rec != nil {
		return rec, args.Error(1)
	}
	return record, args.Error(1)
}

// RegisterTx echoes the record back when no explicit return value was
// configured, mirroring how the real repository returns the created row.
func (m *MockReaders) RegisterTx(ctx context.Context, tx bun.IDB, record *readers.Reader) (*readers.Reader, error) {
	args := m.Called(ctx, tx, record)
	if rec := readerArg(args, 0); rec != nil {
		return rec, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockReaders) Activate(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockReaders) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tx, id, at)
	return args.Error(0)
}

func (m *MockReaders) StageReset(ctx context.Context, id uuid.UUID, salt, provisionalHash, token string) error {
	args := m.Called(ctx, id, salt, provisionalHash, token)
	return args.Error(0)
}

func (m *MockReaders) StageResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, salt, provisionalHash, token string) error {
	args := m.Called(ctx, tx, id, salt, provisionalHash, token)
	return args.Error(0)
}

func (m *MockReaders) PromotePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockReaders) PromotePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockReaders) SetTrusted(ctx context.Context, id uuid.UUID, trusted bool) error {
	args := m.Called(ctx, id, trusted)
	return args.Error(0)
}

func (m *MockReaders) SetTrustedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, trusted bool) error {
	args := m.Called(ctx, tx, id, trusted)
	return args.Error(0)
}

func readerArg(args mock.Arguments, index int) *readers.Reader {
	if rec := args.Get(index); rec != nil {
		return rec.(*readers.Reader)
	}
	return nil
}

type MockReaderStore struct {
	mock.Mock
}

func (m *MockReaderStore) FindByLogin(ctx context.Context, login string) (*readers.Reader, error) {
	args := m.Called(ctx, login)
	return readerArg(args, 0), args.Error(1)
}

func (m *MockReaderStore) FindByID(ctx context.Context, id uuid.UUID) (*readers.Reader, error) {
	args := m.Called(ctx, id)
	return readerArg(args, 0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(ctx context.Context, n readers.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event readers.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// capturingNotifier keeps every delivered notification so tests can inspect
// tokens and provisional secrets minted inside the handlers.
type capturingNotifier struct {
	mu            sync.Mutex
	notifications []readers.Notification
}

func (c *capturingNotifier) Deliver(_ context.Context, n readers.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
	return nil
}

func (c *capturingNotifier) last() (readers.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notifications) == 0 {
		return readers.Notification{}, false
	}
	return c.notifications[len(c.notifications)-1], true
}

type capturingSink struct {
	mu     sync.Mutex
	events []readers.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, event readers.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) types() []readers.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]readers.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type testLogger struct{}

func (testLogger) Debug(format string, args ...any) {}
func (testLogger) Info(format string, args ...any)  {}
func (testLogger) Warn(format string, args ...any)  {}
func (testLogger) Error(format string, args ...any) {}
