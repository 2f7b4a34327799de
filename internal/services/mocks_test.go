package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/repositories"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/require"
)

var (
	adminViewer   = models.Viewer{UID: "admin-1", FullName: "Ada Admin", Role: models.RoleAdmin}
	studentViewer = models.Viewer{UID: "student-1", FullName: "Sam Student", Role: models.RoleStudent}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires real repositories over an in-memory store.
type testEnv struct {
	store    *store.MemoryStore
	users    *repositories.UserRepository
	requests *repositories.RequestRepository
	filieres *repositories.FiliereRepository
	messages *repositories.MessageRepository
	logs     *repositories.LogRepository
	config   *repositories.ConfigRepository
	backup   *repositories.BackupRepository
	audit    *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, store.NewMemoryStore(nil))
}

func newTestEnvWithStore(t *testing.T, s store.Store) *testEnv {
	t.Helper()
	logs := repositories.NewLogRepository(s)
	env := &testEnv{
		users:    repositories.NewUserRepository(s),
		requests: repositories.NewRequestRepository(s),
		filieres: repositories.NewFiliereRepository(s),
		messages: repositories.NewMessageRepository(s),
		logs:     logs,
		config:   repositories.NewConfigRepository(s),
		backup:   repositories.NewBackupRepository(s),
		audit:    NewAuditService(logs, testLogger()),
	}
	if ms, ok := s.(*store.MemoryStore); ok {
		env.store = ms
	}
	return env
}

func (e *testEnv) seedUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if u.MentorStatus == "" {
		u.MentorStatus = models.MentorStatusNone
	}
	created, err := e.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedFiliere(t *testing.T, f *models.Filiere) *models.Filiere {
	t.Helper()
	created, err := e.filieres.Create(context.Background(), f)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedRequest(t *testing.T, r *models.Request) *models.Request {
	t.Helper()
	if r.Type == "" {
		r.Type = models.RequestTypeMembership
	}
	if r.Status == "" {
		r.Status = models.RequestStatusPending
	}
	created, err := e.requests.Create(context.Background(), r)
	require.NoError(t, err)
	return created
}

// actions returns the audit action types, newest first.
func (e *testEnv) actions(t *testing.T) []string {
	t.Helper()
	entries, err := e.logs.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ActionType)
	}
	return out
}

func (e *testEnv) requestService() *RequestService {
	return NewRequestService(e.requests, e.filieres, e.users, e.audit, nil, testLogger())
}

// flakyBatchStore fails every BatchWrite after the first failAfter calls.
type flakyBatchStore struct {
	*store.MemoryStore
	failAfter int
	calls     int
	err       error
}

func (s *flakyBatchStore) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	s.calls++
	if s.calls > s.failAfter {
		return s.err
	}
	return s.MemoryStore.BatchWrite(ctx, ops)
}

// hookBatchStore runs beforeFirst once, right before the first BatchWrite.
type hookBatchStore struct {
	*store.MemoryStore
	beforeFirst func()
	once        sync.Once
}

func (s *hookBatchStore) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	s.once.Do(func() {
		if s.beforeFirst != nil {
			s.beforeFirst()
		}
	})
	return s.MemoryStore.BatchWrite(ctx, ops)
}

// MockLogRepository implements AuditLogRepository for testing
type MockLogRepository struct {
	CreateFunc       func(ctx context.Context, entry *models.LogEntry) error
	ListRecentFunc   func(ctx context.Context, limit int) ([]*models.LogEntry, error)
	ListByTargetFunc func(ctx context.Context, targetID string, limit int) ([]*models.LogEntry, error)
}

func (m *MockLogRepository) Create(ctx context.Context, entry *models.LogEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

func (m *MockLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.LogEntry, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return []*models.LogEntry{}, nil
}

func (m *MockLogRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.LogEntry, error) {
	if m.ListByTargetFunc != nil {
		return m.ListByTargetFunc(ctx, targetID, limit)
	}
	return []*models.LogEntry{}, nil
}

// MockPendingRequestRepository implements PendingRequestRepository for testing
type MockPendingRequestRepository struct {
	ListPendingByUserFunc func(ctx context.Context, userID string) ([]*models.Request, error)
	ApproveManyFunc       func(ctx context.Context, ids []string, processedBy string) (int, error)
}

func (m *MockPendingRequestRepository) ListPendingByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	if m.ListPendingByUserFunc != nil {
		return m.ListPendingByUserFunc(ctx, userID)
	}
	return []*models.Request{}, nil
}

func (m *MockPendingRequestRepository) ApproveMany(ctx context.Context, ids []string, processedBy string) (int, error) {
	if m.ApproveManyFunc != nil {
		return m.ApproveManyFunc(ctx, ids, processedBy)
	}
	return len(ids), nil
}

// MockDecisionNotifier records decision notifications
type MockDecisionNotifier struct {
	NotifyDecisionFunc func(ctx context.Context, req *models.Request, link *models.AccessLink) error
	Calls              []*models.Request
}

func (m *MockDecisionNotifier) NotifyDecision(ctx context.Context, req *models.Request, link *models.AccessLink) error {
	m.Calls = append(m.Calls, req)
	if m.NotifyDecisionFunc != nil {
		return m.NotifyDecisionFunc(ctx, req, link)
	}
	return nil
}

// MockPINVerifier implements PINVerifier for testing
type MockPINVerifier struct {
	VerifyPINFunc func(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error)
}

func (m *MockPINVerifier) VerifyPIN(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error) {
	if m.VerifyPINFunc != nil {
		return m.VerifyPINFunc(ctx, viewer, pin)
	}
	return nil, models.ErrInvalidPIN
}

// MockSESClient implements SESClient for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}
