package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/services"
	"github.com/BradenHooton/portal/internal/store"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithViewer adds a loaded session viewer to the request context
func WithViewer(req *http.Request, uid string, role models.Role) *http.Request {
	viewer := models.Viewer{UID: uid, Email: uid + "@example.com", FullName: "Test " + uid, Role: role}
	return req.WithContext(auth.ContextWithViewer(req.Context(), viewer))
}

// WithClaims adds verified token claims only, as on the signup routes
func WithClaims(req *http.Request, uid, email string) *http.Request {
	claims := &models.TokenClaims{
		Email:            email,
		EmailVerified:    true,
		RegisteredClaims: jwt.RegisteredClaims{Subject: uid},
	}
	return req.WithContext(context.WithValue(req.Context(), auth.ClaimsContextKey, claims))
}

// WithURLParam sets a chi route parameter
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetProfileFunc        func(ctx context.Context, uid string) (*models.User, error)
	CreateProfileFunc     func(ctx context.Context, uid, email string, input services.ProfileInput) (*models.User, error)
	ListUsersFunc         func(ctx context.Context, viewer models.Viewer, role models.Role) ([]*models.User, error)
	SuspendFunc           func(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error)
	UnsuspendFunc         func(ctx context.Context, viewer models.Viewer, uid string) (*models.User, error)
	PromoteToDelegateFunc func(ctx context.Context, viewer models.Viewer, uid, filiereID string) (*models.User, error)
	RequestMentorRoleFunc func(ctx context.Context, viewer models.Viewer, motivation string) (*models.Request, error)
	ApproveMentorFunc     func(ctx context.Context, viewer models.Viewer, requestID string) (*models.User, error)
}

func (m *MockUserService) GetProfile(ctx context.Context, uid string) (*models.User, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, uid)
}

func (m *MockUserService) CreateProfile(ctx context.Context, uid, email string, input services.ProfileInput) (*models.User, error) {
	if m.CreateProfileFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateProfileFunc(ctx, uid, email, input)
}

func (m *MockUserService) ListUsers(ctx context.Context, viewer models.Viewer, role models.Role) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, viewer, role)
}

func (m *MockUserService) Suspend(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error) {
	if m.SuspendFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.SuspendFunc(ctx, viewer, uid, reason)
}

func (m *MockUserService) Unsuspend(ctx context.Context, viewer models.Viewer, uid string) (*models.User, error) {
	if m.UnsuspendFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UnsuspendFunc(ctx, viewer, uid)
}

func (m *MockUserService) PromoteToDelegate(ctx context.Context, viewer models.Viewer, uid, filiereID string) (*models.User, error) {
	if m.PromoteToDelegateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.PromoteToDelegateFunc(ctx, viewer, uid, filiereID)
}

func (m *MockUserService) RequestMentorRole(ctx context.Context, viewer models.Viewer, motivation string) (*models.Request, error) {
	if m.RequestMentorRoleFunc == nil {
		return nil, models.ErrForbidden
	}
	return m.RequestMentorRoleFunc(ctx, viewer, motivation)
}

func (m *MockUserService) ApproveMentor(ctx context.Context, viewer models.Viewer, requestID string) (*models.User, error) {
	if m.ApproveMentorFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ApproveMentorFunc(ctx, viewer, requestID)
}

// MockRequestService implements RequestService for testing
type MockRequestService struct {
	SubmitFunc          func(ctx context.Context, viewer models.Viewer, input services.SubmitRequestInput) (*models.Request, error)
	ApproveFunc         func(ctx context.Context, viewer models.Viewer, id string) (*models.Request, error)
	RejectFunc          func(ctx context.Context, viewer models.Viewer, id, reason string) (*models.Request, error)
	AccessLinkFunc      func(ctx context.Context, viewer models.Viewer, id string) (*models.AccessLink, error)
	VerifyPINFunc       func(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error)
	ListMineFunc        func(ctx context.Context, viewer models.Viewer) ([]*models.Request, error)
	ListForDelegateFunc func(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error)
	ListByStatusFunc    func(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error)
}

func (m *MockRequestService) Submit(ctx context.Context, viewer models.Viewer, input services.SubmitRequestInput) (*models.Request, error) {
	if m.SubmitFunc == nil {
		return nil, models.ErrDuplicateRequest
	}
	return m.SubmitFunc(ctx, viewer, input)
}

func (m *MockRequestService) Approve(ctx context.Context, viewer models.Viewer, id string) (*models.Request, error) {
	if m.ApproveFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ApproveFunc(ctx, viewer, id)
}

func (m *MockRequestService) Reject(ctx context.Context, viewer models.Viewer, id, reason string) (*models.Request, error) {
	if m.RejectFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RejectFunc(ctx, viewer, id, reason)
}

func (m *MockRequestService) AccessLink(ctx context.Context, viewer models.Viewer, id string) (*models.AccessLink, error) {
	if m.AccessLinkFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.AccessLinkFunc(ctx, viewer, id)
}

func (m *MockRequestService) VerifyPIN(ctx context.Context, viewer models.Viewer, pin string) (*models.AccessLink, error) {
	if m.VerifyPINFunc == nil {
		return nil, models.ErrInvalidPIN
	}
	return m.VerifyPINFunc(ctx, viewer, pin)
}

func (m *MockRequestService) ListMine(ctx context.Context, viewer models.Viewer) ([]*models.Request, error) {
	if m.ListMineFunc == nil {
		return []*models.Request{}, nil
	}
	return m.ListMineFunc(ctx, viewer)
}

func (m *MockRequestService) ListForDelegate(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error) {
	if m.ListForDelegateFunc == nil {
		return []*models.Request{}, nil
	}
	return m.ListForDelegateFunc(ctx, viewer, status)
}

func (m *MockRequestService) ListByStatus(ctx context.Context, viewer models.Viewer, status models.RequestStatus) ([]*models.Request, error) {
	if m.ListByStatusFunc == nil {
		return []*models.Request{}, nil
	}
	return m.ListByStatusFunc(ctx, viewer, status)
}

// MockValidationService implements ValidationService for testing
type MockValidationService struct {
	ApproveUserFunc         func(ctx context.Context, viewer models.Viewer, uid string, role models.Role) (*services.ApproveUserResult, error)
	RejectUserFunc          func(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error)
	ListPendingAccountsFunc func(ctx context.Context, viewer models.Viewer) ([]*models.User, error)
}

func (m *MockValidationService) ApproveUser(ctx context.Context, viewer models.Viewer, uid string, role models.Role) (*services.ApproveUserResult, error) {
	if m.ApproveUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ApproveUserFunc(ctx, viewer, uid, role)
}

func (m *MockValidationService) RejectUser(ctx context.Context, viewer models.Viewer, uid, reason string) (*models.User, error) {
	if m.RejectUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RejectUserFunc(ctx, viewer, uid, reason)
}

func (m *MockValidationService) ListPendingAccounts(ctx context.Context, viewer models.Viewer) ([]*models.User, error) {
	if m.ListPendingAccountsFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListPendingAccountsFunc(ctx, viewer)
}

// MockNotificationService implements NotificationService for testing
type MockNotificationService struct {
	SendFunc      func(ctx context.Context, viewer models.Viewer, draft services.MessageDraft) (*models.Message, error)
	MarkReadFunc  func(ctx context.Context, viewer models.Viewer, id string) error
	InboxFunc     func(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error)
	ListFunc      func(ctx context.Context, viewer models.Viewer, limit int) ([]*models.Message, error)
	EditFunc      func(ctx context.Context, viewer models.Viewer, id string, edit services.MessageEdit) (*models.Message, error)
	DeleteFunc    func(ctx context.Context, viewer models.Viewer, id string) error
	DeleteAllFunc func(ctx context.Context, viewer models.Viewer, progress store.ProgressFunc) (int, error)
}

func (m *MockNotificationService) Send(ctx context.Context, viewer models.Viewer, draft services.MessageDraft) (*models.Message, error) {
	if m.SendFunc == nil {
		return nil, models.ErrForbidden
	}
	return m.SendFunc(ctx, viewer, draft)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, viewer models.Viewer, id string) error {
	if m.MarkReadFunc == nil {
		return nil
	}
	return m.MarkReadFunc(ctx, viewer, id)
}

func (m *MockNotificationService) Inbox(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error) {
	if m.InboxFunc == nil {
		return &inbox.Inbox{}, nil
	}
	return m.InboxFunc(ctx, viewer)
}

func (m *MockNotificationService) List(ctx context.Context, viewer models.Viewer, limit int) ([]*models.Message, error) {
	if m.ListFunc == nil {
		return []*models.Message{}, nil
	}
	return m.ListFunc(ctx, viewer, limit)
}

func (m *MockNotificationService) Edit(ctx context.Context, viewer models.Viewer, id string, edit services.MessageEdit) (*models.Message, error) {
	if m.EditFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.EditFunc(ctx, viewer, id, edit)
}

func (m *MockNotificationService) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, viewer, id)
}

func (m *MockNotificationService) DeleteAll(ctx context.Context, viewer models.Viewer, progress store.ProgressFunc) (int, error) {
	if m.DeleteAllFunc == nil {
		return 0, nil
	}
	return m.DeleteAllFunc(ctx, viewer, progress)
}

// MockConfigService implements ConfigService for testing
type MockConfigService struct {
	GetFunc                func(ctx context.Context) (*models.SystemConfig, error)
	SetMessageDurationFunc func(ctx context.Context, viewer models.Viewer, hours float64) error
}

func (m *MockConfigService) Get(ctx context.Context) (*models.SystemConfig, error) {
	if m.GetFunc == nil {
		return &models.SystemConfig{MessageDuration: models.DefaultMessageDurationHours}, nil
	}
	return m.GetFunc(ctx)
}

func (m *MockConfigService) SetMessageDuration(ctx context.Context, viewer models.Viewer, hours float64) error {
	if m.SetMessageDurationFunc == nil {
		return nil
	}
	return m.SetMessageDurationFunc(ctx, viewer, hours)
}

// MockFiliereService implements FiliereService for testing
type MockFiliereService struct {
	ListFunc            func(ctx context.Context) ([]*models.Filiere, error)
	GetFunc             func(ctx context.Context, id string) (*models.Filiere, error)
	ListForDelegateFunc func(ctx context.Context, viewer models.Viewer, niveau string) ([]*models.Filiere, error)
	CreateFunc          func(ctx context.Context, viewer models.Viewer, input services.FiliereInput) (*models.Filiere, error)
	UpdateFunc          func(ctx context.Context, viewer models.Viewer, id string, update services.FiliereUpdate) (*models.Filiere, error)
	DeleteFunc          func(ctx context.Context, viewer models.Viewer, id string) error
	AccessQRCodeFunc    func(ctx context.Context, viewer models.Viewer, id string) ([]byte, error)
}

func (m *MockFiliereService) List(ctx context.Context) ([]*models.Filiere, error) {
	if m.ListFunc == nil {
		return []*models.Filiere{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockFiliereService) Get(ctx context.Context, id string) (*models.Filiere, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockFiliereService) ListForDelegate(ctx context.Context, viewer models.Viewer, niveau string) ([]*models.Filiere, error) {
	if m.ListForDelegateFunc == nil {
		return []*models.Filiere{}, nil
	}
	return m.ListForDelegateFunc(ctx, viewer, niveau)
}

func (m *MockFiliereService) Create(ctx context.Context, viewer models.Viewer, input services.FiliereInput) (*models.Filiere, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrForbidden
	}
	return m.CreateFunc(ctx, viewer, input)
}

func (m *MockFiliereService) Update(ctx context.Context, viewer models.Viewer, id string, update services.FiliereUpdate) (*models.Filiere, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, viewer, id, update)
}

func (m *MockFiliereService) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, viewer, id)
}

func (m *MockFiliereService) AccessQRCode(ctx context.Context, viewer models.Viewer, id string) ([]byte, error) {
	if m.AccessQRCodeFunc == nil {
		return nil, models.ErrLinkNotConfigured
	}
	return m.AccessQRCodeFunc(ctx, viewer, id)
}

// MockChatService implements ChatService for testing
type MockChatService struct {
	ReplyFunc func(ctx context.Context, viewer models.Viewer, message string) string
}

func (m *MockChatService) Reply(ctx context.Context, viewer models.Viewer, message string) string {
	if m.ReplyFunc == nil {
		return ""
	}
	return m.ReplyFunc(ctx, viewer, message)
}

// MockBackupService implements BackupService for testing
type MockBackupService struct {
	ExportFunc func(ctx context.Context, viewer models.Viewer) (map[string][]store.Document, error)
	ImportFunc func(ctx context.Context, viewer models.Viewer, data map[string][]store.Document) (int, error)
}

func (m *MockBackupService) Export(ctx context.Context, viewer models.Viewer) (map[string][]store.Document, error) {
	if m.ExportFunc == nil {
		return map[string][]store.Document{}, nil
	}
	return m.ExportFunc(ctx, viewer)
}

func (m *MockBackupService) Import(ctx context.Context, viewer models.Viewer, data map[string][]store.Document) (int, error) {
	if m.ImportFunc == nil {
		return 0, nil
	}
	return m.ImportFunc(ctx, viewer, data)
}

// MockAdminService implements AdminService and AuditService for testing
type MockAdminService struct {
	GetDashboardStatsFunc func(ctx context.Context, viewer models.Viewer) (*services.DashboardStatsResponse, error)
	ListFunc              func(ctx context.Context, viewer models.Viewer, targetID string, limit int) ([]*models.LogEntry, error)
}

func (m *MockAdminService) GetDashboardStats(ctx context.Context, viewer models.Viewer) (*services.DashboardStatsResponse, error) {
	if m.GetDashboardStatsFunc == nil {
		return &services.DashboardStatsResponse{}, nil
	}
	return m.GetDashboardStatsFunc(ctx, viewer)
}

func (m *MockAdminService) List(ctx context.Context, viewer models.Viewer, targetID string, limit int) ([]*models.LogEntry, error) {
	if m.ListFunc == nil {
		return []*models.LogEntry{}, nil
	}
	return m.ListFunc(ctx, viewer, targetID, limit)
}
