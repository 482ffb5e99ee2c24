package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/application/service"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
	"github.com/garyjia/erp-approvals/internal/infrastructure/cache"
	"github.com/garyjia/erp-approvals/internal/infrastructure/export"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/erp-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/erp-approvals/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingQueue struct {
	mu         sync.Mutex
	deliveries []port.Delivery
}

func (q *recordingQueue) Enqueue(ctx context.Context, delivery port.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deliveries = append(q.deliveries, delivery)
	return nil
}

func (q *recordingQueue) recipients() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.deliveries))
	for _, d := range q.deliveries {
		out = append(out, d.Recipient)
	}
	return out
}

type testEnv struct {
	server *Server
	queue  *recordingQueue
	health error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	zl := zap.NewNop()

	sqlDB, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}, zl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.NewMigrator(sqlDB, zl).RunMigrations(""))
	db := sqlite.NewDB(sqlDB.DB, zl)

	ruleRepo := repository.NewRuleRepository(db, zl)
	requestRepo := repository.NewRequestRepository(db, zl)
	notificationRepo := repository.NewNotificationRepository(db, zl)
	memberships := cache.NewMembershipCache(repository.NewMembershipRepository(db, zl), time.Minute, 100)

	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(nopLogger{}))
	t.Cleanup(func() { _ = disp.Close() })

	rules := service.NewRuleService(ruleRepo, export.NewRuleRegister(zl), db, nopLogger{})
	eligibility := service.NewEligibilityService(rules, requestRepo, memberships)
	deps := service.ApprovalDeps{
		Rules:        rules,
		Eligibility:  eligibility,
		RuleRepo:     ruleRepo,
		RequestRepo:  requestRepo,
		HistoryRepo:  repository.NewHistoryRepository(db, zl),
		DocumentRepo: repository.NewDocumentRepository(db, zl),
		Memberships:  memberships,
		TxManager:    db,
		Dispatcher:   disp,
		Logger:       nopLogger{},
	}

	env := &testEnv{queue: &recordingQueue{}}
	notifications := service.NewNotificationService(notificationRepo, memberships, env.queue, nopLogger{})
	disp.SubscribeMany([]event.Type{event.TypeApprovalRequested, event.TypeApprovalApproved, event.TypeApprovalRejected},
		"notifications", notifications.HandleEvent)

	env.server = NewServer(DefaultServerConfig(), Services{
		Rules:         rules,
		Approvals:     service.NewApprovalService(deps),
		Documents:     service.NewDocumentService(deps),
		Eligibility:   eligibility,
		Memberships:   service.NewMembershipService(memberships, nopLogger{}),
		Notifications: notifications,
		Health:        func(ctx context.Context) error { return env.health },
	}, nopLogger{})
	return env
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
}

func (e *testEnv) call(t *testing.T, method, path, user string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != xlsxContentType {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec.Code, resp
}

func decode[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), string(resp.Data))
	return v
}

// seed creates rules {0 -> buyers} and {1000 -> finance} for purchase orders
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	for _, rule := range []map[string]interface{}{
		{"documentType": "purchaseOrder", "name": "Small", "lowerBoundAmount": "0", "approverGroupIds": []string{"buyers"}},
		{"documentType": "purchaseOrder", "name": "Large", "lowerBoundAmount": "1000", "approverGroupIds": []string{"finance"}},
	} {
		status, resp := e.call(t, http.MethodPost, "/api/companies/acme/rules", "owner", rule)
		require.Equal(t, http.StatusCreated, status, resp.Error)
	}

	for group, user := range map[string]string{"buyers": "bob", "finance": "fiona"} {
		status, resp := e.call(t, http.MethodPost, "/api/companies/acme/groups/"+group+"/members", "owner",
			AddMemberBody{UserID: user})
		require.Equal(t, http.StatusNoContent, status, resp.Error)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", decode[HealthResponse](t, resp).Status)

	env.health = errors.New("database is locked")
	status, resp = env.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, resp).Status)
}

func TestRequireUser(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, http.MethodGet, "/api/companies/acme/rules", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, UserHeader)
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	t.Run("list in bound order", func(t *testing.T) {
		status, resp := env.call(t, http.MethodGet, "/api/companies/acme/rules?document_type=purchaseOrder", "bob", nil)
		require.Equal(t, http.StatusOK, status)
		rules := decode[[]entity.ApprovalRule](t, resp)
		require.Len(t, rules, 2)
		assert.Equal(t, "Small", rules[0].Name)
		assert.Equal(t, "Large", rules[1].Name)
	})

	t.Run("duplicate bound is a validation error", func(t *testing.T) {
		status, resp := env.call(t, http.MethodPost, "/api/companies/acme/rules", "owner", map[string]interface{}{
			"documentType": "purchaseOrder", "name": "Copy", "lowerBoundAmount": "1000.00", "approverGroupIds": []string{"x"},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "lowerBoundAmount", resp.Field)
	})

	t.Run("resolve", func(t *testing.T) {
		status, resp := env.call(t, http.MethodGet, "/api/companies/acme/rules/resolve?document_type=purchaseOrder&amount=1500", "bob", nil)
		require.Equal(t, http.StatusOK, status)
		body := decode[struct {
			ApprovalRequired bool                `json:"approval_required"`
			Rule             entity.ApprovalRule `json:"rule"`
		}](t, resp)
		assert.True(t, body.ApprovalRequired)
		assert.Equal(t, "Large", body.Rule.Name)

		status, _ = env.call(t, http.MethodGet, "/api/companies/acme/rules/resolve?document_type=purchaseOrder&amount=abc", "bob", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("patch by non owner is forbidden", func(t *testing.T) {
		_, resp := env.call(t, http.MethodGet, "/api/companies/acme/rules", "bob", nil)
		id := decode[[]entity.ApprovalRule](t, resp)[0].ID

		status, _ := env.call(t, http.MethodPatch, "/api/rules/"+id, "bob", []map[string]interface{}{
			{"op": "set_bool", "field": "enabled", "value": false},
		})
		assert.Equal(t, http.StatusForbidden, status)

		status, resp = env.call(t, http.MethodPatch, "/api/rules/"+id, "owner", []map[string]interface{}{
			{"op": "set_string", "field": "name", "value": "Everyday"},
		})
		require.Equal(t, http.StatusOK, status, resp.Error)
		assert.Equal(t, "Everyday", decode[entity.ApprovalRule](t, resp).Name)
	})

	t.Run("unknown rule", func(t *testing.T) {
		status, _ := env.call(t, http.MethodGet, "/api/rules/missing", "bob", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("export", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/companies/acme/rules/export", nil)
		req.Header.Set(UserHeader, "owner")
		rec := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "approval-rules-acme.xlsx")
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
	})
}

func TestDocumentApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	status, resp := env.call(t, http.MethodPost, "/api/companies/acme/documents", "rita", map[string]interface{}{
		"type": "purchaseOrder", "title": "Laptops", "amount": "1500",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	doc := decode[entity.Document](t, resp)
	assert.Equal(t, entity.DocumentStatusDraft, doc.Status)

	status, resp = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/submit", "rita", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, entity.DocumentStatusNeedsApproval, decode[entity.Document](t, resp).Status)

	status, resp = env.call(t, http.MethodGet, "/api/documents/"+doc.ID+"/permissions", "fiona", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[service.DocumentPermissions](t, resp).CanApprove)

	status, resp = env.call(t, http.MethodGet, "/api/companies/acme/inbox", "fiona", nil)
	require.Equal(t, http.StatusOK, status)
	inbox := decode[[]entity.ApprovalRequest](t, resp)
	require.Len(t, inbox, 1)
	assert.Equal(t, doc.ID, inbox[0].DocumentID)

	status, _ = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/approve", "bob", CommentRequest{})
	assert.Equal(t, http.StatusForbidden, status, "buyers do not cover 1500")

	status, resp = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/approve", "fiona", CommentRequest{Comment: "fine"})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, entity.DocumentStatusApproved, decode[entity.Document](t, resp).Status)

	status, _ = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/approve", "fiona", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, resp = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/advance", "rita", AdvanceBody{Trigger: "RELEASE"})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, entity.DocumentStatusToReceive, decode[entity.Document](t, resp).Status)

	status, resp = env.call(t, http.MethodGet, "/api/documents/"+doc.ID+"/request", "rita", nil)
	require.Equal(t, http.StatusOK, status)
	request := decode[entity.ApprovalRequest](t, resp)
	assert.Equal(t, entity.ApprovalStatusApproved, request.Status)
	assert.Equal(t, "fiona", request.DecidedBy)

	status, resp = env.call(t, http.MethodGet, "/api/requests/"+request.ID+"/history", "rita", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[[]entity.ApprovalHistory](t, resp))

	assert.Eventually(t, func() bool {
		return len(env.queue.recipients()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"fiona", "rita"}, env.queue.recipients())
}

func TestCreateRequestEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	status, resp := env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", map[string]interface{}{
		"documentType": "issue", "documentId": "iss-1", "amount": "20",
	})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.False(t, decode[map[string]interface{}](t, resp)["approval_required"].(bool))

	body := map[string]interface{}{"documentType": "purchaseOrder", "documentId": "po-9", "amount": "20"}
	status, resp = env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", body)
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "documentId", resp.Field)

	status, resp = env.call(t, http.MethodGet, "/api/companies/acme/eligibility?document_type=purchaseOrder&amount=20&user_id=bob", "rita", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[map[string]interface{}](t, resp)["can_approve"].(bool))
}

func TestCreateRequestEndpoint_StoredDocument(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	status, resp := env.call(t, http.MethodPost, "/api/companies/acme/documents", "rita", map[string]interface{}{
		"type": "purchaseOrder", "title": "Chairs", "amount": "200",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	doc := decode[entity.Document](t, resp)

	status, resp = env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", map[string]interface{}{
		"documentType": "purchaseOrder", "documentId": doc.ID, "amount": "200",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "documentId", resp.Field)

	status, resp = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/submit", "rita", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, entity.DocumentStatusNeedsApproval, decode[entity.Document](t, resp).Status)

	status, resp = env.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/approve", "bob", CommentRequest{})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, entity.DocumentStatusApproved, decode[entity.Document](t, resp).Status)
}

func TestTransitionEndpoint_ReopenWithNewerPending(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	body := map[string]interface{}{"documentType": "purchaseOrder", "documentId": "po-ext", "amount": "20"}
	status, resp := env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", body)
	require.Equal(t, http.StatusCreated, status, resp.Error)
	first := decode[struct {
		Request entity.ApprovalRequest `json:"request"`
	}](t, resp).Request
	require.NotEmpty(t, first.ID)

	status, resp = env.call(t, http.MethodPost, "/api/requests/"+first.ID+"/transition", "bob",
		TransitionBody{Status: entity.ApprovalStatusRejected})
	require.Equal(t, http.StatusOK, status, resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/companies/acme/requests", "rita", body)
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/requests/"+first.ID+"/transition", "rita",
		TransitionBody{Status: entity.ApprovalStatusPending})
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEqual(t, "internal error", resp.Error)
}

func TestMembershipEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	status, resp := env.call(t, http.MethodGet, "/api/companies/acme/users/bob/groups", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"buyers"}, decode[[]string](t, resp))

	status, _ = env.call(t, http.MethodDelete, "/api/companies/acme/groups/buyers/members/bob", "owner", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, resp = env.call(t, http.MethodGet, "/api/companies/acme/users/bob/groups", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]string](t, resp))

	status, _ = env.call(t, http.MethodPost, "/api/companies/acme/groups/buyers/members", "owner", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}
