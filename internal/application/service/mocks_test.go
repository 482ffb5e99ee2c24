package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/erp-approvals/internal/application/dispatcher"
	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// Mock repositories keep rows in maps so flows can be checked end to end.
// The func fields override the default behavior for error cases.

type mockRuleRepo struct {
	rules         map[string]*entity.ApprovalRule
	createFunc    func(ctx context.Context, rule *entity.ApprovalRule) error
	listErr       error
	getByIDErr    error
	deletedRuleID string
}

func newMockRuleRepo(rules ...*entity.ApprovalRule) *mockRuleRepo {
	m := &mockRuleRepo{rules: make(map[string]*entity.ApprovalRule)}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, rule)
	}
	copied := *rule
	m.rules[rule.ID] = &copied
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	rule, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	copied := *rule
	return &copied, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	copied := *rule
	m.rules[rule.ID] = &copied
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id string) error {
	delete(m.rules, id)
	m.deletedRuleID = id
	return nil
}

func (m *mockRuleRepo) ListByCompany(ctx context.Context, companyID string, documentType entity.DocumentType) ([]*entity.ApprovalRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.ApprovalRule
	for _, r := range m.rules {
		if r.CompanyID != companyID {
			continue
		}
		if documentType != "" && r.DocumentType != documentType {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockRequestRepo struct {
	requests        map[string]*entity.ApprovalRequest
	order           []string
	updateStatusErr error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*entity.ApprovalRequest)}
}

func (m *mockRequestRepo) Create(ctx context.Context, request *entity.ApprovalRequest) error {
	copied := *request
	m.requests[request.ID] = &copied
	m.order = append(m.order, request.ID)
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (m *mockRequestRepo) GetPendingByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	for _, id := range m.order {
		r := m.requests[id]
		if r.DocumentType == documentType && r.DocumentID == documentID && r.IsPending() {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) GetLatestByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) (*entity.ApprovalRequest, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.requests[m.order[i]]
		if r.DocumentType == documentType && r.DocumentID == documentID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, request *entity.ApprovalRequest) error {
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	stored, ok := m.requests[request.ID]
	if !ok || stored.Version != request.Version {
		return port.ErrStaleVersion
	}
	request.Version++
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *mockRequestRepo) ListPending(ctx context.Context, companyID string) ([]*entity.ApprovalRequest, error) {
	var out []*entity.ApprovalRequest
	for _, id := range m.order {
		r := m.requests[id]
		if r.CompanyID == companyID && r.IsPending() {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockDocumentRepo struct {
	docs      map[string]*entity.Document
	updateErr error
}

func newMockDocumentRepo(docs ...*entity.Document) *mockDocumentRepo {
	m := &mockDocumentRepo{docs: make(map[string]*entity.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.docs[doc.ID]
	if !ok || stored.Version != doc.Version {
		return port.ErrStaleVersion
	}
	doc.Version++
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentRepo) List(ctx context.Context, companyID string, documentType entity.DocumentType, limit, offset int) ([]*entity.Document, error) {
	var out []*entity.Document
	for _, d := range m.docs {
		if d.CompanyID == companyID && (documentType == "" || d.Type == documentType) {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockHistoryRepo struct {
	histories  []*entity.ApprovalHistory
	createFunc func(ctx context.Context, history *entity.ApprovalHistory) error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, history)
	}
	history.ID = int64(len(m.histories) + 1)
	m.histories = append(m.histories, history)
	return nil
}

func (m *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error) {
	var out []*entity.ApprovalHistory
	for _, h := range m.histories {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) GetByDocument(ctx context.Context, documentType entity.DocumentType, documentID string) ([]*entity.ApprovalHistory, error) {
	var out []*entity.ApprovalHistory
	for _, h := range m.histories {
		if h.DocumentType == documentType && h.DocumentID == documentID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockMembershipRepo struct {
	// groups maps user id to group ids
	groups     map[string][]string
	lookups    int
	groupsErr  error
	addFunc    func(ctx context.Context, membership *entity.GroupMembership) error
	removeFunc func(ctx context.Context, companyID, groupID, userID string) error
}

func newMockMembershipRepo(groups map[string][]string) *mockMembershipRepo {
	if groups == nil {
		groups = make(map[string][]string)
	}
	return &mockMembershipRepo{groups: groups}
}

func (m *mockMembershipRepo) GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error) {
	m.lookups++
	if m.groupsErr != nil {
		return nil, m.groupsErr
	}
	return m.groups[userID], nil
}

func (m *mockMembershipRepo) AddMember(ctx context.Context, membership *entity.GroupMembership) error {
	if m.addFunc != nil {
		return m.addFunc(ctx, membership)
	}
	m.groups[membership.UserID] = append(m.groups[membership.UserID], membership.GroupID)
	return nil
}

func (m *mockMembershipRepo) RemoveMember(ctx context.Context, companyID, groupID, userID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, companyID, groupID, userID)
	}
	kept := m.groups[userID][:0]
	for _, g := range m.groups[userID] {
		if g != groupID {
			kept = append(kept, g)
		}
	}
	m.groups[userID] = kept
	return nil
}

func (m *mockMembershipRepo) ListMembers(ctx context.Context, companyID, groupID string) ([]string, error) {
	var members []string
	for user, groups := range m.groups {
		for _, g := range groups {
			if g == groupID {
				members = append(members, user)
			}
		}
	}
	sort.Strings(members)
	return members, nil
}

type mockNotificationRepo struct {
	notifications []*entity.Notification
	failed        map[int64]string
	createErr     error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{failed: make(map[int64]string)}
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *entity.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	notification.ID = int64(len(m.notifications) + 1)
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	m.failed[id] = errorMessage
	return nil
}

func (m *mockNotificationRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockQueue struct {
	deliveries []port.Delivery
	err        error
}

func (m *mockQueue) Enqueue(ctx context.Context, delivery port.Delivery) error {
	if m.err != nil {
		return m.err
	}
	m.deliveries = append(m.deliveries, delivery)
	return nil
}

type mockExporter struct {
	exported []*entity.ApprovalRule
	err      error
}

func (m *mockExporter) Export(w io.Writer, companyID string, rules []*entity.ApprovalRule) error {
	if m.err != nil {
		return m.err
	}
	m.exported = rules
	_, err := w.Write([]byte("xlsx"))
	return err
}

type mockArchive struct {
	archived []*event.Event
	err      error
}

func (m *mockArchive) Archive(ctx context.Context, evt *event.Event) error {
	if m.err != nil {
		return m.err
	}
	m.archived = append(m.archived, evt)
	return nil
}

// mockTxManager runs fn directly; rollback is not simulated
type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
	calls               int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) SubscribeMany(eventTypes []event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, evt := range m.events {
		out = append(out, evt.Type)
	}
	return out
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var errStore = errors.New("disk I/O error")
