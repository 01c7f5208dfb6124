//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
	"mpesa-subscription-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so tests stay quiet.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX unless a custom
// WithTxFunc is installed by the test.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock MpesaGateway ----

type MockMpesaGateway struct {
	mu sync.Mutex

	AuthenticateFunc func(ctx context.Context) (adapter.TokenGrant, error)
	STKPushFunc      func(ctx context.Context, accessToken string, req adapter.STKPushRequest) (adapter.STKPushResponse, error)

	Calls struct {
		Auth int
		Push []adapter.STKPushRequest
	}
}

var _ adapter.MpesaGateway = (*MockMpesaGateway)(nil)

func (m *MockMpesaGateway) Name() string { return "mpesa-mock" }

func (m *MockMpesaGateway) Authenticate(ctx context.Context) (adapter.TokenGrant, error) {
	m.mu.Lock()
	m.Calls.Auth++
	m.mu.Unlock()
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx)
	}
	return adapter.TokenGrant{AccessToken: "mock-token", ExpiresIn: 3600}, nil
}

func (m *MockMpesaGateway) STKPush(ctx context.Context, accessToken string, req adapter.STKPushRequest) (adapter.STKPushResponse, error) {
	m.mu.Lock()
	m.Calls.Push = append(m.Calls.Push, req)
	m.mu.Unlock()
	if m.STKPushFunc != nil {
		return m.STKPushFunc(ctx, accessToken, req)
	}
	return adapter.STKPushResponse{CheckoutRequestID: "ws_CO_mock", MerchantRequestID: "mr_mock"}, nil
}

// ---- Mock AccessTokenRepo ----

type MockTokenRepo struct {
	mu     sync.RWMutex
	tokens []*model.AccessToken

	SaveFunc            func(ctx context.Context, tx repository.Tx, t *model.AccessToken) error
	FindNewestValidFunc func(ctx context.Context, tx repository.Tx, at time.Time) (*model.AccessToken, error)
}

func NewMockTokenRepo() *MockTokenRepo { return &MockTokenRepo{} }

var _ repository.AccessTokenRepository = (*MockTokenRepo)(nil)

func (m *MockTokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.AccessToken) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens = append(m.tokens, &cp)
	return nil
}

func (m *MockTokenRepo) FindNewestValid(ctx context.Context, tx repository.Tx, at time.Time) (*model.AccessToken, error) {
	if m.FindNewestValidFunc != nil {
		return m.FindNewestValidFunc(ctx, tx, at)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *model.AccessToken
	for _, t := range m.tokens {
		if t.ExpiresAt.After(at) && (newest == nil || t.CreatedAt.After(newest.CreatedAt)) {
			newest = t
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

// ---- Mock PaymentRequestRepo ----

type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentRequest

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error
	FindByCheckoutRequestFunc func(ctx context.Context, tx repository.Tx, checkoutID string) (*model.PaymentRequest, error)
	MarkCompletedFunc         func(ctx context.Context, tx repository.Tx, id, receipt string, txDate time.Time, metadata map[string]any) (bool, error)
	MarkFailedFunc            func(ctx context.Context, tx repository.Tx, id string, resultCode int, resultDesc string) (bool, error)
	SumCompletedFunc          func(ctx context.Context, tx repository.Tx, period string) (int64, error)
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.PaymentRequest)}
}

var _ repository.PaymentRequestRepository = (*MockPaymentRepo)(nil)

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByCheckoutRequestID(ctx context.Context, tx repository.Tx, checkoutID string) (*model.PaymentRequest, error) {
	if m.FindByCheckoutRequestFunc != nil {
		return m.FindByCheckoutRequestFunc(ctx, tx, checkoutID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.CheckoutRequestID == checkoutID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentRequest
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) MarkCompletedIfPending(ctx context.Context, tx repository.Tx, id, receipt string, txDate time.Time, metadata map[string]any) (bool, error) {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, tx, id, receipt, txDate, metadata)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	zero := 0
	p.Status = model.PaymentStatusCompleted
	p.ResultCode = &zero
	p.ReceiptNumber = receipt
	p.TransactionDate = &txDate
	p.Metadata = metadata
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string, resultCode int, resultDesc string) (bool, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, id, resultCode, resultDesc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.ResultCode = &resultCode
	p.ResultDescription = resultDesc
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) CancelPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			p.Status = model.PaymentStatusCanceled
			n++
		}
	}
	return n, nil
}

func (m *MockPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	if m.SumCompletedFunc != nil {
		return m.SumCompletedFunc(ctx, tx, period)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

// ---- Mock PlanRepo ----

type MockPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.Plan)}
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (m *MockPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// ---- Mock SubscriptionRepo ----

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	SaveFunc         func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *MockSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *MockSubscriptionRepo) ExpireElapsed(ctx context.Context, tx repository.Tx, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if (s.Status == model.SubscriptionStatusActive || s.Status == model.SubscriptionStatusTrialing) && !s.EndDate.After(at) {
			s.Status = model.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

// ---- Mock UserRepo ----

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User

	SaveErr error
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.User
	for _, u := range m.store {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}
