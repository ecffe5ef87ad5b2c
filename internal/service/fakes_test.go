package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jobfield/payment-engine/internal/models"
)

// fakeLedger is an in-memory TransactionLedger with the same conditional
// transition semantics as the Postgres repository.
type fakeLedger struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txs: make(map[string]*models.Transaction)}
}

func (l *fakeLedger) Create(ctx context.Context, tx *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *tx
	cp.CreatedAt = time.Now()
	l.txs[tx.CheckoutID] = &cp
	return nil
}

func (l *fakeLedger) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[checkoutID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *tx
	return &cp, nil
}

func (l *fakeLedger) MarkCompleted(ctx context.Context, checkoutID, receipt string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[checkoutID]
	if !ok || tx.Status != models.TxPending {
		return false, nil
	}
	tx.Status = models.TxCompleted
	tx.Receipt = receipt
	return true, nil
}

func (l *fakeLedger) MarkFailed(ctx context.Context, checkoutID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[checkoutID]
	if !ok || tx.Status != models.TxPending {
		return false, nil
	}
	tx.Status = models.TxFailed
	return true, nil
}

func (l *fakeLedger) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []models.Transaction
	for _, tx := range l.txs {
		if tx.Status == models.TxPending && tx.CreatedAt.Before(cutoff) {
			out = append(out, *tx)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type nopLocker struct{}

func (nopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (nopLocker) Release(ctx context.Context, key string) error { return nil }

// countingRouter records every dispatch.
type countingRouter struct {
	mu    sync.Mutex
	calls []routedCall
	err   error
}

type routedCall struct {
	tag     models.ReferenceTag
	amount  float64
	receipt string
}

func (r *countingRouter) Route(ctx context.Context, tag models.ReferenceTag, amount float64, receipt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, routedCall{tag: tag, amount: amount, receipt: receipt})
	return r.err
}

func (r *countingRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.StateChangeEvent
}

func (e *recordingEvents) PublishStateChange(ctx context.Context, ev models.StateChangeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

// fakeGateway is a canned PushGateway.
type fakeGateway struct {
	checkoutID string
	pushErr    error

	queryResult *models.STKQueryResult
	queryErr    error
}

func (g *fakeGateway) STKPush(ctx context.Context, phone string, amount float64, reference, description string) (string, error) {
	if g.pushErr != nil {
		return "", g.pushErr
	}
	return g.checkoutID, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutID string) (*models.STKQueryResult, error) {
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResult, nil
}

// fakeStore is an in-memory MarketplaceStore.
type fakeStore struct {
	mu      sync.Mutex
	bids    map[int64]*models.Bid
	skills  map[int64]*models.UserSkill
	records []models.PaymentRecord

	hideFees    map[int64]float64
	featureFees map[int64]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bids:        make(map[int64]*models.Bid),
		skills:      make(map[int64]*models.UserSkill),
		hideFees:    make(map[int64]float64),
		featureFees: make(map[int64]float64),
	}
}

func (s *fakeStore) GetBid(ctx context.Context, bidID int64) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids[bidID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *bid
	return &cp, nil
}

func (s *fakeStore) SetBidHideFee(ctx context.Context, bidID int64, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bidID].IsHidden = true
	s.hideFees[bidID] = amount
	return nil
}

func (s *fakeStore) SetBidFeatureFee(ctx context.Context, bidID int64, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bidID].IsFeatured = true
	s.featureFees[bidID] = amount
	return nil
}

func (s *fakeStore) GetUserSkill(ctx context.Context, userSkillID int64) (*models.UserSkill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.skills[userSkillID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *us
	return &cp, nil
}

func (s *fakeStore) MarkSkillFeePaid(ctx context.Context, userSkillID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[userSkillID].FeePaid = true
	return nil
}

func (s *fakeStore) InsertPaymentRecord(ctx context.Context, rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}
