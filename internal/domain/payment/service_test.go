package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/pkg/creem"
)

/* =========================
   Fakes
   ========================= */

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*Order)}
}

func (f *fakeOrderStore) Create(ctx context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.OrderNo] = &cp
	return nil
}

func (f *fakeOrderStore) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderNo]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, ErrOrderNotFound
}

func (f *fakeOrderStore) MarkCompleted(ctx context.Context, orderNo, checkoutID, providerOrderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderNo]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = StatusCompleted
	o.CheckoutID = checkoutID
	o.ProviderOrderID = providerOrderID
	return true, nil
}

func (f *fakeOrderStore) MarkFailed(ctx context.Context, orderNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderNo]; ok && o.Status == StatusPending {
		o.Status = StatusFailed
	}
	return nil
}

func (f *fakeOrderStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

type fakeCheckout struct {
	err      error
	requests []creem.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckout(ctx context.Context, req creem.CheckoutRequest) (*creem.CheckoutResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &creem.CheckoutResponse{
		ID:          "ch_test",
		CheckoutURL: "https://checkout.test/ch_test",
		Status:      "pending",
	}, nil
}

type fakeGranter struct {
	grants   []credit.GrantOptions
	users    []uuid.UUID
	sums     []int64
	seen     map[string]bool
	failures int // fail this many calls before succeeding
}

func (f *fakeGranter) Grant(ctx context.Context, userID uuid.UUID, amount int64, opts credit.GrantOptions) (*credit.Transaction, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("store timeout")
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if opts.OrderNo != "" && f.seen[opts.OrderNo] {
		return nil, credit.ErrDuplicateOrderNo
	}
	f.seen[opts.OrderNo] = true
	f.grants = append(f.grants, opts)
	f.users = append(f.users, userID)
	f.sums = append(f.sums, amount)
	return &credit.Transaction{ID: uuid.New(), UserID: userID, Credits: amount}, nil
}

func newTestPaymentService(store OrderStore, checkout CheckoutClient, granter CreditGranter) *Service {
	return NewService(store, checkout, granter, Config{
		Packs:             DefaultPacks("prod_starter", "prod_creator", "prod_studio"),
		CreditsValidDays:  365,
		CheckoutReturnURL: "https://app.test/billing/done",
	})
}

/* =========================
   Tests
   ========================= */

func TestCheckout(t *testing.T) {
	store := newFakeOrderStore()
	checkout := &fakeCheckout{}
	svc := newTestPaymentService(store, checkout, &fakeGranter{})
	userID := uuid.New()

	order, url, err := svc.Checkout(context.Background(), userID, "buyer@example.com", "creator")
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	if url != "https://checkout.test/ch_test" {
		t.Errorf("checkout url = %s", url)
	}
	if order.Status != StatusPending {
		t.Errorf("order status = %s, want pending", order.Status)
	}
	if order.Credits != 300 {
		t.Errorf("order credits = %d, want 300", order.Credits)
	}

	if len(checkout.requests) != 1 {
		t.Fatalf("expected 1 checkout request")
	}
	req := checkout.requests[0]
	if req.ProductID != "prod_creator" {
		t.Errorf("product id = %s", req.ProductID)
	}
	if req.RequestID != order.OrderNo {
		t.Errorf("request id should be the order number")
	}
	if req.Metadata["user_id"] != userID.String() {
		t.Errorf("metadata user_id = %s", req.Metadata["user_id"])
	}
}

func TestCheckoutUnknownPack(t *testing.T) {
	svc := newTestPaymentService(newFakeOrderStore(), &fakeCheckout{}, &fakeGranter{})

	_, _, err := svc.Checkout(context.Background(), uuid.New(), "", "mega")
	if !errors.Is(err, ErrUnknownPack) {
		t.Fatalf("expected ErrUnknownPack, got %v", err)
	}
}

func TestCheckoutProviderFailure(t *testing.T) {
	store := newFakeOrderStore()
	checkout := &fakeCheckout{err: errors.New("provider down")}
	svc := newTestPaymentService(store, checkout, &fakeGranter{})

	_, _, err := svc.Checkout(context.Background(), uuid.New(), "", "starter")
	if !errors.Is(err, ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed, got %v", err)
	}

	// The pending order was flipped to failed rather than left dangling
	for _, o := range store.orders {
		if o.Status != StatusFailed {
			t.Errorf("order status = %s, want failed", o.Status)
		}
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	store := newFakeOrderStore()
	granter := &fakeGranter{}
	svc := newTestPaymentService(store, &fakeCheckout{}, granter)
	userID := uuid.New()

	order, _, err := svc.Checkout(context.Background(), userID, "", "studio")
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	checkout := &creem.CheckoutObject{
		ID:        "ch_test",
		RequestID: order.OrderNo,
		Status:    "completed",
	}
	checkout.Order.ID = "order_prov_1"
	checkout.Order.Status = "paid"

	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); err != nil {
		t.Fatalf("HandleCheckoutCompleted() error = %v", err)
	}

	if len(granter.grants) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(granter.grants))
	}
	g := granter.grants[0]
	if g.Scene != credit.ScenePurchase {
		t.Errorf("grant scene = %s, want purchase", g.Scene)
	}
	if g.OrderNo != order.OrderNo {
		t.Errorf("grant order no = %s, want %s", g.OrderNo, order.OrderNo)
	}
	if g.ExpiresInDays == nil || *g.ExpiresInDays != 365 {
		t.Errorf("grant expiry days = %v, want 365", g.ExpiresInDays)
	}
	if granter.sums[0] != 1000 {
		t.Errorf("granted credits = %d, want 1000", granter.sums[0])
	}

	stored, _ := store.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != StatusCompleted {
		t.Errorf("order status = %s, want completed", stored.Status)
	}

	// Webhook replay must not grant twice
	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if len(granter.grants) != 1 {
		t.Errorf("replay granted again: %d grants", len(granter.grants))
	}
}

func TestHandleCheckoutCompletedGrantRetry(t *testing.T) {
	store := newFakeOrderStore()
	granter := &fakeGranter{failures: 1}
	svc := newTestPaymentService(store, &fakeCheckout{}, granter)
	userID := uuid.New()

	order, _, err := svc.Checkout(context.Background(), userID, "", "starter")
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	checkout := &creem.CheckoutObject{ID: "ch_test", RequestID: order.OrderNo}
	checkout.Order.ID = "order_prov_2"

	// First delivery flips the order but the grant fails, so the webhook
	// errors and the provider will redeliver
	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); err == nil {
		t.Fatal("expected error when the grant fails")
	}
	stored, _ := store.GetByOrderNo(context.Background(), order.OrderNo)
	if stored.Status != StatusCompleted {
		t.Fatalf("order status = %s, want completed", stored.Status)
	}
	if len(granter.grants) != 0 {
		t.Fatalf("grant recorded despite failure")
	}

	// Redelivery sees the already-completed order but must still grant
	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if len(granter.grants) != 1 {
		t.Fatalf("expected the retry to grant, got %d grants", len(granter.grants))
	}
	if granter.sums[0] != 100 {
		t.Errorf("granted credits = %d, want 100", granter.sums[0])
	}

	// A third delivery is a true replay and must not grant again
	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if len(granter.grants) != 1 {
		t.Errorf("replay granted again: %d grants", len(granter.grants))
	}
}

func TestHandleCheckoutCompletedUnknownOrder(t *testing.T) {
	svc := newTestPaymentService(newFakeOrderStore(), &fakeCheckout{}, &fakeGranter{})

	checkout := &creem.CheckoutObject{ID: "ch_x", RequestID: "ord_missing"}
	if err := svc.HandleCheckoutCompleted(context.Background(), checkout); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
