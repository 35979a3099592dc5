package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/pkg/creem"
)

// OrderStore is the persistence surface the service needs
type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	MarkCompleted(ctx context.Context, orderNo, checkoutID, providerOrderID string) (bool, error)
	MarkFailed(ctx context.Context, orderNo string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error)
}

// CheckoutClient creates hosted checkout sessions
type CheckoutClient interface {
	CreateCheckout(ctx context.Context, req creem.CheckoutRequest) (*creem.CheckoutResponse, error)
}

// CreditGranter issues purchased credits
type CreditGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, amount int64, opts credit.GrantOptions) (*credit.Transaction, error)
}

// Config for the payment service
type Config struct {
	Packs             map[string]Pack
	CreditsValidDays  int
	CheckoutReturnURL string
}

// Service owns credit pack purchases
type Service struct {
	orders  OrderStore
	creem   CheckoutClient
	credits CreditGranter
	config  Config
}

// NewService creates a payment service
func NewService(orders OrderStore, checkout CheckoutClient, credits CreditGranter, config Config) *Service {
	return &Service{
		orders:  orders,
		creem:   checkout,
		credits: credits,
		config:  config,
	}
}

// Packs returns the sellable credit bundles
func (s *Service) Packs() map[string]Pack {
	return s.config.Packs
}

// Checkout creates a pending order and a hosted checkout session for it
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, email, packName string) (*Order, string, error) {
	pack, ok := s.config.Packs[strings.ToLower(packName)]
	if !ok {
		return nil, "", ErrUnknownPack
	}

	now := time.Now().UTC()
	order := &Order{
		ID:          uuid.New(),
		UserID:      userID,
		OrderNo:     "ord_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Pack:        pack.Name,
		Credits:     pack.Credits,
		AmountCents: pack.AmountCents,
		Currency:    "USD",
		Status:      StatusPending,
		Provider:    "creem",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, "", err
	}

	checkout, err := s.creem.CreateCheckout(ctx, creem.CheckoutRequest{
		ProductID:     pack.ProductID,
		RequestID:     order.OrderNo,
		SuccessURL:    s.config.CheckoutReturnURL,
		CustomerEmail: email,
		Metadata: map[string]string{
			"user_id": userID.String(),
			"pack":    pack.Name,
			"credits": fmt.Sprintf("%d", pack.Credits),
		},
	})
	if err != nil {
		_ = s.orders.MarkFailed(ctx, order.OrderNo)
		return nil, "", fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	return order, checkout.CheckoutURL, nil
}

// HandleCheckoutCompleted processes a checkout.completed webhook. Replays are
// harmless: the order flip and the credit grant are both idempotent per
// order number.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, checkout *creem.CheckoutObject) error {
	orderNo := checkout.RequestID
	if orderNo == "" {
		return fmt.Errorf("checkout %s has no request_id", checkout.ID)
	}

	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	flipped, err := s.orders.MarkCompleted(ctx, orderNo, checkout.ID, checkout.Order.ID)
	if err != nil {
		return err
	}
	if !flipped {
		// The order was already completed. The grant below still runs:
		// if a previous delivery flipped the order but failed to grant,
		// this retry heals it, and a true replay stops at the order-no
		// dedup inside Grant.
		log.Info().Str("order_no", orderNo).Msg("checkout webhook replayed, re-checking grant")
	}

	meta, _ := json.Marshal(map[string]string{
		"pack":        order.Pack,
		"checkout_id": checkout.ID,
	})
	_, err = s.credits.Grant(ctx, order.UserID, order.Credits, credit.GrantOptions{
		Scene:         credit.ScenePurchase,
		ExpiresInDays: credit.Days(s.config.CreditsValidDays),
		OrderNo:       orderNo,
		TransactionNo: checkout.Order.ID,
		Description:   fmt.Sprintf("Purchased %s pack", order.Pack),
		Metadata:      meta,
	})
	if err != nil && !errors.Is(err, credit.ErrDuplicateOrderNo) {
		return err
	}
	return nil
}

// GetOrder returns an order by its public order number, scoped to the owner
func (s *Service) GetOrder(ctx context.Context, userID uuid.UUID, orderNo string) (*Order, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}
