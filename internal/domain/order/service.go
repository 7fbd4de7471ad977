package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/pricing"
	"github.com/xenking/orderflow/internal/domain/reservation"
	"github.com/xenking/orderflow/internal/events"
)

// CreateOrderRequest holds the input for placing an order. Item quantities
// are client-supplied; unit prices never are.
type CreateOrderRequest struct {
	BuyerID         string
	Items           []reservation.Item
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   PaymentMethod
	DiscountCode    string
}

// Service is the order lifecycle controller. It owns the state machine and
// coordinates the catalog, reservation manager, discount validator, pricing
// calculator and store. All failure paths after a successful reservation
// release it before the error surfaces, so no hold outlives its request
// without an order attached.
type Service struct {
	catalog   catalog.Reader
	stock     reservation.Manager
	discounts discount.Validator
	orders    Store
	publisher events.Publisher
	lg        *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates the lifecycle controller with its collaborators.
func NewService(
	cat catalog.Reader,
	stock reservation.Manager,
	discounts discount.Validator,
	orders Store,
	publisher events.Publisher,
	lg *zap.Logger,
) *Service {
	return &Service{
		catalog:   cat,
		stock:     stock,
		discounts: discounts,
		orders:    orders,
		publisher: publisher,
		lg:        lg,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateOrder runs the full checkout flow: validate shape, snapshot the
// catalog, reserve stock, validate the discount, compute pricing, persist the
// order as pending, then redeem the discount and emit OrderCreated.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}

	snapshots, err := s.catalog.GetSnapshot(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Fail fast before touching stock: every product must be active and able
	// to cover the requested quantity.
	for _, item := range req.Items {
		snap, ok := snapshots[item.ProductID]
		if !ok || !snap.Active {
			return nil, &catalog.ProductUnavailableError{
				ProductID: item.ProductID,
				Reason:    "not found or inactive",
			}
		}
		if snap.AvailableStock < item.Quantity {
			return nil, &catalog.ProductUnavailableError{
				ProductID: item.ProductID,
				Reason:    "requested quantity exceeds available stock",
			}
		}
	}

	orderID := s.newID()

	if err := s.stock.Reserve(ctx, orderID, req.Items); err != nil {
		return nil, err
	}

	// Everything past this point must compensate by releasing the hold.
	o, err := s.buildAndPersist(ctx, orderID, req, snapshots)
	if err != nil {
		if relErr := s.stock.Release(ctx, orderID); relErr != nil {
			s.lg.Error("release reservation after failed checkout",
				zap.String("order_id", orderID), zap.Error(relErr))
		}
		return nil, err
	}

	// Usage increments exactly once per durably created order. A failure here
	// must not fail the checkout; the order already exists.
	if o.DiscountCode != "" {
		if err := s.discounts.Redeem(ctx, o.DiscountCode); err != nil {
			s.lg.Warn("redeem discount after order creation",
				zap.String("order_id", o.ID),
				zap.String("code", o.DiscountCode),
				zap.Error(err))
		}
	}

	s.publisher.OrderCreated(ctx, o.ID)
	return o, nil
}

// buildAndPersist validates the discount, prices the order and writes it.
// It performs no compensation itself; CreateOrder owns the rollback.
func (s *Service) buildAndPersist(
	ctx context.Context,
	orderID string,
	req CreateOrderRequest,
	snapshots map[string]catalog.Snapshot,
) (*Order, error) {
	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = pricing.Line{
			ProductID: item.ProductID,
			UnitPrice: snapshots[item.ProductID].Price,
			Quantity:  item.Quantity,
		}
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	// An invalid code aborts the checkout; silently ignoring it would charge
	// the buyer more than they expect.
	discountAmount := decimal.Zero
	discountCode := ""
	if req.DiscountCode != "" {
		applied, err := s.discounts.Validate(ctx, req.DiscountCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate discount")
		}
		discountAmount = applied.Amount
		discountCode = applied.Code
	}

	p := pricing.Compute(lines, discountAmount)

	items := make([]LineItem, len(lines))
	for i, l := range lines {
		items[i] = LineItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal(),
		}
	}

	now := s.now()
	o := &Order{
		ID:              orderID,
		BuyerID:         req.BuyerID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		DiscountCode:    discountCode,
		Pricing:         p,
		Status:          StatusPending,
		StatusHistory: []StatusChange{
			{Status: StatusPending, Timestamp: now},
		},
		CreatedAt: now,
		Version:   1,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// CancelOrder cancels an order if its status permits. Cancellation releases
// the stock reservation and requires a reason.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (*Order, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, orderID, StatusCancelled, reason)
}

// UpdateStatus moves an order to the next status, enforcing the state
// machine. Confirming triggers reservation confirmation; cancelling releases.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status, reason string) (*Order, error) {
	if next == StatusCancelled && reason == "" {
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, orderID, next, reason)
}

// transition performs the state machine check before any side effect,
// persists with optimistic versioning, and only then applies reservation
// effects so a losing writer never touches stock.
func (s *Service) transition(ctx context.Context, orderID string, next Status, reason string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	prev := o.Status
	o.Status = next
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    next,
		Timestamp: s.now(),
		Reason:    reason,
	})

	// The versioned write decides the race. Reservation effects only run for
	// the winner: a loser's conflict must leave stock exactly as it was.
	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		o.Status = prev
		o.StatusHistory = o.StatusHistory[:len(o.StatusHistory)-1]
		return nil, err
	}
	o.Version++

	// Confirm and Release are idempotent, so a failure here is retryable
	// (the sweeper picks up holds an operator never reconciles). The status
	// write already stands either way.
	switch next {
	case StatusConfirmed:
		if err := s.stock.Confirm(ctx, orderID); err != nil {
			s.lg.Error("confirm reservation after status update",
				zap.String("order_id", orderID), zap.Error(err))
		}
	case StatusCancelled:
		if err := s.stock.Release(ctx, orderID); err != nil {
			s.lg.Error("release reservation after cancellation",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}

	if next == StatusCancelled {
		s.publisher.OrderCancelled(ctx, o.ID, reason)
	}
	return o, nil
}

// GetOrder fetches a single order by ID.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrders lists a buyer's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, buyerID string, filter ListFilter) ([]Order, error) {
	if buyerID == "" {
		return nil, ErrMissingBuyer
	}
	return s.orders.ListByBuyer(ctx, buyerID, filter)
}

// ValidateDiscount dry-runs a discount code against a subtotal without
// touching the usage counter.
func (s *Service) ValidateDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (*discount.Applied, error) {
	return s.discounts.Validate(ctx, code, subtotal)
}

func validateRequest(req CreateOrderRequest) error {
	if req.BuyerID == "" {
		return ErrMissingBuyer
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: item.ProductID}
		}
		// One line per product keeps reservations one row per (order, product).
		if _, ok := seen[item.ProductID]; ok {
			return &DuplicateProductError{ProductID: item.ProductID}
		}
		seen[item.ProductID] = struct{}{}
	}
	if !ValidPaymentMethod(req.PaymentMethod) {
		return ErrInvalidPaymentMethod
	}
	return nil
}
