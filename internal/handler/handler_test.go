package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/reservation"
	"github.com/xenking/orderflow/internal/events"
)

// --- In-memory collaborators ---

type memCatalog struct {
	snapshots map[string]catalog.Snapshot
}

func (m *memCatalog) GetSnapshot(_ context.Context, ids []string) (map[string]catalog.Snapshot, error) {
	out := make(map[string]catalog.Snapshot, len(ids))
	for _, id := range ids {
		if snap, ok := m.snapshots[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

type memDiscounts struct {
	codes map[string]*discount.Code
}

func (m *memDiscounts) FindByCode(_ context.Context, code string) (*discount.Code, error) {
	c, ok := m.codes[code]
	if !ok {
		return nil, discount.ErrInvalidCode
	}
	return c, nil
}

func (m *memDiscounts) IncrementUsage(_ context.Context, code string) error {
	if c, ok := m.codes[code]; ok {
		c.UsageCount++
	}
	return nil
}

type memStore struct {
	byID map[string]*order.Order
}

func (m *memStore) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListByBuyer(_ context.Context, buyerID string, filter order.ListFilter) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.BuyerID == buyerID && (filter.Status == "" || o.Status == filter.Status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, o *order.Order) error {
	stored, ok := m.byID[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if stored.Version != o.Version {
		return order.ErrConflictingUpdate
	}
	cp := *o
	cp.Version++
	m.byID[o.ID] = &cp
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dec := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	cap150 := dec("150")
	min500 := dec("500")

	cat := &memCatalog{snapshots: map[string]catalog.Snapshot{
		"p1": {ProductID: "p1", Price: dec("100.00"), AvailableStock: 10, Active: true},
		"p2": {ProductID: "p2", Price: dec("250.00"), AvailableStock: 4, Active: true},
		"p3": {ProductID: "p3", Price: dec("10.00"), AvailableStock: 0, Active: true},
	}}
	stock := reservation.NewMemoryManager(map[string]int{"p1": 10, "p2": 4, "p3": 0})
	discounts := discount.NewRepoValidator(&memDiscounts{codes: map[string]*discount.Code{
		"SAVE20": {Code: "SAVE20", PercentOff: dec("20"), MaxDiscountAmount: &cap150},
		"MIN500": {Code: "MIN500", PercentOff: dec("10"), MinOrderValue: &min500},
	}})
	store := &memStore{byID: make(map[string]*order.Order)}

	svc := order.NewService(cat, stock, discounts, store, events.NopPublisher{}, zap.NewNop())
	srv := httptest.NewServer(NewHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validCreateRequest(items ...orderItemJSON) createOrderRequest {
	addr := addressJSON{Name: "B", Line1: "1 Lane", City: "Pune", State: "MH", Pincode: "411001"}
	return createOrderRequest{
		BuyerID:         "buyer-1",
		Items:           items,
		ShippingAddress: addr,
		BillingAddress:  addr,
		PaymentMethod:   "cod",
	}
}

// --- Tests ---

func TestCreateOrder_HTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
		orderItemJSON{ProductID: "p1", Quantity: 2},
	))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decodeBody[orderJSON](t, resp)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "200.00", got.Pricing.Subtotal)
	assert.Equal(t, "36.00", got.Pricing.Tax)
	assert.Equal(t, "236.00", got.Pricing.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "100.00", got.Items[0].UnitPrice)
}

func TestCreateOrder_HTTP_WithDiscount(t *testing.T) {
	srv := newTestServer(t)

	req := validCreateRequest(orderItemJSON{ProductID: "p2", Quantity: 4})
	req.DiscountCode = "SAVE20"

	resp := postJSON(t, srv.URL+"/orders", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decodeBody[orderJSON](t, resp)
	assert.Equal(t, "1000.00", got.Pricing.Subtotal)
	assert.Equal(t, "150.00", got.Pricing.Discount)
	assert.Equal(t, "153.00", got.Pricing.Tax)
	assert.Equal(t, "1003.00", got.Pricing.Total)
}

func TestCreateOrder_HTTP_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/orders", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindValidation, got.Kind)
}

func TestCreateOrder_HTTP_UnknownProduct(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
		orderItemJSON{ProductID: "ghost", Quantity: 1},
	))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindProductUnavailable, got.Kind)
}

func TestCreateOrder_HTTP_OutOfStock(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
		orderItemJSON{ProductID: "p3", Quantity: 1},
	))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindProductUnavailable, got.Kind)
}

func TestCreateOrder_HTTP_InvalidDiscount(t *testing.T) {
	srv := newTestServer(t)

	req := validCreateRequest(orderItemJSON{ProductID: "p1", Quantity: 1})
	req.DiscountCode = "MIN500" // subtotal 100 < minimum 500

	resp := postJSON(t, srv.URL+"/orders", req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindInvalidDiscount, got.Kind)
}

func TestOrderLifecycle_HTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
		orderItemJSON{ProductID: "p1", Quantity: 1},
	))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[orderJSON](t, resp)

	// Fetch it back.
	getResp, err := http.Get(srv.URL + "/orders/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	fetched := decodeBody[orderJSON](t, getResp)
	assert.Equal(t, created.ID, fetched.ID)

	// Confirm, then try an illegal skip to delivered.
	resp = postJSON(t, srv.URL+"/orders/"+created.ID+"/status", updateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decodeBody[orderJSON](t, resp)
	assert.Equal(t, "confirmed", confirmed.Status)

	resp = postJSON(t, srv.URL+"/orders/"+created.ID+"/status", updateStatusRequest{Status: "delivered"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	transErr := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindInvalidTransition, transErr.Kind)

	// Cancel with a reason.
	resp = postJSON(t, srv.URL+"/orders/"+created.ID+"/cancel", cancelOrderRequest{Reason: "changed mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decodeBody[orderJSON](t, resp)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Cancel again: terminal state refuses.
	resp = postJSON(t, srv.URL+"/orders/"+created.ID+"/cancel", cancelOrderRequest{Reason: "again"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelOrder_HTTP_MissingReason(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
		orderItemJSON{ProductID: "p1", Quantity: 1},
	))
	created := decodeBody[orderJSON](t, resp)

	resp = postJSON(t, srv.URL+"/orders/"+created.ID+"/cancel", cancelOrderRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindValidation, got.Kind)
}

func TestGetOrder_HTTP_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders/no-such-id")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	got := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindNotFound, got.Kind)
}

func TestListOrders_HTTP(t *testing.T) {
	srv := newTestServer(t)

	for range 2 {
		resp := postJSON(t, srv.URL+"/orders", validCreateRequest(
			orderItemJSON{ProductID: "p1", Quantity: 1},
		))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/orders?buyerId=buyer-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[struct {
		Orders []orderJSON `json:"orders"`
	}](t, resp)
	assert.Len(t, got.Orders, 2)

	// Missing buyerId is a validation error.
	resp, err = http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateDiscount_HTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/discounts/validate", validateDiscountRequest{
		Code:     "SAVE20",
		Subtotal: "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[validateDiscountResponse](t, resp)
	assert.Equal(t, "SAVE20", got.Code)
	assert.Equal(t, "150.00", got.Amount, "cap applies before the percentage amount")

	resp = postJSON(t, srv.URL+"/discounts/validate", validateDiscountRequest{
		Code:     "NOPE",
		Subtotal: "100",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, KindInvalidDiscount, errResp.Kind)

	resp = postJSON(t, srv.URL+"/discounts/validate", validateDiscountRequest{
		Code:     "SAVE20",
		Subtotal: "abc",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
