package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/backend"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/metrics"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/session"
	"github.com/Cheertaboi/jewelry-storefront/internal/validation"
)

const testSecret = "router-test-secret"

// fakeAPI is a minimal storefront backend speaking the envelope format
type fakeAPI struct {
	mu      sync.Mutex
	orders  []map[string]any
	created []map[string]any
}

func (f *fakeAPI) handler() http.Handler {
	r := chi.NewRouter()
	reply := func(w http.ResponseWriter, code int, status string, data any, message string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "data": data, "message": message})
	}
	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") != ""
	}

	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "ring-1" {
			reply(w, http.StatusNotFound, "error", nil, "Product not found")
			return
		}
		reply(w, http.StatusOK, "success", map[string]any{
			"id": "ring-1", "title": "Gold Ring", "price": "1000", "stockQuantity": 5,
		}, "")
	})
	r.Post("/cart/promo/validate", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, "success", map[string]any{"code": "SAVE10", "discountPercentage": 10}, "")
	})
	r.Get("/users/me/addresses", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, "success", []any{}, "")
	})
	r.Post("/users/me/addresses", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			reply(w, http.StatusUnauthorized, "error", nil, "Not authorized")
			return
		}
		var a map[string]any
		_ = json.NewDecoder(r.Body).Decode(&a)
		a["id"] = "addr-1"
		reply(w, http.StatusCreated, "success", a, "")
	})
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body)
		order := map[string]any{"id": "ord-1", "status": "pending", "paymentMethod": body["paymentMethod"], "total": "1854"}
		f.orders = append(f.orders, order)
		f.mu.Unlock()
		reply(w, http.StatusCreated, "success", order, "")
	})
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, o := range f.orders {
			if o["id"] == chi.URLParam(r, "id") {
				reply(w, http.StatusOK, "success", o, "")
				return
			}
		}
		reply(w, http.StatusNotFound, "error", nil, "Order not found")
	})
	r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
		var c jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), &c,
			func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
		if err != nil {
			reply(w, http.StatusUnauthorized, "error", nil, "Not authorized")
			return
		}
		reply(w, http.StatusOK, "success", map[string]any{"id": c.Subject}, "")
	})
	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, http.StatusOK, "success", f.orders, "")
	})
	return r
}

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	api    *fakeAPI
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSecret(t, testSecret)
}

// newHarnessWithSecret builds a router; an empty secret makes it confirm
// tokens against the fake backend's /users/me
func newHarnessWithSecret(t *testing.T, secret string) *harness {
	t.Helper()
	fake := &fakeAPI{}
	upstream := httptest.NewServer(fake.handler())
	t.Cleanup(upstream.Close)

	be, err := backend.New(backend.Config{BaseURL: upstream.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)

	reg := metrics.New()
	ctrl := checkout.NewController(be, engine, validation.New(nil), checkout.WithRecorder(reg))

	identity := middleware.IdentityConfig{JWTSecret: secret}
	if secret == "" {
		identity.Users = be
	}
	router := NewRouter(Deps{
		Logger:   zap.NewNop(),
		Store:    session.NewMemoryStore(time.Hour),
		Backend:  be,
		Engine:   engine,
		Checkout: ctrl,
		Identity: identity,
		Metrics:  reg,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, api: fake, client: srv.Client()}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	return signedToken(t, testSecret, userID)
}

func signedToken(t *testing.T, key, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Kind       string            `json:"kind"`
		Code       string            `json:"code"`
		Fields     map[string]string `json:"fields"`
		ReturnPath string            `json:"returnPath"`
	} `json:"error"`
}

func (h *harness) do(method, path, bearer string, body any) (int, response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := h.client.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()

	var out response
	if res.StatusCode != http.StatusNoContent {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

// reachReview fills the cart and walks checkout to the review step
func (h *harness) reachReview(tok string, payment map[string]any) {
	h.t.Helper()
	code, _ := h.do(http.MethodPost, "/cart/items", tok, map[string]any{"productId": "ring-1", "quantity": 1})
	require.Equal(h.t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/checkout", tok, nil)
	require.Equal(h.t, http.StatusCreated, code)
	code, _ = h.do(http.MethodPut, "/checkout/shipping", tok, map[string]any{
		"firstName": "Asha", "lastName": "Rao", "phone": "9876543210",
		"addressLine": "12 MG Road", "city": "Bengaluru", "state": "Karnataka",
		"postalCode": "560001", "country": "India",
	})
	require.Equal(h.t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/checkout/next", tok, nil)
	require.Equal(h.t, http.StatusOK, code)
	code, _ = h.do(http.MethodPut, "/checkout/payment", tok, payment)
	require.Equal(h.t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/checkout/next", tok, nil)
	require.Equal(h.t, http.StatusOK, code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res, err := h.client.Get(h.srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestGuestCannotStartCheckout(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(http.MethodPost, "/cart/items", "", map[string]any{"productId": "ring-1", "quantity": 1})
	require.Equal(t, http.StatusOK, code)

	code, res := h.do(http.MethodPost, "/checkout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "auth_required", res.Error.Kind)
	assert.Equal(t, "/checkout", res.Error.ReturnPath)
}

func TestAddItemClampsToStock(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "user-1")

	code, res := h.do(http.MethodPost, "/cart/items", tok, map[string]any{"productId": "ring-1", "quantity": 15})
	require.Equal(t, http.StatusOK, code)

	var view struct {
		Items []struct {
			Quantity int `json:"quantity"`
		} `json:"items"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.NotEmpty(t, view.Warnings)
}

func TestCheckoutCashOnDelivery(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "user-1")

	code, _ := h.do(http.MethodPost, "/cart/items", tok, map[string]any{"productId": "ring-1", "quantity": 2})
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/cart/promo", tok, map[string]any{"code": "save10"})
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodPost, "/checkout", tok, nil)
	require.Equal(t, http.StatusCreated, code)

	// Step 1 rejects a short phone number and stays put
	bad := map[string]any{
		"firstName": "Asha", "lastName": "Rao", "phone": "987654321",
		"addressLine": "12 MG Road", "city": "Bengaluru", "state": "Karnataka",
		"postalCode": "560001", "country": "India",
	}
	code, _ = h.do(http.MethodPut, "/checkout/shipping", tok, bad)
	require.Equal(t, http.StatusOK, code)
	code, res := h.do(http.MethodPost, "/checkout/next", tok, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Fields, "shipping.phone")

	bad["phone"] = "9876543210"
	code, _ = h.do(http.MethodPut, "/checkout/shipping", tok, bad)
	require.Equal(t, http.StatusOK, code)
	code, _ = h.do(http.MethodPost, "/checkout/next", tok, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodPut, "/checkout/payment", tok, map[string]any{"method": "cod"})
	require.Equal(t, http.StatusOK, code)
	code, res = h.do(http.MethodPost, "/checkout/next", tok, nil)
	require.Equal(t, http.StatusOK, code)

	var view struct {
		Session struct {
			Step int `json:"step"`
		} `json:"session"`
		Totals struct {
			Subtotal string `json:"subtotal"`
			Discount string `json:"discount"`
			Tax      string `json:"tax"`
			Total    string `json:"total"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, int(checkout.StepReview), view.Session.Step)
	assert.Equal(t, "2000", view.Totals.Subtotal)
	assert.Equal(t, "200", view.Totals.Discount)
	assert.Equal(t, "54", view.Totals.Tax)
	assert.Equal(t, "1854", view.Totals.Total)

	code, res = h.do(http.MethodPost, "/checkout/place", tok, nil)
	require.Equal(t, http.StatusCreated, code)
	var outcome checkout.Outcome
	require.NoError(t, json.Unmarshal(res.Data, &outcome))
	assert.Equal(t, "ord-1", outcome.OrderID)
	assert.Equal(t, checkout.OutcomePlaced, outcome.Status)
	assert.Equal(t, "/orders/ord-1", outcome.Redirect)

	// A second submit returns the same outcome without a new order
	code, _ = h.do(http.MethodPost, "/checkout/place", tok, nil)
	require.Equal(t, http.StatusCreated, code)
	h.api.mu.Lock()
	assert.Len(t, h.api.created, 1)
	assert.Equal(t, "addr-1", h.api.created[0]["shippingAddressId"])
	h.api.mu.Unlock()

	code, res = h.do(http.MethodGet, "/cart", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var cartView struct {
		Items       []any `json:"items"`
		CanCheckout bool  `json:"canCheckout"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &cartView))
	assert.Empty(t, cartView.Items)
	assert.False(t, cartView.CanCheckout)
}

func TestAwaitPaymentKeepsCashOnDeliveryPlaced(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "user-1")
	h.reachReview(tok, map[string]any{"method": "cod"})

	code, _ := h.do(http.MethodPost, "/checkout/place", tok, nil)
	require.Equal(t, http.StatusCreated, code)

	code, res := h.do(http.MethodPost, "/checkout/payment/await", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var outcome checkout.Outcome
	require.NoError(t, json.Unmarshal(res.Data, &outcome))
	assert.Equal(t, checkout.OutcomePlaced, outcome.Status)
	assert.Equal(t, "/orders/ord-1", outcome.Redirect)

	code, res = h.do(http.MethodPost, "/orders/ord-1/await-payment", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &outcome))
	assert.Equal(t, checkout.OutcomePlaced, outcome.Status)

	code, res = h.do(http.MethodPost, "/checkout/payment/await", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &outcome))
	assert.Equal(t, checkout.OutcomePlaced, outcome.Status, "the recorded outcome is unchanged")
}

func TestCardDetailsAreNeverEchoed(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "user-1")
	h.reachReview(tok, map[string]any{"method": "card", "card": map[string]any{
		"number": "4111 1111 1111 1111", "name": "Asha Rao", "expiry": "12/99", "cvv": "987",
	}})

	code, res := h.do(http.MethodGet, "/checkout", tok, nil)
	require.Equal(t, http.StatusOK, code)
	body := string(res.Data)
	assert.NotContains(t, body, "4111 1111")
	assert.NotContains(t, body, `"number"`)
	assert.NotContains(t, body, `"cvv"`)
	assert.NotContains(t, body, `"987"`)
	assert.Contains(t, body, `"last4":"1111"`)
}

func TestForgedTokenIsTreatedAsGuest(t *testing.T) {
	for _, secret := range []string{testSecret, ""} {
		t.Run("secret="+secret, func(t *testing.T) {
			h := newHarnessWithSecret(t, secret)
			victim := token(t, "user-1")
			h.reachReview(victim, map[string]any{"method": "cod"})

			forged := signedToken(t, "attacker-key", "user-1")
			code, res := h.do(http.MethodGet, "/checkout", forged, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			require.NotNil(t, res.Error)
			assert.Equal(t, "checkout_not_started", res.Error.Code)

			code, res = h.do(http.MethodGet, "/cart", forged, nil)
			require.Equal(t, http.StatusOK, code)
			var cartView struct {
				Items []any `json:"items"`
			}
			require.NoError(t, json.Unmarshal(res.Data, &cartView))
			assert.Empty(t, cartView.Items)

			code, _ = h.do(http.MethodGet, "/checkout", victim, nil)
			assert.Equal(t, http.StatusOK, code)
		})
	}
}

func TestCheckoutNotStarted(t *testing.T) {
	h := newHarness(t)
	code, res := h.do(http.MethodPost, "/checkout/next", token(t, "user-2"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "checkout_not_started", res.Error.Code)
}

func TestOrdersRequireLogin(t *testing.T) {
	h := newHarness(t)
	code, res := h.do(http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, "/orders", res.Error.ReturnPath)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/cart", "", nil)

	res, err := h.client.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
