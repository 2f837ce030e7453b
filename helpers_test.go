package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"boostify-backend/payments"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/models"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tokens"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/zap"
)

const (
	testUserHeader    = "X-Test-User"
	testWebhookSecret = "whsec_test"
)

// Auth records shipped with the PocketBase test data set.
const (
	pbClientID  = "4q1xlclmfloku33"
	pbBoosterID = "oap640cot4yru2s"
)

func testConfig() Config {
	return Config{
		Env: "test",
		Stripe: stripeConfig{
			SecretKey:          "sk_test",
			WebhookSecret:      testWebhookSecret,
			PlatformFeePercent: 10,
			Currencies:         []string{"usd", "eur"},
			MinDepositAmount:   500,
		},
	}
}

type testEnv struct {
	processor *fakeProcessor
	ledger    *fakeLedger
	orders    *fakeOrders
	profiles  *fakeProfiles
	chat      *fakeChat
	router    *echo.Echo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		processor: &fakeProcessor{intents: make(map[string]*stripe.PaymentIntent), byKey: make(map[string]*stripe.PaymentIntent)},
		ledger:    &fakeLedger{balances: make(map[string]Balance), credited: make(map[string]bool)},
		orders:    &fakeOrders{orders: make(map[string]Order)},
		profiles:  &fakeProfiles{profiles: make(map[string]Profile)},
		chat:      &fakeChat{},
	}

	srv := newServer(testConfig(), zap.NewNop(), env.processor, env.ledger, env.orders, env.profiles, env.chat)

	router := echo.New()
	router.HTTPErrorHandler = func(c echo.Context, err error) {
		var apiErr *apis.ApiError
		if errors.As(err, &apiErr) {
			_ = c.JSON(apiErr.Code, apiErr)
			return
		}
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.Code, map[string]any{"message": httpErr.Message})
			return
		}
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"message": err.Error()})
	}
	router.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(testUserHeader); id != "" {
				c.Set(apis.ContextAuthRecordKey, newTestUser(id))
			}
			return next(c)
		}
	})
	srv.registerRoutes(router)
	env.router = router

	return env
}

func (env *testEnv) do(method string, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// newTestApp starts a PocketBase app on a copy of the bundled test data with
// every migration of this module applied.
func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	return app
}

func saveTestRecord(t *testing.T, app core.App, collection string, data map[string]any) *models.Record {
	t.Helper()

	col, err := app.Dao().FindCollectionByNameOrId(collection)
	require.NoError(t, err)

	record := models.NewRecord(col)
	record.Load(data)
	require.NoError(t, app.Dao().SaveRecord(record))

	return record
}

func updateTestRecord(t *testing.T, app core.App, collection string, id string, data map[string]any) *models.Record {
	t.Helper()

	record, err := app.Dao().FindRecordById(collection, id)
	require.NoError(t, err)

	record.Load(data)
	require.NoError(t, app.Dao().SaveRecord(record))

	return record
}

// serveRecordsApi sends a request through the PocketBase router, authenticated
// as authID when it is set.
func serveRecordsApi(t *testing.T, app core.App, method string, target string, body string, authID string) *httptest.ResponseRecorder {
	t.Helper()

	router, err := apis.InitApi(app)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authID != "" {
		user, err := app.Dao().FindRecordById("users", authID)
		require.NoError(t, err)
		token, err := tokens.NewRecordAuthToken(app, user)
		require.NoError(t, err)
		req.Header.Set("Authorization", token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newTestUser(id string) *models.Record {
	record := models.NewRecord(&models.Collection{Name: "users", Type: models.CollectionTypeAuth})
	record.Id = id
	return record
}

type fakeProcessor struct {
	mu            sync.Mutex
	intents       map[string]*stripe.PaymentIntent
	byKey         map[string]*stripe.PaymentIntent
	err           error
	retrieveCalls int
	created       []*stripe.PaymentIntentCreateParams
}

func (p *fakeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retrieveCalls++
	if p.err != nil {
		return nil, p.err
	}
	intent, ok := p.intents[id]
	if !ok {
		return nil, &stripe.Error{Msg: "No such payment_intent: '" + id + "'", HTTPStatusCode: http.StatusNotFound}
	}
	return intent, nil
}

// CreatePaymentIntent replays the first intent created under an idempotency
// key, like Stripe does.
func (p *fakeProcessor) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	if params.IdempotencyKey != nil {
		if intent, ok := p.byKey[*params.IdempotencyKey]; ok {
			return intent, nil
		}
	}

	id := "pi_new"
	if len(p.created) > 0 {
		id = fmt.Sprintf("pi_new_%d", len(p.created)+1)
	}
	intent := &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_abc",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     params.Metadata,
	}

	p.created = append(p.created, params)
	p.intents[id] = intent
	if params.IdempotencyKey != nil {
		p.byKey[*params.IdempotencyKey] = intent
	}
	return intent, nil
}

var _ payments.Processor = (*fakeProcessor)(nil)

type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]Balance
	credited    map[string]bool
	creditCalls int
	err         error
}

func (l *fakeLedger) CreditDeposit(deposit payments.Deposit) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.creditCalls++
	if l.err != nil {
		return false, l.err
	}
	if l.credited[deposit.PaymentIntentID] {
		return false, nil
	}
	l.credited[deposit.PaymentIntentID] = true

	balance := l.balances[deposit.UserID]
	balance.Amount += deposit.Amount
	balance.Currency = deposit.Currency
	l.balances[deposit.UserID] = balance
	return true, nil
}

func (l *fakeLedger) PinCurrency(userID string, currency string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[userID]
	if balance.Currency != "" && balance.Currency != currency {
		return ErrCurrencyMismatch
	}
	balance.Currency = currency
	l.balances[userID] = balance
	return nil
}

func (l *fakeLedger) Balance(userID string) (Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[userID]
	if !ok {
		return Balance{}, ErrUserNotFound
	}
	return balance, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]Order
}

func (o *fakeOrders) FindOrder(id string) (Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (o *fakeOrders) AttachPaymentIntent(orderID string, paymentIntentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.PaymentIntentID = paymentIntentID
	o.orders[orderID] = order
	return nil
}

func (o *fakeOrders) MarkPaid(orderID string, paymentIntentID string) (Order, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[orderID]
	if !ok {
		return Order{}, false, ErrOrderNotFound
	}
	switch order.Status {
	case orderStatusPendingPayment:
	case orderStatusPaid:
		if order.PaymentIntentID == paymentIntentID {
			return order, false, nil
		}
		return order, false, ErrOrderAlreadyPaid
	default:
		return order, false, ErrOrderNotPayable
	}

	order.Status = orderStatusPaid
	order.PaymentIntentID = paymentIntentID
	o.orders[orderID] = order
	return order, true, nil
}

func (o *fakeOrders) SetChatChannel(orderID string, channelID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order := o.orders[orderID]
	order.StreamChannelID = channelID
	o.orders[orderID] = order
	return nil
}

type fakeProfiles struct {
	profiles map[string]Profile
}

func (p *fakeProfiles) FindProfile(id string) (Profile, error) {
	profile, ok := p.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

type fakeChat struct {
	mu       sync.Mutex
	channels []Order
	err      error
}

func (c *fakeChat) CreateToken(userID string) (string, error) {
	return "token-" + userID, nil
}

func (c *fakeChat) OpenOrderChannel(ctx context.Context, order Order) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return "", c.err
	}
	c.channels = append(c.channels, order)
	return orderChannelID(order.ID), nil
}
