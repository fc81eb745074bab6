package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/internal/sharedquotes"
	"github.com/angelmondragon/quoteflow/internal/vehicles"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/db/models"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/redis"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryKV) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryKV) FlowKey(flowID string) string    { return "qf:flow:" + flowID }
func (m *memoryKV) LockKey(scope, id string) string { return "qf:lock:" + scope + ":" + id }

type stubVehicles struct {
	info *types.VehicleInfo
	err  error
	vins []string
}

func (v *stubVehicles) Decode(ctx context.Context, session backend.Session, vin string) (*types.VehicleInfo, error) {
	return v.DecodeDebounced(ctx, "", session, vin)
}

func (v *stubVehicles) DecodeDebounced(ctx context.Context, key string, session backend.Session, vin string) (*types.VehicleInfo, error) {
	v.vins = append(v.vins, vin)
	if v.err != nil {
		return nil, v.err
	}
	info := *v.info
	return &info, nil
}

func (v *stubVehicles) Evaluate(vehicle *types.VehicleInfo, mileage int) *types.Eligibility {
	return vehicles.Evaluate(vehicle, mileage, testNow)
}

type stubQuotes struct {
	hero        []types.HeroQuoteRequest
	vsc         []types.VSCQuoteRequest
	eligibility *types.Eligibility
	err         error
}

func (q *stubQuotes) GenerateHero(ctx context.Context, session backend.Session, form types.HeroQuoteRequest) (*types.Quote, error) {
	q.hero = append(q.hero, form)
	if q.err != nil {
		return nil, q.err
	}
	return &types.Quote{
		ID:      uuid.NewString(),
		Kind:    enums.QuoteKindHero,
		Pricing: types.PricingBreakdown{TotalPrice: decimal.RequireFromString("199.99")},
		Request: types.NewHeroRequest(form),
	}, nil
}

func (q *stubQuotes) GenerateVSC(ctx context.Context, session backend.Session, form types.VSCQuoteRequest, eligibility *types.Eligibility) (*types.Quote, error) {
	q.vsc = append(q.vsc, form)
	q.eligibility = eligibility
	if eligibility != nil && !eligibility.Eligible {
		return nil, pkgerrors.New(pkgerrors.CodeIneligible, "Vehicle is not eligible for coverage")
	}
	return &types.Quote{
		ID:      uuid.NewString(),
		Kind:    enums.QuoteKindVSC,
		Pricing: types.PricingBreakdown{TotalPrice: decimal.RequireFromString("1450.00")},
		Request: types.NewVSCRequest(form),
	}, nil
}

type stubShares struct {
	err     error
	emailed []types.CustomerInfo
}

func (s *stubShares) CreateShareable(ctx context.Context, session backend.Session, quote types.Quote, customer types.CustomerInfo, notes string) (*types.ShareableQuote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.ShareableQuote{
		QuoteID:  quote.ID,
		ShareURL: "https://quotes.example.test/quote/shared/tok-" + quote.ID,
		Customer: customer,
		Quote:    quote,
	}, nil
}

func (s *stubShares) SendByEmail(ctx context.Context, session backend.Session, share types.ShareableQuote, customer types.CustomerInfo, notes string) error {
	s.emailed = append(s.emailed, customer)
	return nil
}

type stubShared struct {
	accepted []string
}

func (s *stubShared) Load(ctx context.Context, token string) (*sharedquotes.SharedQuote, error) {
	if token == "missing" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Shared quote not found")
	}
	return &sharedquotes.SharedQuote{
		Token: token,
		Quote: types.Quote{
			ID:      "shared-q",
			Kind:    enums.QuoteKindHero,
			Pricing: types.PricingBreakdown{TotalPrice: decimal.RequireFromString("89.50")},
		},
		Customer: types.CustomerInfo{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"},
		Reseller: sharedquotes.ResellerSummary{CompanyName: "Acme Auto"},
	}, nil
}

func (s *stubShared) Accept(ctx context.Context, token string, customer types.CustomerInfo) (*sharedquotes.AcceptResult, error) {
	s.accepted = append(s.accepted, token)
	return &sharedquotes.AcceptResult{Accepted: true}, nil
}

type stubGateway struct {
	approve bool
	charges int
}

func (g *stubGateway) Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	g.charges++
	if !g.approve {
		return payments.ChargeResult{Response: "2", Message: "Do not honor"}, nil
	}
	return payments.ChargeResult{Approved: true, Response: "1", TransactionID: "tx-1"}, nil
}

type stubBackend struct {
	fail bool
}

func (b *stubBackend) Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error) {
	if b.fail {
		return backend.Normalize([]byte(`{"success":false,"error":"transaction store unavailable"}`), 200)
	}
	return backend.Normalize([]byte(`{"success":true,"data":{"transaction_number":"TXN-1"}}`), 200)
}

type nopJournal struct{}

func (nopJournal) RecordUnrecorded(ctx context.Context, charge *models.UnrecordedCharge) error {
	return nil
}
func (nopJournal) ListOpen(ctx context.Context, limit int) ([]models.UnrecordedCharge, error) {
	return nil, nil
}
func (nopJournal) CountOpen(ctx context.Context) (int64, error)    { return 0, nil }
func (nopJournal) Resolve(ctx context.Context, id uuid.UUID) error { return nil }

type fixture struct {
	svc      Service
	kv       *memoryKV
	locker   Locker
	vehicles *stubVehicles
	quotes   *stubQuotes
	shares   *stubShares
	shared   *stubShared
	gateway  *stubGateway
	backend  *stubBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "flow-test", Output: io.Discard})
	kv := newMemoryKV()
	store, err := NewRedisStore(kv, time.Hour)
	require.NoError(t, err)
	locker, err := NewRedisLocker(kv, time.Minute)
	require.NoError(t, err)

	f := &fixture{
		kv:       kv,
		locker:   locker,
		vehicles: &stubVehicles{info: &types.VehicleInfo{Make: "Toyota", Model: "Camry", Year: 2020, AutoPopulated: true}},
		quotes:   &stubQuotes{},
		shares:   &stubShares{},
		shared:   &stubShared{},
		gateway:  &stubGateway{approve: true},
		backend:  &stubBackend{},
	}
	paymentSvc, err := payments.NewService(f.gateway, f.backend, nopJournal{}, "USD", logg, nil)
	require.NoError(t, err)

	svc, err := NewService(store, locker, f.vehicles, f.quotes, paymentSvc, f.shares, f.shared, logg)
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testNow }
	f.svc = svc
	return f
}

var (
	customerActor = Actor{UserID: "u-customer", Role: enums.RoleCustomer, Session: backend.Session{Token: "c"}}
	resellerActor = Actor{UserID: "u-reseller", Role: enums.RoleReseller, Session: backend.Session{Token: "r"}}
)

func heroForm() types.HeroQuoteRequest {
	return types.HeroQuoteRequest{ProductType: "home_protection", TermYears: 2, CoverageLimit: 500, CustomerType: enums.CustomerTypeRetail}
}

func customer() types.CustomerInfo {
	return types.CustomerInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
}

func billing() types.BillingInfo {
	return types.BillingInfo{Address: "1 Main St", City: "Tulsa", State: "OK", ZipCode: "74103"}
}

func card() payments.Card {
	return payments.Card{Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "30", CVV: "123"}
}

func TestStartRequiresRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), Actor{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestHeroQuoteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseIdle, page.Phase)
	assert.Equal(t, enums.CustomerTypeRetail, page.CustomerType)

	page, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	require.NotNil(t, page.Quote)
	assert.True(t, page.Quote.Pricing.TotalPrice.Equal(decimal.RequireFromString("199.99")))

	reloaded, err := f.svc.Get(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Equal(t, page.Quote.ID, reloaded.Quote.ID)
}

func TestRoleFixesCustomerType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Start(ctx, resellerActor)
	require.NoError(t, err)

	form := heroForm()
	form.CustomerType = enums.CustomerTypeRetail
	_, err = f.svc.SubmitHero(ctx, resellerActor, page.ID, form)
	require.NoError(t, err)

	require.Len(t, f.quotes.hero, 1)
	assert.Equal(t, enums.CustomerTypeWholesale, f.quotes.hero[0].CustomerType)
}

func TestQuoteFailureSurfacesMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.err = pkgerrors.New(pkgerrors.CodeQuoteFailed, "Product not available in your state")

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)

	page, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuoteFailed))
	require.NotNil(t, page)
	assert.Equal(t, "Product not available in your state", page.Error)
	assert.Equal(t, enums.FlowPhaseIdle, page.Phase)
}

func TestFailedRequoteDropsStaleQuoteAndPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)
	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)

	f.quotes.err = pkgerrors.New(pkgerrors.CodeQuoteFailed, "Product not available in your state")
	form := heroForm()
	form.TermYears = 3
	page, err = f.svc.SubmitHero(ctx, customerActor, page.ID, form)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuoteFailed))
	require.NotNil(t, page)
	assert.Equal(t, enums.FlowPhaseIdle, page.Phase)
	assert.Nil(t, page.Quote)
	assert.Nil(t, page.Payment)
	assert.Equal(t, "Product not available in your state", page.Error)

	stored, err := f.svc.Get(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Quote)
	assert.Nil(t, stored.Payment)

	_, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, f.gateway.charges)
}

func TestUnrecordedChargeHoldsPageUntilReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.fail = true

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)
	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)

	page, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded), "got %v", err)
	require.NotNil(t, page.Payment)
	assert.True(t, page.Payment.Unrecorded)
	assert.Equal(t, 1, f.gateway.charges)

	_, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded), "resubmit: %v", err)
	_, err = f.svc.CancelPayment(ctx, customerActor, page.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded), "cancel: %v", err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded), "reopen: %v", err)
	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded), "requote: %v", err)

	_, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentUnrecorded))
	assert.Equal(t, 1, f.gateway.charges, "an unrecorded charge must never be repeated")

	stored, err := f.svc.Get(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseAwaitingPayment, stored.Phase)
	require.NotNil(t, stored.Payment)
	assert.True(t, stored.Payment.Unrecorded)

	page, err = f.svc.Reset(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseIdle, page.Phase)
	assert.Nil(t, page.Payment)
}

func TestResetIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)
	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		page, err = f.svc.Reset(ctx, customerActor, page.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.FlowPhaseIdle, page.Phase)
		assert.Nil(t, page.Quote)
		assert.Nil(t, page.Payment)
		assert.Nil(t, page.Share)
		assert.Nil(t, page.PaymentResult())
		assert.Empty(t, page.Error)
	}
}

func TestPaymentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Start(ctx, customerActor)
	require.NoError(t, err)

	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "payment before quote")

	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)

	page, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseAwaitingPayment, page.Phase)
	firstModal := page.Payment.ID

	// reopening replaces the stale modal
	page, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)
	assert.NotEqual(t, firstModal, page.Payment.ID)

	page, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhasePaymentSucceeded, page.Phase)
	require.NotNil(t, page.PaymentResult())
	assert.Equal(t, "TXN-1", page.PaymentResult().TransactionNumber)
	assert.Equal(t, enums.PaymentStateConfirmation, page.Payment.State)

	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "quote after payment needs a reset")
}

func TestDeclinedCardKeepsModalOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.approve = false

	page, _ := f.svc.Start(ctx, customerActor)
	_, err := f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)

	page, err = f.svc.SubmitCard(ctx, customerActor, page.ID, card())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentDeclined))
	assert.Equal(t, enums.FlowPhaseAwaitingPayment, page.Phase)
	assert.Equal(t, "Do not honor", page.Payment.Message)
	assert.True(t, page.Payment.Open())

	reloaded, err := f.svc.Get(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Payment.Attempts)
}

func TestCancelPaymentReturnsToQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, _ := f.svc.Start(ctx, customerActor)
	_, err := f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, customerActor, page.ID, customer(), billing())
	require.NoError(t, err)

	page, err = f.svc.CancelPayment(ctx, customerActor, page.ID)
	assert.ErrorIs(t, err, payments.ErrCancelled)
	require.NotNil(t, page)
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	assert.Nil(t, page.Payment)
	assert.NotNil(t, page.Quote)
}

func TestRolesGatePaymentAndShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reseller, _ := f.svc.Start(ctx, resellerActor)
	_, err := f.svc.SubmitHero(ctx, resellerActor, reseller.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.OpenPayment(ctx, resellerActor, reseller.ID, customer(), billing())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	buyer, _ := f.svc.Start(ctx, customerActor)
	_, err = f.svc.SubmitHero(ctx, customerActor, buyer.ID, heroForm())
	require.NoError(t, err)
	_, err = f.svc.CreateShare(ctx, customerActor, buyer.ID, customer(), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestShareWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, _ := f.svc.Start(ctx, resellerActor)
	_, err := f.svc.EmailShare(ctx, resellerActor, page.ID, nil, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.SubmitHero(ctx, resellerActor, page.ID, heroForm())
	require.NoError(t, err)

	page, err = f.svc.CreateShare(ctx, resellerActor, page.ID, customer(), "call me")
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseShareReady, page.Phase)
	require.NotNil(t, page.Share)
	assert.Contains(t, page.Share.ShareURL, "/quote/shared/")

	other := types.CustomerInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@work.example.com"}
	page, err = f.svc.EmailShare(ctx, resellerActor, page.ID, &other, "")
	require.NoError(t, err)
	require.NotNil(t, page.Share.EmailedAt)
	assert.Equal(t, []types.CustomerInfo{other}, f.shares.emailed)

	// a new quote replaces the share
	page, err = f.svc.SubmitHero(ctx, resellerActor, page.ID, heroForm())
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	assert.Nil(t, page.Share)
}

func TestShareFailureReturnsToQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.shares.err = pkgerrors.New(pkgerrors.CodeValidation, "Customer first name, last name and email are required to share a quote")

	page, _ := f.svc.Start(ctx, resellerActor)
	_, err := f.svc.SubmitHero(ctx, resellerActor, page.ID, heroForm())
	require.NoError(t, err)

	page, err = f.svc.CreateShare(ctx, resellerActor, page.ID, types.CustomerInfo{}, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	assert.NotEmpty(t, page.Error)
}

func TestUpdateVehicleDecodesAndResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, _ := f.svc.Start(ctx, customerActor)

	vin := "1hgcm82633a004352"
	mileage := 45000
	page, err := f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{VIN: &vin, Mileage: &mileage})
	require.NoError(t, err)
	assert.Equal(t, "1HGCM82633A004352", page.Vehicle.VIN)
	require.NotNil(t, page.Vehicle.Info)
	assert.True(t, page.Vehicle.Info.AutoPopulated)
	require.NotNil(t, page.Vehicle.Eligibility)
	assert.True(t, page.Vehicle.Eligibility.Eligible)

	short := "1HGCM8"
	page, err = f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{VIN: &short})
	require.NoError(t, err)
	assert.Nil(t, page.Vehicle.Info)
	assert.Nil(t, page.Vehicle.Eligibility)
	assert.Equal(t, 45000, page.Vehicle.Mileage)
	assert.Len(t, f.vehicles.vins, 1)
}

func TestUpdateVehicleInvalidVINSkipsDecode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, _ := f.svc.Start(ctx, customerActor)

	vin := "1HGCM82633A00435I"
	page, err := f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{VIN: &vin})
	require.NoError(t, err)
	assert.Contains(t, page.Vehicle.VINMessage, "invalid characters")
	assert.Empty(t, f.vehicles.vins)
}

func TestUpdateVehicleDecodeFailureAllowsManualEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vehicles.err = pkgerrors.New(pkgerrors.CodeDependency, "Unable to decode VIN. Please enter vehicle details manually.")
	page, _ := f.svc.Start(ctx, customerActor)

	vin := "1HGCM82633A004352"
	page, err := f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{VIN: &vin})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.NotNil(t, page)
	assert.Equal(t, "Unable to decode VIN. Please enter vehicle details manually.", page.Vehicle.DecodeError)

	mileage := 30000
	page, err = f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{Make: "honda", Model: "Accord", Year: 2019, Mileage: &mileage})
	require.NoError(t, err)
	require.NotNil(t, page.Vehicle.Info)
	assert.False(t, page.Vehicle.Info.AutoPopulated)
	assert.Equal(t, 2019, page.Vehicle.Info.Year)
	assert.NotNil(t, page.Vehicle.Eligibility)
}

func TestUpdateVehicleSuperseded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vehicles.err = vehicles.ErrSuperseded
	page, _ := f.svc.Start(ctx, customerActor)

	vin := "1HGCM82633A004352"
	_, err := f.svc.UpdateVehicle(ctx, customerActor, page.ID, VehicleUpdate{VIN: &vin})
	assert.True(t, errors.Is(err, vehicles.ErrSuperseded))

	reloaded, err := f.svc.Get(ctx, customerActor, page.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Vehicle.VIN)
}

func TestSubmitVSCPassesEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, _ := f.svc.Start(ctx, customerActor)

	form := types.VSCQuoteRequest{
		VIN: "1HGCM82633A004352", Make: "Toyota", Model: "Camry", Year: 2020,
		Mileage: 45000, CoverageLevel: "gold", TermMonths: 36,
	}
	page, err := f.svc.SubmitVSC(ctx, customerActor, page.ID, form)
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	require.NotNil(t, f.quotes.eligibility)
	assert.True(t, f.quotes.eligibility.Eligible)
	assert.Equal(t, enums.CustomerTypeRetail, f.quotes.vsc[0].CustomerType)

	old := form
	old.Year = 1995
	old.Mileage = 250000
	_, err = f.svc.SubmitVSC(ctx, customerActor, page.ID, old)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIneligible))
}

func TestConcurrentActionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, _ := f.svc.Start(ctx, customerActor)

	release, err := f.locker.Acquire(ctx, page.ID, "payment")
	require.NoError(t, err)
	defer release()

	_, err = f.svc.SubmitHero(ctx, customerActor, page.ID, heroForm())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, pkgerrors.As(err).Message(), "payment")
	assert.Empty(t, f.quotes.hero)
}

func TestOtherUsersCannotReadPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page, _ := f.svc.Start(ctx, customerActor)

	intruder := Actor{UserID: "u-other", Role: enums.RoleCustomer}
	_, err := f.svc.Get(ctx, intruder, page.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Get(ctx, customerActor, "does-not-exist")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSharedFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartShared(ctx, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	page, err := f.svc.StartShared(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, enums.FlowPhaseQuoteReady, page.Phase)
	assert.Equal(t, enums.RoleCustomer, page.Role)
	assert.Equal(t, enums.CustomerTypeRetail, page.CustomerType)
	assert.Equal(t, "Acme Auto", page.Shared.Reseller.CompanyName)

	anonymous := Actor{Session: backend.Session{}}
	page, err = f.svc.AcceptShared(ctx, page.ID, page.Customer)
	require.NoError(t, err)
	assert.True(t, page.Shared.Accepted)
	assert.Equal(t, []string{"tok-1"}, f.shared.accepted)

	page, err = f.svc.OpenPayment(ctx, anonymous, page.ID, page.Customer, billing())
	require.NoError(t, err)
	assert.Equal(t, "ORD-shared-q", page.Payment.OrderNumber)
}
