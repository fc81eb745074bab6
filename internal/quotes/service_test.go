package quotes

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quoteflow/internal/vehicles"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

type recordingAPI struct {
	calls    int
	path     string
	payload  map[string]any
	response string
	status   int
	err      error
}

func (r *recordingAPI) Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error) {
	r.calls++
	r.path = path
	raw, _ := json.Marshal(body)
	r.payload = map[string]any{}
	_ = json.Unmarshal(raw, &r.payload)
	if r.err != nil {
		return nil, r.err
	}
	status := r.status
	if status == 0 {
		status = 200
	}
	return backend.Normalize([]byte(r.response), status)
}

var fixedNow = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, api *recordingAPI) Service {
	t.Helper()
	svc, err := NewService(api, logger.New(logger.Options{ServiceName: "quotes-test", Output: io.Discard}), metrics.NewFlowMetrics(nil))
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return fixedNow }
	return svc
}

func TestGenerateHeroRoundTrip(t *testing.T) {
	api := &recordingAPI{response: `{"success":true,"quote_id":"q-1","pricing_breakdown":{"total_price":199.99}}`}
	svc := newTestService(t, api)

	quote, err := svc.GenerateHero(context.Background(), backend.Session{}, types.HeroQuoteRequest{
		ProductType:   "home_protection",
		TermYears:     2,
		CoverageLimit: 500,
		CustomerType:  enums.CustomerTypeRetail,
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/hero/quote", api.path)
	assert.True(t, quote.Pricing.TotalPrice.Equal(decimal.RequireFromString("199.99")))
	assert.Equal(t, "q-1", quote.ID)
	assert.Equal(t, "ORD-q-1", quote.OrderNumber())
	assert.Equal(t, enums.QuoteKindHero, quote.Kind)
	assert.NotEmpty(t, quote.Raw)
}

func TestGenerateHeroSplitsCoverageSuffix(t *testing.T) {
	api := &recordingAPI{response: `[{"success":true,"pricing_breakdown":{"total_price":249}}, 200]`}
	svc := newTestService(t, api)

	quote, err := svc.GenerateHero(context.Background(), backend.Session{}, types.HeroQuoteRequest{
		ProductType:   "home_protection_1000",
		TermYears:     1,
		CoverageLimit: 500,
		CustomerType:  enums.CustomerTypeWholesale,
	})
	require.NoError(t, err)
	assert.Equal(t, "home_protection", api.payload["product_type"])
	assert.Equal(t, float64(1000), api.payload["coverage_limit"])
	assert.Equal(t, "wholesale", api.payload["customer_type"])
	assert.Equal(t, 1000, quote.CoverageLimit)
	assert.NotEmpty(t, quote.ID, "a quote id is assigned when the backend omits one")
}

func TestGenerateHeroValidationBlocksNetwork(t *testing.T) {
	api := &recordingAPI{}
	svc := newTestService(t, api)

	_, err := svc.GenerateHero(context.Background(), backend.Session{}, types.HeroQuoteRequest{TermYears: 9})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Message(), "Product type is required, Term must be between 1 and 5 years")
	assert.Zero(t, api.calls)
}

func TestGenerateSurfacesBackendErrorVerbatim(t *testing.T) {
	api := &recordingAPI{response: `{"success":false,"error":"Term not available for this product"}`}
	svc := newTestService(t, api)

	_, err := svc.GenerateHero(context.Background(), backend.Session{}, types.HeroQuoteRequest{
		ProductType: "home_protection", TermYears: 5, CoverageLimit: 500, CustomerType: enums.CustomerTypeRetail,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeQuoteFailed, typed.Code())
	assert.Equal(t, "Term not available for this product", typed.Message())
}

func TestGenerateMapsTransportFailureToSingleMessage(t *testing.T) {
	api := &recordingAPI{err: pkgerrors.New(pkgerrors.CodeDependency, "backend hero_quote unavailable")}
	svc := newTestService(t, api)

	_, err := svc.GenerateHero(context.Background(), backend.Session{}, types.HeroQuoteRequest{
		ProductType: "home_protection", TermYears: 5, CoverageLimit: 500, CustomerType: enums.CustomerTypeRetail,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeQuoteFailed, typed.Code())
	assert.Equal(t, genericFailure, typed.Message())
	assert.Equal(t, 1, api.calls, "no automatic retry")
}

func TestGenerateVSCBlockedByIneligibleVehicle(t *testing.T) {
	api := &recordingAPI{}
	svc := newTestService(t, api)

	vehicle := types.VehicleInfo{Make: "Toyota", Model: "Corolla", Year: fixedNow.Year() - 22}
	eligibility := vehicles.Evaluate(&vehicle, 90000, fixedNow)
	require.NotNil(t, eligibility)
	require.False(t, eligibility.Eligible)
	require.NotEmpty(t, eligibility.Restrictions)

	_, err := svc.GenerateVSC(context.Background(), backend.Session{}, types.VSCQuoteRequest{
		Make: "Toyota", Model: "Corolla", Year: vehicle.Year, Mileage: 90000,
		CoverageLevel: "gold", TermMonths: 24, CustomerType: enums.CustomerTypeRetail,
	}, eligibility)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIneligible))
	assert.True(t, strings.Contains(err.Error(), eligibility.Restrictions[0]))
	assert.Zero(t, api.calls)
}

func TestGenerateVSCSendsNormalizedPayload(t *testing.T) {
	api := &recordingAPI{response: `{"success":true,"quote_id":"v-9","coverage_level":"gold","pricing_breakdown":{"subtotal":"900.00","admin_fee":"50","tax_amount":"49.50","total_price":"999.50"}}`}
	svc := newTestService(t, api)

	quote, err := svc.GenerateVSC(context.Background(), backend.Session{}, types.VSCQuoteRequest{
		VIN: "1hgcm82633a004352", Make: " Honda ", Model: "Accord", Year: 2020, Mileage: 42000,
		CoverageLevel: "gold", TermMonths: 36, CustomerType: enums.CustomerTypeRetail,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/vsc/quote", api.path)
	assert.Equal(t, "1HGCM82633A004352", api.payload["vin"])
	assert.Equal(t, "Honda", api.payload["make"])
	assert.True(t, quote.Amount().Equal(decimal.RequireFromString("999.50")))
	assert.Equal(t, 36, quote.TermMonths)
	require.NotNil(t, quote.Request.VSC)
	assert.Equal(t, "1HGCM82633A004352", quote.Request.VSC.VIN)
}
