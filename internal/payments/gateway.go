package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/angelmondragon/quoteflow/pkg/config"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/square"
)

// Gateway charges a card once. Implementations report declines through
// ChargeResult and reserve errors for transport or configuration failures.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// NewGateway builds the adapter selected by configuration.
func NewGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger, hc *http.Client) (Gateway, error) {
	switch cfg.Gateway.NormalizedKind() {
	case config.GatewayHostedForm:
		return NewHostedFormGateway(cfg.Gateway, logg, hc)
	case config.GatewaySquare:
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		return NewSquareGateway(client, logg)
	default:
		return nil, fmt.Errorf("unsupported gateway kind %q", cfg.Gateway.Kind)
	}
}
