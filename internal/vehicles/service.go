package vehicles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

const (
	decodePath     = "/api/vin/decode"
	decodeEndpoint = "vin_decode"
)

// Service decodes VINs and evaluates coverage eligibility.
type Service interface {
	Decode(ctx context.Context, session backend.Session, vin string) (*types.VehicleInfo, error)
	DecodeDebounced(ctx context.Context, key string, session backend.Session, vin string) (*types.VehicleInfo, error)
	Evaluate(vehicle *types.VehicleInfo, mileage int) *types.Eligibility
}

// BackendAPI is the subset of the backend client the decoder needs.
type BackendAPI interface {
	Post(ctx context.Context, session backend.Session, endpoint, path string, body any) (*backend.Envelope, error)
}

type service struct {
	api       BackendAPI
	debouncer *Debouncer
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds the VIN decode service.
func NewService(api BackendAPI, debounce time.Duration, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		api:       api,
		debouncer: NewDebouncer(debounce),
		logger:    logg,
		now:       time.Now,
	}, nil
}

func (s *service) Decode(ctx context.Context, session backend.Session, vin string) (*types.VehicleInfo, error) {
	normalized := validation.NormalizeVIN(vin)
	if res := validation.ValidateVIN(normalized); !res.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.Message)
	}

	env, err := s.api.Post(ctx, session, decodeEndpoint, decodePath, decodeRequest{VIN: normalized})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Unable to decode VIN. Please enter vehicle details manually.")
	}

	var resp decodeResponse
	if err := env.Decode(&resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Unable to decode VIN. Please enter vehicle details manually.")
	}
	if !env.OK() || resp.VehicleInfo == nil {
		msg := strings.TrimSpace(env.FailureMessage())
		if msg == "" {
			msg = "Unable to decode VIN. Please enter vehicle details manually."
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	vehicle := &types.VehicleInfo{
		Make:          NormalizeMake(resp.VehicleInfo.Make),
		Model:         strings.TrimSpace(resp.VehicleInfo.Model),
		Year:          int(resp.VehicleInfo.Year),
		Trim:          strings.TrimSpace(resp.VehicleInfo.Trim),
		Engine:        strings.TrimSpace(resp.VehicleInfo.Engine),
		AutoPopulated: true,
	}
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"make": vehicle.Make,
		"year": vehicle.Year,
	}), "vin decoded")
	return vehicle, nil
}

// DecodeDebounced decodes after the debounce delay; a newer call with the same
// key supersedes this one and ErrSuperseded is returned here.
func (s *service) DecodeDebounced(ctx context.Context, key string, session backend.Session, vin string) (*types.VehicleInfo, error) {
	var vehicle *types.VehicleInfo
	err := s.debouncer.Do(ctx, key, func(ctx context.Context) error {
		var err error
		vehicle, err = s.Decode(ctx, session, vin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *service) Evaluate(vehicle *types.VehicleInfo, mileage int) *types.Eligibility {
	return Evaluate(vehicle, mileage, s.now())
}
