package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/internal/quotes"
	"github.com/angelmondragon/quoteflow/internal/sharedquotes"
	"github.com/angelmondragon/quoteflow/internal/shares"
	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/internal/vehicles"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

// VehicleUpdate carries the VSC vehicle fields a single edit touched. Nil
// pointers leave the stored value alone; Make, Model and Year are manual
// entry used when the VIN cannot be decoded.
type VehicleUpdate struct {
	VIN     *string `json:"vin"`
	Mileage *int    `json:"mileage"`
	Make    string  `json:"make"`
	Model   string  `json:"model"`
	Year    int     `json:"year"`
}

// Service orchestrates quote pages.
type Service interface {
	Start(ctx context.Context, actor Actor) (*Page, error)
	StartShared(ctx context.Context, token string) (*Page, error)
	Get(ctx context.Context, actor Actor, id string) (*Page, error)
	UpdateVehicle(ctx context.Context, actor Actor, id string, update VehicleUpdate) (*Page, error)
	SubmitHero(ctx context.Context, actor Actor, id string, form types.HeroQuoteRequest) (*Page, error)
	SubmitVSC(ctx context.Context, actor Actor, id string, form types.VSCQuoteRequest) (*Page, error)
	OpenPayment(ctx context.Context, actor Actor, id string, customer types.CustomerInfo, billing types.BillingInfo) (*Page, error)
	SubmitCard(ctx context.Context, actor Actor, id string, card payments.Card) (*Page, error)
	CancelPayment(ctx context.Context, actor Actor, id string) (*Page, error)
	CreateShare(ctx context.Context, actor Actor, id string, customer types.CustomerInfo, notes string) (*Page, error)
	EmailShare(ctx context.Context, actor Actor, id string, customer *types.CustomerInfo, notes string) (*Page, error)
	AcceptShared(ctx context.Context, id string, customer types.CustomerInfo) (*Page, error)
	Reset(ctx context.Context, actor Actor, id string) (*Page, error)
}

type service struct {
	store    Store
	locker   Locker
	vehicles vehicles.Service
	quotes   quotes.Service
	payments payments.Service
	shares   shares.Service
	shared   sharedquotes.Service
	logger   *logger.Logger
	now      func() time.Time
}

// NewService wires the page orchestrator.
func NewService(
	store Store,
	locker Locker,
	vehicleSvc vehicles.Service,
	quoteSvc quotes.Service,
	paymentSvc payments.Service,
	shareSvc shares.Service,
	sharedSvc sharedquotes.Service,
	logg *logger.Logger,
) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("page store required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if vehicleSvc == nil {
		return nil, fmt.Errorf("vehicle service required")
	}
	if quoteSvc == nil {
		return nil, fmt.Errorf("quote service required")
	}
	if paymentSvc == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if shareSvc == nil {
		return nil, fmt.Errorf("share service required")
	}
	if sharedSvc == nil {
		return nil, fmt.Errorf("shared quote service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    store,
		locker:   locker,
		vehicles: vehicleSvc,
		quotes:   quoteSvc,
		payments: paymentSvc,
		shares:   shareSvc,
		shared:   sharedSvc,
		logger:   logg,
		now:      time.Now,
	}, nil
}

// Start opens a page for an authenticated actor. The role read here fixes the
// customer type for every later submission on the page.
func (s *service) Start(ctx context.Context, actor Actor) (*Page, error) {
	if !actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Sign in to request a quote")
	}
	now := s.now().UTC()
	page := &Page{
		ID:           uuid.NewString(),
		OwnerID:      actor.UserID,
		Role:         actor.Role,
		CustomerType: actor.Role.CustomerType(),
		Phase:        enums.FlowPhaseIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Save(ctx, page); err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithActorRole(s.logger.WithFlowID(ctx, page.ID), page.Role.String()), "quote page started")
	return page, nil
}

// StartShared opens a page from a reseller's public link. The shared quote
// arrives ready to pay, priced for a retail customer.
func (s *service) StartShared(ctx context.Context, token string) (*Page, error) {
	shared, err := s.shared.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	quote := shared.Quote

	now := s.now().UTC()
	page := &Page{
		ID:           uuid.NewString(),
		Role:         enums.RoleCustomer,
		CustomerType: enums.CustomerTypeRetail,
		Phase:        enums.FlowPhaseIdle,
		Customer:     shared.Customer,
		Shared: &SharedContext{
			Token:    shared.Token,
			Reseller: shared.Reseller,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fire(ctx, page, EventQuote); err != nil {
		return nil, err
	}
	page.Quote = &quote
	if err := s.store.Save(ctx, page); err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithFields(s.logger.WithFlowID(ctx, page.ID), map[string]any{
		"quote_id": quote.ID,
	}), "shared quote page started")
	return page, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id string) (*Page, error) {
	return s.load(ctx, actor, id)
}

// UpdateVehicle applies a VIN or mileage edit. A VIN shorter than 17 characters
// clears the decoded vehicle and its eligibility together. A full VIN is decoded
// after the debounce delay, outside the page lock, so a newer edit supersedes it.
func (s *service) UpdateVehicle(ctx context.Context, actor Actor, id string, update VehicleUpdate) (*Page, error) {
	var (
		vin        string
		vinMessage string
		decoded    *types.VehicleInfo
		decodeErr  error
	)
	if update.VIN != nil {
		vin = validation.NormalizeVIN(*update.VIN)
		if len(vin) >= validation.VINLength {
			if res := validation.ValidateVIN(vin); !res.Valid {
				vinMessage = res.Message
			} else {
				if _, err := s.load(ctx, actor, id); err != nil {
					return nil, err
				}
				decoded, decodeErr = s.vehicles.DecodeDebounced(ctx, id, actor.Session, vin)
				if errors.Is(decodeErr, vehicles.ErrSuperseded) {
					return nil, decodeErr
				}
				if decodeErr != nil && pkgerrors.IsCode(decodeErr, pkgerrors.CodeUnauthorized) {
					return nil, decodeErr
				}
			}
		}
	}

	var page *Page
	err := s.mutate(ctx, actor, id, "vehicle", func(p *Page) error {
		page = p
		v := &p.Vehicle
		if update.VIN != nil {
			v.VIN = vin
			v.VINMessage = vinMessage
			v.DecodeError = ""
			if decoded != nil {
				v.Info = decoded
			} else {
				v.Info = nil
				v.Eligibility = nil
			}
			if decodeErr != nil {
				v.DecodeError = errorMessage(decodeErr)
			}
		}
		if update.Make != "" || update.Model != "" || update.Year > 0 {
			if v.Info == nil || !v.Info.AutoPopulated {
				info := types.VehicleInfo{}
				if v.Info != nil {
					info = *v.Info
				}
				if update.Make != "" {
					info.Make = vehicles.NormalizeMake(update.Make)
				}
				if update.Model != "" {
					info.Model = strings.TrimSpace(update.Model)
				}
				if update.Year > 0 {
					info.Year = update.Year
				}
				info.AutoPopulated = false
				v.Info = &info
			}
		}
		if update.Mileage != nil {
			v.Mileage = *update.Mileage
		}
		v.Eligibility = s.vehicles.Evaluate(v.Info, v.Mileage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return page, decodeErr
	}
	return page, nil
}

func (s *service) SubmitHero(ctx context.Context, actor Actor, id string, form types.HeroQuoteRequest) (*Page, error) {
	return s.submitQuote(ctx, actor, id, func(p *Page) (*types.Quote, error) {
		form.CustomerType = p.CustomerType
		return s.quotes.GenerateHero(ctx, actor.Session, form)
	})
}

func (s *service) SubmitVSC(ctx context.Context, actor Actor, id string, form types.VSCQuoteRequest) (*Page, error) {
	return s.submitQuote(ctx, actor, id, func(p *Page) (*types.Quote, error) {
		form.CustomerType = p.CustomerType
		vehicle := &types.VehicleInfo{
			Make:  vehicles.NormalizeMake(form.Make),
			Model: strings.TrimSpace(form.Model),
			Year:  form.Year,
		}
		if info := p.Vehicle.Info; info != nil && strings.EqualFold(info.Make, vehicle.Make) && info.Year == vehicle.Year {
			vehicle = info
		}
		eligibility := s.vehicles.Evaluate(vehicle, form.Mileage)
		p.Vehicle.Mileage = form.Mileage
		p.Vehicle.Eligibility = eligibility
		return s.quotes.GenerateVSC(ctx, actor.Session, form, eligibility)
	})
}

// submitQuote replaces the page's quote wholesale. A failure drops the
// previous quote with its payment and share, since they priced a form the
// customer has since changed, and surfaces the message on the page.
func (s *service) submitQuote(ctx context.Context, actor Actor, id string, generate func(*Page) (*types.Quote, error)) (*Page, error) {
	var (
		page     *Page
		quoteErr error
	)
	err := s.mutate(ctx, actor, id, "quote", func(p *Page) error {
		page = p
		if err := payments.UnrecordedHold(p.Payment); err != nil {
			return err
		}
		if !s.can(p, EventQuote) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Start a new quote before submitting another")
		}
		quote, err := generate(p)
		if err != nil {
			if ferr := s.fire(ctx, p, EventQuoteFailed); ferr != nil {
				return ferr
			}
			p.Quote = nil
			p.Payment = nil
			p.Share = nil
			p.Error = errorMessage(err)
			quoteErr = err
			return nil
		}
		if err := s.fire(ctx, p, EventQuote); err != nil {
			return err
		}
		p.Quote = quote
		p.Payment = nil
		p.Share = nil
		p.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	if quoteErr != nil {
		return page, quoteErr
	}
	return page, nil
}

// OpenPayment opens a payment modal for the current quote, replacing any
// stale one. Resellers share quotes instead of paying for them.
func (s *service) OpenPayment(ctx context.Context, actor Actor, id string, customer types.CustomerInfo, billing types.BillingInfo) (*Page, error) {
	var page *Page
	err := s.mutate(ctx, actor, id, "payment", func(p *Page) error {
		page = p
		if p.Role == enums.RoleReseller {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Resellers share quotes with customers instead of paying")
		}
		if err := payments.UnrecordedHold(p.Payment); err != nil {
			return err
		}
		if !s.can(p, EventOpenPayment) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Generate a quote before paying")
		}
		sess, err := s.payments.Open(ctx, p.Quote, customer, billing)
		if err != nil {
			return err
		}
		if err := s.fire(ctx, p, EventOpenPayment); err != nil {
			return err
		}
		if p.Payment != nil && p.Payment.ID != sess.ID {
			s.logger.Debug(s.logger.WithField(ctx, "payment_id", p.Payment.ID), "replacing stale payment modal")
		}
		p.Customer = customer
		p.Payment = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// SubmitCard charges the card. Declines keep the modal open; the page is
// saved either way so the gateway message survives a reload.
func (s *service) SubmitCard(ctx context.Context, actor Actor, id string, card payments.Card) (*Page, error) {
	var (
		page   *Page
		payErr error
	)
	err := s.mutate(ctx, actor, id, "payment", func(p *Page) error {
		page = p
		if p.Phase != enums.FlowPhaseAwaitingPayment || p.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "No payment in progress")
		}
		_, err := s.payments.Submit(payments.WithFlowID(ctx, p.ID), actor.Session, p.Payment, card)
		if err != nil {
			payErr = err
			return nil
		}
		return s.fire(ctx, p, EventPaymentApproved)
	})
	if err != nil {
		return nil, err
	}
	if payErr != nil {
		return page, payErr
	}
	return page, nil
}

// CancelPayment closes the modal and returns to the quote. The returned error
// is always payments.ErrCancelled, which callers treat as a quiet success.
func (s *service) CancelPayment(ctx context.Context, actor Actor, id string) (*Page, error) {
	var page *Page
	err := s.mutate(ctx, actor, id, "payment", func(p *Page) error {
		page = p
		if p.Phase != enums.FlowPhaseAwaitingPayment {
			return nil
		}
		if err := s.payments.Cancel(ctx, p.Payment); !errors.Is(err, payments.ErrCancelled) {
			return err
		}
		return s.fire(ctx, p, EventCancelPayment)
	})
	if err != nil {
		return nil, err
	}
	return page, payments.ErrCancelled
}

// CreateShare turns the reseller's quote into a public link for a customer.
func (s *service) CreateShare(ctx context.Context, actor Actor, id string, customer types.CustomerInfo, notes string) (*Page, error) {
	var (
		page     *Page
		shareErr error
	)
	err := s.mutate(ctx, actor, id, "share", func(p *Page) error {
		page = p
		if p.Role != enums.RoleReseller {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Only resellers can share quotes")
		}
		if !s.can(p, EventBeginShare) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Generate a quote before sharing")
		}
		if err := s.fire(ctx, p, EventBeginShare); err != nil {
			return err
		}
		// persist the pending phase so readers see the share in progress
		if err := s.store.Save(ctx, p); err != nil {
			return err
		}

		share, err := s.shares.CreateShareable(ctx, actor.Session, *p.Quote, customer, notes)
		if err != nil {
			shareErr = err
			p.Error = errorMessage(err)
			return s.fire(ctx, p, EventShareFailed)
		}
		if err := s.fire(ctx, p, EventShareCreated); err != nil {
			return err
		}
		p.Customer = customer
		p.Share = share
		p.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shareErr != nil {
		return page, shareErr
	}
	return page, nil
}

// EmailShare sends the share link. customer overrides the address the share
// was created for.
func (s *service) EmailShare(ctx context.Context, actor Actor, id string, customer *types.CustomerInfo, notes string) (*Page, error) {
	var page *Page
	err := s.mutate(ctx, actor, id, "share", func(p *Page) error {
		page = p
		if p.Role != enums.RoleReseller {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Only resellers can share quotes")
		}
		if p.Phase != enums.FlowPhaseShareReady || p.Share == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Create a shareable quote first")
		}
		recipient := p.Share.Customer
		if customer != nil {
			recipient = *customer
		}
		if err := s.shares.SendByEmail(ctx, actor.Session, *p.Share, recipient, notes); err != nil {
			return err
		}
		sent := s.now().UTC()
		p.Share.EmailedAt = &sent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// AcceptShared records the customer's acceptance of a shared quote.
func (s *service) AcceptShared(ctx context.Context, id string, customer types.CustomerInfo) (*Page, error) {
	var page *Page
	err := s.mutate(ctx, Actor{Session: backend.Session{}}, id, "accept", func(p *Page) error {
		page = p
		if p.Shared == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "This quote was not opened from a shared link")
		}
		if p.Shared.Accepted {
			return nil
		}
		if missing := validation.ValidateCustomer(customer); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "Customer first name, last name and email are required").
				WithDetails(map[string]any{"missing_fields": missing})
		}
		if _, err := s.shared.Accept(ctx, p.Shared.Token, customer); err != nil {
			return err
		}
		p.Shared.Accepted = true
		p.Customer = customer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Reset clears quote, share and payment state together. Resetting an idle
// page is a no-op.
func (s *service) Reset(ctx context.Context, actor Actor, id string) (*Page, error) {
	var page *Page
	err := s.mutate(ctx, actor, id, "reset", func(p *Page) error {
		page = p
		if p.Payment != nil && p.Payment.Unrecorded {
			s.logger.Warn(s.logger.WithField(ctx, "order_number", p.Payment.OrderNumber), "resetting page with an unrecorded charge")
		}
		if err := s.fire(ctx, p, EventReset); err != nil {
			return err
		}
		p.Quote = nil
		p.Payment = nil
		p.Share = nil
		p.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// mutate runs fn on the freshly loaded page under the flow lock and saves the result.
func (s *service) mutate(ctx context.Context, actor Actor, id, action string, fn func(*Page) error) error {
	release, err := s.locker.Acquire(ctx, id, action)
	if err != nil {
		return err
	}
	defer release()

	page, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	ctx = s.logger.WithActorRole(s.logger.WithFlowID(ctx, page.ID), page.Role.String())

	if err := fn(page); err != nil {
		s.logger.Debug(s.logger.WithField(ctx, "action", action), "quote page action rejected")
		return err
	}
	page.UpdatedAt = s.now().UTC()
	return s.store.Save(ctx, page)
}

func (s *service) load(ctx context.Context, actor Actor, id string) (*Page, error) {
	page, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.OwnerID != "" && page.OwnerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "This quote belongs to another user")
	}
	return page, nil
}

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
