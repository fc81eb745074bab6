package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/quoteflow/internal/payments"
	"github.com/angelmondragon/quoteflow/internal/products"
	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/internal/vehicles"
	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/config"
	"github.com/angelmondragon/quoteflow/pkg/db"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/redis"
	"github.com/angelmondragon/quoteflow/pkg/types"
)

func vinCommand() *cli.Command {
	return &cli.Command{
		Name:      "vin",
		Usage:     "Check a VIN's format",
		ArgsUsage: "<vin>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one VIN is required", 2)
			}
			vin := validation.NormalizeVIN(c.Args().First())
			result := validation.ValidateVIN(vin)
			return printJSON(c.App.Writer, map[string]any{
				"vin":     vin,
				"valid":   result.Valid,
				"message": result.Message,
			})
		},
	}
}

func cardCommand() *cli.Command {
	return &cli.Command{
		Name:  "card",
		Usage: "Check card number, CVV and expiry without charging",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "number", Required: true},
			&cli.StringFlag{Name: "cvv"},
			&cli.IntFlag{Name: "exp-month"},
			&cli.IntFlag{Name: "exp-year"},
		},
		Action: func(c *cli.Context) error {
			number := c.String("number")
			cardType := validation.DetectCardType(number)
			digits := validation.StripCardNumber(number)
			last4 := digits
			if len(last4) > 4 {
				last4 = last4[len(last4)-4:]
			}
			out := map[string]any{
				"card_type":    cardType,
				"last4":        last4,
				"number_valid": validation.ValidateCardNumber(number),
			}
			if c.IsSet("cvv") {
				out["cvv_valid"] = validation.ValidateCVV(c.String("cvv"), cardType)
			}
			if c.IsSet("exp-month") || c.IsSet("exp-year") {
				out["expiry_valid"] = validation.ValidateExpiryDate(c.Int("exp-month"), c.Int("exp-year"))
			}
			return printJSON(c.App.Writer, out)
		},
	}
}

func eligibilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "eligibility",
		Usage: "Evaluate VSC eligibility for a vehicle and mileage",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "make", Required: true},
			&cli.StringFlag{Name: "model"},
			&cli.IntFlag{Name: "year", Required: true},
			&cli.IntFlag{Name: "mileage", Required: true},
			&cli.TimestampFlag{Name: "as-of", Layout: "2006-01-02", Usage: "assessment date, defaults to today"},
		},
		Action: func(c *cli.Context) error {
			now := time.Now()
			if ts := c.Timestamp("as-of"); ts != nil {
				now = *ts
			}
			vehicle := types.VehicleInfo{
				Make:  vehicles.NormalizeMake(c.String("make")),
				Model: c.String("model"),
				Year:  c.Int("year"),
			}
			return printJSON(c.App.Writer, vehicles.CheckEligibility(vehicle, c.Int("mileage"), now))
		},
	}
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Quote request tooling",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a hero or VSC quote request from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "path to the request, - for stdin"},
					&cli.StringFlag{Name: "kind", Value: "auto", Usage: "hero, vsc or auto"},
				},
				Action: func(c *cli.Context) error {
					raw, err := readInput(c.String("file"), c.App.Reader)
					if err != nil {
						return err
					}
					req, err := decodeQuoteRequest(raw, c.String("kind"))
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					problems := validation.ValidateQuoteData(req)
					if err := printJSON(c.App.Writer, map[string]any{
						"kind":   req.Kind,
						"valid":  len(problems) == 0,
						"errors": problems,
					}); err != nil {
						return err
					}
					if len(problems) > 0 {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
		},
	}
}

// decodeQuoteRequest guesses the variant from the fields present when kind is auto.
func decodeQuoteRequest(raw []byte, kind string) (types.QuoteRequest, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || kind == "auto" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return types.QuoteRequest{}, fmt.Errorf("decode request: %w", err)
		}
		kind = string(enums.QuoteKindHero)
		if _, ok := fields["coverage_level"]; ok {
			kind = string(enums.QuoteKindVSC)
		}
	}
	parsed, err := enums.ParseQuoteKind(kind)
	if err != nil {
		return types.QuoteRequest{}, err
	}
	switch parsed {
	case enums.QuoteKindVSC:
		var vsc types.VSCQuoteRequest
		if err := json.Unmarshal(raw, &vsc); err != nil {
			return types.QuoteRequest{}, fmt.Errorf("decode vsc request: %w", err)
		}
		return types.NewVSCRequest(vsc), nil
	default:
		var hero types.HeroQuoteRequest
		if err := json.Unmarshal(raw, &hero); err != nil {
			return types.QuoteRequest{}, fmt.Errorf("decode hero request: %w", err)
		}
		return types.NewHeroRequest(hero), nil
	}
}

func productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "List the normalized product catalog from the backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", EnvVars: []string{"QUOTEFLOW_TOKEN"}, Usage: "backend bearer token"},
			&cli.StringFlag{Name: "role", Value: string(enums.RoleCustomer), Usage: "caller role; selects the pricing tier"},
		},
		Action: func(c *cli.Context) error {
			role, err := enums.ParseRole(c.String("role"))
			if err != nil {
				return err
			}
			cfg, logg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := c.Context
			redisClient, err := redis.New(ctx, cfg.Redis, logg)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			api, err := backend.New(cfg.Backend, logg)
			if err != nil {
				return err
			}
			svc, err := products.NewService(api, redisClient, cfg.Flow.CatalogCacheTTL, logg)
			if err != nil {
				return err
			}
			list, err := svc.List(ctx, backend.Session{Token: c.String("token")}, role)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, list)
		},
	}
}

func unrecordedCommand() *cli.Command {
	return &cli.Command{
		Name:  "unrecorded",
		Usage: "Inspect approved charges the backend never recorded",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List open journal entries, oldest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: func(c *cli.Context) error {
					journal, closeFn, err := openJournal(c)
					if err != nil {
						return err
					}
					defer closeFn()
					rows, err := journal.ListOpen(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					out := make([]map[string]any, 0, len(rows))
					for _, row := range rows {
						out = append(out, map[string]any{
							"id":             row.ID,
							"flow_id":        row.FlowID,
							"order_number":   row.OrderNumber,
							"transaction_id": row.GatewayTransactionID,
							"approval_code":  row.ApprovalCode,
							"amount":         decimal.New(row.AmountCents, -2).StringFixed(2),
							"currency":       row.Currency,
							"customer":       row.Customer.FullName(),
							"reason":         row.FailureReason,
							"created_at":     row.CreatedAt,
						})
					}
					return printJSON(c.App.Writer, out)
				},
			},
			{
				Name:      "resolve",
				Usage:     "Mark a journal entry as reconciled",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := uuid.Parse(c.Args().First())
					if err != nil {
						return cli.Exit("a journal entry id is required", 2)
					}
					journal, closeFn, err := openJournal(c)
					if err != nil {
						return err
					}
					defer closeFn()
					if err := journal.Resolve(c.Context, id); err != nil {
						return fmt.Errorf("resolve %s: %w", id, err)
					}
					_, err = fmt.Fprintf(c.App.Writer, "resolved %s\n", id)
					return err
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, *logger.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "quotectl",
		Level:       logger.ParseLevel(c.String("log-level")),
		Output:      c.App.ErrWriter,
	})
	return cfg, logg, nil
}

func openJournal(c *cli.Context) (payments.Journal, func(), error) {
	cfg, logg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	client, err := db.New(c.Context, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}
	return payments.NewRepository(client.DB()), closeFn, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
