package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"

	"github.com/angelmondragon/quoteflow/internal/validation"
	"github.com/angelmondragon/quoteflow/pkg/config"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
)

// Result fields the hosted form echoes back as hidden inputs.
const (
	ResultResponse        = "response"
	ResultResponseMessage = "responseMessage"
	ResultTransactionID   = "transactionId"
	ResultCardToken       = "cardToken"
	ResultApprovalCode    = "approvalCode"

	approvedResponse = "1"
	maxFragmentBytes = 1 << 20
	defaultDecline   = "Payment was declined. Please check your card details and try again."
)

// HostedFormGateway drives the legacy hosted payment form: it posts the
// fields the form reads by element id and parses the HTML fragment it returns.
type HostedFormGateway struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *logger.Logger
}

// NewHostedFormGateway builds the adapter. A nil http client gets an
// instrumented default bounded by the configured timeout.
func NewHostedFormGateway(cfg config.GatewayConfig, logg *logger.Logger, hc *http.Client) (*HostedFormGateway, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, fmt.Errorf("hosted form gateway url is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("hosted form gateway token is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HostedFormGateway{endpoint: endpoint, token: cfg.Token, http: hc, logger: logg}, nil
}

// Charge posts one card to the hosted form.
func (g *HostedFormGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	form := url.Values{}
	for key, value := range req.Fields {
		form.Set(key, value)
	}
	form.Set(FieldToken, g.token)
	form.Set(FieldAmount, req.Amount.StringFixed(2))
	form.Set(FieldCurrency, req.Currency)
	form.Set(FieldOrderNumber, req.OrderNumber)
	form.Set(FieldCardNumber, validation.StripCardNumber(req.Card.Number))
	form.Set(FieldCardExpiry, req.Card.Expiry())
	form.Set(FieldCardCVV, strings.TrimSpace(req.Card.CVV))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ChargeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "text/html")

	logCtx := g.logger.WithFields(ctx, map[string]any{
		"order_number": req.OrderNumber,
		"card_last4":   req.Card.LastFour(),
		"amount":       req.Amount.StringFixed(2),
	})
	g.logger.Info(logCtx, "hosted form charge submitted")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return ChargeResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxFragmentBytes))
		return ChargeResult{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	fields, err := ParseHostedFormResponse(io.LimitReader(resp.Body, maxFragmentBytes))
	if err != nil {
		return ChargeResult{}, err
	}
	result := resultFromFields(fields)
	g.logger.Info(g.logger.WithFields(logCtx, map[string]any{
		"approved":       result.Approved,
		"transaction_id": result.TransactionID,
	}), "hosted form charge completed")
	return result, nil
}

// ParseHostedFormResponse collects every input in the fragment keyed by its
// id, falling back to its name.
func ParseHostedFormResponse(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unreadable payment gateway response")
	}

	fields := map[string]string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var id, name, value string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "id":
					id = attr.Val
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				}
			}
			key := id
			if key == "" {
				key = name
			}
			if key != "" {
				fields[key] = strings.TrimSpace(value)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if _, ok := fields[ResultResponse]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway response missing result")
	}
	return fields, nil
}

func resultFromFields(fields map[string]string) ChargeResult {
	result := ChargeResult{
		Response:      fields[ResultResponse],
		Message:       fields[ResultResponseMessage],
		TransactionID: fields[ResultTransactionID],
		CardToken:     fields[ResultCardToken],
		ApprovalCode:  fields[ResultApprovalCode],
	}
	result.Approved = result.Response == approvedResponse
	if !result.Approved && result.Message == "" {
		result.Message = defaultDecline
	}
	return result
}
