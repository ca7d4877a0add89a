package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	"github.com/f3impact/ignite/internal/config"
)

type stripeCheckoutSession struct {
	ID              string            `json:"id"`
	ClientSecret    string            `json:"client_secret"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	PaymentIntent   json.RawMessage   `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *stripeCustomer   `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

type stripeCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type stripeClient struct {
	apiKey string
	client *http.Client
}

func NewProviderClient(cfg config.Config) checkoutdomain.ProviderClient {
	return newStripeClient(cfg.StripeSecretKey)
}

func newStripeClient(apiKey string) *stripeClient {
	return &stripeClient{
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *stripeClient) CreateSession(ctx context.Context, spec checkoutdomain.SessionSpec) (checkoutdomain.ProviderSession, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("ui_mode", "embedded")
	values.Set("return_url", spec.ReturnURL)
	values.Set("line_items[0][quantity]", strconv.FormatInt(spec.Quantity, 10))
	values.Set("line_items[0][price_data][currency]", strings.ToLower(spec.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(spec.Amount, 10))
	values.Set("line_items[0][price_data][product_data][name]", spec.ProductName)
	if spec.Email != "" {
		values.Set("customer_email", spec.Email)
	}
	for key, value := range spec.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, spec.IdempotencyKey)
}

func (c *stripeClient) GetSession(ctx context.Context, sessionID string) (checkoutdomain.ProviderSession, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "")
}

func (c *stripeClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (checkoutdomain.ProviderSession, error) {
	if c.apiKey == "" {
		return checkoutdomain.ProviderSession{}, checkoutdomain.ErrProviderFailure
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://api.stripe.com"+path, bodyReader)
	if err != nil {
		return checkoutdomain.ProviderSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return checkoutdomain.ProviderSession{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return checkoutdomain.ProviderSession{}, checkoutdomain.ErrSessionNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return checkoutdomain.ProviderSession{}, errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return checkoutdomain.ProviderSession{}, errors.New(message)
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return checkoutdomain.ProviderSession{}, err
	}
	if session.ID == "" {
		return checkoutdomain.ProviderSession{}, errors.New("stripe_response_invalid")
	}
	return toProviderSession(session), nil
}

func toProviderSession(session stripeCheckoutSession) checkoutdomain.ProviderSession {
	out := checkoutdomain.ProviderSession{
		ID:              session.ID,
		ClientSecret:    session.ClientSecret,
		Status:          session.Status,
		PaymentStatus:   session.PaymentStatus,
		PaymentIntentID: intentRef(session.PaymentIntent),
		AmountTotal:     session.AmountTotal,
		Currency:        session.Currency,
		CustomerEmail:   session.CustomerEmail,
		Metadata:        session.Metadata,
	}
	if session.CustomerDetails != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = session.CustomerDetails.Email
		}
		out.CustomerName = session.CustomerDetails.Name
	}
	return out
}

// intentRef handles Stripe returning payment_intent as either an id string
// or an expanded object.
func intentRef(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
