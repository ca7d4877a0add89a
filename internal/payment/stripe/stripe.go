package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
)

const ProviderName = "stripe"

// DefaultTolerance bounds how far the signed timestamp may drift from the
// receiving clock before the delivery is treated as a replay.
const DefaultTolerance = 5 * time.Minute

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewAdapter(webhookSecret string, tolerance time.Duration) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Adapter{
		webhookSecret: webhookSecret,
		tolerance:     tolerance,
		now:           time.Now,
	}, nil
}

func (a *Adapter) Provider() string {
	return ProviderName
}

// Verify authenticates the raw payload against the Stripe-Signature header.
// The payload must be the exact bytes received on the wire.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	signedAt := time.Unix(ts, 0)
	if drift := a.now().Sub(signedAt); drift > a.tolerance || drift < -a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

// Parse maps a verified Stripe event envelope onto the internal event model.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseSession(event, payload, paymentdomain.EventTypeCheckoutCompleted)
	case "checkout.session.async_payment_succeeded":
		return a.parseSession(event, payload, paymentdomain.EventTypeAsyncPaymentSucceeded)
	case "checkout.session.async_payment_failed":
		return a.parseSession(event, payload, paymentdomain.EventTypeAsyncPaymentFailed)
	case "payment_intent.succeeded":
		return a.parseIntent(event, payload, paymentdomain.EventTypeIntentSucceeded)
	case "payment_intent.payment_failed":
		return a.parseIntent(event, payload, paymentdomain.EventTypeIntentFailed)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSession struct {
	ID              string                 `json:"id"`
	AmountTotal     int64                  `json:"amount_total"`
	Currency        string                 `json:"currency"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerDetails *stripeCustomerDetails `json:"customer_details"`
	PaymentIntent   json.RawMessage        `json:"payment_intent"`
	PaymentStatus   string                 `json:"payment_status"`
	Created         int64                  `json:"created"`
	Metadata        map[string]any         `json:"metadata"`
}

type stripeCustomerDetails struct {
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Phone   string         `json:"phone"`
	Address *stripeAddress `json:"address"`
}

type stripeAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type stripePaymentIntent struct {
	ID             string         `json:"id"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Metadata       map[string]any `json:"metadata"`
}

func (a *Adapter) parseSession(event stripeEvent, payload []byte, eventType string) (*paymentdomain.PaymentEvent, error) {
	var session stripeSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrMalformedEvent
	}

	contact, metadata := extractContact(session)

	return &paymentdomain.PaymentEvent{
		Provider:        ProviderName,
		ProviderEventID: event.ID,
		Type:            eventType,
		SessionID:       session.ID,
		PaymentIntentID: decodeIntentRef(session.PaymentIntent),
		Amount:          session.AmountTotal,
		Currency:        strings.ToUpper(strings.TrimSpace(session.Currency)),
		Contact:         contact,
		Event:           readMetadataValue(session.Metadata, "event"),
		EventName:       readMetadataValue(session.Metadata, "eventName"),
		OrderType:       readMetadataValue(session.Metadata, "type"),
		Metadata:        metadata,
		OccurredAt:      timestamp(session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func (a *Adapter) parseIntent(event stripeEvent, payload []byte, eventType string) (*paymentdomain.PaymentEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrMalformedEvent
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}

	return &paymentdomain.PaymentEvent{
		Provider:        ProviderName,
		ProviderEventID: event.ID,
		Type:            eventType,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(intent.Currency)),
		Metadata:        extraMetadata(intent.Metadata),
		OccurredAt:      timestamp(intent.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

// extractContact resolves contact fields with a defined fallback order:
// top-level customer_email, then customer_details, then the metadata bag.
func extractContact(session stripeSession) (customerdomain.Contact, map[string]string) {
	contact := customerdomain.Contact{
		Email:   strings.TrimSpace(session.CustomerEmail),
		PaxName: readMetadataValue(session.Metadata, "paxName"),
		AO:      readMetadataValue(session.Metadata, "ao"),
		Region:  readMetadataValue(session.Metadata, "region"),
	}

	if details := session.CustomerDetails; details != nil {
		if contact.Email == "" {
			contact.Email = strings.TrimSpace(details.Email)
		}
		contact.Name = strings.TrimSpace(details.Name)
		contact.Phone = strings.TrimSpace(details.Phone)
		if addr := details.Address; addr != nil {
			contact.AddressLine1 = strings.TrimSpace(addr.Line1)
			contact.AddressCity = strings.TrimSpace(addr.City)
			contact.AddressState = strings.TrimSpace(addr.State)
			contact.AddressPostalCode = strings.TrimSpace(addr.PostalCode)
		}
	}

	if contact.Email == "" {
		contact.Email = readMetadataValue(session.Metadata, "email")
	}
	if contact.Name == "" {
		contact.Name = readMetadataValue(session.Metadata, "name")
	}

	return contact, extraMetadata(session.Metadata)
}

// knownMetadataKeys are lifted into typed fields; everything else stays in
// the open metadata bag.
var knownMetadataKeys = map[string]struct{}{
	"event":     {},
	"eventName": {},
	"type":      {},
	"ao":        {},
	"region":    {},
	"paxName":   {},
	"email":     {},
	"name":      {},
}

func extraMetadata(metadata map[string]any) map[string]string {
	out := map[string]string{}
	for key := range metadata {
		if _, known := knownMetadataKeys[key]; known {
			continue
		}
		if value := readMetadataValue(metadata, key); value != "" {
			out[key] = value
		}
	}
	return out
}

func decodeIntentRef(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	// Expanded responses carry the intent object instead of its id.
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case bool:
		return strconv.FormatBool(cast)
	}
	return ""
}
