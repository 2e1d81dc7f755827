package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var twilioTracer = otel.Tracer("booking.internal.messaging.twilio")

const (
	ProviderTwilio       = "twilio"
	defaultTwilioBaseURL = "https://api.twilio.com"
	twilioMaxAttempts    = 3
	whatsappAddrPrefix   = "whatsapp:"
)

// TwilioProvider handles Twilio Messaging webhooks (SMS and WhatsApp).
type TwilioProvider struct {
	accountSID string
	authToken  string
	webhookURL string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// NewTwilioProvider creates the adapter. webhookURL must be the public URL
// Twilio posts to; when empty, signatures are not checked.
func NewTwilioProvider(accountSID, authToken, webhookURL string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		webhookURL: webhookURL,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		backoff:    200 * time.Millisecond,
	}
}

// WithBaseURL points REST calls at another host. Used by tests.
func (p *TwilioProvider) WithBaseURL(base string) *TwilioProvider {
	p.baseURL = strings.TrimRight(base, "/")
	p.backoff = time.Millisecond
	return p
}

func (p *TwilioProvider) Name() string { return ProviderTwilio }

func (p *TwilioProvider) Authenticate(r *http.Request, body []byte) error {
	if p.webhookURL == "" || p.authToken == "" {
		return nil
	}
	params, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !ValidateTwilioSignature(p.authToken, p.webhookURL, params, r.Header.Get("X-Twilio-Signature")) {
		return ErrUnauthorized
	}
	return nil
}

// ValidateTwilioSignature checks the base64 HMAC-SHA1 of the URL followed
// by the sorted form parameters.
func ValidateTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(twilioSignaturePayload(fullURL, params)))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func twilioSignaturePayload(fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	return b.String()
}

// Parse reads the form envelope. Status callbacks carry no Body and yield
// no messages.
func (p *TwilioProvider) Parse(_ *http.Request, body []byte) ([]Inbound, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	sid := form.Get("MessageSid")
	if sid == "" {
		sid = form.Get("SmsSid")
	}
	from, to := form.Get("From"), form.Get("To")
	if sid == "" || from == "" || to == "" {
		return nil, fmt.Errorf("%w: missing MessageSid, From or To", ErrMalformedEnvelope)
	}
	text := strings.TrimSpace(form.Get("Body"))
	if text == "" {
		return nil, nil
	}
	return []Inbound{{
		Provider:   ProviderTwilio,
		MessageID:  sid,
		From:       from,
		To:         to,
		Body:       text,
		ReplyVia:   to,
		ReceivedAt: time.Now().UTC(),
	}}, nil
}

// Ack answers with an empty TwiML document; replies go out over REST.
func (p *TwilioProvider) Ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Send posts to the Messages resource, retrying transport errors, 429s
// and 5xx responses.
func (p *TwilioProvider) Send(ctx context.Context, msg Outbound) error {
	if p.accountSID == "" || p.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	if msg.From == "" || msg.To == "" || strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: twilio send requires from, to and body")
	}

	ctx, span := twilioTracer.Start(ctx, "messaging.twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Bool("booking.whatsapp", strings.HasPrefix(msg.From, whatsappAddrPrefix)))

	form := url.Values{}
	form.Set("From", msg.From)
	form.Set("To", msg.To)
	form.Set("Body", msg.Body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)

	var lastErr error
	for attempt := 1; attempt <= twilioMaxAttempts; attempt++ {
		retry, err := p.post(ctx, endpoint, form)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == twilioMaxAttempts {
			break
		}
		wait := time.Duration(attempt)*p.backoff + time.Duration(rand.Int63n(int64(p.backoff)))
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return fmt.Errorf("messaging: twilio send: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	span.RecordError(lastErr)
	return lastErr
}

func (p *TwilioProvider) post(ctx context.Context, endpoint string, form url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("messaging: create twilio request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("messaging: twilio send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retry, formatTwilioError(resp.StatusCode, body)
}

func formatTwilioError(status int, body []byte) error {
	var apiErr twilioError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("messaging: twilio api error %d (status %d): %s", apiErr.Code, status, apiErr.Message)
	}
	return fmt.Errorf("messaging: twilio unexpected status %d: %s", status, strings.TrimSpace(string(body)))
}
