package messaging

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var whatsappTracer = otel.Tracer("booking.internal.messaging.whatsapp")

const (
	ProviderWhatsApp       = "whatsapp"
	defaultGraphAPIBase    = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout     = 10 * time.Second
	whatsappBusinessObject = "whatsapp_business_account"
)

// WhatsAppProvider handles the Meta WhatsApp Cloud API.
type WhatsAppProvider struct {
	verifyToken  string
	appSecret    string
	accessToken  string
	graphAPIBase string
	httpClient   *http.Client
}

// NewWhatsAppProvider creates the adapter. An empty appSecret disables
// signature checks.
func NewWhatsAppProvider(verifyToken, appSecret, accessToken, graphAPIBase string) *WhatsAppProvider {
	if strings.TrimSpace(graphAPIBase) == "" {
		graphAPIBase = defaultGraphAPIBase
	}
	return &WhatsAppProvider{
		verifyToken:  verifyToken,
		appSecret:    appSecret,
		accessToken:  accessToken,
		graphAPIBase: strings.TrimRight(graphAPIBase, "/"),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (p *WhatsAppProvider) Name() string { return ProviderWhatsApp }

// Challenge implements the hub.* subscription handshake.
func (p *WhatsAppProvider) Challenge(r *http.Request) (string, bool) {
	q := r.URL.Query()
	if p.verifyToken == "" || q.Get("hub.mode") != "subscribe" {
		return "", false
	}
	if !hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(p.verifyToken)) {
		return "", false
	}
	return q.Get("hub.challenge"), true
}

// Authenticate verifies X-Hub-Signature-256 when an app secret is set.
func (p *WhatsAppProvider) Authenticate(r *http.Request, body []byte) error {
	if p.appSecret == "" {
		return nil
	}
	if !VerifyHubSignature(p.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		return ErrUnauthorized
	}
	return nil
}

// VerifyHubSignature checks a "sha256=<hex>" HMAC of body.
func VerifyHubSignature(appSecret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if appSecret == "" || !strings.HasPrefix(signature, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, prefix)))
}

type waEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string  `json:"field"`
			Value waValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []waMessage `json:"messages"`
}

type waMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

func (m waMessage) body() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Button != nil:
		return m.Button.Text
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.Title
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.Title
	}
	return ""
}

// Parse reads a Cloud API webhook envelope.
func (p *WhatsAppProvider) Parse(_ *http.Request, body []byte) ([]Inbound, error) {
	var env waEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Object != whatsappBusinessObject {
		return nil, fmt.Errorf("%w: unexpected object %q", ErrMalformedEnvelope, env.Object)
	}

	var out []Inbound
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			v := change.Value
			for _, m := range v.Messages {
				text := strings.TrimSpace(m.body())
				if text == "" {
					continue
				}
				out = append(out, Inbound{
					Provider:   ProviderWhatsApp,
					MessageID:  m.ID,
					From:       m.From,
					To:         v.Metadata.DisplayPhoneNumber,
					Body:       text,
					ReplyVia:   v.Metadata.PhoneNumberID,
					ReceivedAt: unixSeconds(m.Timestamp),
				})
			}
		}
	}
	return out, nil
}

func unixSeconds(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

func (p *WhatsAppProvider) Ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"received"}`))
}

type waSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts a text message from the phone number id in msg.From.
func (p *WhatsAppProvider) Send(ctx context.Context, msg Outbound) error {
	if p.accessToken == "" {
		return errors.New("messaging: whatsapp access token missing")
	}
	if msg.From == "" || msg.To == "" || strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: whatsapp send requires from, to and body")
	}

	ctx, span := whatsappTracer.Start(ctx, "messaging.whatsapp.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("booking.phone_number_id", msg.From))

	req := waSendRequest{MessagingProduct: "whatsapp", To: msg.To, Type: "text"}
	req.Text.Body = msg.Body
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("messaging: marshal whatsapp send: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", p.graphAPIBase, msg.From)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messaging: create whatsapp request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("messaging: whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed waSendResponse
	_ = json.Unmarshal(respBody, &parsed)
	if parsed.Error != nil {
		err = fmt.Errorf("messaging: whatsapp api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("messaging: whatsapp unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
