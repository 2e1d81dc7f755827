package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waTextEnvelope = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PNID1"},
        "messages": [{"from": "33612345678", "id": "wamid.1", "timestamp": "1760000000", "type": "text", "text": {"body": " Hi, can I book tomorrow? "}}]
      }
    }]
  }]
}`

const waStatusEnvelope = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA1", "changes": [{"field": "messages", "value": {
    "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PNID1"},
    "statuses": [{"id": "wamid.9", "status": "delivered"}]
  }}]}]
}`

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWhatsAppParseTextMessage(t *testing.T) {
	p := NewWhatsAppProvider("verify", "", "token", "")
	msgs, err := p.Parse(nil, []byte(waTextEnvelope))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, ProviderWhatsApp, m.Provider)
	assert.Equal(t, "wamid.1", m.MessageID)
	assert.Equal(t, "33612345678", m.From)
	assert.Equal(t, "15550001111", m.To)
	assert.Equal(t, "PNID1", m.ReplyVia)
	assert.Equal(t, "Hi, can I book tomorrow?", m.Body)
	assert.Equal(t, int64(1760000000), m.ReceivedAt.Unix())
}

func TestWhatsAppParseStatusOnly(t *testing.T) {
	p := NewWhatsAppProvider("verify", "", "token", "")
	msgs, err := p.Parse(nil, []byte(waStatusEnvelope))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWhatsAppParseMalformed(t *testing.T) {
	p := NewWhatsAppProvider("verify", "", "token", "")

	_, err := p.Parse(nil, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = p.Parse(nil, []byte(`{"object":"page","entry":[]}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestWhatsAppChallenge(t *testing.T) {
	p := NewWhatsAppProvider("secret-token", "", "", "")

	r := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=42", nil)
	got, ok := p.Challenge(r)
	assert.True(t, ok)
	assert.Equal(t, "42", got)

	r = httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil)
	_, ok = p.Challenge(r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=42", nil)
	_, ok = p.Challenge(r)
	assert.False(t, ok)
}

func TestWhatsAppAuthenticate(t *testing.T) {
	body := []byte(waTextEnvelope)
	p := NewWhatsAppProvider("v", "app-secret", "", "")

	r := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
	r.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	assert.NoError(t, p.Authenticate(r, body))

	r.Header.Set("X-Hub-Signature-256", sign("other", body))
	assert.ErrorIs(t, p.Authenticate(r, body), ErrUnauthorized)

	r.Header.Del("X-Hub-Signature-256")
	assert.ErrorIs(t, p.Authenticate(r, body), ErrUnauthorized)

	open := NewWhatsAppProvider("v", "", "", "")
	assert.NoError(t, open.Authenticate(r, body))
}

func TestWhatsAppSend(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody waSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	p := NewWhatsAppProvider("", "", "tok", srv.URL+"/")
	err := p.Send(context.Background(), Outbound{From: "PNID1", To: "33612345678", Body: "See you tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, "/PNID1/messages", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "33612345678", gotBody.To)
	assert.Equal(t, "See you tomorrow", gotBody.Text.Body)
}

func TestWhatsAppSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid recipient","code":131030}}`))
	}))
	defer srv.Close()

	p := NewWhatsAppProvider("", "", "tok", srv.URL)
	err := p.Send(context.Background(), Outbound{From: "PNID1", To: "1", Body: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid recipient"))
}

func TestWhatsAppSendRequiresToken(t *testing.T) {
	p := NewWhatsAppProvider("", "", "", "")
	assert.Error(t, p.Send(context.Background(), Outbound{From: "a", To: "b", Body: "c"}))
}
