package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twilioForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC1")
	form.Set("From", "whatsapp:+33612345678")
	form.Set("To", "whatsapp:+15550001111")
	form.Set("Body", "Hello")
	return form
}

func computeTwilioSignature(token, hook string, form url.Values) string {
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(twilioSignaturePayload(hook, form)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignatureRoundTrip(t *testing.T) {
	const hook = "https://example.com/webhooks/twilio"
	form := twilioForm()

	p := NewTwilioProvider("AC1", "auth-token", hook)
	sig := computeTwilioSignature("auth-token", hook, form)

	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", nil)
	r.Header.Set("X-Twilio-Signature", sig)
	assert.NoError(t, p.Authenticate(r, []byte(form.Encode())))

	form.Set("Body", "tampered")
	assert.ErrorIs(t, p.Authenticate(r, []byte(form.Encode())), ErrUnauthorized)
}

func TestTwilioAuthenticateDisabledWithoutURL(t *testing.T) {
	p := NewTwilioProvider("AC1", "auth-token", "")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", nil)
	assert.NoError(t, p.Authenticate(r, []byte(twilioForm().Encode())))
}

func TestTwilioSignaturePayloadSortsKeys(t *testing.T) {
	params := url.Values{"b": {"2"}, "a": {"1"}}
	assert.Equal(t, "https://x/hooka1b2", twilioSignaturePayload("https://x/hook", params))
}

func TestTwilioParse(t *testing.T) {
	p := NewTwilioProvider("AC1", "tok", "")
	msgs, err := p.Parse(nil, []byte(twilioForm().Encode()))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "SM123", msgs[0].MessageID)
	assert.Equal(t, "whatsapp:+33612345678", msgs[0].From)
	assert.Equal(t, "whatsapp:+15550001111", msgs[0].To)
	assert.Equal(t, "whatsapp:+15550001111", msgs[0].ReplyVia)
	assert.Equal(t, "Hello", msgs[0].Body)
}

func TestTwilioParseStatusCallbackAndMalformed(t *testing.T) {
	p := NewTwilioProvider("AC1", "tok", "")

	form := twilioForm()
	form.Del("Body")
	form.Set("MessageStatus", "delivered")
	msgs, err := p.Parse(nil, []byte(form.Encode()))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	form = twilioForm()
	form.Del("From")
	_, err = p.Parse(nil, []byte(form.Encode()))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestTwilioSendRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC1", user)
		assert.Equal(t, "tok", pass)
		assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", r.URL.Path)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Booked!", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SMout"}`))
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC1", "tok", "").WithBaseURL(srv.URL)
	err := p.Send(context.Background(), Outbound{From: "whatsapp:+1555", To: "whatsapp:+336", Body: "Booked!"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTwilioSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC1", "tok", "").WithBaseURL(srv.URL)
	err := p.Send(context.Background(), Outbound{From: "+1555", To: "bad", Body: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "21211"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
