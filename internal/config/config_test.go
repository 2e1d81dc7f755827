package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NLU_PROVIDER", "")
	t.Setenv("NLU_TIMEOUT", "")
	t.Setenv("HISTORY_LIMIT", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, NLUProviderAuto, cfg.NLUProvider)
	assert.Equal(t, 12*time.Second, cfg.NLUTimeout)
	assert.Equal(t, 40, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.TenantCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NLU_PROVIDER", " Gemini ")
	t.Setenv("NLU_TIMEOUT", "3s")
	t.Setenv("HISTORY_LIMIT", "not-a-number")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")

	cfg := Load()
	assert.Equal(t, NLUProviderGemini, cfg.NLUProvider)
	assert.Equal(t, 3*time.Second, cfg.NLUTimeout)
	assert.Equal(t, 40, cfg.HistoryLimit)
	assert.True(t, cfg.RedisTLS)
	assert.True(t, cfg.TwilioEnabled())
	assert.False(t, cfg.WhatsAppEnabled())
}
