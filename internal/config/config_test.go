package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asheth-dev/backend-daan/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":        "postgres://localhost:5432/daan?sslmode=disable",
		"REDIS_URL":           "redis://localhost:6379/0",
		"RAZORPAY_KEY_ID":     "rzp_test_key",
		"RAZORPAY_KEY_SECRET": "rzp_test_secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "INR", cfg.CurrencyCode)
	require.Equal(t, "https://api.razorpay.com", cfg.RazorpayBaseURL)
	require.Equal(t, 30*time.Minute, cfg.ReconcileAfter)
	require.True(t, cfg.ReconcileEnabled)
	require.False(t, cfg.AuthEnabled())
}

func TestLoadRequiresCredentials(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET"} {
		env := baseEnv()
		env[missing] = ""
		_, err := config.LoadForTests(env)
		require.Error(t, err, "expected error when %s is missing", missing)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["CURRENCY_CODE"] = "usd"
	env["JWT_SECRET"] = "s3cret"
	env["RECONCILE_ENABLED"] = "false"
	env["PAYMENT_REPLAY_TTL"] = "1h"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.True(t, cfg.AuthEnabled())
	require.False(t, cfg.ReconcileEnabled)
	require.Equal(t, time.Hour, cfg.ReplayTTL)
}
