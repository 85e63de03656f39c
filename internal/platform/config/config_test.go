package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORGAPI_AUTH__JWT_SIGNING_KEY", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 300, cfg.Membership.Fee)
	assert.Equal(t, 365, cfg.Membership.DefaultRetentionDays)
	assert.Equal(t, time.Hour, cfg.Retention.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Retention.LockTTL)
	assert.Equal(t, "membership.events", cfg.Kafka.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ORGAPI_AUTH__JWT_SIGNING_KEY", "0123456789abcdef")
	t.Setenv("ORGAPI_ENV", "production")
	t.Setenv("ORGAPI_MEMBERSHIP__FEE", "450")
	t.Setenv("ORGAPI_RETENTION__SWEEP_INTERVAL", "15m")
	t.Setenv("ORGAPI_KAFKA__BROKERS", "kafka-1:9092, kafka-2:9092,kafka-1:9092")
	t.Setenv("ORGAPI_EMAIL__RESEND_API_KEY", "re_test")
	t.Setenv("ORGAPI_EMAIL__FROM", "board@org.no")
	t.Setenv("ORGAPI_EMAIL__BCC", "Archive@Org.no,archive@org.no")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 450, cfg.Membership.Fee)
	assert.Equal(t, 15*time.Minute, cfg.Retention.SweepInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"archive@org.no"}, cfg.Email.Bcc)
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]map[string]string{
		"missing signing key": {},
		"short signing key":   {"ORGAPI_AUTH__JWT_SIGNING_KEY": "short"},
		"zero fee": {
			"ORGAPI_AUTH__JWT_SIGNING_KEY": "0123456789abcdef",
			"ORGAPI_MEMBERSHIP__FEE":       "0",
		},
		"unknown log level": {
			"ORGAPI_AUTH__JWT_SIGNING_KEY": "0123456789abcdef",
			"ORGAPI_LOG__LEVEL":            "verbose",
		},
		"resend without sender": {
			"ORGAPI_AUTH__JWT_SIGNING_KEY": "0123456789abcdef",
			"ORGAPI_EMAIL__RESEND_API_KEY": "re_test",
		},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ORGAPI_AUTH__JWT_SIGNING_KEY", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
