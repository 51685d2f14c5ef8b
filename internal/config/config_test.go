package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DISPATCH_MODE", "")
	t.Setenv("LEDGER_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, DispatchLocal, cfg.DispatchMode)
	assert.Equal(t, LedgerMemory, cfg.LedgerMode)
	assert.Equal(t, time.Second, cfg.PayRateWindow)
	assert.Equal(t, 24*time.Hour, cfg.TransferStateTTL)
	assert.Equal(t, 2*time.Minute, cfg.ReconcileAfter)
	assert.NotEmpty(t, cfg.AdminToken)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DISPATCH_MODE", DispatchQueue)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("LEDGER_MODE", LedgerHTTP)
	t.Setenv("LEDGER_URL", "http://ledger.local")
	t.Setenv("SWEEP_AFTER_SEC", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.SweepAfter)
	assert.Equal(t, "http://ledger.local", cfg.LedgerURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"unknown dispatch", map[string]string{"DISPATCH_MODE": "carrier-pigeon"}},
		{"http ledger without url", map[string]string{"LEDGER_MODE": LedgerHTTP, "LEDGER_URL": ""}},
		{"zero rate limit", map[string]string{"PAY_RATE_LIMIT": "0"}},
		{"non numeric timeout", map[string]string{"TRANSFER_TIMEOUT_SEC": "soon"}},
		{"reconcile before timeout", map[string]string{"TRANSFER_TIMEOUT_SEC": "60", "RECONCILE_AFTER_SEC": "30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
