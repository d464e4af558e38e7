package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("BANK_AMOUNT", "")
	t.Setenv("REFRESH_FINAL_BALANCE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "ledger.db", cfg.SQLitePath)
	assert.Equal(t, "300000", cfg.BankAmount.String())
	assert.True(t, cfg.RefreshFinalBalance)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "MEMORY")
	t.Setenv("BANK_AMOUNT", "125000.50")
	t.Setenv("REFRESH_FINAL_BALANCE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "125000.5", cfg.BankAmount.String())
	assert.False(t, cfg.RefreshFinalBalance)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad bank", map[string]string{"BANK_AMOUNT": "lots"}},
		{"negative bank", map[string]string{"BANK_AMOUNT": "-1"}},
		{"unknown backend", map[string]string{"LEDGER_BACKEND": "postgres"}},
		{"bigquery without project", map[string]string{"LEDGER_BACKEND": "bigquery", "GCP_PROJECT_ID": ""}},
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
