package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Monitor.FailureThreshold, "три страйка по умолчанию")
	assert.Equal(t, 16, cfg.Monitor.MaxConcurrentProbes)
	assert.Equal(t, "auto", cfg.Monitor.Prober)
	assert.Equal(t, "log", cfg.Alerts.Mode)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MONITOR_FAILURE_THRESHOLD", "5")
	t.Setenv("ALERTS_MODE", "webhook")
	t.Setenv("ALERTS_WEBHOOK_URL", "http://noc.school.test/hook")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Monitor.FailureThreshold)
	assert.Equal(t, "webhook", cfg.Alerts.Mode)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"non-positive threshold": {"MONITOR_FAILURE_THRESHOLD": "0"},
		"unknown prober":         {"MONITOR_PROBER": "carrier-pigeon"},
		"webhook without url":    {"ALERTS_MODE": "webhook"},
		"bad tcp port":           {"MONITOR_TCP_PORT": "70000"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
