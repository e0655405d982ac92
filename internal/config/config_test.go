package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wandbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wandbridge.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr())
	assert.Equal(t, DefaultJWTExpiration, cfg.JWTExpiration())
	assert.Equal(t, DefaultMQTTPrefix, cfg.MQTTPrefix())
	assert.Equal(t, DefaultDetectorURL, cfg.DetectorURL())
	assert.EqualValues(t, float32(DefaultThreshold), cfg.DetectionThreshold())
	assert.Equal(t, DefaultCastingColor, cfg.CastingColor())
	assert.True(t, cfg.PayoffEnabled())
	assert.Zero(t, cfg.SpellTimeout())
	assert.Equal(t, DefaultKeepAlive, cfg.KeepAlive())

	// A missing file gets created with a generated JWT secret.
	assert.NotEmpty(t, cfg.JWTSecret())
	assert.Len(t, cfg.JWTSecret(), 64)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  jwt_secret: "test-secret"
  jwt_expiration: "2h"
  no_auth: true
proxy:
  url: "ws://proxy.local:6052"
  wand_address: "C0:4E:30:12:AB:CD"
mqtt:
  broker: "tcp://broker.local:1883"
  prefix: "magic"
detector:
  url: "http://detector.local:8000"
  model_path: "/var/lib/wandbridge/model.tflite"
  threshold: 0.9
bridge:
  casting_color: "Blue"
  payoff_enabled: false
  spell_timeout: "30s"
logging:
  level: "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "test-secret", cfg.JWTSecret())
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiration())
	assert.True(t, cfg.NoAuth())
	assert.Equal(t, "ws://proxy.local:6052", cfg.ProxyURL())
	assert.Equal(t, "C0:4E:30:12:AB:CD", cfg.WandAddress())
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTTBroker())
	assert.Equal(t, "magic", cfg.MQTTPrefix())
	assert.Equal(t, "http://detector.local:8000", cfg.DetectorURL())
	assert.Equal(t, "/var/lib/wandbridge/model.tflite", cfg.ModelPath())
	assert.Equal(t, "/var/lib/wandbridge/model.tflite.minisig", cfg.SignaturePath())
	assert.EqualValues(t, float32(0.9), cfg.DetectionThreshold())
	assert.Equal(t, "Blue", cfg.CastingColor())
	assert.False(t, cfg.PayoffEnabled())
	assert.Equal(t, 30*time.Second, cfg.SpellTimeout())
	assert.Equal(t, "debug", cfg.LogLevel())
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  jwt_secret: "file-secret"
`)
	t.Setenv(EnvAddr, ":7070")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvProxyURL, "ws://env-proxy:6052")
	t.Setenv(EnvMQTTBroker, "tcp://env-broker:1883")
	t.Setenv(EnvNoAuth, "yes")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr())
	assert.Equal(t, "env-secret", cfg.JWTSecret())
	assert.Equal(t, "ws://env-proxy:6052", cfg.ProxyURL())
	assert.Equal(t, "tcp://env-broker:1883", cfg.MQTTBroker())
	assert.True(t, cfg.NoAuth())
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad address", "server:\n  addr: \"not-an-address\"\n"},
		{"bad port", "server:\n  addr: \":99999\"\n"},
		{"short jwt expiration", "server:\n  jwt_expiration: \"10s\"\n"},
		{"bad proxy scheme", "proxy:\n  url: \"http://proxy.local\"\n"},
		{"bad threshold", "detector:\n  threshold: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wandbridge.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SetCastingColor("Green"))
	require.NoError(t, cfg.SetSpellTimeout(45*time.Second))
	require.NoError(t, cfg.SetPayoffEnabled(false))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Green", reloaded.CastingColor())
	assert.Equal(t, 45*time.Second, reloaded.SpellTimeout())
	assert.False(t, reloaded.PayoffEnabled())

	assert.Error(t, cfg.SetSpellTimeout(-time.Second))
	assert.Error(t, cfg.SetDetectionThreshold(2))
}

func TestRejectedSettersLeaveValuesUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wandbridge.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Error(t, cfg.SetDetectionThreshold(1.5))
	assert.EqualValues(t, float32(DefaultThreshold), cfg.DetectionThreshold())

	require.Error(t, cfg.SetDetectionThreshold(0))
	assert.EqualValues(t, float32(DefaultThreshold), cfg.DetectionThreshold())

	require.Error(t, cfg.SetSpellTimeout(-time.Second))
	assert.Zero(t, cfg.SpellTimeout())

	// Nothing persisted either.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, float32(DefaultThreshold), reloaded.DetectionThreshold())
	assert.Zero(t, reloaded.SpellTimeout())
}
