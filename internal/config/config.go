// Package config loads bridge configuration from a YAML file with
// environment variable overrides.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. Each overrides the corresponding YAML
// field when set.
const (
	EnvAddr          = "WANDBRIDGE_ADDR"
	EnvJWTSecret     = "WANDBRIDGE_JWT_SECRET"
	EnvJWTExpiration = "WANDBRIDGE_JWT_EXPIRATION"
	EnvNoAuth        = "WANDBRIDGE_NO_AUTH"
	EnvProxyURL      = "WANDBRIDGE_PROXY_URL"
	EnvWandAddress   = "WANDBRIDGE_WAND_ADDRESS"
	EnvLogLevel      = "WANDBRIDGE_LOG_LEVEL"
	// MQTT settings
	EnvMQTTBroker   = "WANDBRIDGE_MQTT_BROKER"
	EnvMQTTClientID = "WANDBRIDGE_MQTT_CLIENT_ID"
	EnvMQTTUsername = "WANDBRIDGE_MQTT_USERNAME"
	EnvMQTTPassword = "WANDBRIDGE_MQTT_PASSWORD"
	EnvMQTTPrefix   = "WANDBRIDGE_MQTT_PREFIX"
	EnvMQTTUseTLS   = "WANDBRIDGE_MQTT_USE_TLS"
	// Detector settings
	EnvDetectorURL = "WANDBRIDGE_DETECTOR_URL"
	EnvModelPath   = "WANDBRIDGE_MODEL_PATH"
)

// Default values
const (
	DefaultAddr          = ":8080"
	DefaultJWTExpiration = 24 * time.Hour
	DefaultMQTTPrefix    = "wandbridge"
	DefaultDetectorURL   = "http://b5e3f765-tflite-server:8000"
	DefaultThreshold     = 0.99
	DefaultStoragePath   = "wandbridge.db"
	DefaultHistoryPath   = "casts.db"
	DefaultCastingColor  = "White"
	DefaultKeepAlive     = 30 * time.Second
	DefaultLogLevel      = "info"
)

// fileConfig mirrors the YAML layout on disk.
type fileConfig struct {
	Server struct {
		Addr          string `yaml:"addr"`
		JWTSecret     string `yaml:"jwt_secret"`
		JWTExpiration string `yaml:"jwt_expiration"`
		NoAuth        bool   `yaml:"no_auth"`
	} `yaml:"server"`
	Proxy struct {
		URL         string `yaml:"url"`
		WandAddress string `yaml:"wand_address"`
	} `yaml:"proxy"`
	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"client_id"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
		UseTLS   bool   `yaml:"use_tls"`
	} `yaml:"mqtt"`
	Detector struct {
		URL           string  `yaml:"url"`
		ModelPath     string  `yaml:"model_path"`
		SignaturePath string  `yaml:"signature_path"`
		PublicKey     string  `yaml:"public_key"`
		Threshold     float32 `yaml:"threshold"`
	} `yaml:"detector"`
	Storage struct {
		Path        string `yaml:"path"`
		HistoryPath string `yaml:"history_path"`
	} `yaml:"storage"`
	Bridge struct {
		CastingColor  string `yaml:"casting_color"`
		PayoffEnabled *bool  `yaml:"payoff_enabled"`
		SpellTimeout  string `yaml:"spell_timeout"`
		KeepAlive     string `yaml:"keep_alive"`
	} `yaml:"bridge"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Config holds all application configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string
	dirty    bool // tracks if config was modified

	// Server settings
	addr          string
	jwtSecret     string
	jwtExpiration time.Duration
	noAuth        bool

	// Proxy settings
	proxyURL    string
	wandAddress string

	// MQTT settings
	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttPrefix   string
	mqttUseTLS   bool

	// Detector settings
	detectorURL        string
	modelPath          string
	signaturePath      string
	detectorPublicKey  string
	detectionThreshold float32

	// Storage settings
	storagePath string
	historyPath string

	// Bridge behavior
	castingColor  string
	payoffEnabled bool
	spellTimeout  time.Duration
	keepAlive     time.Duration

	logLevel string
}

// Load loads configuration from a YAML file, applies environment
// overrides and fills in defaults. A missing file is not an error; the
// file is created on the first Save (which Load triggers when it has to
// generate a JWT secret).
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	cfg.setDefaults()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.dirty = true
	}

	cfg.applyEnv()

	// Generate JWT secret if empty
	if cfg.jwtSecret == "" {
		secret, err := generateSecureSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.jwtSecret = secret
		cfg.dirty = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.dirty {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.addr = DefaultAddr
	c.jwtSecret = ""
	c.jwtExpiration = DefaultJWTExpiration
	c.noAuth = false
	c.proxyURL = ""
	c.wandAddress = ""
	c.mqttBroker = ""
	c.mqttClientID = ""
	c.mqttUsername = ""
	c.mqttPassword = ""
	c.mqttPrefix = DefaultMQTTPrefix
	c.mqttUseTLS = false
	c.detectorURL = DefaultDetectorURL
	c.modelPath = ""
	c.signaturePath = ""
	c.detectorPublicKey = ""
	c.detectionThreshold = DefaultThreshold
	c.storagePath = DefaultStoragePath
	c.historyPath = DefaultHistoryPath
	c.castingColor = DefaultCastingColor
	c.payoffEnabled = true
	c.spellTimeout = 0 // disabled
	c.keepAlive = DefaultKeepAlive
	c.logLevel = DefaultLogLevel
}

// loadFromFile reads configuration from the YAML file.
func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", c.filePath, err)
	}

	c.applyFile(fc)
	return nil
}

// applyFile applies parsed YAML values to config.
func (c *Config) applyFile(fc fileConfig) {
	if fc.Server.Addr != "" {
		c.addr = fc.Server.Addr
	}
	if fc.Server.JWTSecret != "" {
		c.jwtSecret = fc.Server.JWTSecret
	}
	if d, err := time.ParseDuration(fc.Server.JWTExpiration); err == nil && d > 0 {
		c.jwtExpiration = d
	}
	c.noAuth = fc.Server.NoAuth

	if fc.Proxy.URL != "" {
		c.proxyURL = fc.Proxy.URL
	}
	if fc.Proxy.WandAddress != "" {
		c.wandAddress = fc.Proxy.WandAddress
	}

	if fc.MQTT.Broker != "" {
		c.mqttBroker = fc.MQTT.Broker
	}
	if fc.MQTT.ClientID != "" {
		c.mqttClientID = fc.MQTT.ClientID
	}
	if fc.MQTT.Username != "" {
		c.mqttUsername = fc.MQTT.Username
	}
	if fc.MQTT.Password != "" {
		c.mqttPassword = fc.MQTT.Password
	}
	if fc.MQTT.Prefix != "" {
		c.mqttPrefix = fc.MQTT.Prefix
	}
	c.mqttUseTLS = fc.MQTT.UseTLS

	if fc.Detector.URL != "" {
		c.detectorURL = fc.Detector.URL
	}
	if fc.Detector.ModelPath != "" {
		c.modelPath = fc.Detector.ModelPath
	}
	if fc.Detector.SignaturePath != "" {
		c.signaturePath = fc.Detector.SignaturePath
	}
	if fc.Detector.PublicKey != "" {
		c.detectorPublicKey = fc.Detector.PublicKey
	}
	if fc.Detector.Threshold > 0 {
		c.detectionThreshold = fc.Detector.Threshold
	}

	if fc.Storage.Path != "" {
		c.storagePath = fc.Storage.Path
	}
	if fc.Storage.HistoryPath != "" {
		c.historyPath = fc.Storage.HistoryPath
	}

	if fc.Bridge.CastingColor != "" {
		c.castingColor = fc.Bridge.CastingColor
	}
	if fc.Bridge.PayoffEnabled != nil {
		c.payoffEnabled = *fc.Bridge.PayoffEnabled
	}
	if d, err := time.ParseDuration(fc.Bridge.SpellTimeout); err == nil && d >= 0 {
		c.spellTimeout = d
	}
	if d, err := time.ParseDuration(fc.Bridge.KeepAlive); err == nil && d > 0 {
		c.keepAlive = d
	}

	if fc.Logging.Level != "" {
		c.logLevel = fc.Logging.Level
	}
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.addr = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.jwtSecret = v
	}
	if v := os.Getenv(EnvJWTExpiration); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.jwtExpiration = d
		}
	}
	if v := os.Getenv(EnvNoAuth); v != "" {
		c.noAuth = parseBool(v)
	}
	if v := os.Getenv(EnvProxyURL); v != "" {
		c.proxyURL = v
	}
	if v := os.Getenv(EnvWandAddress); v != "" {
		c.wandAddress = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.logLevel = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.mqttBroker = v
	}
	if v := os.Getenv(EnvMQTTClientID); v != "" {
		c.mqttClientID = v
	}
	if v := os.Getenv(EnvMQTTUsername); v != "" {
		c.mqttUsername = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		c.mqttPassword = v
	}
	if v := os.Getenv(EnvMQTTPrefix); v != "" {
		c.mqttPrefix = v
	}
	if v := os.Getenv(EnvMQTTUseTLS); v != "" {
		c.mqttUseTLS = parseBool(v)
	}
	if v := os.Getenv(EnvDetectorURL); v != "" {
		c.detectorURL = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.modelPath = v
	}
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	if c.addr == "" {
		return errors.New("server address cannot be empty")
	}

	host, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		if _, err := strconv.Atoi(strings.TrimPrefix(c.addr, ":")); err != nil {
			return fmt.Errorf("invalid server address format: %s", c.addr)
		}
	} else {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 1 || portNum > 65535 {
			return fmt.Errorf("invalid port number: %s", port)
		}
		_ = host // host can be empty (bind to all interfaces)
	}

	if c.jwtExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.jwtExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	if c.proxyURL != "" {
		u, err := url.Parse(c.proxyURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("proxy URL must be a ws:// or wss:// URL: %s", c.proxyURL)
		}
	}

	if c.detectionThreshold <= 0 || c.detectionThreshold > 1 {
		return fmt.Errorf("detection threshold must be in (0, 1]: %v", c.detectionThreshold)
	}

	return nil
}

// Save writes current configuration to the YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	fc := c.toFile()
	filePath := c.filePath
	c.mu.RUnlock()

	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// toFile converts config to the YAML layout for saving.
func (c *Config) toFile() fileConfig {
	var fc fileConfig
	fc.Server.Addr = c.addr
	fc.Server.JWTSecret = c.jwtSecret
	fc.Server.JWTExpiration = c.jwtExpiration.String()
	fc.Server.NoAuth = c.noAuth
	fc.Proxy.URL = c.proxyURL
	fc.Proxy.WandAddress = c.wandAddress
	fc.MQTT.Broker = c.mqttBroker
	fc.MQTT.ClientID = c.mqttClientID
	fc.MQTT.Username = c.mqttUsername
	fc.MQTT.Password = c.mqttPassword
	fc.MQTT.Prefix = c.mqttPrefix
	fc.MQTT.UseTLS = c.mqttUseTLS
	fc.Detector.URL = c.detectorURL
	fc.Detector.ModelPath = c.modelPath
	fc.Detector.SignaturePath = c.signaturePath
	fc.Detector.PublicKey = c.detectorPublicKey
	fc.Detector.Threshold = c.detectionThreshold
	fc.Storage.Path = c.storagePath
	fc.Storage.HistoryPath = c.historyPath
	fc.Bridge.CastingColor = c.castingColor
	payoff := c.payoffEnabled
	fc.Bridge.PayoffEnabled = &payoff
	fc.Bridge.SpellTimeout = c.spellTimeout.String()
	fc.Bridge.KeepAlive = c.keepAlive.String()
	fc.Logging.Level = c.logLevel
	return fc
}

// Getters (thread-safe)

// Addr returns the server address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// JWTSecret returns the JWT secret key.
func (c *Config) JWTSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtSecret
}

// JWTExpiration returns the JWT token expiration duration.
func (c *Config) JWTExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtExpiration
}

// NoAuth returns whether authentication is disabled.
func (c *Config) NoAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noAuth
}

// ProxyURL returns the Bluetooth proxy websocket URL.
func (c *Config) ProxyURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proxyURL
}

// WandAddress returns the pinned wand MAC address, or empty to accept
// the first advertising wand.
func (c *Config) WandAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wandAddress
}

// FilePath returns the path to the config file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTClientID returns the MQTT client ID.
func (c *Config) MQTTClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttClientID
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTPrefix returns the MQTT topic prefix.
func (c *Config) MQTTPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPrefix
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// DetectorURL returns the classifier server base URL.
func (c *Config) DetectorURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detectorURL
}

// ModelPath returns the gesture model file path.
func (c *Config) ModelPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelPath
}

// SignaturePath returns the model signature file path. Defaults to the
// model path with a .minisig suffix when unset.
func (c *Config) SignaturePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.signaturePath == "" && c.modelPath != "" {
		return c.modelPath + ".minisig"
	}
	return c.signaturePath
}

// DetectorPublicKey returns the minisign public key used to verify the
// gesture model, or empty to skip verification.
func (c *Config) DetectorPublicKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detectorPublicKey
}

// DetectionThreshold returns the minimum classifier confidence.
func (c *Config) DetectionThreshold() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detectionThreshold
}

// StoragePath returns the bolt database path.
func (c *Config) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storagePath
}

// HistoryPath returns the cast history database path.
func (c *Config) HistoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.historyPath
}

// CastingColor returns the LED color shown while tracking a gesture.
func (c *Config) CastingColor() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.castingColor
}

// PayoffEnabled returns whether detected spells play their payoff macro.
func (c *Config) PayoffEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.payoffEnabled
}

// SpellTimeout returns how long a detected spell stays on the sensor
// before resetting to the idle state. Zero disables the reset.
func (c *Config) SpellTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spellTimeout
}

// KeepAlive returns the keep-alive write interval.
func (c *Config) KeepAlive() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keepAlive
}

// LogLevel returns the logging level.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel
}

// Setters (thread-safe, auto-save)

// SetCastingColor sets the casting LED color and saves to file.
func (c *Config) SetCastingColor(color string) error {
	c.mu.Lock()
	c.castingColor = color
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// SetPayoffEnabled sets whether payoff macros play and saves to file.
func (c *Config) SetPayoffEnabled(enabled bool) error {
	c.mu.Lock()
	c.payoffEnabled = enabled
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// SetSpellTimeout sets the spell reset timeout and saves to file.
func (c *Config) SetSpellTimeout(d time.Duration) error {
	if d < 0 {
		return errors.New("spell timeout cannot be negative")
	}

	c.mu.Lock()
	c.spellTimeout = d
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// SetDetectionThreshold sets the classifier confidence floor and saves
// to file.
func (c *Config) SetDetectionThreshold(threshold float32) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("detection threshold must be in (0, 1]: %v", threshold)
	}

	c.mu.Lock()
	c.detectionThreshold = threshold
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// Helper functions

// generateSecureSecret generates a cryptographically secure random hex string.
func generateSecureSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
