package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Availability payloads shared by all entities.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

const storageSection = "mqtt"

// FlagStore persists the discovery-published flag across restarts.
type FlagStore interface {
	GetBool(section, key string) (bool, error)
	SetBool(section, key string, value bool) error
}

// DiscoveryManager manages Home Assistant MQTT Discovery
type DiscoveryManager struct {
	mqttClient *Client
	log        *logrus.Entry
	storage    FlagStore

	// Cache of pre-generated discovery configs
	discoveryConfigs map[string][]byte
	discoveryMu      sync.RWMutex

	// State tracking
	lastEntityCount int
	mu              sync.RWMutex
}

// NewDiscoveryManager creates a new DiscoveryManager instance
func NewDiscoveryManager(client *Client, log *logrus.Entry, storage FlagStore) *DiscoveryManager {
	return &DiscoveryManager{
		mqttClient:       client,
		log:              log,
		storage:          storage,
		discoveryConfigs: make(map[string][]byte),
	}
}

// ShouldRepublishDiscovery checks if discovery configs should be republished
func (d *DiscoveryManager) ShouldRepublishDiscovery(currentEntityCount int) bool {
	published, err := d.storage.GetBool(storageSection, "discoveryPublished")
	if err != nil {
		published = false // First time
	}

	d.mu.RLock()
	lastCount := d.lastEntityCount
	d.mu.RUnlock()

	// Republish if never published before or the entity set changed.
	shouldPublish := !published || currentEntityCount != lastCount

	if shouldPublish {
		d.mu.Lock()
		d.lastEntityCount = currentEntityCount
		d.mu.Unlock()
	}

	return shouldPublish
}

// PublishDiscoveryConfig publishes discovery config for a single entity
func (d *DiscoveryManager) PublishDiscoveryConfig(cfg *EntityConfig) error {
	if cfg == nil {
		return nil
	}

	configJSON := d.generateDiscoveryConfig(cfg)
	if configJSON == nil {
		return nil
	}

	// Topic: homeassistant/{component}/wandbridge/{object_id}/config
	discoveryTopic := "homeassistant/" + cfg.Component + "/wandbridge/" + cfg.ObjectID + "/config"

	return d.mqttClient.PublishRaw(discoveryTopic, configJSON, true)
}

// PublishMultipleDiscoveryConfigs publishes discovery configs for multiple entities
func (d *DiscoveryManager) PublishMultipleDiscoveryConfigs(configs []*EntityConfig) error {
	for _, cfg := range configs {
		if err := d.PublishDiscoveryConfig(cfg); err != nil {
			d.log.WithError(err).WithField("entity", cfg.ObjectID).
				Warn("failed to publish discovery config")
		}
	}

	d.markDiscoveryPublished()
	d.log.WithField("count", len(configs)).Info("published MQTT discovery configs")
	return nil
}

// generateDiscoveryConfig generates and caches a Home Assistant discovery config
func (d *DiscoveryManager) generateDiscoveryConfig(cfg *EntityConfig) []byte {
	d.discoveryMu.RLock()
	if config, ok := d.discoveryConfigs[cfg.ObjectID]; ok {
		d.discoveryMu.RUnlock()
		return config
	}
	d.discoveryMu.RUnlock()

	mqttCfg := d.mqttClient.GetConfig()
	prefix := func(topic string) string {
		if mqttCfg.Prefix == "" {
			return topic
		}
		return mqttCfg.Prefix + "/" + topic
	}

	discoveryConfig := map[string]interface{}{
		"name":        cfg.Name,
		"unique_id":   cfg.ObjectID,
		"state_topic": prefix(cfg.StateTopic),
	}

	if cfg.Unit != "" {
		discoveryConfig["unit_of_measurement"] = cfg.Unit
	}
	if cfg.Icon != "" {
		discoveryConfig["icon"] = cfg.Icon
	}
	if cfg.AttributesTopic != "" {
		discoveryConfig["json_attributes_topic"] = prefix(cfg.AttributesTopic)
	}
	if cfg.DeviceClass != "" {
		discoveryConfig["device_class"] = cfg.DeviceClass
	}
	if cfg.StateClass != "" {
		discoveryConfig["state_class"] = cfg.StateClass
	}
	if len(cfg.Options) > 0 {
		discoveryConfig["options"] = cfg.Options
	}
	if cfg.PayloadOn != "" {
		discoveryConfig["payload_on"] = cfg.PayloadOn
	}
	if cfg.PayloadOff != "" {
		discoveryConfig["payload_off"] = cfg.PayloadOff
	}

	if cfg.AvailabilityTopic != "" {
		discoveryConfig["availability_topic"] = prefix(cfg.AvailabilityTopic)
		discoveryConfig["payload_available"] = PayloadOnline
		discoveryConfig["payload_not_available"] = PayloadOffline
	}

	if cfg.DeviceInfo != nil {
		device := map[string]interface{}{
			"identifiers":  cfg.DeviceInfo.Identifiers,
			"name":         cfg.DeviceInfo.Name,
			"model":        cfg.DeviceInfo.Model,
			"manufacturer": cfg.DeviceInfo.Manufacturer,
		}
		if cfg.DeviceInfo.SWVersion != "" {
			device["sw_version"] = cfg.DeviceInfo.SWVersion
		}
		if cfg.DeviceInfo.SerialNumber != "" {
			device["serial_number"] = cfg.DeviceInfo.SerialNumber
		}
		discoveryConfig["device"] = device
	}

	configJSON, err := json.Marshal(discoveryConfig)
	if err != nil {
		d.log.WithError(err).Warn("failed to marshal discovery config")
		return nil
	}

	d.discoveryMu.Lock()
	d.discoveryConfigs[cfg.ObjectID] = configJSON
	d.discoveryMu.Unlock()

	return configJSON
}

// markDiscoveryPublished marks discovery as published in storage
func (d *DiscoveryManager) markDiscoveryPublished() {
	if d.storage != nil {
		if err := d.storage.SetBool(storageSection, "discoveryPublished", true); err != nil {
			d.log.WithError(err).Warn("failed to mark discovery as published")
		}
	}
}

// InvalidateCache drops cached configs so the next publish regenerates
// them, used when the wand identity changes.
func (d *DiscoveryManager) InvalidateCache() {
	d.discoveryMu.Lock()
	d.discoveryConfigs = make(map[string][]byte)
	d.discoveryMu.Unlock()
}
