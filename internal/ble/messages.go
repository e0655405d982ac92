package ble

import (
	"encoding/hex"
	"fmt"
)

// Proxy wire protocol: JSON frames over the control websocket. The proxy
// firmware owns the radio; the gateway only sees decoded events.

// Event is a frame sent by the proxy.
type Event struct {
	Type           string      `json:"type"`
	Address        string      `json:"address,omitempty"`
	Name           string      `json:"name,omitempty"`
	RSSI           int         `json:"rssi,omitempty"`
	Characteristic string      `json:"characteristic,omitempty"`
	Data           string      `json:"data,omitempty"` // hex
	Samples        []IMUSample `json:"samples,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Event types.
const (
	EventAdvertisement = "advertisement"
	EventConnected     = "connected"
	EventDisconnected  = "disconnected"
	EventNotify        = "notify"
	EventIMU           = "imu"
	EventError         = "error"
)

// IMUSample is one inertial reading relayed by the proxy, accelerometer
// in g and gyro in rad/s.
type IMUSample struct {
	AX float32 `json:"ax"`
	AY float32 `json:"ay"`
	AZ float32 `json:"az"`
	GX float32 `json:"gx"`
	GY float32 `json:"gy"`
	GZ float32 `json:"gz"`
}

// request is a frame sent to the proxy.
type request struct {
	Op             string `json:"op"`
	Address        string `json:"address,omitempty"`
	Active         bool   `json:"active,omitempty"`
	Characteristic string `json:"characteristic,omitempty"`
	Data           string `json:"data,omitempty"` // hex
}

// Request ops.
const (
	opScanStart   = "scan_start"
	opScanStop    = "scan_stop"
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opSubscribe  = "subscribe"
	opWrite      = "write"
)

// DecodePayload converts the hex payload of a notify event.
func (e Event) DecodePayload() ([]byte, error) {
	data, err := hex.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return data, nil
}
