// Package ble drives the external Bluetooth proxy over its websocket
// control channel: scanning, GATT connections and characteristic traffic
// all happen on the proxy, the gateway exchanges JSON frames with it.
package ble

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wandbridge/internal/wand"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second

	reconnectMaxInterval = 30 * time.Second
)

// Proxy maintains the websocket session to the Bluetooth proxy and
// restores scan state across reconnects.
type Proxy struct {
	url    string
	log    *logrus.Entry
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	scanning bool
	target   string // address of the currently connected wand, if any

	// Event callbacks, set before Run. Called from the read loop.
	OnAdvertisement func(address, name string, rssi int)
	OnConnected     func(address string)
	OnDisconnected  func(address string)
	OnNotify        func(characteristic string, data []byte)
	OnIMU           func(samples []IMUSample)
}

// NewProxy creates a proxy client for the given websocket URL.
func NewProxy(url string, log *logrus.Entry) *Proxy {
	return &Proxy{
		url:    url,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run connects to the proxy and processes events until the context is
// cancelled, reconnecting with exponential backoff on failure.
func (p *Proxy) Run(ctx context.Context) error {
	for {
		if err := p.connect(ctx); err != nil {
			return err
		}

		err := p.readLoop(ctx)
		p.dropConnection()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.WithError(err).Warn("proxy connection lost, reconnecting")
	}
}

func (p *Proxy) connect(ctx context.Context) error {
	dial := func() error {
		conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
		if err != nil {
			p.log.WithError(err).Debug("proxy dial failed")
			return err
		}
		p.mu.Lock()
		p.conn = conn
		scanning := p.scanning
		p.mu.Unlock()

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		if scanning {
			if err := p.send(request{Op: opScanStart, Active: true}); err != nil {
				return err
			}
		}
		p.log.Info("connected to bluetooth proxy")
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = reconnectMaxInterval
	policy.MaxElapsedTime = 0
	return backoff.Retry(dial, backoff.WithContext(policy, ctx))
}

// dropConnection closes the socket and reports the in-flight wand
// connection as lost.
func (p *Proxy) dropConnection() {
	p.mu.Lock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	target := p.target
	p.target = ""
	p.mu.Unlock()

	if target != "" && p.OnDisconnected != nil {
		p.OnDisconnected(target)
	}
}

func (p *Proxy) readLoop(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go p.pingLoop(ctx, conn, done)

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		p.dispatch(ev)
	}
}

func (p *Proxy) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

func (p *Proxy) dispatch(ev Event) {
	switch ev.Type {
	case EventAdvertisement:
		// Only wands are interesting; everything else on the air is noise.
		if !strings.HasPrefix(ev.Name, wand.NamePrefix) {
			return
		}
		if p.OnAdvertisement != nil {
			p.OnAdvertisement(ev.Address, ev.Name, ev.RSSI)
		}
	case EventConnected:
		p.mu.Lock()
		p.target = ev.Address
		p.mu.Unlock()
		if p.OnConnected != nil {
			p.OnConnected(ev.Address)
		}
	case EventDisconnected:
		p.mu.Lock()
		if p.target == ev.Address {
			p.target = ""
		}
		p.mu.Unlock()
		if p.OnDisconnected != nil {
			p.OnDisconnected(ev.Address)
		}
	case EventNotify:
		data, err := ev.DecodePayload()
		if err != nil {
			p.log.WithError(err).Debug("dropping notify event")
			return
		}
		if p.OnNotify != nil {
			p.OnNotify(ev.Characteristic, data)
		}
	case EventIMU:
		if p.OnIMU != nil {
			p.OnIMU(ev.Samples)
		}
	case EventError:
		p.log.WithField("error", ev.Error).Warn("proxy reported error")
	default:
		p.log.WithField("type", ev.Type).Debug("unknown proxy event")
	}
}

func (p *Proxy) send(req request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("proxy not connected")
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Op, err)
	}
	return nil
}

// StartScan begins active scanning; the flag survives reconnects.
func (p *Proxy) StartScan() error {
	p.mu.Lock()
	p.scanning = true
	p.mu.Unlock()
	return p.send(request{Op: opScanStart, Active: true})
}

// StopScan ends scanning.
func (p *Proxy) StopScan() error {
	p.mu.Lock()
	p.scanning = false
	p.mu.Unlock()
	return p.send(request{Op: opScanStop})
}

// Connect asks the proxy to establish a GATT connection.
func (p *Proxy) Connect(address string) error {
	return p.send(request{Op: opConnect, Address: address})
}

// Disconnect drops the GATT connection.
func (p *Proxy) Disconnect(address string) error {
	return p.send(request{Op: opDisconnect, Address: address})
}

// Subscribe enables notifications for a characteristic.
func (p *Proxy) Subscribe(characteristic string) error {
	return p.send(request{Op: opSubscribe, Characteristic: characteristic})
}

// WriteCharacteristic writes raw bytes to a characteristic.
func (p *Proxy) WriteCharacteristic(characteristic string, data []byte) error {
	return p.send(request{
		Op:             opWrite,
		Characteristic: characteristic,
		Data:           hex.EncodeToString(data),
	})
}

// WriteCommand satisfies the wand client's transport: command payloads go
// to the command characteristic.
func (p *Proxy) WriteCommand(_ context.Context, payload []byte) error {
	return p.WriteCharacteristic(wand.CommandCharUUID, payload)
}
