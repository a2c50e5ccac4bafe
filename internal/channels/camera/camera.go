// Package camera implements the one platform adapter that isn't a
// hosted chat service: a WebSocket server camera/sensor devices dial
// into directly, one connection per device, authenticated by a shared
// token rather than an OAuth/bot-token handshake.
package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

// frame is the JSON message shape exchanged over a device socket:
// devices send "event" frames (motion, a captured image reference,
// free-text observations), the gateway sends "command" frames back.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type deviceConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (d *deviceConn) writeJSON(v interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.WriteJSON(v)
}

// Channel runs a WebSocket server that camera devices connect to.
type Channel struct {
	*channels.BaseChannel
	cfg        config.CameraConfig
	server     *http.Server
	upgrader   websocket.Upgrader
	devices    sync.Map // deviceID → *deviceConn
}

var _ channels.Channel = (*Channel)(nil)

// New creates a camera channel from config.
func New(cfg config.CameraConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("camera listen_addr is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("camera", msgBus, nil),
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Start listens for device WebSocket connections.
func (c *Channel) Start(_ context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", c.handleConnect)

	c.server = &http.Server{Addr: c.cfg.ListenAddr, Handler: mux}
	slog.Info("starting camera device socket", "listen_addr", c.cfg.ListenAddr)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("camera socket server error", "error", err)
		}
	}()

	c.SetRunning(true)
	return nil
}

// Stop closes the listening socket and every connected device.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping camera device socket")
	c.SetRunning(false)
	if c.server != nil {
		if err := c.server.Close(); err != nil {
			slog.Warn("camera socket server close failed", "error", err)
		}
	}
	c.devices.Range(func(key, value interface{}) bool {
		value.(*deviceConn).conn.Close()
		c.devices.Delete(key)
		return true
	})
	return nil
}

// Send delivers a command frame to the device identified by
// msg.ChatID (the device ID it connected with).
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("camera socket not running")
	}
	if msg.Content == "" {
		return nil
	}

	value, ok := c.devices.Load(msg.ChatID)
	if !ok {
		return fmt.Errorf("camera device %q not connected", msg.ChatID)
	}
	dc := value.(*deviceConn)
	if err := dc.writeJSON(frame{Type: "command", Content: msg.Content}); err != nil {
		return fmt.Errorf("send camera frame: %w", err)
	}
	return nil
}

// handleConnect upgrades one device's HTTP connection to a WebSocket,
// authenticating it against the configured shared token, registers it
// under its device ID, then reads event frames until it disconnects.
func (c *Channel) handleConnect(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	if c.cfg.AuthToken != "" && r.URL.Query().Get("token") != c.cfg.AuthToken {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("camera socket upgrade failed", "device_id", deviceID, "error", err)
		return
	}

	dc := &deviceConn{conn: conn}
	c.devices.Store(deviceID, dc)
	slog.Info("camera device connected", "device_id", deviceID)

	defer func() {
		c.devices.Delete(deviceID)
		conn.Close()
		slog.Info("camera device disconnected", "device_id", deviceID)
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		c.handleFrame(deviceID, &f)
	}
}

func (c *Channel) handleFrame(deviceID string, f *frame) {
	if f.Type != "event" || f.Content == "" {
		return
	}
	slog.Debug("camera event received", "device_id", deviceID, "preview", channels.Truncate(f.Content, 50))

	metadata := map[string]string{
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
	c.HandleMessage(deviceID, deviceID, f.Content, nil, metadata, "direct")
}
