// Package uiws serves the scanner state to browser clients over a websocket
// and accepts their commands.
package uiws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/ipc"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
	// maxMessage bounds one inbound command other than scan.
	maxMessage = 64 * 1024
	// maxScanMessage bounds a scan carrying the photograph as a base64
	// data URI (32 MiB of image data).
	maxScanMessage = 48 << 20
)

// Message types sent to clients.
const (
	TypeStatus = "status"
	TypeReply  = "reply"
)

// Outbound is one message to a client.
type Outbound struct {
	Type    string      `json:"type"`
	Status  interface{} `json:"status,omitempty"`
	Command string      `json:"command,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Executor runs a client command. It may block for the duration of an
// analysis.
type Executor func(ctx context.Context, cmd ipc.Command) error

// Hub tracks connected clients and fans out status snapshots.
type Hub struct {
	exec     Executor
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte // most recent status message
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub that hands commands to exec.
func NewHub(exec Executor) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		exec: exec,
		upgrader: websocket.Upgrader{
			// Clients are local UIs served from file:// or localhost.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (h *Hub) SetLogger(l *diaglog.Logger) {
	h.loggerMu.Lock()
	h.logger = l
	h.loggerMu.Unlock()
}

func (h *Hub) log(event, reason string, payload interface{}) {
	h.loggerMu.RLock()
	l := h.logger
	h.loggerMu.RUnlock()
	l.Log(diaglog.LogEntry{Component: diaglog.ComponentUI, Event: event, Reason: reason, Payload: payload})
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "clients": h.Clients()})
	})
	return mux
}

// Broadcast sends status to every client and remembers it for clients that
// connect later.
func (h *Hub) Broadcast(status interface{}) {
	data, err := json.Marshal(Outbound{Type: TypeStatus, Status: status})
	if err != nil {
		log.Printf("uiws: encode status: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// enqueueLocked queues data for c, dropping a client that cannot keep up.
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		c.close()
		h.log(diaglog.EventClientDisconnect, "slow consumer", nil)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	h.log(diaglog.EventClientConnect, "", map[string]interface{}{"remote": r.RemoteAddr})

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump decodes commands until the connection fails.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log(diaglog.EventClientDisconnect, "", nil)
	}()

	c.conn.SetReadLimit(maxScanMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd ipc.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(c, "", "malformed command: "+err.Error())
			continue
		}
		if cmd.Verb != ipc.CmdScan && len(data) > maxMessage {
			h.reply(c, string(cmd.Verb), fmt.Sprintf("%s: message exceeds %d bytes", ipc.ErrInvalidCommand, maxMessage))
			continue
		}
		if err := cmd.Validate(); err != nil {
			h.reply(c, cmd.String(), err.Error())
			continue
		}

		h.log(diaglog.EventCommand, "", map[string]interface{}{"command": string(cmd.Verb)})
		go func(cmd ipc.Command) {
			msg := ""
			if err := h.exec(h.ctx, cmd); err != nil {
				msg = err.Error()
			}
			h.reply(c, cmd.String(), msg)
		}(cmd)
	}
}

func (h *Hub) reply(c *client, command, errMsg string) {
	data, err := json.Marshal(Outbound{Type: TypeReply, Command: command, Error: errMsg})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, data)
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and cancels running commands.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
