// Package telemetry mirrors the published state frames to websocket clients
// as JSON, for dashboards and debugging. The step path only hands frames to
// the hub through a non-blocking observer; encoding and fan-out run on the
// hub's own goroutines and drop frames rather than queue them.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/golems/hubo-ach-sim/bridge"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	clientBuf  = 16
)

// Frame is the JSON form of one state frame. Only named joints are listed.
type Frame struct {
	Seq    uint64                       `json:"seq"`
	Time   float64                      `json:"time"`
	Joints map[string]bridge.JointState `json:"joints"`
}

// Hub fans state frames out to websocket clients.
type Hub struct {
	every    uint64
	names    [bridge.JointCount]string
	in       chan bridge.StateMessage
	observed uint64

	mu       sync.Mutex
	clients  map[int64]*client
	nextID   int64
	upgrader websocket.Upgrader

	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewHub mirrors every Nth observed frame (every < 1 means every frame).
// Joint names come from catalog.
func NewHub(catalog *bridge.Catalog, every int) *Hub {
	if every < 1 {
		every = 1
	}
	h := &Hub{
		every:   uint64(every),
		in:      make(chan bridge.StateMessage, 4),
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for i := range catalog.Joints {
		h.names[i] = catalog.Joints[i].Name
	}
	return h
}

// ObserveState implements bridge.StateObserver. It never blocks; when the
// hub is behind the frame is dropped.
func (h *Hub) ObserveState(msg *bridge.StateMessage) {
	h.observed++
	if (h.observed-1)%h.every != 0 {
		return
	}
	select {
	case h.in <- *msg:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns how many frames were discarded because the hub or a
// client could not keep up.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run encodes observed frames and broadcasts them until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.in:
			data, err := json.Marshal(h.frame(&msg))
			if err != nil {
				logrus.Warnf("telemetry: encoding frame: %v", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) frame(msg *bridge.StateMessage) Frame {
	f := Frame{
		Seq:    h.seq.Add(1),
		Time:   msg.Time,
		Joints: make(map[string]bridge.JointState, bridge.JointCount),
	}
	for i, name := range h.names {
		if name != "" {
			f.Joints[name] = msg.Joint[i]
		}
	}
	return f
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.send(data)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("telemetry: upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.nextID++
	c := &client{
		id:     h.nextID,
		hub:    h,
		conn:   conn,
		sendCh: make(chan []byte, clientBuf),
		done:   make(chan struct{}),
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	logrus.Debugf("telemetry: client %d connected from %s", c.id, r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// ListenAndServe serves the hub at /state on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h *Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/state", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logrus.Infof("telemetry: serving ws://%s/state", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type client struct {
	id     int64
	hub    *Hub
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) send(data []byte) {
	select {
	case c.sendCh <- data:
	case <-c.done:
	default:
		c.hub.dropped.Add(1)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client messages and notices disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("telemetry: client %d read error: %v", c.id, err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.Debugf("telemetry: client %d write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
