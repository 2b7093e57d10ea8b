// SPDX-License-Identifier: GPL-3.0-or-later

// Package outlet implements a websocket [mindbridge.StreamTransport].
//
// A [*Server] is an [http.Handler]. Every client first receives an info
// message describing the stream and then one sample message per push:
//
//	{"type":"info","info":{"name":"Mindwave",...}}
//	{"type":"sample","timestamp":1712345678.25,"data":[null,...,40,55]}
//
// Missing values are encoded as null. Pushing never blocks: each client
// has a bounded queue and samples are dropped for clients that cannot
// keep up.
package outlet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bassosimone/mindbridge"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Message types.
const (
	TypeInfo   = "info"
	TypeSample = "sample"
)

// Message is a message sent to clients.
type Message struct {
	// Type is [TypeInfo] or [TypeSample].
	Type string `json:"type"`

	// Info is set for [TypeInfo].
	Info *mindbridge.StreamInfo `json:"info,omitempty"`

	// Timestamp is the push time in seconds since the epoch for [TypeSample].
	Timestamp float64 `json:"timestamp,omitempty"`

	// Data contains the sample values for [TypeSample]. Missing values are nil.
	Data []*float64 `json:"data,omitempty"`
}

// Default settings used by [NewServer].
const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 5 * time.Second
)

// NewServer returns a new [*Server].
//
// The cfg argument contains the common configuration.
//
// The reg argument may be nil, in which case no metrics are collected.
//
// The logger argument is the [mindbridge.SLogger] to use for structured logging.
func NewServer(cfg *mindbridge.Config, reg prometheus.Registerer, logger mindbridge.SLogger) *Server {
	return &Server{
		Logger:       logger,
		QueueSize:    DefaultQueueSize,
		TimeNow:      cfg.TimeNow,
		WriteTimeout: DefaultWriteTimeout,
		clients:      make(map[*client]struct{}),
		metrics:      newMetrics(reg),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Server broadcasts stream samples to websocket clients.
//
// All exported fields are safe to modify after construction but before
// serving the first client.
type Server struct {
	// Logger is the [mindbridge.SLogger] to use.
	//
	// Set by [NewServer] to the user-provided logger.
	Logger mindbridge.SLogger

	// QueueSize is the number of messages buffered per client.
	//
	// Set by [NewServer] to [DefaultQueueSize].
	QueueSize int

	// TimeNow returns the current time.
	//
	// Set by [NewServer] from [mindbridge.Config.TimeNow].
	TimeNow func() time.Time

	// WriteTimeout bounds writing one message to a client.
	//
	// Set by [NewServer] to [DefaultWriteTimeout].
	WriteTimeout time.Duration

	clients  map[*client]struct{}
	info     []byte
	metrics  *metrics
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

var (
	_ http.Handler               = &Server{}
	_ mindbridge.StreamTransport = &Server{}
)

// client is one connected websocket peer.
type client struct {
	conn      *websocket.Conn
	queue     chan []byte
	closeonce sync.Once
}

// ServeHTTP implements [http.Handler] by upgrading the request to a websocket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("outletUpgradeFailed", slog.String("remoteAddr", r.RemoteAddr), slog.Any("err", err))
		return
	}

	c := &client{conn: conn, queue: make(chan []byte, max(s.QueueSize, 1))}
	s.mu.Lock()
	if s.info != nil {
		c.queue <- s.info
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.metrics.clientsChanged(count)
	s.Logger.Info("outletClientConnected", slog.String("remoteAddr", r.RemoteAddr), slog.Int("clients", count))

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop owns writing to the client connection.
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for message := range c.queue {
		c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			s.Logger.Debug("outletWriteFailed", slog.Any("err", err))
			s.remove(c)
			for range c.queue {
				// drain until remove closes the queue
			}
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
}

// readLoop consumes control frames until the client goes away.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

// remove unregisters c and closes its queue, once.
func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, found := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	if found {
		c.closeonce.Do(func() { close(c.queue) })
	}
	s.mu.Unlock()

	if found {
		s.metrics.clientsChanged(count)
		s.Logger.Info("outletClientDisconnected", slog.Int("clients", count))
	}
}

// broadcast must be called with the mutex held.
func (s *Server) broadcast(message []byte) {
	for c := range s.clients {
		select {
		case c.queue <- message:
		default:
			s.metrics.sampleDropped()
		}
	}
}

// Open implements [mindbridge.StreamTransport].
//
// The info message is sent to the connected clients and to every client
// connecting later.
func (s *Server) Open(info *mindbridge.StreamInfo) (mindbridge.StreamOutlet, error) {
	message, err := json.Marshal(&Message{Type: TypeInfo, Info: info})
	if err != nil {
		return nil, fmt.Errorf("outlet: cannot marshal stream info: %w", err)
	}
	s.mu.Lock()
	s.info = message
	s.broadcast(message)
	s.mu.Unlock()
	s.Logger.Info("outletOpened", slog.String("name", info.Name), slog.Int("channelCount", info.ChannelCount))
	return &streamOutlet{server: s}, nil
}

// streamOutlet implements [mindbridge.StreamOutlet].
type streamOutlet struct {
	server *Server
}

// PushSample implements [mindbridge.StreamOutlet].
func (o *streamOutlet) PushSample(values []float64) error {
	s := o.server
	message, err := json.Marshal(&Message{
		Type:      TypeSample,
		Timestamp: float64(s.TimeNow().UnixMicro()) / 1e6,
		Data:      nullable(values),
	})
	if err != nil {
		return fmt.Errorf("outlet: cannot marshal sample: %w", err)
	}
	s.mu.Lock()
	s.broadcast(message)
	s.mu.Unlock()
	s.metrics.samplePushed()
	return nil
}

// Close implements [mindbridge.StreamOutlet] by disconnecting all clients.
func (o *streamOutlet) Close() error {
	s := o.server
	s.mu.Lock()
	s.info = nil
	for c := range s.clients {
		delete(s.clients, c)
		c.closeonce.Do(func() { close(c.queue) })
	}
	s.mu.Unlock()
	s.metrics.clientsChanged(0)
	s.Logger.Info("outletClosed")
	return nil
}

func nullable(values []float64) []*float64 {
	data := make([]*float64, len(values))
	for idx := range values {
		if !mindbridge.IsMissing(values[idx]) {
			data[idx] = &values[idx]
		}
	}
	return data
}
