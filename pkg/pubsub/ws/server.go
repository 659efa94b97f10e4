// Package ws provides a websocket-based pubsub transport: a relay
// Server that fans frames out between connected contexts and a client
// Provider implementing the pubsub interfaces over one connection.
// It exists for deployments where a broker like NATS is unavailable,
// e.g. browser-adjacent or edge contexts.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"livefind/pkg/pubsub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from a peer.
	maxFrameSize = 1 << 20
)

// frame is the wire format relayed between contexts.
type frame struct {
	Origin  string `json:"origin"`
	Subject string `json:"subject"`
	Data    []byte `json:"data"`
}

// handshake carries the client's connection parameters, decoded from
// the upgrade request's query string.
type handshake struct {
	Origin string `schema:"origin"`
	Filter string `schema:"filter"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server is a relay hub: every frame received from one connected context
// is forwarded to all other contexts whose filter matches the subject.
// Frames are never echoed back to their sender.
type Server struct {
	decoder *schema.Decoder

	mu     sync.RWMutex
	peers  map[*peer]bool
	closed bool
}

type peer struct {
	origin string
	filter string
	conn   *websocket.Conn
	send   chan frame
}

// NewServer creates a relay server. Register it as an http.Handler.
func NewServer() *Server {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	return &Server{
		decoder: dec,
		peers:   make(map[*peer]bool),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var hs handshake
	if err := s.decoder.Decode(&hs, r.URL.Query()); err != nil {
		http.Error(w, "bad handshake parameters", http.StatusBadRequest)
		return
	}
	if hs.Filter == "" {
		hs.Filter = ">"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	p := &peer{
		origin: hs.Origin,
		filter: hs.Filter,
		conn:   conn,
		send:   make(chan frame, 64),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.peers[p] = true
	s.mu.Unlock()

	slog.Debug("relay peer connected", "origin", hs.Origin, "filter", hs.Filter)

	go s.writePump(p)
	go s.readPump(p)
}

// readPump pumps frames from one peer to all matching peers. There is at
// most one reader per connection.
func (s *Server) readPump(p *peer) {
	defer func() {
		s.drop(p)
		p.conn.Close()
	}()
	p.conn.SetReadLimit(maxFrameSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("relay peer connection closed", "origin", p.origin, "err", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			slog.Warn("dropping malformed relay frame", "origin", p.origin, "err", err)
			continue
		}
		if f.Origin == "" {
			f.Origin = p.origin
		}
		s.broadcast(p, f)
	}
}

// broadcast forwards a frame to every peer except its sender.
func (s *Server) broadcast(sender *peer, f frame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		if p == sender {
			continue
		}
		if !pubsub.MatchSubject(p.filter, f.Subject) {
			continue
		}
		select {
		case p.send <- f:
		default:
			slog.Warn("relay peer send buffer full, dropping frame",
				"origin", p.origin, "subject", f.Subject)
		}
	}
}

// writePump pumps frames to one peer and keeps the connection alive.
func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case f, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peers[p] {
		delete(s.peers, p)
		close(p.send)
	}
}

// Close disconnects every peer. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for p := range s.peers {
		delete(s.peers, p)
		close(p.send)
		p.conn.Close()
	}
	return nil
}
