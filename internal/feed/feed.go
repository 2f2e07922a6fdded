// Package feed broadcasts live translation captions to websocket
// subscribers, e.g. an OBS overlay or a companion web page.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/pipeline"
)

const (
	writeTimeout  = 5 * time.Second
	clientBacklog = 32
)

// caption is the wire format pushed to subscribers.
type caption struct {
	Speaker    string `json:"speaker"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	At         string `json:"at"`
}

// Server accepts websocket subscribers on /feed and fans every published
// translation out to all of them. Slow subscribers are disconnected rather
// than allowed to apply backpressure to the pipeline.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish implements pipeline.CaptionSink. It never blocks: captions to a
// subscriber with a full backlog are dropped for that subscriber.
func (s *Server) Publish(t pipeline.Translation) {
	msg, err := json.Marshal(caption{
		Speaker:    t.Speaker,
		SourceLang: t.SourceLang,
		TargetLang: t.TargetLang,
		Original:   t.Original,
		Translated: t.Translated,
		At:         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	s.mu.Unlock()
}

// SubscriberCount reports the number of connected feed clients.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and registers the subscriber.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("feed: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBacklog)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logging.Infow("feed: subscriber connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards inbound messages; the feed is one-way. It exists to
// observe the close handshake and pings.
func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer s.drop(c)
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		logging.Infow("feed: subscriber disconnected")
	}
}

// Listen serves the feed on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/feed", s)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.Infow("feed: listening", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
