package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gastrochef/internal/auth"
	"gastrochef/internal/game"
	"gastrochef/internal/protocol"
)

// Server upgrades authenticated HTTP requests to the real-time order channel
// and bridges frames to the session engine.
type Server struct {
	engine *game.Engine
	auth   *auth.TokenAuthority
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(engine *game.Engine, authority *auth.TokenAuthority, logger *log.Logger) *Server {
	return &Server{
		engine: engine,
		auth:   authority,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		claims, err := s.auth.Verify(token, time.Now())
		if err != nil {
			http.Error(rw, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		wc := newWSConn(conn)
		go wc.writeLoop()

		sess, err := s.engine.Admit(claims.UserID, claims.RestaurantName, wc)
		if err != nil {
			s.log.Printf("ws: admit %s: %v", claims.UserID, err)
			wc.Close()
			return
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeServeOrder:
				sess.Serve()
			case protocol.TypePauseOrders:
				sess.Pause()
			case protocol.TypeResumeOrders:
				sess.Resume()
			}
		}

		// Cleanup.
		s.engine.Release(sess)
		wc.Close()
	}
}

// wsConn is the engine-facing side of one connection: a bounded outbound
// queue drained by a single writer goroutine. Send never blocks the session
// loop; a client too slow to drain its queue loses messages rather than
// stalling the engine.
type wsConn struct {
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn:   conn,
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	case <-c.closed:
	default:
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.Close()
				return
			}
		}
	}
}
