package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/game"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrClosed        = errors.New("connection closed")
)

const (
	sendQueueSize = 64
	joinTimeout   = 3 * time.Second
	writeTimeout  = 5 * time.Second
	readTimeout   = 60 * time.Second
)

// Sessions resolves the session a client asked for.
type Sessions interface {
	Lookup(key string) (*game.Game, error)
}

type Server struct {
	sessions Sessions
	codec    protocol.Codec
	log      *log.Logger

	joinTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewServer(sessions Sessions, codec protocol.Codec, logger *log.Logger) *Server {
	if codec == nil {
		codec = protocol.MsgpackCodec{}
	}
	return &Server{
		sessions: sessions,
		codec:    codec,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},

		joinTimeout: joinTimeout,
	}
}

func (s *Server) messageType() int {
	if s.codec.Name() == "json" {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

// Handler upgrades the request and attaches the client to the session named by
// the "session" query parameter (id or name; empty selects the default).
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		hello, ok := s.handshake(ws)
		if !ok {
			return
		}
		g, err := s.sessions.Lookup(r.URL.Query().Get("session"))
		if err != nil {
			s.reject(ws, protocol.ErrSessionNotFound, err.Error())
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := newClient()
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(ctx, ws, c, g)
		}()

		joinCtx, joinCancel := context.WithTimeout(ctx, s.joinTimeout)
		playerID, err := g.Join(joinCtx, hello.Name, c)
		joinCancel()
		if err != nil {
			cancel()
			<-writerDone
			// A timed-out join may still be admitted; a closed client makes the
			// session drop it on its first send.
			c.Close()
			s.reject(ws, joinErrorCode(err), err.Error())
			return
		}

		s.readLoop(ctx, ws, g, playerID)

		g.Leave(playerID)
		c.Close()
		<-writerDone
	}
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrSessionFull):
		return protocol.ErrSessionFull
	case errors.Is(err, game.ErrSessionEnded):
		return protocol.ErrSessionEnded
	}
	return protocol.ErrInternal
}

func (s *Server) handshake(ws *websocket.Conn) (*protocol.HelloMsg, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil, false
	}
	pkts, err := s.codec.Decode(msg)
	if err != nil || len(pkts) == 0 {
		s.reject(ws, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil, false
	}
	hello, ok := pkts[0].(*protocol.HelloMsg)
	if !ok {
		s.reject(ws, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(ws, protocol.ErrProtoVersion, "bad protocol_version")
		return nil, false
	}
	return hello, true
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, g *game.Game, playerID game.ObjectID) {
	for ctx.Err() == nil {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		pkts, err := s.codec.Decode(msg)
		if err != nil && s.log != nil {
			s.log.Printf("player %d: bad frame: %v", playerID, err)
		}
		for _, p := range pkts {
			in, ok := p.(*protocol.InputMsg)
			if !ok {
				continue
			}
			g.Input(game.InputEnvelope{PlayerID: playerID, Input: *in})
		}
	}
}

// writeLoop owns all data writes after the handshake. When the session closes the
// client, it flushes, says why and closes the socket so the reader unblocks.
func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, c *client, g *game.Game) {
	defer func() {
		if ctx.Err() == nil {
			_ = ws.UnderlyingConn().Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			if err := s.write(ws, b); err != nil {
				return
			}
		case <-c.closed:
			if err := s.drain(ws, c); err != nil {
				return
			}
			switch {
			case c.overflow.Load():
				s.reject(ws, protocol.ErrSlowConsumer, "send queue full")
			case isDone(g):
				s.reject(ws, protocol.ErrSessionEnded, "session ended")
			default:
				_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			}
			return
		}
	}
}

func (s *Server) drain(ws *websocket.Conn, c *client) error {
	for {
		select {
		case b := <-c.out:
			if err := s.write(ws, b); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func isDone(g *game.Game) bool {
	select {
	case <-g.Done():
		return true
	default:
		return false
	}
}

func (s *Server) write(ws *websocket.Conn, b []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(s.messageType(), b)
}

// reject sends a DISCONNECT packet followed by a close frame.
func (s *Server) reject(ws *websocket.Conn, code, reason string) {
	if b, err := s.codec.Encode(&protocol.DisconnectMsg{Code: code, Reason: reason}); err == nil {
		_ = s.write(ws, b)
	}
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

// client is the session-facing side of one websocket. Send never blocks.
type client struct {
	out      chan []byte
	closed   chan struct{}
	once     sync.Once
	overflow atomic.Bool
}

func newClient() *client {
	return &client{
		out:    make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

func (c *client) Send(b []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	default:
		c.overflow.Store(true)
		return ErrSendQueueFull
	}
}

func (c *client) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
