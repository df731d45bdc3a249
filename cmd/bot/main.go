package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"skirmish.io/internal/protocol"
)

func main() {
	var (
		addr      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		session   = flag.String("session", "", "session id or name (empty: default)")
		name      = flag.String("name", "bot", "player name prefix")
		count     = flag.Int("count", 1, "number of bots to connect")
		codecName = flag.String("codec", "msgpack", "wire codec: msgpack or json")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	codec, err := protocol.CodecByName(*codecName)
	if err != nil {
		logger.Fatalf("codec: %v", err)
	}
	u, err := url.Parse(*addr)
	if err != nil {
		logger.Fatalf("url: %v", err)
	}
	if *session != "" {
		q := u.Query()
		q.Set("session", *session)
		u.RawQuery = q.Encode()
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		close(stop)
	}()

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := &bot{
				name:  fmt.Sprintf("%s-%d", *name, i),
				codec: codec,
				log:   logger,
				rng:   rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))),
			}
			if err := b.run(u.String(), stop); err != nil {
				logger.Printf("%s: %v", b.name, err)
			}
		}(i)
	}
	wg.Wait()
}

type bot struct {
	name  string
	codec protocol.Codec
	log   *log.Logger
	rng   *rand.Rand

	id     uint32
	pos    mgl64.Vec2
	others map[uint32]mgl64.Vec2
	seq    uint32
	input  protocol.InputMsg
}

func (b *bot) run(addr string, stop <-chan struct{}) error {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	go func() {
		<-stop
		_ = conn.Close()
	}()

	if err := b.send(conn, &protocol.HelloMsg{ProtocolVersion: protocol.Version, Name: b.name}); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	b.others = map[uint32]mgl64.Vec2{}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		pkts, err := b.codec.Decode(msg)
		if err != nil {
			continue
		}
		for _, p := range pkts {
			switch m := p.(type) {
			case *protocol.JoinedMsg:
				b.id = m.PlayerID
				b.log.Printf("%s JOINED session=%s player_id=%d tick_ms=%d", b.name, m.SessionID, m.PlayerID, m.TickMs)
			case *protocol.UpdateMsg:
				b.observe(m)
				if err := b.act(conn, m.Tick); err != nil {
					return err
				}
			case *protocol.KillMsg:
				if m.KilledID == b.id {
					b.log.Printf("%s killed by %d", b.name, m.KillerID)
				}
			case *protocol.DisconnectMsg:
				return fmt.Errorf("disconnected: %s %s", m.Code, m.Reason)
			}
		}
	}
}

func (b *bot) observe(u *protocol.UpdateMsg) {
	for _, o := range u.Full {
		b.track(o.ID, o.Pos, o.Kind == "player" && !o.Dead)
	}
	for _, o := range u.Partial {
		if _, ok := b.others[o.ID]; ok || o.ID == b.id {
			b.track(o.ID, o.Pos, true)
		}
	}
	for _, id := range u.Gone {
		delete(b.others, id)
	}
	for _, id := range u.DeletedIDs {
		delete(b.others, id)
	}
}

func (b *bot) track(id uint32, pos [2]float64, player bool) {
	if id == b.id {
		b.pos = mgl64.Vec2{pos[0], pos[1]}
		return
	}
	if player {
		b.others[id] = mgl64.Vec2{pos[0], pos[1]}
	} else {
		delete(b.others, id)
	}
}

// act chases the nearest visible player and swings when close; otherwise it wanders.
func (b *bot) act(conn *websocket.Conn, tick uint64) error {
	b.seq++
	in := protocol.InputMsg{Seq: b.seq}

	target, dist := b.nearest()
	switch {
	case dist < 2:
		d := target.Sub(b.pos)
		in.Facing = [2]float64{d[0], d[1]}
		in.ShootStart = true
	case dist < math.Inf(1):
		d := target.Sub(b.pos)
		in.Facing = [2]float64{d[0], d[1]}
		in.Right, in.Left = d[0] > 0.5, d[0] < -0.5
		in.Down, in.Up = d[1] > 0.5, d[1] < -0.5
	default:
		if tick%60 != 0 {
			in = b.input
			in.Seq = b.seq
			in.ShootStart = false
			in.Emote = ""
			break
		}
		in.Up, in.Down = b.rng.Intn(3) == 0, b.rng.Intn(3) == 0
		in.Left, in.Right = b.rng.Intn(3) == 0, b.rng.Intn(3) == 0
		a := b.rng.Float64() * 2 * math.Pi
		in.Facing = [2]float64{math.Cos(a), math.Sin(a)}
		if b.rng.Intn(10) == 0 {
			in.Emote = "wave"
		}
	}
	b.input = in
	return b.send(conn, &in)
}

func (b *bot) nearest() (mgl64.Vec2, float64) {
	best, bestDist := mgl64.Vec2{}, math.Inf(1)
	for _, pos := range b.others {
		if d := pos.Sub(b.pos).Len(); d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best, bestDist
}

func (b *bot) send(conn *websocket.Conn, p protocol.Packet) error {
	msg, err := b.codec.Encode(p)
	if err != nil {
		return err
	}
	typ := websocket.BinaryMessage
	if b.codec.Name() == "json" {
		typ = websocket.TextMessage
	}
	return conn.WriteMessage(typ, msg)
}
