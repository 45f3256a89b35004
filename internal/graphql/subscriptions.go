package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// graphql-ws (subscriptions-transport-ws) protocol.
const (
	Subprotocol = "graphql-ws"

	msgConnectionInit  = "connection_init"
	msgConnectionAck   = "connection_ack"
	msgConnectionError = "connection_error"
	msgKeepAlive       = "ka"
	msgStart           = "start"
	msgStop            = "stop"
	msgData            = "data"
	msgError           = "error"
	msgComplete        = "complete"
)

const (
	readLimit    = 1 << 20
	writeTimeout = 5 * time.Second
	ackTimeout   = 10 * time.Second
)

var ErrConnectionRejected = errors.New("subscription channel rejected")

type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler receives one notification: its data, or the error it carried.
// Handlers run on the channel's read goroutine, one at a time, in arrival order.
type Handler func(data json.RawMessage, err error)

type Subscription struct {
	id      string
	seq     int
	req     Request
	handler Handler
	owner   *Subscriptions
	once    sync.Once
	done    chan struct{}
}

func (s *Subscription) ID() string { return s.id }

// Done is closed once the subscription is over, whether it was closed or the
// server completed it.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.end(true) }

func (s *Subscription) end(stop bool) {
	s.once.Do(func() {
		s.owner.remove(s.id, stop)
		close(s.done)
	})
}

type Subscriptions struct {
	url   string
	delay time.Duration
	log   *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]*Subscription
	seq  int
}

func newSubscriptions(url string) *Subscriptions {
	return &Subscriptions{
		url:   url,
		delay: 2 * time.Second,
		log:   zap.NewNop(),
		subs:  make(map[string]*Subscription),
	}
}

func (s *Subscriptions) add(ctx context.Context, req Request, h Handler) (*Subscription, error) {
	if h == nil {
		return nil, errors.New("nil handler")
	}

	s.mu.Lock()
	s.seq++
	sub := &Subscription{id: strconv.Itoa(s.seq), seq: s.seq, req: req, handler: h, owner: s, done: make(chan struct{})}
	s.subs[sub.id] = sub
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := s.send(ctx, conn, startMessage(sub)); err != nil {
			// Stays registered; the next session starts it.
			s.log.Warn("start deferred to reconnect", zap.String("id", sub.id), zap.Error(err))
		}
	}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (s *Subscriptions) remove(id string, stop bool) {
	s.mu.Lock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	conn := s.conn
	s.mu.Unlock()

	if ok && stop && conn != nil {
		if err := s.send(context.Background(), conn, message{ID: id, Type: msgStop}); err != nil {
			s.log.Debug("stop not delivered", zap.String("id", id), zap.Error(err))
		}
	}
}

func (s *Subscriptions) lookup(id string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

// Active returns how many subscriptions are registered.
func (s *Subscriptions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subscriptions) send(ctx context.Context, conn *websocket.Conn, msg message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func startMessage(sub *Subscription) message {
	payload, _ := json.Marshal(sub.req)
	return message{ID: sub.id, Type: msgStart, Payload: payload}
}

func (s *Subscriptions) run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("subscription channel lost, reconnecting",
			zap.String("url", s.url),
			zap.Duration("delay", s.delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.delay):
		}
	}
}

func (s *Subscriptions) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	if err := s.send(ctx, conn, message{Type: msgConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		return fmt.Errorf("connection_init: %w", err)
	}
	if err := awaitAck(ctx, conn); err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	pending := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		pending = append(pending, sub)
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	slices.SortFunc(pending, func(a, b *Subscription) int { return a.seq - b.seq })
	s.log.Info("subscription channel connected", zap.String("url", s.url), zap.Int("subscriptions", len(pending)))
	for _, sub := range pending {
		if err := s.send(ctx, conn, startMessage(sub)); err != nil {
			return fmt.Errorf("start %s: %w", sub.id, err)
		}
	}

	for {
		var msg message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.dispatch(msg)
	}
}

func awaitAck(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	for {
		var msg message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("await connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgConnectionError:
			return fmt.Errorf("%w: %s", ErrConnectionRejected, decodeError(msg.Payload))
		}
	}
}

func (s *Subscriptions) dispatch(msg message) {
	switch msg.Type {
	case msgKeepAlive, msgConnectionAck:
		return

	case msgConnectionError:
		s.log.Warn("connection error", zap.Error(decodeError(msg.Payload)))

	case msgData:
		sub := s.lookup(msg.ID)
		if sub == nil {
			return
		}
		var r response
		if err := json.Unmarshal(msg.Payload, &r); err != nil {
			sub.handler(nil, fmt.Errorf("decode payload: %w", err))
			return
		}
		if len(r.Errors) > 0 {
			sub.handler(nil, r.Errors)
			return
		}
		sub.handler(r.Data, nil)

	case msgError:
		if sub := s.lookup(msg.ID); sub != nil {
			sub.handler(nil, decodeError(msg.Payload))
		}

	case msgComplete:
		// Server ended the stream; nothing to stop.
		if sub := s.lookup(msg.ID); sub != nil {
			sub.end(false)
		}

	default:
		s.log.Debug("unknown message", zap.String("type", msg.Type))
	}
}

// decodeError reads an error payload, which servers send either as a list or
// as a single object.
func decodeError(payload json.RawMessage) error {
	var list Errors
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		return list
	}
	var single Error
	if err := json.Unmarshal(payload, &single); err == nil && single.Message != "" {
		return Errors{single}
	}
	return Errors{{Message: string(payload)}}
}
