// Package streams keeps one live subscription per key (the match stream, one
// match-games stream per match, one side stream per side).
package streams

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// StartFunc opens a stream that lives until ctx is cancelled. The returned
// channel, when not nil, closes if the stream ends on its own; the key is then
// forgotten so a later Ensure opens it again.
type StartFunc func(ctx context.Context) (<-chan struct{}, error)

type RegistryMsg interface{ isRegistryMsg() }

// Ensure starts the stream for Key unless one is already running. Reply, when
// set, receives whether a new stream was started.
type Ensure struct {
	Key   string
	Start StartFunc
	Reply chan bool
}

type Remove struct {
	Key string
}

type Keys struct {
	Reply chan []string
}

type ShutdownRegistry struct{}

// ended reports that the stream started as gen under key finished by itself.
type ended struct {
	key string
	gen int
}

func (Ensure) isRegistryMsg()           {}
func (Remove) isRegistryMsg()           {}
func (Keys) isRegistryMsg()             {}
func (ShutdownRegistry) isRegistryMsg() {}
func (ended) isRegistryMsg()            {}

type stream struct {
	cancel context.CancelFunc
	gen    int
}

type Registry struct {
	inbox   chan RegistryMsg
	streams map[string]stream
	gen     int
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRegistry(parent context.Context, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:   make(chan RegistryMsg, 64),
		streams: make(map[string]stream),
		log:     log.Named("streams"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- RegistryMsg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Ensure:
				started := false
				if _, ok := r.streams[msg.Key]; !ok {
					started = r.start(msg.Key, msg.Start)
				}
				if msg.Reply != nil {
					msg.Reply <- started
				}

			case Remove:
				if st, ok := r.streams[msg.Key]; ok {
					st.cancel()
					delete(r.streams, msg.Key)
					r.log.Debug("stream closed", zap.String("key", msg.Key))
				}

			case ended:
				// A Remove and a re-Ensure may have replaced it since.
				if st, ok := r.streams[msg.key]; ok && st.gen == msg.gen {
					st.cancel()
					delete(r.streams, msg.key)
					r.log.Info("stream ended by server", zap.String("key", msg.key))
				}

			case Keys:
				keys := make([]string, 0, len(r.streams))
				for k := range r.streams {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				msg.Reply <- keys

			case ShutdownRegistry:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) start(key string, start StartFunc) bool {
	ctx, cancel := context.WithCancel(r.ctx)
	done, err := start(ctx)
	if err != nil {
		// Not registered, so a later Ensure retries.
		cancel()
		r.log.Warn("stream failed to start", zap.String("key", key), zap.Error(err))
		return false
	}
	r.gen++
	r.streams[key] = stream{cancel: cancel, gen: r.gen}
	r.log.Debug("stream opened", zap.String("key", key))
	if done != nil {
		go r.watch(ctx, ended{key: key, gen: r.gen}, done)
	}
	return true
}

func (r *Registry) watch(ctx context.Context, msg ended, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	select {
	case r.inbox <- msg:
	case <-r.ctx.Done():
	}
}

func (r *Registry) shutdown() {
	for key, st := range r.streams {
		st.cancel()
		delete(r.streams, key)
	}
	r.cancel()
}
