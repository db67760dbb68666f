package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

const connectEvent = "PB_CONNECT"

// Event is a record change pushed over the realtime channel.
type Event struct {
	Action string          `json:"action"`
	Record json.RawMessage `json:"record"`
}

// Decode unmarshals the event record into out.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Record, out)
}

// Realtime consumes /api/realtime. The stream is opened on the first
// Subscribe and closed when the last subscription goes away.
type Realtime struct {
	client *Client
	logger *slog.Logger
	clock  clockwork.Clock
	retry  time.Duration

	mu       sync.Mutex
	handlers map[string]map[int]func(Event)
	nextID   int
	clientID string
	gen      int
	stop     context.CancelFunc
	done     chan struct{}
}

// RealtimeOption configures a Realtime.
type RealtimeOption func(*Realtime)

// WithRealtimeLogger sets the logger for connection events.
func WithRealtimeLogger(l *slog.Logger) RealtimeOption {
	return func(r *Realtime) { r.logger = l }
}

// WithRealtimeClock replaces the clock used for reconnect delays.
func WithRealtimeClock(c clockwork.Clock) RealtimeOption {
	return func(r *Realtime) { r.clock = c }
}

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) RealtimeOption {
	return func(r *Realtime) { r.retry = d }
}

func NewRealtime(client *Client, opts ...RealtimeOption) *Realtime {
	r := &Realtime{
		client:   client,
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		retry:    3 * time.Second,
		handlers: make(map[string]map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SubscribeCollection subscribes to every record change of a collection.
func (r *Realtime) SubscribeCollection(ctx context.Context, collection string, fn func(Event)) (func(), error) {
	return r.Subscribe(ctx, collection+"/*", fn)
}

// Subscribe registers fn for topic and returns a function that removes it.
func (r *Realtime) Subscribe(ctx context.Context, topic string, fn func(Event)) (func(), error) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	_, known := r.handlers[topic]
	if !known {
		r.handlers[topic] = make(map[int]func(Event))
	}
	r.handlers[topic][id] = fn
	clientID := r.clientID
	if r.stop == nil {
		r.startLocked()
	}
	r.mu.Unlock()

	if !known && clientID != "" {
		if err := r.submit(ctx, clientID); err != nil {
			r.remove(topic, id)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(topic, id) })
	}, nil
}

// Close drops every subscription and waits for the stream to stop. It must
// not be called from an event handler.
func (r *Realtime) Close() {
	r.mu.Lock()
	r.handlers = make(map[string]map[int]func(Event))
	stop, done := r.stop, r.done
	r.stop, r.done, r.clientID = nil, nil, ""
	r.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

// ClientID returns the id assigned by the last PB_CONNECT, "" while
// disconnected.
func (r *Realtime) ClientID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientID
}

func (r *Realtime) remove(topic string, id int) {
	r.mu.Lock()
	subs, ok := r.handlers[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(subs, id)
	if len(subs) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.handlers, topic)
	if len(r.handlers) == 0 {
		// not waiting for the stream goroutine: remove may run inside a handler
		stop := r.stop
		r.stop, r.done, r.clientID = nil, nil, ""
		r.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	clientID := r.clientID
	r.mu.Unlock()

	if clientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.submit(ctx, clientID); err != nil {
			r.logger.Warn("realtime unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (r *Realtime) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.gen++
	r.stop, r.done = cancel, done
	gen := r.gen
	go func() {
		defer close(done)
		r.run(ctx, gen)
	}()
}

func (r *Realtime) run(ctx context.Context, gen int) {
	for {
		err := r.listen(ctx, gen)
		r.setClientID(gen, "")
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("realtime stream closed, reconnecting", "error", err, "delay", r.retry)
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.retry):
		}
	}
}

func (r *Realtime) listen(ctx context.Context, gen int) error {
	stream := sse.NewClient(r.client.baseURL+"/api/realtime", sse.ClientMaxBufferSize(4<<20))
	stream.Connection = r.client.stream
	stream.Headers["Cache-Control"] = "no-store"
	// run owns reconnects so the delay follows r.clock and a new PB_CONNECT
	// resubmits the topics.
	stream.ReconnectStrategy = &backoff.StopBackOff{}

	err := stream.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		r.dispatch(ctx, gen, string(msg.Event), msg.Data)
	})
	if err != nil {
		return err
	}
	return errors.New("realtime stream ended")
}

func (r *Realtime) dispatch(ctx context.Context, gen int, name string, data []byte) {
	if name == connectEvent {
		var hello struct {
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal(data, &hello); err != nil {
			r.logger.Warn("realtime connect payload", "error", err)
			return
		}
		r.setClientID(gen, hello.ClientID)
		if err := r.submit(ctx, hello.ClientID); err != nil {
			r.logger.Warn("realtime subscribe failed", "error", err)
		}
		return
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warn("realtime event payload", "topic", name, "error", err)
		return
	}
	for _, fn := range r.handlersFor(name) {
		fn(ev)
	}
}

func (r *Realtime) submit(ctx context.Context, clientID string) error {
	body := map[string]any{
		"clientId":      clientID,
		"subscriptions": r.topics(),
	}
	return r.client.send(ctx, http.MethodPost, "/api/realtime", nil, body, nil)
}

func (r *Realtime) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (r *Realtime) handlersFor(topic string) []func(Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[topic]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, subs[id])
	}
	return out
}

func (r *Realtime) setClientID(gen int, id string) {
	r.mu.Lock()
	if r.gen == gen && r.stop != nil {
		r.clientID = id
	}
	r.mu.Unlock()
}
