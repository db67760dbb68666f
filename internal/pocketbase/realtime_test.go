package pocketbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseServer struct {
	subscribed chan []string
	send       chan string
	drop       chan struct{}
	connects   atomic.Int32
}

func newSSEServer() *sseServer {
	return &sseServer{
		subscribed: make(chan []string, 4),
		send:       make(chan string, 4),
		drop:       make(chan struct{}),
	}
}

func (s *sseServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var body struct {
			ClientID      string   `json:"clientId"`
			Subscriptions []string `json:"subscriptions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ClientID != "client-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		s.subscribed <- body.Subscriptions
		return
	}

	s.connects.Add(1)
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, "id:client-1\nevent:PB_CONNECT\ndata:{\"clientId\":\"client-1\"}\n\n")
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.drop:
			return
		case msg := <-s.send:
			fmt.Fprint(w, msg)
			flusher.Flush()
		}
	}
}

func TestRealtimeDispatchesTopicEvents(t *testing.T) {
	pb := newSSEServer()
	srv := httptest.NewServer(pb)
	defer srv.Close()

	rt := NewRealtime(New(srv.URL))
	defer rt.Close()

	events := make(chan Event, 1)
	unsubscribe, err := rt.SubscribeCollection(context.Background(), "submissions", func(e Event) { events <- e })
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case subs := <-pb.subscribed:
		assert.Equal(t, []string{"submissions/*"}, subs)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriptions were not posted")
	}
	assert.Equal(t, "client-1", rt.ClientID())

	pb.send <- ": ping\n\nevent:quizzes/*\ndata:{\"action\":\"update\",\"record\":{\"id\":\"z\"}}\n\n"
	pb.send <- "event:submissions/*\ndata:{\"action\":\"create\",\"record\":{\"id\":\"s1\",\"user\":\"u1\"}}\n\n"

	select {
	case e := <-events:
		assert.Equal(t, "create", e.Action)
		var rec struct {
			ID   string `json:"id"`
			User string `json:"user"`
		}
		require.NoError(t, e.Decode(&rec))
		assert.Equal(t, "u1", rec.User)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestRealtimeResubmitsOnNewTopic(t *testing.T) {
	pb := newSSEServer()
	srv := httptest.NewServer(pb)
	defer srv.Close()

	rt := NewRealtime(New(srv.URL))
	defer rt.Close()

	_, err := rt.Subscribe(context.Background(), "submissions/*", func(Event) {})
	require.NoError(t, err)
	<-pb.subscribed

	unsubscribe, err := rt.Subscribe(context.Background(), "quizzes/*", func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, []string{"quizzes/*", "submissions/*"}, <-pb.subscribed)

	unsubscribe()
	assert.Equal(t, []string{"submissions/*"}, <-pb.subscribed)
}

func TestRealtimeReconnectsAfterStreamEnds(t *testing.T) {
	pb := newSSEServer()
	srv := httptest.NewServer(pb)
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	rt := NewRealtime(New(srv.URL), WithRealtimeClock(clock), WithReconnectDelay(5*time.Second))
	defer rt.Close()

	events := make(chan Event, 1)
	_, err := rt.SubscribeCollection(context.Background(), "submissions", func(e Event) { events <- e })
	require.NoError(t, err)
	assert.Equal(t, []string{"submissions/*"}, <-pb.subscribed)

	pb.drop <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), pb.connects.Load())
	clock.Advance(5 * time.Second)

	select {
	case subs := <-pb.subscribed:
		assert.Equal(t, []string{"submissions/*"}, subs)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriptions were not posted after reconnect")
	}
	assert.Equal(t, int32(2), pb.connects.Load())

	pb.send <- "event:submissions/*\ndata:{\"action\":\"delete\",\n"
	pb.send <- "data:\"record\":{\"id\":\"s9\"}}\n\n"

	select {
	case e := <-events:
		assert.Equal(t, "delete", e.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered after reconnect")
	}
}
