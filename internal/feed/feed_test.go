package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discord-voice-interp/internal/pipeline"
)

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	s := NewServer()
	done := make(chan struct{})
	go func() {
		s.Publish(pipeline.Translation{Speaker: "alice", Translated: "hi"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestSubscriberReceivesCaptions(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the server to register the subscriber.
	require.Eventually(t, func() bool { return s.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	s.Publish(pipeline.Translation{
		Speaker:    "alice",
		SourceLang: "ja",
		TargetLang: "en",
		Original:   "おはよう",
		Translated: "good morning",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got caption
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "alice", got.Speaker)
	assert.Equal(t, "good morning", got.Translated)
	assert.Equal(t, "おはよう", got.Original)
	assert.NotEmpty(t, got.At)
}

func TestDisconnectedSubscriberIsDropped(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.SubscriberCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	// Publishing after the drop must not panic or block.
	s.Publish(pipeline.Translation{Speaker: "alice", Translated: "hi"})
}
