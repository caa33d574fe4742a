package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	name string
	err  error
	got  []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.got = append(s.got, title+"|"+message)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventArbitrage}, discard)

	require.NoError(t, n.Notify(context.Background(), EventArbitrage, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), EventWatchdog, "t", "m"))

	assert.Equal(t, []string{"t|m"}, s.got)
}

func TestNotifier_OneFailureDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard)

	err := n.Notify(context.Background(), EventWatchdog, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.got, 1)
}

func TestTelegramSender_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithAPIBase(srv.URL)
	err := s.Send(context.Background(), "A<B", "<a href='https://x'>go</a>")
	require.NoError(t, err)

	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.Equal(t, "<b>A&lt;B</b>\n<a href='https://x'>go</a>", payload["text"])
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender("T", "1").WithAPIBase(srv.URL).Send(context.Background(), "", "hi")
	assert.ErrorContains(t, err, "unexpected status 400")
}

func TestDiscordSender_ConvertsLinks(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "Arb", "1) <a href='https://app/x'>Sell 1 USDC</a>")
	require.NoError(t, err)
	assert.Equal(t, "**Arb**\n1) [Sell 1 USDC](https://app/x)", payload["content"])
}
