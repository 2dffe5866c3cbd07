package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/tracker/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendInvitationViaResend(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(config.EmailConfig{FromEmail: "t@example.com", ResendAPIKey: "key"}, discard())
	m.endpoint = srv.URL

	err := m.SendInvitation(context.Background(), "bob@example.com", "Apollo <v2>", "http://x/accept?token=1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer key", auth)
	assert.Equal(t, []string{"bob@example.com"}, got.To)
	assert.Equal(t, "You're invited to Apollo <v2>", got.Subject)
	assert.Contains(t, got.HTML, "Apollo &lt;v2&gt;")
	assert.Contains(t, got.HTML, "http://x/accept?token=1")
}

func TestSendReportsResendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := New(config.EmailConfig{ResendAPIKey: "key"}, discard())
	m.endpoint = srv.URL

	assert.Error(t, m.Send(context.Background(), "a@b.c", "s", "b"))
}

func TestSendWithoutTransportOnlyLogs(t *testing.T) {
	m := New(config.EmailConfig{}, discard())
	assert.NoError(t, m.Send(context.Background(), "a@b.c", "s", "b"))
}
