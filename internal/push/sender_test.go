package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"waitline/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

func setupMockSender(t *testing.T) (*http.ServeMux, *Sender) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx := context.Background()
	svc, err := fcm.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	return mux, &Sender{
		service: svc,
		parent:  "projects/test-project",
		logger:  logger,
	}
}

func TestSenderSend(t *testing.T) {
	mux, sender := setupMockSender(t)

	var got fcm.SendMessageRequest
	mux.HandleFunc("/v1/projects/test-project/messages:send", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(fcm.Message{Name: "projects/test-project/messages/1"})
	})

	err := sender.Send(context.Background(), "device-token", "Your turn!", "Ann, please come inside the shop 😊")
	require.NoError(t, err)

	require.NotNil(t, got.Message)
	assert.Equal(t, "device-token", got.Message.Token)
	require.NotNil(t, got.Message.Notification)
	assert.Equal(t, "Your turn!", got.Message.Notification.Title)
	assert.Contains(t, got.Message.Notification.Body, "Ann")
}

func TestSenderSendServerError(t *testing.T) {
	mux, sender := setupMockSender(t)

	mux.HandleFunc("/v1/projects/test-project/messages:send", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`, http.StatusNotFound)
	})

	err := sender.Send(context.Background(), "stale-token", "Your turn!", "body")
	assert.Error(t, err)
}

func TestProjectIDFromCredentials(t *testing.T) {
	id, err := projectIDFromCredentials([]byte(`{"project_id":"shop-queue"}`))
	require.NoError(t, err)
	assert.Equal(t, "shop-queue", id)

	_, err = projectIDFromCredentials([]byte(`{}`))
	assert.Error(t, err)

	_, err = projectIDFromCredentials([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewSenderMissingCredentials(t *testing.T) {
	logger := zerolog.New(io.Discard)

	_, err := NewSender(context.Background(), config.FirebaseConfig{}, &logger)
	assert.Error(t, err)

	_, err = NewSender(context.Background(), config.FirebaseConfig{CredentialsFile: "/does/not/exist.json"}, &logger)
	assert.Error(t, err)
}

func TestNewSenderBadCredentials(t *testing.T) {
	logger := zerolog.New(io.Discard)

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"project_id":"shop-queue"}`), 0o600))

	// project_id present but no service-account key material.
	_, err := NewSender(context.Background(), config.FirebaseConfig{CredentialsFile: path}, &logger)
	assert.Error(t, err)
}
