package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, zaptest.NewLogger(t))
	err := n.Send(context.Background(), "Profit Report", "Profit of 4.90000% recorded for ETHUSDT", "trader@example.com")
	require.NoError(t, err)

	assert.Equal(t, "Profit Report", got.Subject)
	assert.Equal(t, "Profit of 4.90000% recorded for ETHUSDT", got.Body)
	assert.Equal(t, "trader@example.com", got.Recipient)
}

func TestWebhookNotifier_Send_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, zaptest.NewLogger(t))
	err := n.Send(context.Background(), "s", "b", "r")
	assert.Error(t, err)
}

// recordingNotifier captures sends and optionally fails them.
type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (r *recordingNotifier) Send(_ context.Context, subject, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	if r.fail {
		return errors.New("smtp is down")
	}
	return nil
}

func TestDispatcher_Dispatch(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, zaptest.NewLogger(t))

	d.Dispatch("Successful Buy", "Executed market buy of 0.5 ETHUSDT", "trader@example.com")
	d.Wait()

	assert.Equal(t, []string{"Successful Buy"}, rec.subjects)
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	rec := &recordingNotifier{fail: true}
	d := NewDispatcher(rec, zaptest.NewLogger(t))

	// Must not panic or surface the error anywhere.
	d.Dispatch("Profit Report", "body", "trader@example.com")
	d.Wait()

	assert.Len(t, rec.subjects, 1)
}

func TestDispatcher_NilNotifier(t *testing.T) {
	d := NewDispatcher(nil, zaptest.NewLogger(t))
	d.Dispatch("ignored", "ignored", "ignored")
	d.Wait()
}
