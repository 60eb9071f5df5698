package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/aggregator"
)

func TestSlackNotifierSendDecision(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var received SlackWebhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("application/json", r.Header.Get("Content-Type"))
		require.NoError(json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL}
	dec := &Decision{
		Action:   action.Timeout,
		Duration: time.Hour,
		Reason:   "persistent toxicity",
		Source:   "policy",
		Threat:   &aggregator.Result{Level: aggregator.LevelCritical, Score: 72},
	}
	err := n.SendDecision(context.Background(), Message{Scope: "guild1", UserID: "user1"}, dec)
	require.NoError(err)

	assert.Contains(received.Text, "`user1` in `guild1`")
	assert.Contains(received.Text, "Action: `timeout` for 1h0m0s")
	assert.Contains(received.Text, "persistent toxicity")
	assert.Contains(received.Text, "Threat: `critical` (score 72)")

	// the lazily built default transport is the pooled cliutil client
	assert.NotNil(n.HTTPClient)
	assert.Equal(10*time.Second, n.HTTPClient.Timeout)
}

func TestSlackNotifierRejectsNonOkResponse(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL}
	err := n.SendDecision(context.Background(), Message{Scope: "g", UserID: "u"}, &Decision{Action: action.Ban})
	assert.Error(err)
	assert.True(strings.Contains(err.Error(), "status=403"))
}
