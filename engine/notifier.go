package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chatguard/chatguard/util/cliutil"
)

// Interface for a type that can handle sending decision notifications
type Notifier interface {
	SendDecision(ctx context.Context, msg Message, dec *Decision) error
}

type SlackNotifier struct {
	SlackWebhookURL string

	// defaults to a pooled client from cliutil with a 10s timeout
	HTTPClient *http.Client

	clientOnce sync.Once
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) client() *http.Client {
	n.clientOnce.Do(func() {
		if n.HTTPClient == nil {
			n.HTTPClient = cliutil.NewHttpClient()
			n.HTTPClient.Timeout = 10 * time.Second
		}
	})
	return n.HTTPClient
}

func (n *SlackNotifier) SendDecision(ctx context.Context, msg Message, dec *Decision) error {
	body := fmt.Sprintf("⚠️ ChatGuard Moderation Action ⚠️\n`%s` in `%s`\n", msg.UserID, msg.Scope)
	body += fmt.Sprintf("Action: `%s`", dec.Action.String())
	if dec.Duration > 0 {
		body += fmt.Sprintf(" for %s", dec.Duration)
	}
	body += "\n"
	if dec.Reason != "" {
		body += fmt.Sprintf("Reason: %s\n", dec.Reason)
	}
	if dec.Threat != nil {
		body += fmt.Sprintf("Threat: `%s` (score %.0f)\n", dec.Threat.Level.String(), dec.Threat.Score)
	}
	if dec.Policy != nil && dec.Policy.Policy != nil {
		body += fmt.Sprintf("Policy: `%s` (violation #%d)\n", dec.Policy.Policy.ID, dec.Policy.ViolationCount)
	}
	return n.sendSlackMsg(ctx, body)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := n.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	io.Copy(buf, resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
