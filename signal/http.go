package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatguard/chatguard/gateway"
)

// HTTPClassifier is a classifier layer backed by the shared inference
// backend, called through the resilience gateway. One instance per layer;
// all instances may share a single gateway client (and therefore a single
// circuit breaker and in-flight budget).
type HTTPClassifier struct {
	Client *gateway.Client
	Layer  string
}

var _ Classifier = (*HTTPClassifier)(nil)

func (c *HTTPClassifier) Analyze(ctx context.Context, req *Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Invoke(ctx, &gateway.AnalyzeRequest{
		Layer:   c.Layer,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%s layer: %w", c.Layer, err)
	}

	out := &Result{
		Layer:          c.Layer,
		Classification: resp.Classification,
		Confidence:     resp.Confidence,
	}
	if out.Classification == "" {
		// ambiguous upstream response; carry as uncertain, never coerce
		out.Classification = CategoryUncertain
	}
	if len(resp.Details) == 0 {
		return out, nil
	}
	switch c.Layer {
	case LayerIntent:
		var det IntentDetails
		if err := json.Unmarshal(resp.Details, &det); err != nil {
			return nil, fmt.Errorf("decoding intent details: %w", err)
		}
		out.Intent = &det
	case LayerContent:
		var det ContentDetails
		if err := json.Unmarshal(resp.Details, &det); err != nil {
			return nil, fmt.Errorf("decoding content details: %w", err)
		}
		out.Content = &det
	case LayerContext:
		var det ContextDetails
		if err := json.Unmarshal(resp.Details, &det); err != nil {
			return nil, fmt.Errorf("decoding context details: %w", err)
		}
		out.Context = &det
	}
	return out, nil
}
