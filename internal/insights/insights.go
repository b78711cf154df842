// Package insights produces short narrative summaries of aggregate
// views through an external generative-text service. The service is an
// opaque collaborator: pre-aggregated facts go in, markdown-flavored
// text comes out and is served verbatim.
package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/campaignlens/campaignlens/internal/config"
)

// Status reports whether a narrative was produced.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Operator-facing fallback texts. UnavailableMessage is served by a
// client constructed without credentials; ErrorMessage is what the
// serving layer substitutes when a configured backend call fails.
const (
	UnavailableMessage = "AI insights are currently unavailable due to a configuration issue."
	ErrorMessage       = "An error occurred while generating AI insights. Please check the server logs."
)

// Fact is one named figure handed to the narrative backend.
type Fact struct {
	Name  string
	Value string
}

// Request carries the view name and its pre-aggregated facts.
type Request struct {
	View  string
	Facts []Fact
}

// Result is the narrative outcome.
type Result struct {
	Status Status `json:"status"`
	Text   string `json:"text"`
}

// Client generates a narrative for one view.
type Client interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// New builds a client from configuration. Without an API key the
// client is permanently unavailable; availability is decided here, at
// construction, not by a runtime flag.
func New(cfg config.InsightsConfig) Client {
	if cfg.APIKey == "" {
		return disabledClient{}
	}
	return newGeminiClient(cfg)
}

type disabledClient struct{}

func (disabledClient) Generate(ctx context.Context, req Request) (Result, error) {
	return Result{Status: StatusUnavailable, Text: UnavailableMessage}, nil
}

var _ Client = disabledClient{}

// buildPrompt lists the facts for the backend. The phrasing of the
// returned narrative is entirely the backend's business.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a marketing analyst reviewing the %s view of a small-business campaign dataset.\n", req.View)
	b.WriteString("Figures:\n")
	for _, f := range req.Facts {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Value)
	}
	b.WriteString("Respond with two or three short bullet points of practical advice, in Markdown.\n")
	return b.String()
}
