package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/campaignlens/campaignlens/internal/config"
)

// geminiClient calls the Gemini generateContent endpoint directly over
// HTTP. No SDK; the payload is three nested structs.
type geminiClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	log      *slog.Logger
}

func newGeminiClient(cfg config.InsightsConfig) *geminiClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &geminiClient{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		log:      slog.With("component", "insights"),
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends the fact prompt and returns the narrative verbatim.
func (c *geminiClient) Generate(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(req)}}}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal narrative request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build narrative request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	c.log.Debug("requesting narrative", "view", req.View, "model", c.model)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("narrative backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("narrative backend: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode narrative response: %w", err)
	}

	var text strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if text.Len() == 0 {
		return Result{}, errors.New("narrative backend returned no candidates")
	}

	return Result{Status: StatusOK, Text: text.String()}, nil
}

var _ Client = (*geminiClient)(nil)
