package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/untoldecay/roadmap/internal/debug"
)

const (
	triageModel          = "claude-3-5-haiku-20241022"
	triageBatchSize      = 10
	triageMaxRetries     = 3
	triageInitialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when AI triage is requested without a key.
var ErrAPIKeyRequired = errors.New("API key required")

// Triage asks a model to second-guess the manual-review matches. Its
// verdicts are advisory; they never change the detector's output.
type Triage struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// NewTriage creates the triage client. ANTHROPIC_API_KEY takes
// precedence over the explicit key.
func NewTriage(apiKey string) (*Triage, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", ErrAPIKeyRequired)
	}
	return &Triage{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          triageModel,
		maxRetries:     triageMaxRetries,
		initialBackoff: triageInitialBackoff,
	}, nil
}

// Verdict is the model's opinion on one candidate pair.
type Verdict struct {
	LocalID    string  `json:"local_id"`
	RemoteID   string  `json:"remote_id"`
	Duplicate  bool    `json:"duplicate"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Review sends the manual-review matches to the model in batches and
// collects its verdicts. Matches the detector already recommends for
// auto-merge are skipped.
func (t *Triage) Review(ctx context.Context, matches []Match) ([]Verdict, error) {
	var candidates []Match
	for _, m := range matches {
		if m.Recommended == RecommendManualReview {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var verdicts []Verdict
	for start := 0; start < len(candidates); start += triageBatchSize {
		end := start + triageBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		prompt := buildTriagePrompt(batch)
		raw, err := t.callWithRetry(ctx, prompt)
		if err != nil {
			return verdicts, fmt.Errorf("triaging batch %d-%d: %w", start, end, err)
		}
		parsed, err := parseVerdicts(raw)
		if err != nil {
			debug.Logf("dedup: unparseable triage response for batch %d-%d: %v", start, end, err)
			continue
		}
		verdicts = append(verdicts, parsed...)
	}
	return verdicts, nil
}

func buildTriagePrompt(batch []Match) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing candidate duplicate issue pairs from an issue tracker.\n")
	sb.WriteString("For each pair decide whether the two records describe the same piece of work.\n\n")
	for i, m := range batch {
		fmt.Fprintf(&sb, "Pair %d:\n", i+1)
		fmt.Fprintf(&sb, "  local_id: %s\n  local_title: %s\n  local_body: %s\n", m.Local.ID, m.Local.Title, clip(m.Local.Content, 400))
		fmt.Fprintf(&sb, "  remote_id: %s\n  remote_title: %s\n  remote_body: %s\n\n", m.Remote.ID, m.Remote.Title, clip(m.Remote.Content, 400))
	}
	sb.WriteString(`Respond with ONLY a JSON array, one object per pair, in order:
[{"local_id": "...", "remote_id": "...", "duplicate": true, "confidence": 0.9, "reason": "..."}]`)
	return sb.String()
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// parseVerdicts tolerates a markdown-fenced response.
func parseVerdicts(raw string) ([]Verdict, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if i := strings.LastIndex(trimmed, "```"); i >= 0 {
			trimmed = trimmed[:i]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	var verdicts []Verdict
	if err := json.Unmarshal([]byte(trimmed), &verdicts); err != nil {
		return nil, fmt.Errorf("decoding verdicts: %w", err)
	}
	return verdicts, nil
}

func (t *Triage) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     t.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := t.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := t.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryableAPIError(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", t.maxRetries+1, lastErr)
}

func isRetryableAPIError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
