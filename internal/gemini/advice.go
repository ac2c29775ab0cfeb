package gemini

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/genai"

	"lumina/internal/core"
)

// FallbackAdvice is shown whenever the advice collaborator cannot help.
const FallbackAdvice = "Keep tracking your expenses!"

// adviceSnapshotLimit bounds the context sent to the model.
const adviceSnapshotLimit = 20

// GenerateAdvice asks for a one-sentence tip about recent spending. Every
// failure path degrades to the static fallback; advice is best-effort and
// never surfaces an error.
func (c *Client) GenerateAdvice(ctx context.Context, txs []core.Transaction) string {
	if len(txs) > adviceSnapshotLimit {
		txs = txs[:adviceSnapshotLimit]
	}
	snapshot, err := json.Marshal(txs)
	if err != nil {
		slog.WarnContext(ctx, "Failed to marshal advice snapshot", "error", err)
		return FallbackAdvice
	}

	prompt := "Here are the user's recent transactions: " + string(snapshot) +
		". Give a 1-sentence friendly tip or insight about their spending habits."
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		slog.WarnContext(ctx, "Advice request failed, using fallback", "error", err)
		return FallbackAdvice
	}
	if text := resp.Text(); text != "" {
		return text
	}
	return FallbackAdvice
}
