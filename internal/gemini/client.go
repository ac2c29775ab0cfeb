// Package gemini wraps the two external AI collaborators: free-text
// transaction extraction and best-effort spending advice. The ledger never
// depends on either succeeding.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"lumina/internal/core"
)

// DefaultModel is the Gemini model used for both collaborators.
const DefaultModel = "gemini-2.5-flash"

// ErrNoResult signals that the input could not be read as a transaction.
// Distinct from transport/service errors so callers can tell the user to
// rephrase rather than retry later.
var ErrNoResult = errors.New("no transaction found in input")

type Client struct {
	genai *genai.Client
	model string
}

// NewClient creates a Gemini client. The API key may be empty, in which
// case the SDK falls back to its environment discovery.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: cli, model: model}, nil
}

// draft is the structured record the extraction schema asks the model for.
type draft struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Category string  `json:"category"`
	Merchant string  `json:"merchant"`
	Date     string  `json:"date"`
	Notes    string  `json:"notes"`
	Type     string  `json:"type"`
}

func parseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":   {Type: genai.TypeNumber, Description: "The numeric value of the transaction."},
			"currency": {Type: genai.TypeString, Description: "The currency code, e.g., USD, EUR."},
			"category": {Type: genai.TypeString, Description: "A short category name (e.g., Food, Transport, Salary)."},
			"merchant": {Type: genai.TypeString, Description: "Name of the merchant or payer."},
			"date":     {Type: genai.TypeString, Description: "ISO 8601 date string (YYYY-MM-DD). Use today's date if not specified."},
			"notes":    {Type: genai.TypeString, Description: "A brief summary or note about the transaction."},
			"type":     {Type: genai.TypeString, Description: "Either 'EXPENSE' or 'INCOME'."},
		},
		Required: []string{"amount", "category", "type", "date"},
	}
}

func extractionPrompt(today core.Date) string {
	return "You are an expert financial bookkeeper.\n" +
		"Analyze the user's natural language input and extract transaction details.\n" +
		"Assume the current date is " + today.String() + " if no date is mentioned.\n" +
		"If the user types something vague like \"coffee 5\", assume it is an EXPENSE, " +
		"merchant is unknown (or infer from category), and category is Food/Drink.\n" +
		"Be smart about categorizing."
}

// ParseTransaction sends one extraction request and maps the structured
// draft onto the domain. A draft the model could not produce, or one that
// fails domain validation, returns ErrNoResult; transport and service
// failures return ordinary errors ("unavailable").
func (c *Client) ParseTransaction(ctx context.Context, input string) (core.Transaction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return core.Transaction{}, ErrNoResult
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: input}}},
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: extractionPrompt(core.Today())}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    parseSchema(),
		// Low temperature for deterministic extraction
		Temperature: genai.Ptr[float32](0.1),
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return core.Transaction{}, ErrNoResult
	}

	var d draft
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &d); err != nil {
		slog.WarnContext(ctx, "Extraction response is not valid JSON", "error", err)
		return core.Transaction{}, ErrNoResult
	}

	tx, err := d.toTransaction(input)
	if err != nil {
		slog.WarnContext(ctx, "Extraction draft failed validation", "error", err)
		return core.Transaction{}, ErrNoResult
	}
	return tx, nil
}

// toTransaction applies the schema defaults and domain validation. The id
// stays empty: assigning a fresh unique id is the caller's job.
func (d draft) toTransaction(input string) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(d.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	cents := core.CentsFromFloat(d.Amount)
	if cents <= 0 {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	notes := strings.TrimSpace(d.Notes)
	if notes == "" {
		notes = input
	}
	tx := core.Transaction{
		Amount:   core.Money{Cents: cents},
		Currency: strings.TrimSpace(d.Currency),
		Category: strings.TrimSpace(d.Category),
		Merchant: strings.TrimSpace(d.Merchant),
		Date:     date,
		Notes:    notes,
		Type:     typ,
	}.WithDefaults()

	if strings.TrimSpace(tx.Category) == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}
	return tx, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
