package extract

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-cli/internal/resilience"
)

const extractionSystemPrompt = `You extract funding round details from startup news articles.

Respond with a single JSON object and nothing else:
{
  "company_name": "the company that raised money",
  "amount": 10000000,
  "currency": "USD",
  "stage": "Series A",
  "investors": ["Fund One", "Fund Two"],
  "lead_investor": "Fund One",
  "date": "2025-06-02",
  "description": "Acme raised a $10M Series A led by Fund One.",
  "confidence_score": 85
}

Rules:
- amount is the raw number in the announced currency, null if not stated.
- currency is an ISO 4217 code, "USD" if unstated but implied by a $ amount.
- stage is the round label as written, "" if not stated.
- date is the announcement date as YYYY-MM-DD, "" if the article does not
  state one.
- description is a one-sentence summary of the round, "" if unclear.
- confidence_score is 0-100: how certain you are the article announces a
  funding round for company_name with these details. Articles that are not
  funding announcements score below 20.`

// ClaudeExtractor implements Extractor against the Anthropic API.
type ClaudeExtractor struct {
	model     string
	maxTokens int64
	create    func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// NewClaudeExtractor builds an extractor using the given API key and model.
func NewClaudeExtractor(apiKey, model string) *ClaudeExtractor {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeExtractor{
		model:     model,
		maxTokens: 1024,
		create: func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
			return client.Messages.New(ctx, params)
		},
	}
}

// Extract sends the article to the model and parses the JSON reply.
// A malformed reply is a ParseError: the article is bad, not the source.
func (e *ClaudeExtractor) Extract(ctx context.Context, article Article) (*ParsedFields, error) {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(article.Title)
	sb.WriteString("\n\n")
	sb.WriteString(article.Body)

	msg, err := e.create(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(e.model),
		MaxTokens: e.maxTokens,
		System:    []sdk.TextBlockParam{{Text: extractionSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: create message for %s", article.URL)
	}

	zap.L().Debug("extraction tokens",
		zap.String("url", article.URL),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	fields, err := parseReply(text)
	if err != nil {
		return nil, &resilience.ParseError{Item: article.URL, Err: err}
	}
	return fields, nil
}

// parseReply decodes the model's JSON, tolerating a markdown code fence.
func parseReply(text string) (*ParsedFields, error) {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	var fields ParsedFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, eris.Wrap(err, "decode model reply")
	}
	if fields.CompanyName == "" {
		return nil, eris.New("model reply missing company_name")
	}
	if fields.ConfidenceScore < 0 {
		fields.ConfidenceScore = 0
	}
	if fields.ConfidenceScore > 100 {
		fields.ConfidenceScore = 100
	}
	return &fields, nil
}
