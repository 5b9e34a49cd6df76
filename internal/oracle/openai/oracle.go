// Package openaioracle implements insight.Oracle on the OpenAI chat API.
package openaioracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/siteiq/siteiq/internal/insight"
)

// Config controls the chat completion client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Oracle calls the OpenAI chat completions API. All transport and API
// failures surface as insight.ErrOracleUnavailable; no retries are
// attempted here.
type Oracle struct {
	client *openai.Client
	cfg    Config
}

const improveSystemPrompt = `You are a senior web consultant. Given a technical fingerprint of a
website (its meta tags and script dependencies), produce a markdown
report with concrete, prioritized improvement recommendations. If the
fingerprint is empty, give general best-practice guidance and say that
the site could not be inspected.`

const recommendSystemPrompt = `You are a senior software architect. Given a product use case,
recommend a technology stack. Respond with a single JSON object with
keys "frontend", "backend", "database", "hosting" and "other"; each
value is an object with a "reason" string and a non-empty "stack"
array of technology names.`

// New builds an Oracle.
func New(cfg Config) *Oracle {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4TurboPreview
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &Oracle{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Improve returns narrative markdown for a fingerprint-driven analysis.
// An empty fingerprint is a valid input; the prompt says so explicitly
// and the model degrades to general guidance.
func (o *Oracle) Improve(ctx context.Context, fp insight.Fingerprint, seoFocused, performanceFocused bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: improveSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: improvePrompt(fp, seoFocused, performanceFocused)},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", insight.ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", insight.ErrOracleUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Recommend returns the structured stack breakdown for a use case. The
// model is forced into JSON-object output and the result is validated
// before returning.
func (o *Oracle) Recommend(ctx context.Context, useCase string, seoFocused, performanceFocused bool) (insight.StackRecommendation, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: recommendSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: recommendPrompt(useCase, seoFocused, performanceFocused)},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return insight.StackRecommendation{}, fmt.Errorf("%w: %s", insight.ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return insight.StackRecommendation{}, fmt.Errorf("%w: empty completion", insight.ErrOracleUnavailable)
	}
	var rec insight.StackRecommendation
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &rec); err != nil {
		return insight.StackRecommendation{}, fmt.Errorf("%w: malformed completion: %s", insight.ErrOracleUnavailable, err)
	}
	if err := validateRecommendation(rec); err != nil {
		return insight.StackRecommendation{}, fmt.Errorf("%w: %s", insight.ErrOracleUnavailable, err)
	}
	return rec, nil
}

func improvePrompt(fp insight.Fingerprint, seoFocused, performanceFocused bool) string {
	var b strings.Builder
	b.WriteString("Analyze the following website fingerprint.\n\n")
	if fp.Empty() {
		b.WriteString("The site could not be fetched; the fingerprint is empty.\n")
	} else {
		b.WriteString("Meta tags:\n")
		keys := make([]string, 0, len(fp.MetaTags))
		for k := range fp.MetaTags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, fp.MetaTags[k])
		}
		b.WriteString("Script sources:\n")
		for _, src := range fp.Scripts {
			fmt.Fprintf(&b, "- %s\n", src)
		}
	}
	writeFocus(&b, seoFocused, performanceFocused)
	return b.String()
}

func recommendPrompt(useCase string, seoFocused, performanceFocused bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Use case: %s\n", useCase)
	writeFocus(&b, seoFocused, performanceFocused)
	return b.String()
}

func writeFocus(b *strings.Builder, seoFocused, performanceFocused bool) {
	if seoFocused {
		b.WriteString("\nPrioritize search engine optimization.")
	}
	if performanceFocused {
		b.WriteString("\nPrioritize page performance and load times.")
	}
}

func validateRecommendation(rec insight.StackRecommendation) error {
	sections := map[string]insight.StackSection{
		"frontend": rec.Frontend,
		"backend":  rec.Backend,
		"database": rec.Database,
		"hosting":  rec.Hosting,
		"other":    rec.Other,
	}
	for name, s := range sections {
		if len(s.Stack) == 0 {
			return fmt.Errorf("section %q has an empty stack", name)
		}
	}
	return nil
}
