package advisor

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Tool names, fixed by the protocol — the model may call each zero or
// more times except evaluate_trust_status and determine_strategy, which
// are at most once per Analyze call (fromSDKMessage keeps only the last
// such call, since Response holds one of each; the schema itself does not
// enforce it).
const (
	toolSuggestMutation = "suggest_dna_mutation"
	toolEvaluateTrust   = "evaluate_trust_status"
	toolDetermineStrategy = "determine_strategy"
)

// sdkClient implements Client against the live Anthropic API.
type sdkClient struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewSDKClient builds a live Client. model must pass CheckModelSupported.
func NewSDKClient(apiKey, model string, maxTokens int64, temperature float64) (Client, error) {
	if err := CheckModelSupported(model); err != nil {
		return nil, err
	}
	return &sdkClient{
		client:      sdk.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Analyze sends reqCtx to the model as a single user message with the
// three fixed tool schemas offered, and parses whatever tool calls come
// back.
func (c *sdkClient) Analyze(ctx context.Context, reqCtx Context) (*Response, error) {
	prompt, err := buildPrompt(reqCtx)
	if err != nil {
		return nil, fmt.Errorf("advisor: build prompt: %w", err)
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
		Messages:    toSDKMessages(prompt),
		Tools:       toSDKTools(),
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("advisor: create message: %w", err)
	}

	return fromSDKMessage(msg)
}

func buildPrompt(reqCtx Context) (string, error) {
	b, err := json.Marshal(reqCtx)
	if err != nil {
		return "", err
	}
	return "Analyze the following crawl context and respond using the available tools.\n" + string(b), nil
}

func toSDKMessages(prompt string) []sdk.MessageParam {
	return []sdk.MessageParam{
		sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
	}
}

func toSDKTools() []sdk.ToolUnionParam {
	withDescription := func(u sdk.ToolUnionParam, description string) sdk.ToolUnionParam {
		u.OfTool.Description = sdk.String(description)
		return u
	}
	return []sdk.ToolUnionParam{
		withDescription(sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: map[string]any{
				"gene":       map[string]any{"type": "string", "enum": []string{"identity", "timing", "network", "interaction", "capabilities"}},
				"change":     map[string]any{"type": "object"},
				"reason":     map[string]any{"type": "string"},
				"confidence": map[string]any{"type": "number"},
				"riskLevel":  map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
			},
		}, toolSuggestMutation), "Propose a shallow patch to one DNA gene."),
		withDescription(sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: map[string]any{
				"trustScore":     map[string]any{"type": "integer"},
				"signals":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"recommendation": map[string]any{"type": "string"},
				"shouldContinue": map[string]any{"type": "boolean"},
			},
		}, toolEvaluateTrust), "Report the advisor's own read of current trust status."),
		withDescription(sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: map[string]any{
				"action":     map[string]any{"type": "string", "enum": []string{"continue", "pause", "adapt", "retreat", "accelerate"}},
				"reason":     map[string]any{"type": "string"},
				"parameters": map[string]any{"type": "object"},
			},
		}, toolDetermineStrategy), "Choose the crawl strategy for the next iteration."),
	}
}

// fromSDKMessage parses msg's tool-use blocks into a Response. A tool call
// whose input does not decode is skipped; the rest are kept. Unvalidated
// — the caller (Advisor.Analyze) validates and filters.
func fromSDKMessage(msg *sdk.Message) (*Response, error) {
	resp := &Response{}
	for _, block := range msg.Content {
		toolUse := block.AsToolUse()
		if toolUse.ID == "" {
			continue
		}
		switch toolUse.Name {
		case toolSuggestMutation:
			var m MutationSuggestion
			if err := json.Unmarshal(toolUse.Input, &m); err != nil {
				continue
			}
			resp.Mutations = append(resp.Mutations, m)
		case toolEvaluateTrust:
			var t TrustEvaluation
			if err := json.Unmarshal(toolUse.Input, &t); err != nil {
				continue
			}
			resp.Trust = &t
		case toolDetermineStrategy:
			var s StrategyDecision
			if err := json.Unmarshal(toolUse.Input, &s); err != nil {
				continue
			}
			resp.Strategy = &s
		}
	}
	return resp, nil
}
