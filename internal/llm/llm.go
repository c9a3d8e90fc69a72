// Package llm grades answers with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/scoring"
)

// grade is the JSON object the model is asked to return.
type grade struct {
	Score               float64 `json:"score"`
	IsValid             *bool   `json:"is_valid"`
	TechnicallyAccurate bool    `json:"technically_accurate"`
	Relevance           float64 `json:"relevance"`
	Feedback            string  `json:"feedback"`
}

// Scorer implements scoring.Scorer on top of a chat completion endpoint.
type Scorer struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a Scorer. An empty baseURL uses the OpenAI default.
func New(baseURL, apiKey, modelName string, variant prompts.Variant) (*Scorer, error) {
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Scorer{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: variant,
	}, nil
}

// Ping checks that the endpoint answers.
func (s *Scorer) Ping(ctx context.Context) error {
	if _, err := s.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Evaluate implements scoring.Scorer. Blank answers are graded locally.
func (s *Scorer) Evaluate(ctx context.Context, question, answer string, difficulty model.Difficulty) (scoring.Result, error) {
	if strings.TrimSpace(answer) == "" {
		return scoring.Evaluate(question, answer, difficulty), nil
	}

	prompt, err := prompts.Build(s.variant, question, difficulty, answer)
	if err != nil {
		return scoring.Result{}, err
	}

	resp, err := s.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return scoring.Result{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return scoring.Result{}, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var g grade
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return scoring.Result{}, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return toResult(g, scoring.Evaluate(question, answer, difficulty)), nil
}

// toResult clamps the model's grade. Validity and feedback the model left out
// come from the local heuristic.
func toResult(g grade, local scoring.Result) scoring.Result {
	res := scoring.Result{
		Score:               int(math.Round(math.Max(0, math.Min(100, g.Score)))),
		IsValid:             local.IsValid,
		TechnicallyAccurate: g.TechnicallyAccurate,
		Relevance:           math.Max(0, math.Min(1, g.Relevance)),
		Feedback:            strings.TrimSpace(g.Feedback),
	}
	if g.IsValid != nil {
		res.IsValid = *g.IsValid
	}
	if res.Feedback == "" {
		res.Feedback = local.Feedback
	}
	return res
}
