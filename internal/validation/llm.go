package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/supportd/internal/generation"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

// ErrMalformedResponse is returned when the model's reply does not carry
// the expected JSON scores.
var ErrMalformedResponse = errors.New("malformed validation response")

const validationSystem = "You are an expert technical support answer validator. " +
	"You respond with compact JSON and nothing else."

// llmScores asks the generation provider to score the answer and parses
// the structured reply.
func (v *Validator) llmScores(ctx context.Context, query, answer string, qc knowledge.QueryContext) (axisScores, error) {
	resp, err := v.generator.Generate(ctx, generation.Request{
		System:      validationSystem,
		Prompt:      buildValidationPrompt(query, answer, qc),
		MaxTokens:   256,
		Temperature: 0.1,
	})
	if err != nil {
		return axisScores{}, fmt.Errorf("validation generation: %w", err)
	}
	return parseScores(resp.Text)
}

func buildValidationPrompt(query, answer string, qc knowledge.QueryContext) string {
	var b strings.Builder
	b.WriteString("Evaluate this customer support answer.\n\n")
	b.WriteString("CUSTOMER QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nPROPOSED ANSWER: ")
	b.WriteString(answer)
	b.WriteString("\n\nPRODUCT CONTEXT: ")
	b.WriteString(contextLine(qc))
	b.WriteString("\n\nRate the answer from 0.0 to 1.0 on each criterion:\n")
	b.WriteString("- completeness: does it fully answer the customer's question?\n")
	b.WriteString("- accuracy: is the technical information correct and reliable?\n")
	b.WriteString("- relevance: is it specific to the mentioned product, brand, and issue?\n\n")
	b.WriteString(`Respond with ONLY this JSON: {"completeness":0.0,"accuracy":0.0,"relevance":0.0}`)
	return b.String()
}

// contextLine renders the query context for the prompt.
func contextLine(qc knowledge.QueryContext) string {
	parts := make([]string, 0, 3)
	if qc.Brand != "" {
		parts = append(parts, "brand "+qc.Brand)
	}
	if qc.ProductCategory != "" {
		parts = append(parts, "product "+qc.ProductCategory)
	}
	if qc.IssueCategory != "" {
		parts = append(parts, "issue "+qc.IssueCategory)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// parseScores extracts the score JSON from the model reply. Models
// sometimes wrap the object in prose or code fences, so parsing starts at
// the first brace and ends at the last.
func parseScores(text string) (axisScores, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return axisScores{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var raw struct {
		Completeness float64 `json:"completeness"`
		Accuracy     float64 `json:"accuracy"`
		Relevance    float64 `json:"relevance"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return axisScores{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return axisScores{
		completeness: clampUnit(raw.Completeness),
		accuracy:     clampUnit(raw.Accuracy),
		relevance:    clampUnit(raw.Relevance),
	}, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
