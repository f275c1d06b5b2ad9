package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/generation"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

type fakeGenerator struct {
	response  string
	err       error
	available bool
	calls     int
	lastReq   generation.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &generation.Response{Text: f.response, Model: "fake"}, nil
}

func (f *fakeGenerator) Available() bool { return f.available }
func (f *fakeGenerator) Name() string    { return "fake" }

var _ generation.Generator = (*fakeGenerator)(nil)

// blockingGenerator waits out the context, simulating a stuck provider.
type blockingGenerator struct{}

func (b *blockingGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingGenerator) Available() bool { return true }
func (b *blockingGenerator) Name() string    { return "blocking" }

func TestNewValidator_Defaults(t *testing.T) {
	v := NewValidator(nil, Config{}, nil)

	assert.Equal(t, StrategyHeuristic, v.config.Strategy)
	assert.Equal(t, DefaultBudget, v.config.Budget)
}

func TestValidator_Validate_EmptyInput(t *testing.T) {
	v := NewValidator(nil, Config{}, zap.NewNop())

	_, err := v.Validate(context.Background(), "", "an answer", knowledge.QueryContext{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = v.Validate(context.Background(), "a question", "   ", knowledge.QueryContext{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestValidator_Validate_Heuristic(t *testing.T) {
	v := NewValidator(nil, Config{}, zap.NewNop())

	qc := knowledge.QueryContext{Brand: "SoundWave", ProductCategory: "earbuds"}
	report, err := v.Validate(context.Background(),
		"How do I reset my SoundWave earbuds pairing?",
		"First, place both SoundWave earbuds in the case. Then hold the button to reset pairing mode.",
		qc)
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
	assert.InDelta(t, 1.0, report.Completeness, 1e-9)
	assert.InDelta(t, 0.7, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.8, report.Relevance, 1e-9)
	assert.InDelta(t, 0.82, report.Overall, 1e-9)
	assert.True(t, report.IsValid)
	assert.Empty(t, report.Suggestions)
}

func TestValidator_Validate_InvalidAnswerGetsSuggestions(t *testing.T) {
	v := NewValidator(nil, Config{}, zap.NewNop())

	qc := knowledge.QueryContext{Brand: "SmartFridge"}
	report, err := v.Validate(context.Background(),
		"Why does my SmartFridge display error code E4 after a power outage?",
		"Try turning it off and on again.",
		qc)
	require.NoError(t, err)

	assert.False(t, report.IsValid)
	assert.InDelta(t, 0.0, report.Completeness, 1e-9)
	assert.InDelta(t, 0.5, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, report.Relevance, 1e-9)
	assert.Equal(t, []string{
		suggestCompleteness,
		suggestAccuracy,
		suggestRelevance,
	}, report.Suggestions)
}

func TestValidator_Validate_LLMStrategy(t *testing.T) {
	gen := &fakeGenerator{
		response:  `{"completeness":0.9,"accuracy":0.85,"relevance":0.8}`,
		available: true,
	}
	v := NewValidator(gen, Config{Strategy: StrategyLLM}, zap.NewNop())

	qc := knowledge.QueryContext{Brand: "SoundWave", ProductCategory: "earbuds"}
	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the button for ten seconds.", qc)
	require.NoError(t, err)

	assert.Equal(t, StrategyLLM, report.Strategy)
	assert.InDelta(t, 0.9, report.Completeness, 1e-9)
	assert.InDelta(t, 0.85, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.8, report.Relevance, 1e-9)
	assert.InDelta(t, 0.85, report.Overall, 1e-9)
	assert.True(t, report.IsValid)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastReq.System, "validator")
	assert.Contains(t, gen.lastReq.Prompt, "How do I reset my earbuds?")
	assert.Contains(t, gen.lastReq.Prompt, "Hold the button for ten seconds.")
	assert.Contains(t, gen.lastReq.Prompt, "brand SoundWave, product earbuds")
	assert.InDelta(t, 0.1, gen.lastReq.Temperature, 1e-9)
}

func TestValidator_Validate_MalformedLLMFallsBack(t *testing.T) {
	gen := &fakeGenerator{response: "Looks good to me!", available: true}
	v := NewValidator(gen, Config{Strategy: StrategyLLM}, zap.NewNop())

	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the reset button for ten seconds.",
		knowledge.QueryContext{})
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
	assert.Equal(t, 1, gen.calls)
}

func TestValidator_Validate_LLMErrorFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited"), available: true}
	v := NewValidator(gen, Config{Strategy: StrategyLLM}, zap.NewNop())

	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the reset button for ten seconds.",
		knowledge.QueryContext{})
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
}

func TestValidator_Validate_UnavailableGeneratorSkipsLLM(t *testing.T) {
	gen := &fakeGenerator{response: `{"completeness":1,"accuracy":1,"relevance":1}`}
	v := NewValidator(gen, Config{Strategy: StrategyLLM}, zap.NewNop())

	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the reset button for ten seconds.",
		knowledge.QueryContext{})
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
	assert.Zero(t, gen.calls)
}

func TestValidator_Validate_NilGeneratorUsesHeuristic(t *testing.T) {
	v := NewValidator(nil, Config{Strategy: StrategyLLM}, zap.NewNop())

	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the reset button for ten seconds.",
		knowledge.QueryContext{})
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
}

func TestValidator_Validate_BudgetExpiryFallsBack(t *testing.T) {
	v := NewValidator(&blockingGenerator{}, Config{
		Strategy: StrategyLLM,
		Budget:   10 * time.Millisecond,
	}, zap.NewNop())

	report, err := v.Validate(context.Background(),
		"How do I reset my earbuds?", "Hold the reset button for ten seconds.",
		knowledge.QueryContext{})
	require.NoError(t, err)

	assert.Equal(t, StrategyHeuristic, report.Strategy)
}

func TestValidator_ValidateBatch(t *testing.T) {
	v := NewValidator(nil, Config{}, zap.NewNop())

	pairs := []Pair{
		{
			Query:   "How do I reset my SoundWave earbuds pairing?",
			Answer:  "First, place both SoundWave earbuds in the case. Then hold the button to reset pairing mode.",
			Context: knowledge.QueryContext{Brand: "SoundWave"},
		},
		{
			Query:  "Why is the screen flickering?",
			Answer: "Not sure.",
		},
	}

	reports, err := v.ValidateBatch(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.True(t, reports[0].IsValid)
	assert.False(t, reports[1].IsValid)
}

func TestValidator_ValidateBatch_BadPair(t *testing.T) {
	v := NewValidator(nil, Config{}, zap.NewNop())

	pairs := []Pair{
		{Query: "How do I reset my earbuds?", Answer: "Hold the button."},
		{Query: "", Answer: "orphan answer"},
	}

	_, err := v.ValidateBatch(context.Background(), pairs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Contains(t, err.Error(), "pair 1")
}
