package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIGenerator generates answers via the OpenAI Chat Completions API.
type OpenAIGenerator struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
	metrics    *Metrics
}

// NewOpenAIGenerator creates a generator backed by the OpenAI API.
func NewOpenAIGenerator(cfg Config, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key required", ErrInvalidConfig)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}

	return &OpenAIGenerator{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), defaultBurst),
		maxRetries: cfg.MaxRetries,
		logger:     logger,
		metrics:    NewMetrics(logger),
	}, nil
}

// openAIRequest represents the request format for the Chat Completions API.
type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

// openAIMessage represents a chat message.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse represents the Chat Completions API response.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// openAIError represents an error response from the API.
type openAIError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces a completion for the request.
//
// Handles rate limiting, context cancellation, and retries with exponential
// backoff for transient errors (429, 5xx, transport failures).
func (o *OpenAIGenerator) Generate(ctx context.Context, req Request) (_ *Response, err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordGeneration(ctx, o.model, "openai", time.Since(start), err)
	}()

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	apiReq := openAIRequest{
		Model:       o.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	}

	return withRetries(ctx, o.maxRetries, func() (*Response, error) {
		return o.doRequest(ctx, apiReq)
	})
}

// doRequest performs a single HTTP request to the Chat Completions API.
func (o *OpenAIGenerator) doRequest(ctx context.Context, req openAIRequest) (*Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("%w: rate limited (429)", ErrGenerationUnavailable)}
	}

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("%w: server error (%d)", ErrGenerationUnavailable, resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openAIError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from API", ErrGenerationUnavailable)
	}

	return &Response{
		Text:         apiResp.Choices[0].Message.Content,
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}

// Available reports whether this generator can serve requests.
func (o *OpenAIGenerator) Available() bool {
	return true
}

// Name identifies the provider.
func (o *OpenAIGenerator) Name() string {
	return "openai"
}

var _ Generator = (*OpenAIGenerator)(nil)
