// Package main implements the supportctl CLI for manual operations against the supportd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the supportd HTTP server
	serverURL string
	// version information
	version = "dev"
)

// query command flags
var (
	queryBrand           string
	queryProductCategory string
	queryIssueCategory   string
	queryLimit           int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "supportctl",
	Short: "CLI for supportd HTTP server operations",
	Long: `supportctl is a command-line interface for interacting with the supportd HTTP server.
It provides commands for querying the knowledge base, submitting agent feedback,
seeding reference documents, and checking server health and statistics.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8085", "supportd server URL")

	queryCmd.Flags().StringVar(&queryBrand, "brand", "", "restrict results to a brand")
	queryCmd.Flags().StringVar(&queryProductCategory, "product-category", "", "restrict results to a product category")
	queryCmd.Flags().StringVar(&queryIssueCategory, "issue-category", "", "restrict results to an issue category")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "number of knowledge records to retrieve (0 uses the server default)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
}

// queryCmd asks the knowledge base a question
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the knowledge base a support question",
	Long: `Ask the supportd knowledge base a free-text support question.

The answer is printed to stdout together with its confidence and the
knowledge records it was assembled from.

Examples:
  # Ask a question
  supportctl query "my kettle won't turn on after descaling"

  # Restrict to a brand and product category
  supportctl query --brand BrewMaster --product-category kettle "lid won't close"

  # Retrieve more candidate records
  supportctl query --limit 10 "error code E4 on dishwasher"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// feedbackCmd submits agent feedback from a file or stdin
var feedbackCmd = &cobra.Command{
	Use:   "feedback [file]",
	Short: "Submit agent feedback from a JSON file or stdin",
	Long: `Submit agent feedback on an answer to the supportd server.

The input is a JSON document with the answered question, the answer the
agent saw, a 1-5 rating, and optionally a corrected manual solution.
High ratings with a manual solution promote the solution into the
learned corpus.

Example input:
  {
    "question": "kettle won't turn on after descaling",
    "answer": "Check that the base contacts are dry...",
    "rating": 5,
    "manual_solution": "Dry the base contacts and reseat the kettle.",
    "agent_id": "agent-42",
    "brand": "BrewMaster",
    "product_category": "kettle"
  }

Examples:
  # Submit from a file
  supportctl feedback feedback.json

  # Submit from stdin
  cat feedback.json | supportctl feedback -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFeedback,
}

// seedCmd loads reference documents from a file or stdin
var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Seed reference documents from a JSON file or stdin",
	Long: `Seed curated reference documents into the supportd reference corpus.

The input is a JSON document with a "documents" array. Each document
carries a question, its solution, and optional product metadata.

Example input:
  {
    "documents": [
      {
        "question": "How do I descale my kettle?",
        "solution": "Fill with equal parts water and vinegar...",
        "brand": "BrewMaster",
        "product_category": "kettle",
        "doc_type": "faq"
      }
    ]
  }

Examples:
  # Seed from a file
  supportctl seed reference.json

  # Seed from stdin
  cat reference.json | supportctl seed -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

// statsCmd prints corpus and feedback statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and feedback statistics",
	Long: `Show document counts for both knowledge corpora, feedback event
statistics, and the generation provider status.

Examples:
  # Show statistics
  supportctl stats

  # Show statistics from a different server
  supportctl stats --server http://localhost:9090`,
	RunE: runStats,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check supportd server health",
	Long: `Check the health status of the supportd HTTP server.

Examples:
  # Check health
  supportctl health

  # Check health on a different server
  supportctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// QueryRequest matches internal/engine QueryRequest
type QueryRequest struct {
	Text    string            `json:"text"`
	Filters map[string]string `json:"filters,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

// QuerySource matches internal/engine Source
type QuerySource struct {
	ID     string  `json:"id"`
	Origin string  `json:"origin"`
	Score  float64 `json:"score"`
}

// QueryDegraded matches internal/engine Degraded
type QueryDegraded struct {
	Reference bool `json:"reference,omitempty"`
	Learned   bool `json:"learned,omitempty"`
}

// QueryResponse matches internal/engine QueryResponse
type QueryResponse struct {
	Answer      string        `json:"answer"`
	Confidence  float64       `json:"confidence"`
	IsValid     bool          `json:"is_valid"`
	Sources     []QuerySource `json:"sources"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Fallback    bool          `json:"fallback,omitempty"`
	Model       string        `json:"model,omitempty"`
	Degraded    QueryDegraded `json:"degraded"`
}

// FeedbackReceipt matches internal/feedback Receipt
type FeedbackReceipt struct {
	FeedbackID string `json:"feedback_id"`
	Outcome    string `json:"outcome"`
	RecordID   string `json:"record_id,omitempty"`
	Merged     bool   `json:"merged,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CorpusStats matches internal/engine CorpusStats
type CorpusStats struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Available  bool   `json:"available"`
}

// GenerationStats matches internal/engine GenerationStats
type GenerationStats struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
}

// FeedbackStats matches internal/feedback Stats
type FeedbackStats struct {
	TotalEvents      int            `json:"total_events"`
	ByOutcome        map[string]int `json:"by_outcome"`
	ByRating         map[string]int `json:"by_rating"`
	ByIssueCategory  map[string]int `json:"by_issue_category"`
	SatisfactionRate float64        `json:"satisfaction_rate"`
}

// StatsResponse matches internal/engine StatsReport
type StatsResponse struct {
	Reference  CorpusStats     `json:"reference"`
	Learned    CorpusStats     `json:"learned"`
	Feedback   FeedbackStats   `json:"feedback"`
	Generation GenerationStats `json:"generation"`
}

// HealthResponse matches internal/engine HealthReport
type HealthResponse struct {
	Status     string `json:"status"`
	Reference  bool   `json:"reference"`
	Learned    bool   `json:"learned"`
	Generation bool   `json:"generation"`
}

// SeedRequest matches internal/http/server.go SeedRequest
type SeedRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

// SeedResponse matches internal/engine SeedReport
type SeedResponse struct {
	Seeded   int      `json:"seeded"`
	IDs      []string `json:"ids"`
	Warnings []string `json:"warnings,omitempty"`
}

// postJSON sends a JSON request to the server and decodes the response into out
func postJSON(path string, body, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s%s", serverURL, path)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// getJSON fetches a JSON response from the server into out
func getJSON(path string, out any) error {
	url := fmt.Sprintf("%s%s", serverURL, path)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// readInput reads content from a file argument or stdin when the argument is "-" or absent
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return content, nil
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return content, nil
}

// runQuery handles the query command
func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	reqBody := QueryRequest{
		Text:  question,
		Limit: queryLimit,
	}

	filters := make(map[string]string)
	if queryBrand != "" {
		filters["brand"] = queryBrand
	}
	if queryProductCategory != "" {
		filters["product_category"] = queryProductCategory
	}
	if queryIssueCategory != "" {
		filters["issue_category"] = queryIssueCategory
	}
	if len(filters) > 0 {
		reqBody.Filters = filters
	}

	var queryResp QueryResponse
	if err := postJSON("/api/v1/query", reqBody, &queryResp); err != nil {
		return err
	}

	fmt.Println(queryResp.Answer)

	if len(queryResp.Suggestions) > 0 {
		fmt.Println("\nRelated questions:")
		for _, suggestion := range queryResp.Suggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
	}

	fmt.Printf("\nConfidence: %.2f", queryResp.Confidence)
	if !queryResp.IsValid {
		fmt.Print(" (low)")
	}
	fmt.Println()

	if queryResp.Model != "" {
		fmt.Printf("Model: %s\n", queryResp.Model)
	}

	if len(queryResp.Sources) > 0 {
		fmt.Println("Sources:")
		for _, source := range queryResp.Sources {
			fmt.Printf("  %s  %s  score %.3f\n", source.ID, source.Origin, source.Score)
		}
	}

	if queryResp.Degraded.Reference || queryResp.Degraded.Learned {
		fmt.Fprintf(os.Stderr, "[supportctl] Warning: parts of the knowledge base were unreachable; the answer may be incomplete\n")
	}

	return nil
}

// runFeedback handles the feedback command
func runFeedback(cmd *cobra.Command, args []string) error {
	content, err := readInput(args)
	if err != nil {
		return err
	}

	if len(content) == 0 {
		return fmt.Errorf("no feedback to submit")
	}

	// Forward the JSON as-is so the server owns the validation
	var reqBody json.RawMessage = content

	var receipt FeedbackReceipt
	if err := postJSON("/api/v1/feedback", reqBody, &receipt); err != nil {
		return err
	}

	fmt.Printf("Feedback ID: %s\n", receipt.FeedbackID)
	fmt.Printf("Outcome: %s\n", receipt.Outcome)
	if receipt.RecordID != "" {
		if receipt.Merged {
			fmt.Printf("Merged into record: %s\n", receipt.RecordID)
		} else {
			fmt.Printf("New learned record: %s\n", receipt.RecordID)
		}
	}
	if receipt.Reason != "" {
		fmt.Printf("Reason: %s\n", receipt.Reason)
	}

	return nil
}

// runSeed handles the seed command
func runSeed(cmd *cobra.Command, args []string) error {
	content, err := readInput(args)
	if err != nil {
		return err
	}

	if len(content) == 0 {
		return fmt.Errorf("no documents to seed")
	}

	// Parse locally first so a malformed file fails before the network call
	var reqBody SeedRequest
	if err := json.Unmarshal(content, &reqBody); err != nil {
		return fmt.Errorf("failed to parse seed input: %w", err)
	}
	if len(reqBody.Documents) == 0 {
		return fmt.Errorf("seed input has no documents")
	}

	var seedResp SeedResponse
	if err := postJSON("/api/v1/reference", reqBody, &seedResp); err != nil {
		return err
	}

	fmt.Printf("Seeded %d document(s)\n", seedResp.Seeded)
	for _, id := range seedResp.IDs {
		fmt.Printf("  %s\n", id)
	}

	if len(seedResp.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "[supportctl] %d warning(s):\n", len(seedResp.Warnings))
		for _, warning := range seedResp.Warnings {
			fmt.Fprintf(os.Stderr, "  %s\n", warning)
		}
	}

	return nil
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	var stats StatsResponse
	if err := getJSON("/api/v1/stats", &stats); err != nil {
		return err
	}

	fmt.Printf("Reference Corpus: %d document(s) in %s (%s)\n",
		stats.Reference.Documents, stats.Reference.Collection, availability(stats.Reference.Available))
	fmt.Printf("Learned Corpus: %d document(s) in %s (%s)\n",
		stats.Learned.Documents, stats.Learned.Collection, availability(stats.Learned.Available))
	fmt.Printf("Generation: %s (%s)\n", stats.Generation.Provider, availability(stats.Generation.Available))

	fmt.Printf("Feedback Events: %d\n", stats.Feedback.TotalEvents)
	if stats.Feedback.TotalEvents > 0 {
		fmt.Printf("Satisfaction Rate: %.1f%%\n", stats.Feedback.SatisfactionRate*100)
		fmt.Printf("Promoted: %d\n", stats.Feedback.ByOutcome["promoted"])
		fmt.Printf("Logged Only: %d\n", stats.Feedback.ByOutcome["logged_only"])
	}

	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp HealthResponse
	if err := getJSON("/health", &healthResp); err != nil {
		return err
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Reference Corpus: %s\n", availability(healthResp.Reference))
	fmt.Printf("Learned Corpus: %s\n", availability(healthResp.Learned))
	fmt.Printf("Generation: %s\n", availability(healthResp.Generation))
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// availability renders a health flag for humans
func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
