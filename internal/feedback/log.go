package feedback

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// ErrLogWrite indicates the append-only log could not be written. It is
// fatal for the feedback operation; the caller retries with the same
// FeedbackID.
var ErrLogWrite = errors.New("feedback log write failed")

// maxLineBytes bounds a single log line during the load scan.
const maxLineBytes = 1 << 20

// exportEventLimit bounds the events included in an export report.
const exportEventLimit = 50

// Line kinds in the log. An event line records a submission before any
// processing; a receipt line records its terminal outcome. An event
// without a receipt is an interrupted attempt and will be reprocessed
// on the next submission with the same FeedbackID.
const (
	lineKindEvent   = "event"
	lineKindReceipt = "receipt"
)

// logLine is the envelope for one JSONL line. Exactly one payload field
// is set, matching Kind.
type logLine struct {
	Kind    string   `json:"kind"`
	Event   *Event   `json:"event,omitempty"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

// Stats summarizes the feedback log.
type Stats struct {
	TotalEvents      int             `json:"total_events"`
	ByOutcome        map[Outcome]int `json:"by_outcome"`
	ByRating         map[int]int     `json:"by_rating"`
	ByIssueCategory  map[string]int  `json:"by_issue_category"`
	SatisfactionRate float64         `json:"satisfaction_rate"`
}

// Log is the durable, append-only record of every feedback submission.
//
// Events and receipts are one JSON object per line. The full history is
// scanned once at open to rebuild the seen-ID set and running stats;
// corrupted lines are skipped with a warning, never fatal. Every append
// is synced to disk before it is acknowledged.
type Log struct {
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	file      *os.File
	events    []Event
	byID      map[string]struct{}
	receipts  map[string]Receipt
	satisfied int
	byOutcome map[Outcome]int
	byRating  map[int]int
	byIssue   map[string]int
}

// Open opens or creates the log at path, replaying any existing
// history. A leading ~ expands to the user home directory and missing
// parent directories are created.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	expanded, err := expandLogPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	l := &Log{
		path:      expanded,
		logger:    logger,
		byID:      make(map[string]struct{}),
		receipts:  make(map[string]Receipt),
		byOutcome: make(map[Outcome]int),
		byRating:  make(map[int]int),
		byIssue:   make(map[string]int),
	}
	if err := l.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(expanded, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening feedback log: %w", err)
	}
	l.file = file

	logger.Info("feedback log opened",
		zap.String("path", expanded),
		zap.Int("events", len(l.events)),
		zap.Int("receipts", len(l.receipts)))
	return l, nil
}

// load replays the existing log into memory. Unreadable lines are
// counted and skipped so one corrupt line cannot take the service down.
func (l *Log) load() error {
	file, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading feedback log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)

	skipped := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ll logLine
		if err := json.Unmarshal(line, &ll); err != nil {
			skipped++
			continue
		}
		switch {
		case ll.Kind == lineKindEvent && ll.Event != nil:
			l.recordEvent(*ll.Event)
		case ll.Kind == lineKindReceipt && ll.Receipt != nil:
			l.recordReceipt(*ll.Receipt)
		default:
			skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning feedback log: %w", err)
	}

	if skipped > 0 {
		l.logger.Warn("skipped corrupted feedback log lines",
			zap.Int("lines", skipped),
			zap.String("path", l.path))
	}
	return nil
}

// Append durably records an event. The write is synced before it
// returns; any failure is ErrLogWrite and nothing downstream of the
// log may run for this event.
func (l *Log) Append(ctx context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeLine(logLine{Kind: lineKindEvent, Event: &event}); err != nil {
		return err
	}
	l.recordEvent(event)
	return nil
}

// AppendReceipt durably records the terminal outcome for an event.
func (l *Log) AppendReceipt(ctx context.Context, receipt Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeLine(logLine{Kind: lineKindReceipt, Receipt: &receipt}); err != nil {
		return err
	}
	l.recordReceipt(receipt)
	return nil
}

func (l *Log) writeLine(ll logLine) error {
	data, err := json.Marshal(ll)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return nil
}

// recordEvent folds an event into memory. Repeat appends of the same
// FeedbackID (client retries) count once.
func (l *Log) recordEvent(event Event) {
	if _, ok := l.byID[event.FeedbackID]; ok {
		return
	}
	l.byID[event.FeedbackID] = struct{}{}
	l.events = append(l.events, event)
	l.byRating[event.Rating]++
	if event.Satisfied() {
		l.satisfied++
	}
	if event.IssueCategory != "" {
		l.byIssue[event.IssueCategory]++
	}
}

// recordReceipt folds a receipt into memory. The first receipt for an
// ID wins; a terminal outcome never changes.
func (l *Log) recordReceipt(receipt Receipt) {
	if _, ok := l.receipts[receipt.FeedbackID]; ok {
		return
	}
	l.receipts[receipt.FeedbackID] = receipt
	l.byOutcome[receipt.Outcome]++
}

// Outcome returns the recorded terminal receipt for a feedback ID.
func (l *Log) Outcome(feedbackID string) (Receipt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.receipts[feedbackID]
	return r, ok
}

// Stats returns a snapshot of the running totals.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statsLocked()
}

func (l *Log) statsLocked() Stats {
	stats := Stats{
		TotalEvents:     len(l.events),
		ByOutcome:       maps.Clone(l.byOutcome),
		ByRating:        maps.Clone(l.byRating),
		ByIssueCategory: maps.Clone(l.byIssue),
	}
	if stats.TotalEvents > 0 {
		stats.SatisfactionRate = float64(l.satisfied) / float64(stats.TotalEvents)
	}
	return stats
}

// SearchSimilar ranks logged events by lexical overlap between query
// and each event's question text, most similar first. It needs no
// embedding provider, so operator tooling keeps working when the
// vector path is down.
func (l *Log) SearchSimilar(query string, limit int) []Event {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 || limit <= 0 {
		return nil
	}

	l.mu.Lock()
	events := make([]Event, len(l.events))
	copy(events, l.events)
	l.mu.Unlock()

	type match struct {
		event   Event
		overlap float64
	}
	var matches []match
	for _, ev := range events {
		overlap := tokenOverlap(queryTokens, tokenSet(ev.QueryText))
		if overlap > 0 {
			matches = append(matches, match{event: ev, overlap: overlap})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].overlap != matches[j].overlap {
			return matches[i].overlap > matches[j].overlap
		}
		return matches[i].event.Timestamp.After(matches[j].event.Timestamp)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]Event, len(matches))
	for i, m := range matches {
		out[i] = m.event
	}
	return out
}

// exportReport is the shape written by Export.
type exportReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Stats       Stats     `json:"stats"`
	Recent      []Event   `json:"recent_events"`
}

// Export writes an indented JSON report with stats and the most recent
// events. Free text was redacted before it was logged, so the report
// is shareable as-is.
func (l *Log) Export(w io.Writer) error {
	l.mu.Lock()
	stats := l.statsLocked()
	start := len(l.events) - exportEventLimit
	if start < 0 {
		start = 0
	}
	recent := make([]Event, len(l.events)-start)
	copy(recent, l.events[start:])
	l.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportReport{
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Recent:      recent,
	})
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// tokenSet lowercases text and returns its unique tokens longer than
// two characters.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// tokenOverlap is the fraction of query tokens present in the event.
func tokenOverlap(query, event map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if _, ok := event[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// expandLogPath expands ~ to the user home directory.
func expandLogPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
