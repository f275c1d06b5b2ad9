package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedback", "events.jsonl")
	log, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func logEvent(id, query string, rating int) Event {
	return Event{
		FeedbackID: id,
		Timestamp:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		QueryText:  query,
		AnswerText: "try holding the reset button",
		Rating:     rating,
	}
}

func TestOpen_CreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "events.jsonl")

	log, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_ExpandsHomePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	log, err := Open("~/supportd-test/events.jsonl", zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	_, err = os.Stat(filepath.Join(home, "supportd-test", "events.jsonl"))
	assert.NoError(t, err)
}

func TestLog_AppendAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")

	log, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, logEvent("fb-1", "earbuds will not pair", 5)))
	require.NoError(t, log.Append(ctx, logEvent("fb-2", "battery drains fast", 2)))
	require.NoError(t, log.AppendReceipt(ctx, Receipt{
		FeedbackID: "fb-1",
		Outcome:    OutcomePromoted,
		RecordID:   "rec-1",
	}))
	require.NoError(t, log.Close())

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reloaded.Close()

	stats := reloaded.Stats()
	assert.Equal(t, 2, stats.TotalEvents)
	assert.Equal(t, 1, stats.ByRating[5])
	assert.Equal(t, 1, stats.ByRating[2])
	assert.Equal(t, 1, stats.ByOutcome[OutcomePromoted])

	receipt, ok := reloaded.Outcome("fb-1")
	require.True(t, ok)
	assert.Equal(t, OutcomePromoted, receipt.Outcome)
	assert.Equal(t, "rec-1", receipt.RecordID)

	_, ok = reloaded.Outcome("fb-2")
	assert.False(t, ok)
}

func TestLog_DuplicateEventCountsOnce(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	event := logEvent("fb-dup", "no sound from left earbud", 4)
	require.NoError(t, log.Append(ctx, event))
	require.NoError(t, log.Append(ctx, event))

	stats := log.Stats()
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 1, stats.ByRating[4])
}

func TestLog_ReceiptFirstWins(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	require.NoError(t, log.AppendReceipt(ctx, Receipt{FeedbackID: "fb-1", Outcome: OutcomePromoted}))
	require.NoError(t, log.AppendReceipt(ctx, Receipt{FeedbackID: "fb-1", Outcome: OutcomeLoggedOnly}))

	receipt, ok := log.Outcome("fb-1")
	require.True(t, ok)
	assert.Equal(t, OutcomePromoted, receipt.Outcome)

	stats := log.Stats()
	assert.Equal(t, 1, stats.ByOutcome[OutcomePromoted])
	assert.Zero(t, stats.ByOutcome[OutcomeLoggedOnly])
}

func TestOpen_SkipsCorruptedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	good, err := json.Marshal(logLine{Kind: lineKindEvent, Event: &Event{
		FeedbackID: "fb-ok",
		QueryText:  "remote stopped responding",
		AnswerText: "replace the batteries",
		Rating:     5,
	}})
	require.NoError(t, err)

	content := string(good) + "\n" +
		"{this is not json\n" +
		`{"kind":"event"}` + "\n" + // kind without payload
		`{"kind":"receipt","receipt":{"feedback_id":"fb-ok","outcome":"promoted"}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	log, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer log.Close()

	stats := log.Stats()
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 1, stats.ByOutcome[OutcomePromoted])
}

func TestLog_Stats(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	first := logEvent("fb-1", "hdmi port loose", 5)
	first.IssueCategory = "hardware"
	second := logEvent("fb-2", "app crashes on launch", 4)
	second.IssueCategory = "software"
	third := logEvent("fb-3", "subtitles out of sync", 2)
	third.IssueCategory = "software"

	for _, e := range []Event{first, second, third} {
		require.NoError(t, log.Append(ctx, e))
	}

	stats := log.Stats()
	assert.Equal(t, 3, stats.TotalEvents)
	assert.InDelta(t, 2.0/3.0, stats.SatisfactionRate, 1e-9)
	assert.Equal(t, 1, stats.ByIssueCategory["hardware"])
	assert.Equal(t, 2, stats.ByIssueCategory["software"])
}

func TestLog_StatsEmpty(t *testing.T) {
	log := openTestLog(t)

	stats := log.Stats()
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.SatisfactionRate)
}

func TestLog_SearchSimilar(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	require.NoError(t, log.Append(ctx, logEvent("fb-1", "bluetooth pairing fails on my earbuds", 3)))
	require.NoError(t, log.Append(ctx, logEvent("fb-2", "battery drains overnight", 2)))
	require.NoError(t, log.Append(ctx, logEvent("fb-3", "bluetooth audio stutters", 4)))

	results := log.SearchSimilar("bluetooth pairing issue", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "fb-1", results[0].FeedbackID)
	assert.Equal(t, "fb-3", results[1].FeedbackID)

	limited := log.SearchSimilar("bluetooth pairing issue", 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "fb-1", limited[0].FeedbackID)

	assert.Empty(t, log.SearchSimilar("warranty claim", 10))
	assert.Nil(t, log.SearchSimilar("", 10))
	assert.Nil(t, log.SearchSimilar("bluetooth", 0))
}

func TestLog_SearchSimilarPrefersNewerOnTie(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	older := logEvent("fb-old", "screen flickers randomly", 3)
	older.Timestamp = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := logEvent("fb-new", "screen flickers randomly", 3)
	newer.Timestamp = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, older))
	require.NoError(t, log.Append(ctx, newer))

	results := log.SearchSimilar("screen flickers", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "fb-new", results[0].FeedbackID)
}

func TestLog_Export(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)

	require.NoError(t, log.Append(ctx, logEvent("fb-1", "soundbar will not turn on", 5)))
	require.NoError(t, log.Append(ctx, logEvent("fb-2", "remote lag", 3)))
	require.NoError(t, log.AppendReceipt(ctx, Receipt{FeedbackID: "fb-1", Outcome: OutcomePromoted}))

	var buf bytes.Buffer
	require.NoError(t, log.Export(&buf))

	var report exportReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 2, report.Stats.TotalEvents)
	assert.Len(t, report.Recent, 2)
	assert.Equal(t, "fb-1", report.Recent[0].FeedbackID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestLog_AppendAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")

	log, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	err = log.Append(ctx, logEvent("fb-1", "device bricked after update", 1))
	require.ErrorIs(t, err, ErrLogWrite)
}

func TestTokenSet(t *testing.T) {
	set := tokenSet("Wi-Fi won't connect!")
	assert.Equal(t, map[string]struct{}{
		"won":     {},
		"connect": {},
	}, set)

	assert.Empty(t, tokenSet("a an to"))
	assert.Empty(t, tokenSet(""))
}

func TestTokenOverlap(t *testing.T) {
	query := tokenSet("bluetooth pairing issue")
	assert.InDelta(t, 2.0/3.0, tokenOverlap(query, tokenSet("bluetooth pairing broken")), 1e-9)
	assert.Zero(t, tokenOverlap(query, tokenSet("battery drains")))
	assert.Zero(t, tokenOverlap(tokenSet(""), tokenSet("anything here")))
}

func TestExpandLogPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	expanded, err := expandLogPath("~/supportd/events.jsonl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "supportd", "events.jsonl"), expanded)

	absolute := filepath.Join(t.TempDir(), "events.jsonl")
	expanded, err = expandLogPath(absolute)
	require.NoError(t, err)
	assert.Equal(t, absolute, expanded)
}
