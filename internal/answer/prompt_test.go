package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

func TestBuildPrompt(t *testing.T) {
	window := []knowledge.Candidate{
		learnedCandidate("lrn-1", 0.9),
		referenceCandidate("ref-1", 0.8),
	}

	prompt := buildPrompt("earbuds won't pair", window, 600)

	lrnIdx := strings.Index(prompt, "[learned solution 1")
	refIdx := strings.Index(prompt, "[reference doc 2]")
	qIdx := strings.Index(prompt, "CUSTOMER QUESTION: earbuds won't pair")

	assert.Greater(t, lrnIdx, -1)
	assert.Greater(t, refIdx, lrnIdx)
	assert.Greater(t, qIdx, refIdx)
	assert.Contains(t, prompt, "Q: Earbuds will not pair after the firmware update")
	assert.Contains(t, prompt, "A: Clear the Bluetooth cache on the phone")
	assert.Contains(t, prompt, "Type: user_manual")
}

func TestSourceHeader(t *testing.T) {
	learned := &knowledge.Record{Origin: knowledge.OriginLearned}
	assert.Equal(t, "[learned solution 3 | previously validated by a support agent]",
		sourceHeader(3, learned))

	reference := &knowledge.Record{Origin: knowledge.OriginReference}
	assert.Equal(t, "[reference doc 1]", sourceHeader(1, reference))
}

func TestProductLine(t *testing.T) {
	full := &knowledge.Record{
		Brand:           "SmartFridge",
		ProductCategory: "refrigerator",
		IssueCategory:   "cooling",
		DocType:         knowledge.DocTypeTroubleshooting,
	}
	assert.Equal(t,
		"Brand: SmartFridge | Product: refrigerator | Issue: cooling | Type: troubleshooting",
		productLine(full))

	assert.Equal(t, "", productLine(&knowledge.Record{}))
	assert.Equal(t, "Brand: SmartFridge", productLine(&knowledge.Record{Brand: "SmartFridge"}))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "exactly ten", excerpt("exactly ten", 11))
	assert.Equal(t, "truncated ...", excerpt("truncated text here", 10))

	// Rune-safe truncation of multibyte text.
	assert.Equal(t, "réglage...", excerpt("réglage du thermostat", 7))
}
