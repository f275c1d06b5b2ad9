package answer

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/supportd/internal/knowledge"
)

const answerSystem = `You are a technical support assistant for consumer electronics.

Answer the customer's question using ONLY the provided context. Sources
marked [learned solution] are fixes previously validated by support agents
and take priority over [reference doc] sources. If the context does not
cover the question, say so clearly instead of guessing. Give step-by-step
instructions and name the specific settings, buttons, and error codes the
context provides. Keep a helpful, professional tone.`

// buildPrompt renders the context window and the customer question.
func buildPrompt(query string, window []knowledge.Candidate, excerptLen int) string {
	var b strings.Builder
	b.WriteString("Context from the knowledge base:\n\n")
	for i := range window {
		record := window[i].Record
		b.WriteString(sourceHeader(i+1, record))
		b.WriteByte('\n')
		if line := productLine(record); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("Q: ")
		b.WriteString(record.Question)
		b.WriteString("\nA: ")
		b.WriteString(excerpt(record.Solution, excerptLen))
		b.WriteString("\n\n")
	}
	b.WriteString("CUSTOMER QUESTION: ")
	b.WriteString(query)
	return b.String()
}

// sourceHeader marks each context entry by origin so the model can weigh
// agent-validated solutions over documentation.
func sourceHeader(n int, r *knowledge.Record) string {
	if r.Origin == knowledge.OriginLearned {
		return fmt.Sprintf("[learned solution %d | previously validated by a support agent]", n)
	}
	return fmt.Sprintf("[reference doc %d]", n)
}

// productLine renders the product metadata attached to a record.
func productLine(r *knowledge.Record) string {
	parts := make([]string, 0, 4)
	if r.Brand != "" {
		parts = append(parts, "Brand: "+r.Brand)
	}
	if r.ProductCategory != "" {
		parts = append(parts, "Product: "+r.ProductCategory)
	}
	if r.IssueCategory != "" {
		parts = append(parts, "Issue: "+r.IssueCategory)
	}
	if r.DocType != "" {
		parts = append(parts, "Type: "+string(r.DocType))
	}
	return strings.Join(parts, " | ")
}

// excerpt truncates text to limit runes, appending an ellipsis when
// anything was cut.
func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
