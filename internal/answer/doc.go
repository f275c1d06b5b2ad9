// Package answer turns ranked knowledge candidates into a customer-ready
// draft.
//
// The assembler builds a context window from the top candidates, marking
// learned solutions apart from reference documentation, and asks the
// generation provider for a grounded answer under a hard timeout. When
// generation is disabled or fails, the top candidate's solution text is
// served as a fallback excerpt; assembly never returns an error once
// candidates exist. Every candidate that entered the context window gets
// a fire-and-forget usage increment.
package answer
