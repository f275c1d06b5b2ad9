package generation

import "context"

// DisabledGenerator is the no-op generator used when no LLM is configured.
// Callers check Available() and fall back to excerpt-based answers.
type DisabledGenerator struct{}

// NewDisabledGenerator creates a generator that always declines.
func NewDisabledGenerator() *DisabledGenerator {
	return &DisabledGenerator{}
}

// Generate always fails with ErrGenerationUnavailable.
func (d *DisabledGenerator) Generate(_ context.Context, _ Request) (*Response, error) {
	return nil, ErrGenerationUnavailable
}

// Available reports false; no LLM is configured.
func (d *DisabledGenerator) Available() bool {
	return false
}

// Name identifies the provider.
func (d *DisabledGenerator) Name() string {
	return "disabled"
}

var _ Generator = (*DisabledGenerator)(nil)
