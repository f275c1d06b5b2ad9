package redact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

// previewLength is how many characters of a redacted value survive in
// the marker. Enough for an operator to match the marker back to the
// source system, not enough to reconstruct the secret.
const previewLength = 4

// Scrubber removes credentials from free text.
type Scrubber interface {
	// Scrub replaces detected credentials in text with redaction markers.
	Scrub(ctx context.Context, text string) string

	// Check reports whether text contains a detectable credential.
	Check(text string) bool

	// Enabled reports whether scrubbing is active.
	Enabled() bool
}

// Config controls the scrubber.
type Config struct {
	// Disabled turns redaction into a pass-through.
	Disabled bool

	// AllowlistPath is an optional TOML file with allowlisted patterns.
	AllowlistPath string
}

// FromAppConfig maps the application feedback section onto a Config.
func FromAppConfig(appCfg *config.Config) Config {
	return Config{
		Disabled:      appCfg.Feedback.DisableRedaction,
		AllowlistPath: appCfg.Feedback.AllowlistPath,
	}
}

// New builds a Scrubber from cfg. Disabled configurations get a
// pass-through scrubber so callers never branch on the setting.
func New(cfg Config, logger *zap.Logger) (Scrubber, error) {
	if cfg.Disabled {
		if logger != nil {
			logger.Info("feedback redaction disabled by configuration")
		}
		return NewNoop(), nil
	}
	return NewRedactor(cfg, logger)
}

// Redactor detects credentials with the Gitleaks rule set and replaces
// them with redaction markers. Safe for concurrent use.
type Redactor struct {
	detector *detect.Detector
	logger   *zap.Logger
	metrics  *Metrics
}

var _ Scrubber = (*Redactor)(nil)

// NewRedactor builds a Redactor. The detector and allowlist are
// prepared once here so per-call scrubbing stays cheap.
func NewRedactor(cfg Config, logger *zap.Logger) (*Redactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building credential detector: %w", err)
	}

	if cfg.AllowlistPath != "" {
		allow, err := LoadAllowlist(cfg.AllowlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading allowlist: %w", err)
		}
		if allow == nil {
			logger.Warn("redaction allowlist file not found, continuing without it",
				zap.String("path", cfg.AllowlistPath))
		} else {
			applyAllowlist(&detector.Config, allow)
			logger.Info("redaction allowlist loaded",
				zap.String("path", cfg.AllowlistPath),
				zap.Int("regexes", len(allow.Regexes)),
				zap.Int("stopwords", len(allow.Stopwords)))
		}
	}

	return &Redactor{
		detector: detector,
		logger:   logger,
		metrics:  NewMetrics(logger),
	}, nil
}

// Scrub replaces every detected credential in text with a
// [REDACTED:rule-id:preview] marker. Text without findings is returned
// unchanged.
func (r *Redactor) Scrub(ctx context.Context, text string) string {
	if text == "" {
		return text
	}

	start := time.Now()
	findings := r.detect(text)
	r.metrics.RecordScrub(ctx, time.Since(start), len(findings))
	if len(findings) == 0 {
		return text
	}

	rules := make([]string, 0, len(findings))
	for _, f := range findings {
		rules = append(rules, f.ruleID)
		r.metrics.RecordFinding(ctx, f.ruleID)
	}
	r.logger.Debug("redacted credentials from feedback text",
		zap.Int("findings", len(findings)),
		zap.Strings("rules", rules))

	return replaceSecrets(text, findings)
}

// Check reports whether text contains a detectable credential.
func (r *Redactor) Check(text string) bool {
	if text == "" {
		return false
	}
	return len(r.detect(text)) > 0
}

// Enabled reports whether scrubbing is active.
func (r *Redactor) Enabled() bool { return true }

// finding is one distinct credential value found in a text.
type finding struct {
	ruleID string
	secret string
}

// detect runs the Gitleaks scan and keeps one finding per distinct
// secret value. Two rules matching the same value collapse into the
// first, which keeps replacement deterministic.
func (r *Redactor) detect(text string) []finding {
	seen := make(map[string]struct{})
	var findings []finding
	for _, f := range r.detector.DetectString(text) {
		if f.Secret == "" {
			continue
		}
		if _, ok := seen[f.Secret]; ok {
			continue
		}
		seen[f.Secret] = struct{}{}
		findings = append(findings, finding{ruleID: f.RuleID, secret: f.Secret})
	}
	return findings
}

// replaceSecrets substitutes markers by secret value rather than by
// reported position. Scanner line and column offsets do not survive
// earlier substitutions; value replacement does, and it also catches a
// secret pasted more than once.
func replaceSecrets(text string, findings []finding) string {
	// Longer secrets first so a value containing a shorter finding is
	// replaced intact.
	sorted := make([]finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].secret) > len(sorted[j].secret)
	})

	for _, f := range sorted {
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.ruleID, preview(f.secret, previewLength))
		text = strings.ReplaceAll(text, f.secret, marker)
	}
	return text
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// NoopScrubber passes text through untouched. Used when redaction is
// disabled by configuration.
type NoopScrubber struct{}

var _ Scrubber = (*NoopScrubber)(nil)

// NewNoop returns a pass-through scrubber.
func NewNoop() *NoopScrubber { return &NoopScrubber{} }

// Scrub returns text unchanged.
func (*NoopScrubber) Scrub(_ context.Context, text string) string { return text }

// Check always reports false.
func (*NoopScrubber) Check(string) bool { return false }

// Enabled always reports false.
func (*NoopScrubber) Enabled() bool { return false }
