package redact

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var (
	// ErrInvalidAllowlist indicates the allowlist file could not be parsed.
	ErrInvalidAllowlist = errors.New("invalid allowlist file")

	// ErrInvalidPattern indicates an allowlist regex failed to compile.
	ErrInvalidPattern = errors.New("invalid allowlist pattern")
)

// Allowlist holds patterns excluded from credential detection.
// Feedback text regularly quotes documentation placeholders and demo
// keys; allowlisting them keeps the event log readable.
type Allowlist struct {
	Regexes   []string
	Stopwords []string
}

// LoadAllowlist reads a TOML allowlist file. A missing file returns
// (nil, nil) so deployments can configure the path before shipping the
// file. Invalid TOML or regex patterns are errors.
//
// File format:
//
//	[allowlist]
//	regexes   = ["DEMO-KEY-[0-9]+"]
//	stopwords = ["placeholder"]
func LoadAllowlist(path string) (*Allowlist, error) {
	var doc struct {
		Allowlist struct {
			Regexes   []string `toml:"regexes"`
			Stopwords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAllowlist, path, err)
	}

	// Validate patterns fail-fast so a bad file is caught at startup,
	// not on the first scrub.
	for _, pattern := range doc.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidPattern, pattern, path, err)
		}
	}

	return &Allowlist{
		Regexes:   doc.Allowlist.Regexes,
		Stopwords: doc.Allowlist.Stopwords,
	}, nil
}

// applyAllowlist registers the allowlist with the detector as a global
// exclusion. LoadAllowlist already validated the patterns.
func applyAllowlist(cfg *gitleaksConfig.Config, allow *Allowlist) {
	global := &gitleaksConfig.Allowlist{
		Description: "supportd feedback allowlist",
		StopWords:   allow.Stopwords,
	}
	for _, pattern := range allow.Regexes {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
