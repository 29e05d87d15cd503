/**
 * Text classification for recognized frame text
 *
 * Decides two signals over OCR output: presence of a clock-like timestamp and
 * presence of a replay-indicator keyword. Pure string matching over an explicit
 * rule set so patterns and keywords can be swapped per locale without touching
 * the logic.
 */

package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultClockPattern matches H:MM:SS and HH:MM:SS wall-clock times with
// hours 0-23 and minutes/seconds 0-59, anywhere inside a line.
const DefaultClockPattern = `(?:[01]?[0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9]`

// DefaultKeywords mirror the original detector: the single character 播 is
// deliberately included so partially garbled OCR tokens such as 乘播 still
// count as a replay marker. ASCII keywords match case-insensitively.
var DefaultKeywords = []string{"播", "重播", "REPLAY"}

// RulesConfig is the on-disk (TOML) shape of a rule set.
type RulesConfig struct {
	ClockPattern string   `toml:"clock_pattern"`
	Keywords     []string `toml:"keywords"`
}

// Verdict carries the two classification flags for one set of lines.
type Verdict struct {
	HasTimestamp    bool
	HasReplayMarker bool
}

// Rules is a compiled classifier rule set.
type Rules struct {
	clock    *regexp.Regexp
	keywords []string
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	rules, err := NewRules(RulesConfig{})
	if err != nil {
		// The defaults are compile-time constants; this cannot fail.
		panic(err)
	}
	return rules
}

// NewRules compiles a rule set, filling empty fields from the defaults.
func NewRules(cfg RulesConfig) (*Rules, error) {
	pattern := cfg.ClockPattern
	if pattern == "" {
		pattern = DefaultClockPattern
	}

	clock, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid clock pattern %q: %w", pattern, err)
	}

	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	upper := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			upper = append(upper, strings.ToUpper(kw))
		}
	}
	if len(upper) == 0 {
		return nil, fmt.Errorf("keyword set is empty")
	}

	return &Rules{clock: clock, keywords: upper}, nil
}

// LoadRules reads a TOML rule file and compiles it.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var cfg RulesConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	return NewRules(cfg)
}

// Classify scans the lines for a clock timestamp and a replay keyword.
// Empty input yields a zero Verdict.
func (r *Rules) Classify(lines []string) Verdict {
	var v Verdict
	for _, line := range lines {
		if !v.HasTimestamp && r.clock.MatchString(line) {
			v.HasTimestamp = true
		}
		if !v.HasReplayMarker && r.matchesKeyword(line) {
			v.HasReplayMarker = true
		}
		if v.HasTimestamp && v.HasReplayMarker {
			break
		}
	}
	return v
}

func (r *Rules) matchesKeyword(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range r.keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
