package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyTimestamp(t *testing.T) {
	rules := DefaultRules()

	testCases := []struct {
		name  string
		lines []string
		want  bool
	}{
		{"scoreboard clock", []string{"直播 14:30:25 秋季赛"}, true},
		{"single digit hour", []string{"9:05:59"}, true},
		{"midnight", []string{"00:00:00"}, true},
		{"last valid second", []string{"23:59:59"}, true},
		{"embedded in text", []string{"LIVE12:00:01NOW"}, true},
		{"second of several lines", []string{"周决赛", "时间 08:15:30"}, true},
		{"minutes out of range", []string{"12:60:00"}, false},
		{"seconds out of range", []string{"12:00:60"}, false},
		{"minutes and seconds only", []string{"45:12"}, false},
		{"no digits", []string{"直播中"}, false},
		{"empty input", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.Classify(tc.lines)
			if got.HasTimestamp != tc.want {
				t.Errorf("Classify(%q).HasTimestamp = %v, want %v", tc.lines, got.HasTimestamp, tc.want)
			}
		})
	}
}

func TestClassifyHourRange(t *testing.T) {
	rules := DefaultRules()

	// 24:30:25 is out of range as a 24-hour clock, but its trailing substring
	// 4:30:25 is a valid H:MM:SS, so substring matching still fires.
	got := rules.Classify([]string{"24:30:25"})
	if !got.HasTimestamp {
		t.Errorf("expected substring 4:30:25 inside 24:30:25 to match")
	}
}

func TestClassifyReplayMarker(t *testing.T) {
	rules := DefaultRules()

	testCases := []struct {
		name  string
		lines []string
		want  bool
	}{
		{"full keyword", []string{"重播"}, true},
		// The default set includes the single character 播, so a garbled
		// OCR token still counts as a replay marker.
		{"garbled partial token", []string{"乘播", "周决赛第2天"}, true},
		{"ascii upper", []string{"REPLAY"}, true},
		{"ascii lower", []string{"instant replay"}, true},
		{"ascii mixed", []string{"RePlay of round 2"}, true},
		{"no marker", []string{"直冒 14:30:25"}, false},
		{"empty input", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.Classify(tc.lines)
			if got.HasReplayMarker != tc.want {
				t.Errorf("Classify(%q).HasReplayMarker = %v, want %v", tc.lines, got.HasReplayMarker, tc.want)
			}
		})
	}
}

func TestClassifyBothSignals(t *testing.T) {
	rules := DefaultRules()

	got := rules.Classify([]string{"直播 14:30:25 秋季赛"})
	if !got.HasTimestamp || got.HasReplayMarker {
		t.Errorf("got %+v, want timestamp only", got)
	}

	got = rules.Classify([]string{"重播 14:30:25"})
	if !got.HasTimestamp || !got.HasReplayMarker {
		t.Errorf("got %+v, want both flags", got)
	}
}

func TestStrictKeywordConfiguration(t *testing.T) {
	// A deployment that wants only the full 重播 token configures it away
	// from the default single-character match.
	rules, err := NewRules(RulesConfig{Keywords: []string{"重播", "REPLAY"}})
	if err != nil {
		t.Fatalf("NewRules() error = %v", err)
	}

	if got := rules.Classify([]string{"乘播"}); got.HasReplayMarker {
		t.Errorf("strict rules matched partial token 乘播")
	}
	if got := rules.Classify([]string{"重播中"}); !got.HasReplayMarker {
		t.Errorf("strict rules missed full token 重播")
	}
}

func TestNewRulesRejectsBadPattern(t *testing.T) {
	if _, err := NewRules(RulesConfig{ClockPattern: "(["}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	content := "clock_pattern = '\\d{2}:\\d{2}'\nkeywords = ['REDIFF']\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	got := rules.Classify([]string{"rediff 14:30"})
	if !got.HasTimestamp || !got.HasReplayMarker {
		t.Errorf("got %+v, want both flags from custom rules", got)
	}

	if got := rules.Classify([]string{"重播"}); got.HasReplayMarker {
		t.Errorf("custom rules should replace the default keyword set")
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}
