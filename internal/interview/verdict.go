package interview

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const maxScore = 10

// Verdict is the interviewer's final recommendation.
type Verdict struct {
	Recommend bool     `json:"recommend" yaml:"recommend" mapstructure:"recommend"`
	Score     float64  `json:"score" yaml:"score" mapstructure:"score"`
	Strengths []string `json:"strengths,omitempty" yaml:"strengths,omitempty" mapstructure:"strengths"`
	Concerns  []string `json:"concerns,omitempty" yaml:"concerns,omitempty" mapstructure:"concerns"`
	Summary   string   `json:"summary" yaml:"summary" mapstructure:"summary"`
	// Structured is false when the reply could not be decoded and Summary holds the raw text.
	Structured bool   `json:"structured" yaml:"structured" mapstructure:"-"`
	Raw        string `json:"-" yaml:"-" mapstructure:"-"`
}

// parseVerdict decodes the judgement reply. Models are loose with types, so
// "7" becomes 7, "true" becomes true and a lone string becomes a one-item list.
func parseVerdict(raw string) (*Verdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}

	var verdict Verdict
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &verdict,
	})
	if err != nil {
		return nil, fmt.Errorf("build verdict decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}

	verdict.Summary = strings.TrimSpace(verdict.Summary)
	verdict.Strengths = compact(verdict.Strengths)
	verdict.Concerns = compact(verdict.Concerns)
	if math.IsNaN(verdict.Score) || verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > maxScore {
		verdict.Score = maxScore
	}

	verdict.Structured = true
	verdict.Raw = raw
	return &verdict, nil
}

// unstructuredVerdict keeps a reply that could not be decoded so the
// candidate still sees the interviewer's judgement.
func unstructuredVerdict(raw string) *Verdict {
	return &Verdict{Summary: strings.TrimSpace(raw), Raw: raw}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		raw = raw[start : end+1]
	}

	return strings.TrimSpace(raw)
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
