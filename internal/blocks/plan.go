package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// Plan is the editable configuration a list of [Spec]s is built from.
//
// In TOML each block is a [[block]] table with nested [[block.dimension]] tables:
//
//	name = "Evening"
//
//	[[block]]
//	name = "Warm up"
//	duration = 30
//
//	[[block.dimension]]
//	dimension = "energy"
//	order = "asc"
//	filter = { min = 0.2, max = 0.6 }
type Plan struct {
	Name   string        `toml:"name" json:"name,omitempty"`
	Public bool          `toml:"public" json:"public,omitempty"`
	Blocks []BlockConfig `toml:"block" json:"blocks"`
}

// BlockConfig is the configuration of a single block.
type BlockConfig struct {
	Name       string       `toml:"name" json:"name"`
	Duration   Minutes      `toml:"duration" json:"duration"`
	Dimensions []RuleConfig `toml:"dimension" json:"dimensions"`
}

// RuleConfig is the untyped form of a [Rule].
//
// Filter takes the shape its dimension expects: a list of star ratings for popularity,
// a {min, max} table for energy, danceability, valence and tempo,
// and a list of strings for key and genre. A missing filter passes everything through.
type RuleConfig struct {
	Dimension string `toml:"dimension" json:"dimension"`
	Order     string `toml:"order" json:"order,omitempty"`
	Filter    any    `toml:"filter" json:"filter,omitempty"`
}

// Minutes is a block budget. It decodes from a number or a numeric string;
// anything else decodes to NaN, which accepts no tracks.
type Minutes float64

func (m *Minutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*m = Minutes(math.NaN())
		return nil
	}
	*m = Minutes(toFloat(v))
	return nil
}

func (m Minutes) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalTOML implements [toml.Unmarshaler].
func (m *Minutes) UnmarshalTOML(v any) error {
	*m = Minutes(toFloat(v))
	return nil
}

// LoadPlan reads a TOML plan from path.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a TOML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse plan: %v", shared.ErrInvalidInput, err)
	}
	return &p, nil
}

// Specs validates the plan and builds a fresh list of specs from it.
func (p Plan) Specs() ([]Spec, error) {
	return BuildSpecs(p.Blocks)
}

// JSON serializes the plan for storage alongside a published arrangement.
func (p Plan) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// BuildSpecs converts block configurations into specs. Unnamed blocks are kept so positions line up.
func BuildSpecs(configs []BlockConfig) ([]Spec, error) {
	specs := make([]Spec, 0, len(configs))
	for i, bc := range configs {
		spec := Spec{Name: strings.TrimSpace(bc.Name), DurationMinutes: float64(bc.Duration)}
		for j, rc := range bc.Dimensions {
			rule, err := rc.Rule()
			if err != nil {
				return nil, fmt.Errorf("block %d, dimension %d: %w", i+1, j+1, err)
			}
			spec.Rules = append(spec.Rules, rule)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Rule validates the configuration and converts it into a [Rule].
func (rc RuleConfig) Rule() (Rule, error) {
	d, err := ParseDimension(rc.Dimension)
	if err != nil {
		return Rule{}, err
	}
	o, err := ParseOrder(rc.Order)
	if err != nil {
		return Rule{}, err
	}
	f, err := buildFilter(d, rc.Filter)
	if err != nil {
		return Rule{}, err
	}
	return NewRule(d, o, f)
}

func buildFilter(d Dimension, raw any) (Filter, error) {
	if raw == nil {
		return nil, nil
	}

	switch d {
	case Popularity:
		values, ok := toSlice(raw)
		if !ok {
			return nil, fmt.Errorf("%w: popularity filter must be a list of star ratings", shared.ErrInvalidInput)
		}
		stars := make([]int, 0, len(values))
		for _, v := range values {
			f := toFloat(v)
			if math.IsNaN(f) || f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: star rating %v is not a whole number", shared.ErrInvalidInput, v)
			}
			stars = append(stars, int(f))
		}
		return StarFilter{Stars: stars}, nil
	case Energy, Danceability, Valence, Tempo:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s filter must be a {min, max} table", shared.ErrInvalidInput, d)
		}
		lo, err := bound(m, "min", math.Inf(-1))
		if err != nil {
			return nil, err
		}
		hi, err := bound(m, "max", math.Inf(1))
		if err != nil {
			return nil, err
		}
		return RangeFilter{Dimension: d, Min: lo, Max: hi}, nil
	case Key:
		labels, ok := toStrings(raw)
		if !ok {
			return nil, fmt.Errorf("%w: key filter must be a list of key labels", shared.ErrInvalidInput)
		}
		for i, l := range labels {
			idx := models.KeyIndex(l)
			if idx == models.NoKey {
				return nil, fmt.Errorf("%w: unknown key label %q", shared.ErrInvalidInput, l)
			}
			labels[i] = models.KeyLabels[idx]
		}
		return KeyFilter{Labels: labels}, nil
	case Genre:
		genres, ok := toStrings(raw)
		if !ok {
			return nil, fmt.Errorf("%w: genre filter must be a list of genres", shared.ErrInvalidInput)
		}
		return GenreFilter{Genres: genres}, nil
	}
	return nil, fmt.Errorf("%w: unknown dimension %q", shared.ErrInvalidInput, d)
}

func bound(m map[string]any, key string, def float64) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	f := toFloat(v)
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %s must be a number, got %v", shared.ErrInvalidInput, key, v)
	}
	return f, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []int:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...), true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}
