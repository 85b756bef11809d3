package shared

import (
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "basic normalization", in: "Morning Run", want: "morning run"},
		{name: "extra whitespace", in: "  Morning   Run  ", want: "morning run"},
		{name: "mixed case", in: "MoRnInG rUn", want: "morning run"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"Workout Mix", "Morning Run", "Dinner Jazz"}

	t.Run("exact match", func(t *testing.T) {
		if got := BestMatch("morning run", candidates); got != 1 {
			t.Errorf("expected index 1, got %d", got)
		}
	})

	t.Run("near match", func(t *testing.T) {
		if got := BestMatch("Dinner Jaz", candidates); got != 2 {
			t.Errorf("expected index 2, got %d", got)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if got := BestMatch("zzzz", candidates); got != -1 {
			t.Errorf("expected -1, got %d", got)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if got := BestMatch("   ", candidates); got != -1 {
			t.Errorf("expected -1, got %d", got)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int
		want string
	}{
		{ms: 0, want: "0:00"},
		{ms: 61_000, want: "1:01"},
		{ms: 3_600_000, want: "1:00:00"},
		{ms: 3_725_000, want: "1:02:05"},
		{ms: -5, want: "0:00"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.ms); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := FormatMinutes(12.345); got != "12.3" {
		t.Errorf("expected 12.3, got %s", got)
	}
	if got := FormatMinutes(60); got != "60" {
		t.Errorf("expected 60, got %s", got)
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()

	if a == b {
		t.Error("expected distinct states")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("state should be URL safe, got %q", a)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]string{"q": "a&b"}

	t.Run("compact", func(t *testing.T) {
		data, err := MarshalJSON(v, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"q":"a&b"}` {
			t.Errorf("unexpected output: %s", data)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		data, err := MarshalJSON(v, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(data), "\n  \"q\"") {
			t.Errorf("expected indented output, got %s", data)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()

	getRuntime = func() string { return "plan9" }
	if err := OpenBrowser("http://example.com"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}
