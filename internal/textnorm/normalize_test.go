package textnorm

import (
	"strings"
	"testing"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return n
}

func TestNormalizeEmpty(t *testing.T) {
	n := newNormalizer(t)

	tests := []string{"", "   ", "\t\n  \t"}
	for _, input := range tests {
		if got := n.Normalize(input); got != "" {
			t.Errorf("Normalize(%q) = %q, want empty", input, got)
		}
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	n := newNormalizer(t)

	got := n.Normalize("solve   the\t\tequation\n now")
	if strings.Contains(got, "  ") {
		t.Errorf("Normalize() left a whitespace run: %q", got)
	}
}

func TestNormalizeKeepsImportantSymbols(t *testing.T) {
	n := newNormalizer(t)

	got := n.Normalize("2x + 3 = 7")
	for _, want := range []string{"+", "="} {
		if !strings.Contains(got, want) {
			t.Errorf("Normalize(%q) = %q, missing symbol %q", "2x + 3 = 7", got, want)
		}
	}
}

func TestNormalizeDropsPunctuation(t *testing.T) {
	n := newNormalizer(t)

	got := n.Normalize("方程，求解。！？")
	for _, bad := range []string{"，", "。", "！", "？"} {
		if strings.Contains(got, bad) {
			t.Errorf("Normalize() kept punctuation %q in %q", bad, got)
		}
	}
	if !strings.Contains(got, "方程") {
		t.Errorf("Normalize() dropped content token: %q", got)
	}
}

func TestNormalizeChineseSegmentation(t *testing.T) {
	n := newNormalizer(t)

	tokens := n.Tokens("解一元一次方程：2x + 3 = 7，求x的值")
	if len(tokens) == 0 {
		t.Fatal("Tokens() returned nothing for a real question")
	}

	joined := strings.Join(tokens, " ")
	if !strings.Contains(joined, "方程") {
		t.Errorf("Tokens() = %v, expected 方程 to survive segmentation", tokens)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := newNormalizer(t)

	input := "解一元一次方程：2x + 3 = 7，求x的值"
	first := n.Normalize(input)
	for i := 0; i < 5; i++ {
		if got := n.Normalize(input); got != first {
			t.Fatalf("Normalize() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKeepToken(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"abc", true},
		{"x2", true},
		{"方程", true},
		// single CJK rune counts as alphanumeric
		{"的", true},
		// retained math symbols
		{"=", true},
		{"≥", true},
		{",", false},
		{"。", false},
		// multi-rune punctuation survives the length rule
		{"?!", true},
	}

	for _, tt := range tests {
		if got := keepToken(tt.tok); got != tt.want {
			t.Errorf("keepToken(%q) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}
