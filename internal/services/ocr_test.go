package services

import (
	"math"
	"strings"
	"testing"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	600	800	-1
2	1	1	0	0	0	10	10	200	40	-1
5	1	1	1	1	1	10	10	40	30	96.5	2
5	1	1	1	1	2	60	10	20	30	91.0	+
5	1	1	1	1	3	90	10	40	30	88.5	3
5	1	1	1	1	4	140	10	30	30	-1
5	1	1	1	1	5	180	10	30	30	85.0
4	1	1	1	2	0	10	50	200	30	-1
`

func TestParseTesseractTSV(t *testing.T) {
	words := parseTesseractTSV(sampleTSV)
	if len(words) != 3 {
		t.Fatalf("got %d words, want 3 (non-word rows, negative conf and blank text must be dropped)", len(words))
	}
	if words[0].Text != "2" || words[1].Text != "+" || words[2].Text != "3" {
		t.Fatalf("unexpected words: %+v", words)
	}
	if words[0].Left != 10 || words[0].Top != 10 || words[0].Width != 40 || words[0].Height != 30 {
		t.Fatalf("unexpected box for first word: %+v", words[0])
	}
}

func TestAvgConfidence(t *testing.T) {
	tests := []struct {
		name  string
		words []OcrWord
		want  float64
	}{
		{"no words", nil, 0},
		{"single", []OcrWord{{Confidence: 80}}, 80},
		{"mean", []OcrWord{{Confidence: 90}, {Confidence: 70}}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := avgConfidence(tt.words); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("avgConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTesseractTSVEmpty(t *testing.T) {
	if words := parseTesseractTSV("header only\n"); len(words) != 0 {
		t.Fatalf("got %d words from empty tsv, want 0", len(words))
	}
	if got := avgConfidence(parseTesseractTSV("")); got != 0 {
		t.Fatalf("avg confidence of empty tsv = %v, want 0", got)
	}
}

func TestParseTesseractTSVIgnoresShortRows(t *testing.T) {
	tsv := "header\n5\t1\t1\n" + strings.Repeat("garbage\n", 3)
	if words := parseTesseractTSV(tsv); len(words) != 0 {
		t.Fatalf("got %d words, want 0", len(words))
	}
}
