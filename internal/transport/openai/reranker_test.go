package openai

import (
	"errors"
	"strings"
	"testing"

	"github.com/mnemo-dev/mnemo/internal/domain"
)

func TestParseScores(t *testing.T) {
	raw := `{"scores": [{"index": 0, "score": 0.95}, {"index": 2, "score": 0.4}]}`
	scores, err := parseScores(raw, 3)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if scores[0] != 0.95 || scores[2] != 0.4 {
		t.Errorf("scores = %v", scores)
	}
	if scores[1] != -1 {
		t.Errorf("unscored index = %v, want -1 sentinel", scores[1])
	}
}

func TestParseScores_OutOfRangeIndexIgnored(t *testing.T) {
	raw := `{"scores": [{"index": 7, "score": 0.9}, {"index": -1, "score": 0.9}]}`
	scores, err := parseScores(raw, 2)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	for i, s := range scores {
		if s != -1 {
			t.Errorf("scores[%d] = %v, want untouched sentinel", i, s)
		}
	}
}

func TestParseScores_Clamped(t *testing.T) {
	raw := `{"scores": [{"index": 0, "score": 3.5}, {"index": 1, "score": -2}]}`
	scores, err := parseScores(raw, 2)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if scores[0] != 1.0 || scores[1] != 0.0 {
		t.Errorf("scores = %v, want clamped to [0,1]", scores)
	}
}

func TestParseScores_Garbage(t *testing.T) {
	_, err := parseScores("no json here", 2)
	if !errors.Is(err, domain.ErrRerankUnavailable) {
		t.Fatalf("expected ErrRerankUnavailable, got %v", err)
	}
}

func TestSnippet(t *testing.T) {
	short := "short document"
	if got := snippet(short); got != short {
		t.Errorf("snippet(%q) = %q", short, got)
	}

	long := strings.Repeat("x", snippetLen+50)
	got := snippet(long)
	if len(got) != snippetLen+3 {
		t.Errorf("snippet length = %d, want %d", len(got), snippetLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated snippet must end with ellipsis")
	}
}
