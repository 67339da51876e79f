package job

import (
	"errors"
	"testing"

	"scribe/internal/media"
)

func TestSummaryUnresolvedKeepsLastFailure(t *testing.T) {
	a := media.File{Path: "/in/a.wav"}
	b := media.File{Path: "/in/b.wav"}
	var results Results
	results.Add(Outcome{File: a, Attempt: 1, Err: errors.New("boom")})
	results.Add(Outcome{File: b, Attempt: 1, Err: errors.New("boom")})
	results.Add(Outcome{File: a, Attempt: 2, Success: true})
	results.Add(Outcome{File: b, Attempt: 2, Err: errors.New("still broken")})

	summary := results.Summary()
	if summary.Processed != 1 || summary.Failed != 3 || summary.Total() != 4 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	unresolved := summary.Unresolved()
	if len(unresolved) != 1 {
		t.Fatalf("expected one unresolved file, got %d", len(unresolved))
	}
	if unresolved[0].File.Path != b.Path || unresolved[0].Attempt != 2 {
		t.Fatalf("unexpected unresolved outcome: %+v", unresolved[0])
	}
}
