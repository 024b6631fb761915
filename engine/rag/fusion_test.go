package rag

import (
	"testing"

	"github.com/polyrag/polyrag/engine/semantic"
)

func lane(ids ...string) []semantic.Hit {
	out := make([]semantic.Hit, len(ids))
	for i, id := range ids {
		out[i] = semantic.Hit{ID: id, Text: "text " + id}
	}
	return out
}

func fusedIDs(hits []semantic.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestFuseRRFTwoLanes(t *testing.T) {
	// a and b each appear at ranks 1 and 2, so their scores tie; the
	// tie breaks by ID. Same for c and d at rank 3.
	got := fusedIDs(fuseRRF([][]semantic.Hit{
		lane("a", "b", "c"),
		lane("b", "a", "d"),
	}, 60, 10))

	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFuseRRFBothLanesBeatsOne(t *testing.T) {
	// b appears in both lanes at rank 2; a leads only one lane. b's
	// summed score must win.
	got := fusedIDs(fuseRRF([][]semantic.Hit{
		lane("a", "b"),
		lane("c", "b"),
	}, 60, 10))

	if got[0] != "b" {
		t.Errorf("order = %v, want b first", got)
	}
}

func TestFuseRRFTieBreakByBestRank(t *testing.T) {
	// z and m tie on score (single appearance at rank 1 each in different
	// lanes is equal); a rank-1 vs rank-1 tie falls through to ID. But a
	// rank-1 single hit must beat a rank-2 single hit regardless of ID.
	got := fusedIDs(fuseRRF([][]semantic.Hit{
		lane("z"),
		lane("x", "a"),
	}, 60, 10))

	// z: 1/61, x: 1/61, a: 1/62. x before z by ID; a last by score.
	want := []string{"x", "z", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFuseRRFDeterministicUnderLaneSwap(t *testing.T) {
	l1 := lane("a", "b", "c")
	l2 := lane("b", "a", "d")

	fwd := fusedIDs(fuseRRF([][]semantic.Hit{l1, l2}, 60, 10))
	rev := fusedIDs(fuseRRF([][]semantic.Hit{l2, l1}, 60, 10))

	for i := range fwd {
		if fwd[i] != rev[i] {
			t.Fatalf("lane order changed fusion: %v vs %v", fwd, rev)
		}
	}
}

func TestFuseRRFTopK(t *testing.T) {
	got := fuseRRF([][]semantic.Hit{lane("a", "b", "c", "d", "e")}, 60, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestFuseRRFScores(t *testing.T) {
	got := fuseRRF([][]semantic.Hit{
		lane("a"),
		lane("a"),
	}, 60, 10)

	want := float32(2.0 / 61.0)
	if got[0].Score != want {
		t.Errorf("score = %v, want %v", got[0].Score, want)
	}
}

func TestFuseRRFEmpty(t *testing.T) {
	if got := fuseRRF(nil, 60, 5); len(got) != 0 {
		t.Errorf("got %v", got)
	}
	if got := fuseRRF([][]semantic.Hit{{}, {}}, 60, 5); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestFuseRRFKeepsPayload(t *testing.T) {
	withPayload := []semantic.Hit{{ID: "a", Path: "/x.txt", Text: "body"}}
	bare := []semantic.Hit{{ID: "a"}}

	got := fuseRRF([][]semantic.Hit{bare, withPayload}, 60, 5)
	if got[0].Text != "body" || got[0].Path != "/x.txt" {
		t.Errorf("payload lost in fusion: %+v", got[0])
	}
}
