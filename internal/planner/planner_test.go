package planner

import (
	"testing"

	"github.com/chartdeck/chartdeck/internal/deck"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

func newTestPlanner(maxHistory int) *Planner {
	ess := deck.NewEssentials([]string{"D.json", "M.json"})
	return New(ess, "points.json", "after.json", maxHistory)
}

func fd(names ...string) []protocol.FileDescriptor {
	out := make([]protocol.FileDescriptor, len(names))
	for i, n := range names {
		out[i] = protocol.FileDescriptor{FileName: n}
	}
	return out
}

func TestClassify(t *testing.T) {
	p := newTestPlanner(3)
	tests := []struct {
		base string
		want Tier
	}{
		{"D.json", TierEssential},
		{"M.json", TierEssential},
		{"points.json", TierEssential},
		{"after.json", TierOutcome},
		{"Jan52024.json", TierHistory},
		{"Dec122023.json", TierHistory},
		{"Sep302021.json", TierHistory},
		{"January52024.json", TierRest},
		{"Jan2024.json", TierRest},
		{"notes.json", TierRest},
		{"W.json", TierRest},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.base); got != tt.want {
			t.Errorf("Classify(%q) = %d, want %d", tt.base, got, tt.want)
		}
	}
}

func TestPlan_TierOrder(t *testing.T) {
	p := newTestPlanner(3)
	plan := p.Plan(fd(
		"AAPL/Jan52024.json",
		"AAPL/after.json",
		"AAPL/notes.json",
		"AAPL/D.json",
		"AAPL/M.json",
	))

	if len(plan) != 5 {
		t.Fatalf("plan length = %d, want 5", len(plan))
	}
	lastTier := Tier(0)
	for _, f := range plan {
		tier := p.Classify(f.Base())
		if tier < lastTier {
			t.Fatalf("file %s (tier %d) planned after tier %d", f.FileName, tier, lastTier)
		}
		lastTier = tier
	}
}

func TestPlan_PreservesManifestOrderWithinTicker(t *testing.T) {
	p := newTestPlanner(3)
	plan := p.Plan(fd("AAPL/D.json", "AAPL/points.json", "AAPL/M.json"))

	want := []string{"AAPL/D.json", "AAPL/points.json", "AAPL/M.json"}
	for i, f := range plan {
		if f.FileName != want[i] {
			t.Errorf("plan[%d] = %s, want %s", i, f.FileName, want[i])
		}
	}
}

func TestPlan_HistoryCapDemotes(t *testing.T) {
	p := newTestPlanner(2)
	plan := p.Plan(fd(
		"AAPL/Jan52024.json",
		"AAPL/Feb52024.json",
		"AAPL/Mar52024.json",
		"AAPL/Apr52024.json",
	))

	if len(plan) != 4 {
		t.Fatalf("capped files dropped from the plan: %d", len(plan))
	}
	// First two historical files keep their tier; the rest trail behind.
	if plan[0].FileName != "AAPL/Jan52024.json" || plan[1].FileName != "AAPL/Feb52024.json" {
		t.Errorf("capped head order wrong: %s, %s", plan[0].FileName, plan[1].FileName)
	}
	if plan[2].FileName != "AAPL/Mar52024.json" || plan[3].FileName != "AAPL/Apr52024.json" {
		t.Errorf("demoted tail order wrong: %s, %s", plan[2].FileName, plan[3].FileName)
	}
}

func TestPlan_NoCap(t *testing.T) {
	p := newTestPlanner(0)
	plan := p.Plan(fd(
		"AAPL/Jan52024.json",
		"AAPL/Feb52024.json",
		"AAPL/Mar52024.json",
		"AAPL/rest.json",
	))
	if plan[3].FileName != "AAPL/rest.json" {
		t.Errorf("with cap disabled all history must precede the rest tier, got tail %s", plan[3].FileName)
	}
}

func TestPlan_CompleteAndDeduplicated(t *testing.T) {
	p := newTestPlanner(3)
	in := fd(
		"AAPL/D.json", "AAPL/after.json",
		"MSFT/D.json", "MSFT/M.json", "MSFT/Jan52024.json",
		"NVDA/points.json", "NVDA/other.json",
		"stray.json",
	)
	plan := p.Plan(in)

	if len(plan) != len(in) {
		t.Fatalf("plan length = %d, want %d", len(plan), len(in))
	}
	seen := make(map[string]bool)
	for _, f := range plan {
		if seen[f.FileName] {
			t.Errorf("file %s planned twice", f.FileName)
		}
		seen[f.FileName] = true
	}
	for _, f := range in {
		if !seen[f.FileName] {
			t.Errorf("file %s missing from plan", f.FileName)
		}
	}
}

func TestPlan_StrayFilesLast(t *testing.T) {
	p := newTestPlanner(3)
	plan := p.Plan(fd("stray.json", "AAPL/D.json"))
	if plan[len(plan)-1].FileName != "stray.json" {
		t.Errorf("ticker-less file not planned last: %v", plan)
	}
}
