package workflow

import "testing"

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in   string
		want Destination
	}{
		{"", Destination{Kind: DestNextInGraph}},
		{"next", Destination{Kind: DestNextInGraph}},
		{"end", Destination{Kind: DestTerminal}},
		{"implement", Destination{Kind: DestExplicitStep, StepID: "implement"}},
	}

	for _, tt := range tests {
		t.Run("parse "+tt.in, func(t *testing.T) {
			if got := ParseDestination(tt.in); got != tt.want {
				t.Errorf("ParseDestination(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDestinationConstructors(t *testing.T) {
	if NextStep().Kind != DestNextInGraph {
		t.Errorf("NextStep() = %+v", NextStep())
	}
	if Terminal().Kind != DestTerminal {
		t.Errorf("Terminal() = %+v", Terminal())
	}
	d := ExplicitStep("review")
	if d.Kind != DestExplicitStep || d.StepID != "review" {
		t.Errorf("ExplicitStep() = %+v", d)
	}
}

func TestDestinationKindString(t *testing.T) {
	if DestNextInGraph.String() != "next" || DestTerminal.String() != "terminal" || DestExplicitStep.String() != "step" {
		t.Errorf("unexpected kind names: %s %s %s", DestNextInGraph, DestExplicitStep, DestTerminal)
	}
}
