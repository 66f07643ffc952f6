package diagram

import (
	"context"
	"strings"
	"testing"
)

func TestFlowchartEngine_RejectsIncompleteSource(t *testing.T) {
	e := NewFlowchartEngine()
	cases := []struct {
		name   string
		source string
	}{
		{name: "empty", source: ""},
		{name: "missing header", source: "A --> B"},
		{name: "unsupported direction", source: "graph RL\nA --> B"},
		{name: "dangling edge", source: "graph TD\nA -->"},
		{name: "unterminated node label", source: "graph TD\nA[Start --> B"},
		{name: "unterminated edge label", source: "graph TD\nA -->|yes B"},
		{name: "header only", source: "graph TD"},
		{name: "comment only body", source: "graph TD\n%% nothing yet"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Render(context.Background(), tc.source); err == nil {
				t.Fatalf("expected rejection for %q", tc.source)
			}
		})
	}
}

func TestFlowchartEngine_VerticalLayout(t *testing.T) {
	e := NewFlowchartEngine()
	out, err := e.Render(context.Background(), "graph TD\nA[Start] --> B[Finish]")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Start", "Finish", "┌", "┘", "▼"} {
		if !strings.Contains(out, want) {
			t.Fatalf("vertical layout missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 2*boxHeight+rowGap {
		t.Fatalf("two stacked boxes expected, got %d lines:\n%s", len(lines), out)
	}
}

func TestFlowchartEngine_HorizontalLayout(t *testing.T) {
	e := NewFlowchartEngine()
	out, err := e.Render(context.Background(), "flowchart LR\nA[In] --> B[Out]")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"In", "Out", "▶"} {
		if !strings.Contains(out, want) {
			t.Fatalf("horizontal layout missing %q:\n%s", want, out)
		}
	}
}

func TestFlowchartEngine_BackEdgeRoutesOnALane(t *testing.T) {
	e := NewFlowchartEngine()
	out, err := e.Render(context.Background(), "graph TD\nA --> B\nB --> C\nC --> A")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// The back edge leaves the stack and re-enters with an arrowhead.
	if !strings.Contains(out, "◀") {
		t.Fatalf("back edge missing re-entry arrow:\n%s", out)
	}
	if !strings.Contains(out, "┐") || !strings.Contains(out, "┘") {
		t.Fatalf("back edge missing lane corners:\n%s", out)
	}
}

func TestFlowchartEngine_ChainAndLabels(t *testing.T) {
	e := NewFlowchartEngine()
	out, err := e.Render(context.Background(), "graph TD\nA[One] -->|go| B[Two] --> C[Three]")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"One", "Two", "Three", "go"} {
		if !strings.Contains(out, want) {
			t.Fatalf("chain layout missing %q:\n%s", want, out)
		}
	}
}

func TestParse_NodeShapes(t *testing.T) {
	g, err := parse("graph TD\nA[Square] --> B(Round)\nB --> C{Decision}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(g.nodes) != 3 {
		t.Fatalf("node count = %d", len(g.nodes))
	}
	labels := []string{g.nodes[0].label, g.nodes[1].label, g.nodes[2].label}
	for i, want := range []string{"Square", "Round", "Decision"} {
		if labels[i] != want {
			t.Fatalf("node %d label = %q, want %q", i, labels[i], want)
		}
	}
	if len(g.edges) != 2 {
		t.Fatalf("edge count = %d", len(g.edges))
	}
}

func TestParse_LaterLabelWins(t *testing.T) {
	g, err := parse("graph TD\nA --> B\nA[Named] --> C")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.nodes[g.index["A"]].label != "Named" {
		t.Fatalf("label not updated: %q", g.nodes[g.index["A"]].label)
	}
}
