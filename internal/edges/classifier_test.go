package edges

import (
	"testing"

	"github.com/abramin/calledges/internal/graph"
)

func testTable() Table {
	return DefaultTable([]string{"prologue.js", "preamble.js"})
}

func TestIsRealFunction(t *testing.T) {
	c := NewClassifier(testTable())

	tests := []struct {
		name     string
		class    string
		selector string
		kind     graph.MethodKind
		want     bool
	}{
		{"ordinary function", "L/src/app/main.js/a", "do", graph.KindOrdinary, true},
		{"top-level script", "L/src/app/main.js", "do", graph.KindOrdinary, true},
		{"synthetic summary", "L/src/app/main.js/a", "do", graph.KindSynthetic, false},
		{"constructor dispatch", "L/src/app/main.js/Widget", "ctor", graph.KindConstructor, false},
		{"other selector", "L/src/app/main.js/a", "fun", graph.KindOrdinary, false},
		{"dom helper", "L/src/app/page.html/make_node0", "do", graph.KindOrdinary, false},
		{"prologue", "Lprologue.js/Array/forEach", "do", graph.KindOrdinary, false},
		{"preamble", "Lpreamble.js/document/createElement", "do", graph.KindOrdinary, false},
		{"prelude name without separator", "Lprologue.jsx/a", "do", graph.KindOrdinary, true},
		{"prelude name not at start", "L/src/prologue.js/a", "do", graph.KindOrdinary, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := graph.NewClass(tt.class).AddMethod(tt.selector, tt.kind, nil)
			if got := c.IsRealFunction(m); got != tt.want {
				t.Errorf("IsRealFunction(%s) = %v, want %v", m, got, tt.want)
			}
		})
	}
}

func TestIsRealFunctionNil(t *testing.T) {
	c := NewClassifier(testTable())
	if c.IsRealFunction(nil) {
		t.Error("expected nil method to be rejected")
	}
}

func TestIsRealFunctionCustomTable(t *testing.T) {
	c := NewClassifier(Table{
		Sentinel:         "#",
		PreludeFiles:     []string{"boot"},
		SyntheticMarkers: []string{"$stub"},
		FunctionSelector: "body",
	})

	tests := []struct {
		class    string
		selector string
		want     bool
	}{
		{"#app/f", "body", true},
		{"#app/f", "do", false},
		{"#boot/f", "body", false},
		{"Lboot/f", "body", true},
		{"#app/f$stub", "body", false},
		{"#app/make_node", "body", true},
	}

	for _, tt := range tests {
		m := graph.NewClass(tt.class).AddMethod(tt.selector, graph.KindOrdinary, nil)
		if got := c.IsRealFunction(m); got != tt.want {
			t.Errorf("IsRealFunction(%s) = %v, want %v", m, got, tt.want)
		}
	}
}

func TestResolveCallTarget(t *testing.T) {
	c := NewClassifier(testTable())

	withBody := graph.NewClass("L/src/app/main.js/Widget")
	body := withBody.AddMethod(graph.FunctionSelector, graph.KindOrdinary, &graph.Position{URL: "/src/app/main.js", Start: 0, End: 20})
	ctor := withBody.AddMethod(graph.ConstructorSelector, graph.KindConstructor, nil)

	noBody := graph.NewClass("L/src/app/main.js/Empty")
	bare := noBody.AddMethod(graph.ConstructorSelector, graph.KindConstructor, nil)

	plain := graph.NewClass("L/src/app/main.js/f").AddMethod(graph.FunctionSelector, graph.KindOrdinary, nil)

	if got := c.ResolveCallTarget(ctor); got != body {
		t.Errorf("ResolveCallTarget(ctor) = %v, want %v", got, body)
	}
	if got := c.ResolveCallTarget(bare); got != bare {
		t.Errorf("ResolveCallTarget(bodiless ctor) = %v, want unchanged", got)
	}
	if got := c.ResolveCallTarget(plain); got != plain {
		t.Errorf("ResolveCallTarget(plain) = %v, want unchanged", got)
	}
	if got := c.ResolveCallTarget(nil); got != nil {
		t.Errorf("ResolveCallTarget(nil) = %v, want nil", got)
	}
}
