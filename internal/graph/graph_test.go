package graph

import "testing"

func TestPositionFile(t *testing.T) {
	tests := []struct {
		name string
		pos  *Position
		want string
		ok   bool
	}{
		{"nil", nil, "", false},
		{"empty", &Position{}, "", false},
		{"plain path", &Position{URL: "/src/app/main.js"}, "/src/app/main.js", true},
		{"bootstrap name", &Position{URL: "prologue.js"}, "prologue.js", true},
		{"file url", &Position{URL: "file:///src/app/main.js"}, "/src/app/main.js", true},
		{"remote url", &Position{URL: "https://cdn.example.com/lib.js"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.pos.File()
			if ok != tt.ok || got != tt.want {
				t.Errorf("File() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClassMethodLookup(t *testing.T) {
	c := NewClass("Lapp.js/Widget")
	body := c.AddMethod(FunctionSelector, KindOrdinary, &Position{URL: "/app.js", Start: 10, End: 40})
	ctor := c.AddMethod(ConstructorSelector, KindConstructor, nil)

	if got := c.Method(FunctionSelector); got != body {
		t.Errorf("Method(do) = %v, want %v", got, body)
	}
	if got := c.Method(ConstructorSelector); got != ctor {
		t.Errorf("Method(ctor) = %v, want %v", got, ctor)
	}
	if got := c.Method("missing"); got != nil {
		t.Errorf("Method(missing) = %v, want nil", got)
	}
	if ctor.String() != "Lapp.js/Widget.ctor" {
		t.Errorf("String() = %q", ctor.String())
	}
}

func TestGraphSitesAndTargets(t *testing.T) {
	g := New()
	a := NewClass("La").AddMethod(FunctionSelector, KindOrdinary, nil)
	b := NewClass("Lb").AddMethod(FunctionSelector, KindOrdinary, nil)

	na, created := g.NodeFor(a)
	if !created {
		t.Fatal("expected node to be created")
	}
	if again, created := g.NodeFor(a); created || again != na {
		t.Fatal("expected NodeFor to reuse the node")
	}
	nb, _ := g.NodeFor(b)

	g.AddSite(na, 0)
	g.AddCall(na, 1, nb)
	g.AddCall(na, 1, nb)
	g.AddSite(na, 1)

	if len(na.Sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(na.Sites))
	}
	if got := g.PossibleTargets(na, CallSite{PC: 0}); len(got) != 0 {
		t.Errorf("expected no targets for pc 0, got %d", len(got))
	}
	if got := g.PossibleTargets(na, CallSite{PC: 1}); len(got) != 2 {
		t.Errorf("expected 2 targets for pc 1, got %d", len(got))
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.Len())
	}
}

func TestSourcePositionAt(t *testing.T) {
	m := NewClass("La").AddMethod(FunctionSelector, KindOrdinary, nil)
	pos := &Position{URL: "/a.js", Start: 3, End: 9}
	m.SetSitePosition(4, pos)

	n := &Node{Method: m}
	if got := n.SourcePositionAt(CallSite{PC: 4}); got != pos {
		t.Errorf("SourcePositionAt(4) = %v, want %v", got, pos)
	}
	if got := n.SourcePositionAt(CallSite{PC: 5}); got != nil {
		t.Errorf("SourcePositionAt(5) = %v, want nil", got)
	}
}
