package scheduler

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/diag"
)

// stubNode satisfies ast.Node with no real source range, enough for
// items that only need a place to park a diagnostic on cycle failure.
type stubNode struct{ ast.Base }

func (s *stubNode) Children() []ast.Node { return nil }

func newStubItem(kind depanalysis.Kind, sym *depanalysis.Symbol) *depanalysis.Item {
	return &depanalysis.Item{Kind: kind, Node: &stubNode{}, Symbol: sym}
}

// TestRunResolvesAwaitedDependency builds a "consumer" item that
// awaits a "provider" item's symbol before it's resolved, and a
// "provider" item whose job marks its own symbol resolved. Run must
// deliver the provider's completion to the consumer's suspended fiber
// before returning, regardless of spawn order.
func TestRunResolvesAwaitedDependency(t *testing.T) {
	table := depanalysis.NewSymbolTable(nil)
	providerSym, _ := table.Define("provider", nil, depanalysis.Unresolved)
	provider := newStubItem(depanalysis.DefinitionItem, providerSym)
	consumer := newStubItem(depanalysis.DefinitionItem, nil)

	var consumerSawResolved bool
	job := func(y *Yield, item *depanalysis.Item, pass *depanalysis.Pass) error {
		switch item {
		case provider:
			providerSym.Kind = depanalysis.ConstantSym
		case consumer:
			y.Await(providerSym, depanalysis.RequireFullyResolved)
			consumerSawResolved = depanalysis.Satisfied(providerSym, depanalysis.RequireFullyResolved)
		}
		return nil
	}

	sched := New(job, &diag.List{})
	sched.Run([]*depanalysis.Item{consumer, provider})

	if !consumerSawResolved {
		t.Fatalf("consumer's Await should have returned only once provider resolved its symbol")
	}
	if provider.State != depanalysis.DoneState || consumer.State != depanalysis.DoneState {
		t.Fatalf("expected both items to finish Done, got provider=%v consumer=%v", provider.State, consumer.State)
	}
}

// TestRunReportsMutualDependencyAsCycle has two items each awaiting
// the other's symbol, so neither job can ever finish; Run must detect
// the deadlock, mark both symbols as errors, and record a diagnostic
// rather than hang.
func TestRunReportsMutualDependencyAsCycle(t *testing.T) {
	table := depanalysis.NewSymbolTable(nil)
	aSym, _ := table.Define("a", nil, depanalysis.Unresolved)
	bSym, _ := table.Define("b", nil, depanalysis.Unresolved)
	aItem := newStubItem(depanalysis.DefinitionItem, aSym)
	bItem := newStubItem(depanalysis.DefinitionItem, bSym)

	job := func(y *Yield, item *depanalysis.Item, pass *depanalysis.Pass) error {
		switch item {
		case aItem:
			y.Await(bSym, depanalysis.RequireFullyResolved)
		case bItem:
			y.Await(aSym, depanalysis.RequireFullyResolved)
		}
		return nil
	}

	diags := &diag.List{}
	sched := New(job, diags)
	sched.Run([]*depanalysis.Item{aItem, bItem})

	if diags.Empty() {
		t.Fatalf("expected a dependency-cycle diagnostic")
	}
	if aSym.Kind != depanalysis.ErrorSym || bSym.Kind != depanalysis.ErrorSym {
		t.Fatalf("expected both symbols to become error-symbols, got a=%v b=%v", aSym.Kind, bSym.Kind)
	}
}

// TestRunRecursesIntoChildren ensures a parent's nested Children are
// scheduled too, not just the items passed in directly, mirroring a
// function header enclosing its body item.
func TestRunRecursesIntoChildren(t *testing.T) {
	parent := newStubItem(depanalysis.FunctionHeaderItem, nil)
	child := newStubItem(depanalysis.FunctionBodyItem, nil)
	parent.AddChild(child)

	var childRan bool
	job := func(y *Yield, item *depanalysis.Item, pass *depanalysis.Pass) error {
		if item == child {
			childRan = true
		}
		return nil
	}

	New(job, &diag.List{}).Run([]*depanalysis.Item{parent})
	if !childRan {
		t.Fatalf("expected Run to also schedule the parent's child item")
	}
}
