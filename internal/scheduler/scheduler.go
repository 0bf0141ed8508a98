// Package scheduler implements the workload scheduler: a cooperative
// loop that drives every analysis item to completion while honouring
// cross-item dependencies. Analysis items are modelled as fibers,
// goroutines parked on a channel at their one legal suspension point
// (Yield.Await), gated by a weighted semaphore of 1 so that only one
// fiber's logic ever executes at a time and every observation of
// symbol state is linearisable with respect to the edits that produced
// it. A fiber pool reuses the goroutine-adjacent bookkeeping struct
// across items to bound allocator pressure.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"upp/internal/depanalysis"
	"upp/internal/diag"

	"golang.org/x/sync/semaphore"
)

// Job analyses one (item, pass) pair. It calls Yield.Await whenever it
// reads a symbol that may not yet be at the state it needs; Await
// either returns immediately (already satisfied) or parks the calling
// fiber until the providing item progresses far enough.
type Job func(y *Yield, item *depanalysis.Item, pass *depanalysis.Pass) error

// Yield is the sole suspension point exposed to a Job: fibers suspend
// at explicit lookup points, never at arbitrary code points.
type Yield struct{ f *fiber }

// Await blocks the calling fiber until sym reaches required, if it
// isn't already there.
func (y *Yield) Await(sym *depanalysis.Symbol, required depanalysis.RequiredState) {
	if depanalysis.Satisfied(sym, required) {
		return
	}
	y.f.suspend(sym, required)
}

type fiberEventKind int

const (
	evSuspended fiberEventKind = iota
	evDone
	evErrored
)

type fiber struct {
	item   *depanalysis.Item
	pass   *depanalysis.Pass
	events chan<- fiberEvent
	sem    *semaphore.Weighted
	resume chan struct{}

	blockedSym *depanalysis.Symbol
	blockedReq depanalysis.RequiredState
}

type fiberEvent struct {
	f     *fiber
	kind  fiberEventKind
	err   error
}

func (f *fiber) suspend(sym *depanalysis.Symbol, required depanalysis.RequiredState) {
	f.blockedSym, f.blockedReq = sym, required
	ch := make(chan struct{})
	f.resume = ch
	f.events <- fiberEvent{f: f, kind: evSuspended}
	f.sem.Release(1)
	<-ch
	f.sem.Acquire(context.Background(), 1)
}

func (f *fiber) run(job Job) {
	f.sem.Acquire(context.Background(), 1)
	y := &Yield{f: f}
	err := job(y, f.item, f.pass)
	f.sem.Release(1)
	kind := evDone
	if err != nil {
		kind = evErrored
	}
	f.events <- fiberEvent{f: f, kind: kind, err: err}
}

// Scheduler drives a set of items' Jobs to completion.
type Scheduler struct {
	job   Job
	sem   *semaphore.Weighted
	diags *diag.List

	free []*fiber // reusable fiber bookkeeping structs
}

// New creates a scheduler that runs job for every (item, pass) handed
// to Run, reporting cycles to diags.
func New(job Job, diags *diag.List) *Scheduler {
	return &Scheduler{job: job, sem: semaphore.NewWeighted(1), diags: diags}
}

func (s *Scheduler) acquireFiber(it *depanalysis.Item, pass *depanalysis.Pass, events chan fiberEvent) *fiber {
	var f *fiber
	if n := len(s.free); n > 0 {
		f = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		f = &fiber{sem: s.sem}
	}
	f.item, f.pass, f.events = it, pass, events
	f.blockedSym, f.blockedReq = nil, 0
	return f
}

func (s *Scheduler) releaseFiber(f *fiber) {
	s.free = append(s.free, f)
}

// Run spawns one fiber per (item, pass) reachable from items (including
// nested Children, e.g. a function body under its header) and resolves
// them to completion, resuming suspended fibers as their dependency's
// required state becomes satisfied. If a point is reached where
// fibers remain suspended but none can be woken, the participating
// items are reported as a dependency cycle and their symbols become
// error-symbols.
func (s *Scheduler) Run(items []*depanalysis.Item) {
	all := flatten(items)
	events := make(chan fiberEvent)
	pending := map[*fiber]bool{}

	for _, it := range all {
		if len(it.Passes) == 0 {
			it.NewPass("")
		}
		for _, pass := range it.Passes {
			it.State = depanalysis.RunningState
			f := s.acquireFiber(it, pass, events)
			pending[f] = true
			go f.run(s.job)
		}
	}

	waiting := map[*depanalysis.Symbol][]*fiber{}

	for len(pending) > 0 {
		ev := <-events
		switch ev.kind {
		case evSuspended:
			// not a terminal event; the fiber stays pending, but the
			// stall check below must still run: if this was the last
			// running fiber, everything is now parked.
			ev.f.item.State = depanalysis.SuspendedState
			waiting[ev.f.blockedSym] = append(waiting[ev.f.blockedSym], ev.f)
		case evDone:
			ev.f.item.State = depanalysis.DoneState
			delete(pending, ev.f)
			s.releaseFiber(ev.f)
		case evErrored:
			ev.f.item.State = depanalysis.ErrorDone
			if ev.err != nil && s.diags != nil {
				s.diags.Add(diag.UnresolvedSymbol, ev.f.item.Node.NodeRange(), "%v", ev.err)
			}
			delete(pending, ev.f)
			s.releaseFiber(ev.f)
		}

		woken := s.wake(waiting)
		if len(pending) == 0 {
			break
		}
		suspendedCount := 0
		for _, fs := range waiting {
			suspendedCount += len(fs)
		}
		runningCount := len(pending) - suspendedCount
		if runningCount == 0 && woken == 0 && len(waiting) > 0 {
			s.reportCycle(waiting)
			break
		}
	}
}

// wake resumes every suspended fiber whose wait condition newly holds,
// returning how many were woken.
func (s *Scheduler) wake(waiting map[*depanalysis.Symbol][]*fiber) int {
	woken := 0
	for sym, fibers := range waiting {
		remaining := fibers[:0]
		for _, f := range fibers {
			if depanalysis.Satisfied(sym, f.blockedReq) {
				f.item.State = depanalysis.RunningState
				close(f.resume)
				woken++
			} else {
				remaining = append(remaining, f)
			}
		}
		if len(remaining) == 0 {
			delete(waiting, sym)
		} else {
			waiting[sym] = remaining
		}
	}
	return woken
}

func (s *Scheduler) reportCycle(waiting map[*depanalysis.Symbol][]*fiber) {
	seen := map[*fiber]bool{}
	var names []string
	for _, fibers := range waiting {
		for _, f := range fibers {
			if seen[f] {
				continue
			}
			seen[f] = true
			f.item.State = depanalysis.ErrorDone
			if f.item.Symbol != nil {
				f.item.Symbol.Kind = depanalysis.ErrorSym
				names = append(names, f.item.Symbol.Name)
			} else {
				names = append(names, f.item.Kind.String())
			}
		}
	}
	sort.Strings(names)
	if s.diags == nil || len(names) == 0 {
		return
	}
	first := true
	for f := range seen {
		if !first {
			break
		}
		first = false
		s.diags.Add(diag.DependencyCycle, f.item.Node.NodeRange(),
			"dependency cycle involving %s", fmt.Sprint(names))
	}
}

// flatten collects items and everything nested under them, visiting
// each item exactly once; callers commonly hand over a list that
// already contains both a parent and its children.
func flatten(items []*depanalysis.Item) []*depanalysis.Item {
	var out []*depanalysis.Item
	seen := map[*depanalysis.Item]bool{}
	var walk func(*depanalysis.Item)
	walk = func(it *depanalysis.Item) {
		if seen[it] {
			return
		}
		seen[it] = true
		out = append(out, it)
		for _, c := range it.Children {
			walk(c)
		}
	}
	for _, it := range items {
		walk(it)
	}
	return out
}
