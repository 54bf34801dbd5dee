package schedule

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// taskNode is a task prepared for solving: duration resolved, dependencies
// mapped to batch indices, deadline converted to minutes from now.
type taskNode struct {
	id       string
	duration int
	deps     []int
	// deadline is minutes from now; applied only when positive, so stale
	// deadlines never make the model infeasible.
	deadline    int
	hasDeadline bool
	deadlineAt  time.Time
}

// interval is a busy window in minutes from now.
type interval struct {
	start, end int
}

// problem is the constraint model for one scheduling run. All quantities are
// minutes from the moment scheduling ran.
type problem struct {
	tasks []taskNode
	// endCap bounds every end variable: the horizon, tightened by the
	// project deadline when one is set and still ahead.
	endCap int
	busy   []interval
}

// choice fixes the auxiliary boolean of one (task, busy interval) pair:
// either the task ends before the interval starts, or starts after it ends.
type choice struct {
	task, interval int
	after          bool
}

var errCyclic = errors.New("dependency cycle")

// Variable layout: starts occupy [0,n), ends [n,2n), makespan is index 2n.
func (p *problem) numVars() int { return 2*len(p.tasks) + 1 }

// buildLP encodes the model with the given disjunction choices as a
// general-form LP: minimize c*x subject to G*x <= h and A*x = b.
func (p *problem) buildLP(choices []choice) (c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) {
	n := len(p.tasks)
	nv := p.numVars()
	mk := 2 * n

	c = make([]float64, nv)
	c[mk] = 1 // minimize makespan

	// end = start + duration, one equality per task.
	a = mat.NewDense(n, nv, nil)
	b = make([]float64, n)
	for i, t := range p.tasks {
		a.Set(i, n+i, 1)
		a.Set(i, i, -1)
		b[i] = float64(t.duration)
	}

	nDeadlines := 0
	nPrec := 0
	for _, t := range p.tasks {
		if t.hasDeadline && t.deadline > 0 {
			nDeadlines++
		}
		nPrec += len(t.deps)
	}
	// Rows: non-negativity, end & makespan caps, deadlines, precedence,
	// makespan cover, disjunction choices.
	rows := nv + n + 1 + nDeadlines + nPrec + n + len(choices)
	g = mat.NewDense(rows, nv, nil)
	h = make([]float64, rows)

	r := 0
	for v := 0; v < nv; v++ {
		g.Set(r, v, -1) // -x <= 0
		r++
	}
	for i := range p.tasks {
		g.Set(r, n+i, 1) // end_i <= cap
		h[r] = float64(p.endCap)
		r++
	}
	g.Set(r, mk, 1)
	h[r] = float64(p.endCap)
	r++
	for i, t := range p.tasks {
		if t.hasDeadline && t.deadline > 0 {
			g.Set(r, n+i, 1) // end_i <= deadline
			h[r] = float64(t.deadline)
			r++
		}
	}
	for i, t := range p.tasks {
		for _, dep := range t.deps {
			g.Set(r, n+dep, 1) // end_dep - start_i <= 0
			g.Set(r, i, -1)
			r++
		}
	}
	for i := range p.tasks {
		g.Set(r, n+i, 1) // end_i - makespan <= 0
		g.Set(r, mk, -1)
		r++
	}
	for _, ch := range choices {
		iv := p.busy[ch.interval]
		if ch.after {
			g.Set(r, ch.task, -1) // -start <= -interval.end
			h[r] = -float64(iv.end)
		} else {
			g.Set(r, len(p.tasks)+ch.task, 1) // end <= interval.start
			h[r] = float64(iv.start)
		}
		r++
	}
	return c, g, h, a, b
}

// solveLP converts the general form to standard form and runs the simplex
// method. The returned vector holds the original variables.
func solveLP(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64) ([]float64, float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	opt, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, 0, err
	}
	n := len(c)
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, opt, nil
}

// lpSolve points to the function used to solve the relaxation. It can be
// overridden in tests to simulate solver failures.
var lpSolve = solveLP

// earliestSchedule computes the least start times satisfying dependencies and
// the given full choice set, then verifies every upper bound. It returns the
// starts in minutes and the makespan, or an error when the dependency graph
// is cyclic or a bound is violated.
func (p *problem) earliestSchedule(choices []choice) ([]int, int, error) {
	n := len(p.tasks)
	afterMin := make([]int, n)
	beforeCap := make([]int, n)
	for i := range beforeCap {
		beforeCap[i] = p.endCap
	}
	for _, ch := range choices {
		iv := p.busy[ch.interval]
		if ch.after {
			if iv.end > afterMin[ch.task] {
				afterMin[ch.task] = iv.end
			}
		} else if iv.start < beforeCap[ch.task] {
			beforeCap[ch.task] = iv.start
		}
	}

	order, err := p.topoOrder()
	if err != nil {
		return nil, 0, err
	}

	starts := make([]int, n)
	ends := make([]int, n)
	makespan := 0
	for _, i := range order {
		t := p.tasks[i]
		s := afterMin[i]
		for _, dep := range t.deps {
			if ends[dep] > s {
				s = ends[dep]
			}
		}
		e := s + t.duration
		if e > beforeCap[i] || e > p.endCap {
			return nil, 0, errors.New("schedule exceeds bound")
		}
		if t.hasDeadline && t.deadline > 0 && e > t.deadline {
			return nil, 0, errors.New("schedule exceeds deadline")
		}
		starts[i] = s
		ends[i] = e
		if e > makespan {
			makespan = e
		}
	}
	return starts, makespan, nil
}

// topoOrder returns a dependency-respecting order of task indices, or
// errCyclic when the graph has a cycle.
func (p *problem) topoOrder() ([]int, error) {
	n := len(p.tasks)
	indeg := make([]int, n)
	next := make([][]int, n)
	for i, t := range p.tasks {
		indeg[i] = len(t.deps)
		for _, dep := range t.deps {
			next[dep] = append(next[dep], i)
		}
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range next[i] {
			indeg[j]--
			if indeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if len(order) != n {
		return nil, errCyclic
	}
	return order, nil
}
