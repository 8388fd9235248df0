// Package aggregation implements grouped aggregation (C8), grounded on
// original_source/src/execution/aggregation_executor.cpp: Init fully
// drains the child operator into a hash table keyed by the group-by
// column values before Next ever runs, then Next walks that table's
// entries one group at a time — the same build-then-iterate split
// aggregation_executor.cpp's aht_/aht_iterator_ implement.
package aggregation

import (
	"fmt"
	"strings"

	"corestore/internal/execution"
)

// Func names a supported aggregate function.
type Func int

const (
	Count Func = iota
	Sum
	Min
	Max
	Avg
)

// Expr is one aggregate to compute, e.g. SUM(amount) AS total.
type Expr struct {
	Func   Func
	Column string
	As     string
}

type accumulator struct {
	count    int64
	sum      float64
	min, max float64
	hasValue bool
}

func (a *accumulator) add(v any) {
	a.count++
	f, ok := toFloat64(v)
	if !ok {
		return
	}
	a.sum += f
	if !a.hasValue || f < a.min {
		a.min = f
	}
	if !a.hasValue || f > a.max {
		a.max = f
	}
	a.hasValue = true
}

func (a *accumulator) result(fn Func) any {
	switch fn {
	case Count:
		return a.count
	case Sum:
		return a.sum
	case Min:
		return a.min
	case Max:
		return a.max
	case Avg:
		if a.count == 0 {
			return float64(0)
		}
		return a.sum / float64(a.count)
	default:
		return nil
	}
}

// toFloat64 converts the numeric types execution.Row values arrive as
// (tuple.Record decodes JSON numbers into float64) into a float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

type group struct {
	values execution.Row
	accs   []*accumulator
}

// Aggregation groups child's rows by groupBy and evaluates aggregates
// over each group.
type Aggregation struct {
	child      execution.Operator
	groupBy    []string
	aggregates []Expr

	order []string
	rows  map[string]*group
	pos   int
}

// New builds an aggregation over child, grouping by groupBy (empty means
// one group over the whole input) and computing aggregates.
func New(child execution.Operator, groupBy []string, aggregates []Expr) *Aggregation {
	return &Aggregation{child: child, groupBy: groupBy, aggregates: aggregates}
}

func (a *Aggregation) groupKey(row execution.Row) string {
	if len(a.groupBy) == 0 {
		return ""
	}
	parts := make([]string, len(a.groupBy))
	for i, col := range a.groupBy {
		parts[i] = fmt.Sprintf("%v", row[col])
	}
	return strings.Join(parts, "\x1f")
}

func (a *Aggregation) Init() error {
	if err := a.child.Init(); err != nil {
		return err
	}
	a.rows = make(map[string]*group)
	a.order = nil

	for {
		row, ok, err := a.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		key := a.groupKey(row)
		g, exists := a.rows[key]
		if !exists {
			values := make(execution.Row, len(a.groupBy))
			for _, col := range a.groupBy {
				values[col] = row[col]
			}
			accs := make([]*accumulator, len(a.aggregates))
			for i := range accs {
				accs[i] = &accumulator{}
			}
			g = &group{values: values, accs: accs}
			a.rows[key] = g
			a.order = append(a.order, key)
		}
		for i, expr := range a.aggregates {
			g.accs[i].add(row[expr.Column])
		}
	}
	return nil
}

func (a *Aggregation) Next() (execution.Row, bool, error) {
	if a.pos >= len(a.order) {
		return nil, false, nil
	}
	g := a.rows[a.order[a.pos]]
	a.pos++

	out := make(execution.Row, len(a.groupBy)+len(a.aggregates))
	for k, v := range g.values {
		out[k] = v
	}
	for i, expr := range a.aggregates {
		name := expr.As
		if name == "" {
			name = fmt.Sprintf("agg%d", i)
		}
		out[name] = g.accs[i].result(expr.Func)
	}
	return out, true, nil
}

func (a *Aggregation) Close() {
	a.child.Close()
}
