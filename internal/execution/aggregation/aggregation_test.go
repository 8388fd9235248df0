package aggregation

import (
	"testing"

	"corestore/internal/execution"
)

// fakeOperator replays a fixed row slice, standing in for a real scan
// without needing a full storage stack.
type fakeOperator struct {
	rows []execution.Row
	pos  int
}

func (f *fakeOperator) Init() error { f.pos = 0; return nil }

func (f *fakeOperator) Next() (execution.Row, bool, error) {
	if f.pos >= len(f.rows) {
		return nil, false, nil
	}
	row := f.rows[f.pos]
	f.pos++
	return row, true, nil
}

func (f *fakeOperator) Close() {}

func TestAggregationGroupsAndSums(t *testing.T) {
	child := &fakeOperator{rows: []execution.Row{
		{"dept": "eng", "salary": float64(100)},
		{"dept": "eng", "salary": float64(200)},
		{"dept": "sales", "salary": float64(50)},
	}}

	agg := New(child, []string{"dept"}, []Expr{
		{Func: Sum, Column: "salary", As: "total"},
		{Func: Count, Column: "salary", As: "n"},
	})
	if err := agg.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer agg.Close()

	got := make(map[string]execution.Row)
	for {
		row, ok, err := agg.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got[row["dept"].(string)] = row
	}

	if len(got) != 2 {
		t.Fatalf("got %d groups, want 2", len(got))
	}
	if got["eng"]["total"] != float64(300) {
		t.Fatalf("eng total = %v, want 300", got["eng"]["total"])
	}
	if got["eng"]["n"] != int64(2) {
		t.Fatalf("eng n = %v, want 2", got["eng"]["n"])
	}
	if got["sales"]["total"] != float64(50) {
		t.Fatalf("sales total = %v, want 50", got["sales"]["total"])
	}
}

func TestAggregationWithNoGroupByProducesOneRow(t *testing.T) {
	child := &fakeOperator{rows: []execution.Row{
		{"salary": float64(10)},
		{"salary": float64(20)},
		{"salary": float64(30)},
	}}

	agg := New(child, nil, []Expr{{Func: Avg, Column: "salary", As: "avg"}})
	if err := agg.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer agg.Close()

	row, ok, err := agg.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if row["avg"] != float64(20) {
		t.Fatalf("avg = %v, want 20", row["avg"])
	}
	if _, ok, _ := agg.Next(); ok {
		t.Fatalf("expected exactly one output row with no GROUP BY")
	}
}
