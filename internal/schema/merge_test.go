package schema

import (
	"reflect"
	"testing"
)

// TestMergeWidestWins pins the merge rule: for a shared name the result is
// the least restrictive rung, never the narrowest.
func TestMergeWidestWins(t *testing.T) {
	t.Parallel()

	base := New([]Field{{Name: "ID", Type: Int32}, {Name: "AMOUNT", Type: Int32}})
	other := New([]Field{{Name: "AMOUNT", Type: Float64}, {Name: "ID", Type: Byte}})

	got := Merge(base, other).Schema()
	want := New([]Field{{Name: "ID", Type: Int32}, {Name: "AMOUNT", Type: Float64}})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %+v, want %+v", got.Fields(), want.Fields())
	}
}

func TestMergeAppendsNewNamesInFirstSeenOrder(t *testing.T) {
	t.Parallel()

	c := NewConsolidated()
	c.Fold(New([]Field{{Name: "A", Type: Byte}}))
	c.Fold(New([]Field{{Name: "C", Type: Text}, {Name: "A", Type: Short}, {Name: "B", Type: Byte}}))
	c.Fold(New([]Field{{Name: "B", Type: Float32}, {Name: "D", Type: Int64}}))

	got := c.Schema()
	if names := got.Names(); !reflect.DeepEqual(names, []string{"A", "C", "B", "D"}) {
		t.Fatalf("names = %v", names)
	}
	types := []Rung{got.Field(0).Type, got.Field(1).Type, got.Field(2).Type, got.Field(3).Type}
	if want := []Rung{Short, Text, Float32, Int64}; !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	if c.Inputs() != 3 {
		t.Fatalf("Inputs = %d, want 3", c.Inputs())
	}
}

func TestMergeIsOrderIndependentForTypes(t *testing.T) {
	t.Parallel()

	a := New([]Field{{Name: "X", Type: BigDecimal}})
	b := New([]Field{{Name: "X", Type: Short}})
	if Merge(a, b).Schema().Field(0).Type != Merge(b, a).Schema().Field(0).Type {
		t.Fatalf("merge result depends on order")
	}
}
