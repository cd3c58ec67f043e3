package domain

import "testing"

func TestAndSimplification(t *testing.T) {
	leaf := FieldPredicate{Field: "name", Op: CompareOpEquals, Value: "x"}

	if got := And(); got != True {
		t.Fatalf("empty conjunction should be true, got %#v", got)
	}
	if got := And(True, leaf); got != Predicate(leaf) {
		t.Fatalf("true operand should be dropped, got %#v", got)
	}
	if got := And(leaf, False); got != Predicate(False) {
		t.Fatalf("false operand should absorb, got %#v", got)
	}

	nested := And(And(leaf, leaf), leaf)
	and, ok := nested.(AndPredicate)
	if !ok {
		t.Fatalf("expected AndPredicate, got %#v", nested)
	}
	if len(and.Operands) != 3 {
		t.Fatalf("expected nested conjunction to flatten to 3 operands, got %d", len(and.Operands))
	}
}

func TestOrSimplification(t *testing.T) {
	leaf := FieldPredicate{Field: "name", Op: CompareOpEquals, Value: "x"}

	if got := Or(); got != False {
		t.Fatalf("empty disjunction should be false, got %#v", got)
	}
	if got := Or(False, leaf); got != Predicate(leaf) {
		t.Fatalf("false operand should be dropped, got %#v", got)
	}
	if got := Or(leaf, True); got != Predicate(True) {
		t.Fatalf("true operand should absorb, got %#v", got)
	}
}

func TestEvalTaskVariableSlotConditions(t *testing.T) {
	amount := func(v string) Variable {
		return Variable{DefinitionKey: "invoice", Name: "amount", Type: VariableTypeBigDecimal, Value: v}
	}
	gte, _ := Coerce("42", VariableTypeBigDecimal)
	lte, _ := Coerce("84", VariableTypeBigDecimal)
	pred := VariablePredicate{
		Scope:         VariableScopeProcess,
		DefinitionKey: "invoice",
		Name:          "amount",
		Conditions: []VariableCondition{
			{Operator: FilterOperatorGreaterThanOrEqual, Type: VariableTypeBigDecimal, Value: gte},
			{Operator: FilterOperatorLessThanOrEqual, Type: VariableTypeBigDecimal, Value: lte},
		},
	}

	cases := []struct {
		value string
		want  bool
	}{
		{"41.99", false},
		{"42", true},
		{"60.5", true},
		{"84", true},
		{"84.01", false},
	}
	for _, tc := range cases {
		rec := TaskRecord{ProcessVariables: []Variable{amount(tc.value)}}
		got, err := EvalTask(pred, rec)
		if err != nil {
			t.Fatalf("value %s: unexpected error: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("value %s: expected %v, got %v", tc.value, tc.want, got)
		}
	}
}

func TestEvalTaskVariableTypeGuard(t *testing.T) {
	// A row with the right name but wrong declared type never satisfies the
	// slot, even when the texts would compare equal.
	cond, _ := Coerce("42", VariableTypeInteger)
	pred := VariablePredicate{
		Scope:         VariableScopeProcess,
		DefinitionKey: "invoice",
		Name:          "amount",
		Conditions:    []VariableCondition{{Operator: FilterOperatorEquals, Type: VariableTypeInteger, Value: cond}},
	}
	rec := TaskRecord{ProcessVariables: []Variable{
		{DefinitionKey: "invoice", Name: "amount", Type: VariableTypeString, Value: "42"},
	}}
	got, err := EvalTask(pred, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatalf("type mismatch must not satisfy the slot")
	}
}
