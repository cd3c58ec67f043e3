package query

import (
	"testing"

	"github.com/procflow/procql/internal/domain"
)

func TestCompileVariableFiltersEmpty(t *testing.T) {
	pred, err := CompileVariableFilters(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred != domain.True {
		t.Fatalf("empty filter set should compile to true, got %#v", pred)
	}
}

func TestCompileVariableFiltersGroupsBySlot(t *testing.T) {
	// Two conditions on the same slot become one existence predicate; the
	// distinct slot becomes a second one.
	filters := []domain.VariableFilter{
		{DefinitionKey: stringPtr("invoice"), Name: "amount", Type: domain.VariableTypeBigDecimal, Value: "42", Operator: domain.FilterOperatorGreaterThanOrEqual},
		{DefinitionKey: stringPtr("invoice"), Name: "amount", Type: domain.VariableTypeBigDecimal, Value: "84", Operator: domain.FilterOperatorLessThanOrEqual},
		{DefinitionKey: stringPtr("invoice"), Name: "currency", Type: domain.VariableTypeString, Value: "EUR", Operator: domain.FilterOperatorEquals},
	}
	pred, err := CompileVariableFilters(filters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := pred.(domain.AndPredicate)
	if !ok {
		t.Fatalf("expected conjunction of slots, got %#v", pred)
	}
	if len(and.Operands) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(and.Operands))
	}

	amount, ok := and.Operands[0].(domain.VariablePredicate)
	if !ok {
		t.Fatalf("expected variable predicate, got %#v", and.Operands[0])
	}
	if amount.Name != "amount" || amount.DefinitionKey != "invoice" || amount.Scope != domain.VariableScopeProcess {
		t.Fatalf("unexpected slot: %#v", amount)
	}
	if len(amount.Conditions) != 2 {
		t.Fatalf("expected the range conditions to share one slot, got %d", len(amount.Conditions))
	}

	currency, ok := and.Operands[1].(domain.VariablePredicate)
	if !ok {
		t.Fatalf("expected variable predicate, got %#v", and.Operands[1])
	}
	if currency.Name != "currency" || len(currency.Conditions) != 1 {
		t.Fatalf("unexpected slot: %#v", currency)
	}
}

func TestCompileVariableFiltersSeparatesScopes(t *testing.T) {
	// Same name, different scope: a task-scoped and a process-scoped filter
	// must not collapse into one slot.
	filters := []domain.VariableFilter{
		{Name: "amount", Type: domain.VariableTypeInteger, Value: "1", Operator: domain.FilterOperatorEquals},
		{DefinitionKey: stringPtr("invoice"), Name: "amount", Type: domain.VariableTypeInteger, Value: "1", Operator: domain.FilterOperatorEquals},
	}
	pred, err := CompileVariableFilters(filters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := pred.(domain.AndPredicate)
	if !ok || len(and.Operands) != 2 {
		t.Fatalf("expected 2 slots, got %#v", pred)
	}
}

func TestCompileTaskSearchStructuralFilters(t *testing.T) {
	status := domain.TaskStatusAssigned
	criteria := domain.TaskSearchCriteria{
		NameLike: "review",
		Status:   &status,
		Assignee: "alice",
	}
	pred, err := CompileTaskSearch(criteria)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := pred.(domain.AndPredicate)
	if !ok {
		t.Fatalf("expected conjunction, got %#v", pred)
	}
	if len(and.Operands) != 3 {
		t.Fatalf("expected 3 structural operands, got %d", len(and.Operands))
	}

	rec := domain.TaskRecord{Task: domain.Task{
		Name:     "Invoice review",
		Status:   domain.TaskStatusAssigned,
		Assignee: "alice",
	}}
	ok, err = domain.EvalTask(pred, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching record to satisfy the predicate")
	}

	rec.Task.Assignee = "bob"
	ok, err = domain.EvalTask(pred, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected non-matching assignee to fail the predicate")
	}
}

func TestCompileTaskSearchStandaloneOnly(t *testing.T) {
	pred, err := CompileTaskSearch(domain.TaskSearchCriteria{StandaloneOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	standalone := domain.TaskRecord{Task: domain.Task{Name: "ad hoc"}}
	ok, err := domain.EvalTask(pred, standalone)
	if err != nil || !ok {
		t.Fatalf("expected standalone task to match (ok=%v err=%v)", ok, err)
	}
}

func TestCompileTaskSearchEmptyCriteria(t *testing.T) {
	pred, err := CompileTaskSearch(domain.TaskSearchCriteria{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred != domain.True {
		t.Fatalf("empty criteria should compile to true, got %#v", pred)
	}
}
