package query

import (
	"reflect"
	"strings"
	"testing"

	"github.com/procflow/procql/internal/domain"
)

func TestBuildTaskSearchSQLDefaults(t *testing.T) {
	sql, args, err := BuildTaskSearchSQL(domain.True, domain.Sort{}, domain.PageRequest{Number: 2, Size: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "COUNT(*) OVER () AS total_count") {
		t.Fatalf("expected window total in query: %s", sql)
	}
	if !strings.Contains(sql, "WHERE TRUE") {
		t.Fatalf("expected constant-true restriction: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY t.created_at ASC, t.id ASC") {
		t.Fatalf("expected default ordering with tiebreaker: %s", sql)
	}
	if !strings.HasSuffix(sql, "LIMIT $1 OFFSET $2") {
		t.Fatalf("expected paging binds at the end: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{25, 50}) {
		t.Fatalf("expected args [25 50], got %v", args)
	}
}

func TestBuildTaskSearchSQLVariableSlot(t *testing.T) {
	gte, _ := domain.Coerce("42", domain.VariableTypeBigDecimal)
	lte, _ := domain.Coerce("84", domain.VariableTypeBigDecimal)
	pred := domain.VariablePredicate{
		Scope:         domain.VariableScopeProcess,
		DefinitionKey: "invoice",
		Name:          "amount",
		Conditions: []domain.VariableCondition{
			{Operator: domain.FilterOperatorGreaterThanOrEqual, Type: domain.VariableTypeBigDecimal, Value: gte},
			{Operator: domain.FilterOperatorLessThanOrEqual, Type: domain.VariableTypeBigDecimal, Value: lte},
		},
	}

	sql, args, err := BuildTaskSearchSQL(pred, domain.Sort{}, domain.PageRequest{Number: 0, Size: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "EXISTS (SELECT 1 FROM variables v WHERE v.process_instance_id = t.process_instance_id") {
		t.Fatalf("expected process-variable semi-join: %s", sql)
	}
	if strings.Count(sql, "EXISTS (SELECT 1 FROM variables v") != 1 {
		t.Fatalf("range conditions must share one semi-join: %s", sql)
	}
	if !strings.Contains(sql, "CASE WHEN v.type = $3 THEN (v.value)::numeric >= ($4)::numeric END") {
		t.Fatalf("expected type-guarded numeric cast for decimal comparison: %s", sql)
	}
	want := []any{"invoice", "amount", "BIGDECIMAL", "42", "BIGDECIMAL", "84", 10, 0}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("expected args %v, got %v", want, args)
	}
}

func TestBuildTaskSearchSQLTaskScopedVariable(t *testing.T) {
	value, _ := domain.Coerce("true", domain.VariableTypeBoolean)
	pred := domain.VariablePredicate{
		Scope: domain.VariableScopeTask,
		Name:  "approved",
		Conditions: []domain.VariableCondition{
			{Operator: domain.FilterOperatorEquals, Type: domain.VariableTypeBoolean, Value: value},
		},
	}
	sql, _, err := BuildTaskSearchSQL(pred, domain.Sort{}, domain.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "v.task_id = t.id") {
		t.Fatalf("task-scoped slot must correlate on the task id: %s", sql)
	}
	if strings.Contains(sql, "v.definition_key") {
		t.Fatalf("task-scoped slot must not bind a definition key: %s", sql)
	}
}

func TestBuildTaskSearchSQLDateComparesStoredDay(t *testing.T) {
	// A stored DATE may be a full instant with an offset; the calendar day is
	// the first ten bytes of the stored text, not the session-zone day of the
	// converted instant.
	value, _ := domain.Coerce("2024-08-02", domain.VariableTypeDate)
	pred := domain.VariablePredicate{
		Scope: domain.VariableScopeTask,
		Name:  "deadline",
		Conditions: []domain.VariableCondition{
			{Operator: domain.FilterOperatorEquals, Type: domain.VariableTypeDate, Value: value},
		},
	}
	sql, args, err := BuildTaskSearchSQL(pred, domain.Sort{}, domain.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "left(v.value, 10)::date = ($3)::date") {
		t.Fatalf("expected day comparison on the stored text: %s", sql)
	}
	if strings.Contains(sql, "::timestamptz)::date") {
		t.Fatalf("day must not be re-derived in the session time zone: %s", sql)
	}
	if args[2] != "2024-08-02" {
		t.Fatalf("expected the filter day among args, got %v", args)
	}
}

func TestBuildTaskSearchSQLCastsAreTypeGuarded(t *testing.T) {
	// A slot can hold rows of several types under the same name. The cast must
	// be conditional on the row's type, otherwise the planner may apply it to
	// a row of another type and abort the query on unparsable text.
	value, _ := domain.Coerce("7", domain.VariableTypeInteger)
	pred := domain.VariablePredicate{
		Scope: domain.VariableScopeTask,
		Name:  "retries",
		Conditions: []domain.VariableCondition{
			{Operator: domain.FilterOperatorGreaterThan, Type: domain.VariableTypeInteger, Value: value},
		},
	}
	sql, _, err := BuildTaskSearchSQL(pred, domain.Sort{}, domain.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "CASE WHEN v.type = $2 THEN (v.value)::bigint > $3 END") {
		t.Fatalf("expected the cast inside a type-guarded CASE: %s", sql)
	}
	if strings.Contains(sql, "AND (v.value)::bigint") {
		t.Fatalf("cast must not appear as a bare conjunct: %s", sql)
	}
}

func TestBuildTaskSearchSQLRejectsTaskScopeForInstances(t *testing.T) {
	value, _ := domain.Coerce("1", domain.VariableTypeInteger)
	pred := domain.VariablePredicate{
		Scope: domain.VariableScopeTask,
		Name:  "retries",
		Conditions: []domain.VariableCondition{
			{Operator: domain.FilterOperatorEquals, Type: domain.VariableTypeInteger, Value: value},
		},
	}
	if _, _, err := BuildProcessInstanceSearchSQL(pred, domain.Sort{}, domain.PageRequest{Size: 10}); err == nil {
		t.Fatalf("expected error lowering a task-scoped slot against process instances")
	}
}

func TestBuildProcessInstanceSearchSQLVisibility(t *testing.T) {
	sc := domain.SecurityContext{UserID: "alice", Groups: []string{"finance"}}
	policies := []domain.AccessPolicy{{
		ServiceName: "Billing-Service", SubjectType: domain.SubjectTypeGroup, Subject: "finance", Level: domain.AccessLevelRead,
	}}
	pred := ProcessInstanceVisibility(sc, policies)

	sql, args, err := BuildProcessInstanceSearchSQL(pred, domain.Sort{Field: domain.SortFieldStartedAt, Direction: domain.SortDirectionDesc}, domain.PageRequest{Size: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "lower(replace(pi.service_name, '-', '')) = ANY(") {
		t.Fatalf("expected normalized service name restriction: %s", sql)
	}
	if !strings.Contains(sql, "EXISTS (SELECT 1 FROM tasks t WHERE t.process_instance_id = pi.id AND ") {
		t.Fatalf("expected transitive task visibility: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY pi.started_at DESC, pi.id ASC") {
		t.Fatalf("expected requested ordering with tiebreaker: %s", sql)
	}

	// The normalized name list carries the folded policy value.
	found := false
	for _, arg := range args {
		if list, ok := arg.([]string); ok {
			for _, v := range list {
				if v == "billingservice" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected folded service name among args: %v", args)
	}
}

func TestBuildTaskByIDSQLCarriesRestriction(t *testing.T) {
	sc := domain.SecurityContext{UserID: "alice"}
	pred := domain.And(
		domain.FieldPredicate{Field: "id", Op: domain.CompareOpEquals, Value: "some-id"},
		TaskVisibility(sc),
	)
	sql, args, err := BuildTaskByIDSQL(pred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "t.id = $1") {
		t.Fatalf("expected id bind: %s", sql)
	}
	if !strings.Contains(sql, "t.assignee = $2") {
		t.Fatalf("expected visibility fragment in by-id query: %s", sql)
	}
	if len(args) < 3 {
		t.Fatalf("expected id plus visibility binds, got %v", args)
	}
}

func TestOrderByRejectsUnsortableField(t *testing.T) {
	if _, _, err := BuildTaskSearchSQL(domain.True, domain.Sort{Field: "assignee"}, domain.PageRequest{Size: 10}); err == nil {
		t.Fatalf("expected error for unsortable field")
	}
}
