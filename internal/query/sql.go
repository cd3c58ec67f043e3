package query

import (
	"fmt"
	"strings"

	"github.com/procflow/procql/internal/domain"
)

// target identifies which entity a predicate tree is being lowered against.
type target int

const (
	targetTask target = iota
	targetProcessInstance
)

// TaskColumns maps logical task fields to columns of the tasks relation.
var TaskColumns = map[string]string{
	"id":                "t.id",
	"name":              "t.name",
	"description":       "t.description",
	"status":            "t.status",
	"assignee":          "t.assignee",
	"owner":             "t.owner",
	"priority":          "t.priority",
	"definitionKey":     "t.definition_key",
	"processInstanceId": "t.process_instance_id",
	"createdAt":         "t.created_at",
}

// ProcessInstanceColumns maps logical instance fields to columns.
var ProcessInstanceColumns = map[string]string{
	"id":                    "pi.id",
	"name":                  "pi.name",
	"status":                "pi.status",
	"definitionKey":         "pi.definition_key",
	"initiator":             "pi.initiator",
	"serviceNameNormalized": "lower(replace(pi.service_name, '-', ''))",
	"serviceFullName":       "pi.service_full_name",
	"startedAt":             "pi.started_at",
}

// TaskSortColumns lists the sortable task fields.
var TaskSortColumns = map[string]string{
	domain.SortFieldCreatedAt: "t.created_at",
	domain.SortFieldName:      "t.name",
	domain.SortFieldStatus:    "t.status",
	domain.SortFieldPriority:  "t.priority",
}

// ProcessInstanceSortColumns lists the sortable instance fields.
var ProcessInstanceSortColumns = map[string]string{
	domain.SortFieldStartedAt: "pi.started_at",
	domain.SortFieldName:      "pi.name",
	domain.SortFieldStatus:    "pi.status",
}

const taskSelectColumns = "t.id, t.process_instance_id, t.definition_key, t.name, t.description, " +
	"t.status, t.assignee, t.owner, t.priority, t.parent_task_id, t.created_at, t.due_date"

const processInstanceSelectColumns = "pi.id, pi.definition_key, pi.service_name, pi.service_full_name, " +
	"pi.name, pi.initiator, pi.status, pi.started_at"

// builder accumulates positional arguments while lowering a predicate tree.
type builder struct {
	args []any
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// BuildTaskSearchSQL lowers a predicate with sort and page into one SELECT.
// The window count shares the predicate with the rows, so totals never leak
// rows the predicate excludes.
func BuildTaskSearchSQL(pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (string, []any, error) {
	b := &builder{}
	where, err := b.lower(pred, targetTask)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := orderByClause(sort, TaskSortColumns, "t.created_at", "t.id")
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(
		"SELECT %s, COUNT(*) OVER () AS total_count FROM tasks t WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		taskSelectColumns, where, orderBy, b.bind(page.Size), b.bind(page.Offset()),
	)
	return sql, b.args, nil
}

// BuildTaskByIDSQL fetches a single task under the given restriction.
func BuildTaskByIDSQL(pred domain.Predicate) (string, []any, error) {
	b := &builder{}
	where, err := b.lower(pred, targetTask)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM tasks t WHERE %s", taskSelectColumns, where)
	return sql, b.args, nil
}

// BuildProcessInstanceSearchSQL is the process instance analog of
// BuildTaskSearchSQL.
func BuildProcessInstanceSearchSQL(pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (string, []any, error) {
	b := &builder{}
	where, err := b.lower(pred, targetProcessInstance)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := orderByClause(sort, ProcessInstanceSortColumns, "pi.started_at", "pi.id")
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(
		"SELECT %s, COUNT(*) OVER () AS total_count FROM process_instances pi WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		processInstanceSelectColumns, where, orderBy, b.bind(page.Size), b.bind(page.Offset()),
	)
	return sql, b.args, nil
}

// BuildProcessInstanceByIDSQL fetches a single instance under the restriction.
func BuildProcessInstanceByIDSQL(pred domain.Predicate) (string, []any, error) {
	b := &builder{}
	where, err := b.lower(pred, targetProcessInstance)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM process_instances pi WHERE %s", processInstanceSelectColumns, where)
	return sql, b.args, nil
}

func orderByClause(sort domain.Sort, sortable map[string]string, defaultColumn, tiebreaker string) (string, error) {
	column := defaultColumn
	if sort.Field != "" {
		mapped, ok := sortable[sort.Field]
		if !ok {
			return "", &domain.ValidationError{Reason: fmt.Sprintf("field %q is not sortable", sort.Field)}
		}
		column = mapped
	}
	direction := "ASC"
	if sort.Direction == domain.SortDirectionDesc {
		direction = "DESC"
	}
	// Primary key tiebreaker keeps paging deterministic under equal keys.
	return fmt.Sprintf("%s %s, %s ASC", column, direction, tiebreaker), nil
}

func (b *builder) lower(p domain.Predicate, tgt target) (string, error) {
	switch n := p.(type) {
	case domain.ConstPredicate:
		if n.Value {
			return "TRUE", nil
		}
		return "FALSE", nil
	case domain.AndPredicate:
		return b.lowerList(n.Operands, " AND ", tgt)
	case domain.OrPredicate:
		return b.lowerList(n.Operands, " OR ", tgt)
	case domain.NotPredicate:
		inner, err := b.lower(n.Operand, tgt)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case domain.FieldPredicate:
		return b.lowerField(n, tgt)
	case domain.VariablePredicate:
		return b.lowerVariable(n, tgt)
	case domain.CandidateUserPredicate:
		if tgt != targetTask {
			return "", fmt.Errorf("candidate predicates apply to tasks only")
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_candidate_users cu WHERE cu.task_id = t.id AND cu.user_id = %s)",
			b.bind(n.UserID),
		), nil
	case domain.CandidateGroupPredicate:
		if tgt != targetTask {
			return "", fmt.Errorf("candidate predicates apply to tasks only")
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_candidate_groups cg WHERE cg.task_id = t.id AND cg.group_id = ANY(%s))",
			b.bind(n.GroupIDs),
		), nil
	case domain.AnyCandidatePredicate:
		if tgt != targetTask {
			return "", fmt.Errorf("candidate predicates apply to tasks only")
		}
		return "(EXISTS (SELECT 1 FROM task_candidate_users cu WHERE cu.task_id = t.id) " +
			"OR EXISTS (SELECT 1 FROM task_candidate_groups cg WHERE cg.task_id = t.id))", nil
	case domain.VisibleTaskPredicate:
		if tgt != targetProcessInstance {
			return "", fmt.Errorf("visible-task predicate applies to process instances only")
		}
		inner, err := b.lower(n.Where, targetTask)
		if err != nil {
			return "", err
		}
		return "EXISTS (SELECT 1 FROM tasks t WHERE t.process_instance_id = pi.id AND " + inner + ")", nil
	}
	return "", fmt.Errorf("cannot lower predicate %T", p)
}

func (b *builder) lowerList(operands []domain.Predicate, sep string, tgt target) (string, error) {
	parts := make([]string, 0, len(operands))
	for _, op := range operands {
		part, err := b.lower(op, tgt)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *builder) lowerField(n domain.FieldPredicate, tgt target) (string, error) {
	columns := TaskColumns
	if tgt == targetProcessInstance {
		columns = ProcessInstanceColumns
	}
	column, ok := columns[n.Field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", n.Field)
	}

	switch n.Op {
	case domain.CompareOpEquals:
		return fmt.Sprintf("%s = %s", column, b.bind(n.Value)), nil
	case domain.CompareOpContains:
		return fmt.Sprintf("%s ILIKE %s", column, b.bind("%"+fmt.Sprintf("%v", n.Value)+"%")), nil
	case domain.CompareOpGreaterThan:
		return fmt.Sprintf("%s > %s", column, b.bind(n.Value)), nil
	case domain.CompareOpGreaterThanOrEqual:
		return fmt.Sprintf("%s >= %s", column, b.bind(n.Value)), nil
	case domain.CompareOpLessThan:
		return fmt.Sprintf("%s < %s", column, b.bind(n.Value)), nil
	case domain.CompareOpLessThanOrEqual:
		return fmt.Sprintf("%s <= %s", column, b.bind(n.Value)), nil
	case domain.CompareOpIn:
		return fmt.Sprintf("%s = ANY(%s)", column, b.bind(n.Value)), nil
	case domain.CompareOpIsNull:
		return fmt.Sprintf("%s IS NULL", column), nil
	case domain.CompareOpNotNull:
		return fmt.Sprintf("%s IS NOT NULL", column), nil
	}
	return "", fmt.Errorf("cannot lower compare op %q", n.Op)
}

// lowerVariable emits one EXISTS semi-join per variable slot: the owner must
// have a row for the slot whose typed value satisfies every condition.
func (b *builder) lowerVariable(n domain.VariablePredicate, tgt target) (string, error) {
	var correlation string
	switch {
	case tgt == targetTask && n.Scope == domain.VariableScopeTask:
		correlation = "v.task_id = t.id"
	case tgt == targetTask && n.Scope == domain.VariableScopeProcess:
		correlation = "v.process_instance_id = t.process_instance_id"
	case tgt == targetProcessInstance && n.Scope == domain.VariableScopeProcess:
		correlation = "v.process_instance_id = pi.id"
	default:
		return "", fmt.Errorf("task-scoped variable predicate cannot apply to process instances")
	}

	conditions := []string{correlation}
	if n.Scope == domain.VariableScopeProcess {
		conditions = append(conditions, fmt.Sprintf("v.definition_key = %s", b.bind(n.DefinitionKey)))
	}
	conditions = append(conditions, fmt.Sprintf("v.name = %s", b.bind(n.Name)))

	for _, cond := range n.Conditions {
		condSQL, err := b.lowerVariableCondition(cond)
		if err != nil {
			return "", err
		}
		conditions = append(conditions, condSQL)
	}

	return "EXISTS (SELECT 1 FROM variables v WHERE " + strings.Join(conditions, " AND ") + ")", nil
}

var compareOpSQL = map[domain.FilterOperator]string{
	domain.FilterOperatorEquals:             "=",
	domain.FilterOperatorGreaterThan:        ">",
	domain.FilterOperatorGreaterThanOrEqual: ">=",
	domain.FilterOperatorLessThan:           "<",
	domain.FilterOperatorLessThanOrEqual:    "<=",
}

// lowerVariableCondition casts the stored textual value per declared type so
// comparisons carry the right semantics: numeric for exact decimal ordering,
// date for day granularity, timestamptz for exact instants. Each cast is
// wrapped in a CASE on the row's type: the planner may evaluate ANDed quals in
// any order, so a bare cast could run against a row of another type and abort
// the query on unparsable text. Rows of a differing type yield NULL and simply
// don't match.
func (b *builder) lowerVariableCondition(cond domain.VariableCondition) (string, error) {
	typeBind := b.bind(string(cond.Type))

	if cond.Operator == domain.FilterOperatorLike {
		if cond.Type != domain.VariableTypeString {
			return "", &domain.ValidationError{Reason: fmt.Sprintf("operator %q is not legal for type %s", cond.Operator, cond.Type)}
		}
		return fmt.Sprintf("(v.type = %s AND v.value ILIKE %s)", typeBind, b.bind("%"+cond.Value.Str+"%")), nil
	}

	op, ok := compareOpSQL[cond.Operator]
	if !ok {
		return "", &domain.ValidationError{Reason: fmt.Sprintf("unknown operator %q", cond.Operator)}
	}

	switch cond.Type {
	case domain.VariableTypeString:
		return fmt.Sprintf("(v.type = %s AND v.value %s %s)", typeBind, op, b.bind(cond.Value.Str)), nil
	case domain.VariableTypeInteger:
		return fmt.Sprintf("CASE WHEN v.type = %s THEN (v.value)::bigint %s %s END", typeBind, op, b.bind(cond.Value.Int)), nil
	case domain.VariableTypeBigDecimal:
		return fmt.Sprintf("CASE WHEN v.type = %s THEN (v.value)::numeric %s (%s)::numeric END", typeBind, op, b.bind(cond.Value.Dec.String())), nil
	case domain.VariableTypeBoolean:
		if cond.Operator != domain.FilterOperatorEquals {
			return "", &domain.ValidationError{Reason: fmt.Sprintf("operator %q is not legal for type %s", cond.Operator, cond.Type)}
		}
		return fmt.Sprintf("CASE WHEN v.type = %s THEN (lower(v.value))::boolean = %s END", typeBind, b.bind(cond.Value.Bool)), nil
	case domain.VariableTypeDate:
		// Stored DATE text starts with the calendar day in the value's own
		// zone, whether it is a plain day or a full instant with an offset.
		// Casting through timestamptz would re-derive the day in the session
		// time zone instead.
		return fmt.Sprintf("CASE WHEN v.type = %s THEN left(v.value, 10)::date %s (%s)::date END", typeBind, op, b.bind(cond.Value.Time.Format("2006-01-02"))), nil
	case domain.VariableTypeDateTime:
		return fmt.Sprintf("CASE WHEN v.type = %s THEN (v.value)::timestamptz %s %s END", typeBind, op, b.bind(cond.Value.Time)), nil
	}
	return "", &domain.ValidationError{Reason: fmt.Sprintf("unknown variable type %q", cond.Type)}
}
