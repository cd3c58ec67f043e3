package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskRecord is a task together with the associated rows a predicate may
// reach: candidate lists, its own variables and the process variables of the
// owning instance. Evaluation against records mirrors the SQL lowering and
// backs the test suite; the hot path always executes in the store.
type TaskRecord struct {
	Task
	CandidateUsers   []string
	CandidateGroups  []string
	Variables        []Variable
	ProcessVariables []Variable
}

// ProcessInstanceRecord is a process instance with its variables and tasks.
type ProcessInstanceRecord struct {
	ProcessInstance
	Variables []Variable
	Tasks     []TaskRecord
}

// EvalTask evaluates a predicate tree against one task record.
func EvalTask(p Predicate, rec TaskRecord) (bool, error) {
	switch n := p.(type) {
	case ConstPredicate:
		return n.Value, nil
	case AndPredicate:
		for _, op := range n.Operands {
			ok, err := EvalTask(op, rec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OrPredicate:
		for _, op := range n.Operands {
			ok, err := EvalTask(op, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case NotPredicate:
		ok, err := EvalTask(n.Operand, rec)
		return !ok, err
	case FieldPredicate:
		value, err := taskFieldValue(rec.Task, n.Field)
		if err != nil {
			return false, err
		}
		return evalFieldCompare(value, n.Op, n.Value)
	case VariablePredicate:
		return evalVariableMatch(n, rec.Variables, rec.ProcessVariables)
	case CandidateUserPredicate:
		for _, u := range rec.CandidateUsers {
			if u == n.UserID {
				return true, nil
			}
		}
		return false, nil
	case CandidateGroupPredicate:
		for _, g := range rec.CandidateGroups {
			for _, wanted := range n.GroupIDs {
				if g == wanted {
					return true, nil
				}
			}
		}
		return false, nil
	case AnyCandidatePredicate:
		return len(rec.CandidateUsers) > 0 || len(rec.CandidateGroups) > 0, nil
	}
	return false, fmt.Errorf("predicate %T not valid for tasks", p)
}

// EvalProcessInstance evaluates a predicate tree against one instance record.
func EvalProcessInstance(p Predicate, rec ProcessInstanceRecord) (bool, error) {
	switch n := p.(type) {
	case ConstPredicate:
		return n.Value, nil
	case AndPredicate:
		for _, op := range n.Operands {
			ok, err := EvalProcessInstance(op, rec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OrPredicate:
		for _, op := range n.Operands {
			ok, err := EvalProcessInstance(op, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case NotPredicate:
		ok, err := EvalProcessInstance(n.Operand, rec)
		return !ok, err
	case FieldPredicate:
		value, err := instanceFieldValue(rec.ProcessInstance, n.Field)
		if err != nil {
			return false, err
		}
		return evalFieldCompare(value, n.Op, n.Value)
	case VariablePredicate:
		if n.Scope != VariableScopeProcess {
			return false, fmt.Errorf("task-scoped variable predicate not valid for process instances")
		}
		return evalVariableMatch(n, nil, rec.Variables)
	case VisibleTaskPredicate:
		for _, task := range rec.Tasks {
			ok, err := EvalTask(n.Where, task)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("predicate %T not valid for process instances", p)
}

func evalVariableMatch(n VariablePredicate, taskVars, processVars []Variable) (bool, error) {
	var rows []Variable
	if n.Scope == VariableScopeTask {
		rows = taskVars
	} else {
		rows = processVars
	}
	for _, row := range rows {
		if row.Name != n.Name {
			continue
		}
		if n.Scope == VariableScopeProcess && row.DefinitionKey != n.DefinitionKey {
			continue
		}
		all := true
		for _, cond := range n.Conditions {
			if row.Type != cond.Type {
				all = false
				break
			}
			stored, err := CoerceStored(row.Value, row.Type)
			if err != nil {
				all = false
				break
			}
			ok, err := Matches(cond.Operator, stored, cond.Value)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func taskFieldValue(t Task, field string) (any, error) {
	switch field {
	case "name":
		return t.Name, nil
	case "description":
		return t.Description, nil
	case "status":
		return string(t.Status), nil
	case "assignee":
		return t.Assignee, nil
	case "owner":
		return t.Owner, nil
	case "definitionKey":
		return t.DefinitionKey, nil
	case "processInstanceId":
		if t.ProcessInstanceID == nil {
			return "", nil
		}
		return t.ProcessInstanceID.String(), nil
	case "createdAt":
		return t.CreatedAt, nil
	}
	return nil, fmt.Errorf("unknown task field %q", field)
}

func instanceFieldValue(pi ProcessInstance, field string) (any, error) {
	switch field {
	case "name":
		return pi.Name, nil
	case "status":
		return string(pi.Status), nil
	case "definitionKey":
		return pi.DefinitionKey, nil
	case "initiator":
		return pi.Initiator, nil
	case "serviceNameNormalized":
		return NormalizeServiceName(pi.ServiceName), nil
	case "serviceFullName":
		return pi.ServiceFullName, nil
	case "startedAt":
		return pi.StartedAt, nil
	}
	return nil, fmt.Errorf("unknown process instance field %q", field)
}

func evalFieldCompare(value any, op CompareOp, operand any) (bool, error) {
	switch op {
	case CompareOpIsNull:
		return fieldIsEmpty(value), nil
	case CompareOpNotNull:
		return !fieldIsEmpty(value), nil
	case CompareOpIn:
		list, ok := operand.([]string)
		if !ok {
			return false, fmt.Errorf("in operand must be a string list, got %T", operand)
		}
		s := fmt.Sprintf("%v", value)
		for _, candidate := range list {
			if s == candidate {
				return true, nil
			}
		}
		return false, nil
	case CompareOpContains:
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", value)),
			strings.ToLower(fmt.Sprintf("%v", operand)),
		), nil
	}

	if lhs, ok := value.(time.Time); ok {
		rhs, ok := operand.(time.Time)
		if !ok {
			return false, fmt.Errorf("cannot compare time field with %T", operand)
		}
		return compareOrdered(lhs.Compare(rhs), op)
	}

	lhs := fmt.Sprintf("%v", value)
	rhs := fmt.Sprintf("%v", operand)
	return compareOrdered(strings.Compare(lhs, rhs), op)
}

func compareOrdered(cmp int, op CompareOp) (bool, error) {
	switch op {
	case CompareOpEquals:
		return cmp == 0, nil
	case CompareOpGreaterThan:
		return cmp > 0, nil
	case CompareOpGreaterThanOrEqual:
		return cmp >= 0, nil
	case CompareOpLessThan:
		return cmp < 0, nil
	case CompareOpLessThanOrEqual:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unsupported compare op %q", op)
}

func fieldIsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *string:
		return v == nil || *v == ""
	}
	return false
}
