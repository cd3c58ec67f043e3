package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariableType governs parsing, storage representation and which filter
// operators are legal for a variable.
type VariableType string

const (
	VariableTypeString     VariableType = "STRING"
	VariableTypeInteger    VariableType = "INTEGER"
	VariableTypeBigDecimal VariableType = "BIGDECIMAL"
	VariableTypeBoolean    VariableType = "BOOLEAN"
	VariableTypeDate       VariableType = "DATE"
	VariableTypeDateTime   VariableType = "DATETIME"
)

// Valid reports whether t is one of the supported variable types.
func (t VariableType) Valid() bool {
	switch t {
	case VariableTypeString, VariableTypeInteger, VariableTypeBigDecimal,
		VariableTypeBoolean, VariableTypeDate, VariableTypeDateTime:
		return true
	}
	return false
}

// VariableScope distinguishes task-owned from process-instance-owned rows.
type VariableScope string

const (
	VariableScopeTask    VariableScope = "task"
	VariableScopeProcess VariableScope = "process"
)

// Variable is one stored key/value row. Process-scoped rows carry the
// definition key of the owning process; task-scoped rows do not.
type Variable struct {
	ID                uuid.UUID    `json:"id"`
	TaskID            *uuid.UUID   `json:"task_id,omitempty"`
	ProcessInstanceID *uuid.UUID   `json:"process_instance_id,omitempty"`
	DefinitionKey     string       `json:"definition_key"`
	Name              string       `json:"name"`
	Type              VariableType `json:"type"`
	Value             string       `json:"value"`
}

// Scope derives the ownership scope from which owner column is set.
func (v Variable) Scope() VariableScope {
	if v.TaskID != nil {
		return VariableScopeTask
	}
	return VariableScopeProcess
}

const dateLayout = "2006-01-02"

// TypedValue is the tagged runtime representation of a coerced variable value.
// Exactly one payload field is meaningful, selected by Type.
type TypedValue struct {
	Type VariableType

	Str  string
	Int  int64
	Dec  decimal.Decimal
	Bool bool
	Time time.Time
}

// Coerce converts a textual value into the runtime representation required by
// the declared type. It is pure and safe for concurrent use.
func Coerce(raw string, t VariableType) (TypedValue, error) {
	switch t {
	case VariableTypeString:
		return TypedValue{Type: t, Str: raw}, nil
	case VariableTypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return TypedValue{}, &CoercionError{Type: t, Raw: raw}
		}
		return TypedValue{Type: t, Int: n}, nil
	case VariableTypeBigDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return TypedValue{}, &CoercionError{Type: t, Raw: raw}
		}
		return TypedValue{Type: t, Dec: d}, nil
	case VariableTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return TypedValue{Type: t, Bool: true}, nil
		case "false":
			return TypedValue{Type: t, Bool: false}, nil
		}
		return TypedValue{}, &CoercionError{Type: t, Raw: raw}
	case VariableTypeDate:
		day, err := time.Parse(dateLayout, strings.TrimSpace(raw))
		if err != nil {
			return TypedValue{}, &CoercionError{Type: t, Raw: raw}
		}
		return TypedValue{Type: t, Time: day}, nil
	case VariableTypeDateTime:
		instant, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return TypedValue{}, &CoercionError{Type: t, Raw: raw}
		}
		return TypedValue{Type: t, Time: instant}, nil
	}
	return TypedValue{}, &CoercionError{Type: t, Raw: raw}
}

// CoerceStored converts a stored variable value. Stored DATE values may carry a
// time-of-day component, so they are parsed as instants and compared at day
// granularity later.
func CoerceStored(raw string, t VariableType) (TypedValue, error) {
	if t == VariableTypeDate {
		if instant, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			return TypedValue{Type: t, Time: instant}, nil
		}
	}
	return Coerce(raw, t)
}

// Matches applies op to a stored value and a filter value of the same declared
// type, honoring per-type comparison semantics: exact decimal ordering for
// BIGDECIMAL, day granularity for DATE, exact instants for DATETIME and
// case-insensitive containment for LIKE.
func Matches(op FilterOperator, stored, filter TypedValue) (bool, error) {
	if stored.Type != filter.Type {
		return false, nil
	}
	if op == FilterOperatorLike {
		if filter.Type != VariableTypeString {
			return false, &ValidationError{Reason: "like requires a string value"}
		}
		return strings.Contains(strings.ToLower(stored.Str), strings.ToLower(filter.Str)), nil
	}
	if filter.Type == VariableTypeBoolean {
		if op != FilterOperatorEquals {
			return false, &ValidationError{Reason: "booleans only support equality"}
		}
		return stored.Bool == filter.Bool, nil
	}

	cmp, err := compareValues(stored, filter)
	if err != nil {
		return false, err
	}
	switch op {
	case FilterOperatorEquals:
		return cmp == 0, nil
	case FilterOperatorGreaterThan:
		return cmp > 0, nil
	case FilterOperatorGreaterThanOrEqual:
		return cmp >= 0, nil
	case FilterOperatorLessThan:
		return cmp < 0, nil
	case FilterOperatorLessThanOrEqual:
		return cmp <= 0, nil
	}
	return false, &ValidationError{Reason: "unsupported operator " + string(op)}
}

func compareValues(stored, filter TypedValue) (int, error) {
	switch filter.Type {
	case VariableTypeString:
		return strings.Compare(stored.Str, filter.Str), nil
	case VariableTypeInteger:
		switch {
		case stored.Int < filter.Int:
			return -1, nil
		case stored.Int > filter.Int:
			return 1, nil
		}
		return 0, nil
	case VariableTypeBigDecimal:
		return stored.Dec.Cmp(filter.Dec), nil
	case VariableTypeDate:
		// Day granularity in the stored value's zone: any instant on the
		// filter's calendar day compares equal.
		sy, sm, sd := stored.Time.Date()
		fy, fm, fd := filter.Time.Date()
		storedDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
		filterDay := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
		return storedDay.Compare(filterDay), nil
	case VariableTypeDateTime:
		return stored.Time.Compare(filter.Time), nil
	}
	return 0, &ValidationError{Reason: "uncomparable type " + string(filter.Type)}
}
