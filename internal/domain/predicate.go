package domain

// Predicate is a composable boolean query condition. Compilers build trees of
// these nodes; store adapters lower them to SQL and tests evaluate them
// in memory, so the filter logic itself stays store-agnostic.
type Predicate interface {
	isPredicate()
}

// CompareOp is the internal comparison vocabulary of predicate trees. It is a
// superset of FilterOperator: the extra members are only produced by the query
// compilers, never accepted from clients.
type CompareOp string

const (
	CompareOpEquals             CompareOp = "eq"
	CompareOpContains           CompareOp = "contains"
	CompareOpGreaterThan        CompareOp = "gt"
	CompareOpGreaterThanOrEqual CompareOp = "gte"
	CompareOpLessThan           CompareOp = "lt"
	CompareOpLessThanOrEqual    CompareOp = "lte"
	CompareOpIn                 CompareOp = "in"
	CompareOpIsNull             CompareOp = "isnull"
	CompareOpNotNull            CompareOp = "notnull"
)

// CompareOpFor maps a client filter operator onto the internal vocabulary.
func CompareOpFor(op FilterOperator) CompareOp {
	if op == FilterOperatorLike {
		return CompareOpContains
	}
	return CompareOp(op)
}

// ConstPredicate is an always-true or always-false leaf. An empty filter set
// compiles to true; a missing security context compiles to false.
type ConstPredicate struct {
	Value bool
}

// AndPredicate is the conjunction of its operands.
type AndPredicate struct {
	Operands []Predicate
}

// OrPredicate is the disjunction of its operands.
type OrPredicate struct {
	Operands []Predicate
}

// NotPredicate negates its operand.
type NotPredicate struct {
	Operand Predicate
}

// FieldPredicate compares a structural field of the queried entity (name,
// status, assignee, dates) against a literal. Field names are logical; the
// store adapter maps them to columns.
type FieldPredicate struct {
	Field string
	Op    CompareOp
	Value any
}

// VariableCondition is one operator/value pair inside a variable slot group.
type VariableCondition struct {
	Operator FilterOperator
	Type     VariableType
	Value    TypedValue
}

// VariablePredicate requires the owner to have a variable row for one slot
// whose typed value satisfies every condition. Each slot is an independent
// existence check (semi-join) because variables are stored one row each.
type VariablePredicate struct {
	Scope         VariableScope
	DefinitionKey string // process scope only
	Name          string
	Conditions    []VariableCondition
}

// CandidateUserPredicate requires the task to list the user as a candidate.
type CandidateUserPredicate struct {
	UserID string
}

// CandidateGroupPredicate requires the task to list one of the groups as a
// candidate group.
type CandidateGroupPredicate struct {
	GroupIDs []string
}

// AnyCandidatePredicate requires the task to have at least one candidate user
// or candidate group configured.
type AnyCandidatePredicate struct{}

// VisibleTaskPredicate requires the process instance to own at least one task
// matching Where. Used for transitive instance visibility.
type VisibleTaskPredicate struct {
	Where Predicate
}

func (ConstPredicate) isPredicate()          {}
func (AndPredicate) isPredicate()            {}
func (OrPredicate) isPredicate()             {}
func (NotPredicate) isPredicate()            {}
func (FieldPredicate) isPredicate()          {}
func (VariablePredicate) isPredicate()       {}
func (CandidateUserPredicate) isPredicate()  {}
func (CandidateGroupPredicate) isPredicate() {}
func (AnyCandidatePredicate) isPredicate()   {}
func (VisibleTaskPredicate) isPredicate()    {}

// True and False are the constant leaves.
var (
	True  = ConstPredicate{Value: true}
	False = ConstPredicate{Value: false}
)

// And conjoins predicates, flattening nested conjunctions and dropping
// constant-true operands. A constant-false operand collapses the whole node.
func And(preds ...Predicate) Predicate {
	return combine(preds, true)
}

// Or disjoins predicates with the dual simplifications of And.
func Or(preds ...Predicate) Predicate {
	return combine(preds, false)
}

func combine(preds []Predicate, conjunction bool) Predicate {
	operands := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		if c, ok := p.(ConstPredicate); ok {
			if c.Value == conjunction {
				continue // neutral element
			}
			return c // absorbing element
		}
		if conjunction {
			if inner, ok := p.(AndPredicate); ok {
				operands = append(operands, inner.Operands...)
				continue
			}
		} else {
			if inner, ok := p.(OrPredicate); ok {
				operands = append(operands, inner.Operands...)
				continue
			}
		}
		operands = append(operands, p)
	}
	switch len(operands) {
	case 0:
		return ConstPredicate{Value: conjunction}
	case 1:
		return operands[0]
	}
	if conjunction {
		return AndPredicate{Operands: operands}
	}
	return OrPredicate{Operands: operands}
}
