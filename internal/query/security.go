package query

import (
	"sort"

	"github.com/procflow/procql/internal/domain"
)

// TaskVisibility builds the predicate fragment expressing which tasks the
// caller may see. It is conjoined with every restricted task query, including
// by-id lookups, so no path can bypass it.
//
// A task is visible when the caller is its assignee or owner, when the caller
// is a listed candidate and the task is unassigned (assignment strictly
// narrows candidacy once set), or when the task has no assignee and no
// candidates configured at all.
func TaskVisibility(sc domain.SecurityContext) domain.Predicate {
	if sc.Anonymous() {
		return domain.False
	}

	candidacy := []domain.Predicate{
		domain.CandidateUserPredicate{UserID: sc.UserID},
	}
	if len(sc.Groups) > 0 {
		candidacy = append(candidacy, domain.CandidateGroupPredicate{GroupIDs: sc.Groups})
	}

	unassignedOrSelf := domain.Or(
		domain.FieldPredicate{Field: "assignee", Op: domain.CompareOpIsNull},
		domain.FieldPredicate{Field: "assignee", Op: domain.CompareOpEquals, Value: sc.UserID},
	)

	return domain.Or(
		domain.FieldPredicate{Field: "assignee", Op: domain.CompareOpEquals, Value: sc.UserID},
		domain.FieldPredicate{Field: "owner", Op: domain.CompareOpEquals, Value: sc.UserID},
		domain.And(domain.Or(candidacy...), unassignedOrSelf),
		domain.And(
			domain.NotPredicate{Operand: domain.AnyCandidatePredicate{}},
			domain.FieldPredicate{Field: "assignee", Op: domain.CompareOpIsNull},
		),
	)
}

// ProcessInstanceVisibility builds the predicate fragment expressing which
// process instances the caller may see, given the configured access policies.
//
// An instance is visible when no policy names its service at all, when a
// policy grants the caller (by user or group) READ on the service, or when the
// caller can reach the instance through at least one visible task.
func ProcessInstanceVisibility(sc domain.SecurityContext, policies []domain.AccessPolicy) domain.Predicate {
	if sc.Anonymous() {
		return domain.False
	}

	restrictedNames := map[string]struct{}{}
	restrictedFullNames := map[string]struct{}{}
	grantedNames := map[string]struct{}{}
	grantedFullNames := map[string]struct{}{}

	for _, p := range policies {
		if name := domain.NormalizeServiceName(p.ServiceName); name != "" {
			restrictedNames[name] = struct{}{}
			if p.AppliesTo(sc) && p.Grants(domain.AccessLevelRead) {
				grantedNames[name] = struct{}{}
			}
		}
		if p.ServiceFullName != "" {
			restrictedFullNames[p.ServiceFullName] = struct{}{}
			if p.AppliesTo(sc) && p.Grants(domain.AccessLevelRead) {
				grantedFullNames[p.ServiceFullName] = struct{}{}
			}
		}
	}

	restricted := domain.Or(
		serviceNameIn("serviceNameNormalized", restrictedNames),
		serviceNameIn("serviceFullName", restrictedFullNames),
	)
	granted := domain.Or(
		serviceNameIn("serviceNameNormalized", grantedNames),
		serviceNameIn("serviceFullName", grantedFullNames),
	)

	return domain.Or(
		domain.NotPredicate{Operand: restricted},
		granted,
		domain.VisibleTaskPredicate{Where: TaskVisibility(sc)},
	)
}

func serviceNameIn(field string, names map[string]struct{}) domain.Predicate {
	if len(names) == 0 {
		return domain.False
	}
	values := make([]string, 0, len(names))
	for name := range names {
		values = append(values, name)
	}
	sort.Strings(values)
	return domain.FieldPredicate{Field: field, Op: domain.CompareOpIn, Value: values}
}
