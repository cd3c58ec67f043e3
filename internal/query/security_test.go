package query

import (
	"testing"

	"github.com/procflow/procql/internal/domain"
)

func evalTaskVisibility(t *testing.T, sc domain.SecurityContext, rec domain.TaskRecord) bool {
	t.Helper()
	ok, err := domain.EvalTask(TaskVisibility(sc), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ok
}

func TestTaskVisibilityAnonymous(t *testing.T) {
	pred := TaskVisibility(domain.SecurityContext{})
	if pred != domain.False {
		t.Fatalf("anonymous callers must see nothing, got %#v", pred)
	}
}

func TestTaskVisibilityAssignee(t *testing.T) {
	rec := domain.TaskRecord{Task: domain.Task{Assignee: "alice"}}
	if !evalTaskVisibility(t, domain.SecurityContext{UserID: "alice"}, rec) {
		t.Fatalf("assignee must see their task")
	}
	if evalTaskVisibility(t, domain.SecurityContext{UserID: "bob"}, rec) {
		t.Fatalf("non-assignee must not see an assigned task without candidacy")
	}
}

func TestTaskVisibilityOwner(t *testing.T) {
	rec := domain.TaskRecord{Task: domain.Task{Owner: "carol", Assignee: "alice"}}
	if !evalTaskVisibility(t, domain.SecurityContext{UserID: "carol"}, rec) {
		t.Fatalf("owner must see the task regardless of assignment")
	}
}

func TestTaskVisibilityAssignmentNarrowsCandidacy(t *testing.T) {
	// Both users are candidates, but once the task is assigned to alice only
	// she may see it through candidacy.
	rec := domain.TaskRecord{
		Task:           domain.Task{Assignee: "alice"},
		CandidateUsers: []string{"alice", "bob"},
	}
	if !evalTaskVisibility(t, domain.SecurityContext{UserID: "alice"}, rec) {
		t.Fatalf("assigned candidate must see the task")
	}
	if evalTaskVisibility(t, domain.SecurityContext{UserID: "bob"}, rec) {
		t.Fatalf("unassigned candidate must not see a task assigned to someone else")
	}
}

func TestTaskVisibilityUnassignedCandidates(t *testing.T) {
	rec := domain.TaskRecord{
		Task:            domain.Task{},
		CandidateGroups: []string{"finance"},
	}
	if !evalTaskVisibility(t, domain.SecurityContext{UserID: "bob", Groups: []string{"finance"}}, rec) {
		t.Fatalf("candidate group member must see an unassigned task")
	}
	if evalTaskVisibility(t, domain.SecurityContext{UserID: "mallory", Groups: []string{"sales"}}, rec) {
		t.Fatalf("non-candidate must not see a candidate-restricted task")
	}
}

func TestTaskVisibilityOpenTask(t *testing.T) {
	// No assignee, no candidates configured: visible to any authenticated user.
	rec := domain.TaskRecord{Task: domain.Task{}}
	if !evalTaskVisibility(t, domain.SecurityContext{UserID: "anyone"}, rec) {
		t.Fatalf("unrestricted unassigned task must be visible to authenticated users")
	}
}

func evalInstanceVisibility(t *testing.T, sc domain.SecurityContext, policies []domain.AccessPolicy, rec domain.ProcessInstanceRecord) bool {
	t.Helper()
	ok, err := domain.EvalProcessInstance(ProcessInstanceVisibility(sc, policies), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ok
}

func TestProcessInstanceVisibilityUnrestrictedService(t *testing.T) {
	rec := domain.ProcessInstanceRecord{ProcessInstance: domain.ProcessInstance{ServiceName: "billing"}}
	policies := []domain.AccessPolicy{{
		ServiceName: "payroll", SubjectType: domain.SubjectTypeUser, Subject: "alice", Level: domain.AccessLevelRead,
	}}
	if !evalInstanceVisibility(t, domain.SecurityContext{UserID: "bob"}, policies, rec) {
		t.Fatalf("instances of services no policy names must stay visible")
	}
}

func TestProcessInstanceVisibilityGrantedPolicy(t *testing.T) {
	rec := domain.ProcessInstanceRecord{ProcessInstance: domain.ProcessInstance{ServiceName: "billing"}}
	policies := []domain.AccessPolicy{{
		ServiceName: "billing", SubjectType: domain.SubjectTypeGroup, Subject: "finance", Level: domain.AccessLevelRead,
	}}
	if !evalInstanceVisibility(t, domain.SecurityContext{UserID: "bob", Groups: []string{"finance"}}, policies, rec) {
		t.Fatalf("granted group member must see the instance")
	}
	if evalInstanceVisibility(t, domain.SecurityContext{UserID: "mallory"}, policies, rec) {
		t.Fatalf("ungranted caller must not see a restricted instance")
	}
}

func TestProcessInstanceVisibilityPolicyMatchingIsFuzzy(t *testing.T) {
	// Policy matching folds case and hyphens on the service name.
	rec := domain.ProcessInstanceRecord{ProcessInstance: domain.ProcessInstance{ServiceName: "Billing-Service"}}
	policies := []domain.AccessPolicy{{
		ServiceName: "billingservice", SubjectType: domain.SubjectTypeUser, Subject: "alice", Level: domain.AccessLevelWrite,
	}}
	if !evalInstanceVisibility(t, domain.SecurityContext{UserID: "alice"}, policies, rec) {
		t.Fatalf("WRITE policy must imply READ through fuzzy name matching")
	}
	if evalInstanceVisibility(t, domain.SecurityContext{UserID: "bob"}, policies, rec) {
		t.Fatalf("the fuzzy-matched restriction must still exclude ungranted callers")
	}
}

func TestProcessInstanceVisibilityThroughVisibleTask(t *testing.T) {
	// The caller has no policy grant but is the assignee of one task of the
	// restricted instance.
	rec := domain.ProcessInstanceRecord{
		ProcessInstance: domain.ProcessInstance{ServiceName: "billing"},
		Tasks: []domain.TaskRecord{
			{Task: domain.Task{Assignee: "bob"}},
		},
	}
	policies := []domain.AccessPolicy{{
		ServiceName: "billing", SubjectType: domain.SubjectTypeUser, Subject: "alice", Level: domain.AccessLevelRead,
	}}
	if !evalInstanceVisibility(t, domain.SecurityContext{UserID: "bob"}, policies, rec) {
		t.Fatalf("task assignee must reach the owning instance transitively")
	}
}

func TestProcessInstanceVisibilityNonePolicyDoesNotGrant(t *testing.T) {
	rec := domain.ProcessInstanceRecord{ProcessInstance: domain.ProcessInstance{ServiceName: "billing"}}
	policies := []domain.AccessPolicy{{
		ServiceName: "billing", SubjectType: domain.SubjectTypeUser, Subject: "alice", Level: domain.AccessLevelNone,
	}}
	if evalInstanceVisibility(t, domain.SecurityContext{UserID: "alice"}, policies, rec) {
		t.Fatalf("a NONE policy restricts the service without granting its subject")
	}
}

func TestProcessInstanceVisibilityAnonymous(t *testing.T) {
	pred := ProcessInstanceVisibility(domain.SecurityContext{}, nil)
	if pred != domain.False {
		t.Fatalf("anonymous callers must see nothing, got %#v", pred)
	}
}
