package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/procflow/procql/internal/auth"
	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/repository"
	"github.com/procflow/procql/internal/search"
)

type memTaskRepository struct {
	records []domain.TaskRecord
}

func (m *memTaskRepository) Search(ctx context.Context, pred domain.Predicate, _ domain.Sort, page domain.PageRequest) (domain.TaskPage, error) {
	items := []domain.Task{}
	for _, rec := range m.records {
		ok, err := domain.EvalTask(pred, rec)
		if err != nil {
			return domain.TaskPage{}, err
		}
		if ok {
			items = append(items, rec.Task)
		}
	}
	return domain.TaskPage{
		Items:      items,
		TotalItems: len(items),
		Number:     page.Number,
		Size:       page.Size,
	}, nil
}

func (m *memTaskRepository) GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.Task, error) {
	for _, rec := range m.records {
		if rec.Task.ID != id {
			continue
		}
		ok, err := domain.EvalTask(restriction, rec)
		if err != nil {
			return domain.Task{}, err
		}
		if ok {
			return rec.Task, nil
		}
	}
	return domain.Task{}, repository.ErrNotFound
}

type memInstanceRepository struct{}

func (memInstanceRepository) Search(ctx context.Context, pred domain.Predicate, _ domain.Sort, page domain.PageRequest) (domain.ProcessInstancePage, error) {
	return domain.ProcessInstancePage{Items: []domain.ProcessInstance{}, Number: page.Number, Size: page.Size}, nil
}

func (memInstanceRepository) GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.ProcessInstance, error) {
	return domain.ProcessInstance{}, repository.ErrNotFound
}

type memVariableRepository struct{}

func (memVariableRepository) ListForTasks(ctx context.Context, taskIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error) {
	return map[uuid.UUID][]domain.Variable{}, nil
}

func (memVariableRepository) ListForProcessInstances(ctx context.Context, instanceIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error) {
	return map[uuid.UUID][]domain.Variable{}, nil
}

type memPolicyRepository struct{}

func (memPolicyRepository) List(ctx context.Context) ([]domain.AccessPolicy, error) {
	return nil, nil
}

func newTestHandler(records []domain.TaskRecord) http.Handler {
	service := search.NewService(
		&memTaskRepository{records: records},
		memInstanceRepository{},
		memVariableRepository{},
		memPolicyRepository{},
	)
	return NewHTTPHandler(service)
}

func authed(req *http.Request, userID string) *http.Request {
	ctx := auth.ContextWithSecurityContext(req.Context(), domain.SecurityContext{UserID: userID})
	return req.WithContext(ctx)
}

func TestTaskSearchEndpoint(t *testing.T) {
	records := []domain.TaskRecord{{Task: domain.Task{
		ID:        uuid.New(),
		Name:      "Invoice review",
		Status:    domain.TaskStatusAssigned,
		Assignee:  "alice",
		CreatedAt: time.Now(),
	}}}
	handler := newTestHandler(records)

	body := `{"nameLike":"invoice","page":{"number":0,"size":10}}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/search", strings.NewReader(body)), "alice")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var page taskPagePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Invoice review" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestTaskSearchAnonymousGetsEmptyPage(t *testing.T) {
	records := []domain.TaskRecord{{Task: domain.Task{ID: uuid.New(), Name: "hidden"}}}
	handler := newTestHandler(records)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/search", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var page taskPagePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("anonymous searches must return empty pages, got %+v", page)
	}
}

func TestTaskSearchIllegalFilterIs400(t *testing.T) {
	handler := newTestHandler(nil)

	body := `{"variableFilters":[{"name":"approved","type":"BOOLEAN","value":"true","operator":"like"}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/tasks/search", strings.NewReader(body)), "alice")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "approved") {
		t.Fatalf("error must name the offending filter: %s", rr.Body.String())
	}
}

func TestGetTaskNotVisibleIs404(t *testing.T) {
	id := uuid.New()
	records := []domain.TaskRecord{{Task: domain.Task{ID: id, Assignee: "bob"}}}
	handler := newTestHandler(records)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/tasks/"+id.String(), nil), "alice")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for invisible task, got %d", rr.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	handler := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/search", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
