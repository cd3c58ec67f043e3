// Package httpapi exposes the search entry points over JSON HTTP. Payload
// decoding stays here; validation and restriction live in the search service.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procflow/procql/internal/auth"
	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/repository"
	"github.com/procflow/procql/internal/search"
)

type Handler struct {
	service *search.Service
}

func NewHTTPHandler(service *search.Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/admin/tasks/search"):
		h.handleTaskSearch(w, r, true)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tasks/search"):
		h.handleTaskSearch(w, r, false)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/admin/process-instances/search"):
		h.handleInstanceSearch(w, r, true)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/process-instances/search"):
		h.handleInstanceSearch(w, r, false)
		return
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/tasks/"):
		h.handleGetTask(w, r)
		return
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/process-instances/"):
		h.handleGetInstance(w, r)
		return
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
}

type variableFilterInput struct {
	DefinitionKey *string `json:"definitionKey"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Value         string  `json:"value"`
	Operator      string  `json:"operator"`
}

type variableKeyInput struct {
	DefinitionKey string `json:"definitionKey"`
	Name          string `json:"name"`
}

type sortInput struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type pageInput struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

type taskSearchPayload struct {
	NameLike          string                `json:"nameLike"`
	DescriptionLike   string                `json:"descriptionLike"`
	Status            *string               `json:"status"`
	Assignee          string                `json:"assignee"`
	DefinitionKey     string                `json:"definitionKey"`
	ProcessInstanceID *string               `json:"processInstanceId"`
	StandaloneOnly    bool                  `json:"standaloneOnly"`
	CreatedFrom       *time.Time            `json:"createdFrom"`
	CreatedTo         *time.Time            `json:"createdTo"`
	VariableFilters   []variableFilterInput `json:"variableFilters"`
	VariableKeys      []variableKeyInput    `json:"variableKeys"`
	Sort              *sortInput            `json:"sort"`
	Page              *pageInput            `json:"page"`
}

type instanceSearchPayload struct {
	NameLike        string                `json:"nameLike"`
	Status          *string               `json:"status"`
	DefinitionKey   string                `json:"definitionKey"`
	Initiator       string                `json:"initiator"`
	StartedFrom     *time.Time            `json:"startedFrom"`
	StartedTo       *time.Time            `json:"startedTo"`
	VariableFilters []variableFilterInput `json:"variableFilters"`
	VariableKeys    []variableKeyInput    `json:"variableKeys"`
	Sort            *sortInput            `json:"sort"`
	Page            *pageInput            `json:"page"`
}

type taskPagePayload struct {
	Items        []domain.Task `json:"items"`
	TotalItems   int           `json:"totalItems"`
	HasMoreItems bool          `json:"hasMoreItems"`
	Number       int           `json:"number"`
	Size         int           `json:"size"`
}

type instancePagePayload struct {
	Items        []domain.ProcessInstance `json:"items"`
	TotalItems   int                      `json:"totalItems"`
	HasMoreItems bool                     `json:"hasMoreItems"`
	Number       int                      `json:"number"`
	Size         int                      `json:"size"`
}

func (h *Handler) handleTaskSearch(w http.ResponseWriter, r *http.Request, admin bool) {
	defer r.Body.Close()
	var payload taskSearchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	criteria := domain.TaskSearchCriteria{
		NameLike:        payload.NameLike,
		DescriptionLike: payload.DescriptionLike,
		Assignee:        payload.Assignee,
		DefinitionKey:   payload.DefinitionKey,
		StandaloneOnly:  payload.StandaloneOnly,
		CreatedFrom:     payload.CreatedFrom,
		CreatedTo:       payload.CreatedTo,
		VariableFilters: toVariableFilters(payload.VariableFilters),
		VariableKeys:    toVariableKeys(payload.VariableKeys),
	}
	if payload.Status != nil {
		status := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(*payload.Status)))
		criteria.Status = &status
	}
	if payload.ProcessInstanceID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*payload.ProcessInstanceID))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid processInstanceId: %v", err), http.StatusBadRequest)
			return
		}
		criteria.ProcessInstanceID = &id
	}

	sort := toSort(payload.Sort)
	page := toPage(payload.Page)

	var (
		result domain.TaskPage
		err    error
	)
	if admin {
		result, err = h.service.SearchTasksAdmin(r.Context(), criteria, sort, page)
	} else {
		sc, _ := auth.SecurityContextFromContext(r.Context())
		result, err = h.service.SearchTasks(r.Context(), sc, criteria, sort, page)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskPagePayload{
		Items:        result.Items,
		TotalItems:   result.TotalItems,
		HasMoreItems: result.HasMoreItems,
		Number:       result.Number,
		Size:         result.Size,
	})
}

func (h *Handler) handleInstanceSearch(w http.ResponseWriter, r *http.Request, admin bool) {
	defer r.Body.Close()
	var payload instanceSearchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	criteria := domain.ProcessInstanceSearchCriteria{
		NameLike:        payload.NameLike,
		DefinitionKey:   payload.DefinitionKey,
		Initiator:       payload.Initiator,
		StartedFrom:     payload.StartedFrom,
		StartedTo:       payload.StartedTo,
		VariableFilters: toVariableFilters(payload.VariableFilters),
		VariableKeys:    toVariableKeys(payload.VariableKeys),
	}
	if payload.Status != nil {
		status := domain.ProcessInstanceStatus(strings.ToUpper(strings.TrimSpace(*payload.Status)))
		criteria.Status = &status
	}

	sort := toSort(payload.Sort)
	page := toPage(payload.Page)

	var (
		result domain.ProcessInstancePage
		err    error
	)
	if admin {
		result, err = h.service.SearchProcessInstancesAdmin(r.Context(), criteria, sort, page)
	} else {
		sc, _ := auth.SecurityContextFromContext(r.Context())
		result, err = h.service.SearchProcessInstances(r.Context(), sc, criteria, sort, page)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instancePagePayload{
		Items:        result.Items,
		TotalItems:   result.TotalItems,
		HasMoreItems: result.HasMoreItems,
		Number:       result.Number,
		Size:         result.Size,
	})
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTrailingID(w, r)
	if !ok {
		return
	}
	sc, _ := auth.SecurityContextFromContext(r.Context())
	task, err := h.service.GetTask(r.Context(), sc, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTrailingID(w, r)
	if !ok {
		return
	}
	sc, _ := auth.SecurityContextFromContext(r.Context())
	instance, err := h.service.GetProcessInstance(r.Context(), sc, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func parseTrailingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx == -1 || idx == len(path)-1 {
		http.Error(w, "missing identifier", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(path[idx+1:])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid identifier: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func toVariableFilters(inputs []variableFilterInput) []domain.VariableFilter {
	if len(inputs) == 0 {
		return nil
	}
	filters := make([]domain.VariableFilter, 0, len(inputs))
	for _, input := range inputs {
		filter := domain.VariableFilter{
			Name:     strings.TrimSpace(input.Name),
			Type:     domain.VariableType(strings.ToUpper(strings.TrimSpace(input.Type))),
			Value:    input.Value,
			Operator: domain.FilterOperator(strings.ToLower(strings.TrimSpace(input.Operator))),
		}
		if input.DefinitionKey != nil {
			key := strings.TrimSpace(*input.DefinitionKey)
			filter.DefinitionKey = &key
		}
		filters = append(filters, filter)
	}
	return filters
}

func toVariableKeys(inputs []variableKeyInput) []domain.ProcessVariableKey {
	if len(inputs) == 0 {
		return nil
	}
	keys := make([]domain.ProcessVariableKey, 0, len(inputs))
	for _, input := range inputs {
		keys = append(keys, domain.ProcessVariableKey{
			DefinitionKey: strings.TrimSpace(input.DefinitionKey),
			Name:          strings.TrimSpace(input.Name),
		})
	}
	return keys
}

func toSort(input *sortInput) domain.Sort {
	if input == nil {
		return domain.Sort{}
	}
	return domain.Sort{
		Field:     strings.TrimSpace(input.Field),
		Direction: domain.SortDirection(strings.ToLower(strings.TrimSpace(input.Direction))),
	}
}

func toPage(input *pageInput) domain.PageRequest {
	if input == nil {
		return domain.PageRequest{Number: 0, Size: 50}
	}
	return domain.PageRequest{Number: input.Number, Size: input.Size}
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var coercionErr *domain.CoercionError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &coercionErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
