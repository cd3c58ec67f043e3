package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procflow/procql/internal/auth"
	"github.com/procflow/procql/internal/domain"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tasks"):
		h.handleExportTasks(w, r)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/process-instances"):
		h.handleExportInstances(w, r)
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

type taskExportPayload struct {
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
}

type instanceExportPayload struct {
	NameLike        string                `json:"nameLike"`
	Status          *string               `json:"status"`
	DefinitionKey   string                `json:"definitionKey"`
	Initiator       string                `json:"initiator"`
	StartedFrom     *time.Time            `json:"startedFrom"`
	StartedTo       *time.Time            `json:"startedTo"`
	VariableFilters []variableFilterInput `json:"variableFilters"`
	VariableKeys    []variableKeyInput    `json:"variableKeys"`
	Sort            *sortInput            `json:"sort"`
}

func (h *Handler) handleExportTasks(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload taskExportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
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

	sc, _ := auth.SecurityContextFromContext(r.Context())
	sort := toSort(payload.Sort)

	// Validation failures surface before the first page, so a bad request can
	// still get a clean 400 ahead of any streamed bytes.
	if err := h.service.validateTaskExport(criteria, sort); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileName := fmt.Sprintf("tasks-%s.%s", time.Now().UTC().Format("20060102-150405"), format.Extension())
	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	rows, err := h.service.ExportTasks(r.Context(), sc, criteria, sort, format, w)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[export] task export failed after %d rows: %v", rows, err)
		return
	}
	log.Printf("[export] task export completed (rows=%d file=%s)", rows, fileName)
}

func (h *Handler) handleExportInstances(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload instanceExportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
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

	sc, _ := auth.SecurityContextFromContext(r.Context())
	sort := toSort(payload.Sort)

	if err := h.service.validateInstanceExport(criteria, sort); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileName := fmt.Sprintf("process-instances-%s.%s", time.Now().UTC().Format("20060102-150405"), format.Extension())
	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	rows, err := h.service.ExportProcessInstances(r.Context(), sc, criteria, sort, format, w)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[export] process instance export failed after %d rows: %v", rows, err)
		return
	}
	log.Printf("[export] process instance export completed (rows=%d file=%s)", rows, fileName)
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
