// Package export streams search results to downloadable CSV or XLSX files.
// Exports run through the same restricted search entry points as the API, so
// a caller can never export rows they could not list.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/query"
	"github.com/procflow/procql/internal/search"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalizes a client-supplied format string. Empty defaults to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// MimeType returns the content type served for the format.
func (f Format) MimeType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

type Service struct {
	search   *search.Service
	pageSize int
}

type Option func(*Service)

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func NewService(searchService *search.Service, opts ...Option) *Service {
	service := &Service{
		search:   searchService,
		pageSize: 500,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.pageSize <= 0 {
		service.pageSize = 500
	}
	return service
}

// ExportTasks streams every page of a restricted task search into w. The
// projected variable keys become trailing columns headed definitionKey.name.
func (s *Service) ExportTasks(ctx context.Context, sc domain.SecurityContext, c domain.TaskSearchCriteria, sort domain.Sort, format Format, w io.Writer) (int, error) {
	headers := append([]string{
		"id", "process_instance_id", "definition_key", "name", "description",
		"status", "assignee", "owner", "priority", "created_at", "due_date",
	}, variableHeaders(c.VariableKeys)...)

	writer, err := newRowWriter(format, w)
	if err != nil {
		return 0, err
	}
	if err := writer.WriteRow(headers); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	rowsExported := 0
	row := make([]string, len(headers))
	for pageNumber := 0; ; pageNumber++ {
		if ctx.Err() != nil {
			return rowsExported, ctx.Err()
		}
		page, err := s.search.SearchTasks(ctx, sc, c, sort, domain.PageRequest{Number: pageNumber, Size: s.pageSize})
		if err != nil {
			return rowsExported, fmt.Errorf("search tasks: %w", err)
		}
		for _, task := range page.Items {
			row[0] = task.ID.String()
			row[1] = formatOptionalUUID(task.ProcessInstanceID)
			row[2] = task.DefinitionKey
			row[3] = task.Name
			row[4] = task.Description
			row[5] = string(task.Status)
			row[6] = task.Assignee
			row[7] = task.Owner
			row[8] = strconv.Itoa(task.Priority)
			row[9] = task.CreatedAt.UTC().Format(time.RFC3339)
			row[10] = formatOptionalTime(task.DueDate)
			fillVariableCells(row[11:], c.VariableKeys, task.Variables)
			if err := writer.WriteRow(row); err != nil {
				return rowsExported, fmt.Errorf("write task row: %w", err)
			}
			rowsExported++
		}
		if !page.HasMoreItems {
			break
		}
	}
	if err := writer.Flush(); err != nil {
		return rowsExported, fmt.Errorf("flush export: %w", err)
	}
	return rowsExported, nil
}

// ExportProcessInstances streams every page of a restricted process instance
// search into w.
func (s *Service) ExportProcessInstances(ctx context.Context, sc domain.SecurityContext, c domain.ProcessInstanceSearchCriteria, sort domain.Sort, format Format, w io.Writer) (int, error) {
	headers := append([]string{
		"id", "definition_key", "service_name", "service_full_name", "name",
		"initiator", "status", "started_at",
	}, variableHeaders(c.VariableKeys)...)

	writer, err := newRowWriter(format, w)
	if err != nil {
		return 0, err
	}
	if err := writer.WriteRow(headers); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	rowsExported := 0
	row := make([]string, len(headers))
	for pageNumber := 0; ; pageNumber++ {
		if ctx.Err() != nil {
			return rowsExported, ctx.Err()
		}
		page, err := s.search.SearchProcessInstances(ctx, sc, c, sort, domain.PageRequest{Number: pageNumber, Size: s.pageSize})
		if err != nil {
			return rowsExported, fmt.Errorf("search process instances: %w", err)
		}
		for _, instance := range page.Items {
			row[0] = instance.ID.String()
			row[1] = instance.DefinitionKey
			row[2] = instance.ServiceName
			row[3] = instance.ServiceFullName
			row[4] = instance.Name
			row[5] = instance.Initiator
			row[6] = string(instance.Status)
			row[7] = instance.StartedAt.UTC().Format(time.RFC3339)
			fillVariableCells(row[8:], c.VariableKeys, instance.Variables)
			if err := writer.WriteRow(row); err != nil {
				return rowsExported, fmt.Errorf("write instance row: %w", err)
			}
			rowsExported++
		}
		if !page.HasMoreItems {
			break
		}
	}
	if err := writer.Flush(); err != nil {
		return rowsExported, fmt.Errorf("flush export: %w", err)
	}
	return rowsExported, nil
}

func (s *Service) validateTaskExport(c domain.TaskSearchCriteria, sort domain.Sort) error {
	if err := query.ValidateTaskSearch(c); err != nil {
		return err
	}
	return query.ValidateSort(sort, query.TaskSortColumns)
}

func (s *Service) validateInstanceExport(c domain.ProcessInstanceSearchCriteria, sort domain.Sort) error {
	if err := query.ValidateProcessInstanceSearch(c); err != nil {
		return err
	}
	return query.ValidateSort(sort, query.ProcessInstanceSortColumns)
}

func variableHeaders(keys []domain.ProcessVariableKey) []string {
	headers := make([]string, len(keys))
	for i, key := range keys {
		headers[i] = fmt.Sprintf("%s.%s", key.DefinitionKey, key.Name)
	}
	return headers
}

func fillVariableCells(cells []string, keys []domain.ProcessVariableKey, variables []domain.Variable) {
	for i, key := range keys {
		cells[i] = ""
		for _, v := range variables {
			if v.DefinitionKey == key.DefinitionKey && v.Name == key.Name {
				cells[i] = v.Value
				break
			}
		}
	}
}

func formatOptionalUUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// rowWriter abstracts the two output encodings behind one streaming row API.
type rowWriter interface {
	WriteRow(cells []string) error
	Flush() error
}

func newRowWriter(format Format, w io.Writer) (rowWriter, error) {
	switch format {
	case FormatCSV:
		return &csvRowWriter{writer: csv.NewWriter(w)}, nil
	case FormatXLSX:
		return newXLSXRowWriter(w)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

type csvRowWriter struct {
	writer *csv.Writer
}

func (c *csvRowWriter) WriteRow(cells []string) error {
	return c.writer.Write(cells)
}

func (c *csvRowWriter) Flush() error {
	c.writer.Flush()
	return c.writer.Error()
}

type xlsxRowWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	out    io.Writer
	row    int
}

func newXLSXRowWriter(w io.Writer) (*xlsxRowWriter, error) {
	file := excelize.NewFile()
	stream, err := file.NewStreamWriter("Sheet1")
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("open xlsx stream: %w", err)
	}
	return &xlsxRowWriter{file: file, stream: stream, out: w, row: 1}, nil
}

func (x *xlsxRowWriter) WriteRow(cells []string) error {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		values[i] = cell
	}
	ref, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.stream.SetRow(ref, values); err != nil {
		return err
	}
	x.row++
	return nil
}

func (x *xlsxRowWriter) Flush() error {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return err
	}
	return x.file.Write(x.out)
}
