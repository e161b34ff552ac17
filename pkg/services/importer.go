package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/corretor-crm/corretor/pkg/flow"
	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/phone"
)

// ImportRow is one contact of an import-contacts request.
type ImportRow struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email,omitempty"`
	Department string   `json:"department,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ImportError reports a rejected row. Row is 1-based.
type ImportError struct {
	Row   int    `json:"row"`
	Phone string `json:"phone,omitempty"`
	Error string `json:"error"`
}

// ImportResult counts what an import did. Rows repeating a phone already
// seen in the same import are skipped.
type ImportResult struct {
	Imported int           `json:"imported"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// Importer bulk-upserts contacts by normalized phone.
type Importer struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewImporter(persistence persistence.Persistence, logger *slog.Logger) *Importer {
	return &Importer{persistence: persistence, logger: logger.With("module", "importer")}
}

func (i *Importer) Import(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	result := &ImportResult{Errors: []ImportError{}}
	seen := make(map[string]bool, len(rows))

	for n, row := range rows {
		number, err := phone.Parse(row.Phone)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: n + 1, Phone: row.Phone, Error: "invalid phone"})

			continue
		}

		if seen[number] {
			result.Skipped++

			continue
		}

		seen[number] = true

		var department models.Department
		if row.Department != "" {
			department, err = models.ParseDepartment(row.Department)
			if err != nil {
				result.Errors = append(result.Errors, ImportError{Row: n + 1, Phone: row.Phone, Error: err.Error()})

				continue
			}
		}

		_, created, err := upsertContact(ctx, i.persistence, contactDetails{
			Phone:      number,
			Name:       row.Name,
			Email:      row.Email,
			Department: department,
			Source:     "import",
			Tags:       row.Tags,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			result.Errors = append(result.Errors, ImportError{Row: n + 1, Phone: row.Phone, Error: err.Error()})

			continue
		}

		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	i.logger.InfoContext(ctx, "Contacts imported",
		"imported", result.Imported, "updated", result.Updated, "skipped", result.Skipped, "errors", len(result.Errors))

	return result, nil
}

var csvColumns = map[string]string{
	"name":         "name",
	"nome":         "name",
	"phone":        "phone",
	"telefone":     "phone",
	"celular":      "phone",
	"whatsapp":     "phone",
	"email":        "email",
	"e-mail":       "email",
	"department":   "department",
	"departamento": "department",
	"tags":         "tags",
}

// ParseCSV reads contacts from a CSV document whose first line is a header.
// Columns are matched by name in English or Portuguese; tags are separated
// by ";" or "|". Both "," and ";" field separators are accepted.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	text := strings.TrimPrefix(string(data), "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if header, _, _ := strings.Cut(text, "\n"); strings.Count(header, ";") > strings.Count(header, ",") {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []ImportRow{}, nil
	}

	if err != nil {
		return nil, NewValidationError("ParseCSV", "INVALID_CSV", err.Error(), ErrInvalidPayload)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		if field, ok := csvColumns[flow.Fold(name)]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = idx
			}
		}
	}

	if _, ok := columns["phone"]; !ok {
		return nil, NewValidationError("ParseCSV", "INVALID_CSV", "CSV header has no phone column", ErrInvalidPayload)
	}

	cell := func(record []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[idx])
	}

	rows := []ImportRow{}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, NewValidationError("ParseCSV", "INVALID_CSV", fmt.Sprintf("line %d: %v", len(rows)+2, err), ErrInvalidPayload)
		}

		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		rows = append(rows, ImportRow{
			Name:       cell(record, "name"),
			Phone:      cell(record, "phone"),
			Email:      cell(record, "email"),
			Department: cell(record, "department"),
			Tags: strings.FieldsFunc(cell(record, "tags"), func(r rune) bool {
				return r == ';' || r == '|'
			}),
		})
	}

	return rows, nil
}
