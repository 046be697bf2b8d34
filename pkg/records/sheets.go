package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const backendSheets = "sheets"

// SheetsConfig holds Google Sheets settings. The first row of the sheet
// is the header; IDColumn names the column holding record IDs.
type SheetsConfig struct {
	SpreadsheetID string
	SheetName     string
	IDColumn      string
}

// Sheets is a Store backed by one tab of a Google spreadsheet.
type Sheets struct {
	cfg     SheetsConfig
	service *sheets.Service
}

// NewSheets creates a Sheets store. Client options usually come from
// googleauth.ClientOptions.
func NewSheets(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*Sheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("records: spreadsheet ID is required")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = "id"
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("records: create sheets service: %w", err)
	}
	return &Sheets{cfg: cfg, service: svc}, nil
}

// table is a snapshot of the sheet: header plus data rows.
type table struct {
	header []string
	rows   [][]any
}

func (s *Sheets) load(ctx context.Context) (*table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, s.cfg.SheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.cfg.SheetName, err)
	}
	if len(resp.Values) == 0 {
		return &table{}, nil
	}

	t := &table{rows: resp.Values[1:]}
	for _, cell := range resp.Values[0] {
		t.header = append(t.header, strings.TrimSpace(stringValue(cell)))
	}
	return t, nil
}

func (t *table) column(name string) int {
	for i, h := range t.header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// find returns the zero-based data row index of recordID.
func (t *table) find(idColumn, recordID string) (int, error) {
	col := t.column(idColumn)
	if col < 0 {
		return -1, fmt.Errorf("records: sheet has no %q column", idColumn)
	}
	for i, row := range t.rows {
		if col < len(row) && stringValue(row[col]) == recordID {
			return i, nil
		}
	}
	return -1, ErrRecordNotFound
}

// GetField returns the cell at the record's row and the field's column.
func (s *Sheets) GetField(ctx context.Context, recordID, field string) (string, error) {
	t, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	row, err := t.find(s.cfg.IDColumn, recordID)
	if err != nil {
		return "", fmt.Errorf("get record %s: %w", recordID, err)
	}

	col := t.column(field)
	if col < 0 || col >= len(t.rows[row]) {
		return "", nil
	}
	return stringValue(t.rows[row][col]), nil
}

// SetFields writes each field into the record's row in one batch update.
func (s *Sheets) SetFields(ctx context.Context, recordID string, fields map[string]any) error {
	t, err := s.load(ctx)
	if err != nil {
		return err
	}
	row, err := t.find(s.cfg.IDColumn, recordID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}

	// Header is row 1, so data row i lives on sheet row i+2.
	sheetRow := row + 2
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for name, value := range fields {
		col := t.column(name)
		if col < 0 {
			return fmt.Errorf("update record %s: sheet has no %q column", recordID, name)
		}
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", quoteSheet(s.cfg.SheetName), ColumnLetter(col), sheetRow),
			Values: [][]any{{value}},
		})
	}

	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.cfg.SpreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}
	return nil
}

// ColumnLetter converts a zero-based column index to A1 notation.
func ColumnLetter(index int) string {
	var out []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

var _ Store = (*Sheets)(nil)
