// Package google writes export sheets to a Google spreadsheet through the
// Sheets v4 API, authenticated with a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Writer struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *slog.Logger
}

// New builds a Writer from service account credentials. Extra options are
// appended after the credentials (tests point the endpoint at a fake).
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, logger *slog.Logger, opts ...goption.ClientOption) (*Writer, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var all []goption.ClientOption
	if len(credentialsJSON) > 0 {
		all = append(all,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	all = append(all, opts...)

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Writer{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// WriteRows replaces the content of sheet, creating the sheet if needed.
func (w *Writer) WriteRows(ctx context.Context, sheet string, rows [][]any) error {
	if err := w.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	whole := quoteSheet(sheet)
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, whole, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(rows)}
	resp, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, whole+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", sheet, err)
	}

	w.logger.InfoContext(ctx, "Sheet written",
		"sheet", sheet,
		"rows", len(rows),
		"updated_cells", resp.UpdatedCells)
	return nil
}

func (w *Writer) ensureSheet(ctx context.Context, sheet string) error {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	w.logger.InfoContext(ctx, "Sheet created", "sheet", sheet)
	return nil
}

// quoteSheet wraps a sheet title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toValues(rows [][]any) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = make([]interface{}, len(r))
		for j, v := range r {
			if s, ok := v.(string); ok {
				v = escapeFormula(s)
			}
			out[i][j] = v
		}
	}
	return out
}

// escapeFormula keeps text that USER_ENTERED would evaluate as a formula
// literal by prefixing an apostrophe. Plain numbers such as "-12.50" pass.
func escapeFormula(s string) string {
	if s == "" || !strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return s
	}
	if _, err := decimal.NewFromString(s); err == nil {
		return s
	}
	return "'" + s
}
