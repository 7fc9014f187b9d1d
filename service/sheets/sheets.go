// Package sheets reads the account list from, and writes the report to, Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/amr0ny/bc-parser/service/accounts"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/report"
)

const valueInputOption = "USER_ENTERED"

// LastUpdatedCell is where UpdateTimestamp writes, two columns right of the header.
var LastUpdatedCell = fmt.Sprintf("%s1", columnLetter(len(record.Headers)+2))

// NewService creates a Sheets API client authenticated with a service account key file.
// Extra options are appended, which lets tests point the client at a local server.
func NewService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, error) {
	base := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		base = append(base, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// Reader reads accounts from the first two columns of a worksheet.
// Row 1 is a header and is skipped.
type Reader struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	logger        *slog.Logger
}

// NewReader creates an account source backed by a worksheet.
func NewReader(svc *sheets.Service, spreadsheetID, worksheet string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Reader{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet, logger: logger}
}

// ReadAccounts returns the accounts listed below the header row.
func (r *Reader) ReadAccounts(ctx context.Context) ([]accounts.Account, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.worksheet+"!A:B").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", r.worksheet, err)
	}
	rows := resp.Values
	if len(rows) > 0 {
		rows = rows[1:]
	}
	accts := accounts.FromRows(rows)
	r.logger.DebugContext(ctx, "read accounts", "worksheet", r.worksheet, "rows", len(rows), "accounts", len(accts))
	return accts, nil
}

// Writer renders the report into a worksheet.
type Writer struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	logger        *slog.Logger

	sheetID *int64
}

// NewWriter creates a report sink backed by a worksheet.
func NewWriter(svc *sheets.Service, spreadsheetID, worksheet string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Writer{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet, logger: logger}
}

var _ report.Sink = (*Writer)(nil)

// Clear removes every value in the worksheet, rewrites the header and formats it.
func (w *Writer) Clear(ctx context.Context) error {
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, w.worksheet, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear worksheet %s: %w", w.worksheet, err)
	}

	header := make([]any, len(record.Headers))
	for i, h := range record.Headers {
		header[i] = h
	}
	vr := &sheets.ValueRange{Values: [][]any{header}}
	if _, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, w.headerRange(), vr).
		ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := w.formatHeader(ctx); err != nil {
		// Formatting is cosmetic; the report is still usable without it.
		w.logger.WarnContext(ctx, "failed to format header", "worksheet", w.worksheet, "error", err)
	}
	return nil
}

// Append adds rows below the existing ones.
func (w *Writer) Append(ctx context.Context, recs []*record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	vr := &sheets.ValueRange{Values: report.Rows(recs)}
	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, w.headerRange(), vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append %d rows: %w", len(recs), err)
	}
	w.logger.DebugContext(ctx, "rows appended", "worksheet", w.worksheet, "rows", len(recs))
	return nil
}

// UpdateTimestamp writes the last-updated marker.
func (w *Writer) UpdateTimestamp(ctx context.Context, at time.Time) error {
	vr := &sheets.ValueRange{Values: [][]any{{"Last updated: " + at.UTC().Format(time.DateTime) + " UTC"}}}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, w.worksheet+"!"+LastUpdatedCell, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update timestamp: %w", err)
	}
	return nil
}

func (w *Writer) headerRange() string {
	return fmt.Sprintf("%s!A1:%s1", w.worksheet, columnLetter(len(record.Headers)))
}

// formatHeader makes the header bold, gray and centered, and sizes the report columns.
func (w *Writer) formatHeader(ctx context.Context) error {
	sheetID, err := w.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	cols := int64(len(record.Headers))
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheetID,
						StartRowIndex:    0,
						EndRowIndex:      1,
						StartColumnIndex: 0,
						EndColumnIndex:   cols,
						ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							BackgroundColor:     &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
							TextFormat:          &sheets.TextFormat{Bold: true},
							HorizontalAlignment: "CENTER",
						},
					},
					Fields: "userEnteredFormat(backgroundColor,textFormat,horizontalAlignment)",
				},
			},
			{
				UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
					Range: &sheets.DimensionRange{
						SheetId:         sheetID,
						Dimension:       "COLUMNS",
						StartIndex:      0,
						EndIndex:        cols,
						ForceSendFields: []string{"SheetId", "StartIndex"},
					},
					Properties: &sheets.DimensionProperties{PixelSize: 150},
					Fields:     "pixelSize",
				},
			},
		},
	}

	if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to apply header format: %w", err)
	}
	return nil
}

func (w *Writer) resolveSheetID(ctx context.Context) (int64, error) {
	if w.sheetID != nil {
		return *w.sheetID, nil
	}
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == w.worksheet {
			id := sh.Properties.SheetId
			w.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("worksheet %q not found", w.worksheet)
}

// columnLetter converts a 1-based column index to its A1 letter form.
func columnLetter(n int) string {
	var s []byte
	for n > 0 {
		n--
		s = append([]byte{byte('A' + n%26)}, s...)
		n /= 26
	}
	return string(s)
}
