// Package sheets appends monthly financial summaries to a Google
// spreadsheet, one sheet per year.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/summary"
)

// Options configures an Exporter. Exactly one credential source is used:
// CredentialsJSON wins over CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// New creates an Exporter authenticated with a service account.
func New(ctx context.Context, opts Options) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := serviceAccountJSON(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", opts.SpreadsheetID)
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Summary"
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetBase: strings.TrimSpace(sheetName)}
}

func serviceAccountJSON(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// summaryRows flattens s into rows of
// [owner, start, end, section, label, amount].
func summaryRows(ownerID string, s summary.Summary) [][]any {
	start, end := s.Start.String(), s.End.String()
	row := func(section, label, amount string) []any {
		return []any{ownerID, start, end, section, label, amount}
	}

	var rows [][]any
	for _, c := range s.Spending.Categories {
		rows = append(rows, row("category", c.Name, core.FormatAmount(c.Amount)))
	}
	st := s.Spending.Totals
	rows = append(rows,
		row("spending", "One-time", core.FormatAmount(st.OneTime)),
		row("spending", "Recurring", core.FormatAmount(st.Recurring)),
		row("spending", "Bills", core.FormatAmount(st.Bills)),
		row("spending", "Lending", core.FormatAmount(st.Lending)),
		row("spending", "Total", core.FormatAmount(st.Total)),
	)
	it := s.Income.Totals
	rows = append(rows,
		row("income", "Salary", core.FormatAmount(it.Salary)),
		row("income", "Recurring", core.FormatAmount(it.Recurring)),
		row("income", "One-time", core.FormatAmount(it.OneTime)),
		row("income", "Lending repaid", core.FormatAmount(it.LendingRepaid)),
		row("income", "Total", core.FormatAmount(it.Total)),
		row("net", "Remaining", core.FormatAmount(s.Remaining)),
		row("net", "Savings", core.FormatAmount(s.Income.Savings)),
		row("net", "Net balance", core.FormatAmount(s.NetBalance)),
	)
	return rows
}

// AppendSummary appends s below the existing rows of the year's summary
// sheet and returns the updated range.
func (e *Exporter) AppendSummary(ctx context.Context, ownerID string, s summary.Summary) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(e.sheetBase, s.Start.Year())
	rng := fmt.Sprintf("'%s'!A:F", sheet)
	vr := &gsheet.ValueRange{Values: summaryRows(ownerID, s)}

	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append summary to %s: %w", sheet, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Summary appended to sheet",
		"sheet", sheet,
		"rows", len(vr.Values),
		"range", updated)
	return updated, nil
}
