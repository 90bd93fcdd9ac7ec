// Package export renders financial summaries as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tally/internal/summary"
)

const (
	SummarySheet    = "Summary"
	CategoriesSheet = "Categories"
	ItemsSheet      = "Items"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Filename returns the attachment name for a summary window.
func Filename(s summary.Summary) string {
	return fmt.Sprintf("tally_%s_%s.xlsx", s.Start, s.End)
}

type styles struct {
	header int
	data   int
	total  int
}

func border() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	numFmt := "#,##0.00"

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border(),
	})
	if err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}
	st.data, err = f.NewStyle(&excelize.Style{Border: border(), CustomNumFmt: &numFmt})
	if err != nil {
		return st, fmt.Errorf("create data style: %w", err)
	}
	st.total, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Size: 11},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border:       border(),
		CustomNumFmt: &numFmt,
	})
	if err != nil {
		return st, fmt.Errorf("create total style: %w", err)
	}
	return st, nil
}

// sheetWriter appends rows to one sheet, tracking the next row.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (w *sheetWriter) write(style int, values ...any) {
	if w.err != nil {
		return
	}
	w.row++
	first, _ := excelize.CoordinatesToCellName(1, w.row)
	last, _ := excelize.CoordinatesToCellName(len(values), w.row)
	if err := w.f.SetSheetRow(w.sheet, first, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", w.sheet, w.row, err)
		return
	}
	if err := w.f.SetCellStyle(w.sheet, first, last, style); err != nil {
		w.err = fmt.Errorf("style %s row %d: %w", w.sheet, w.row, err)
	}
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// WriteSummary writes s as a three-sheet workbook: the totals, the spending
// per category and every item counted in the window.
func WriteSummary(w io.Writer, s summary.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{CategoriesSheet, ItemsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	sum := &sheetWriter{f: f, sheet: SummarySheet}
	sum.write(st.header, "Item", "Amount")
	sp, in := s.Spending.Totals, s.Income.Totals
	sum.write(st.data, "Period", fmt.Sprintf("%s to %s", s.Start, s.End))
	sum.write(st.data, "One-time spending", amount(sp.OneTime))
	sum.write(st.data, "Recurring spending", amount(sp.Recurring))
	sum.write(st.data, "Bills", amount(sp.Bills))
	sum.write(st.data, "Lending out", amount(sp.Lending))
	sum.write(st.total, "Total spending", amount(sp.Total))
	sum.write(st.data, "Salary", amount(in.Salary))
	sum.write(st.data, "Recurring income", amount(in.Recurring))
	sum.write(st.data, "One-time income", amount(in.OneTime))
	sum.write(st.data, "Lending repaid", amount(in.LendingRepaid))
	sum.write(st.total, "Total income", amount(in.Total))
	sum.write(st.data, "Remaining", amount(s.Remaining))
	sum.write(st.data, "Savings", amount(s.Income.Savings))
	sum.write(st.total, "Net balance", amount(s.NetBalance))
	if sum.err != nil {
		return sum.err
	}

	cats := &sheetWriter{f: f, sheet: CategoriesSheet}
	cats.write(st.header, "Category", "Amount")
	for _, c := range s.Spending.Categories {
		cats.write(st.data, c.Name, amount(c.Amount))
	}
	cats.write(st.total, "Total", amount(sp.Total))
	if cats.err != nil {
		return cats.err
	}

	items := &sheetWriter{f: f, sheet: ItemsSheet}
	items.write(st.header, "Section", "Name", "Category", "Date", "Amount")
	for _, e := range s.Spending.OneTime {
		items.write(st.data, "One-time", e.Name, e.Category, e.Date.String(), amount(e.Amount))
	}
	for _, e := range s.Spending.Recurring {
		items.write(st.data, "Recurring", e.Name, e.Category, fmt.Sprintf("day %d", e.DayOfMonth), amount(e.Amount))
	}
	for _, e := range s.Spending.BillPayments {
		items.write(st.data, "Bill", e.Name, e.Category, e.Date.String(), amount(e.Amount))
	}
	for _, l := range s.Spending.LendingOut {
		items.write(st.data, "Lending", l.Note, summary.LendingCategory, l.Date.String(), amount(l.Amount))
	}
	for _, a := range s.Income.Recurring {
		items.write(st.data, "Recurring income", a.Name, a.Source, fmt.Sprintf("day %d", a.DayOfMonth), amount(a.Amount))
	}
	for _, a := range s.Income.OneTime {
		items.write(st.data, "One-time income", a.Name, a.Source, a.Date.String(), amount(a.Amount))
	}
	for _, l := range s.Income.LendingRepayments {
		items.write(st.data, "Repayment", l.Note, summary.LendingCategory, l.Date.String(), amount(l.Amount.Abs()))
	}
	if items.err != nil {
		return items.err
	}

	for sheet, widths := range map[string][]float64{
		SummarySheet:    {24, 26},
		CategoriesSheet: {24, 14},
		ItemsSheet:      {18, 30, 18, 14, 14},
	} {
		for i, width := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheet, col, col, width); err != nil {
				return fmt.Errorf("set %s width: %w", sheet, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
