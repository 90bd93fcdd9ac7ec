package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"tally/internal/core"
	"tally/internal/export"
)

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request, owner core.User) error {
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return err
	}
	sum, err := s.summaries.MonthlySummary(r.Context(), owner.ID, start, end)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(sum).Write(w, r)
	return nil
}

func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request, owner core.User) error {
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return err
	}
	spending, err := s.summaries.Spending(r.Context(), owner.ID, start, end)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(spending).Write(w, r)
	return nil
}

func (s *Server) handleIncomeSummary(w http.ResponseWriter, r *http.Request, owner core.User) error {
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return err
	}
	income, err := s.summaries.Income(r.Context(), owner.ID, start, end)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(income).Write(w, r)
	return nil
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request, owner core.User) error {
	date, err := ParseDateParam(r.URL.Query(), "date", s.now())
	if err != nil {
		return err
	}
	day, err := s.summaries.Day(r.Context(), owner.ID, date)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(day).Write(w, r)
	return nil
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request, owner core.User) error {
	date, err := ParseDateParam(r.URL.Query(), "date", s.now())
	if err != nil {
		return err
	}
	week, err := s.summaries.Week(r.Context(), owner.ID, date)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(week).Write(w, r)
	return nil
}

// handleExportXLSX renders the period summary as a workbook download. The
// workbook is buffered so a rendering failure still yields a JSON error.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request, owner core.User) error {
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return err
	}
	sum, err := s.summaries.MonthlySummary(r.Context(), owner.ID, start, end)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteSummary(&buf, sum); err != nil {
		s.metrics.Export("xlsx", "failed")
		return fmt.Errorf("render workbook: %w", err)
	}
	s.metrics.Export("xlsx", "written")

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(sum)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

// handleExportSheet queues a spreadsheet export and answers immediately.
func (s *Server) handleExportSheet(w http.ResponseWriter, r *http.Request, owner core.User) error {
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return err
	}
	if err := s.finance.RequestSummaryExport(r.Context(), owner.ID, start, end); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(map[string]string{
		"status": "queued",
		"start":  start.String(),
		"end":    end.String(),
	}).Write(w, r)
	return nil
}
