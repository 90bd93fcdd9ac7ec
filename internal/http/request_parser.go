// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tally/internal/calendar"
	"tally/internal/core"
)

const maxBodyBytes = 1 << 20

// badRequestError reports malformed input that never reached validation.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// DecodeJSON reads a single JSON object from the body into v, rejecting
// unknown fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &syntaxErr):
			return badRequest("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return badRequest("invalid value for field %q", typeErr.Field)
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case core.IsValidationError(err):
			return err
		default:
			return badRequest("invalid request body: %s", err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeOptional sanitizes a field of a partial update, leaving nil alone.
func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// ParseDateParam reads an optional YYYY-MM-DD query parameter, defaulting to
// the civil date of now.
func ParseDateParam(query url.Values, key string, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: key, Err: core.ErrInvalidDate}
	}
	return d, nil
}

// ParseRangeParams reads start and end, defaulting to the month containing
// now. A missing end defaults to the end of the start's month.
func ParseRangeParams(query url.Values, now time.Time) (start, end core.Date, err error) {
	start = core.DateOf(calendar.MonthStart(now))
	if strings.TrimSpace(query.Get("start")) != "" {
		if start, err = ParseDateParam(query, "start", now); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	end = core.DateOf(calendar.MonthEnd(start.Time))
	if strings.TrimSpace(query.Get("end")) != "" {
		if end, err = ParseDateParam(query, "end", now); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if end.Before(start.Time) {
		return core.Date{}, core.Date{}, &core.ValidationError{Field: "end", Err: core.ErrInvalidDate}
	}
	return start, end, nil
}

// ParseBoolParam reads an optional boolean query parameter.
func ParseBoolParam(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid boolean for %q", key)
	}
	return b, nil
}

// ParseKindParam reads the optional expense type filter.
func ParseKindParam(query url.Values) core.Kind {
	return core.Kind(sanitizeInput(query.Get("type")))
}
