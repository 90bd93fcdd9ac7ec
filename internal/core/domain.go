package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/calendar"
)

const (
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Yearly     Frequency = "yearly"
	OneTime    Kind      = "one-time"
	Recurring  Kind      = "recurring"
	maxNameLen           = 200

	// DefaultReminderDays is the reminder lead used when a bill does not set one.
	DefaultReminderDays = 3
)

type (
	// Frequency is the billing cycle of a Bill.
	Frequency string

	// Kind tags the one-time and recurring variants of expenses and
	// additional income.
	Kind string

	// Date is a calendar date held at midnight UTC.
	Date struct {
		time.Time
	}

	// BillPayment links an expense to the bill period it settles.
	BillPayment struct {
		BillID      string `json:"bill_id"`
		PeriodStart Date   `json:"period_start"`
		PeriodEnd   Date   `json:"period_end"`
	}

	// Expense is either a one-time expense (Date set) or a recurring one
	// (DayOfMonth set). A one-time expense with Payment set is a bill payment:
	// it is counted only in the bills total, never as a plain one-time expense.
	Expense struct {
		ID         string          `json:"id"`
		OwnerID    string          `json:"-"`
		Name       string          `json:"name"`
		Amount     decimal.Decimal `json:"amount"`
		Category   string          `json:"category"`
		Kind       Kind            `json:"type"`
		Date       Date            `json:"date,omitzero"`
		DayOfMonth int             `json:"day_of_month,omitempty"`
		Payment    *BillPayment    `json:"payment,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	// AdditionalIncome mirrors Expense with a source tag instead of a category.
	AdditionalIncome struct {
		ID         string          `json:"id"`
		OwnerID    string          `json:"-"`
		Name       string          `json:"name"`
		Amount     decimal.Decimal `json:"amount"`
		Source     string          `json:"source"`
		Kind       Kind            `json:"type"`
		Date       Date            `json:"date,omitzero"`
		DayOfMonth int             `json:"day_of_month,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	Bill struct {
		ID                 string           `json:"id"`
		OwnerID            string           `json:"-"`
		Name               string           `json:"name"`
		Category           string           `json:"category"`
		Frequency          Frequency        `json:"frequency"`
		ExpectedAmount     *decimal.Decimal `json:"expected_amount,omitempty"`
		DeadlineDay        *int             `json:"deadline_day,omitempty"`
		ReminderDaysBefore *int             `json:"reminder_days_before,omitempty"`
		Active             bool             `json:"active"`
		CreatedAt          time.Time        `json:"created_at"`
	}

	// ExpenseUpdate carries a partial expense update. The type and any bill
	// payment link are fixed at creation.
	ExpenseUpdate struct {
		Name       *string          `json:"name,omitempty"`
		Amount     *decimal.Decimal `json:"amount,omitempty"`
		Category   *string          `json:"category,omitempty"`
		Date       *Date            `json:"date,omitempty"`
		DayOfMonth *int             `json:"day_of_month,omitempty"`
	}

	// AdditionalIncomeUpdate carries a partial additional income update.
	AdditionalIncomeUpdate struct {
		Name       *string          `json:"name,omitempty"`
		Amount     *decimal.Decimal `json:"amount,omitempty"`
		Source     *string          `json:"source,omitempty"`
		Date       *Date            `json:"date,omitempty"`
		DayOfMonth *int             `json:"day_of_month,omitempty"`
	}

	// BillUpdate carries a partial bill update. Nil fields are left unchanged.
	BillUpdate struct {
		Name               *string          `json:"name,omitempty"`
		Category           *string          `json:"category,omitempty"`
		Frequency          *Frequency       `json:"frequency,omitempty"`
		ExpectedAmount     *decimal.Decimal `json:"expected_amount,omitempty"`
		DeadlineDay        *int             `json:"deadline_day,omitempty"`
		ReminderDaysBefore *int             `json:"reminder_days_before,omitempty"`
	}

	Person struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	// LendingRecord is a signed movement with a person: positive amounts are
	// money lent out, negative amounts are repayments received.
	LendingRecord struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"-"`
		PersonID  string          `json:"person_id"`
		Amount    decimal.Decimal `json:"amount"`
		Note      string          `json:"note,omitempty"`
		Date      Date            `json:"date"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// Income is the single per-owner salary and savings goal record.
	Income struct {
		OwnerID   string          `json:"-"`
		Salary    decimal.Decimal `json:"salary"`
		Savings   decimal.Decimal `json:"savings"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// IncomeUpdate carries a partial income upsert.
	IncomeUpdate struct {
		Salary  *decimal.Decimal `json:"salary,omitempty"`
		Savings *decimal.Decimal `json:"savings,omitempty"`
	}

	User struct {
		ID        string    `json:"id"`
		DeviceID  string    `json:"-"`
		Currency  string    `json:"currency,omitempty"`
		SyncCode  string    `json:"sync_code,omitempty"`
		Email     string    `json:"email,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	// PaymentInput describes a bill payment to record. A zero PeriodStart
	// selects the period containing PaidAt.
	PaymentInput struct {
		BillID      string          `json:"bill_id"`
		Amount      decimal.Decimal `json:"amount"`
		PaidAt      Date            `json:"paid_at"`
		PeriodStart Date            `json:"period_start,omitzero"`
		PeriodEnd   Date            `json:"period_end,omitzero"`
	}

	// UserUpdate carries a partial user settings update.
	UserUpdate struct {
		Currency *string `json:"currency,omitempty"`
		Email    *string `json:"email,omitempty"`
	}
)

var (
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrDuplicatePayment  = errors.New("bill already paid for this period")
	ErrOwnershipMismatch = errors.New("record belongs to another owner")
	ErrDanglingReference = errors.New("bill payment references a missing bill")
	ErrNotFound          = errors.New("record not found")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDay        = errors.New("invalid day")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCategory     = errors.New("empty category")
	ErrNotBillPayment    = errors.New("expense is not a bill payment")
	ErrInvalidKind       = errors.New("invalid type")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
)

// ValidationError reports which field failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidationError reports whether err was produced by input validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidFrequency) || errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidAmount)
}

// ParseFrequency returns the Frequency named by s.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Bimonthly, Quarterly, Yearly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := calendar.ParseISODate(strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return calendar.FormatISODate(d.Time)
}

// InRange reports whether d falls within [start, end], both inclusive.
func (d Date) InRange(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsBillPayment reports whether the expense settles a bill period.
func (e Expense) IsBillPayment() bool {
	return e.Payment != nil && e.Payment.BillID != ""
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(name) > maxNameLen {
		return invalid("name", ErrNameTooLong)
	}
	return nil
}

func validatePositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid(field, ErrInvalidAmount)
	}
	return nil
}

func validateDayOfMonth(field string, day int) error {
	if day < 1 || day > 31 {
		return invalid(field, ErrInvalidDay)
	}
	return nil
}

func validateSchedule(kind Kind, date Date, dayOfMonth int) error {
	switch kind {
	case OneTime:
		if err := date.Validate(); err != nil {
			return invalid("date", err)
		}
	case Recurring:
		return validateDayOfMonth("day_of_month", dayOfMonth)
	default:
		return invalid("type", ErrInvalidKind)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateName(e.Name); err != nil {
		return err
	}
	if err := validatePositive("amount", e.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if err := validateSchedule(e.Kind, e.Date, e.DayOfMonth); err != nil {
		return err
	}
	if e.Payment != nil {
		if e.Kind != OneTime {
			return invalid("type", ErrInvalidKind)
		}
		if e.Payment.PeriodStart.IsZero() || e.Payment.PeriodEnd.IsZero() || e.Payment.PeriodEnd.Before(e.Payment.PeriodStart.Time) {
			return invalid("period", ErrInvalidDate)
		}
	}
	return nil
}

func (a AdditionalIncome) Validate() error {
	if err := validateName(a.Name); err != nil {
		return err
	}
	if err := validatePositive("amount", a.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(a.Source) == "" {
		return invalid("source", ErrEmptyCategory)
	}
	return validateSchedule(a.Kind, a.Date, a.DayOfMonth)
}

func (b Bill) Validate() error {
	if err := validateName(b.Name); err != nil {
		return err
	}
	if strings.TrimSpace(b.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if !b.Frequency.Valid() {
		return invalid("frequency", ErrInvalidFrequency)
	}
	if b.ExpectedAmount != nil {
		if err := validatePositive("expected_amount", *b.ExpectedAmount); err != nil {
			return err
		}
	}
	if b.DeadlineDay != nil {
		if err := validateDayOfMonth("deadline_day", *b.DeadlineDay); err != nil {
			return err
		}
	}
	if b.ReminderDaysBefore != nil && *b.ReminderDaysBefore < 0 {
		return invalid("reminder_days_before", ErrInvalidDay)
	}
	return nil
}

// ReminderLead returns the bill's reminder lead in days, defaulting to
// DefaultReminderDays.
func (b Bill) ReminderLead() int {
	if b.ReminderDaysBefore == nil {
		return DefaultReminderDays
	}
	return *b.ReminderDaysBefore
}

// Apply returns a copy of e with the non-nil fields of u applied. Date only
// moves one-time expenses and DayOfMonth only moves recurring ones.
func (u ExpenseUpdate) Apply(e Expense) Expense {
	if u.Name != nil {
		e.Name = strings.TrimSpace(*u.Name)
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.Category != nil {
		e.Category = strings.TrimSpace(*u.Category)
	}
	if u.Date != nil && e.Kind == OneTime {
		e.Date = *u.Date
	}
	if u.DayOfMonth != nil && e.Kind == Recurring {
		e.DayOfMonth = *u.DayOfMonth
	}
	return e
}

// Apply returns a copy of a with the non-nil fields of u applied.
func (u AdditionalIncomeUpdate) Apply(a AdditionalIncome) AdditionalIncome {
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	if u.Amount != nil {
		a.Amount = *u.Amount
	}
	if u.Source != nil {
		a.Source = strings.TrimSpace(*u.Source)
	}
	if u.Date != nil && a.Kind == OneTime {
		a.Date = *u.Date
	}
	if u.DayOfMonth != nil && a.Kind == Recurring {
		a.DayOfMonth = *u.DayOfMonth
	}
	return a
}

// Apply returns a copy of b with the non-nil fields of u applied.
func (u BillUpdate) Apply(b Bill) Bill {
	if u.Name != nil {
		b.Name = strings.TrimSpace(*u.Name)
	}
	if u.Category != nil {
		b.Category = strings.TrimSpace(*u.Category)
	}
	if u.Frequency != nil {
		b.Frequency = *u.Frequency
	}
	if u.ExpectedAmount != nil {
		v := *u.ExpectedAmount
		b.ExpectedAmount = &v
	}
	if u.DeadlineDay != nil {
		v := *u.DeadlineDay
		b.DeadlineDay = &v
	}
	if u.ReminderDaysBefore != nil {
		v := *u.ReminderDaysBefore
		b.ReminderDaysBefore = &v
	}
	return b
}

func (p PaymentInput) Validate() error {
	if strings.TrimSpace(p.BillID) == "" {
		return invalid("bill_id", ErrNotFound)
	}
	if err := validatePositive("amount", p.Amount); err != nil {
		return err
	}
	if err := p.PaidAt.Validate(); err != nil {
		return invalid("paid_at", err)
	}
	if !p.PeriodEnd.IsZero() && p.PeriodStart.IsZero() {
		return invalid("period_start", ErrInvalidDate)
	}
	return nil
}

func (p Person) Validate() error {
	return validateName(p.Name)
}

func (l LendingRecord) Validate() error {
	if strings.TrimSpace(l.PersonID) == "" {
		return invalid("person_id", ErrNotFound)
	}
	if l.Amount.IsZero() {
		return invalid("amount", ErrInvalidAmount)
	}
	if err := l.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	return nil
}

// Apply returns a copy of in with the non-nil fields of u applied.
func (u IncomeUpdate) Apply(in Income) Income {
	if u.Salary != nil {
		in.Salary = *u.Salary
	}
	if u.Savings != nil {
		in.Savings = *u.Savings
	}
	return in
}

func (in Income) Validate() error {
	if in.Salary.IsNegative() {
		return invalid("salary", ErrInvalidAmount)
	}
	if in.Savings.IsNegative() {
		return invalid("savings", ErrInvalidAmount)
	}
	return nil
}
