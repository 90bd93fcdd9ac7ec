package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/billing"
	"tally/internal/core"
)

// BillReminderMessage announces that an unpaid bill's deadline is near or
// has passed. The consumer needs nothing else to compose the reminder.
type BillReminderMessage struct {
	OwnerID           string           `json:"owner_id"`
	BillID            string           `json:"bill_id"`
	BillName          string           `json:"bill_name"`
	Category          string           `json:"category"`
	DeadlineDate      core.Date        `json:"deadline_date"`
	DaysUntilDeadline int              `json:"days_until_deadline"`
	PeriodStart       core.Date        `json:"period_start"`
	PeriodEnd         core.Date        `json:"period_end"`
	PeriodLabel       string           `json:"period_label"`
	ExpectedAmount    *decimal.Decimal `json:"expected_amount,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
}

func NewBillReminderMessage(ownerID string, due billing.DueBill) *BillReminderMessage {
	return &BillReminderMessage{
		OwnerID:           ownerID,
		BillID:            due.Bill.ID,
		BillName:          due.Bill.Name,
		Category:          due.Bill.Category,
		DeadlineDate:      due.Deadline,
		DaysUntilDeadline: due.DaysUntilDeadline,
		PeriodStart:       due.Period.Start,
		PeriodEnd:         due.Period.End,
		PeriodLabel:       due.Period.Label,
		ExpectedAmount:    due.Bill.ExpectedAmount,
		Timestamp:         time.Now(),
	}
}

// Overdue reports whether the deadline has already passed.
func (m *BillReminderMessage) Overdue() bool {
	return m.DaysUntilDeadline < 0
}

func (m *BillReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillReminderMessageFromJSON(data []byte) (*BillReminderMessage, error) {
	var msg BillReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SummaryExportMessage asks the worker to push an owner's summary for
// [StartDate, EndDate] to the spreadsheet.
type SummaryExportMessage struct {
	OwnerID   string    `json:"owner_id"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSummaryExportMessage(ownerID string, start, end core.Date) *SummaryExportMessage {
	return &SummaryExportMessage{
		OwnerID:   ownerID,
		StartDate: start,
		EndDate:   end,
		Timestamp: time.Now(),
	}
}

func (m *SummaryExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SummaryExportMessageFromJSON(data []byte) (*SummaryExportMessage, error) {
	var msg SummaryExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
