package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense TransactionType = "EXPENSE"
	Income  TransactionType = "INCOME"
)

// DefaultCurrency is applied when a transaction arrives without one.
const DefaultCurrency = "USD"

// DefaultMerchant is applied when the counterparty is unknown.
const DefaultMerchant = "Unknown"

type (
	// TransactionType is the closed two-variant direction tag. The sign of
	// an amount is always derived from the type, never stored.
	TransactionType string

	// Date is a calendar date without a time component. It marshals to and
	// from ISO 8601 (YYYY-MM-DD).
	Date struct {
		time.Time
	}

	// Money is a currency-agnostic magnitude in integer cents.
	Money struct {
		Cents int64
	}

	// Transaction is one recorded income or expense event, the sole
	// persisted entity of the ledger.
	Transaction struct {
		ID       string          `json:"id"`
		Amount   Money           `json:"amount"`
		Currency string          `json:"currency"`
		Category string          `json:"category"`
		Merchant string          `json:"merchant"`
		Date     Date            `json:"date"`
		Notes    string          `json:"notes"`
		Type     TransactionType `json:"type"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyID       = errors.New("empty transaction id")
	ErrEmptyCategory = errors.New("empty category")
)

// IsValid reports whether t is one of the two known variants.
func (t TransactionType) IsValid() bool {
	switch t {
	case Expense, Income:
		return true
	default:
		return false
	}
}

// ParseTransactionType maps a free-form string onto the closed enum.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Expense:
		return Expense, nil
	case Income:
		return Income, nil
	default:
		return "", ErrInvalidType
	}
}

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO 8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the ISO 8601 form.
func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// WithDefaults fills currency and merchant when the caller left them empty.
func (t Transaction) WithDefaults() Transaction {
	if strings.TrimSpace(t.Currency) == "" {
		t.Currency = DefaultCurrency
	}
	if strings.TrimSpace(t.Merchant) == "" {
		t.Merchant = DefaultMerchant
	}
	return t
}
