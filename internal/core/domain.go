package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxAmountCents is the sanity ceiling for a single money movement.
const MaxAmountCents int64 = 100_000_000 // 1,000,000.00

type (
	// Date is a calendar day with no time-of-day component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID         string    `json:"id"`
		CategoryID string    `json:"categoryId"`
		Amount     Money     `json:"amount"`
		Date       Date      `json:"date"`
		Note       string    `json:"note"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// Income mirrors Expense but its CategoryID references the income
	// category taxonomy, not the expense one.
	Income struct {
		ID         string    `json:"id"`
		CategoryID string    `json:"categoryId"`
		Amount     Money     `json:"amount"`
		Date       Date      `json:"date"`
		Note       string    `json:"note"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// Transfer moves money between two accounts. Either side may reference
	// a stored account by ID or carry a free-text legacy name instead.
	Transfer struct {
		ID            string    `json:"id"`
		FromAccountID string    `json:"fromAccountId,omitempty"`
		ToAccountID   string    `json:"toAccountId,omitempty"`
		FromName      string    `json:"fromName,omitempty"`
		ToName        string    `json:"toName,omitempty"`
		Amount        Money     `json:"amount"`
		Date          Date      `json:"date"`
		Note          string    `json:"note"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}

	Account struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Balance  Money  `json:"balance"`
		Color    string `json:"color"`
		Icon     string `json:"icon"`
	}

	Category struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Icon     string `json:"icon"`
		Color    string `json:"color"`
		IsSystem bool   `json:"isSystem"`
	}

	Budget struct {
		ID         string    `json:"id"`
		Month      string    `json:"month"` // "YYYY-MM"
		CategoryID string    `json:"categoryId"`
		Amount     Money     `json:"amount"`
		Rollover   bool      `json:"rollover"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// Movement is the minimal view of a dated, categorized amount that the
	// aggregation engine operates on. Both expenses and incomes reduce to it.
	Movement struct {
		CategoryID string
		Amount     Money
		Date       Date
	}

	// Snapshot is a full export of every entity collection, used by the
	// backup/restore collaborator.
	Snapshot struct {
		Expenses         []Expense  `json:"expenses"`
		Incomes          []Income   `json:"incomes"`
		Transfers        []Transfer `json:"transfers"`
		Accounts         []Account  `json:"accounts"`
		Categories       []Category `json:"categories"`
		IncomeCategories []Category `json:"incomeCategories"`
		Budgets          []Budget   `json:"budgets"`
	}
)

var (
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrAmountTooLarge = errors.New("amount exceeds sanity ceiling")
	ErrInvalidDate    = errors.New("invalid date")
	ErrFutureDate     = errors.New("date is in the future")
	ErrEmptyCategory  = errors.New("empty category")
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidMonth   = errors.New("invalid month, want YYYY-MM")
	ErrSameAccount    = errors.New("transfer source and destination are the same account")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date at local midnight for year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)}
}

// DateOf truncates t to its calendar day in local time.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthKey returns the "YYYY-MM" key for the date's month.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month() && d.Day() == other.Day()
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date{Time: d.AddDate(0, 0, 1)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
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

// Money serializes as a bare integer of cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.Cents, 10), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		m.Cents = 0
		return nil
	}
	cents, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse money %q: %w", s, err)
	}
	m.Cents = cents
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// ParseMonth parses a "YYYY-MM" key into the first day of that month.
func ParseMonth(s string) (Date, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Date{Time: t}, nil
}

// PrevMonthKey returns the "YYYY-MM" key of the month immediately before
// the given one.
func PrevMonthKey(month string) (string, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return first.AddDate(0, -1, 0).Format("2006-01"), nil
}

// NextMonthKey returns the "YYYY-MM" key of the month immediately after
// the given one.
func NextMonthKey(month string) (string, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return first.AddDate(0, 1, 0).Format("2006-01"), nil
}

// DaysInMonth returns the actual calendar length of a "YYYY-MM" month.
func DaysInMonth(month string) (int, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return 0, err
	}
	return first.AddDate(0, 1, -1).Day(), nil
}

// Validate checks an expense against the validation taxonomy. now anchors
// the future-date check.
func (e Expense) Validate(now time.Time) error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.Date.After(DateOf(now)) {
		return ErrFutureDate
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate(now time.Time) error {
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if i.Date.IsZero() {
		return ErrInvalidDate
	}
	if i.Date.After(DateOf(now)) {
		return ErrFutureDate
	}
	if strings.TrimSpace(i.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (t Transfer) Validate(now time.Time) error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Date.After(DateOf(now)) {
		return ErrFutureDate
	}
	if t.FromAccountID != "" && t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if b.Amount.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	if _, err := ParseMonth(b.Month); err != nil {
		return err
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Movement reduces an expense to the aggregation engine's view of it.
func (e Expense) Movement() Movement {
	return Movement{CategoryID: e.CategoryID, Amount: e.Amount, Date: e.Date}
}

func (i Income) Movement() Movement {
	return Movement{CategoryID: i.CategoryID, Amount: i.Amount, Date: i.Date}
}

// ParseDecimalToCents converts a decimal money string ("12.34", "12,34",
// "12") into cents. Rejects negatives and more than two decimal digits.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	var units int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		units = units*10 + int64(r-'0')
		if units > MaxAmountCents/100 {
			return 0, ErrAmountTooLarge
		}
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := units * 100
	mult := int64(10)
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		cents += int64(r-'0') * mult
		mult /= 10
	}
	return cents, nil
}
