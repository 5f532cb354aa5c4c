package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLen bounds a transaction description, in characters.
const MaxDescriptionLen = 200

var ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")

const (
	Bank        AccountType = "BANK"
	MobileMoney AccountType = "MOBILE_MONEY"
	Cash        AccountType = "CASH"

	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	AccountType     string
	TransactionType string

	// Session is the authenticated identity and credential held for the current login.
	Session struct {
		UserID      int64      `json:"userId"`
		Username    string     `json:"username"`
		AccessToken string     `json:"accessToken"`
		Expiry      *time.Time `json:"expiry,omitempty"`
	}

	// SessionPatch carries the fields to overwrite in a shallow merge. Nil fields are left alone.
	SessionPatch struct {
		UserID      *int64
		Username    *string
		AccessToken *string
		Expiry      *time.Time
	}

	Account struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Type        AccountType     `json:"type"`
		Balance     decimal.Decimal `json:"balance"`
		OwnerUserID int64           `json:"userId"`
	}

	Category struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		ParentID *int64 `json:"parentId"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		AccountID   int64           `json:"accountId"`
		CategoryID  int64           `json:"categoryId"`
		Description string          `json:"description"`
		DateTime    DateTime        `json:"dateTime"`
	}

	Budget struct {
		ID            int64           `json:"id"`
		CategoryID    int64           `json:"categoryId"`
		Limit         decimal.Decimal `json:"limit"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		OwnerUserID   int64           `json:"userId"`
	}

	Notification struct {
		ID        int64    `json:"id"`
		Type      string   `json:"type"`
		Message   string   `json:"message"`
		Timestamp DateTime `json:"timestamp"`
		Read      bool     `json:"read"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidLimit       = errors.New("budget limit must be greater than zero")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrMissingAccount     = errors.New("missing account")
	ErrMissingCategory    = errors.New("missing category")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrSelfParent         = errors.New("category cannot be its own parent")
)

// Merge returns a copy of s with the non-nil patch fields applied.
func (s Session) Merge(p SessionPatch) Session {
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.AccessToken != nil {
		s.AccessToken = *p.AccessToken
	}
	if p.Expiry != nil {
		exp := *p.Expiry
		s.Expiry = &exp
	}
	return s
}

// Clone returns a deep copy so callers cannot mutate a held session through Expiry.
func (s Session) Clone() Session {
	if s.Expiry != nil {
		exp := *s.Expiry
		s.Expiry = &exp
	}
	return s
}

// Expired reports whether the session carries an expiry that is not after now.
func (s Session) Expired(now time.Time) bool {
	return s.Expiry != nil && !s.Expiry.After(now)
}

func (t AccountType) IsValid() bool {
	switch t {
	case Bank, MobileMoney, Cash:
		return true
	default:
		return false
	}
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if a.Balance.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ParentID != nil && c.ID != 0 && *c.ParentID == c.ID {
		return ErrSelfParent
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if t.AccountID == 0 {
		return ErrMissingAccount
	}
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if t.DateTime.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID == 0 {
		return ErrMissingCategory
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidLimit
	}
	return nil
}
