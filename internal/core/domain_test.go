package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount:      decimal.NewFromInt(100),
		Type:        Income,
		AccountID:   1,
		CategoryID:  2,
		Description: "salary",
		DateTime:    NewDateTime(2024, 1, 5, 9, 0, 0),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zeroAmount := good
	zeroAmount.Amount = decimal.Zero
	if err := zeroAmount.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}

	// Multi-byte characters count once each.
	longRunes := good
	longRunes.Description = strings.Repeat("€", MaxDescriptionLen)
	if err := longRunes.Validate(); err != nil {
		t.Fatalf("%d characters should be accepted, got %v", MaxDescriptionLen, err)
	}
	longRunes.Description += "€"
	if err := longRunes.Validate(); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}

	bads := map[string]func(tx *Transaction){
		"negative amount": func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) },
		"bad type":        func(tx *Transaction) { tx.Type = "TRANSFER" },
		"no account":      func(tx *Transaction) { tx.AccountID = 0 },
		"no category":     func(tx *Transaction) { tx.CategoryID = 0 },
		"no description":  func(tx *Transaction) { tx.Description = "  " },
		"zero date":       func(tx *Transaction) { tx.DateTime = DateTime{} },
	}
	for name, mutate := range bads {
		t.Run(name, func(t *testing.T) {
			tx := good
			mutate(&tx)
			if err := tx.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestAccountCategoryBudgetValidate(t *testing.T) {
	assert.NoError(t, Account{Name: "Wallet", Type: Cash, Balance: decimal.NewFromInt(5)}.Validate())
	assert.ErrorIs(t, Account{Name: "Wallet", Type: "GOLD"}.Validate(), ErrInvalidAccountType)
	assert.ErrorIs(t, Account{Type: Bank}.Validate(), ErrEmptyName)

	self := int64(3)
	assert.ErrorIs(t, Category{ID: 3, Name: "Loop", ParentID: &self}.Validate(), ErrSelfParent)
	assert.NoError(t, Category{Name: "Food"}.Validate())

	assert.ErrorIs(t, Budget{CategoryID: 1, Limit: decimal.Zero}.Validate(), ErrInvalidLimit)
	assert.ErrorIs(t, Budget{Limit: decimal.NewFromInt(10)}.Validate(), ErrMissingCategory)
	assert.NoError(t, Budget{CategoryID: 1, Limit: decimal.NewFromInt(10)}.Validate())
}

func TestSessionMergeAndClone(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Session{UserID: 1, Username: "ada", AccessToken: "t1", Expiry: &exp}

	name := "lovelace"
	merged := s.Merge(SessionPatch{Username: &name})
	assert.Equal(t, "lovelace", merged.Username)
	assert.Equal(t, "t1", merged.AccessToken)
	assert.Equal(t, int64(1), merged.UserID)

	clone := s.Clone()
	*clone.Expiry = exp.Add(time.Hour)
	assert.Equal(t, exp, *s.Expiry, "clone must not share expiry")

	assert.True(t, s.Expired(exp))
	assert.False(t, s.Expired(exp.Add(-time.Second)))
	assert.False(t, Session{}.Expired(exp))
}

func TestDateTimeJSON(t *testing.T) {
	cases := map[string]string{
		`"2024-01-05T10:30:00"`:      "2024-01-05",
		`"2024-01-05T10:30"`:         "2024-01-05",
		`"2024-01-05T23:30:00Z"`:     "2024-01-05",
		`"2024-01-05T23:30:00.123"`:  "2024-01-05",
		`"2024-01-05T01:00:00+03:00"`: "2024-01-05",
	}
	for in, day := range cases {
		var d DateTime
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, day, d.Day(), in)
	}

	var d DateTime
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`12`), &d))

	out, err := json.Marshal(NewDateTime(2024, 1, 5, 10, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-05T10:00:00"`, string(out))
}

func TestTransactionDecodesBackendPayload(t *testing.T) {
	payload := `{"id":7,"amount":40.5,"type":"EXPENSE","accountId":1,"categoryId":3,
		"description":"groceries","dateTime":"2024-01-10T18:00:00"}`
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(payload), &tx))
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("40.5")))
	assert.Equal(t, Expense, tx.Type)
	assert.Equal(t, "2024-01-10", tx.DateTime.Day())

	var bad Transaction
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"lots"}`), &bad))
}

func TestDateRange(t *testing.T) {
	rng, err := ParseDayRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, rng.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDayRange("2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseDayRange("01/02/2024", "2024-01-01")
	assert.Error(t, err)

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	last := LastMonth(now)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), last.Start)
	assert.Equal(t, time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC), last.End)
}

func TestDayRangeUsesWallClockDates(t *testing.T) {
	east := time.FixedZone("UTC+2", 2*60*60)
	west := time.FixedZone("UTC-5", -5*60*60)

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "east of UTC near midnight",
			now:       time.Date(2024, 1, 31, 23, 50, 0, 0, east),
			wantStart: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "west of UTC early morning",
			now:       time.Date(2024, 3, 1, 0, 30, 0, 0, west),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := LastMonth(tt.now)
			assert.Equal(t, tt.wantStart, rng.Start)
			assert.Equal(t, tt.wantEnd, rng.End)

			late, err := ParseDateTime(tt.now.Format(DayLayout) + "T22:30:00")
			require.NoError(t, err)
			assert.True(t, rng.Contains(late.Time))
		})
	}
}
