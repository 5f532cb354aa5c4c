package api

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// The backend reads amounts as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type NewAccount struct {
	Name        string           `json:"name"`
	Type        core.AccountType `json:"type"`
	Balance     decimal.Decimal  `json:"balance"`
	OwnerUserID int64            `json:"userId"`
}

type NewCategory struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
}

type NewTransaction struct {
	Amount      decimal.Decimal      `json:"amount"`
	Type        core.TransactionType `json:"type"`
	AccountID   int64                `json:"accountId"`
	CategoryID  int64                `json:"categoryId"`
	Description string               `json:"description"`
	DateTime    core.DateTime        `json:"dateTime"`
}

type NewBudget struct {
	CategoryID  int64           `json:"categoryId"`
	Limit       decimal.Decimal `json:"limit"`
	OwnerUserID int64           `json:"userId"`
}

type NewNotification struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func ownerQuery(userID int64) url.Values {
	return url.Values{"ownerUserId": {strconv.FormatInt(userID, 10)}}
}

// Register creates a user and returns the backend's confirmation message.
func (c *Client) Register(ctx context.Context, creds Credentials) (string, error) {
	var resp messageResponse
	if err := c.send(ctx, "/users/register", "", creds, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, creds Credentials) (core.Session, error) {
	var s core.Session
	if err := c.send(ctx, "/users/login", "", creds, &s); err != nil {
		return core.Session{}, err
	}
	if s.AccessToken == "" {
		return core.Session{}, errors.New("login response carried no access token")
	}
	return s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, "/logout", "", struct{}{}, nil)
}

func (c *Client) Accounts(ctx context.Context, userID int64) ([]core.Account, error) {
	var out []core.Account
	if err := c.get(ctx, "/accounts", ownerQuery(userID), TagAccounts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, a NewAccount) (core.Account, error) {
	var out core.Account
	if err := c.send(ctx, "/accounts", TagAccounts, a, &out); err != nil {
		return core.Account{}, err
	}
	return out, nil
}

// Transactions lists the user's transactions within rng, both ends included.
func (c *Client) Transactions(ctx context.Context, userID int64, rng core.DateRange) ([]core.Transaction, error) {
	q := ownerQuery(userID)
	q.Set("startDate", rng.Start.Format(core.WireLayout))
	q.Set("endDate", rng.End.Format(core.WireLayout))

	var out []core.Transaction
	if err := c.get(ctx, "/transactions", q, TagTransactions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransaction also invalidates accounts and budgets, whose balances the backend moves.
func (c *Client) CreateTransaction(ctx context.Context, t NewTransaction) (core.Transaction, error) {
	var out core.Transaction
	if err := c.send(ctx, "/transactions", TagTransactions, t, &out); err != nil {
		return core.Transaction{}, err
	}
	if c.cache != nil {
		c.cache.InvalidateTag(TagAccounts)
		c.cache.InvalidateTag(TagBudgets)
	}
	return out, nil
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.get(ctx, "/categories", nil, TagCategories, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, nc NewCategory) (core.Category, error) {
	var out core.Category
	if err := c.send(ctx, "/categories", TagCategories, nc, &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}

func (c *Client) Budgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	var out []core.Budget
	if err := c.get(ctx, "/budgets", ownerQuery(userID), TagBudgets, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBudget(ctx context.Context, b NewBudget) (core.Budget, error) {
	var out core.Budget
	if err := c.send(ctx, "/budgets", TagBudgets, b, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context, userID int64) ([]core.Notification, error) {
	var out []core.Notification
	path := "/notifications/" + strconv.FormatInt(userID, 10)
	if err := c.get(ctx, path, nil, TagNotifications, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateNotification(ctx context.Context, n NewNotification) error {
	return c.send(ctx, "/notifications", TagNotifications, n, nil)
}
