package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is a minimal backend API for end-to-end command runs.
type fakeLedger struct {
	mu     sync.Mutex
	posted []map[string]any
}

func (f *fakeLedger) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}

	mux.HandleFunc("POST /api/users/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Invalid credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"userId":42,"username":"`+creds.Username+`","accessToken":"jwt-42"}`)
	})
	mux.HandleFunc("POST /api/users/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"User registered successfully"}`)
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-42", r.Header.Get("Authorization"))
		assert.Equal(t, "42", r.URL.Query().Get("ownerUserId"))
		writeJSON(w, http.StatusOK, `[{"id":1,"name":"Checking","type":"BANK","balance":500,"userId":42},
			{"id":2,"name":"Wallet","type":"CASH","balance":20.25,"userId":42}]`)
	})
	mux.HandleFunc("GET /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("startDate"))
		assert.NotEmpty(t, r.URL.Query().Get("endDate"))
		writeJSON(w, http.StatusOK, `[
			{"id":2,"amount":40,"type":"EXPENSE","accountId":1,"categoryId":11,"description":"Groceries","dateTime":"2024-01-10T09:00:00"},
			{"id":1,"amount":100,"type":"INCOME","accountId":1,"categoryId":10,"description":"Pay","dateTime":"2024-01-05T08:00:00"}]`)
	})
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"Insufficient balance"}`)
	})
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":10,"name":"Salary","parentId":null},
			{"id":11,"name":"Food","parentId":null},
			{"id":12,"name":"Dining","parentId":11}]`)
	})
	mux.HandleFunc("GET /api/budgets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":1,"categoryId":11,"limit":200,"currentAmount":190,"userId":42},
			{"id":2,"categoryId":12,"limit":0,"currentAmount":5,"userId":42}]`)
	})
	mux.HandleFunc("GET /api/notifications/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":1,"type":"ALERT","message":"Budget Food near limit","timestamp":"2024-01-20T10:00:00","read":false},
			{"id":2,"type":"TRANSACTION","message":"Salary received","timestamp":"2024-01-05T08:00:00","read":true}]`)
	})
	mux.HandleFunc("POST /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.posted = append(f.posted, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func setupEnv(t *testing.T) *fakeLedger {
	t.Helper()
	fake := &fakeLedger{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	t.Setenv("API_URL", srv.URL+"/api")
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("STATE_DIR", t.TempDir())
	t.Setenv("SESSION_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	return fake
}

type result struct {
	stdout string
	stderr string
	err    error
}

func runCmd(stdin string, args ...string) result {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(args, strings.NewReader(stdin), stdout, stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	res := runCmd("")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Usage: fintrack <command>")
	assert.Contains(t, res.stdout, "add-transaction")

	res = runCmd("", "help")
	require.NoError(t, res.err)
}

func TestRun_UnknownCommand(t *testing.T) {
	res := runCmd("", "explode")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown command "explode"`)
}

func TestRun_GuardRequiresLogin(t *testing.T) {
	setupEnv(t)

	for _, cmd := range []string{"dashboard", "accounts", "budgets", "reports", "whoami", "notifications"} {
		res := runCmd("", cmd)
		assert.ErrorIs(t, res.err, errLoginRequired, cmd)
	}
}

func TestRun_LoginRequiresUser(t *testing.T) {
	setupEnv(t)

	res := runCmd("", "login", "-password", "secret")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "missing required flags: user")
}

func TestRun_LoginWrongPassword(t *testing.T) {
	setupEnv(t)

	res := runCmd("", "login", "-user", "ada", "-password", "nope")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "401")

	res = runCmd("", "whoami")
	assert.ErrorIs(t, res.err, errLoginRequired)
}

func TestRun_Register(t *testing.T) {
	setupEnv(t)

	res := runCmd("secret\n", "register", "-user", "ada")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Password: ")
	assert.Contains(t, res.stdout, "User registered successfully")
}

func TestRun_SessionFlow(t *testing.T) {
	fake := setupEnv(t)

	// Password is read from stdin when the flag is omitted.
	res := runCmd("secret\n", "login", "-user", "ada")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Logged in as ada (user 42)")

	res = runCmd("", "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "ada (user 42)")

	res = runCmd("", "accounts")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Wallet")
	assert.Contains(t, res.stdout, "520.25")

	res = runCmd("", "dashboard", "-from", "2024-01-01", "-to", "2024-01-31")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Period: 2024-01-01 to 2024-01-31")
	assert.Contains(t, res.stdout, "Total balance: 520.25 across 2 accounts")
	assert.Contains(t, res.stdout, "You have 1 unread notification")
	assert.Contains(t, res.stdout, "Jan")
	assert.Contains(t, res.stdout, "60.00")

	res = runCmd("", "reports", "-from", "2024-01-01", "-to", "2024-01-31")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "2024-01-10")
	assert.Contains(t, res.stdout, "BALANCE")

	res = runCmd("", "categories")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Food (#11)\n  Dining (#12)")

	res = runCmd("", "budgets")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "95.0%")
	assert.Contains(t, res.stdout, "near limit")
	assert.Contains(t, res.stdout, "n/a")

	res = runCmd("", "notifications")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "1 unread notification")
	assert.Contains(t, res.stdout, "Budget Food near limit")

	res = runCmd("", "add-transaction", "-amount", "900", "-type", "expense", "-account", "1", "-category", "11", "-desc", "TV", "-date", "2024-01-20")
	var rejected *services.RejectedError
	require.ErrorAs(t, res.err, &rejected)
	assert.Contains(t, res.stdout, "Transaction rejected: Insufficient balance")
	require.Len(t, fake.posted, 1)
	assert.Equal(t, "Insufficient balance", fake.posted[0]["message"])
	assert.EqualValues(t, 42, fake.posted[0]["userId"])

	res = runCmd("", "reports", "-export")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "report export is not configured")

	res = runCmd("", "watch")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "activity events are disabled")

	res = runCmd("", "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Logged out")

	res = runCmd("", "dashboard")
	assert.ErrorIs(t, res.err, errLoginRequired)
}

func TestRun_AddTransactionValidatesLocally(t *testing.T) {
	setupEnv(t)
	require.NoError(t, runCmd("", "login", "-user", "ada", "-password", "secret").err)

	res := runCmd("", "add-transaction", "-amount", "abc", "-desc", "x")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid -amount")

	res = runCmd("", "add-transaction", "-amount", "5", "-type", "gift", "-account", "1", "-category", "2", "-desc", "x")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid transaction type")
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	svc := services.NewLedgerService(nil, nil, services.WithClock(func() time.Time { return now }))

	tests := []struct {
		name      string
		from, to  string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "defaults to last month", wantStart: "2024-02-15T00:00:00", wantEnd: "2024-03-15T23:59:59"},
		{name: "explicit range", from: "2024-01-01", to: "2024-01-31", wantStart: "2024-01-01T00:00:00", wantEnd: "2024-01-31T23:59:59"},
		{name: "only to", to: "2024-01-31", wantStart: "2023-12-31T00:00:00", wantEnd: "2024-01-31T23:59:59"},
		{name: "reversed", from: "2024-02-01", to: "2024-01-01", wantErr: true},
		{name: "bad date", from: "01/02/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := resolveRange(svc, tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, rng.Start.Format("2006-01-02T15:04:05"))
			assert.Equal(t, tt.wantEnd, rng.End.Format("2006-01-02T15:04:05"))
		})
	}
}

func TestResolveRangeOffUTCClock(t *testing.T) {
	east := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 1, 31, 23, 50, 0, 0, east)
	svc := services.NewLedgerService(nil, nil, services.WithClock(func() time.Time { return now }))

	rng, err := resolveRange(svc, "2024-01-31", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), rng.End)
	assert.True(t, rng.Contains(time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)))
}
