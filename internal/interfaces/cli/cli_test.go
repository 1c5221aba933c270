package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/report"
	"github.com/erp/chemstock/internal/domain/requisition"
	"github.com/erp/chemstock/internal/infrastructure/session"
	"github.com/erp/chemstock/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type harness struct {
	api    *testutil.FakeAPI
	config string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "chemstock.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[log]\nlevel = \"error\"\n"), 0o600))
	return &harness{api: testutil.NewFakeAPI(t), config: cfg}
}

func (h *harness) signIn(t *testing.T, u *identity.User) {
	t.Helper()
	require.NoError(t, h.api.Session.SetUser(context.Background(), u))
}

func (h *harness) run(stdin string, args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	full := append([]string{"--config", h.config, "--base-url", h.api.Server.URL}, args...)
	return Run(context.Background(), full,
		Streams{In: strings.NewReader(stdin), Out: &h.stdout, Err: &h.stderr},
		WithSession(h.api.Session),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestPrinter(t *testing.T) {
	rows := []inventory.Chemical{{ID: 1, Name: "Бентонит", UnitOfMeasurement: "кг", Price: decimal.RequireFromString("1234.5")}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, FormatTable)
		require.NoError(t, p.Print(rows, chemicalTable(p, rows...)))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.Contains(t, lines[1], "Бентонит")
		assert.Contains(t, lines[1], "234,50")
	})

	t.Run("json keeps api field names", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON).Print(rows, nil))

		var out []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "кг", out[0]["unit_of_measurement"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML).Print(rows, nil))

		var out []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Бентонит", out[0]["name"])
	})

	t.Run("messages are skipped for machine formats", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, FormatJSON).Message("done")
		assert.Empty(t, buf.String())
	})
}

func TestPrinter_Numbers(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, FormatTable)

	assert.True(t, strings.HasSuffix(p.Money(decimal.RequireFromString("1234567.891")), "567,89"))
	assert.Equal(t, "0,00", p.Money(decimal.Zero))
	assert.Equal(t, "12,5", p.Quantity(decimal.RequireFromString("12.500")))
	assert.Equal(t, "3", p.Quantity(decimal.NewFromInt(3)))
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"да\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			c := newPromptConfirmer(bufio.NewReader(strings.NewReader(tt.input)), &out)

			ok, err := c.Confirm(context.Background(), "Удалить?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, "Удалить? [y/N]: ", out.String())
		})
	}
}

func TestParseItems(t *testing.T) {
	items, err := parseItems([]string{"7:10,5", "9:2:срочно"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(7), items[0].Chemical)
	assert.True(t, decimal.RequireFromString("10.5").Equal(items[0].Quantity))
	assert.Equal(t, "срочно", items[1].Notes)

	for _, bad := range []string{"7", "x:1", "7:abc"} {
		_, err := parseItems([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestPeriodFlags(t *testing.T) {
	p := periodFlags{period: "week", start: "2020-01-01"}
	start, end, err := p.resolve(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-08", start.String())
	assert.Equal(t, "2025-03-14", end.String())

	p = periodFlags{start: "2025-01-01", end: "2025-01-31"}
	start, end, err = p.resolve(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", start.String())
	assert.Equal(t, "2025-01-31", end.String())

	_, _, err = (&periodFlags{start: "01.01.2025"}).resolve(fixedNow)
	assert.Error(t, err)
}

func TestRun_Dispatch(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 2, h.run("", "bogus"))
	assert.Contains(t, h.stderr.String(), "Usage:")

	assert.Equal(t, 0, h.run("", "version"))
	assert.Contains(t, h.stdout.String(), "chemctl dev")

	assert.Equal(t, 2, h.run("", "facilities", "list", "--no-such-flag"))
}

func TestRun_Login(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.api.Session.Logout(context.Background()))

	user := testutil.NewUser(identity.RoleLogistician)
	h.api.Handle("POST /auth/jwt/create/", http.StatusOK, map[string]string{"access": "a1", "refresh": "r1"})
	h.api.Handle("GET /auth/users/me/", http.StatusOK, user)

	code := h.run("s3cret\n", "login", "-u", user.Username, "--password-stdin")
	require.Equal(t, 0, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Logged in as")

	var body map[string]string
	h.api.Last(t, http.MethodPost, "/auth/jwt/create/").JSON(t, &body)
	assert.Equal(t, user.Username, body["username"])
	assert.Equal(t, "s3cret", body["password"])

	st, err := h.api.Session.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", st.AccessToken)
	assert.Equal(t, user.ID, st.User.ID)
}

func TestRun_NotLoggedIn(t *testing.T) {
	h := newHarness(t)
	cfg := h.config

	var stderr bytes.Buffer
	code := Run(context.Background(),
		[]string{"--config", cfg, "--base-url", h.api.Server.URL, "whoami"},
		Streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &stderr},
		WithSession(session.New(session.NewMemoryStore())),
	)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Not logged in")
}

func TestRun_FacilitiesList(t *testing.T) {
	h := newHarness(t)
	facilities := []inventory.Facility{
		testutil.NewFacility(inventory.FacilityTypeWarehouse),
		testutil.NewFacility(inventory.FacilityTypeWell),
	}
	h.api.Handle("GET /api/facilities/", http.StatusOK, facilities)

	require.Equal(t, 0, h.run("", "facilities", "list", "-o", "json"), h.stderr.String())

	var out []inventory.Facility
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, facilities[1].Name, out[1].Name)
}

func TestRun_FacilitiesUpdateKeepsUnsetFields(t *testing.T) {
	h := newHarness(t)
	f := testutil.NewFacility(inventory.FacilityTypeWarehouse)
	path := fmt.Sprintf("/api/facilities/%d/", f.ID)
	h.api.Handle("GET "+path, http.StatusOK, f)
	h.api.Handle("PATCH "+path, http.StatusOK, f)

	require.Equal(t, 0, h.run("", "facilities", "update", fmt.Sprint(f.ID), "--location", "Куст 12"), h.stderr.String())

	var body map[string]any
	h.api.Last(t, http.MethodPatch, path).JSON(t, &body)
	assert.Equal(t, f.Name, body["name"])
	assert.Equal(t, "warehouse", body["type"])
	assert.Equal(t, "Куст 12", body["location"])
}

func TestRun_DeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.api.Handle("DELETE /api/chemicals/5/", http.StatusNoContent, nil)

	assert.Equal(t, 1, h.run("n\n", "chemicals", "delete", "5"))
	assert.Contains(t, h.stderr.String(), "Cancelled.")
	assert.Zero(t, h.api.Count(http.MethodDelete, "/api/chemicals/5/"))

	assert.Equal(t, 0, h.run("", "chemicals", "delete", "5", "--yes"), h.stderr.String())
	assert.Equal(t, 1, h.api.Count(http.MethodDelete, "/api/chemicals/5/"))
}

func TestRun_RequisitionStatus(t *testing.T) {
	engineer := testutil.NewUser(identity.RoleEngineer)

	t.Run("creator submits a draft", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t, engineer)
		req := testutil.NewRequisition(requisition.StatusDraft, engineer, 5)
		path := fmt.Sprintf("/api/requisitions/%d/", req.ID)
		h.api.Handle("GET "+path, http.StatusOK, req)
		submitted := *req
		submitted.Status = requisition.StatusSubmitted
		h.api.Handle("PATCH "+path, http.StatusOK, submitted)

		code := h.run("y\n", "requisitions", "status", fmt.Sprint(req.ID), "submitted")
		require.Equal(t, 0, code, h.stderr.String())

		var body map[string]string
		h.api.Last(t, http.MethodPatch, path).JSON(t, &body)
		assert.Equal(t, map[string]string{"status": "submitted"}, body)
		assert.Contains(t, h.stdout.String(), requisition.StatusSubmitted.Label())
	})

	t.Run("engineer cannot approve", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t, engineer)
		req := testutil.NewRequisition(requisition.StatusReviewing, engineer, 5)
		path := fmt.Sprintf("/api/requisitions/%d/", req.ID)
		h.api.Handle("GET "+path, http.StatusOK, req)

		assert.Equal(t, 1, h.run("", "requisitions", "status", fmt.Sprint(req.ID), "approved", "-y"))
		assert.Contains(t, h.stderr.String(), "cannot move")
		assert.Zero(t, h.api.Count(http.MethodPatch, path))
	})

	t.Run("unknown status is rejected before any request", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(t, engineer)

		assert.Equal(t, 1, h.run("", "requisitions", "status", "3", "archived"))
		assert.Contains(t, h.stderr.String(), "unknown status")
	})
}

func TestRun_RequisitionCreate(t *testing.T) {
	h := newHarness(t)
	h.api.Handle("POST /api/requisitions/", http.StatusCreated, map[string]any{"id": 8, "status": "submitted"})

	code := h.run("", "requisitions", "create",
		"--facility", "3", "--date", "2025-04-01",
		"--item", "7:10", "--item", "9:2,5:срочно",
		"--status", "submitted")
	require.Equal(t, 0, code, h.stderr.String())

	var body struct {
		TargetFacility int64  `json:"target_facility"`
		RequiredDate   string `json:"required_date"`
		Status         string `json:"status"`
		Items          []struct {
			Chemical int64  `json:"chemical"`
			Quantity string `json:"quantity"`
			Notes    string `json:"notes"`
		} `json:"items"`
	}
	h.api.Last(t, http.MethodPost, "/api/requisitions/").JSON(t, &body)
	assert.Equal(t, int64(3), body.TargetFacility)
	assert.Equal(t, "2025-04-01", body.RequiredDate)
	assert.Equal(t, "submitted", body.Status)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "2.5", body.Items[1].Quantity)
	assert.Equal(t, "срочно", body.Items[1].Notes)
}

func TestRun_RequisitionReceive(t *testing.T) {
	h := newHarness(t)
	staff := testutil.NewUser(identity.RoleLogistician)
	h.signIn(t, staff)
	req := testutil.NewRequisition(requisition.StatusInProgress, staff, 10)
	h.api.Handle(fmt.Sprintf("GET /api/requisitions/%d/", req.ID), http.StatusOK, req)
	h.api.Handle("POST /api/requisitions/receive-item/", http.StatusOK, map[string]string{"status": "ok"})

	code := h.run("", "requisitions", "receive", fmt.Sprint(req.ID), "1", "4", "--date", "2025-03-10T08:15")
	require.Equal(t, 0, code, h.stderr.String())

	var body map[string]any
	h.api.Last(t, http.MethodPost, "/api/requisitions/receive-item/").JSON(t, &body)
	assert.EqualValues(t, 1, body["item_id"])
	assert.Equal(t, "2025-03-10T08:15", body["operation_date"])

	assert.Equal(t, 1, h.run("", "requisitions", "receive", fmt.Sprint(req.ID), "1", "11"))
	assert.Equal(t, 1, h.api.Count(http.MethodPost, "/api/requisitions/receive-item/"), "over-receipt is refused locally")
}

func TestRun_ConsumptionExport(t *testing.T) {
	h := newHarness(t)
	h.api.Handle("GET /api/reports/consumption/", http.StatusOK, []report.ConsumptionRow{
		{ChemicalID: 1, Name: "Барит", Unit: "т", TotalQuantity: decimal.NewFromInt(12)},
	})
	file := filepath.Join(t.TempDir(), "consumption.xlsx")

	code := h.run("", "reports", "consumption", "--facility", "3,4", "--period", "month", "--xlsx", file)
	require.Equal(t, 0, code, h.stderr.String())

	q := h.api.Last(t, http.MethodGet, "/api/reports/consumption/").Query
	assert.Equal(t, []string{"3", "4"}, q["facility_outcome"])
	assert.Equal(t, "2025-02-14", q.Get("start_date"))
	assert.Contains(t, h.stdout.String(), "Барит")

	f, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Расход")
}

func TestRun_ArchiveNeedsStorage(t *testing.T) {
	h := newHarness(t)

	code := h.run("", "reports", "consumption", "--facility", "3", "--period", "month", "--xlsx", "x.xlsx", "--archive")
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "storage is not enabled")
}

func TestRun_SessionExpired(t *testing.T) {
	h := newHarness(t)
	h.api.Handle("GET /api/chemicals/", http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	h.api.Handle("POST /auth/jwt/refresh/", http.StatusUnauthorized, map[string]string{"detail": "token blacklisted"})

	assert.Equal(t, 1, h.run("", "chemicals", "list"))
	assert.Contains(t, h.stderr.String(), "chemctl login")
	assert.NotContains(t, h.stderr.String(), "Error:")

	st, err := h.api.Session.State(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
}

func TestRun_WatchTransactions(t *testing.T) {
	h := newHarness(t)
	h.api.Handle("GET /api/transactions/", http.StatusOK, []inventory.Transaction{})

	code := h.run("transaction_type=add\nbogus\ntransaction_type=consume\n",
		"watch", "transactions", "chemical=7", "--debounce", "20ms")
	require.Equal(t, 0, code, h.stderr.String())

	reqs := h.api.Requests(http.MethodGet, "/api/transactions/")
	require.Len(t, reqs, 2, "initial load plus one debounced reload")
	assert.Equal(t, "7", reqs[0].Query.Get("chemical"))
	assert.Equal(t, "consume", reqs[1].Query.Get("transaction_type"))
	assert.Equal(t, "7", reqs[1].Query.Get("chemical"))
	assert.Contains(t, h.stderr.String(), "expected key=value")
}
