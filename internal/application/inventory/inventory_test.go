package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/erp/chemstock/internal/testutil"
)

func mustDate(t *testing.T, s string) shared.Date {
	t.Helper()
	d, err := shared.ParseDate(s)
	require.NoError(t, err)
	return d
}

func int64Ptr(v int64) *int64 { return &v }

func TestTransactionFilter_Values(t *testing.T) {
	opUUID := uuid.MustParse("7b1d3f4e-9c2a-4e1b-8f3d-2a5c6b7d8e9f")
	f := TransactionFilter{
		FacilityOutcome: []int64{3, 5},
		Type:            inventory.TransactionTypeConsume,
		Chemical:        7,
		OperationUUID:   opUUID,
		StartDate:       mustDate(t, "2025-01-01"),
		EndDate:         mustDate(t, "2025-01-31"),
	}
	q := f.Values()

	assert.Equal(t, []string{"3", "5"}, q["facility_outcome"])
	assert.Equal(t, "consume", q.Get("transaction_type"))
	assert.Equal(t, "7", q.Get("chemical"))
	assert.Equal(t, opUUID.String(), q.Get("operation_uuid"))
	assert.Equal(t, "2025-01-01T00:00:00", q.Get("start_date"))
	assert.Equal(t, "2025-01-31T23:59:59", q.Get("end_date"))
	assert.NotContains(t, q, "from_facility")
	assert.NotContains(t, q, "facility")

	assert.Empty(t, TransactionFilter{}.Values())
}

func TestFacilityService(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewFakeAPI(t)
	wh := testutil.NewFacility(inventory.FacilityTypeWarehouse)
	api.Handle("GET /api/facilities/", http.StatusOK, []inventory.Facility{wh})
	api.Handle("POST /api/facilities/", http.StatusCreated, wh)
	api.Handle("PATCH /api/facilities/5/", http.StatusOK, wh)
	api.Handle("DELETE /api/facilities/5/", http.StatusNoContent, nil)

	svc := NewFacilityService(api.Client(t), &testutil.Confirmer{Answer: true})

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, wh.Name, list[0].Name)

	_, err = svc.Create(ctx, FacilityRequest{Name: "Скв. 101", Type: "pipeline"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, 0, api.Count(http.MethodPost, "/api/facilities/"))

	_, err = svc.Create(ctx, FacilityRequest{Name: "Скв. 101", Type: inventory.FacilityTypeWell})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 5, FacilityRequest{Name: "Склад", Type: inventory.FacilityTypeWarehouse, Location: "Куст 4"})
	require.NoError(t, err)
	var body FacilityRequest
	api.Last(t, http.MethodPatch, "/api/facilities/5/").JSON(t, &body)
	assert.Equal(t, "Куст 4", body.Location)

	require.NoError(t, svc.Delete(ctx, 5))
}

func TestChemicalService(t *testing.T) {
	ctx := context.Background()
	api := testutil.NewFakeAPI(t)
	chem := testutil.NewChemical()
	api.Handle("GET /api/chemicals/2/", http.StatusOK, chem)
	api.Handle("POST /api/chemicals/", http.StatusBadRequest, map[string]any{"name": []string{"chemical with this name already exists."}})

	svc := NewChemicalService(api.Client(t), nil)

	got, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, chem.Price.Equal(got.Price))

	_, err = svc.Create(ctx, ChemicalRequest{Name: "KCl", UnitOfMeasurement: "кг", Price: decimal.NewFromInt(120)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name: chemical with this name already exists.")

	_, err = svc.Create(ctx, ChemicalRequest{Name: "KCl", UnitOfMeasurement: "кг", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestStockService_List(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.HandleFunc("GET /api/inventory/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("facility"))
		testutil.WriteJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "facility": map[string]any{"id": 4, "name": "Б"}, "chemical": map[string]any{"id": 1, "name": "Щ"}, "quantity": "0.00"},
			{"id": 2, "facility": map[string]any{"id": 4, "name": "Б"}, "chemical": map[string]any{"id": 2, "name": "А"}, "quantity": "12.5"},
			{"id": 3, "facility": map[string]any{"id": 4, "name": "Б"}, "chemical": map[string]any{"id": 3, "name": "В"}, "quantity": "-3"},
		})
	})

	svc := NewStockService(api.Client(t))
	items, err := svc.List(context.Background(), 4, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "А", items[0].Chemical.Name)
	assert.True(t, items[1].IsNegative())

	all, err := svc.List(context.Background(), 4, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransactionService_History(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.HandleFunc("GET /api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("facility"))
		assert.Equal(t, "9", r.URL.Query().Get("chemical"))
		testutil.WriteJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "operation_uuid": uuid.NewString(), "operation_date": "2025-01-02T10:00:00Z", "quantity": "1"},
			{"id": 2, "operation_uuid": uuid.NewString(), "operation_date": "2025-03-02T10:00:00Z", "quantity": "2"},
			{"id": 3, "operation_uuid": uuid.NewString(), "operation_date": "2025-02-02T10:00:00Z", "quantity": "3"},
		})
	})

	txs, err := NewTransactionService(api.Client(t)).History(context.Background(), 4, 9)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{txs[0].ID, txs[1].ID, txs[2].ID})
}

func TestOperationService_Create(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

	t.Run("sends multipart with complete items only", func(t *testing.T) {
		api := testutil.NewFakeAPI(t)
		api.Handle("POST /api/operations/create/bulk/", http.StatusCreated, map[string]string{"operation_uuid": uuid.NewString()})

		svc := NewOperationService(api.Client(t), nil)
		err := svc.Create(ctx, OperationRequest{
			Type:          inventory.TransactionTypeTransfer,
			FromFacility:  int64Ptr(1),
			ToFacility:    int64Ptr(2),
			Comment:       "перемещение",
			OperationDate: date,
			Items: []inventory.OperationItem{
				{ChemicalID: 5, Quantity: decimal.RequireFromString("10.5")},
				{ChemicalID: 0, Quantity: decimal.NewFromInt(3)},
				{ChemicalID: 6, Quantity: decimal.Zero},
			},
		}, &Document{Name: "ttn.pdf", Data: []byte("%PDF")})
		require.NoError(t, err)

		req := api.Last(t, http.MethodPost, "/api/operations/create/bulk/")
		assert.Equal(t, "transfer", req.Form.Get("transaction_type"))
		assert.Equal(t, "1", req.Form.Get("from_facility"))
		assert.Equal(t, "2", req.Form.Get("to_facility"))
		assert.Equal(t, "2025-04-01T09:30", req.Form.Get("operation_date"))
		assert.Equal(t, []byte("%PDF"), req.Files["document_file"])

		var items []inventory.OperationItem
		require.NoError(t, json.Unmarshal([]byte(req.Form.Get("items")), &items))
		require.Len(t, items, 1)
		assert.Equal(t, int64(5), items[0].ChemicalID)
	})

	t.Run("drops the facility a type does not use", func(t *testing.T) {
		api := testutil.NewFakeAPI(t)
		api.Handle("POST /api/operations/create/bulk/", http.StatusCreated, nil)

		err := NewOperationService(api.Client(t), nil).Create(ctx, OperationRequest{
			Type:          inventory.TransactionTypeAdd,
			FromFacility:  int64Ptr(1),
			ToFacility:    int64Ptr(2),
			OperationDate: date,
			Items:         []inventory.OperationItem{{ChemicalID: 5, Quantity: decimal.NewFromInt(1)}},
		}, nil)
		require.NoError(t, err)

		req := api.Last(t, http.MethodPost, "/api/operations/create/bulk/")
		assert.NotContains(t, req.Form, "from_facility")
		assert.NotContains(t, req.Files, "document_file")
	})

	tests := []struct {
		name  string
		req   OperationRequest
		field string
	}{
		{"no items", OperationRequest{Type: inventory.TransactionTypeAdd, ToFacility: int64Ptr(1), OperationDate: date}, "items"},
		{"consume without source", OperationRequest{Type: inventory.TransactionTypeConsume, OperationDate: date,
			Items: []inventory.OperationItem{{ChemicalID: 1, Quantity: decimal.NewFromInt(1)}}}, "from_facility"},
		{"add without destination", OperationRequest{Type: inventory.TransactionTypeAdd, OperationDate: date,
			Items: []inventory.OperationItem{{ChemicalID: 1, Quantity: decimal.NewFromInt(1)}}}, "to_facility"},
		{"unknown type", OperationRequest{Type: "loss", OperationDate: date}, "transaction_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testutil.NewFakeAPI(t)
			err := NewOperationService(api.Client(t), nil).Create(ctx, tt.req, nil)
			require.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, 0, api.Count(http.MethodPost, "/api/operations/create/bulk/"))
		})
	}
}

func TestOperationService_EditAndDelete(t *testing.T) {
	ctx := context.Background()
	opUUID := uuid.New()

	api := testutil.NewFakeAPI(t)
	api.Handle("GET /api/transactions/", http.StatusOK, []map[string]any{
		{"id": 1, "operation_uuid": opUUID.String(), "transaction_type": "consume", "from_facility": 3,
			"chemical": map[string]any{"id": 5, "name": "NaCl", "price": "10"}, "quantity": "4",
			"operation_date": "2025-04-01T09:30:00", "comment": "расход"},
	})
	api.Handle("POST /api/operations/edit/", http.StatusOK, nil)
	api.Handle("POST /api/operations/delete/", http.StatusNoContent, nil)

	confirmer := &testutil.Confirmer{Answer: true}
	svc := NewOperationService(api.Client(t), confirmer)

	op, err := svc.Get(ctx, opUUID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(op.TotalCost()))

	req := FromTransactions(op)
	assert.Equal(t, int64(3), *req.FromFacility)
	assert.Nil(t, req.ToFacility)
	req.Items[0].Quantity = decimal.NewFromInt(6)
	require.NoError(t, svc.Edit(ctx, opUUID, req))

	var edit map[string]any
	api.Last(t, http.MethodPost, "/api/operations/edit/").JSON(t, &edit)
	assert.Equal(t, opUUID.String(), edit["original_uuid"])
	data := edit["new_operation_data"].(map[string]any)
	assert.Equal(t, "consume", data["transaction_type"])
	assert.Equal(t, "2025-04-01T09:30", data["operation_date"])
	assert.Nil(t, data["to_facility"])

	require.NoError(t, svc.Delete(ctx, opUUID))
	var del map[string]string
	api.Last(t, http.MethodPost, "/api/operations/delete/").JSON(t, &del)
	assert.Equal(t, opUUID.String(), del["operation_uuid"])
	assert.Len(t, confirmer.Prompts(), 1)
}

func TestOperationService_GetMissing(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.Handle("GET /api/transactions/", http.StatusOK, []any{})
	_, err := NewOperationService(api.Client(t), nil).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
