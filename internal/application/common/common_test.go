package common

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chemstock/internal/domain/shared"
)

type lineInput struct {
	Chemical int64           `json:"chemical" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type sampleRequest struct {
	Name  string      `json:"name" validate:"required,max=10"`
	Date  shared.Date `json:"required_date" validate:"required"`
	Role  string      `json:"role" validate:"omitempty,oneof=admin engineer"`
	Lines []lineInput `json:"items" validate:"min=1,dive"`
}

func TestValidate(t *testing.T) {
	date, err := shared.ParseDate("2025-03-01")
	require.NoError(t, err)

	t.Run("valid request", func(t *testing.T) {
		req := sampleRequest{
			Name:  "ok",
			Date:  date,
			Lines: []lineInput{{Chemical: 1, Quantity: decimal.NewFromInt(2)}},
		}
		assert.NoError(t, Validate(req))
	})

	t.Run("reports every invalid field by json name", func(t *testing.T) {
		req := sampleRequest{
			Role:  "guest",
			Lines: []lineInput{{Chemical: 0, Quantity: decimal.Zero}},
		}
		err := Validate(req)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields := map[string]string{}
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		assert.Equal(t, "This field is required", fields["name"])
		assert.Equal(t, "This field is required", fields["required_date"])
		assert.Equal(t, "Must be one of: admin engineer", fields["role"])
		assert.Equal(t, "This field is required", fields["items[0].chemical"])
		assert.Equal(t, "Must be greater than 0", fields["items[0].quantity"])
	})

	t.Run("empty slice", func(t *testing.T) {
		err := Validate(sampleRequest{Name: "x", Date: date})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "items", verr.Fields[0].Field)
		assert.Contains(t, verr.Error(), "items: Must contain at least 1 entries")
	})
}

func TestRequireConfirmation(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, RequireConfirmation(ctx, nil, "delete?"))
	assert.NoError(t, RequireConfirmation(ctx, AlwaysConfirm, "delete?"))

	var asked string
	no := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		asked = prompt
		return false, nil
	})
	assert.ErrorIs(t, RequireConfirmation(ctx, no, "delete?"), shared.ErrNotConfirmed)
	assert.Equal(t, "delete?", asked)

	boom := errors.New("stdin closed")
	failing := ConfirmFunc(func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, RequireConfirmation(ctx, failing, "x"), boom)
}
