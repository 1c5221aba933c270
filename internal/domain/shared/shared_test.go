package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := fmt.Errorf("saving: %w", NewDomainError("NOT_FOUND", "facility 12 not found"))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("error returns message", func(t *testing.T) {
		assert.Equal(t, "Resource not found", ErrNotFound.Error())
	})
}

func TestRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantID   int64
		wantName string
	}{
		{"bare number", `12`, 12, ""},
		{"numeric string", `"7"`, 7, ""},
		{"display name", `"Склад 1"`, 0, "Склад 1"},
		{"nested object", `{"id": 3, "name": "Скважина 101"}`, 3, "Скважина 101"},
		{"nested user", `{"id": 5, "username": "ivanov"}`, 5, "ivanov"},
		{"null", `null`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Ref
			require.NoError(t, json.Unmarshal([]byte(tt.input), &r))
			assert.Equal(t, tt.wantID, r.ID)
			assert.Equal(t, tt.wantName, r.Name)
		})
	}
}

func TestRef_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Facility *Ref `json:"facility"`
	}{Facility: &Ref{ID: 4, Name: "Склад"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"facility": 4}`, string(data))
}

func TestRef_String(t *testing.T) {
	var nilRef *Ref
	assert.Equal(t, "", nilRef.String())
	assert.Equal(t, "9", NewRef(9).String())
	assert.Equal(t, "Куст 4", (&Ref{ID: 9, Name: "Куст 4"}).String())
}

func TestDate(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &d))
		assert.Equal(t, "2024-03-15", d.String())

		out, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, `"2024-03-15"`, string(out))
	})

	t.Run("accepts datetime value", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T10:30:00+03:00"`), &d))
		assert.Equal(t, "2024-03-15", d.String())
	})

	t.Run("zero marshals to null", func(t *testing.T) {
		out, err := json.Marshal(Date{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(out))
	})

	t.Run("parse rejects garbage", func(t *testing.T) {
		_, err := ParseDate("15.03.2024")
		assert.Error(t, err)
	})
}

func TestDateTime(t *testing.T) {
	layouts := []string{
		`"2024-03-15T10:30:00Z"`,
		`"2024-03-15T10:30:00.123456Z"`,
		`"2024-03-15T10:30:00"`,
		`"2024-03-15T10:30"`,
	}
	for _, in := range layouts {
		t.Run(in, func(t *testing.T) {
			var d DateTime
			require.NoError(t, json.Unmarshal([]byte(in), &d))
			assert.Equal(t, 2024, d.Year())
			assert.Equal(t, time.March, d.Month())
			assert.Equal(t, 10, d.Hour())
			assert.Equal(t, 30, d.Minute())
		})
	}

	t.Run("null is zero", func(t *testing.T) {
		var d DateTime
		require.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.True(t, d.IsZero())
	})
}

func TestDayBounds(t *testing.T) {
	d, err := ParseDate("2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31T00:00:00", DayStart(d))
	assert.Equal(t, "2024-01-31T23:59:59", DayEnd(d))
}
