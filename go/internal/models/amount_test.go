package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    Amount
		wantErr bool
	}{
		{name: "whole", in: 10, want: 1000},
		{name: "two decimals", in: 2.35, want: 235},
		{name: "rounds half up", in: 0.125, want: 13},
		{name: "rounds down", in: 4.994, want: 499},
		{name: "zero", in: 0, want: 0},
		{name: "negative", in: -1, wantErr: true},
		{name: "nan", in: math.NaN(), wantErr: true},
		{name: "too large", in: 5_000_000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmountFromFloat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: 4000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":40.00}`, string(data))

	var in struct {
		Amount Amount `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":5.006}`), &in))
	assert.Equal(t, Amount(501), in.Amount)
	assert.Equal(t, "$5.01", in.Amount.Dollars())
}

func TestAmountMul(t *testing.T) {
	assert.Equal(t, Amount(2350), Amount(1000).Mul(2.35))
	assert.Equal(t, 2.8, Round2(2.799999))
}
