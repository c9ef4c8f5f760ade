package domain

import (
	"fmt"
	"testing"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidMoney(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"40", true},
		{"0.00000001", true},
		{"1.100000000", true},
		{"-2.5", true},
		{"0.000000005", false},
		{"9.999999995", false},
		{"999999999999.99999999", true},
		{"1000000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidMoney(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestErrTaskTooSoonNamesCooldown(t *testing.T) {
	want := fmt.Sprintf("%d seconds", int(config.MinTaskCompletionInterval.Seconds()))
	assert.Contains(t, ErrTaskTooSoon.Error(), want)
	assert.Equal(t, KindRateLimited, KindOf(ErrTaskTooSoon))
}
