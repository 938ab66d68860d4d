package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	f := NewFormatter("")
	tests := map[string]string{
		"0":           "$0.00",
		"10":          "$10.00",
		"1234.5":      "$1,234.50",
		"1234567.891": "$1,234,567.89",
		"-42.005":     "-$42.01",
		"0.004":       "$0.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, f.Format(decimal.RequireFromString(in)), in)
	}

	assert.Equal(t, "€5.00", NewFormatter("€").Format(decimal.NewFromInt(5)))
}

func TestFormatBeyondInt64(t *testing.T) {
	f := NewFormatter("")

	assert.Equal(t, "$10,000,000,000,000,000,000.00", f.Format(decimal.RequireFromString("10000000000000000000.00")))
	assert.Equal(t, "-$123,456,789,012,345,678,901.25", f.Format(decimal.RequireFromString("-123456789012345678901.245")))
}
