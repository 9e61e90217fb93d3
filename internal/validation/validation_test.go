package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.NoError(t, ValidateEmail("User@Example.COM"))
	for _, bad := range []string{"", "user", "user@example", "us er@example.com", "@example.com"} {
		assert.Errorf(t, ValidateEmail(bad), "expected %q to fail", bad)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("123456"))
	err := ValidatePassword("12345")
	require.Error(t, err)
	assert.Equal(t, "Password must be at least 6 characters long", err.Error())
}

func TestValidateWalletAddress(t *testing.T) {
	tests := []struct {
		currency string
		address  string
		ok       bool
	}{
		{"BTC", "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", true},
		{"BTC", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"BTC", "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", false},
		{"ETH", "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", true},
		{"ETH", "0x742d35Cc", false},
		{"USDT", "TN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9", true},
		{"USDT", "XN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9", false},
		{"USD", "anything", true},
		{"BTC", "  ", false},
	}
	for _, tt := range tests {
		err := ValidateWalletAddress(tt.address, tt.currency)
		if tt.ok {
			assert.NoErrorf(t, err, "%s %s", tt.currency, tt.address)
		} else {
			assert.Errorf(t, err, "%s %s", tt.currency, tt.address)
		}
	}

	err := ValidateWalletAddress("nope", "ETH")
	assert.Equal(t, "Invalid ETH wallet address format", err.Error())
}

func TestValidateTxHash(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	assert.NoError(t, ValidateTxHash(hash))
	assert.NoError(t, ValidateTxHash("0x"+hash))
	assert.Error(t, ValidateTxHash(hash[:63]))
	assert.Error(t, ValidateTxHash("0x"+strings.Repeat("zz", 32)))
	assert.Equal(t, "Transaction hash is required", ValidateTxHash("").Error())
}

func TestValidateAmount(t *testing.T) {
	min := decimal.RequireFromString("0.001")
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.001"), min))
	assert.Error(t, ValidateAmount(decimal.Zero, min))
	assert.Error(t, ValidateAmount(decimal.RequireFromString("-1"), decimal.Zero))

	err := ValidateAmount(decimal.RequireFromString("0.0009"), min)
	require.Error(t, err)
	assert.Equal(t, "Minimum amount is 0.001", err.Error())

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "amount", verr.Field)
}

func TestValidatorStruct(t *testing.T) {
	type input struct {
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,broker_email"`
		Type     string `json:"type" validate:"required,oneof=buy sell"`
		TxHash   string `json:"txHash" validate:"omitempty,txhash"`
	}
	v := New()

	assert.NoError(t, v.Struct(input{FullName: "A", Email: "a@b.co", Type: "buy"}))

	err := v.Struct(input{Email: "a@b.co", Type: "buy"})
	require.Error(t, err)
	assert.Equal(t, "FullName is required", err.Error())

	err = v.Struct(input{FullName: "A", Email: "a@b.co", Type: "hold"})
	require.Error(t, err)
	assert.Equal(t, "Type must be one of: buy sell", err.Error())

	err = v.Struct(input{FullName: "A", Email: "nope", Type: "sell"})
	require.Error(t, err)
	assert.Equal(t, "Invalid email format", err.Error())

	err = v.Struct(input{FullName: "A", Email: "a@b.co", Type: "sell", TxHash: "0x1"})
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "txHash", verr.Field)
}
