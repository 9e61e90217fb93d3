// Package validation holds shape-level checks applied before anything reaches the store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const MinPasswordLength = 6

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	txHashPattern = regexp.MustCompile(`^(0x)?[a-fA-F0-9]{64}$`)

	addressPatterns = map[string]*regexp.Regexp{
		"BTC":  regexp.MustCompile(`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,62}$`),
		"USDT": regexp.MustCompile(`^T[A-Za-z1-9]{33}$`),
		"ETH":  regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`),
	}
)

// Error is a failed check with the message shown to the caller.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fail("email", "Email is required")
	}
	if !emailPattern.MatchString(strings.ToLower(email)) {
		return fail("email", "Invalid email format")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fail("password", "Password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ValidateWalletAddress checks the address format for currencies with a known pattern.
func ValidateWalletAddress(address, currency string) error {
	if strings.TrimSpace(address) == "" {
		return fail("walletAddress", "Wallet address is required")
	}
	if p, ok := addressPatterns[currency]; ok && !p.MatchString(address) {
		return fail("walletAddress", "Invalid %s wallet address format", currency)
	}
	return nil
}

// ValidateAmount requires a positive amount of at least min (zero min means no floor).
func ValidateAmount(amount, min decimal.Decimal) error {
	if !amount.IsPositive() {
		return fail("amount", "Please enter a valid amount")
	}
	if min.IsPositive() && amount.LessThan(min) {
		return fail("amount", "Minimum amount is %s", min)
	}
	return nil
}

func ValidateTxHash(txHash string) error {
	if strings.TrimSpace(txHash) == "" {
		return fail("txHash", "Transaction hash is required")
	}
	if !txHashPattern.MatchString(txHash) {
		return fail("txHash", "Invalid transaction hash format")
	}
	return nil
}

// Validator runs struct-tag validation and reports fields by their JSON names.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("txhash", func(fl validator.FieldLevel) bool {
		return txHashPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("broker_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(strings.ToLower(fl.Field().String()))
	})
	return &Validator{validate: v}
}

// Struct validates s and converts the first failing field into an *Error.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}
	fe := fieldErrs[0]
	return &Error{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	label := fe.Field()
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
	case "txhash":
		return "Invalid transaction hash format"
	case "broker_email":
		return "Invalid email format"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
