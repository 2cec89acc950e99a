package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func init() {
	// Mobile clients send and expect amounts as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(transactionAmount, Transaction{})
	v.RegisterStructValidation(budgetLimit, Budget{})
	return v
}

const (
	// Money columns are DECIMAL(10,2).
	maxAmountExponent = 8
	minAmountExponent = -30
)

var amountLimit = decimal.New(1, maxAmountExponent)

func transactionAmount(sl validator.StructLevel) {
	t := sl.Current().Interface().(Transaction)
	checkAmount(sl, t.Amount, "amount", "Amount")
}

func budgetLimit(sl validator.StructLevel) {
	b := sl.Current().Interface().(Budget)
	checkAmount(sl, b.MonthlyLimit, "monthly_limit", "MonthlyLimit")
}

// checkAmount rejects values that don't fit the money columns once rounded to
// cents. The exponent must be bounded before Round or any comparison, both of
// which rescale the mantissa.
func checkAmount(sl validator.StructLevel, d *decimal.Decimal, name, structName string) {
	if d == nil || d.IsZero() {
		return
	}
	switch {
	case d.Exponent() > maxAmountExponent:
		sl.ReportError(d, name, structName, "amount_range", "")
	case d.Exponent() < minAmountExponent:
		sl.ReportError(d, name, structName, "amount_scale", "")
	case !d.Round(2).Abs().LessThan(amountLimit):
		sl.ReportError(d, name, structName, "amount_range", "")
	}
}

// BackupData is the body of POST /backup. All three lists must be present,
// empty lists are fine.
type BackupData struct {
	Transactions []Transaction `json:"transactions" validate:"required,dive"`
	Budgets      []Budget      `json:"budgets" validate:"required,dive"`
	Categories   []Category    `json:"categories" validate:"required,dive"`
}

// Validate checks field presence and the column widths of the backing tables.
func (b *BackupData) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return &ValidationError{Problems: msgs}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "BackupData.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "amount_range":
		return fmt.Sprintf("%s must be less than %s in absolute value", field, amountLimit)
	case "amount_scale":
		return fmt.Sprintf("%s has too many decimal places", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ValidationError lists every problem found in a backup payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid backup payload: " + strings.Join(e.Problems, "; ")
}

type RestoreResponse struct {
	Transactions []Transaction `json:"transactions"`
	Budgets      []Budget      `json:"budgets"`
	Categories   []Category    `json:"categories"`
}

type BackupResult struct {
	Status               string `json:"status"`
	Message              string `json:"message"`
	TransactionsBackedUp int    `json:"transactions_backed_up"`
	BudgetsBackedUp      int    `json:"budgets_backed_up"`
	CategoriesBackedUp   int    `json:"categories_backed_up"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ServiceInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}
