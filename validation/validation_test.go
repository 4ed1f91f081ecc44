package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Name  string
	Email string
}

func installAccountRules(t *testing.T) {
	t.Helper()
	Install(func(bean any) []Violation {
		a, ok := bean.(*account)
		if !ok {
			return nil
		}
		var out []Violation
		if a.Name == "" {
			out = append(out, Violation{Model: "account", FieldPath: "Name", Message: "must not be blank", Value: a.Name})
		}
		if a.Email == "" {
			out = append(out, Violation{Model: "account", FieldPath: "Email", Message: "must not be blank", Value: a.Email})
		}
		return out
	})
	t.Cleanup(func() {
		Install(func(any) []Violation { return nil })
	})
}

func TestDefaultValidatorAcceptsEverything(t *testing.T) {
	assert.NoError(t, MustValidate(&account{}))
	assert.Empty(t, Validate(&account{}))
}

func TestMustValidateCarriesFullViolationList(t *testing.T) {
	installAccountRules(t)

	err := MustValidate(&account{})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 2, "all violations are reported in one pass")
	assert.Equal(t, "Name", verr.Violations[0].FieldPath)
	assert.Equal(t, "Email", verr.Violations[1].FieldPath)
}

func TestMustValidatePassesValidBean(t *testing.T) {
	installAccountRules(t)
	assert.NoError(t, MustValidate(&account{Name: "Ann", Email: "ann@example.com"}))
}

func TestValidateAllAggregatesAcrossBeans(t *testing.T) {
	installAccountRules(t)

	err := ValidateAll(
		&account{Name: "Ann", Email: "ann@example.com"},
		&account{Email: "bob@example.com"},
		&account{Name: "Cia"},
	)
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 2)
}

func TestInstallIgnoresNil(t *testing.T) {
	installAccountRules(t)
	Install(nil)
	assert.Error(t, MustValidate(&account{}), "a nil install keeps the current validator")
}

func TestErrorMessage(t *testing.T) {
	one := &Error{Violations: []Violation{
		{Model: "account", FieldPath: "Name", Message: "must not be blank"},
	}}
	assert.Equal(t, "validation failed: account.Name: must not be blank", one.Error())

	two := &Error{Violations: []Violation{
		{Model: "account", FieldPath: "Name", Message: "must not be blank"},
		{Model: "account", FieldPath: "Email", Message: "must not be blank"},
	}}
	assert.Contains(t, two.Error(), "(2 violations)")
}
