package user

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
)

func TestPasswordPolicy(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	RegisterValidators(validate, translator)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantMsg string
	}{
		{"too short", "ana@example.com", "Ab1!", "at least 8 characters"},
		{"spaces", "ana@example.com", "Abc 123!x", "cannot contain spaces"},
		{"digits only", "ana@example.com", "12345678", "only digits"},
		{"no symbol", "ana@example.com", "Abcdefg12", "mixes upper"},
		{"no upper case", "ana@example.com", "abcdefg1!", "mixes upper"},
		{"resembles mailbox", "ana.souza@example.com", "Ana.Souza1", "resemble"},
		{"common", "ana@example.com", "P@ssw0rd", "commonly used"},
		{"strong", "ana@example.com", "Str0ng-Pass!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := SetUserPassword{Email: tt.email, Password: tt.pwd, PasswordConfirm: tt.pwd}
			err := data.Validate(validate, translator)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "%v", err)
			assert.Contains(t, vErr.FieldMessage("password"), tt.wantMsg)
		})
	}
}

func TestPasswordPolicy_newUserName(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	RegisterValidators(validate, translator)

	err := core.TranslateValidation(validate.Struct(NewUser{
		Name:            "Beatriz Lima",
		Email:           "b.lima@example.com",
		Password:        "Beatriz-Lima1",
		PasswordConfirm: "Beatriz-Lima1",
	}), translator)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "%v", err)
	assert.Contains(t, vErr.FieldMessage("password"), "resemble")
}
