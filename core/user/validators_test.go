package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestPasswordPolicy(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1#", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Abc 123#xyz", wantErr: pwdNoSpaceText},
		{name: "numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "no special char", pwd: "Abcdefg123", wantErr: pwdComplexityText},
		{name: "no upper case", pwd: "abcdefg#123", wantErr: pwdComplexityText},
		{name: "similar to the name", pwd: "Jonathan#1", wantErr: pwdAttrSimText},
		{name: "common", pwd: "P@ssw0rd", wantErr: pwdNoCommonText},
		{name: "valid", pwd: "Gopher#2024!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(UpdateUser{Name: "Jonathan", Password: tt.pwd, PasswordConfirm: tt.pwd})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			require.Len(t, vErrs, 1)
			assert.Equal(t, tt.wantErr, vErrs[0].Translate(translator))
		})
	}
}

func TestNewUser_UsernameOrEmail(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	err := validate.Struct(NewUser{Name: "Jon", Password: "Gopher#2024!", PasswordConfirm: "Gopher#2024!"})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	fields := map[string]string{}
	for _, fe := range vErrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	assert.Equal(t, map[string]string{"username": usernameOrEmailText, "email": usernameOrEmailText}, fields)
}

func TestAllRolesValidation(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	pwd := "Gopher#2024!"
	assert.NoError(t, validate.Struct(NewUser{Name: "Jon", Username: "jon", Password: pwd, PasswordConfirm: pwd, Roles: []string{RoleTeacher}}))
	assert.Error(t, validate.Struct(NewUser{Name: "Jon", Username: "jon", Password: pwd, PasswordConfirm: pwd, Roles: []string{"wizard"}}))
}
