package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mekesim/backend/core"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()

	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate
}

func hasFieldError(err error, field, tag string) bool {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range vErrs {
		if fe.Field() == field && fe.Tag() == tag {
			return true
		}
	}
	return false
}

func TestNewUserValidation(t *testing.T) {
	validate := newTestValidator(t)

	tests := []struct {
		name      string
		nu        NewUser
		wantField string
		wantTag   string
	}{
		{
			name: "valid with username",
			nu:   NewUser{Name: "T", Username: "tester01", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
		},
		{
			name: "valid with email",
			nu:   NewUser{Name: "T", Email: "t@test.cd", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
		},
		{
			name:      "name required",
			nu:        NewUser{Username: "tester01", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
			wantField: "name", wantTag: "required",
		},
		{
			name:      "username or email required",
			nu:        NewUser{Name: "T", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
			wantField: "username", wantTag: usernameOrEmailTag,
		},
		{
			name:      "username too short",
			nu:        NewUser{Name: "T", Username: "abc", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
			wantField: "username", wantTag: "min",
		},
		{
			name:      "username bad chars",
			nu:        NewUser{Name: "T", Username: "bad user!", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
			wantField: "username", wantTag: "alphanum_",
		},
		{
			name:      "invalid email",
			nu:        NewUser{Name: "T", Email: "nope", Password: "s3cretW0rd!", PasswordConfirm: "s3cretW0rd!"},
			wantField: "email", wantTag: "email",
		},
		{
			name:      "password confirm mismatch",
			nu:        NewUser{Name: "T", Username: "tester01", Password: "s3cretW0rd!", PasswordConfirm: "other"},
			wantField: "password_confirm", wantTag: "eqfield",
		},
		{
			name:      "password too short",
			nu:        NewUser{Name: "T", Username: "tester01", Password: "short", PasswordConfirm: "short"},
			wantField: "password", wantTag: pwdMinLenTag,
		},
		{
			name:      "password with whitespace",
			nu:        NewUser{Name: "T", Username: "tester01", Password: "sup3r pass", PasswordConfirm: "sup3r pass"},
			wantField: "password", wantTag: pwdNoSpaceTag,
		},
		{
			name:      "password all numeric",
			nu:        NewUser{Name: "T", Username: "tester01", Password: "1234567890", PasswordConfirm: "1234567890"},
			wantField: "password", wantTag: pwdNotAllNumTag,
		},
		{
			name:      "password similar to username",
			nu:        NewUser{Name: "T", Username: "tester0001", Password: "tester0001x", PasswordConfirm: "tester0001x"},
			wantField: "password", wantTag: pwdAttrSimTag,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() error = %v, want nil", err)
				}
				return
			}
			if !hasFieldError(err, tt.wantField, tt.wantTag) {
				t.Errorf("Struct() error = %v, want field %q tag %q", err, tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestChangePasswordValidation(t *testing.T) {
	validate := newTestValidator(t)

	tests := []struct {
		name      string
		cp        ChangePassword
		wantField string
		wantTag   string
	}{
		{
			name: "valid",
			cp:   ChangePassword{OldPassword: "old", NewPassword: "s3cretW0rd!", NewPasswordConfirm: "s3cretW0rd!"},
		},
		{
			name:      "old password required",
			cp:        ChangePassword{NewPassword: "s3cretW0rd!", NewPasswordConfirm: "s3cretW0rd!"},
			wantField: "old_password", wantTag: "required",
		},
		{
			name:      "confirm mismatch",
			cp:        ChangePassword{OldPassword: "old", NewPassword: "s3cretW0rd!", NewPasswordConfirm: "nope1234"},
			wantField: "new_password_confirm", wantTag: "eqfield",
		},
		{
			name:      "policy applies to new password",
			cp:        ChangePassword{OldPassword: "old", NewPassword: "1234567890", NewPasswordConfirm: "1234567890"},
			wantField: "password", wantTag: pwdNotAllNumTag,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.cp)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() error = %v, want nil", err)
				}
				return
			}
			if !hasFieldError(err, tt.wantField, tt.wantTag) {
				t.Errorf("Struct() error = %v, want field %q tag %q", err, tt.wantField, tt.wantTag)
			}
		})
	}
}
