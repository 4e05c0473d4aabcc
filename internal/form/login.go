package form

import (
	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	return ValidateStruct(r,
		v.Field(&r.Email, v.Required, v.Length(3, 254), is.EmailFormat),
		v.Field(&r.Password, v.Required, v.Length(1, 128)),
	)
}
