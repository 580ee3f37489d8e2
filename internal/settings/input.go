package settings

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Input is a partial settings update; nil fields are left unchanged.
type Input struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	IsPrivate      *bool   `json:"is_private"`
	WelcomeMessage *string `json:"welcome_message"`
	LogoURL        *string `json:"-"`
	LogoKey        *string `json:"-"`
}

// Validate checks the fields that are set.
func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.By(func(interface{}) error {
			if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
				return errors.New("cannot be blank")
			}
			return nil
		}), validation.Length(1, 100)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
		validation.Field(&in.WelcomeMessage, validation.Length(0, 5000)),
	)
}
