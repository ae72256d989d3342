package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"branch-ledger/pkg/constants"
)

var locationCodeRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`)

// registerRules registers the tags used in request DTOs.
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return err
	}
	if err := v.RegisterValidation("movement_action", isMovementAction); err != nil {
		return err
	}
	if err := v.RegisterValidation("location_code", isLocationCode); err != nil {
		return err
	}
	return nil
}

// isMovementAction accepts an empty value so the service default applies.
// Engine-only tags such as transfer_out are refused.
func isMovementAction(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return constants.MovementAction(s).IsClientAction()
}

func isLocationCode(fl validator.FieldLevel) bool {
	return locationCodeRe.MatchString(fl.Field().String())
}
