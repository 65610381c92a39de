package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	postalCodeRe     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,9}$`)
	carrierRe        = regexp.MustCompile(`^[A-Za-z0-9_-]{2,40}$`)
	trackingNumberRe = regexp.MustCompile(`^[A-Za-z0-9]{6,40}$`)
)

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("scan_policy", validateScanPolicy)
	_ = validate.RegisterValidation("postal_code", validatePostalCode)
	_ = validate.RegisterValidation("carrier", validateCarrier)
	_ = validate.RegisterValidation("tracking_number", validateTrackingNumber)
}

// ValidateStruct validates a struct using its validate tags and returns a
// field-keyed ValidationError on failure.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(verrs)
		}
		return err
	}
	return nil
}

func validateScanPolicy(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case "FIRST", "LAST":
		return true
	}
	return false
}

func validatePostalCode(fl validator.FieldLevel) bool {
	return postalCodeRe.MatchString(fl.Field().String())
}

func validateCarrier(fl validator.FieldLevel) bool {
	return carrierRe.MatchString(fl.Field().String())
}

func validateTrackingNumber(fl validator.FieldLevel) bool {
	return trackingNumberRe.MatchString(fl.Field().String())
}
