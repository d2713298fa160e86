package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
)

// New returns a configured validator with the custom rules registered.
// Field errors are reported under their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// order_status accepts only the known order statuses.
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.KnownStatus(fl.Field().String())
	})

	// a delivery confirmation must carry the OTP
	v.RegisterStructValidation(updateStatusStructValidation, UpdateStatusRequest{})

	return v
}

func updateStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateStatusRequest)
	if req.Status == orders.StatusDelivered && req.OTP == "" {
		sl.ReportError(req.OTP, "otp", "OTP", "required_for_delivered", "")
	}
}
