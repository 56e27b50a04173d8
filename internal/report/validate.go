package report

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"gadevtools/pkg/contracts/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields in errors the way they are spelled in the JSON document
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that rep can be exported. It returns a
// *MalformedReportError naming the first missing or invalid field.
func Validate(rep *domain.AnalyticsReport) error {
	if rep == nil {
		return NewMalformedReportError("report", "is missing")
	}
	if !rep.HasRows() {
		return nil
	}

	if err := validate.Struct(rep); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fromFieldError(fieldErrs[0])
		}
		return fmt.Errorf("validating report: %w", err)
	}

	width := len(rep.ColumnHeaders)
	for i, row := range rep.Rows {
		if len(row) != width {
			return NewMalformedReportError(
				fmt.Sprintf("rows[%d]", i),
				fmt.Sprintf("has %d cells, want %d", len(row), width),
			)
		}
	}
	return nil
}

func fromFieldError(fe validator.FieldError) *MalformedReportError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must not be empty"
	case "oneof":
		reason = fmt.Sprintf("must be one of %s, got %q", fe.Param(), fe.Value())
	default:
		reason = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return NewMalformedReportError(field, reason)
}
