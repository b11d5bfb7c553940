package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

// Required columns of the master table, in canonical order
var Columns = []string{"chemical_id", "concentration", "plate_id", "well_id", "endpoint", "value"}

var endpointPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// Validator checks observations against their struct tags
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports JSON field names
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("endpoint_name", func(fl validator.FieldLevel) bool {
		return endpointPattern.MatchString(fl.Field().String())
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Observation validates one parsed row. line is the 1-based source line.
func (v *Validator) Observation(line int, o domain.WellObservation) error {
	err := v.validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return apperrors.NewSchemaError(fmt.Sprintf("line %d: %s", line, strings.Join(msgs, "; ")), err).
			WithContext("line", line)
	}
	return apperrors.NewSchemaError(fmt.Sprintf("line %d", line), err)
}
