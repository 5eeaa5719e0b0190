package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// Validate is the shared payload validator.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into dst and validates it. Failures come
// back as a 400 AppError, or 413 when a body limit installed upstream trips.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("request body is required", err, nil)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, err)
			appErr.Details = map[string]int64{"max": tooLarge.Limit}
			return appErr
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return BadRequest("malformed json", err, map[string]any{"offset": syntaxErr.Offset})
		}
		return BadRequest("invalid request body", err, nil)
	}
	if err := Validate.Struct(dst); err != nil {
		return BadRequest("validation failed", err, ValidationDetails(err))
	}
	return nil
}

// ValidationDetails flattens validator errors into field -> rule pairs.
func ValidationDetails(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out[field] = rule
	}
	return out
}
