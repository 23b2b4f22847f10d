package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ValidationError represents input validation failure
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s '%s': %s", e.Field, e.Value, e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

var argValidator = newArgValidator()

func newArgValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs unmarshals tool arguments into v and validates them. Missing
// arguments decode as an empty object.
func decodeArgs(request *mcp.CallToolRequest, v any) error {
	if request.Params != nil && len(request.Params.Arguments) > 0 {
		if err := json.Unmarshal(request.Params.Arguments, v); err != nil {
			return fmt.Errorf("invalid input format: %w", err)
		}
	}

	if err := argValidator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{
				Field:  fe.Field(),
				Value:  fmt.Sprint(fe.Value()),
				Reason: fmt.Sprintf("failed '%s' check", fe.Tag()),
			}
		}
		return err
	}
	return nil
}
