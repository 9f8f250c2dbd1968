// This file contains the actual validator implementation for incoming http requests.
//
// You can implement custom validators for each field in this file and reference them in the request structs.

package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate *validator.Validate

// Initialize the request validator. Errors name fields the way clients send them.
func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = fld.Tag.Get("params")
		}
		return name
	})
}

// ValidateRequest validates a request using a Fiber context and a request struct.
// It parses the request differently based on HTTP method. Path parameters are parsed for every method.
func ValidateRequest(c *fiber.Ctx, req interface{}) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodDelete:
		if err := c.QueryParser(req); err != nil {
			return err
		}
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		if err := c.BodyParser(req); err != nil {
			return err
		}
	default:
		// Unsupported HTTP method
	}

	if err := c.ParamsParser(req); err != nil {
		return err
	}

	return describe(validate.Struct(req))
}

// describe turns validator errors into a short message naming each offending field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "isdefault":
			parts = append(parts, fmt.Sprintf("%s cannot be changed", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, ", "))
}
