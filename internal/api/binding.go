package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mr1hm/relief-hub/internal/reports"
)

func init() {
	// Report validation failures under the names clients send.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	}
}

// bindError answers a failed ShouldBind: oversized bodies get 413, field
// problems a field-named 400, anything else a generic 400.
func (h *Handler) bindError(c *gin.Context, err error) {
	var (
		verrs    validator.ValidationErrors
		ferr     *reports.ValidationError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
	case errors.As(err, &verrs) && len(verrs) > 0:
		badRequest(c, fieldMessage(verrs[0]))
	case errors.As(err, &ferr):
		badRequest(c, ferr.Error())
	default:
		badRequest(c, "invalid request body")
	}
}

func fieldMessage(fe validator.FieldError) string {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email address"
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "min":
		msg = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		msg = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		msg = "is invalid"
	}
	return fe.Field() + ": " + msg
}

// amount accepts a JSON number or a numeric string, as browser forms send
// both. Non-finite values are rejected.
type amount float64

func parseAmount(s string) (amount, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &reports.ValidationError{Field: "amount", Message: "must be a number"}
	}
	return amount(f), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if raw == "null" {
		return nil
	}
	if s, err := strconv.Unquote(raw); err == nil {
		raw = s
	}
	v, err := parseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalParam is used by gin's form binding.
func (a *amount) UnmarshalParam(param string) error {
	v, err := parseAmount(param)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
