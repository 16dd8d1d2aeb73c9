package dto

import (
	"errors"
	"regexp"
	"strings"

	"clearway-webhooks/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Dotted lowercase names such as capital_call.created.
var eventTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("event_type", validateEventType)
	}
}

// validateEventType accepts dotted lowercase event names. The synthetic test
// type is reserved for the test endpoint.
func validateEventType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.EqualFold(s, domain.EventTypeTest) {
		return false
	}
	return eventTypeRe.MatchString(s)
}

// ValidationMessage turns a binding error into a short client message.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "event_type":
		return fe.Field() + " must be a dotted lowercase event name"
	default:
		return fe.Field() + " is invalid"
	}
}

