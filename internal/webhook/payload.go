package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lyftr/webhookd/internal/message"
)

// MaxTextLength caps the optional text field.
const MaxTextLength = 4096

var msisdnPattern = regexp.MustCompile(`^\+[0-9]+$`)

// Validation error kinds.
const (
	KindMalformedJSON = "malformed_json"
	KindInvalidFields = "invalid_fields"
)

// FieldError names one failing payload field and why it failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every failing field of a payload, so the
// client sees all violations at once rather than the first one hit.
type ValidationError struct {
	Kind   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e.Kind == KindMalformedJSON {
		return "malformed JSON payload"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// inboundMessage is the wire shape of a webhook payload.
type inboundMessage struct {
	MessageID string  `json:"message_id" validate:"required"`
	From      string  `json:"from" validate:"required,msisdn"`
	To        string  `json:"to" validate:"required,msisdn"`
	TS        string  `json:"ts" validate:"required,utcts"`
	Text      *string `json:"text" validate:"omitempty,max=4096"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json tag names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// msisdn: strict E.164, a leading + followed by digits only.
	if err := v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	// utcts: RFC3339 with a literal Z suffix; other offsets rejected.
	if err := v.RegisterValidation("utcts", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !strings.HasSuffix(s, "Z") {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	}); err != nil {
		panic(err)
	}

	return v
}

// ParseMessage decodes and validates a raw webhook payload into a
// canonical Message. It returns a ValidationError carrying either the
// malformed-JSON kind or the complete list of failing fields.
func ParseMessage(raw []byte) (message.Message, *ValidationError) {
	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			// Wrong JSON type for a known field (e.g. text: 123) is a
			// field-level violation, not a broken document. Unmarshal
			// keeps decoding past the offending field, so the rest of
			// the struct can still be checked against the field rules.
			fields := []FieldError{{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("must be a %s", typeErr.Type.Kind()),
			}}
			fields = append(fields, ruleViolations(in, typeErr.Field)...)
			return message.Message{}, &ValidationError{Kind: KindInvalidFields, Fields: fields}
		}
		return message.Message{}, &ValidationError{Kind: KindMalformedJSON}
	}

	if fields := ruleViolations(in, ""); len(fields) > 0 {
		return message.Message{}, &ValidationError{Kind: KindInvalidFields, Fields: fields}
	}

	return message.Message{
		MessageID: in.MessageID,
		From:      in.From,
		To:        in.To,
		TS:        in.TS,
		Text:      in.Text,
	}, nil
}

// ruleViolations runs the field rules over a decoded payload and lists
// every failure, skipping a field already reported by the decoder.
func ruleViolations(in inboundMessage, skipField string) []FieldError {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Field() == skipField {
			continue
		}
		fields = append(fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe)})
	}
	return fields
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "msisdn":
		return "must be E.164: a leading + followed by digits"
	case "utcts":
		return "must be an ISO-8601 UTC timestamp with a Z suffix"
	case "max":
		return fmt.Sprintf("must be at most %d characters", MaxTextLength)
	}
	return "is invalid"
}
