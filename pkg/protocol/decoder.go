package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"lingorelay/pkg/types"
)

// Decoder parses inbound frames into Inbound values. It is safe for concurrent use.
type Decoder struct {
	languages []types.LanguageCode
	validate  *validator.Validate
}

// NewDecoder builds a decoder that accepts the given language codes for travelers.
func NewDecoder(languages []types.LanguageCode) *Decoder {
	d := &Decoder{
		languages: append([]types.LanguageCode(nil), languages...),
		validate:  validator.New(),
	}

	// Report wire field names instead of Go field names.
	d.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = d.validate.RegisterValidation("traveler_language", func(fl validator.FieldLevel) bool {
		return d.Supports(types.LanguageCode(fl.Field().String()))
	})
	_ = d.validate.RegisterValidation("session_id", func(fl validator.FieldLevel) bool {
		return types.IsValidSessionID(fl.Field().String())
	})
	d.validate.RegisterStructValidation(d.validateSetRole, SetRole{})
	_ = d.validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return d
}

// Supports reports whether lang is an accepted language code.
func (d *Decoder) Supports(lang types.LanguageCode) bool {
	return lo.Contains(d.languages, lang)
}

// Decode parses one frame. Failures are *Error values.
func (d *Decoder) Decode(data []byte) (Inbound, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, Malformed("", "message is not a valid JSON object")
	}
	if head.Type == nil || *head.Type == "" {
		return nil, Malformed("type", "field is required")
	}

	switch *head.Type {
	case TypeSetRole:
		var msg SetRole
		if err := d.unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTranscription:
		var msg Transcription
		if err := d.unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeStartRecording:
		var msg StartRecording
		if err := d.unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeStopRecording:
		return StopRecording{}, nil
	default:
		return nil, Malformed("type", fmt.Sprintf("unknown message type %q", *head.Type))
	}
}

// validateSetRole checks the language of travelers only.
func (d *Decoder) validateSetRole(sl validator.StructLevel) {
	msg := sl.Current().Interface().(SetRole)
	if msg.Role == types.RoleTraveler && msg.Language != "" && !d.Supports(msg.Language) {
		sl.ReportError(msg.Language, "language", "Language", "traveler_language", "")
	}
}

func (d *Decoder) unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Malformed(typeErr.Field, "field has the wrong type")
		}
		return Malformed("", "message is not a valid JSON object")
	}
	if err := d.validate.Struct(v); err != nil {
		return translateValidation(err)
	}
	return nil
}

// translateValidation maps the first validator failure onto a typed error.
func translateValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Malformed("", err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "traveler_language":
		return Unsupported(fe.Field(), fmt.Sprint(fe.Value()))
	case "required", "nonblank":
		return Malformed(fe.Field(), "field is required")
	case "oneof":
		return Malformed(fe.Field(), "must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
	case "session_id":
		return Malformed(fe.Field(), types.ErrInvalidSessionID.Error())
	default:
		return Malformed(fe.Field(), "failed "+fe.Tag()+" validation")
	}
}
