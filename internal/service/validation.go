package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and reports the first failing field.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	fe := verrs[0]
	return &Error{Kind: KindValidation, Message: describeFieldError(fe), Err: err}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

type idsInput struct {
	ActorID   string `json:"actor_id" validate:"required"`
	MissionID string `json:"mission_id" validate:"required"`
}

type paymentProofInput struct {
	ProofURL  string `json:"proof_url" validate:"required,max=2048"`
	RefNumber string `json:"ref_number" validate:"required,max=128"`
}

type reasonInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type proofInput struct {
	ProofURL string `json:"proof_url" validate:"required,max=2048"`
}

type ratingInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func checkIDs(actorID, missionID string) error {
	return validateStruct(idsInput{ActorID: actorID, MissionID: missionID})
}

func optional(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
