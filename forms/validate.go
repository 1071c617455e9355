package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator aplica as regras das tags `validate` e devolve *ValidationError
// com todas as violações, não só a primeira.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// detalhes usam o nome do campo no JSON (firstName, não FirstName)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (v *Validator) Validate(payload any) error {
	err := v.v.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate payload: %w", err)
	}

	ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe, minLength(payload, fe))})
	}
	return ve
}

var fieldLabels = map[string]string{
	"name":      "Name",
	"email":     "Email",
	"company":   "Company",
	"subject":   "Subject",
	"message":   "Message",
	"firstName": "First name",
}

// fieldMessage monta a mensagem de um campo. Campo vazio recebe a mesma
// mensagem da regra que ele quebraria se tivesse conteúdo: e-mail inválido
// ou tamanho mínimo quando min > 1.
func fieldMessage(fe validator.FieldError, minLen string) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		if fe.Field() == "email" {
			return "Invalid email address"
		}
		if minLen != "" && minLen != "1" {
			return fmt.Sprintf("%s must be at least %s characters", label, minLen)
		}
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		if fe.Param() == "1" {
			return label + " is required"
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return label + " too long"
	default:
		return label + " is invalid"
	}
}

// minLength lê o parâmetro min= da tag validate do campo ("" se não houver).
func minLength(payload any, fe validator.FieldError) string {
	t := reflect.TypeOf(payload)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return ""
	}
	f, ok := t.FieldByName(fe.StructField())
	if !ok {
		return ""
	}
	for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
		if v, ok := strings.CutPrefix(rule, "min="); ok {
			return v
		}
	}
	return ""
}
