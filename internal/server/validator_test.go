package server

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

type validatedClient struct {
	CPF   string  `json:"cpf" validate:"required,cpf"`
	Phone *string `json:"phone" validate:"omitempty,phone"`
	Type  string  `json:"type" validate:"required,txtype"`
}

func TestValidatorCustomTags(t *testing.T) {
	v := NewValidator()
	phone := "(11) 98765-4321"

	valid := validatedClient{CPF: "123.456.789-09", Phone: &phone, Type: "expense"}
	if err := v.Validate(&valid); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	landline := "(11) 3456-7890"
	valid.Phone = &landline
	if err := v.Validate(&valid); err != nil {
		t.Fatalf("expected landline to be valid, got %v", err)
	}
}

// TestValidatorFieldNames проверяет, что ошибки называют поля по json-тегам.
func TestValidatorFieldNames(t *testing.T) {
	v := NewValidator()
	phone := "11987654321"

	err := v.Validate(&validatedClient{CPF: "12345678909", Phone: &phone, Type: "transfer"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	got := map[string]string{}
	for _, fe := range verrs {
		got[fe.Field()] = fe.Tag()
	}

	want := map[string]string{"cpf": "cpf", "phone": "phone", "type": "txtype"}
	for field, tag := range want {
		if got[field] != tag {
			t.Fatalf("expected %s to fail on %s, got %v", field, tag, got)
		}
	}
}
