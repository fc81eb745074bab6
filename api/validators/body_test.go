package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
)

type sampleBody struct {
	VIN     string `json:"vin" validate:"required,len=17"`
	Mileage int    `json:"mileage" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"vin":"short","mileage":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["vin"] != "must be exactly 17 characters" {
		t.Fatalf("unexpected vin message %q", details["vin"])
	}
	if details["mileage"] != "must be greater than 0" {
		t.Fatalf("unexpected mileage message %q", details["mileage"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"vin":"1HGCM82633A004352","mileage":10,"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello world  ", 5); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
}
