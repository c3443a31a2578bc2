package http

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type listRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func bindContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	c := bindContext("/api/v1/predictions?symbol=BTCUSDT")

	var req listRequest
	if verrs := ReadAndValidateRequest(c, &req); verrs != nil {
		t.Fatalf("unexpected validation errors: %+v", verrs)
	}
	if req.TF != "1m" {
		t.Fatalf("tf default not applied, got %q", req.TF)
	}
	if req.Limit != 100 {
		t.Fatalf("limit default not applied, got %d", req.Limit)
	}
}

func TestReadAndValidateRejectsMissingRequired(t *testing.T) {
	c := bindContext("/api/v1/predictions")

	var req listRequest
	verrs := ReadAndValidateRequest(c, &req)
	if len(verrs) != 1 {
		t.Fatalf("expected 1 validation error, got %+v", verrs)
	}
	if verrs[0].Code != "invalid_required" || verrs[0].Field != "Symbol" {
		t.Fatalf("unexpected error: %+v", verrs[0])
	}
	if verrs[0].Message != "Symbol is required" {
		t.Fatalf("unexpected message: %q", verrs[0].Message)
	}
}

func TestReadAndValidateRejectsOutOfRange(t *testing.T) {
	c := bindContext("/api/v1/predictions?symbol=BTCUSDT&tf=2m&limit=5000")

	var req listRequest
	verrs := ReadAndValidateRequest(c, &req)
	if len(verrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %+v", verrs)
	}
	codes := map[string]bool{}
	for _, v := range verrs {
		codes[v.Code] = true
	}
	if !codes["invalid_oneof"] || !codes["invalid_lte"] {
		t.Fatalf("unexpected error codes: %+v", verrs)
	}
}

func TestReadAndValidateMalformedBind(t *testing.T) {
	c := bindContext("/api/v1/predictions?symbol=BTCUSDT&limit=abc")

	var req listRequest
	verrs := ReadAndValidateRequest(c, &req)
	if len(verrs) != 1 {
		t.Fatalf("expected 1 error, got %+v", verrs)
	}
	if verrs[0].Code != "malformed_request" {
		t.Fatalf("expected malformed_request, got %+v", verrs[0])
	}
}
