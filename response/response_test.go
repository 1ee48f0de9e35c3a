package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteErrorWithType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	WriteError(w, r, ErrBadRequest().WithMessage("Missing Stripe-Signature header").WithType("SignatureInvalid"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Missing Stripe-Signature header","type":"SignatureInvalid"}`, w.Body.String())
}

func TestWriteErrorOmitsEmptyType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	WriteError(w, r, ErrNoBearer())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"No valid Bearer token found in header"}`, w.Body.String())
}

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteResponse(w, r, http.StatusOK, map[string]bool{"received": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "HTTP 418: teapot", New(418, "teapot").Error())
	assert.Equal(t, 413, ErrRequestTooLarge().StatusCode)
}
