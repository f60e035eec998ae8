// Package server exposes the engine over HTTP: huma/v2 operation groups
// mounted on a chi router, wrapped in a {code,message,data} envelope
// instead of huma's default problem-details body.
package server

import (
	"errors"
	"net/http"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// envelopeBody is the success envelope: { code: 0, message, data, meta? }.
type envelopeBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Meta    *meta  `json:"meta,omitempty"`
}

type meta struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
	Total    int `json:"total,omitempty"`
}

// errorBody is the failure envelope: { code, message, detail? }.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// apiError adapts errorBody to huma.StatusError so operation handlers can
// just `return nil, toAPIError(err)`.
type apiError struct {
	status int
	body   errorBody
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.body.Message }

func newAPIError(status, code int, message, detail string) *apiError {
	return &apiError{status: status, body: errorBody{Code: code, Message: message, Detail: detail}}
}

func domain40100(message string) *apiError {
	return newAPIError(http.StatusUnauthorized, int(domain.CodeAuthenticationError), message, "")
}

// toAPIError maps the engine's typed AppError hierarchy onto the response
// envelope; anything else is an unclassified internal error.
func toAPIError(err error) *apiError {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return newAPIError(appErr.Status, int(appErr.Code), appErr.Message, appErr.Detail)
	}
	var tplErr *domain.TemplateRenderError
	if errors.As(err, &tplErr) {
		return newAPIError(tplErr.Status, int(tplErr.Code), tplErr.Message, tplErr.Detail)
	}
	return newAPIError(http.StatusInternalServerError, int(domain.CodeInternalError), "internal error", err.Error())
}

func success(data any) envelopeBody {
	return envelopeBody{Code: 0, Message: "success", Data: data}
}

func successPaged(data any, page, pageSize, total int) envelopeBody {
	return envelopeBody{Code: 0, Message: "success", Data: data, Meta: &meta{Page: page, PageSize: pageSize, Total: total}}
}
