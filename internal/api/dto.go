package api

import (
	"smartcollections/internal/catalog"
	"smartcollections/internal/expr"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Running bool   `json:"running"`
}

type RunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Expressions

type ValidateExpressionRequest struct {
	Expression string `json:"expression"`
}

type ValidateExpressionResponse struct {
	Valid     bool               `json:"valid"`
	Canonical string             `json:"canonical,omitempty"`
	Criteria  []string           `json:"criteria,omitempty"`
	Errors    []*expr.ParseError `json:"errors,omitempty"`
}

type CollectionsResponse struct {
	Collections []catalog.Collection `json:"collections"`
}
