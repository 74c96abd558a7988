// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/errutil"
)

// RunRequest is the body of POST /v1/commands/{name}.
type RunRequest struct {
	Caller string         `json:"caller,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
}

// RunResponse reports a command that ran, successfully or not.
type RunResponse struct {
	Command      string         `json:"command"`
	InvocationID string         `json:"invocation_id"`
	Success      bool           `json:"success"`
	Reason       string         `json:"reason,omitempty"`
	Context      map[string]any `json:"context"`
	Violations   []string       `json:"violations,omitempty"`
}

// ErrorResponse reports a request that did not produce a result.
type ErrorResponse struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Property     string `json:"property,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error, invocationID string) {
	code := errutil.Code(err)
	resp := ErrorResponse{
		Code:         code,
		Message:      command.UserMessage(err),
		InvocationID: invocationID,
	}
	var v *contract.Violation
	if errors.As(err, &v) {
		resp.Property = v.Property()
	}

	status := statusFor(code)
	if status == http.StatusInternalServerError {
		errutil.LogError(s.logger, "api request failed", err)
	}
	s.writeJSON(w, status, resp)
}

func statusFor(code string) int {
	switch code {
	case contract.CodeContractViolation:
		return http.StatusUnprocessableEntity
	case command.CodeUnknownCommand:
		return http.StatusNotFound
	case command.CodeRateLimited:
		return http.StatusTooManyRequests
	case command.CodeUndeclaredProperty, command.CodeEmptyInput, command.CodeInvalidArgs:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// normalize turns decoded JSON numbers into int when integral and float64
// otherwise, matching what the line parser produces.
func normalize(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, item := range v {
		out[k] = normalizeValue(item)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if !strings.ContainsAny(val.String(), ".eE") {
			if n, err := val.Int64(); err == nil {
				return int(n)
			}
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case map[string]any:
		return normalize(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
