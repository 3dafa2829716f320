// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/models"
	"github.com/tomtom215/teleshow/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// sanitizeLogValue escapes control characters so request data cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes the response envelope. Live data must not be cached
// by clients or proxies.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes a success envelope with the elapsed time since start.
func respondSuccess(w http.ResponseWriter, status int, data any, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError writes an error envelope. A non-nil err is logged.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	respondErrorDetails(w, status, code, message, nil, err)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondValidationError writes a 400 for failed request validation.
func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
}

// respondCacheError maps live cache failures to HTTP statuses:
// invalid keys are 400, a full registry is 503 with Retry-After, a
// refused subscription is 502, an abandoned wait is 504.
func (h *Handler) respondCacheError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.Ctx(r.Context())

	switch {
	case errors.Is(err, livecache.ErrInvalidKey):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, livecache.ErrCapacityExceeded):
		log.Warn().Err(err).Msg("Listener capacity exceeded")
		// Idle listeners are evicted on the next monitor pass.
		retry := int(math.Ceil(h.cache.Config().HealthCheckInterval.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		respondError(w, http.StatusServiceUnavailable, "CAPACITY_EXCEEDED",
			"Listener capacity exceeded, retry later", nil)
	case errors.Is(err, livecache.ErrShutdown):
		respondError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
			"Listeners were shut down while starting", nil)
	case errors.Is(err, livecache.ErrAttachFailure):
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"Document store subscription failed", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Debug().Err(err).Msg("Request ended before data was ready")
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "Request ended before data was ready", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// respondStoreError maps document store write failures to HTTP statuses.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	case errors.Is(err, docstore.ErrInvalidPath):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, docstore.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Document store closed", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Request ended during store write")
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "Request ended before the write finished", nil)
	default:
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Document store write failed", err)
	}
}

// userIDParam returns the validated {userID} path parameter. On failure
// the 400 response is written and ok is false.
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	return pathParam(w, r, "userID")
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	return pathParamTag(w, r, name, "required,docid")
}

func pathParamTag(w http.ResponseWriter, r *http.Request, name, tag string) (string, bool) {
	v := chi.URLParam(r, name)
	if verr := validation.ValidateVar(name, v, tag); verr != nil {
		respondValidationError(w, verr)
		return "", false
	}
	return v, true
}

// numberParam returns a non-negative integer path parameter.
func numberParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, ok := pathParamTag(w, r, name, "required,number,max=9")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a number", nil)
		return 0, false
	}
	return n, true
}

// decodeJSONBody decodes a bounded JSON request body into dst and
// validates it. On failure the 400 response is written and false returned.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidationError(w, verr)
		return false
	}
	return true
}
