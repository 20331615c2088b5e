// Package httputil centralizes JSON response envelopes and request decoding so
// every handler answers with the same shape.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

// maxJSONBody bounds JSON request bodies. Multipart uploads have their own ceilings.
const maxJSONBody = 1 << 20

const genericInternalMessage = "Une erreur interne est survenue"

// Envelope is the response shape of every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes {success: true, data}.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError translates a domain error into {success: false, message}.
// Internal errors never leak their message or cause.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	env := Envelope{Success: false, Message: genericInternalMessage}
	if dErrors.IsClientSafe(code) {
		if msg := dErrors.MessageOf(err); msg != "" {
			env.Message = msg
		}
		env.Field = dErrors.FieldOf(err)
	}
	WriteJSON(w, status, env)
}

// Fail logs err (warn for client errors, error otherwise) and writes the
// failure envelope.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, msg string) {
	ctx := r.Context()
	attrs := []any{"request_id", requestcontext.RequestID(ctx), "error", err.Error()}
	if dErrors.IsClientSafe(dErrors.CodeOf(err)) {
		logger.WarnContext(ctx, msg, attrs...)
	} else {
		logger.ErrorContext(ctx, msg, attrs...)
	}
	WriteError(w, err)
}

// DecodeJSON decodes the request body into dst and trims whitespace from its
// string fields. dst must be a pointer to a struct.
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "Corps de requête vide")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Corps de requête invalide")
	}
	Sanitize(dst)
	return nil
}

// Sanitize trims whitespace from all string and []string fields in a struct,
// descending into nested structs and slices of structs.
func Sanitize(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return
	}
	sanitizeStruct(val.Elem())
}

func sanitizeStruct(val reflect.Value) {
	if val.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case reflect.Struct:
			sanitizeStruct(field)
		case reflect.Slice:
			switch field.Type().Elem().Kind() {
			case reflect.String:
				for j := 0; j < field.Len(); j++ {
					elem := field.Index(j)
					elem.SetString(strings.TrimSpace(elem.String()))
				}
			case reflect.Struct:
				for j := 0; j < field.Len(); j++ {
					sanitizeStruct(field.Index(j))
				}
			}
		case reflect.Ptr:
			if field.IsNil() {
				continue
			}
			switch field.Elem().Kind() {
			case reflect.String:
				field.Elem().SetString(strings.TrimSpace(field.Elem().String()))
			case reflect.Struct:
				sanitizeStruct(field.Elem())
			}
		}
	}
}
