package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"solstice/internal/model"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func readBody(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	lr := io.LimitReader(r.Body, limit+1)

	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}

func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r, maxBodyBytes)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: multiple JSON values")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.APIError{Message: msg})
}
