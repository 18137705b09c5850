package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tim-schneider/nexsync/resource"
)

func encodeRequestBody(body resource.Value) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	canonical, err := resource.Canonicalize(body)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(canonical)
	if err != nil {
		return nil, validationError("failed to encode JSON request body", err)
	}
	return encoded, nil
}

func decodeJSONResponse(body []byte) (resource.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, validationError("response body is not valid JSON", err)
	}

	return resource.Canonicalize(value)
}

func decodeDocResponse(body []byte) (resource.Doc, error) {
	value, err := decodeJSONResponse(body)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	doc, isDoc := value.(map[string]any)
	if !isDoc {
		return nil, validationError("response body is not a JSON object", nil)
	}
	return doc, nil
}

func classifyStatusError(statusCode int, body []byte) error {
	message := fmt.Sprintf("remote request failed with status %d: %s", statusCode, summarizeBody(body))

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return authError(message, nil)
	case http.StatusNotFound:
		return notFoundError(message, nil)
	case http.StatusConflict:
		return conflictError(message, nil)
	}

	if statusCode >= 400 && statusCode < 500 {
		return validationError(message, nil)
	}
	return transportError(message, nil)
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "<empty>"
	}
	if len(trimmed) > 512 {
		return trimmed[:512] + "..."
	}
	return trimmed
}
