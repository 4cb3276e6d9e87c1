package script

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	internalerrors "github.com/restbench/core/internal/errors"
)

// segmentPattern splits a single dotted path component into its field
// name (optional) and any trailing [n] array indices, e.g. "items[0]"
// -> name "items", indices [0]; "[2]" -> name "", indices [2].
var segmentPattern = regexp.MustCompile(`^([a-zA-Z0-9_]*)((?:\[\d+\])*)$`)
var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// Extract resolves a post-response source expression ("status",
// "header.<Name>", or "body.<path>") against resp. body paths support
// dotted field access with [n] array indexing at any segment, e.g.
// "body.data.items[0].id" — the one gap the teacher's extractJSONPath
// left unimplemented.
func Extract(resp Response, source string) (string, error) {
	switch {
	case source == "status":
		return strconv.Itoa(resp.Status), nil
	case strings.HasPrefix(source, "header."):
		name := strings.TrimPrefix(source, "header.")
		for k, v := range resp.Headers {
			if strings.EqualFold(k, name) {
				return v, nil
			}
		}
		return "", nil
	case strings.HasPrefix(source, "body."):
		return extractJSONPath(resp.Body, strings.TrimPrefix(source, "body."))
	default:
		return "", internalerrors.ValidationError{Field: "source", Message: "must be 'status', 'header.<Name>', or 'body.<path>'"}
	}
}

// extractJSONPath navigates a JSON document by a dotted path where any
// segment may carry one or more [n] array indices.
func extractJSONPath(body []byte, path string) (string, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", internalerrors.SerializationError{Path: path, Message: "response body is not valid JSON", Err: err}
	}

	current := data
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}

		m := segmentPattern.FindStringSubmatch(segment)
		if m == nil {
			return "", internalerrors.ValidationError{Field: "path", Message: fmt.Sprintf("invalid path segment %q", segment)}
		}
		name, indices := m[1], m[2]

		if name != "" {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return "", internalerrors.NotFoundError{Entity: "json field", ID: segment}
			}
			val, exists := obj[name]
			if !exists {
				return "", internalerrors.NotFoundError{Entity: "json field", ID: name}
			}
			current = val
		}

		for _, idxMatch := range indexPattern.FindAllStringSubmatch(indices, -1) {
			idx, _ := strconv.Atoi(idxMatch[1])
			arr, ok := current.([]interface{})
			if !ok {
				return "", internalerrors.ValidationError{Field: "path", Message: fmt.Sprintf("segment %q is not an array", segment)}
			}
			if idx < 0 || idx >= len(arr) {
				return "", internalerrors.NotFoundError{Entity: "json array index", ID: fmt.Sprintf("%s[%d]", segment, idx)}
			}
			current = arr[idx]
		}
	}

	return stringifyJSON(current)
}

func stringifyJSON(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return "", internalerrors.SerializationError{Path: "", Message: "failed to encode extracted value", Err: err}
		}
		return string(raw), nil
	}
}
