package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ErrSessionExpired is matched by every error returned after the client
// cleared the session because the access token could not be renewed.
var ErrSessionExpired = errors.New("session expired")

// SessionExpiredError wraps the error that ended the session: the original
// 401 when there was no refresh token, or the refresh failure otherwise.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause == nil {
		return ErrSessionExpired.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSessionExpired, e.Cause)
}

// Unwrap exposes both ErrSessionExpired and the cause to errors.Is/As
func (e *SessionExpiredError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSessionExpired}
	}
	return []error{ErrSessionExpired, e.Cause}
}

// APIError is a non-2xx answer of the API
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func newAPIError(method string, u *url.URL, resp *Response) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		URL:        u.String(),
		Body:       resp.Body,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Detail())
}

// IsNotFound reports a 404
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsUnauthorized reports a 401
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// Detail renders the response body as a human readable message.
//
// A {"detail": ...} or {"error": ...} payload yields that string; other
// field-error objects are flattened into "field: msg1, msg2" lines sorted by
// field; HTML error pages become "internal server error".
func (e *APIError) Detail() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return strings.ToLower(http.StatusText(e.StatusCode))
	}
	if strings.Contains(strings.ToLower(body[:min(len(body), 512)]), "<html") ||
		strings.HasPrefix(strings.ToLower(body), "<!doctype") {
		return "internal server error"
	}

	var payload any
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return body
	}

	switch v := payload.(type) {
	case map[string]any:
		for _, key := range []string{"detail", "error"} {
			if s, ok := v[key].(string); ok && len(v) == 1 {
				return s
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+flatten(v[k]))
		}
		return strings.Join(lines, "\n")
	default:
		return flatten(v)
	}
}

// FieldErrors returns the messages attached to each field of a DRF
// validation error, nil when the body is not such an object.
func (e *APIError) FieldErrors() map[string][]string {
	var raw map[string]any
	if err := json.Unmarshal(e.Body, &raw); err != nil {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		switch vv := v.(type) {
		case []any:
			for _, item := range vv {
				out[k] = append(out[k], flatten(item))
			}
		default:
			out[k] = []string{flatten(vv)}
		}
	}
	return out
}

func flatten(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []any:
		parts := make([]string, 0, len(vv))
		for _, item := range vv {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+flatten(vv[k]))
		}
		return strings.Join(parts, "; ")
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
}

// Message returns the text to show a user for err
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return err.Error()
}
