package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/DukeRupert/pulse/internal/domain"
)

// maxMessageLength bounds backend error bodies shown to users.
const maxMessageLength = 500

// ErrNoSession is returned when a successful login carried no Set-Cookie.
var ErrNoSession = errors.New("backend: login response carried no session cookie")

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Message is the plain-text body of the response, or the status text when
// the body is empty.
func (e *StatusError) Message() string {
	msg := strings.TrimSpace(string(e.Body))
	if msg == "" {
		return http.StatusText(e.StatusCode)
	}
	return truncate(msg, maxMessageLength)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// AsStatusError extracts the backend response carried by err.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StatusCode returns the HTTP status a handler should answer with for err:
// the backend's own status for non-2xx responses, 502 when the backend
// could not be reached, 500 otherwise and 0 for nil.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	if se, ok := AsStatusError(err); ok {
		return se.StatusCode
	}
	if domain.ErrorCode(err) == domain.EUNAVAILABLE {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// statusErr converts a non-2xx response into a domain error.
func statusErr(op string, se *StatusError) error {
	return domain.Wrap(se, codeForStatus(se.StatusCode), op, se.Message())
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	}
	if status >= 500 {
		return domain.EUNAVAILABLE
	}
	return domain.EINVALID
}
