package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration = "OAUTH_CONFIGURATION"
	ErrorProtocol      = "OAUTH_PROTOCOL"
	ErrorRemoteRequest = "OAUTH_REMOTE_REQUEST"
	ErrorPersistence   = "OAUTH_PERSISTENCE"
	ErrorBadInput      = "OAUTH_BAD_INPUT"
	ErrorInternal      = "OAUTH_INTERNAL"
)

var (
	ErrSiteNotFound    = errors.New("core: site not found")
	ErrSiteNameTaken   = errors.New("core: site name already registered")
	ErrSessionNotFound = errors.New("core: oauth session not found")
)

// RemoteRequestError reports a non-200 response from an authenticated request.
type RemoteRequestError struct {
	Status  int
	Message string
}

func (e *RemoteRequestError) Error() string {
	if e == nil {
		return ""
	}
	text := http.StatusText(e.Status)
	if text == "" {
		text = "unexpected status"
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("core: remote request failed (%d %s)", e.Status, text)
	}
	return fmt.Sprintf("core: remote request failed (%d %s): %s", e.Status, text, e.Message)
}

func NewConfigurationError(message string, metadata map[string]any) *goerrors.Error {
	return newOAuthError(message, goerrors.CategoryNotFound, ErrorConfiguration, http.StatusNotFound, metadata)
}

func NewProtocolError(message string, metadata map[string]any) *goerrors.Error {
	return newOAuthError(message, goerrors.CategoryExternal, ErrorProtocol, http.StatusBadGateway, metadata)
}

func WrapProtocolError(source error, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return NewProtocolError(message, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorProtocol)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapPersistenceError tags a store failure. The source error stays reachable
// through errors.Unwrap/errors.Is unchanged.
func WrapPersistenceError(source error, message string) error {
	if source == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich.TextCode == ErrorPersistence {
		return source
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorPersistence)
}

func NewBadInputError(message string) *goerrors.Error {
	return newOAuthError(message, goerrors.CategoryBadInput, ErrorBadInput, http.StatusBadRequest, nil)
}

func newOAuthError(
	message string,
	category goerrors.Category,
	textCode string,
	code int,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func IsConfigurationError(err error) bool {
	return hasTextCode(err, ErrorConfiguration)
}

func IsProtocolError(err error) bool {
	return hasTextCode(err, ErrorProtocol)
}

func IsPersistenceError(err error) bool {
	return hasTextCode(err, ErrorPersistence)
}

func AsRemoteRequestError(err error) (*RemoteRequestError, bool) {
	var remote *RemoteRequestError
	if errors.As(err, &remote) && remote != nil {
		return remote, true
	}
	return nil, false
}

func hasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return rich.TextCode == textCode
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	if remote, ok := AsRemoteRequestError(err); ok {
		mapped := goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
			WithCode(remote.Status).
			WithTextCode(ErrorRemoteRequest)
		mapped.WithMetadata(map[string]any{"status": remote.Status})
		return mapped
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case errors.Is(err, ErrSiteNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorConfiguration)
	case errors.Is(err, ErrSiteNameTaken):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorBadInput)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorConfiguration
	case goerrors.CategoryAuth, goerrors.CategoryExternal:
		return ErrorProtocol
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
