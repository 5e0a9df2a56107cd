package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/auth"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/presence"
)

var (
	errMissingToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errEmployeeNotInCtx   = errors.New("employee not found in echo.Context")
	errClaimsNotInCtx     = errors.New("claims not found in echo.Context")
	errInvalidCredentials = "invalid credentials"
)

// statusOf maps the domain errors to their HTTP status. ok is false for unexpected errors.
func statusOf(err error) (code int, message string, ok bool) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, errInvalidCredentials, true
	case errors.Is(err, auth.ErrExpiredOrInvalidToken):
		return http.StatusUnauthorized, auth.ErrExpiredOrInvalidToken.Error(), true
	case errors.Is(err, auth.ErrAccountDeactivated):
		return http.StatusForbidden, auth.ErrAccountDeactivated.Error(), true
	case errors.Is(err, auth.ErrRefreshExpired):
		return http.StatusForbidden, auth.ErrRefreshExpired.Error(), true
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, core.ErrForbidden.Error(), true
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, presence.ErrInvalidStatus):
		return http.StatusBadRequest, presence.ErrInvalidStatus.Error(), true
	case errors.Is(err, presence.ErrNotConnected):
		return http.StatusConflict, presence.ErrNotConnected.Error(), true
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway, core.ErrUpstream.Error(), true
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr *echo.HTTPError
			valErrs validator.ValidationErrors
			valErr  *core.ValidationError
		)

		switch {
		case errors.As(err, &httpErr):
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &valErrs):
			code = http.StatusBadRequest
			message = core.TranslateValidationErrors(valErrs, translator)
		case errors.As(err, &valErr):
			if valErr.Fields != nil {
				fldErrs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		default:
			var ok bool
			var msg string
			if code, msg, ok = statusOf(err); ok {
				message = msg
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg = http.StatusText(http.StatusInternalServerError)
			message = msg

			var emp employee.Employee
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				emp.ID = claims.Subject
				emp.Name = claims.Name
				emp.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), emp)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
