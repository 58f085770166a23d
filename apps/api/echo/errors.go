package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/user"
)

// apiError is rendered as is: `code`, `message`, `details` & `hint` for the table endpoints,
// `error` & `error_description` for the token endpoint.
type apiError struct {
	Status           int    `json:"-"`
	Code             string `json:"code,omitempty"`
	Message          string `json:"message,omitempty"`
	Details          string `json:"details,omitempty"`
	Hint             string `json:"hint,omitempty"`
	Err              string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Err, e.ErrorDescription)
}

func newAPIError(status int, code, msg string) *apiError {
	return &apiError{Status: status, Code: code, Message: msg}
}

var (
	errMissingAPIKey   = newAPIError(http.StatusUnauthorized, "PGRST000", "No API key found in request")
	errInvalidAPIKey   = newAPIError(http.StatusUnauthorized, "PGRST000", "Invalid API key")
	errUnauthorized    = newAPIError(http.StatusUnauthorized, "PGRST301", "JWT is missing or invalid")
	errRLSViolation    = newAPIError(http.StatusForbidden, "42501", "new row violates row-level security policy")
	errUnknownRelation = newAPIError(http.StatusNotFound, "42P01", "relation does not exist")
	errWhereRequired   = newAPIError(http.StatusBadRequest, "21000", "UPDATE and DELETE require a WHERE clause")
	errTooManyRequests = newAPIError(http.StatusTooManyRequests, "over_request_rate_limit", "Request rate limit reached")

	errInvalidGrant = &apiError{
		Status:           http.StatusBadRequest,
		Err:              "invalid_grant",
		ErrorDescription: "Invalid login credentials",
	}
	errInvalidRefreshToken = &apiError{
		Status:           http.StatusBadRequest,
		Err:              "invalid_grant",
		ErrorDescription: "Invalid Refresh Token",
	}
	errUnsupportedGrant = &apiError{
		Status:           http.StatusBadRequest,
		Err:              "unsupported_grant_type",
		ErrorDescription: "grant_type must be password or refresh_token",
	}
)

// pqError maps constraint violations raised by Postgres to client errors.
func pqError(err *pq.Error) *apiError {
	switch {
	case err.Code == "23505" || err.Code == "23503":
		return &apiError{Status: http.StatusConflict, Code: string(err.Code), Message: err.Message, Details: err.Detail}
	case err.Code.Class() == "23" || err.Code.Class() == "22":
		return &apiError{Status: http.StatusBadRequest, Code: string(err.Code), Message: err.Message, Details: err.Detail}
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var resp *apiError

		switch origErr := errors.Cause(err).(type) {
		case *apiError:
			resp = origErr
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing || origErr.Code == http.StatusUnauthorized {
				resp = errUnauthorized
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			resp = newAPIError(origErr.Code, strconv.Itoa(origErr.Code), fmt.Sprint(origErr.Message))
		case *core.ValidationError:
			resp = newAPIError(http.StatusBadRequest, "23514", origErr.Error())
			if len(origErr.Fields) > 0 {
				details := make([]string, 0, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					details = append(details, fErr.Field+": "+fErr.Error)
				}
				resp.Details = strings.Join(details, "; ")
			}
		case *pq.Error:
			resp = pqError(origErr)
		}

		if resp == nil { // any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			resp = newAPIError(http.StatusInternalServerError, "500", msg)

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		body := *resp
		if ctx.Echo().Debug && resp.Status >= http.StatusInternalServerError {
			body.Details = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(resp.Status)
			} else {
				err = ctx.JSON(resp.Status, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
