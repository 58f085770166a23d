package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/user"
)

type userApi struct {
	svc     *user.Service
	issuer  tokenIssuer
	metrics *Metrics
}

func registerUserAPI(ag *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service, issuer tokenIssuer, limiter *rateLimiter, metrics *Metrics) {
	api := userApi{svc: svc, issuer: issuer, metrics: metrics}

	// un-authed endpoints
	ag.POST("/token", api.token, limiter.middleware())
	ag.POST("/recover", api.recover, limiter.middleware())
	ag.POST("/recover/confirm", api.confirmRecover, limiter.middleware())

	// authed endpoints
	ag.POST("/logout", api.logout, jwt)
	ag.GET("/user", api.retrieve, jwt)
}

type (
	tokenRequest struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}

	userResponse struct {
		ID        string `json:"id"`
		Aud       string `json:"aud"`
		Role      string `json:"role"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
		LastLogin string `json:"last_sign_in_at,omitempty"`
	}

	tokenResponse struct {
		AccessToken  string       `json:"access_token"`
		TokenType    string       `json:"token_type"`
		ExpiresIn    int64        `json:"expires_in"`
		ExpiresAt    int64        `json:"expires_at"`
		RefreshToken string       `json:"refresh_token"`
		User         userResponse `json:"user"`
	}

	recoverRequest struct {
		Email string `json:"email"`
	}
)

func newUserResponse(usr user.User) userResponse {
	resp := userResponse{
		ID:        usr.ID,
		Aud:       authenticatedRole,
		Role:      authenticatedRole,
		Email:     usr.Email,
		Name:      usr.Name,
		CreatedAt: usr.CreatedAt.UTC().Format(timeLayout),
	}
	if !usr.LastLogin.IsZero() {
		resp.LastLogin = usr.LastLogin.UTC().Format(timeLayout)
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.999999Z07:00"

func (api *userApi) issue(ctx echo.Context, usr user.User, refreshToken string) error {
	claims := api.issuer.claims(usr)
	access, err := api.issuer.sign(claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tokenResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    claims.ExpiresAt - claims.IssuedAt,
		ExpiresAt:    claims.ExpiresAt,
		RefreshToken: refreshToken,
		User:         newUserResponse(usr),
	})
}

func (api *userApi) token(ctx echo.Context) error {
	var data tokenRequest
	if err := ctx.Bind(&data); err != nil {
		return newAPIError(http.StatusBadRequest, "validation_failed", "Invalid JSON body")
	}

	switch ctx.QueryParam("grant_type") {
	case "password":
		return api.passwordGrant(ctx, data)
	case "refresh_token":
		return api.refreshGrant(ctx, data)
	default:
		return errUnsupportedGrant
	}
}

func (api *userApi) passwordGrant(ctx echo.Context, data tokenRequest) error {
	if core.CleanString(data.Email) == "" || data.Password == "" {
		api.metrics.recordSignInFailure()
		return errInvalidGrant
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.svc.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials, user.ErrAccountDeactivated:
			api.metrics.recordSignInFailure()
			return errInvalidGrant // never tell which credential was wrong
		}
		return errors.Wrap(err, "authenticating")
	}

	refresh, err := api.svc.IssueRefreshToken(reqCtx, usr)
	if err != nil {
		return errors.Wrap(err, "issuing refresh token")
	}
	return api.issue(ctx, usr, refresh)
}

func (api *userApi) refreshGrant(ctx echo.Context, data tokenRequest) error {
	if data.RefreshToken == "" {
		return errInvalidRefreshToken
	}
	usr, refresh, err := api.svc.RotateRefreshToken(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidRefreshToken, user.ErrAccountDeactivated:
			return errInvalidRefreshToken
		}
		return errors.Wrap(err, "rotating refresh token")
	}
	return api.issue(ctx, usr, refresh)
}

func (api *userApi) logout(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if err = api.svc.SignOut(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newUserResponse(usr))
}

func (api *userApi) recover(ctx echo.Context) error {
	var data recoverRequest
	if err := ctx.Bind(&data); err != nil {
		return newAPIError(http.StatusBadRequest, "validation_failed", "Invalid JSON body")
	}
	if core.CleanString(data.Email) == "" {
		return newAPIError(http.StatusBadRequest, "validation_failed", "email is required")
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, echo.Map{})
}

func (api *userApi) confirmRecover(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return newAPIError(http.StatusBadRequest, "validation_failed", "Invalid JSON body")
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Password has been reset with the new password."})
}
