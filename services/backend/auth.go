package backendsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/session"
)

var errInvalidTokenResponse = errors.New("invalid token response")

type (
	passwordGrant struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	refreshGrant struct {
		RefreshToken string `json:"refresh_token"`
	}

	// tokenResponse is returned by the token endpoint for both grants.
	tokenResponse struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		ExpiresAt    int64  `json:"expires_at"`
		RefreshToken string `json:"refresh_token"`
		User         *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}

	recoverRequest struct {
		Email string `json:"email"`
	}
)

// toSession fills the gaps of a token response from the access token claims.
// The token is issued by the backend for us to send back; it is not verified here.
func (tr tokenResponse) toSession() (*session.Session, error) {
	if tr.AccessToken == "" {
		return nil, errInvalidTokenResponse
	}
	sess := &session.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if sess.TokenType == "" {
		sess.TokenType = "bearer"
	}
	if tr.User != nil {
		sess.User = session.User{ID: tr.User.ID, Email: tr.User.Email}
	}

	switch {
	case tr.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		sess.ExpiresAt = nowFunc().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}

	if sess.User.ID == "" || sess.ExpiresAt.IsZero() {
		claims := new(jwt.StandardClaims)
		if _, _, err := new(jwt.Parser).ParseUnverified(tr.AccessToken, claims); err != nil {
			return nil, errors.Wrap(errInvalidTokenResponse, err.Error())
		}
		if sess.User.ID == "" {
			sess.User.ID = claims.Subject
		}
		if sess.ExpiresAt.IsZero() && claims.ExpiresAt > 0 {
			sess.ExpiresAt = time.Unix(claims.ExpiresAt, 0).UTC()
		}
	}
	if sess.User.ID == "" {
		return nil, errors.Wrap(errInvalidTokenResponse, "missing user")
	}
	return sess, nil
}

// authError maps an auth request failure to a *core.AuthError. Which credential was wrong is never told.
func authError(err error) error {
	if err == nil {
		return nil
	}
	var serr *statusError
	if errors.As(err, &serr) && serr.StatusCode >= http.StatusBadRequest && serr.StatusCode < http.StatusInternalServerError {
		return core.NewAuthError(core.AuthInvalidCredentials, serr)
	}
	if errors.Cause(err) == errInvalidTokenResponse {
		return core.NewAuthError(core.AuthInvalidCredentials, err)
	}
	return core.NewAuthError(core.AuthNetwork, err)
}

func (c *Client) token(ctx context.Context, grantType string, body interface{}) (*session.Session, error) {
	req, err := c.newRequest(rest.Post, authPath+"/token", map[string]string{"grant_type": grantType}, body)
	if err != nil {
		return nil, err
	}
	// token grants never carry a previous session
	req.Headers["Authorization"] = "Bearer " + c.opts.AnonKey

	res, err := c.send(ctx, req)
	if err != nil {
		return nil, authError(err)
	}
	var tr tokenResponse
	if err = json.Unmarshal([]byte(res.Body), &tr); err != nil {
		return nil, core.NewAuthError(core.AuthNetwork, errors.Wrap(err, "decoding token response"))
	}
	sess, err := tr.toSession()
	return sess, authError(err)
}

// SignIn exchanges email & password for a session, then emits SignedIn.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := c.token(ctx, "password", passwordGrant{Email: core.CleanString(email), Password: password})
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, sess, session.SignedIn)
	return copySession(sess), nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if refreshToken == "" {
		return nil, core.NewAuthError(core.AuthInvalidCredentials, errors.New("no refresh token"))
	}
	return c.token(ctx, "refresh_token", refreshGrant{RefreshToken: refreshToken})
}

// SignOut revokes the session server side and clears it locally, emitting SignedOut.
// A session the server no longer knows (401, 403, 404) is cleared too; on a network failure it is kept.
func (c *Client) SignOut(ctx context.Context) error {
	if c.accessToken() != "" {
		req, err := c.newRequest(rest.Post, authPath+"/logout", nil, nil)
		if err != nil {
			return err
		}
		if _, err = c.send(ctx, req); err != nil {
			var serr *statusError
			if !errors.As(err, &serr) || serr.StatusCode >= http.StatusInternalServerError {
				return core.NewAuthError(core.AuthNetwork, err)
			}
			c.opts.Logger.Info("server side sign out", err)
		}
	}
	c.setSession(ctx, nil, session.SignedOut)
	return nil
}

// RecoverPassword asks the backend to mail a password reset to email.
// The backend answers the same whether or not the account exists.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	req, err := c.newRequest(rest.Post, authPath+"/recover", nil, recoverRequest{Email: core.CleanString(email)})
	if err != nil {
		return err
	}
	_, err = c.send(ctx, req)
	return authError(err)
}
