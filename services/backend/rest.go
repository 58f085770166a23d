package backendsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/collegepense/pense/core"
)

// apiError is the error body of both the auth and the table endpoints.
type apiError struct {
	Code             interface{} `json:"code"` // string (tables) or number (auth)
	Message          string      `json:"message"`
	Msg              string      `json:"msg"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
	Details          string      `json:"details"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is a non 2xx response.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func newStatusError(res *rest.Response) *statusError {
	var body apiError
	_ = json.Unmarshal([]byte(res.Body), &body)
	return &statusError{StatusCode: res.StatusCode, Message: body.text()}
}

func (c *Client) newRequest(method rest.Method, path string, query map[string]string, body interface{}) (rest.Request, error) {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.opts.URL + path,
		QueryParams: query,
		Headers: map[string]string{
			"apikey":        c.opts.AnonKey,
			"Accept":        "application/json",
			"Authorization": "Bearer " + c.opts.AnonKey,
		},
	}
	if token := c.accessToken(); token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return rest.Request{}, errors.Wrap(err, "encoding request body")
		}
		req.Body = data
		req.Headers["Content-Type"] = "application/json"
	}
	return req, nil
}

// send performs req. A transport failure is returned as is; a non 2xx status as *statusError.
func (c *Client) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	hreq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	hres, err := c.http.MakeRequest(hreq.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	res, err := rest.BuildResponse(hres)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.BaseURL)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return res, newStatusError(res)
	}
	return res, nil
}

// dataError maps a table request failure to a *core.DataError.
func dataError(table string, err error) error {
	if err == nil {
		return nil
	}
	var serr *statusError
	if !errors.As(err, &serr) {
		return core.NewDataError(core.DataNetwork, table, err)
	}

	switch serr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewDataError(core.DataPermissionDenied, table, serr)
	case http.StatusNotFound, http.StatusNotAcceptable:
		return core.NewDataError(core.DataNotFound, table, serr)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return core.NewDataError(core.DataValidation, table, serr)
	default:
		return core.NewDataError(core.DataNetwork, table, serr)
	}
}
