package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/config"
	"github.com/fastygo/qcconsole/internal/interceptor"
)

// Client talks to the QC REST backend. Every call except Ping goes through
// the interceptor.
type Client struct {
	ic      *interceptor.Interceptor
	doer    interceptor.Doer
	cfg     config.BackendConfig
	timeout time.Duration
}

func New(ic *interceptor.Interceptor, doer interceptor.Doer, cfg config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{ic: ic, doer: doer, cfg: cfg, timeout: timeout}
}

// NewHTTPClient builds the fasthttp client shared by the interceptor and Ping.
func NewHTTPClient(cfg config.BackendConfig, name string) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                name,
		MaxConnsPerHost:     cfg.MaxConns,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxIdleConnDuration: 90 * time.Second,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         domain.UserProfile `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login posts credentials. A rejected login comes back as an APIError with
// status 401 and no toast, so the login form can render its own message.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	var out loginResponse
	status, err := c.call(ctx, http.MethodPost, c.cfg.LoginPath, loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		var httpErr *interceptor.HTTPError
		if errors.As(err, &httpErr) {
			return nil, loginRejected(httpErr)
		}
		return nil, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" || out.User.ID == "" {
		return nil, &domain.APIError{
			ErrorCode:  "INVALID_LOGIN_RESPONSE",
			Message:    "login response is missing the user or tokens",
			StatusCode: status,
		}
	}
	return &domain.LoginResult{
		User:   out.User,
		Tokens: domain.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken},
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var out refreshResponse
	status, err := c.call(ctx, http.MethodPost, c.cfg.RefreshPath, refreshRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &domain.APIError{
			ErrorCode:  "INVALID_REFRESH_RESPONSE",
			Message:    "refresh response carried no access token",
			StatusCode: status,
		}
	}
	return out.AccessToken, nil
}

// Logout notifies the backend; the body of the answer is ignored.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, c.cfg.LogoutPath, nil, nil)
	return err
}

// Response is a forwarded backend answer.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forward relays a console data call to the backend under the same path.
func (c *Client) Forward(ctx context.Context, method, path string, query, body []byte) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	uri := c.cfg.BaseURL + path
	if len(query) > 0 {
		uri += "?" + string(query)
	}
	req.SetRequestURI(uri)
	if len(body) > 0 {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.ic.Do(ctx, req, resp); err != nil {
		return nil, err
	}
	return &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: string(resp.Header.ContentType()),
		Body:        append([]byte(nil), resp.Body()...),
	}, nil
}

// Ping checks the backend health endpoint without the interceptor.
func (c *Client) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(http.MethodGet)
	req.SetRequestURI(c.cfg.BaseURL + c.cfg.HealthPath)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.doer.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if resp.StatusCode() >= fasthttp.StatusInternalServerError {
		return fmt.Errorf("backend health returned %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.cfg.BaseURL + path)
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	if err := c.ic.Do(ctx, req, resp); err != nil {
		return 0, err
	}
	status := resp.StatusCode()
	if out == nil || len(bytes.TrimSpace(resp.Body())) == 0 {
		return status, nil
	}
	if err := decode(resp.Body(), out); err != nil {
		return status, &domain.APIError{
			ErrorCode:  "INVALID_RESPONSE",
			Message:    fmt.Sprintf("decode %s response: %v", path, err),
			StatusCode: status,
		}
	}
	return status, nil
}

// decode accepts both a bare payload and one wrapped as {"success":true,"data":{...}}.
func decode(body []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		return json.Unmarshal(envelope.Data, out)
	}
	return json.Unmarshal(body, out)
}

func loginRejected(httpErr *interceptor.HTTPError) *domain.APIError {
	apiErr := &domain.APIError{
		ErrorCode:  "INVALID_CREDENTIALS",
		Message:    "Invalid email or password.",
		StatusCode: httpErr.StatusCode,
	}
	var body struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(httpErr.Body, &body); err == nil {
		if body.ErrorCode != "" {
			apiErr.ErrorCode = body.ErrorCode
		}
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}
