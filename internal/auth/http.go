package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/obentoo/geodash/internal/common/httpclient"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/common/version"
)

// maxResponseSize caps how much of a login response is read
const maxResponseSize = 1 << 20

// loginRequest is the body sent to POST /login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse covers both the success and the error shape of POST /login
type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	User    *struct {
		ID    flexibleID `json:"id"`
		Name  string     `json:"name"`
		Email string     `json:"email"`
	} `json:"user"`
}

// flexibleID accepts both numeric and string ids
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = flexibleID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// HTTPAuthenticator posts credentials to the auth API.
type HTTPAuthenticator struct {
	baseURL string
	client  *httpclient.Client
}

// NewHTTPAuthenticator creates an authenticator for the API rooted at baseURL
// (for example http://localhost:8000/api). A throttled login is reported
// at once rather than retried.
func NewHTTPAuthenticator(baseURL string, timeout time.Duration) *HTTPAuthenticator {
	cfg := httpclient.DefaultRetryConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.RetryThrottled = false
	client := httpclient.NewWithConfig(cfg)
	client.SetDefaultHeaders(map[string]string{
		"User-Agent": version.UserAgent(),
		"Accept":     "application/json",
	})
	return &HTTPAuthenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (a *HTTPAuthenticator) Authenticate(ctx context.Context, email, password string) Result {
	res, err := a.login(ctx, email, password)
	if err != nil {
		logger.Debug("login request failed: %v", err)
		return Result{Message: MsgUnreachable, Unreachable: true}
	}
	return res
}

// login performs the request; a non-nil error means the API was not reached
// or answered with something that is not JSON.
func (a *HTTPAuthenticator) login(ctx context.Context, email, password string) (Result, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Failure(MsgAuthFailed), nil
		}
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if lr.Message != "" {
			return Failure(lr.Message), nil
		}
		return Failure(MsgAuthFailed), nil
	}

	if lr.User == nil {
		return Failure(MsgAuthFailed), nil
	}

	return Result{
		Success: true,
		User: &User{
			ID:    string(lr.User.ID),
			Email: lr.User.Email,
			Name:  lr.User.Name,
			Token: lr.Token,
		},
	}, nil
}
