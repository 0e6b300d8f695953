// Package analyzer talks to the vulnerability-analysis engine's REST
// surface. The Client is a set of stateless request builders; the
// KeyedClient layers the single piece of resilience logic on top: rotate
// the API key once and retry once when a call comes back 401.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
)

// ErrUnauthorized signals a 401 from a call that used an API key. The
// KeyedClient reacts to it; everything else surfaces it as
// AnalyzerAuthError.
var ErrUnauthorized = errors.New("analyzer rejected the API key")

const apiKeyHeader = "X-Api-Key"

// Client issues single requests against the analyzer. It holds no
// credential state; keys and tokens are passed per call.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing or custom TLS).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates an analyzer client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		endpoints:  NewEndpoints(baseURL),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges the admin credentials for a session token. The analyzer
// returns the JWT as text/plain.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	body, err := c.postForm(ctx, "login", c.endpoints.Login(), form, "text/plain")
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", pipelineerrors.AnalyzerProtocolError{
			Operation: "login",
			Payload:   string(body),
			Err:       fmt.Errorf("empty session token"),
		}
	}
	return token, nil
}

// ForceChangePassword replaces the admin password using the force-change
// endpoint. Used once per analyzer lifetime to invalidate the well-known
// default.
func (c *Client) ForceChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	form := url.Values{
		"username":        {username},
		"password":        {oldPassword},
		"newPassword":     {newPassword},
		"confirmPassword": {newPassword},
	}

	_, err := c.postForm(ctx, "force change password", c.endpoints.ForceChangePassword(), form, "text/plain")
	return err
}

// Teams lists the analyzer's teams using an admin session token.
func (c *Client) Teams(ctx context.Context, jwt string) ([]Team, error) {
	const op = "list teams"

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Teams(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}

	var teams []Team
	if err := json.Unmarshal(body, &teams); err != nil {
		return nil, pipelineerrors.AnalyzerProtocolError{Operation: op, Payload: string(body), Err: err}
	}
	return teams, nil
}

// GrantTeamPermission grants one permission to a team using an admin
// session token.
func (c *Client) GrantTeamPermission(ctx context.Context, jwt, permission, teamUUID string) error {
	op := "grant permission " + permission

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoints.AddPermission(permission, teamUUID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Accept", "application/json")

	_, err = c.do(req, op)
	return err
}

// RotateKey asks the analyzer to rotate the given API key, returning its
// replacement. Requires an admin session token.
func (c *Client) RotateKey(ctx context.Context, jwt, oldKey string) (string, error) {
	const op = "rotate api key"

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoints.RotateKey(oldKey), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return "", err
	}

	var rotated rotatedKey
	if err := json.Unmarshal(body, &rotated); err != nil || rotated.Key == "" {
		if err == nil {
			err = fmt.Errorf("missing key field")
		}
		return "", pipelineerrors.AnalyzerProtocolError{Operation: op, Payload: string(body), Err: err}
	}
	return rotated.Key, nil
}

// CreateProject creates a disposable analysis project and returns its
// opaque identifier.
func (c *Client) CreateProject(ctx context.Context, apiKey string) (string, error) {
	const op = "create project"

	payload, err := json.Marshal(project{
		Author:      "sbomflow",
		Version:     "1.0.0",
		Classifier:  "APPLICATION",
		Name:        uuid.NewString(),
		Description: "auto generated project",
	})
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.endpoints.CreateProject(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return "", err
	}

	var created projectCreated
	if err := json.Unmarshal(body, &created); err != nil || created.UUID == "" {
		if err == nil {
			err = fmt.Errorf("missing uuid field")
		}
		return "", pipelineerrors.AnalyzerProtocolError{Operation: op, Payload: string(body), Err: err}
	}
	return created.UUID, nil
}

// DeleteProject removes a disposable project. Callers treat failures as
// non-fatal; this method still reports them.
func (c *Client) DeleteProject(ctx context.Context, apiKey, projectUUID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.endpoints.DeleteProject(projectUUID), nil)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Accept", "application/json")

	_, err = c.do(req, "delete project")
	return err
}

// UploadSBOM submits the SBOM bytes into a project as a multipart body and
// returns the submission token used for status polling.
func (c *Client) UploadSBOM(ctx context.Context, apiKey, projectUUID string, bom []byte) (string, error) {
	const op = "upload sbom"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("project", projectUUID); err != nil {
		return "", err
	}
	if err := mw.WriteField("autoCreate", "false"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("bom", "bom.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(bom); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	// The multipart variant of the upload endpoint is POST; PUT expects a
	// base64-JSON payload instead.
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoints.UploadBOM(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return "", err
	}

	var receipt uploadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil || receipt.Token == "" {
		if err == nil {
			err = fmt.Errorf("missing token field")
		}
		return "", pipelineerrors.AnalyzerProtocolError{Operation: op, Payload: string(body), Err: err}
	}
	return receipt.Token, nil
}

// IsProcessing reports whether the analyzer is still working on the given
// submission token.
func (c *Client) IsProcessing(ctx context.Context, apiKey, token string) (bool, error) {
	const op = "poll status"

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.BOMStatus(token), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return false, err
	}

	var status bomStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return false, pipelineerrors.AnalyzerProtocolError{Operation: op, Payload: string(body), Err: err}
	}
	return status.Processing, nil
}

// Findings fetches the findings JSON for a project. The payload is passed
// through untouched; no structure is imposed on it here.
func (c *Client) Findings(ctx context.Context, apiKey, projectUUID string) (json.RawMessage, error) {
	const op = "fetch findings"

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Findings(projectUUID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, pipelineerrors.AnalyzerProtocolError{
			Operation: op,
			Payload:   string(body),
			Err:       fmt.Errorf("response is not valid JSON"),
		}
	}
	return json.RawMessage(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}

// postForm sends an x-www-form-urlencoded POST and returns the body.
func (c *Client) postForm(ctx context.Context, op, target string, form url.Values, accept string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", accept)

	return c.do(req, op)
}

// do executes one request and maps failures into the pipeline taxonomy:
// transport errors and non-2xx statuses become AnalyzerHTTPError, except a
// 401, which becomes ErrUnauthorized so the KeyedClient can react.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipelineerrors.AnalyzerHTTPError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipelineerrors.AnalyzerHTTPError{Operation: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pipelineerrors.AnalyzerHTTPError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

// IsTransient reports whether err is a transport-level failure (no HTTP
// status was received). The polling loop treats these as "not ready yet".
func IsTransient(err error) bool {
	var httpErr pipelineerrors.AnalyzerHTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 0 && httpErr.Err != nil
}
