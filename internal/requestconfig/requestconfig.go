package requestconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/DaniilShev/dubtrack-go/internal/version"
)

// HTTPDoer is primarily an [*http.Client], but supports custom HTTP
// implementations.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestConfig represents all the state related to one request.
//
// Editing the variables inside RequestConfig directly is unstable api. Prefer
// composing RequestOption instead if possible.
type RequestConfig struct {
	RequestTimeout time.Duration
	Context        context.Context
	Request        *http.Request
	BaseURL        *url.URL
	// DefaultBaseURL is used if BaseURL is not explicitly overridden.
	DefaultBaseURL *url.URL
	CustomHTTPDoer HTTPDoer
	HTTPClient     *http.Client
	AuthToken      string
	Username       string
	Password       string
	Logger         *zap.SugaredLogger

	// OnAccessDenied runs whenever a response comes back unauthorized, before
	// ErrAccessDenied is returned. The session coordinator hooks it to force
	// its logout transition.
	OnAccessDenied func()

	// Raw disables the envelope unwrap: the whole response body is
	// deserialized into ResponseBodyInto instead of only its data field.
	Raw bool

	// Client-level behaviour flags. They ride along on RequestConfig so that
	// the same option mechanism configures both the client and single calls.
	OnlyFirstMatch bool
	AutoLogin      bool
	AutoJoin       bool
	Rooms          []string

	// If ResponseBodyInto is not nil, the response data is deserialized into
	// it. If it is a *[]byte, the body is returned as is.
	ResponseBodyInto any
	// ResponseInto copies the *http.Response of the request into the given
	// address.
	ResponseInto **http.Response
	Body         io.Reader
}

type RequestOption interface {
	Apply(*RequestConfig) error
}

type RequestOptionFunc func(*RequestConfig) error

func (s RequestOptionFunc) Apply(r *RequestConfig) error {
	return s(r)
}

// ErrAccessDenied marks a response the service refused for lack of
// authorization. The session coordinator watches for it to force a logout.
var ErrAccessDenied = errors.New("dubtrack: access denied")

// APIError is a well-formed error response from the service, carrying the
// service-specific code, message and any auxiliary data of the envelope.
type APIError struct {
	Code    int
	Message string
	Data    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dubtrack: api error %d: %s", e.Code, e.Message)
}

func getDefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": fmt.Sprintf("dubtrack-go/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH),
		"Accept":     "application/json",
	}
}

func NewRequestConfig(ctx context.Context, method, path string, body any, dst any, opts ...RequestOption) (*RequestConfig, error) {
	var reader io.Reader

	contentType := "application/json"
	hasSerializationFunc := false

	if body, ok := body.(json.Marshaler); ok {
		content, err := body.MarshalJSON()
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(content)
		hasSerializationFunc = true
	}
	if body, ok := body.(io.Reader); ok {
		reader = body
		hasSerializationFunc = true
	}

	if body != nil && !hasSerializationFunc {
		content, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(content)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range getDefaultHeaders() {
		req.Header.Set(k, v)
	}

	defaultBase, _ := url.Parse("https://api.dubtrack.fm/")
	cfg := RequestConfig{
		Context:          ctx,
		Request:          req,
		DefaultBaseURL:   defaultBase,
		HTTPClient:       http.DefaultClient,
		Body:             reader,
		Logger:           zap.NewNop().Sugar(),
		ResponseBodyInto: dst,
	}
	if err := cfg.ApplyOptions(opts...); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *RequestConfig) ApplyOptions(opts ...RequestOption) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.Apply(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *RequestConfig) effectiveBaseURL() *url.URL {
	if cfg.BaseURL != nil {
		return cfg.BaseURL
	}
	return cfg.DefaultBaseURL
}

func resolveRequestURL(base *url.URL, path string) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("requestconfig: base URL is not configured")
	}
	u, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("requestconfig: invalid path %q: %w", path, err)
	}
	return base.ResolveReference(u), nil
}

// Execute sends the request and deserializes the response. Service errors come
// back as *APIError, unauthorized responses as ErrAccessDenied, and transport
// or decode failures as wrapped plain errors.
func (cfg *RequestConfig) Execute() error {
	u, err := resolveRequestURL(cfg.effectiveBaseURL(), cfg.Request.URL.String())
	if err != nil {
		return err
	}
	cfg.Request.URL = u

	if cfg.Body != nil {
		content, err := io.ReadAll(cfg.Body)
		if err != nil {
			return fmt.Errorf("requestconfig: reading request body: %w", err)
		}
		cfg.Request.Body = io.NopCloser(bytes.NewReader(content))
		cfg.Request.ContentLength = int64(len(content))
		cfg.Request.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		}
	}

	if cfg.AuthToken != "" {
		cfg.Request.Header.Set("x-auth-token", cfg.AuthToken)
	}

	ctx := cfg.Request.Context()
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	doer := HTTPDoer(cfg.HTTPClient)
	if cfg.CustomHTTPDoer != nil {
		doer = cfg.CustomHTTPDoer
	}

	res, err := doer.Do(cfg.Request.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("requestconfig: request failed: %w", err)
	}
	defer res.Body.Close()

	if cfg.ResponseInto != nil {
		*cfg.ResponseInto = res
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("requestconfig: reading response body: %w", err)
	}

	cfg.Logger.Debugw("request completed",
		"method", cfg.Request.Method,
		"url", cfg.Request.URL.String(),
		"status", res.StatusCode,
	)

	if res.StatusCode == http.StatusUnauthorized {
		return cfg.accessDenied()
	}

	if into, ok := cfg.ResponseBodyInto.(*[]byte); ok {
		*into = body
		return nil
	}

	if !gjson.ValidBytes(body) {
		if res.StatusCode >= 400 {
			return fmt.Errorf("requestconfig: http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("requestconfig: malformed response body")
	}

	envelope := gjson.ParseBytes(body)
	code := envelope.Get("code")
	if code.Exists() {
		c := int(code.Int())
		if c == http.StatusUnauthorized {
			return cfg.accessDenied()
		}
		if c < 200 || c > 299 {
			apiErr := &APIError{Code: c, Message: envelope.Get("message").String()}
			if data := envelope.Get("data"); data.IsObject() {
				apiErr.Data, _ = data.Value().(map[string]any)
			}
			return apiErr
		}
	} else if res.StatusCode >= 400 {
		return fmt.Errorf("requestconfig: http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if cfg.ResponseBodyInto == nil {
		return nil
	}

	payload := body
	if !cfg.Raw && code.Exists() {
		data := envelope.Get("data")
		if !data.Exists() {
			return nil
		}
		payload = []byte(data.Raw)
	}

	if err := json.Unmarshal(payload, cfg.ResponseBodyInto); err != nil {
		return fmt.Errorf("requestconfig: deserializing response: %w", err)
	}
	return nil
}

func (cfg *RequestConfig) accessDenied() error {
	if cfg.OnAccessDenied != nil {
		cfg.OnAccessDenied()
	}
	return ErrAccessDenied
}

func ExecuteNewRequest(ctx context.Context, method, path string, params, res any, opts ...RequestOption) error {
	cfg, err := NewRequestConfig(ctx, method, path, params, res, opts...)
	if err != nil {
		return err
	}
	return cfg.Execute()
}
