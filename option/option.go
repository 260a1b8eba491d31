// Package option holds the functional options accepted by the client and by
// every individual API call.
package option

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
)

// RequestOption configures either the whole client (when passed to NewClient)
// or a single request (when passed to a service method).
type RequestOption = requestconfig.RequestOption

// RequestOptionFunc adapts a plain function to a RequestOption.
type RequestOptionFunc = requestconfig.RequestOptionFunc

// WithBaseURL overrides the API base URL, e.g. for a proxy or a sandbox
// deployment.
func WithBaseURL(base string) RequestOption {
	u, err := url.Parse(base)
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if err != nil {
			return fmt.Errorf("option: invalid base URL: %w", err)
		}
		r.BaseURL = u
		return nil
	})
}

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(client *http.Client) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if client == nil {
			return fmt.Errorf("option: http client must not be nil")
		}
		r.HTTPClient = client
		return nil
	})
}

// WithHTTPDoer substitutes a custom HTTP implementation for the default
// client. Primarily useful in tests.
func WithHTTPDoer(doer requestconfig.HTTPDoer) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.CustomHTTPDoer = doer
		return nil
	})
}

// WithAuthToken sets the session token sent on every request.
func WithAuthToken(token string) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.AuthToken = token
		return nil
	})
}

// WithCredentials stores the account credentials used by Login and by the
// autoLogin behaviour.
func WithCredentials(username, password string) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.Username = username
		r.Password = password
		return nil
	})
}

// WithRequestTimeout bounds a single request round-trip.
func WithRequestTimeout(d time.Duration) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.RequestTimeout = d
		return nil
	})
}

// WithLogger injects a logger; the default is a nop logger.
func WithLogger(logger *zap.SugaredLogger) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if logger != nil {
			r.Logger = logger
		}
		return nil
	})
}

// WithResponseInto copies the raw *http.Response into the given address.
func WithResponseInto(dst **http.Response) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.ResponseInto = dst
		return nil
	})
}

// WithRaw bypasses normalization: responses are deserialized envelope and all,
// and socket events are dispatched untransformed.
func WithRaw(raw bool) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.Raw = raw
		return nil
	})
}

// WithOnlyFirstMatch stops pattern dispatch after the first matching pattern
// listener per event. Exact-name listeners are unaffected.
func WithOnlyFirstMatch(only bool) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.OnlyFirstMatch = only
		return nil
	})
}

// WithAutoLogin logs in with the stored credentials when Connect runs.
func WithAutoLogin(auto bool) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.AutoLogin = auto
		return nil
	})
}

// WithAutoJoin joins the configured rooms once the socket connects.
func WithAutoJoin(auto bool) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.AutoJoin = auto
		return nil
	})
}

// WithRooms sets the rooms targeted by autoJoin. Accepts room ids or URL
// slugs.
func WithRooms(rooms ...string) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.Rooms = append([]string(nil), rooms...)
		return nil
	})
}
