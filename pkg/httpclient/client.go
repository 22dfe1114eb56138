package httpclient

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/goshawk/voice-agent/pkg/version"
)

type transport struct {
	userAgent string
	headers   http.Header
	rt        http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", t.userAgent)
	for k, v := range t.headers {
		r2.Header[k] = v
	}
	return t.rt.RoundTrip(r2)
}

type options struct {
	timeout time.Duration
	headers http.Header
	rt      http.RoundTripper
}

type Opt func(*options)

// WithTimeout sets the transport timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Opt {
	return func(o *options) {
		o.headers.Set(key, value)
	}
}

func WithTransport(rt http.RoundTripper) Opt {
	return func(o *options) {
		o.rt = rt
	}
}

func UserAgent() string {
	return fmt.Sprintf("VoiceAgent/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)
}

func NewHTTPClient(opts ...Opt) *http.Client {
	o := options{
		headers: http.Header{},
		rt:      http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &http.Client{
		Timeout: o.timeout,
		Transport: &transport{
			userAgent: UserAgent(),
			headers:   o.headers,
			rt:        o.rt,
		},
	}
}
