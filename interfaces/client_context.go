package interfaces

import (
	"net/http"
	"time"

	"github.com/flagcore/flagcore/internal/ldlog"
)

// ClientContext carries configuration and shared resources into the constructors for the data
// store, data source, event processor, and big segment wrapper, so those components never need to
// reach back into the top-level Config type directly.
type ClientContext interface {
	SDKKey() string
	HTTPClient() *http.Client
	DefaultHeaders() http.Header
	Loggers() ldlog.Loggers
	Offline() bool
}

type basicClientContext struct {
	sdkKey     string
	httpClient *http.Client
	headers    http.Header
	loggers    ldlog.Loggers
	offline    bool
}

// NewClientContext constructs the default ClientContext implementation.
func NewClientContext(sdkKey string, httpClient *http.Client, headers http.Header, loggers ldlog.Loggers, offline bool) ClientContext {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &basicClientContext{sdkKey, httpClient, headers, loggers, offline}
}

func (c *basicClientContext) SDKKey() string              { return c.sdkKey }
func (c *basicClientContext) HTTPClient() *http.Client    { return c.httpClient }
func (c *basicClientContext) DefaultHeaders() http.Header { return c.headers }
func (c *basicClientContext) Loggers() ldlog.Loggers      { return c.loggers }
func (c *basicClientContext) Offline() bool               { return c.offline }
