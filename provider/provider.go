package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sakhatrans/routegraph/cache"
	"github.com/sakhatrans/routegraph/parse"
)

// Per-flight availability as reported by the upstream source.
type FlightInfo struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
	Seats int     `json:"seats"`
}

// A thing capable of serving a full snapshot of the upstream
// transport data, plus per-flight lookups for real-time variants.
type Provider interface {
	FetchAll(ctx context.Context) (*parse.RawSnapshot, error)
	FlightStatus(ctx context.Context, id string) (*FlightInfo, error)
}

// Tuning for the OData upstream, populated from the ODATA_* options.
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	EnableCache   bool
	CacheTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		CacheTTL:      cache.UpstreamTTL,
	}
}

type ErrorKind int

const (
	ErrKindUnavailable ErrorKind = iota
	ErrKindTimeout
	ErrKindAuth
	ErrKindNotFound
	ErrKindServer
	ErrKindRetryExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindTimeout:
		return "timeout"
	case ErrKindAuth:
		return "authentication"
	case ErrKindNotFound:
		return "not found"
	case ErrKindServer:
		return "server error"
	case ErrKindRetryExhausted:
		return "retry exhausted"
	}
	return "unavailable"
}

// Error classifies an upstream failure at the provider boundary.
// Downstream code switches on Kind, never on HTTP status codes.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error

	// Whether a retry could plausibly succeed: network errors,
	// timeouts, and the retryable HTTP statuses.
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
