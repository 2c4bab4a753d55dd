package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/cache"
	"github.com/sakhatrans/routegraph/parse"
)

// Statuses worth retrying. Everything else fails fast.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ODataProvider reads the regional transport registry over its OData
// HTTP endpoint. Snapshot tables are fetched as CSV exports;
// per-flight availability as JSON.
type ODataProvider struct {
	cfg    Config
	client *http.Client
	cache  cache.Cache
	log    zerolog.Logger
}

func NewODataProvider(cfg Config, c cache.Cache, log zerolog.Logger) *ODataProvider {
	return &ODataProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  c,
		log:    log.With().Str("module", "provider").Logger(),
	}
}

func (p *ODataProvider) FetchAll(ctx context.Context) (*parse.RawSnapshot, error) {
	snapshot := &parse.RawSnapshot{}
	for _, table := range []struct {
		path string
		dest *[]byte
	}{
		{"/stops", &snapshot.StopsCSV},
		{"/routes", &snapshot.RoutesCSV},
		{"/flights", &snapshot.FlightsCSV},
	} {
		body, err := p.getCached(ctx, table.path)
		if err != nil {
			return nil, err
		}
		*table.dest = body
	}
	return snapshot, nil
}

func (p *ODataProvider) FlightStatus(ctx context.Context, id string) (*FlightInfo, error) {
	key := "odata:flight:" + id
	if p.cfg.EnableCache && p.cache != nil {
		if body, err := p.cache.Get(ctx, key); err == nil {
			info := &FlightInfo{}
			if err := json.Unmarshal(body, info); err == nil {
				return info, nil
			}
		}
	}

	body, err := p.get(ctx, "/flights/"+id)
	if err != nil {
		return nil, err
	}
	info := &FlightInfo{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, &Error{Kind: ErrKindServer, Op: "decoding flight " + id, Err: err}
	}

	if p.cfg.EnableCache && p.cache != nil {
		if err := p.cache.Set(ctx, key, body, cache.EntityTTL); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("caching flight status failed")
		}
	}
	return info, nil
}

func (p *ODataProvider) getCached(ctx context.Context, path string) ([]byte, error) {
	key := "odata:" + path
	if p.cfg.EnableCache && p.cache != nil {
		if body, err := p.cache.Get(ctx, key); err == nil {
			return body, nil
		}
	}

	body, err := p.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if p.cfg.EnableCache && p.cache != nil {
		if err := p.cache.Set(ctx, key, body, p.cfg.CacheTTL); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("caching upstream response failed")
		}
	}
	return body, nil
}

// Fetches one upstream path with exponential backoff on retryable
// statuses. Non-retryable failures are classified and returned
// immediately.
func (p *ODataProvider) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryDelay
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.cfg.RetryAttempts)),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		body, err = p.getOnce(ctx, path)
		if err == nil {
			return nil
		}

		var perr *Error
		if errors.As(err, &perr) && !perr.Retryable {
			return backoff.Permanent(err)
		}
		p.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("upstream fetch failed, retrying")
		return err
	}, policy)

	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && !perr.Retryable {
			return nil, err
		}
		return nil, &Error{Kind: ErrKindRetryExhausted, Op: "fetching " + path, Err: err}
	}
	return body, nil
}

func (p *ODataProvider) getOnce(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, &Error{Kind: ErrKindUnavailable, Op: "creating request", Err: err}
	}
	if p.cfg.Username != "" {
		req.SetBasicAuth(p.cfg.Username, p.cfg.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		kind := ErrKindUnavailable
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			kind = ErrKindTimeout
		}
		return nil, &Error{Kind: kind, Op: "fetching " + path, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	statusErr := fmt.Errorf("status %d", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: ErrKindAuth, Op: "fetching " + path, Err: statusErr}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Kind: ErrKindNotFound, Op: "fetching " + path, Err: statusErr}
	case retryableStatus[resp.StatusCode]:
		return nil, &Error{Kind: ErrKindServer, Op: "fetching " + path, Err: statusErr, Retryable: true}
	default:
		return nil, &Error{Kind: ErrKindUnavailable, Op: "fetching " + path, Err: statusErr}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrKindUnavailable, Op: "reading " + path, Err: err}
	}
	return body, nil
}

// StaticProvider serves a fixed snapshot. Used in tests and for
// recovery mode, where a bundled snapshot replaces the live upstream.
type StaticProvider struct {
	Snapshot *parse.RawSnapshot
	Flights  map[string]*FlightInfo
}

func (p *StaticProvider) FetchAll(ctx context.Context) (*parse.RawSnapshot, error) {
	if p.Snapshot == nil {
		return nil, &Error{Kind: ErrKindUnavailable, Op: "fetching snapshot", Err: errors.New("no snapshot configured")}
	}
	return p.Snapshot, nil
}

func (p *StaticProvider) FlightStatus(ctx context.Context, id string) (*FlightInfo, error) {
	info, found := p.Flights[id]
	if !found {
		return nil, &Error{Kind: ErrKindNotFound, Op: "fetching flight " + id, Err: errors.New("unknown flight")}
	}
	return info, nil
}
