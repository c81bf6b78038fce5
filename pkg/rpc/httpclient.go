package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// HTTPClient is a wrapper around an http.Client that implements a
// circuit-breaker and token-bucket across a set of equivalent node endpoints.
type HTTPClient struct {
	endpoints []string
	client    *http.Client

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// refill refills the token-bucket with new tokens if necessary.
func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

// acquire acquires a token from the token-bucket, blocking if necessary.
func (c *HTTPClient) acquire() {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

// isOpen returns true if the endpoint's breaker is in the OPEN state.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure marks an endpoint as failed and opens the circuit-breaker if the
// failure count exceeds the threshold.
func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// doJSON sends a JSON request to a configured endpoint and decodes the JSON
// response into out when out is non-nil. It rotates across endpoints when the
// primary attempt fails with a transport or server-side error, skipping
// endpoints whose breaker is OPEN.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		if c.isOpen(ep) {
			continue
		}

		c.acquire()

		var body *bytes.Reader
		if payload != nil {
			b, mErr := json.Marshal(payload)
			if mErr != nil {
				// Fatal for this attempt; don't mark the endpoint as failed.
				return mErr
			}
			body = bytes.NewReader(b)
		} else {
			body = bytes.NewReader(nil)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, ep+path, body)
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		// From here on, always drain+close the body before continuing/returning.
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d", resp.StatusCode)
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		if out != nil {
			var raw json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
				_ = utils.DrainAndClose(resp.Body)
				lastErr = err
				continue
			}
			if err := json.Unmarshal(raw, out); err != nil {
				lastErr = err
				continue
			}
		}

		if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
			return cerr
		}
		return nil
	}

	return lastErr
}

// pageResp is the response for a paged query.
type pageResp[T any] struct {
	PageNumber int    `json:"pageNumber"`
	PerPage    int    `json:"perPage"`
	Results    []T    `json:"results"`
	Count      int    `json:"count"`
	TotalPages int    `json:"totalPages"`
	TotalCount int    `json:"totalCount"`
	Type       string `json:"type"`
}

// ListPaged fetches every page of a paged query path. Page one establishes the
// total; the remaining pages are fetched concurrently.
func ListPaged[T any](ctx context.Context, c *HTTPClient, path string, args any) ([]T, error) {
	var first pageResp[T]
	if err := c.doJSON(ctx, http.MethodPost, path, args, &first); err != nil {
		return nil, err
	}
	all := make([]T, 0, first.TotalCount)
	all = append(all, first.Results...)
	if first.TotalPages <= 1 {
		return all, nil
	}
	type res struct {
		page  int
		items []T
		err   error
	}
	ch := make(chan res, first.TotalPages-1)
	for p := 2; p <= first.TotalPages; p++ {
		go func(page int) {
			var pr pageResp[T]
			payload := map[string]any{}
			if args != nil {
				switch v := args.(type) {
				case map[string]any:
					for k, val := range v {
						payload[k] = val
					}
				case QueryByRangeRequest:
					payload["fromBlock"] = v.FromBlock
					payload["toBlock"] = v.ToBlock
				case QueryByIDRequest:
					payload["id"] = v.ID
				case QueryByKeyRequest:
					payload["key"] = v.Key
				}
			}
			payload["pageNumber"] = page
			if err := c.doJSON(ctx, http.MethodPost, path, payload, &pr); err != nil {
				ch <- res{page, nil, err}
				return
			}
			ch <- res{page, pr.Results, nil}
		}(p)
	}
	pages := make(map[int][]T, first.TotalPages-1)
	for i := 0; i < first.TotalPages-1; i++ {
		r := <-ch
		if r.err != nil {
			return nil, r.err
		}
		pages[r.page] = r.items
	}
	// Reassemble in page order; event consumers depend on it.
	for p := 2; p <= first.TotalPages; p++ {
		all = append(all, pages[p]...)
	}
	return all, nil
}
