// Package bizfile looks up the registered agent of a California business in
// the Secretary of State registry. An authenticated browser session is cached
// on disk and reused until it expires or the registry rejects it.
package bizfile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
)

// LookupResult is the tagged outcome of one registry lookup.
type LookupResult struct {
	Outcome      model.Outcome `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	Error        string        `json:"error,omitempty"`
	OwnerName    string        `json:"owner_name,omitempty"`
	OwnerCity    string        `json:"owner_city,omitempty"`
	OwnerState   string        `json:"owner_state,omitempty"`
	EntityName   string        `json:"entity_name,omitempty"`
	EntityStatus string        `json:"entity_status,omitempty"`
	EntityID     string        `json:"entity_id,omitempty"`
	// Source names where the owner was found: detail, row or page_text.
	Source string `json:"source,omitempty"`
}

// Found reports whether an owner was identified.
func (r LookupResult) Found() bool { return r.Outcome == model.OutcomeFound }

// Client performs registry lookups.
type Client struct {
	creds   Credentials
	browser Browser
	cache   *SessionCache

	// mu serializes logins within the process; the cache's file lock
	// serializes them across processes.
	mu sync.Mutex
}

// NewClient creates a registry client.
func NewClient(creds Credentials, browser Browser, cache *SessionCache) *Client {
	return &Client{creds: creds, browser: browser, cache: cache}
}

// Close releases the browser.
func (c *Client) Close() error {
	return c.browser.Close()
}

// Lookup finds the owner of the business called name. It never returns an
// error: failures are reported in the result's Outcome and Reason.
func (c *Client) Lookup(ctx context.Context, name string) LookupResult {
	log := zap.L().With(zap.String("business", name))

	if c.creds.Username == "" || c.creds.Password == "" {
		log.Debug("bizfile: no credentials, skipping lookup")
		return LookupResult{Outcome: model.OutcomeNotFound, Reason: model.ReasonNoCredentials}
	}

	if sess, ok := c.cache.Load(); ok {
		res, err := c.search(ctx, sess, name)
		if err == nil {
			return res
		}
		if !errors.Is(err, ErrUnauthorized) {
			return errorResult(log, err)
		}
		log.Info("bizfile: saved session rejected, logging in again")
		c.cache.InvalidateIf(sess.SavedAt)
	}

	sess, err := c.login(ctx)
	if err != nil {
		return errorResult(log, err)
	}
	res, err := c.search(ctx, sess, name)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.cache.InvalidateIf(sess.SavedAt)
		}
		return errorResult(log, err)
	}
	return res
}

// login returns a valid session, logging in only if no other caller has
// saved one since the cache was last checked.
func (c *Client) login(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := c.cache.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if sess, ok := c.cache.Load(); ok {
		return sess, nil
	}

	zap.L().Info("bizfile: logging in")
	sess, err := c.browser.Login(ctx, c.creds)
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: login")
	}
	if err := c.cache.Save(sess); err != nil {
		return nil, err
	}
	zap.L().Info("bizfile: login succeeded, session saved")
	return sess, nil
}

func (c *Client) search(ctx context.Context, sess *Session, name string) (LookupResult, error) {
	pick := func(rows []json.RawMessage) int {
		return PickEntity(decodeEntities(rows), name)
	}
	capture, err := c.browser.Search(ctx, sess, name, pick)
	if err != nil {
		return LookupResult{}, err
	}

	res := resolve(name, capture)
	log := zap.L().With(zap.String("business", name))
	if res.Found() {
		log.Info("bizfile: owner found",
			zap.String("owner", res.OwnerName),
			zap.String("city", res.OwnerCity),
			zap.String("state", res.OwnerState),
			zap.String("source", res.Source),
		)
	} else {
		log.Info("bizfile: owner not found", zap.String("reason", res.Reason), zap.Int("rows", len(capture.Rows)))
	}
	return res, nil
}

func decodeEntities(rows []json.RawMessage) []Entity {
	out := make([]Entity, len(rows))
	for i, r := range rows {
		out[i] = NewEntity(r)
	}
	return out
}

// resolve turns a capture into a result: detail payload first, then the
// picked search row, then the rendered page text.
func resolve(name string, capture *Capture) LookupResult {
	var res LookupResult
	if len(capture.Rows) > 0 {
		entities := decodeEntities(capture.Rows)
		e := entities[PickEntity(entities, name)]
		res.EntityName, res.EntityStatus, res.EntityID = e.Name, e.Status, e.ID

		if len(capture.Detail) > 0 {
			if o, ok := ExtractOwner(capture.Detail); ok {
				return found(res, o, "detail")
			}
		}
		if o, ok := ExtractOwner(e.Raw); ok {
			return found(res, o, "row")
		}
	}

	if capture.PageHTML != "" {
		lines, err := HTMLLines(capture.PageHTML)
		if err == nil {
			if o, ok := ParsePageText(lines); ok {
				return found(res, o, "page_text")
			}
		}
	}

	res.Outcome = model.OutcomeNotFound
	res.Reason = model.ReasonNoResults
	if len(capture.Rows) > 0 {
		res.Reason = model.ReasonNoOwner
	}
	return res
}

func found(res LookupResult, o Owner, source string) LookupResult {
	res.Outcome = model.OutcomeFound
	res.OwnerName, res.OwnerCity, res.OwnerState = o.Name, o.City, o.State
	if res.OwnerState == "" {
		res.OwnerState = "CA"
	}
	res.Source = source
	return res
}

func errorResult(log *zap.Logger, err error) LookupResult {
	reason := "browser_error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = model.ReasonTimeout
	case errors.Is(err, ErrUnauthorized):
		reason = model.ReasonUnauthorized
	}
	log.Warn("bizfile: lookup failed", zap.String("reason", reason), zap.Error(err))
	return LookupResult{Outcome: model.OutcomeError, Reason: reason, Error: err.Error()}
}
