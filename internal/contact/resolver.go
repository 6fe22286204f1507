// Package contact picks the best personal phone and email for a business
// owner from public people-search records.
package contact

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/phone"
	"github.com/equestrolabs/leadgen-cli/internal/resilience"
	"github.com/equestrolabs/leadgen-cli/pkg/peoplesearch"
)

const (
	lineWireless = "WIRELESS"

	reasonMissingName  = "missing_name"
	reasonServiceError = "service_error"
)

// Result is the tagged outcome of one resolution.
type Result struct {
	Outcome  model.Outcome `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	FullName string        `json:"full_name,omitempty"`
	Phone    string        `json:"phone,omitempty"`
	Email    string        `json:"email,omitempty"`
	City     string        `json:"city,omitempty"`
	State    string        `json:"state,omitempty"`
}

// Found reports whether a phone or email was resolved.
func (r Result) Found() bool { return r.Outcome == model.OutcomeFound }

// Resolver resolves owner contacts through a people-search client.
type Resolver struct {
	client  peoplesearch.Client
	breaker *resilience.CircuitBreaker
	cache   *cache.Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache keeps answered lookups in memory for ttl.
func WithCache(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithCircuitBreaker guards the people-search service with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Resolver) {
		r.breaker = cb
	}
}

// NewResolver creates a resolver. A nil client means the service is not
// configured and every call reports no_credentials.
func NewResolver(client peoplesearch.Client, opts ...Option) *Resolver {
	r := &Resolver{client: client}
	for _, o := range opts {
		o(r)
	}
	return r
}

func cacheKey(first, last, state, city string) string {
	return strings.ToLower(strings.Join([]string{first, last, state, city}, "|"))
}

// Resolve finds the best contact for first and last name in state, favoring
// records in preferredCity. Service failures are reported in the result and
// never returned as errors.
func (r *Resolver) Resolve(ctx context.Context, first, last, state, preferredCity string) Result {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if state == "" {
		state = "CA"
	}
	log := zap.L().With(zap.String("first", first), zap.String("last", last), zap.String("state", state))

	if r.client == nil {
		return Result{Outcome: model.OutcomeNotFound, Reason: model.ReasonNoCredentials}
	}
	if first == "" || last == "" {
		return Result{Outcome: model.OutcomeNotFound, Reason: reasonMissingName}
	}

	key := cacheKey(first, last, state, preferredCity)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			log.Debug("contact: cache hit")
			return v.(Result)
		}
	}

	search := func(ctx context.Context) ([]peoplesearch.Person, error) {
		return r.client.Search(ctx, first, last, state)
	}
	var (
		people []peoplesearch.Person
		err    error
	)
	if r.breaker != nil {
		people, err = resilience.ExecuteVal(ctx, r.breaker, search)
	} else {
		people, err = search(ctx)
	}
	if err != nil {
		reason := reasonServiceError
		if errors.Is(err, resilience.ErrCircuitOpen) {
			reason = model.ReasonCircuitOpen
		}
		log.Warn("contact: people search failed", zap.String("reason", reason), zap.Error(err))
		return Result{Outcome: model.OutcomeError, Reason: reason, Error: err.Error()}
	}

	res := Pick(people, preferredCity)
	if res.Found() {
		log.Info("contact: resolved", zap.Bool("phone", res.Phone != ""), zap.Bool("email", res.Email != ""))
	} else {
		log.Info("contact: no usable record", zap.Int("records", len(people)))
	}
	if r.cache != nil {
		r.cache.Set(key, res, cache.DefaultExpiration)
	}
	return res
}

// Score rates how useful a record is for reaching the owner.
func Score(p peoplesearch.Person, preferredCity string) int {
	s := 0
	hasPhone, hasEmail := len(p.Phones) > 0, len(p.Emails) > 0
	switch {
	case hasPhone && hasEmail:
		s += 10
	case hasPhone:
		s += 5
	case hasEmail:
		s += 3
	}
	for _, ph := range p.Phones {
		if strings.EqualFold(ph.LineType, lineWireless) {
			s += 4
			break
		}
	}
	city := strings.ToUpper(strings.TrimSpace(p.City))
	pref := strings.ToUpper(strings.TrimSpace(preferredCity))
	switch {
	case pref == "":
	case city == pref:
		s += 8
	case strings.Contains(city, pref):
		s += 4
	}
	return s
}

// Pick returns the contact from the highest-scoring record. Ties keep the
// service's order.
func Pick(people []peoplesearch.Person, preferredCity string) Result {
	if len(people) == 0 {
		return Result{Outcome: model.OutcomeNotFound, Reason: model.ReasonNoResults}
	}
	ranked := make([]peoplesearch.Person, len(people))
	copy(ranked, people)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i], preferredCity) > Score(ranked[j], preferredCity)
	})
	top := ranked[0]

	var number string
	for _, ph := range top.Phones {
		if strings.EqualFold(ph.LineType, lineWireless) && ph.Number != "" {
			number = ph.Number
			break
		}
	}
	if number == "" && len(top.Phones) > 0 {
		number = top.Phones[0].Number
	}
	var email string
	if len(top.Emails) > 0 {
		email = strings.ToLower(strings.TrimSpace(top.Emails[0].Address))
	}

	res := Result{
		Outcome:  model.OutcomeFound,
		FullName: top.FullName,
		Phone:    phone.Display(number),
		Email:    email,
		City:     cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(top.City))),
		State:    top.State,
	}
	if res.State == "" {
		res.State = "CA"
	}
	if res.Phone == "" && res.Email == "" {
		res.Outcome = model.OutcomeNotFound
		res.Reason = model.ReasonNoContact
	}
	return res
}

// SplitName returns the first and last tokens of a full name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], parts[len(parts)-1]
}
