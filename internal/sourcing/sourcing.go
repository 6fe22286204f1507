// Package sourcing pulls business listings from the listing API and appends
// the ones not already in the lead table.
package sourcing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/pkg/leadapi"
)

// segmentSep separates the display fields of a listing.
const segmentSep = "·"

// Table is the part of the lead store sourcing writes to.
type Table interface {
	LoadDedupKeys(ctx context.Context, area string) (map[string]struct{}, error)
	Append(ctx context.Context, lead model.Lead) (int, error)
}

// Sourcer fetches and stores new leads.
type Sourcer struct {
	listings leadapi.Client
	now      func() time.Time
}

// New creates a Sourcer.
func New(listings leadapi.Client) *Sourcer {
	return &Sourcer{listings: listings, now: time.Now}
}

// SourceLeads fetches listings for area and category and appends every one
// whose name is not yet stored for area. Names are checked against a single
// bulk read, and the set grows as rows are appended so repeats within one
// response are skipped too. It returns only the appended leads.
func (s *Sourcer) SourceLeads(ctx context.Context, table Table, area, category string) ([]model.Lead, error) {
	log := zap.L().With(zap.String("area", area), zap.String("category", category))

	listings, err := s.listings.FetchLeads(ctx, area, category)
	if err != nil {
		return nil, eris.Wrap(err, "sourcing: fetch listings")
	}
	log.Info("sourcing: fetched listings", zap.Int("count", len(listings)))

	existing, err := table.LoadDedupKeys(ctx, area)
	if err != nil {
		return nil, eris.Wrap(err, "sourcing: load dedup keys")
	}

	today := s.now().Format(model.DateLayout)
	var added []model.Lead
	for _, item := range listings {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		key := model.DedupKey(name)
		if _, dup := existing[key]; dup {
			log.Debug("sourcing: skipping duplicate", zap.String("business", name))
			continue
		}

		lead := model.Lead{
			ID:           uuid.NewString()[:8],
			BusinessName: name,
			Category:     category,
			Area:         area,
			BizPhone:     ExtractPhone(item.OtherInfo),
			Website:      strings.TrimSpace(item.Website),
			BizAddress:   ExtractAddress(item.Info),
			Status:       model.StatusSourced,
			SMSSent:      model.FlagNo,
			EmailSent:    model.FlagNo,
			DateAdded:    today,
			DripStep:     0,
		}
		row, err := table.Append(ctx, lead)
		if err != nil {
			return added, eris.Wrapf(err, "sourcing: append %q", name)
		}
		lead.Row = row
		existing[key] = struct{}{}
		added = append(added, lead)
		log.Info("sourcing: added lead", zap.String("business", name), zap.Int("row", row))
	}

	log.Info("sourcing: complete", zap.Int("added", len(added)), zap.Int("fetched", len(listings)))
	return added, nil
}

// ExtractPhone returns the first "·" segment of other that looks like a
// phone number: it starts with "(" or is more than seven digits once dashes
// and spaces are removed.
func ExtractPhone(other string) string {
	for _, part := range strings.Split(other, segmentSep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "(") {
			return part
		}
		if len(part) > 7 && allDigits(strings.NewReplacer("-", "", " ", "").Replace(part)) {
			return part
		}
	}
	return ""
}

// ExtractAddress returns the last "·" segment of info, or "" when info has
// only one segment.
func ExtractAddress(info string) string {
	parts := strings.Split(info, segmentSep)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
