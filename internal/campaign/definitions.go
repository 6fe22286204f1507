// Package campaign holds the multi-area campaign definitions, the local-time
// send window that gates them, and the daily scheduler.
package campaign

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/equestrolabs/leadgen-cli/internal/model"
)

// Builtins returns the campaigns that ship with the tool. Each one writes to
// its own tab so its leads never mix with the default tab.
func Builtins() []model.Campaign {
	return []model.Campaign{
		{
			ID:          "electrician_morgan_hill_south_bay",
			Category:    "electrician",
			Areas:       []string{"Morgan Hill CA", "South Bay CA"},
			Tab:         "Leads - Electrician South Bay",
			Description: "Electricians in Morgan Hill and South Bay CA, 6 AM to 11 PM Pacific",
			StartHour:   6,
			EndHour:     23,
		},
		{
			ID:          "pool_cleaner_morgan_hill_south_bay",
			Category:    "pool cleaner",
			Areas:       []string{"Morgan Hill CA", "South Bay CA"},
			Tab:         "Leads - Pool Cleaner South Bay",
			Description: "Pool service professionals in Morgan Hill and South Bay CA, 6 AM to 11 PM Pacific",
			StartHour:   6,
			EndHour:     23,
		},
	}
}

// Registry is a read-only set of campaign definitions keyed by ID.
type Registry struct {
	byID map[string]model.Campaign
}

// NewRegistry builds a registry. Later definitions replace earlier ones with
// the same ID.
func NewRegistry(defs ...model.Campaign) (*Registry, error) {
	r := &Registry{byID: make(map[string]model.Campaign, len(defs))}
	for _, c := range defs {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, eris.New("campaign: definition without id")
		}
		if strings.TrimSpace(c.Category) == "" {
			return nil, eris.Errorf("campaign: %s has no category", c.ID)
		}
		if len(c.Areas) == 0 {
			return nil, eris.Errorf("campaign: %s has no areas", c.ID)
		}
		if c.StartHour < 0 || c.StartHour > 23 || c.EndHour < 0 || c.EndHour > 23 {
			return nil, eris.Errorf("campaign: %s window hours must be 0-23", c.ID)
		}
		r.byID[c.ID] = c
	}
	return r, nil
}

// Get returns the campaign for id.
func (r *Registry) Get(id string) (model.Campaign, bool) {
	c, ok := r.byID[strings.TrimSpace(id)]
	return c, ok
}

// List returns every campaign sorted by ID.
func (r *Registry) List() []model.Campaign {
	out := make([]model.Campaign, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadFile reads campaign definitions from a YAML file with a top-level
// "campaigns" list.
func LoadFile(path string) ([]model.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "campaign: read definitions %s", path)
	}

	var wrapper struct {
		Campaigns []model.Campaign `yaml:"campaigns"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "campaign: parse definitions")
	}
	return wrapper.Campaigns, nil
}

// Load returns a registry with the built-in campaigns plus any defined in
// path. An empty path yields the built-ins only.
func Load(path string) (*Registry, error) {
	defs := Builtins()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, extra...)
	}
	return NewRegistry(defs...)
}
