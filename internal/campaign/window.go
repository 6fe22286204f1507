package campaign

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Window is a daily local-time range. It opens at Start:00 and stays open
// through End:59. A Start after End wraps past midnight.
type Window struct {
	Start int
	End   int
	Loc   *time.Location
}

// NewWindow builds a window in the named IANA time zone.
func NewWindow(start, end int, tz string) (Window, error) {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return Window{}, eris.Errorf("campaign: window hours %d-%d out of range", start, end)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, eris.Wrapf(err, "campaign: load time zone %q", tz)
	}
	return Window{Start: start, End: end, Loc: loc}, nil
}

func (w Window) location() *time.Location {
	if w.Loc == nil {
		return time.UTC
	}
	return w.Loc
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.In(w.location()).Hour()
	if w.Start <= w.End {
		return h >= w.Start && h <= w.End
	}
	return h >= w.Start || h <= w.End
}

// NextOpen returns t when it is inside the window, otherwise the next time
// the window opens.
func (w Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	local := t.In(w.location())
	for i := 1; i <= 48; i++ {
		c := time.Date(local.Year(), local.Month(), local.Day(), local.Hour()+i, 0, 0, 0, w.location())
		if w.Contains(c) {
			return c
		}
	}
	return t
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:00-%02d:59 %s", w.Start, w.End, w.location())
}

// forCampaign returns the campaign's own hours in w's zone, or w when the
// campaign leaves both hours unset.
func (w Window) forCampaign(start, end int) Window {
	if start == 0 && end == 0 {
		return w
	}
	return Window{Start: start, End: end, Loc: w.Loc}
}
