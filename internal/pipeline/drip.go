package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/outreach"
	"github.com/equestrolabs/leadgen-cli/internal/phone"
)

type dripTouch int

const (
	noTouch dripTouch = iota
	touch2
	touch3
)

// nextTouch decides which follow-up a lead is due for. Drip Step decides;
// the status is only consulted when the step is 0, so a lead never moves
// backwards.
func nextTouch(l model.Lead) dripTouch {
	switch l.DripStep {
	case 1:
		return touch2
	case 2:
		return touch3
	case 0:
		switch statusOf(l) {
		case model.StatusTouch1Sent:
			return touch2
		case model.StatusTouch2Sent:
			return touch3
		}
	}
	return noTouch
}

// runDripFollowups sends Touch 2 and Touch 3 to every lead for area and
// category that is due today or earlier. Leads without a Next Contact date
// are due. Updates are sequential; a failed update is logged and the lead
// is not counted.
func (p *Pipeline) runDripFollowups(ctx context.Context, table Table, area, category string) (sent2, sent3 int, err error) {
	leads, err := table.ReadAll(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "pipeline: read leads for drip")
	}
	today := p.today()

	for _, l := range leads {
		if ctx.Err() != nil {
			return sent2, sent3, ctx.Err()
		}
		if !matches(l, area, category) || statusOf(l).Terminal() {
			continue
		}
		if next := strings.TrimSpace(l.NextContact); next != "" && next > today {
			continue
		}

		switch nextTouch(l) {
		case touch2:
			if p.touch2(ctx, table, l) {
				sent2++
			}
		case touch3:
			if p.touch3(ctx, table, l) {
				sent3++
			}
		}
	}
	return sent2, sent3, nil
}

// touch2 sends the competitor follow-up SMS to Best Phone. It reports
// whether the lead advanced.
func (p *Pipeline) touch2(ctx context.Context, table Table, l model.Lead) bool {
	log := zap.L().With(zap.String("business", l.BusinessName), zap.Int("row", l.Row))
	log.Info("pipeline: drip touch 2")

	stamp := p.stamp()
	number := strings.TrimSpace(l.BestPhone)
	var err error
	if number == "" {
		err = eris.New("pipeline: no best phone")
	} else {
		err = p.sms.SendSMS(ctx, phone.E164(number), outreach.Touch2(p.params(l)))
	}

	changes := model.Changes{
		model.ColDripStep:    stepString(2),
		model.ColNextContact: p.daysFromToday(p.cfg.Touch3Delay),
		model.ColStatus:      string(model.StatusTouch2Sent),
		model.ColNotes:       "Touch 2 sent " + stamp,
	}
	if err != nil {
		log.Warn("pipeline: touch 2 failed", zap.Error(err))
		changes = model.Changes{
			model.ColDripStep:    stepString(1),
			model.ColNextContact: "",
			model.ColStatus:      string(model.StatusTouch2Failed),
			model.ColNotes:       "Touch 2 failed " + stamp,
		}
	}

	if uerr := p.update(ctx, table, l.Row, changes); uerr != nil {
		return false
	}
	return err == nil
}

// touch3 sends the follow-up email to Best Email. It reports whether the
// lead advanced.
func (p *Pipeline) touch3(ctx context.Context, table Table, l model.Lead) bool {
	log := zap.L().With(zap.String("business", l.BusinessName), zap.Int("row", l.Row))
	log.Info("pipeline: drip touch 3")

	stamp := p.stamp()
	to := strings.TrimSpace(l.BestEmail)

	var changes model.Changes
	ok := false
	switch {
	case to == "":
		log.Info("pipeline: no email for touch 3")
		changes = model.Changes{
			model.ColEmailSent:   model.FlagNoEmail,
			model.ColDripStep:    stepString(2),
			model.ColNextContact: "",
			model.ColStatus:      string(model.StatusNoEmail),
			model.ColNotes:       "Touch 3 skipped (no email) " + stamp,
		}
	default:
		subject, body := outreach.Touch3(p.params(l))
		if err := p.email.SendEmail(ctx, to, subject, body); err != nil {
			log.Warn("pipeline: touch 3 failed", zap.Error(err))
			changes = model.Changes{
				model.ColEmailSent:   model.FlagFailed,
				model.ColDripStep:    stepString(2),
				model.ColNextContact: "",
				model.ColStatus:      string(model.StatusTouch3Failed),
				model.ColNotes:       "Touch 3 failed " + stamp,
			}
		} else {
			ok = true
			changes = model.Changes{
				model.ColEmailSent:   model.FlagYes,
				model.ColDripStep:    stepString(3),
				model.ColNextContact: "",
				model.ColStatus:      string(model.StatusDripComplete),
				model.ColNotes:       "Touch 3 email sent " + stamp,
			}
		}
	}

	if uerr := p.update(ctx, table, l.Row, changes); uerr != nil {
		return false
	}
	return ok
}
