package pipeline

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/contact"
	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/outreach"
	"github.com/equestrolabs/leadgen-cli/internal/phone"
)

// Reasons a lead was left without Touch 1.
const (
	skipAlreadySent  = "already_sent"
	skipPhoneTaken   = "phone_already_contacted"
	skipGuardUnknown = "live_row_unreadable"
)

// enrichAndTouch1 looks up the lead's owner and contact, persists what was
// found, and sends the intro SMS unless the lead or its phone was already
// texted. A lead whose live row shows Touch 1 is left untouched.
func (p *Pipeline) enrichAndTouch1(ctx context.Context, table Table, ledger *outreach.PhoneLedger, lead model.Lead) model.LeadResult {
	log := zap.L().With(zap.String("business", lead.BusinessName), zap.Int("row", lead.Row))
	res := model.LeadResult{Row: lead.Row, BusinessName: lead.BusinessName}
	log.Info("pipeline: enriching lead")

	// The live row is checked before anything is written so a concurrent
	// Touch 1 is never overwritten by this lead's enrichment.
	if sent(lead.SMSSent) {
		log.Info("pipeline: touch 1 already sent, skipping")
		res.Skipped = skipAlreadySent
		return res
	}
	if lead.Row > 0 {
		live, err := table.ReadRow(ctx, lead.Row)
		if err != nil {
			log.Warn("pipeline: could not re-read row before touch 1", zap.Error(err))
			res.Skipped = skipGuardUnknown
			res.Error = err.Error()
			return res
		}
		if sent(live.SMSSent) || live.DripStep > 0 {
			log.Info("pipeline: live row shows touch 1 already sent, skipping")
			res.Skipped = skipAlreadySent
			return res
		}
	}

	changes := model.Changes{}
	owner := p.registry.Lookup(ctx, lead.BusinessName)
	res.Registry = owner.Outcome

	if owner.Found() {
		changes[model.ColOwnerName] = owner.OwnerName
		changes[model.ColOwnerCity] = owner.OwnerCity
		changes[model.ColOwnerState] = owner.OwnerState
		changes[model.ColStatus] = string(model.StatusEnriched)

		first, last := contact.SplitName(owner.OwnerName)
		c := p.contacts.Resolve(ctx, first, last, owner.OwnerState, owner.OwnerCity)
		res.Contact = c.Outcome
		if c.Found() {
			changes[model.ColBestPhone] = c.Phone
			changes[model.ColBestEmail] = c.Email
		}
		log.Info("pipeline: owner found",
			zap.String("owner", owner.OwnerName),
			zap.String("contact", string(c.Outcome)),
			zap.String("contact_reason", c.Reason),
		)
	} else {
		changes[model.ColOwnerName] = model.OwnerNotFound
		changes[model.ColStatus] = string(model.StatusNoBizfile)
		if bp := strings.TrimSpace(lead.BizPhone); bp != "" {
			changes[model.ColBestPhone] = bp
		}
		log.Info("pipeline: owner not found, using business phone",
			zap.String("registry", string(owner.Outcome)),
			zap.String("reason", owner.Reason),
			zap.Bool("biz_phone", lead.BizPhone != ""),
		)
	}

	if err := p.update(ctx, table, lead.Row, changes); err != nil {
		res.Error = err.Error()
		return res
	}
	lead.Apply(changes)
	res.Status = lead.Status

	if strings.TrimSpace(lead.BestPhone) == "" && strings.TrimSpace(lead.BestEmail) == "" {
		log.Info("pipeline: no contact, marking no_contact")
		if err := p.update(ctx, table, lead.Row, model.Changes{model.ColStatus: string(model.StatusNoContact)}); err != nil {
			res.Error = err.Error()
		}
		res.Status = model.StatusNoContact
		return res
	}

	return p.touch1(ctx, table, ledger, lead, res)
}

// touch1 sends the intro SMS. The phone is reserved in the ledger for the
// duration of the send so that no other lead can text it concurrently.
func (p *Pipeline) touch1(ctx context.Context, table Table, ledger *outreach.PhoneLedger, lead model.Lead, res model.LeadResult) model.LeadResult {
	log := zap.L().With(zap.String("business", lead.BusinessName), zap.Int("row", lead.Row))

	number := strings.TrimSpace(lead.BestPhone)
	if number == "" {
		number = strings.TrimSpace(lead.BizPhone)
	}
	stamp := p.stamp()

	if number == "" {
		changes := model.Changes{
			model.ColSMSSent:     model.FlagNoPhone,
			model.ColDripStep:    "0",
			model.ColNextContact: "",
			model.ColStatus:      string(model.StatusNoContact),
			model.ColNotes:       "Touch 1 failed " + stamp,
		}
		log.Info("pipeline: email only, touch 1 needs a phone")
		if err := p.update(ctx, table, lead.Row, changes); err != nil {
			res.Error = err.Error()
		}
		res.Status = model.StatusNoContact
		return res
	}

	if phone.E164(number) == "" {
		log.Warn("pipeline: touch 1 failed, phone has no usable digits", zap.String("phone", number))
		res.Status = model.StatusOutreachFailed
		if err := p.update(ctx, table, lead.Row, touch1Failed(stamp)); err != nil {
			res.Error = err.Error()
		}
		return res
	}

	if !ledger.Reserve(number) {
		log.Info("pipeline: phone already received touch 1 elsewhere, skipping", zap.String("phone", phone.E164(number)))
		res.Skipped = skipPhoneTaken
		return res
	}

	text := outreach.Touch1(p.params(lead))
	err := p.sms.SendSMS(ctx, phone.E164(number), text)
	var changes model.Changes
	if err == nil {
		ledger.MarkSent(number)
		res.Touch1Sent = true
		res.Status = model.StatusTouch1Sent
		changes = model.Changes{
			model.ColSMSSent:     model.FlagYes,
			model.ColDripStep:    "1",
			model.ColNextContact: p.daysFromToday(p.cfg.Touch2Delay),
			model.ColStatus:      string(model.StatusTouch1Sent),
			model.ColNotes:       "Touch 1 sent " + stamp,
		}
		log.Info("pipeline: touch 1 sent")
	} else {
		ledger.Release(number)
		res.Status = model.StatusOutreachFailed
		changes = touch1Failed(stamp)
		log.Warn("pipeline: touch 1 failed", zap.Error(err))
	}

	if uerr := p.update(ctx, table, lead.Row, changes); uerr != nil {
		res.Error = uerr.Error()
	}
	return res
}

func touch1Failed(stamp string) model.Changes {
	return model.Changes{
		model.ColSMSSent:     model.FlagFailed,
		model.ColDripStep:    "0",
		model.ColNextContact: "",
		model.ColStatus:      string(model.StatusOutreachFailed),
		model.ColNotes:       "Touch 1 failed " + stamp,
	}
}

// update persists changes for a stored row. Rows never persisted are skipped.
func (p *Pipeline) update(ctx context.Context, table Table, row int, changes model.Changes) error {
	if row < 2 || len(changes) == 0 {
		return nil
	}
	if err := table.Update(ctx, row, changes); err != nil {
		zap.L().Error("pipeline: row update failed", zap.Int("row", row), zap.Error(err))
		return err
	}
	return nil
}

func stepString(n int) string { return strconv.Itoa(n) }
