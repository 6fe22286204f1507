// Package outreach holds the static drip message copy and the cross-campaign
// ledger of phones that have already received Touch 1.
package outreach

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCategory is used for categories without their own copy.
const DefaultCategory = "plumber"

// Params fills the message placeholders.
type Params struct {
	Name          string
	Business      string
	Category      string
	Area          string
	Sender        string
	Website       string
	CallbackPhone string
}

func (p Params) replacer() *strings.Replacer {
	sender := p.Sender
	if sender == "" {
		sender = "Natalie"
	}
	return strings.NewReplacer(
		"{name}", p.Name,
		"{business}", p.Business,
		"{category}", p.Category,
		"{area}", p.Area,
		"{sender}", sender,
		"{website}", p.Website,
		"{callback_phone}", p.CallbackPhone,
	)
}

var touch1SMS = map[string]string{
	"plumber": "Hi {name}! I'm {sender} from Equestro Labs. We help plumbing companies " +
		"eliminate double-bookings and auto-dispatch jobs with AI — no new software to learn. " +
		"Can I send you a bit more info over text? 😊",
	"electrician": "Hi {name}! I'm {sender} from Equestro Labs. We help electrical contractors " +
		"automate scheduling and route techs smarter with AI. " +
		"Mind if I shoot you a few details over text?",
	"hvac": "Hi {name}! I'm {sender} from Equestro Labs. We help HVAC companies cut " +
		"dispatch time and stop scheduling conflicts with AI. " +
		"Can I send you a bit more info over text?",
	"landscaper": "Hi {name}! I'm {sender} from Equestro Labs. We help landscaping businesses " +
		"optimize crew routes and automate bookings with AI. " +
		"Mind if I send over a few details?",
	"pest control": "Hi {name}! I'm {sender} from Equestro Labs. We help pest control companies " +
		"auto-schedule jobs and route techs efficiently with AI. " +
		"Can I share a bit more over text?",
	"locksmith": "Hi {name}! I'm {sender} from Equestro Labs. We help locksmiths dispatch " +
		"faster and avoid double-bookings with AI. " +
		"Mind if I send a few details over text?",
	"pool cleaner": "Hi {name}! I'm {sender} from Equestro Labs. We help pool service companies " +
		"eliminate route chaos and double-bookings — AI scheduling that adapts when " +
		"techs call out or customers cancel, no more rebuilding routes from scratch. " +
		"Mind if I send a few details over text?",
}

var touch2SMS = map[string]string{
	"plumber": "Hey {name}, {sender} again from Equestro Labs! 👋 " +
		"Just thought I'd mention — a local plumbing company in {area} recently " +
		"set up our AI scheduling and saw a significant jump in booked jobs within " +
		"the first few weeks. Happy to text you the details if you're curious!",
	"electrician": "Hey {name}, {sender} from Equestro Labs here! " +
		"Quick follow-up — an electrical contractor nearby just rolled out our " +
		"AI dispatch and reported a big jump in completed jobs per day. " +
		"Want me to text you more about how it works?",
	"hvac": "Hey {name}, {sender} again! 👋 " +
		"Heads up — a local HVAC company in your area just started using our AI " +
		"scheduling and saw a major increase in leads booked. " +
		"Happy to share more details over text if you're interested!",
	"landscaper": "Hey {name}, {sender} from Equestro Labs! " +
		"Just wanted to follow up — a landscaping company nearby just set up our " +
		"route optimization AI and saw their crews finishing significantly more " +
		"jobs per day. Want me to text you the details?",
	"pest control": "Hey {name}, {sender} here again! " +
		"A local pest control company just went live with our AI scheduling and " +
		"saw a noticeable jump in bookings. " +
		"Mind if I text you a quick overview of how it works?",
	"locksmith": "Hey {name}, {sender} from Equestro Labs! " +
		"Quick heads up — a locksmith in {area} just launched our AI dispatch " +
		"and significantly cut their response time. " +
		"Can I send you a bit more info over text?",
	"pool cleaner": "Hey {name}, {sender} from Equestro Labs! " +
		"Quick follow-up — a pool service company in {area} just rolled out our " +
		"route optimization and cut wasted drive time by 20–30% and reschedules by a lot. " +
		"Want me to text you more about how it works?",
}

var touch3Subjects = map[string]string{
	"plumber":      "Following up — AI scheduling for {business}",
	"electrician":  "Following up — smarter dispatch for {business}",
	"hvac":         "Following up — eliminate scheduling conflicts at {business}",
	"landscaper":   "Following up — route optimization for {business}",
	"pest control": "Following up — AI job scheduling for {business}",
	"locksmith":    "Following up — faster dispatch for {business}",
	"pool cleaner": "Following up — no more route chaos for {business}",
}

const touch3Body = `Hi {name},

I've reached out a couple of times over text — just wanted to follow up properly with a quick email.

I'm {sender} from Equestro Labs ({website}). We build lightweight AI tools for field-service businesses like {business}, specifically:

  • Smart scheduling that prevents double-bookings automatically
  • Route optimization that saves techs 20–40 min per day
  • Automatic dispatch — the right person goes to the right job, every time

A local {category} company in {area} recently set up our system and saw a significant jump in jobs booked within their first few weeks — and they were up and running in under a week with no new software to learn from scratch.

Would love to share a few more details if you're open to it. Feel free to reply to this email or just text me directly at {callback_phone} — happy to keep things simple and answer any questions over text.

Best,
{sender}
Equestro Labs | {website}
Text/call: {callback_phone}
`

// NormalizeCategory lowercases and trims a category.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func pick(m map[string]string, category string) string {
	if t, ok := m[NormalizeCategory(category)]; ok {
		return t
	}
	return m[DefaultCategory]
}

// Touch1 renders the intro SMS.
func Touch1(p Params) string {
	return p.replacer().Replace(pick(touch1SMS, p.Category))
}

// Touch2 renders the competitor follow-up SMS.
func Touch2(p Params) string {
	return p.replacer().Replace(pick(touch2SMS, p.Category))
}

// Touch3 renders the follow-up email subject and body.
func Touch3(p Params) (subject, body string) {
	r := p.replacer()
	return r.Replace(pick(touch3Subjects, p.Category)), r.Replace(touch3Body)
}

var placeholderNames = map[string]bool{
	"not found": true, "not": true, "unknown": true, "n/a": true, "none": true, "": true,
}

// FirstName returns the owner's title-cased first name, or "there" when the
// name is missing or a placeholder.
func FirstName(owner string) string {
	owner = strings.TrimSpace(owner)
	if placeholderNames[strings.ToLower(owner)] {
		return "there"
	}
	first := strings.Fields(owner)[0]
	if placeholderNames[strings.ToLower(first)] {
		return "there"
	}
	return cases.Title(language.English).String(strings.ToLower(first))
}

// StripArea drops the " CA" state suffix from an area for message copy.
// An empty area reads "your area".
func StripArea(area string) string {
	area = strings.TrimSpace(area)
	if area == "" {
		return "your area"
	}
	return strings.TrimSpace(strings.ReplaceAll(area, " CA", ""))
}
