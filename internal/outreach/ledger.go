package outreach

import (
	"sync"

	"github.com/equestrolabs/leadgen-cli/internal/phone"
)

// PhoneLedger tracks phones that received Touch 1 across every campaign
// table, plus phones with a send in flight. Phones are keyed in E.164 form.
type PhoneLedger struct {
	mu       sync.Mutex
	sent     map[string]struct{}
	reserved map[string]struct{}
}

// NewPhoneLedger seeds a ledger with already-texted phones.
func NewPhoneLedger(sent map[string]struct{}) *PhoneLedger {
	l := &PhoneLedger{
		sent:     make(map[string]struct{}, len(sent)),
		reserved: make(map[string]struct{}),
	}
	for p := range sent {
		if k := phone.E164(p); k != "" {
			l.sent[k] = struct{}{}
		}
	}
	return l
}

// Reserve claims p for a Touch 1 send. It returns false if p was already
// sent or another send holds it.
func (l *PhoneLedger) Reserve(p string) bool {
	k := phone.E164(p)
	if k == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sent[k]; ok {
		return false
	}
	if _, ok := l.reserved[k]; ok {
		return false
	}
	l.reserved[k] = struct{}{}
	return true
}

// Release drops a reservation after a failed send.
func (l *PhoneLedger) Release(p string) {
	k := phone.E164(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, k)
}

// MarkSent records a delivered Touch 1 and drops its reservation.
func (l *PhoneLedger) MarkSent(p string) {
	k := phone.E164(p)
	if k == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, k)
	l.sent[k] = struct{}{}
}

// Sent reports whether p already received Touch 1.
func (l *PhoneLedger) Sent(p string) bool {
	k := phone.E164(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[k]
	return ok
}

// Len returns the number of phones already sent.
func (l *PhoneLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}
