package outreach

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTouch1_CategoryAndFallback(t *testing.T) {
	msg := Touch1(Params{Name: "Chris", Category: " Electrician "})
	assert.Contains(t, msg, "Hi Chris!")
	assert.Contains(t, msg, "electrical contractors")
	assert.Contains(t, msg, "I'm Natalie from Equestro Labs")

	msg = Touch1(Params{Name: "there", Category: "roofer", Sender: "Sam"})
	assert.Contains(t, msg, "Hi there!")
	assert.Contains(t, msg, "plumbing companies")
	assert.Contains(t, msg, "I'm Sam from")
	assert.NotContains(t, msg, "{")
}

func TestTouch2_UsesArea(t *testing.T) {
	msg := Touch2(Params{Name: "Ana", Category: "plumber", Area: StripArea("Morgan Hill CA")})
	assert.Contains(t, msg, "a local plumbing company in Morgan Hill recently")
	assert.NotContains(t, msg, "{area}")
}

func TestTouch3_SubjectAndBody(t *testing.T) {
	subject, body := Touch3(Params{
		Name:          "Ana",
		Business:      "Blue Wave Pools",
		Category:      "pool cleaner",
		Area:          "Gilroy",
		Website:       "equestrolabs.com",
		CallbackPhone: "+14087896543",
	})
	assert.Equal(t, "Following up — no more route chaos for Blue Wave Pools", subject)
	assert.Contains(t, body, "Hi Ana,")
	assert.Contains(t, body, "businesses like Blue Wave Pools")
	assert.Contains(t, body, "A local pool cleaner company in Gilroy")
	assert.Contains(t, body, "Equestro Labs (equestrolabs.com)")
	assert.Contains(t, body, "Text/call: +14087896543")
	assert.NotContains(t, body, "{")
}

func TestFirstName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"CHRIS JOHNSON", "Chris"},
		{"maria de la cruz", "Maria"},
		{"not found", "there"},
		{"Unknown Owner", "there"},
		{"N/A", "there"},
		{"", "there"},
		{"   ", "there"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstName(tt.in), tt.in)
	}
}

func TestStripArea(t *testing.T) {
	assert.Equal(t, "Morgan Hill", StripArea("Morgan Hill CA"))
	assert.Equal(t, "San Jose", StripArea(" San Jose "))
	assert.Equal(t, "your area", StripArea(""))
}

func TestPhoneLedger_ReserveReleaseMarkSent(t *testing.T) {
	l := NewPhoneLedger(map[string]struct{}{"+14085550100": {}})

	assert.True(t, l.Sent("(408) 555-0100"))
	assert.False(t, l.Reserve("408-555-0100"))

	assert.True(t, l.Reserve("(408) 555-0111"))
	assert.False(t, l.Reserve("+1 408 555 0111"), "reserved phone cannot be claimed twice")

	l.Release("(408) 555-0111")
	assert.True(t, l.Reserve("4085550111"))

	l.MarkSent("4085550111")
	assert.True(t, l.Sent("+14085550111"))
	assert.False(t, l.Reserve("(408) 555-0111"))
	assert.Equal(t, 2, l.Len())

	assert.False(t, l.Reserve(""))
}

func TestPhoneLedger_ConcurrentReserveSingleWinner(t *testing.T) {
	l := NewPhoneLedger(nil)
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Reserve("(650) 555-0142") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
