package contact

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/resilience"
	"github.com/equestrolabs/leadgen-cli/pkg/peoplesearch"
	"github.com/equestrolabs/leadgen-cli/pkg/peoplesearch/mocks"
)

func person(name, city string, phones []peoplesearch.Phone, emails ...string) peoplesearch.Person {
	p := peoplesearch.Person{FullName: name, City: city, State: "CA", Phones: phones}
	for _, e := range emails {
		p.Emails = append(p.Emails, peoplesearch.Email{Address: e})
	}
	return p
}

func TestScore(t *testing.T) {
	wireless := []peoplesearch.Phone{{Number: "4085550100", LineType: "WIRELESS"}}
	landline := []peoplesearch.Phone{{Number: "4085550101", LineType: "LANDLINE"}}

	tests := []struct {
		name string
		p    peoplesearch.Person
		city string
		want int
	}{
		{"phone and email", person("A", "", landline, "a@x.com"), "", 10},
		{"phone only", person("A", "", landline), "", 5},
		{"email only", person("A", "", nil, "a@x.com"), "", 3},
		{"wireless bonus", person("A", "", wireless), "", 9},
		{"exact city", person("A", "SACRAMENTO", landline), "Sacramento", 13},
		{"city substring", person("A", "WEST SACRAMENTO", landline), "Sacramento", 9},
		{"nothing", person("A", "Fresno", nil), "Sacramento", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.p, tt.city))
		})
	}
}

func TestPick_PrefersCompleteRecordInCity(t *testing.T) {
	people := []peoplesearch.Person{
		person("JOHN SMITH", "FRESNO", []peoplesearch.Phone{{Number: "5595550100", LineType: "LANDLINE"}}),
		person("JOHN SMITH", "SAN JOSE", []peoplesearch.Phone{{Number: "4085550123", LineType: "LANDLINE"}}, "John.Smith@Example.com"),
	}
	res := Pick(people, "San Jose")
	require.True(t, res.Found())
	assert.Equal(t, "(408) 555-0123", res.Phone)
	assert.Equal(t, "john.smith@example.com", res.Email)
	assert.Equal(t, "San Jose", res.City)
}

func TestPick_TiesKeepServiceOrder(t *testing.T) {
	people := []peoplesearch.Person{
		person("FIRST", "", []peoplesearch.Phone{{Number: "4085550001"}}),
		person("SECOND", "", []peoplesearch.Phone{{Number: "4085550002"}}),
	}
	assert.Equal(t, "FIRST", Pick(people, "").FullName)
}

func TestPick_WirelessPreferredOverFirstPhone(t *testing.T) {
	people := []peoplesearch.Person{person("A B", "", []peoplesearch.Phone{
		{Number: "4085550001", LineType: "LANDLINE"},
		{Number: "1-408-555-0002", LineType: "Wireless"},
	})}
	assert.Equal(t, "(408) 555-0002", Pick(people, "").Phone)
}

func TestPick_NoUsableContact(t *testing.T) {
	res := Pick([]peoplesearch.Person{person("A B", "", nil)}, "")
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Equal(t, model.ReasonNoContact, res.Reason)

	res = Pick(nil, "")
	assert.Equal(t, model.ReasonNoResults, res.Reason)
}

func TestResolve_ChrisJohnson(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, "Chris", "Johnson", "CA").Return([]peoplesearch.Person{
		person("CHRIS JOHNSON", "SACRAMENTO", []peoplesearch.Phone{{Number: "4087017037", LineType: "WIRELESS"}}),
	}, nil).Once()

	res := NewResolver(client).Resolve(context.Background(), "Chris", "Johnson", "CA", "Sacramento")
	require.True(t, res.Found())
	assert.Equal(t, "(408) 701-7037", res.Phone)
	assert.Empty(t, res.Email)
}

func TestResolve_NoClient(t *testing.T) {
	res := NewResolver(nil).Resolve(context.Background(), "Chris", "Johnson", "CA", "")
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Equal(t, model.ReasonNoCredentials, res.Reason)
}

func TestResolve_MissingName(t *testing.T) {
	client := mocks.NewMockClient(t)
	res := NewResolver(client).Resolve(context.Background(), "Cher", "", "CA", "")
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	client.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_ServiceFailureIsSwallowed(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, "Ana", "Reyes", "CA").
		Return(nil, &peoplesearch.StatusError{StatusCode: 500, Body: "boom"}).Once()

	res := NewResolver(client).Resolve(context.Background(), "Ana", "Reyes", "", "")
	assert.Equal(t, model.OutcomeError, res.Outcome)
	assert.Equal(t, reasonServiceError, res.Reason)
	assert.Contains(t, res.Error, "500")
	assert.False(t, res.Found())
}

func TestResolve_CacheAvoidsSecondCall(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, "Ana", "Reyes", "CA").Return([]peoplesearch.Person{
		person("ANA REYES", "OAKLAND", nil, "ana@example.com"),
	}, nil).Once()

	r := NewResolver(client, WithCache(time.Minute))
	first := r.Resolve(context.Background(), "Ana", "Reyes", "CA", "Oakland")
	second := r.Resolve(context.Background(), "ana", "reyes", "ca", "oakland")
	assert.Equal(t, first, second)
	assert.Equal(t, "ana@example.com", second.Email)
}

func TestResolve_CircuitOpens(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, "Ana", "Reyes", "CA").
		Return(nil, eris.New("connection refused")).Twice()

	cb := resilience.NewCircuitBreaker("peoplesearch", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	r := NewResolver(client, WithCircuitBreaker(cb))
	for i := 0; i < 2; i++ {
		assert.Equal(t, reasonServiceError, r.Resolve(context.Background(), "Ana", "Reyes", "CA", "").Reason)
	}

	res := r.Resolve(context.Background(), "Ana", "Reyes", "CA", "")
	assert.Equal(t, model.OutcomeError, res.Outcome)
	assert.Equal(t, model.ReasonCircuitOpen, res.Reason)
}

func TestSplitName(t *testing.T) {
	tests := []struct{ in, first, last string }{
		{"CHRIS JOHNSON", "CHRIS", "JOHNSON"},
		{"Maria de la Cruz", "Maria", "Cruz"},
		{"Cher", "Cher", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitName(tt.in)
		assert.Equal(t, tt.first, first)
		assert.Equal(t, tt.last, last)
	}
}
