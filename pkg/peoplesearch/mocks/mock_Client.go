// Package mocks provides test doubles for the peoplesearch client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	peoplesearch "github.com/equestrolabs/leadgen-cli/pkg/peoplesearch"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, first, last, state
func (_m *MockClient) Search(ctx context.Context, first string, last string, state string) ([]peoplesearch.Person, error) {
	ret := _m.Called(ctx, first, last, state)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 []peoplesearch.Person
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) ([]peoplesearch.Person, error)); ok {
		return rf(ctx, first, last, state)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]peoplesearch.Person)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
