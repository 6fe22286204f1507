// Package mocks provides test doubles for the leadapi client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	leadapi "github.com/equestrolabs/leadgen-cli/pkg/leadapi"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// FetchLeads provides a mock function with given fields: ctx, area, category
func (_m *MockClient) FetchLeads(ctx context.Context, area string, category string) ([]leadapi.Listing, error) {
	ret := _m.Called(ctx, area, category)

	if len(ret) == 0 {
		panic("no return value specified for FetchLeads")
	}

	var r0 []leadapi.Listing
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) ([]leadapi.Listing, error)); ok {
		return rf(ctx, area, category)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]leadapi.Listing)
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
