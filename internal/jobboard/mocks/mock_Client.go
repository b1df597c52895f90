// Package mocks provides test doubles for the jobboard client.
package mocks

import (
	"context"

	jobboard "github.com/sells-group/jobsearch-cli/internal/jobboard"
	model "github.com/sells-group/jobsearch-cli/internal/model"
	resilience "github.com/sells-group/jobsearch-cli/internal/resilience"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
	id string
}

var _ jobboard.Client = (*MockClient)(nil)

// NewMockClient creates a MockClient reporting id and registers cleanup
// assertions on t.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}, id string) *MockClient {
	m := &MockClient{id: id}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FetchJobs provides a mock function with given fields: ctx, req, accessToken
func (_m *MockClient) FetchJobs(ctx context.Context, req model.SearchRequest, accessToken string) ([]model.Listing, error) {
	ret := _m.Called(ctx, req, accessToken)

	if len(ret) == 0 {
		panic("no return value specified for FetchJobs")
	}

	var r0 []model.Listing
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.SearchRequest, string) ([]model.Listing, error)); ok {
		return rf(ctx, req, accessToken)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Listing)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// GetJobDetails provides a mock function with given fields: ctx, externalID, accessToken
func (_m *MockClient) GetJobDetails(ctx context.Context, externalID, accessToken string) (*model.Listing, error) {
	ret := _m.Called(ctx, externalID, accessToken)

	if len(ret) == 0 {
		panic("no return value specified for GetJobDetails")
	}

	var r0 *model.Listing
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*model.Listing, error)); ok {
		return rf(ctx, externalID, accessToken)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Listing)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ValidateToken provides a mock function with given fields: ctx, accessToken
func (_m *MockClient) ValidateToken(ctx context.Context, accessToken string) (bool, error) {
	ret := _m.Called(ctx, accessToken)

	if len(ret) == 0 {
		panic("no return value specified for ValidateToken")
	}

	return ret.Bool(0), ret.Error(1)
}

// ID returns the provider id given to NewMockClient.
func (_m *MockClient) ID() string {
	return _m.id
}

// DefaultRateLimit returns the package default ceilings.
func (_m *MockClient) DefaultRateLimit() resilience.WindowLimits {
	return resilience.DefaultWindowLimits
}
