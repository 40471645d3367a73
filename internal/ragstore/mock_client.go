package ragstore

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient Client接口的mock实现
type MockClient struct {
	mock.Mock
}

// NewMockClient 创建mock客户端，测试结束时校验期望
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Store mock方法
func (m *MockClient) Store(ctx context.Context, chunks []string) (*StoreResult, error) {
	args := m.Called(ctx, chunks)
	var result *StoreResult
	if v := args.Get(0); v != nil {
		result = v.(*StoreResult)
	}
	return result, args.Error(1)
}

// Search mock方法
func (m *MockClient) Search(ctx context.Context, query string, topK int) ([]string, error) {
	args := m.Called(ctx, query, topK)
	var results []string
	if v := args.Get(0); v != nil {
		results = v.([]string)
	}
	return results, args.Error(1)
}

// Health mock方法
func (m *MockClient) Health(ctx context.Context) (*HealthStatus, error) {
	args := m.Called(ctx)
	var status *HealthStatus
	if v := args.Get(0); v != nil {
		status = v.(*HealthStatus)
	}
	return status, args.Error(1)
}
