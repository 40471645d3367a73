package llm

import (
	"context"
	"iter"

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

// ChatStream mock方法
func (m *MockClient) ChatStream(ctx context.Context, messages []Message, options ...ChatOption) (iter.Seq2[string, error], error) {
	args := m.Called(ctx, messages, options)
	var seq iter.Seq2[string, error]
	if v := args.Get(0); v != nil {
		seq = v.(iter.Seq2[string, error])
	}
	return seq, args.Error(1)
}

// Chat mock方法
func (m *MockClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	args := m.Called(ctx, messages, options)
	var resp *Response
	if v := args.Get(0); v != nil {
		resp = v.(*Response)
	}
	return resp, args.Error(1)
}

// Name mock方法
func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}

// SliceSeq 将固定的增量列表包装为序列，err非空时在末尾产出
func SliceSeq(deltas []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, d := range deltas {
			if !yield(d, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}
