package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mock types ---

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Provider() BackendProvider {
	args := m.Called()
	return args.Get(0).(BackendProvider)
}

func (m *MockBackend) Infer(ctx context.Context, req *Request) (*Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	mockBackend := new(MockBackend)
	mockBackend.On("Provider").Return(BackendProviderWhisperCPP)

	reg.Register(mockBackend)

	got, ok := reg.Get(BackendProviderWhisperCPP)
	assert.True(t, ok)
	assert.Equal(t, mockBackend, got)

	// Ensure a missing backend returns false
	_, ok = reg.Get(BackendProviderOpenAI)
	assert.False(t, ok)

	assert.Equal(t, []BackendProvider{BackendProviderWhisperCPP}, reg.Providers())

	mockBackend.AssertExpectations(t)
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry()

	b1 := new(MockBackend)
	b2 := new(MockBackend)
	b1.On("Provider").Return(BackendProviderStableDiffusionCPP)
	b2.On("Provider").Return(BackendProviderWhisperCPP)

	b1.On("Close").Return(nil).Once()
	b2.On("Close").Return(nil).Once()

	reg.Register(b1)
	reg.Register(b2)

	assert.NoError(t, reg.Close())

	b1.AssertExpectations(t)
	b2.AssertExpectations(t)
}

func TestRegistry_CloseErrorPropagation(t *testing.T) {
	reg := NewRegistry()

	b1 := new(MockBackend)
	b2 := new(MockBackend)
	b1.On("Provider").Return(BackendProviderStableDiffusionCPP)
	b2.On("Provider").Return(BackendProviderWhisperCPP)

	b1.On("Close").Return(errors.New("close failed")).Once()
	b2.On("Close").Return(nil).Once()

	reg.Register(b1)
	reg.Register(b2)

	err := reg.Close()
	assert.EqualError(t, err, "close failed")

	b1.AssertExpectations(t)
	b2.AssertExpectations(t)
}
