package session

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAccountResolver struct {
	mock.Mock
}

func NewMockAccountResolver() *MockAccountResolver {
	return &MockAccountResolver{}
}

func (m *MockAccountResolver) AccountName(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
