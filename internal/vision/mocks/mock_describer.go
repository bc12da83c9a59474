package mocks

import (
	"context"

	"scenevoice/internal/vision"

	"github.com/stretchr/testify/mock"
)

type MockDescriber struct {
	mock.Mock
}

func (m *MockDescriber) Describe(ctx context.Context, image []byte, format string) (*vision.Scene, error) {
	args := m.Called(ctx, image, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vision.Scene), args.Error(1)
}
