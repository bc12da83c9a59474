package mocks

import (
	"context"

	"scenevoice/internal/speech"

	"github.com/stretchr/testify/mock"
)

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (*speech.Audio, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*speech.Audio), args.Error(1)
}
