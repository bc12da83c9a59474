package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"scenevoice/internal/model"
	"scenevoice/internal/speech"
	speechMocks "scenevoice/internal/speech/mocks"
	"scenevoice/internal/storage"
	storeMocks "scenevoice/internal/storage/mocks"
	"scenevoice/internal/vision"
	visionMocks "scenevoice/internal/vision/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory Cache for tests.
type fakeCache struct {
	entries map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value string) error {
	c.entries[key] = value
	return nil
}

func testScene() *vision.Scene {
	return &vision.Scene{
		Caption: "a dog running on a beach",
		Detections: []model.Detection{
			{Label: "dog", Confidence: 0.95, Box: model.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
		},
	}
}

func TestAnalysisService_Analyze(t *testing.T) {
	ctx := context.Background()
	imageBytes := []byte("fake image content")

	tests := []struct {
		name             string
		originalFilename string
		size             int64
		reader           io.Reader
		setupMocks       func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer)
		wantErr          error
		wantErrMsg       string
	}{
		{
			name:             "happy path",
			originalFilename: "photo.jpg",
			size:             int64(len(imageBytes)),
			reader:           bytes.NewReader(imageBytes),
			setupMocks: func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer) {
				mStore.On("Save", ctx, mock.MatchedBy(func(name string) bool {
					return strings.HasSuffix(name, ".jpg")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil).Once()

				mVision.On("Describe", ctx, imageBytes, "jpg").Return(testScene(), nil).Once()
				mSpeech.On("Synthesize", ctx, "a dog running on a beach").
					Return(&speech.Audio{Data: []byte("mp3!"), Format: "mp3"}, nil).Once()

				mStore.On("Save", ctx, mock.MatchedBy(func(name string) bool {
					return strings.HasSuffix(name, ".mp3")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil).Once()
			},
		},
		{
			name:             "uppercase extension accepted",
			originalFilename: "PHOTO.PNG",
			size:             int64(len(imageBytes)),
			reader:           bytes.NewReader(imageBytes),
			setupMocks: func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer) {
				mStore.On("Save", ctx, mock.MatchedBy(func(name string) bool {
					return strings.HasSuffix(name, ".png")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil).Once()
				mVision.On("Describe", ctx, imageBytes, "png").Return(testScene(), nil).Once()
				mSpeech.On("Synthesize", ctx, mock.Anything).
					Return(&speech.Audio{Data: []byte("mp3!"), Format: "mp3"}, nil).Once()
				mStore.On("Save", ctx, mock.MatchedBy(func(name string) bool {
					return strings.HasSuffix(name, ".mp3")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil).Once()
			},
		},
		{
			name:             "nil reader",
			originalFilename: "photo.jpg",
			reader:           nil,
			setupMocks:       func(*storeMocks.MockStorage, *visionMocks.MockDescriber, *speechMocks.MockSynthesizer) {},
			wantErr:          ErrReaderNil,
		},
		{
			name:             "unsupported extension",
			originalFilename: "clip.gif",
			size:             10,
			reader:           strings.NewReader("gif bytes!"),
			setupMocks:       func(*storeMocks.MockStorage, *visionMocks.MockDescriber, *speechMocks.MockSynthesizer) {},
			wantErr:          ErrUnsupportedMedia,
		},
		{
			name:             "no extension",
			originalFilename: "photo",
			size:             10,
			reader:           strings.NewReader("some bytes"),
			setupMocks:       func(*storeMocks.MockStorage, *visionMocks.MockDescriber, *speechMocks.MockSynthesizer) {},
			wantErr:          ErrUnsupportedMedia,
		},
		{
			name:             "declared size too large",
			originalFilename: "photo.jpg",
			size:             DefaultMaxUploadBytes + 1,
			reader:           strings.NewReader("tiny"),
			setupMocks:       func(*storeMocks.MockStorage, *visionMocks.MockDescriber, *speechMocks.MockSynthesizer) {},
			wantErr:          ErrPayloadTooLarge,
		},
		{
			name:             "describer error rolls back upload",
			originalFilename: "photo.jpg",
			size:             int64(len(imageBytes)),
			reader:           bytes.NewReader(imageBytes),
			setupMocks: func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer) {
				mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil).Once()
				mVision.On("Describe", ctx, imageBytes, "jpg").
					Return(nil, &vision.ProcessingError{Err: errors.New("decode image: bad data")}).Once()
				mStore.On("Delete", ctx, mock.Anything).Return(nil).Once()
			},
			wantErrMsg: "decode image: bad data",
		},
		{
			name:             "synthesizer error rolls back upload",
			originalFilename: "photo.jpg",
			size:             int64(len(imageBytes)),
			reader:           bytes.NewReader(imageBytes),
			setupMocks: func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer) {
				mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil).Once()
				mVision.On("Describe", ctx, imageBytes, "jpg").Return(testScene(), nil).Once()
				mSpeech.On("Synthesize", ctx, mock.Anything).
					Return(nil, errors.New("tts unavailable")).Once()
				mStore.On("Delete", ctx, mock.Anything).Return(nil).Once()
			},
			wantErrMsg: "synthesize caption: tts unavailable",
		},
		{
			name:             "storage error before any model call",
			originalFilename: "photo.jpg",
			size:             int64(len(imageBytes)),
			reader:           bytes.NewReader(imageBytes),
			setupMocks: func(mStore *storeMocks.MockStorage, mVision *visionMocks.MockDescriber, mSpeech *speechMocks.MockSynthesizer) {
				mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full")).Once()
			},
			wantErrMsg: "save upload: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mVision := new(visionMocks.MockDescriber)
			mSpeech := new(speechMocks.MockSynthesizer)
			svc := NewAnalysisService(mStore, mVision, mSpeech, Options{})

			tt.setupMocks(mStore, mVision, mSpeech)

			res, err := svc.Analyze(ctx, tt.reader, tt.originalFilename, tt.size)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				require.NotNil(t, res)
				assert.Equal(t, "a dog running on a beach", res.Caption)
				assert.Len(t, res.Detections, 1)
				assert.Regexp(t, `^/audio/[0-9a-f-]{36}\.mp3$`, res.AudioURL)
			}

			mStore.AssertExpectations(t)
			mVision.AssertExpectations(t)
			mSpeech.AssertExpectations(t)
		})
	}
}

func TestAnalysisService_Analyze_OversizedStream(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := NewAnalysisService(mStore, new(visionMocks.MockDescriber), new(speechMocks.MockSynthesizer), Options{
		MaxUploadBytes: 8,
	})

	// Declared size lies; the limited reader still catches the overrun
	// before anything is written.
	_, err := svc.Analyze(ctx, strings.NewReader("way more than eight bytes"), "big.jpg", 4)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	mStore.AssertExpectations(t)
}

func TestAnalysisService_Analyze_DistinctIdentifiers(t *testing.T) {
	ctx := context.Background()
	imageBytes := []byte("same image twice")

	mStore := new(storeMocks.MockStorage)
	mVision := new(visionMocks.MockDescriber)
	mSpeech := new(speechMocks.MockSynthesizer)
	mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	mVision.On("Describe", ctx, imageBytes, "jpg").Return(testScene(), nil)
	mSpeech.On("Synthesize", ctx, mock.Anything).Return(&speech.Audio{Data: []byte("mp3!"), Format: "mp3"}, nil)

	svc := NewAnalysisService(mStore, mVision, mSpeech, Options{})

	first, err := svc.Analyze(ctx, bytes.NewReader(imageBytes), "photo.jpg", int64(len(imageBytes)))
	require.NoError(t, err)
	second, err := svc.Analyze(ctx, bytes.NewReader(imageBytes), "photo.jpg", int64(len(imageBytes)))
	require.NoError(t, err)

	assert.NotEqual(t, first.AudioURL, second.AudioURL)
	assert.Equal(t, first.Caption, second.Caption)
}

func TestAnalysisService_Analyze_CacheHitSkipsDescriber(t *testing.T) {
	ctx := context.Background()
	imageBytes := []byte("cached image")

	cache := newFakeCache()
	encoded, err := json.Marshal(testScene())
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, sceneCacheKey(imageBytes), string(encoded)))

	mStore := new(storeMocks.MockStorage)
	mVision := new(visionMocks.MockDescriber) // no expectations: must not be called
	mSpeech := new(speechMocks.MockSynthesizer)
	mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	mSpeech.On("Synthesize", ctx, "a dog running on a beach").
		Return(&speech.Audio{Data: []byte("mp3!"), Format: "mp3"}, nil).Once()

	svc := NewAnalysisService(mStore, mVision, mSpeech, Options{
		Cache:  cache,
		Logger: log.New(io.Discard, "", 0),
	})

	res, err := svc.Analyze(ctx, bytes.NewReader(imageBytes), "photo.jpg", int64(len(imageBytes)))
	require.NoError(t, err)
	assert.Equal(t, "a dog running on a beach", res.Caption)
	assert.Len(t, res.Detections, 1)

	mVision.AssertExpectations(t)
	mSpeech.AssertExpectations(t)
}

func TestAnalysisService_Analyze_CachePopulatedOnMiss(t *testing.T) {
	ctx := context.Background()
	imageBytes := []byte("fresh image")
	cache := newFakeCache()

	mStore := new(storeMocks.MockStorage)
	mVision := new(visionMocks.MockDescriber)
	mSpeech := new(speechMocks.MockSynthesizer)
	mStore.On("Save", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	mVision.On("Describe", ctx, imageBytes, "jpg").Return(testScene(), nil).Once()
	mSpeech.On("Synthesize", ctx, mock.Anything).Return(&speech.Audio{Data: []byte("mp3!"), Format: "mp3"}, nil)

	svc := NewAnalysisService(mStore, mVision, mSpeech, Options{Cache: cache})

	_, err := svc.Analyze(ctx, bytes.NewReader(imageBytes), "photo.jpg", int64(len(imageBytes)))
	require.NoError(t, err)

	_, found, err := cache.Get(ctx, sceneCacheKey(imageBytes))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAnalysisService_GetAudio(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		filename   string
		setupMocks func(mStore *storeMocks.MockStorage)
		wantErr    error
	}{
		{
			name:     "happy path",
			filename: "abc.mp3",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Open", ctx, "abc.mp3").
					Return(io.NopCloser(strings.NewReader("mp3!")), storage.ObjectInfo{
						Name:        "abc.mp3",
						Size:        4,
						ContentType: "audio/mpeg",
					}, nil)
			},
		},
		{
			name:       "empty name",
			filename:   "",
			setupMocks: func(*storeMocks.MockStorage) {},
			wantErr:    ErrInvalidFilename,
		},
		{
			name:       "path traversal",
			filename:   "../secret.mp3",
			setupMocks: func(*storeMocks.MockStorage) {},
			wantErr:    ErrInvalidFilename,
		},
		{
			name:       "nested path",
			filename:   "a/b.mp3",
			setupMocks: func(*storeMocks.MockStorage) {},
			wantErr:    ErrInvalidFilename,
		},
		{
			name:     "missing artifact",
			filename: "missing.mp3",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Open", ctx, "missing.mp3").
					Return(nil, storage.ObjectInfo{}, storage.ErrNotExist)
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "storage error",
			filename: "broken.mp3",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Open", ctx, "broken.mp3").
					Return(nil, storage.ObjectInfo{}, errors.New("io error"))
			},
			wantErr: errors.New("io error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := NewAnalysisService(mStore, nil, nil, Options{})

			tt.setupMocks(mStore)

			rc, info, err := svc.GetAudio(ctx, tt.filename)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrInvalidFilename) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, rc)
			} else {
				require.NoError(t, err)
				require.NotNil(t, rc)
				defer rc.Close()
				data, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, "mp3!", string(data))
				assert.Equal(t, "audio/mpeg", info.ContentType)
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		ok       bool
	}{
		{"a.jpg", "jpg", true},
		{"a.JPG", "jpg", true},
		{"a.jpeg", "jpeg", true},
		{"a.png", "png", true},
		{"a.gif", "gif", false},
		{"a.mp3", "mp3", false},
		{"noext", "", false},
		{"weird.tar.png", "png", true},
	}
	for _, tt := range tests {
		ext, ok := allowedExtension(tt.filename)
		assert.Equal(t, tt.ext, ext, tt.filename)
		assert.Equal(t, tt.ok, ok, tt.filename)
	}
}
