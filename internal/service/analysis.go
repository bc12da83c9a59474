package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"scenevoice/internal/model"
	"scenevoice/internal/speech"
	"scenevoice/internal/storage"
	"scenevoice/internal/vision"
)

var (
	ErrReaderNil        = errors.New("reader is nil")
	ErrUnsupportedMedia = errors.New("unsupported media type: only jpg, jpeg and png are allowed")
	ErrPayloadTooLarge  = errors.New("file size exceeds the upload limit")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrNotFound         = errors.New("audio file not found")
)

// DefaultMaxUploadBytes caps uploads at 5 MiB, matching the original service.
const DefaultMaxUploadBytes = 5 * 1024 * 1024

var allowedExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// AnalysisResult is the service-level DTO returned by Analyze.
type AnalysisResult struct {
	Caption    string            `json:"caption"`
	Detections []model.Detection `json:"detections"`
	AudioURL   string            `json:"audio_url"`
}

// AnalysisService defines the use cases for the scene-to-speech pipeline.
type AnalysisService interface {
	// Analyze validates the upload, persists the original, describes the
	// scene, synthesizes speech for the caption, persists the audio under
	// the same stem, and returns the assembled result.
	Analyze(ctx context.Context, r io.Reader, originalFilename string, size int64) (*AnalysisResult, error)

	// GetAudio streams a previously generated artifact by filename.
	GetAudio(ctx context.Context, filename string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Cache holds scene results keyed by image digest.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// Options tune the service; zero values fall back to defaults.
type Options struct {
	MaxUploadBytes int64
	Cache          Cache       // optional: scene cache
	Logger         *log.Logger // optional
}

// analysisService is a concrete implementation of AnalysisService.
type analysisService struct {
	store     storage.Storage
	describer vision.Describer
	synth     speech.Synthesizer
	maxBytes  int64
	cache     Cache
	logger    *log.Logger
}

// NewAnalysisService constructs a new AnalysisService.
func NewAnalysisService(store storage.Storage, describer vision.Describer, synth speech.Synthesizer, opts Options) AnalysisService {
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &analysisService{
		store:     store,
		describer: describer,
		synth:     synth,
		maxBytes:  maxBytes,
		cache:     opts.Cache,
		logger:    logger,
	}
}

func (s *analysisService) Analyze(ctx context.Context, r io.Reader, originalFilename string, size int64) (*AnalysisResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	ext, ok := allowedExtension(originalFilename)
	if !ok {
		return nil, ErrUnsupportedMedia
	}
	if size > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}

	// The image is needed in memory for hashing and the vision call anyway;
	// the limit also guards against senders that understate size.
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}

	id := model.NewArtifactID()
	imageName := id.ImageName(ext)

	if _, err := s.store.Save(ctx, imageName, bytes.NewReader(data), storage.SaveOptions{
		Size:        int64(len(data)),
		ContentType: allowedExtensions[ext],
	}); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	scene, err := s.describeScene(ctx, data, ext)
	if err != nil {
		s.discard(ctx, imageName)
		return nil, err
	}

	audio, err := s.synth.Synthesize(ctx, scene.Caption)
	if err != nil {
		s.discard(ctx, imageName)
		return nil, fmt.Errorf("synthesize caption: %w", err)
	}

	audioName := id.AudioName()
	if _, err := s.store.Save(ctx, audioName, bytes.NewReader(audio.Data), storage.SaveOptions{
		Size:        int64(len(audio.Data)),
		ContentType: "audio/mpeg",
	}); err != nil {
		s.discard(ctx, imageName)
		return nil, fmt.Errorf("save audio: %w", err)
	}

	return &AnalysisResult{
		Caption:    scene.Caption,
		Detections: scene.Detections,
		AudioURL:   "/audio/" + audioName,
	}, nil
}

// describeScene consults the cache before running the vision model, so the
// same image yields the same caption across requests.
func (s *analysisService) describeScene(ctx context.Context, data []byte, ext string) (*vision.Scene, error) {
	key := sceneCacheKey(data)

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Printf("scene cache get error: %v", err)
		}
		if found {
			var scene vision.Scene
			if err := json.Unmarshal([]byte(cached), &scene); err == nil {
				return &scene, nil
			}
			s.logger.Printf("scene cache entry unreadable, re-describing")
		}
	}

	scene, err := s.describer.Describe(ctx, data, ext)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(scene); err == nil {
			if err := s.cache.Set(ctx, key, string(encoded)); err != nil {
				s.logger.Printf("failed to set scene cache: %v", err)
			}
		}
	}
	return scene, nil
}

func (s *analysisService) GetAudio(ctx context.Context, filename string) (io.ReadCloser, storage.ObjectInfo, error) {
	// The original trusted the path segment; reject anything that is not a
	// clean base name before it reaches storage.
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return nil, storage.ObjectInfo{}, ErrInvalidFilename
	}

	rc, info, err := s.store.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}

// discard removes a partially processed upload; failures here are logged
// only, the caller's error is the one that matters.
func (s *analysisService) discard(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil {
		s.logger.Printf("failed to remove %s after pipeline failure: %v", name, err)
	}
}

// allowedExtension extracts the lowercase extension and reports whether it is
// on the allow-list.
func allowedExtension(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := allowedExtensions[ext]
	return ext, ok
}

func sceneCacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return "scene:" + hex.EncodeToString(sum[:])
}
