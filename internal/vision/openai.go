package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"scenevoice/internal/config"
)

const systemPrompt = `You are a scene-description assistant for visually impaired users.
Look at the image and respond with a single JSON object, no markdown, shaped as:
{"caption": "<one natural-language sentence describing the scene>",
 "objects": [{"label": "<object name>", "confidence": <0..1>,
              "box": {"x": <0..1>, "y": <0..1>, "w": <0..1>, "h": <0..1>}}]}
List every clearly visible object with your confidence and its normalized bounding box.`

// envelopeTokenHeadroom is added on top of the configured caption budget to
// leave room for the JSON wrapper and the object list.
const envelopeTokenHeadroom = 1024

// OpenAIDescriber implements Describer on any OpenAI-compatible vision model.
type OpenAIDescriber struct {
	client    openai.Client
	modelName string
	threshold float64
	maxTokens int
}

// NewOpenAIDescriber constructs a describer from a shared client and config.
func NewOpenAIDescriber(client openai.Client, cfg config.VisionConfig) *OpenAIDescriber {
	return &OpenAIDescriber{
		client:    client,
		modelName: cfg.Model,
		threshold: cfg.DetectionThreshold,
		maxTokens: cfg.MaxCaptionTokens,
	}
}

func (d *OpenAIDescriber) Describe(ctx context.Context, img []byte, format string) (*Scene, error) {
	scene, err := d.describe(ctx, img, format)
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	return scene, nil
}

func (d *OpenAIDescriber) describe(ctx context.Context, img []byte, format string) (*Scene, error) {
	// Reject corrupt or mislabeled files before spending a model call.
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(d.modelName),
		Messages:            d.buildMessages(img, format),
		MaxCompletionTokens: openai.Int(int64(d.maxTokens) + envelopeTokenHeadroom),
		Temperature:         openai.Float(0),
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	scene, err := parseScene(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	scene.Detections = filterDetections(scene.Detections, d.threshold)
	return scene, nil
}

func (d *OpenAIDescriber) buildMessages(img []byte, format string) []openai.ChatCompletionMessageParamUnion {
	userPrompt := fmt.Sprintf("Describe this scene. The caption must be at most %d tokens.", d.maxTokens)

	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(userPrompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(format, img),
			}),
		}),
	}
}

// dataURL inlines image bytes as a base64 data URL for the vision model.
func dataURL(format string, img []byte) string {
	mediaType := strings.ToLower(strings.TrimPrefix(format, "."))
	if mediaType == "jpg" {
		mediaType = "jpeg"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(img))
}
