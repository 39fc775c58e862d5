package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pantrycam/internal/ai"
	"pantrycam/internal/imaging"
)

var ErrMissingCredential = errors.New("credential not found")

// Method names the invocation path that produced a result.
type Method string

const (
	MethodChat       Method = "chat"
	MethodInlineData Method = "inline_data"
)

// Model is the pair of invocation paths offered by the AI service.
type Model interface {
	Model() string
	ChatWithImage(ctx context.Context, img ai.Image, prompt string) (string, error)
	GenerateContent(ctx context.Context, img ai.Image, prompt string) (string, error)
}

type Result struct {
	Markdown string
	HTML     string
	Method   Method
	Model    string
	Image    *imaging.Normalized
	Duration time.Duration
}

// InvocationError is returned when both the primary and the fallback call fail.
type InvocationError struct {
	Primary  error
	Fallback error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("fallback invocation failed: %v (primary invocation failed: %v)", e.Fallback, e.Primary)
}

func (e *InvocationError) Unwrap() []error {
	return []error{e.Fallback, e.Primary}
}

type Analyzer struct {
	model  Model
	logger *zap.Logger
}

func NewAnalyzer(model Model, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{model: model, logger: logger}
}

// NewGeminiAnalyzer wires an Analyzer to the Gemini REST API.
func NewGeminiAnalyzer(cfg ai.GeminiConfig, timeout time.Duration, logger *zap.Logger) (*Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	client := ai.NewGeminiClient(cfg, ai.DefaultGenerationConfig(), timeout)
	return NewAnalyzer(client, logger), nil
}

// Analyze normalizes the image at path, asks the model for recipes and
// renders the markdown answer to HTML.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	img, err := imaging.NormalizeFile(path)
	if err != nil {
		return nil, err
	}

	text, method, err := a.invoke(ctx, ai.Image{MIMEType: img.MIMEType, Data: img.Data})
	if err != nil {
		return nil, err
	}

	html, err := RenderMarkdown(text)
	if err != nil {
		return nil, err
	}

	return &Result{
		Markdown: text,
		HTML:     html,
		Method:   method,
		Model:    a.model.Model(),
		Image:    img,
		Duration: time.Since(start),
	}, nil
}

// invoke tries the chat path first and the inline-data path once if it fails.
func (a *Analyzer) invoke(ctx context.Context, img ai.Image) (string, Method, error) {
	text, primaryErr := call(ctx, a.model.ChatWithImage, img)
	if primaryErr == nil {
		return text, MethodChat, nil
	}
	a.logger.Warn("chat invocation failed, retrying with inline data",
		zap.String("model", a.model.Model()),
		zap.Error(primaryErr))

	text, fallbackErr := call(ctx, a.model.GenerateContent, img)
	if fallbackErr == nil {
		return text, MethodInlineData, nil
	}
	a.logger.Warn("inline data invocation failed",
		zap.String("model", a.model.Model()),
		zap.Error(fallbackErr))

	return "", "", &InvocationError{Primary: primaryErr, Fallback: fallbackErr}
}

func call(ctx context.Context, fn func(context.Context, ai.Image, string) (string, error), img ai.Image) (string, error) {
	text, err := fn(ctx, img, Prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
