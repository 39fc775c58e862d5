package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pantrycam/internal/imaging"
	"pantrycam/internal/model"
	"pantrycam/internal/recipe"
)

var (
	ErrNoFilePart         = errors.New("no file part")
	ErrNoSelectedFile     = errors.New("no selected file")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrNoResult           = errors.New("no recipe result for session")
	ErrAnalysisFailed     = errors.New("analysis failed")
)

type Analyzer interface {
	Analyze(ctx context.Context, path string) (*recipe.Result, error)
}

type ResultStore interface {
	SaveResult(ctx context.Context, sessionID, html string) error
	GetResult(ctx context.Context, sessionID string) (string, bool, error)
}

type AnalysisPublisher interface {
	Publish(ctx context.Context, record model.AnalysisRecord) error
}

type ImageArchive interface {
	Put(ctx context.Context, key string, img *imaging.Normalized) error
}

type RecipeService struct {
	analyzer  Analyzer
	results   ResultStore
	publisher AnalysisPublisher
	archive   ImageArchive
	uploadDir string
	allowed   []string
	timeout   time.Duration
	logger    *zap.Logger
}

type RecipeServiceOption func(*RecipeService)

// WithPublisher emits an AnalysisRecord after every successful analysis.
func WithPublisher(p AnalysisPublisher) RecipeServiceOption {
	return func(s *RecipeService) { s.publisher = p }
}

// WithArchive stores the normalized image of every successful analysis.
func WithArchive(a ImageArchive) RecipeServiceOption {
	return func(s *RecipeService) { s.archive = a }
}

// WithAnalysisTimeout puts one deadline on the whole analysis, fallback included.
func WithAnalysisTimeout(d time.Duration) RecipeServiceOption {
	return func(s *RecipeService) { s.timeout = d }
}

func NewRecipeService(
	analyzer Analyzer,
	results ResultStore,
	uploadDir string,
	allowed []string,
	logger *zap.Logger,
	opts ...RecipeServiceOption,
) *RecipeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecipeService{
		analyzer:  analyzer,
		results:   results,
		uploadDir: uploadDir,
		allowed:   allowed,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowedExtensions returns the configured upload extensions.
func (s *RecipeService) AllowedExtensions() []string {
	return s.allowed
}

// ProcessUpload validates the uploaded file, analyzes it and stores the
// rendered HTML for sessionID. A nil file means the form had no image field.
// The saved copy is removed before ProcessUpload returns.
func (s *RecipeService) ProcessUpload(ctx context.Context, sessionID string, file *multipart.FileHeader) (*recipe.Result, error) {
	if file == nil {
		return nil, ErrNoFilePart
	}
	if file.Filename == "" {
		return nil, ErrNoSelectedFile
	}
	if !AllowedFile(file.Filename, s.allowed) {
		return nil, ErrFileTypeNotAllowed
	}

	filename := SecureFilename(file.Filename)
	path, err := s.save(file, filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove upload failed", zap.String("path", path), zap.Error(err))
		}
	}()

	analyzeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		analyzeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.analyzer.Analyze(analyzeCtx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	if err := s.results.SaveResult(ctx, sessionID, result.HTML); err != nil {
		return nil, fmt.Errorf("store result failed: %w", err)
	}

	s.logger.Info("recipe analysis completed",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.String("method", string(result.Method)),
		zap.Duration("duration", result.Duration))

	s.recordSideEffects(ctx, sessionID, filename, result)
	return result, nil
}

// Result returns the stored HTML for sessionID or ErrNoResult.
func (s *RecipeService) Result(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrNoResult
	}
	html, ok, err := s.results.GetResult(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoResult
	}
	return html, nil
}

func (s *RecipeService) save(file *multipart.FileHeader, filename string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload failed: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.uploadDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file failed: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file failed: %w", err)
	}
	return path, nil
}

// recordSideEffects archives the image and publishes the history record.
// Failures are logged only; the user already has a result.
func (s *RecipeService) recordSideEffects(ctx context.Context, sessionID, filename string, result *recipe.Result) {
	if s.archive == nil && s.publisher == nil {
		return
	}

	now := time.Now()
	record := model.AnalysisRecord{
		SessionID:      sessionID,
		Filename:       filename,
		Model:          result.Model,
		Method:         string(result.Method),
		DurationMS:     result.Duration.Milliseconds(),
		MarkdownLength: len(result.Markdown),
		CreatedAt:      now,
	}
	if img := result.Image; img != nil {
		record.MIMEType = img.MIMEType
		record.SizeBytes = len(img.Data)
		record.Width = img.Width
		record.Height = img.Height
	}

	if s.archive != nil && result.Image != nil {
		key := ObjectKey(now, sessionID, filename)
		if err := s.archive.Put(ctx, key, result.Image); err != nil {
			s.logger.Warn("archive image failed", zap.String("key", key), zap.Error(err))
		} else {
			record.ObjectKey = key
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, record); err != nil {
			s.logger.Warn("publish analysis record failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

// ObjectKey names an archived image: date prefix, session, sanitized filename.
func ObjectKey(at time.Time, sessionID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", at.UTC().Format("2006/01/02"), sessionID, filename)
}
