package thermostat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/hvac-owl/internal/application"
	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domain "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
)

// Prompts builds the completion requests for each analysis stage
type Prompts interface {
	ImageRequest(index, total int, description string, img ai.ImagePart) (ai.CompletionRequest, error)
	DescriptionRequest(description string) (ai.CompletionRequest, error)
	SummaryRequest(description string, analyses []string) (ai.CompletionRequest, error)
}

// Service implements the compatibility check use-case.
// Safe for concurrent use; every request owns its temp files.
type Service struct {
	AI      ai.Client
	Prompts Prompts
	Archive domain.PhotoArchive // optional
	Clock   application.Clock
	Limits  domain.Limits

	// Timeout bounds all completion calls of one request (0 = no limit)
	Timeout time.Duration
	// Concurrency max parallel per-image calls (0 = one per image)
	Concurrency int
}

// Analyze validate → analisa per foto (paralel) → ringkasan → verdict.
// Temp files in req.Images are always removed before returning.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Response, error) {
	started := s.now()
	defer s.cleanup(req.Images)

	if err := req.Validate(s.Limits); err != nil {
		return nil, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var (
		analyses      []string
		imageAnalyses []string
		err           error
	)
	if len(req.Images) > 0 {
		imageAnalyses, err = s.analyzeImages(ctx, req)
		if err != nil {
			return nil, err
		}
		analyses = imageAnalyses
	} else {
		text, err := s.analyzeDescription(ctx, req.Description)
		if err != nil {
			return nil, err
		}
		analyses = []string{text}
	}

	summaryReq, err := s.Prompts.SummaryRequest(req.Description, analyses)
	if err != nil {
		return nil, fmt.Errorf("build summary prompt: %w", err)
	}
	summary, err := s.AI.Complete(ctx, summaryReq)
	if err != nil {
		log.Error().Err(err).Str("stage", "summary").Int("files", len(req.Images)).Msg("completion failed")
		return nil, fmt.Errorf("summarize analysis: %w", err)
	}

	verdict, mode := domain.ParseVerdict(summary)
	if mode != domain.ParseStrict {
		log.Warn().Str("parse_mode", string(mode)).Int("files", len(req.Images)).Msg("verdict recovered with fallback parser")
	}

	elapsed := s.now().Sub(started).Milliseconds()
	result := domain.Result{
		Verdict:       verdict,
		Analysis:      strings.Join(analyses, "\n\n"),
		Summary:       summary,
		ImageAnalyses: imageAnalyses,
		Debug: domain.Debug{
			Timestamp:      s.now().UTC(),
			Model:          summaryReq.Model,
			ProcessingTime: elapsed,
			FilesProcessed: len(req.Images),
			ParseMode:      mode,
		},
	}

	log.Info().
		Str("compatibility", string(verdict.Compatibility)).
		Float64("confidence", verdict.Confidence).
		Int("files", len(req.Images)).
		Int64("ms", elapsed).
		Msg("thermostat analyzed")

	return &domain.Response{
		Results:             []domain.Result{result},
		Count:               1,
		TotalProcessingTime: elapsed,
	}, nil
}

func (s *Service) analyzeImages(ctx context.Context, req domain.AnalysisRequest) ([]string, error) {
	out := make([]string, len(req.Images))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, img := range req.Images {
		g.Go(func() error {
			data, err := os.ReadFile(img.Path)
			if err != nil {
				return fmt.Errorf("read image %s: %w", img.Filename, err)
			}
			creq, err := s.Prompts.ImageRequest(i+1, len(req.Images), req.Description, ai.ImagePart{
				MIMEType: img.MIMEType,
				Data:     data,
			})
			if err != nil {
				return fmt.Errorf("build image prompt: %w", err)
			}
			text, err := s.AI.Complete(gctx, creq)
			if err != nil {
				log.Error().Err(err).Str("stage", "image").Str("file", img.Filename).Msg("completion failed")
				return fmt.Errorf("analyze image %s: %w", img.Filename, err)
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) analyzeDescription(ctx context.Context, description string) (string, error) {
	creq, err := s.Prompts.DescriptionRequest(description)
	if err != nil {
		return "", fmt.Errorf("build description prompt: %w", err)
	}
	text, err := s.AI.Complete(ctx, creq)
	if err != nil {
		log.Error().Err(err).Str("stage", "description").Msg("completion failed")
		return "", fmt.Errorf("analyze description: %w", err)
	}
	return text, nil
}

// cleanup archive (kalau ada) lalu hapus file sementara
func (s *Service) cleanup(images []domain.Image) {
	if len(images) == 0 {
		return
	}
	// request context may already be cancelled here
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, img := range images {
		if img.Path == "" {
			continue
		}
		if s.Archive != nil {
			key := fmt.Sprintf("thermostat/%s/%s%s", s.now().UTC().Format("2006/01/02"), uuid.NewString(), filepath.Ext(img.Filename))
			if _, err := s.Archive.UploadAndCleanup(ctx, img.Path, key); err != nil {
				log.Warn().Err(err).Str("file", img.Filename).Msg("archive upload failed")
			}
		}
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", img.Path).Msg("temp file cleanup failed")
		}
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
