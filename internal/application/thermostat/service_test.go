package thermostat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domain "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/infra/ai/prompt"
)

// fakeAI answers image calls with imageReply and the summary call with summaryReply
type fakeAI struct {
	mu           sync.Mutex
	calls        []ai.CompletionRequest
	imageReply   string
	summaryReply string
	failImages   bool
}

func (f *fakeAI) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if req.JSONMode {
		return f.summaryReply, nil
	}
	if f.failImages && len(req.Messages[len(req.Messages)-1].Images) > 0 {
		return "", ai.ErrUnavailable
	}
	return f.imageReply, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchive) UploadAndCleanup(_ context.Context, localPath, key string) (string, error) {
	a.mu.Lock()
	a.keys = append(a.keys, key)
	a.mu.Unlock()
	os.Remove(localPath)
	return "s3://bucket/" + key, nil
}

func tempImage(t *testing.T, name string) domain.Image {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte{0xff, 0xd8, 0xff}, 0o600))
	return domain.Image{Filename: name, Path: p, MIMEType: "image/jpeg", Size: 3}
}

func newService(f *fakeAI) *Service {
	return &Service{
		AI:      f,
		Prompts: prompt.MustDefaultThermostat(),
		Limits:  domain.DefaultLimits(),
	}
}

const verdictJSON = `{"thermostatType":"Honeywell T6 Pro","compatibility":"Compatible","confidence":0.85,"recommendations":["Use the existing C-wire"]}`

func TestAnalyze_TwoImages(t *testing.T) {
	f := &fakeAI{imageReply: "R, C, W, Y, G terminals visible", summaryReply: verdictJSON}
	svc := newService(f)
	imgs := []domain.Image{tempImage(t, "a.jpg"), tempImage(t, "b.jpg")}

	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Images: imgs})
	require.NoError(t, err)

	require.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.Equal(t, domain.Compatible, r.Compatibility)
	assert.Equal(t, "Honeywell T6 Pro", r.ThermostatType)
	assert.InDelta(t, 0.85, r.Confidence, 1e-9)
	assert.Len(t, r.ImageAnalyses, 2)
	assert.Equal(t, 2, r.Debug.FilesProcessed)
	assert.Equal(t, domain.ParseStrict, r.Debug.ParseMode)
	assert.Len(t, f.calls, 3)

	for _, img := range imgs {
		_, err := os.Stat(img.Path)
		assert.True(t, os.IsNotExist(err), "temp file %s should be removed", img.Path)
	}
}

func TestAnalyze_DescriptionOnly(t *testing.T) {
	f := &fakeAI{imageReply: "Likely a 24V conventional system", summaryReply: verdictJSON}
	svc := newService(f)

	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Description: "Old Honeywell round dial, 4 wires"})
	require.NoError(t, err)
	r := resp.Results[0]
	assert.Equal(t, "Likely a 24V conventional system", r.Analysis)
	assert.Empty(t, r.ImageAnalyses)
	assert.Equal(t, 0, r.Debug.FilesProcessed)
	require.Len(t, f.calls, 2)
	assert.Contains(t, f.calls[0].Messages[1].Text, "Old Honeywell round dial")
}

func TestAnalyze_MalformedOutputYieldsSentinel(t *testing.T) {
	f := &fakeAI{imageReply: "blurry", summaryReply: "I cannot tell from this."}
	svc := newService(f)

	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Description: "no idea"})
	require.NoError(t, err)
	r := resp.Results[0]
	assert.Equal(t, domain.Uncertain, r.Compatibility)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, []string{domain.SentinelRecommendation}, r.Recommendations)
	assert.Equal(t, domain.ParseSentinel, r.Debug.ParseMode)
}

func TestAnalyze_ValidationFailsWithoutAICall(t *testing.T) {
	f := &fakeAI{}
	svc := newService(f)
	img := tempImage(t, "doc.pdf")
	img.MIMEType = "application/pdf"

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Images: []domain.Image{img}})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.MsgInvalidType, verr.Message)
	assert.Empty(t, f.calls)

	_, statErr := os.Stat(img.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAnalyze_NoInput(t *testing.T) {
	svc := newService(&fakeAI{})
	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Description: "   "})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.MsgNoInput, verr.Message)
}

func TestAnalyze_ImageFailureStillCleansUp(t *testing.T) {
	f := &fakeAI{failImages: true, summaryReply: verdictJSON}
	svc := newService(f)
	imgs := []domain.Image{tempImage(t, "a.jpg"), tempImage(t, "b.jpg")}

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Images: imgs})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrUnavailable)
	for _, img := range imgs {
		_, statErr := os.Stat(img.Path)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestAnalyze_ArchivesPhotos(t *testing.T) {
	f := &fakeAI{imageReply: "ok", summaryReply: verdictJSON}
	arch := &fakeArchive{}
	svc := newService(f)
	svc.Archive = arch

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Images: []domain.Image{tempImage(t, "wall.png")}})
	require.NoError(t, err)
	require.Len(t, arch.keys, 1)
	assert.True(t, strings.HasPrefix(arch.keys[0], "thermostat/"))
	assert.True(t, strings.HasSuffix(arch.keys[0], ".png"))
}
