package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	"github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

func TestLoadThermostat_Embedded(t *testing.T) {
	p, err := LoadThermostat("", "")
	require.NoError(t, err)

	req, err := p.ImageRequest(2, 3, "", ai.ImagePart{MIMEType: "image/png", Data: []byte("x")})
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Text, "photo 2 of 3")
	assert.Contains(t, req.Messages[1].Text, noDescription)
	require.Len(t, req.Messages[1].Images, 1)
	assert.Equal(t, "high", req.Messages[1].Images[0].Detail)

	sum, err := p.SummaryRequest("Honeywell with 5 wires", []string{"R, C, W, Y, G", "24V label"})
	require.NoError(t, err)
	assert.True(t, sum.JSONMode)
	assert.Contains(t, sum.Messages[1].Text, "Honeywell with 5 wires")
	assert.Contains(t, sum.Messages[1].Text, "Photo 1:\nR, C, W, Y, G")
	assert.Contains(t, sum.Messages[1].Text, "Photo 2:\n24V label")
}

func TestLoadThermostat_ModelOverrideAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.json")
	body := `{"imageAnalysis":{"model":"a","user":"img {{.Index}}"},"descriptionAnalysis":{"model":"b","user":"desc {{.Description}}"},"resultsSummary":{"model":"c","user":"sum {{.Analysis}}"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := LoadThermostat(path, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.ImageAnalysis.Model)
	assert.Equal(t, "gpt-4o-mini", p.ResultsSummary.Model)

	req, err := p.DescriptionRequest("heat pump")
	require.NoError(t, err)
	assert.Equal(t, "desc heat pump", req.Messages[1].Text)

	_, err = LoadThermostat(filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)
}

func TestJoinImageAnalyses(t *testing.T) {
	assert.Equal(t, "only", JoinImageAnalyses([]string{"only"}))
	joined := JoinImageAnalyses([]string{"a", "b"})
	assert.True(t, strings.HasPrefix(joined, "Photo 1:\na"))
	assert.Contains(t, joined, "Photo 2:\nb")
}

func TestChannelPrompts(t *testing.T) {
	c := ChannelPrompts{Model: "o3-mini"}
	msgs := []channels.ProcessedMessage{{Text: "ship it", Username: "ana", Timestamp: "2025-01-01T00:00:00Z"}}

	day := c.DailySummary("2025-01-01", msgs)
	assert.Equal(t, "o3-mini", day.Model)
	assert.True(t, day.JSONMode)
	assert.Contains(t, day.Messages[1].Text, "2025-01-01")
	assert.Contains(t, day.Messages[1].Text, `"username":"ana"`)

	assert.False(t, c.ActionItems(msgs).JSONMode)
	assert.Contains(t, c.Risks(msgs).Messages[0].Text, "JSON array of strings")
	assert.Contains(t, c.ChannelAnalysis("eng", msgs).Messages[1].Text, "#eng")
}

func TestDigest(t *testing.T) {
	var c ChannelPrompts
	out := c.Digest(&channels.ChannelAnalysis{
		Summary:     "Install crew on schedule.",
		Risks:       []string{"Parts delayed"},
		ActionItems: []string{"call supplier (@ana, due: Friday)"},
	})
	assert.True(t, strings.HasPrefix(out, "*Daily Project Update*\nInstall crew on schedule."))
	assert.Contains(t, out, "*Risks & Blockers*\n- Parts delayed")
	assert.Contains(t, out, "*Action Items*\n- call supplier (@ana, due: Friday)")

	empty := c.Digest(&channels.ChannelAnalysis{Summary: "Quiet day."})
	assert.Contains(t, empty, "No risks identified")
	assert.True(t, strings.HasSuffix(empty, "No action items identified"))
}
