package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
)

//go:embed thermostat.json
var defaultThermostatPrompts []byte

const noDescription = "No text description provided."

// Stage one prompt template with its model settings
type Stage struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	JSON        bool    `json:"json"`
	Detail      string  `json:"detail"`
	System      string  `json:"system"`
	User        string  `json:"user"`

	user *template.Template
}

// ThermostatPrompts templates used by the compatibility checker
type ThermostatPrompts struct {
	ImageAnalysis       Stage `json:"imageAnalysis"`
	DescriptionAnalysis Stage `json:"descriptionAnalysis"`
	ResultsSummary      Stage `json:"resultsSummary"`
}

// LoadThermostat parses the embedded templates, or the file at path when given.
// A non-empty model overrides the model of every stage.
func LoadThermostat(path, model string) (*ThermostatPrompts, error) {
	data := defaultThermostatPrompts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts %s: %w", path, err)
		}
		data = b
	}
	var p ThermostatPrompts
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	for name, st := range map[string]*Stage{
		"imageAnalysis":       &p.ImageAnalysis,
		"descriptionAnalysis": &p.DescriptionAnalysis,
		"resultsSummary":      &p.ResultsSummary,
	} {
		if model != "" {
			st.Model = model
		}
		tpl, err := template.New(name).Parse(st.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		st.user = tpl
	}
	return &p, nil
}

// MustDefaultThermostat embedded templates; panics only if the embedded file is broken
func MustDefaultThermostat() *ThermostatPrompts {
	p, err := LoadThermostat("", "")
	if err != nil {
		panic(err)
	}
	return p
}

type promptData struct {
	Index       int
	Total       int
	Description string
	Analysis    string
}

func (s Stage) render(d promptData) (string, error) {
	if strings.TrimSpace(d.Description) == "" {
		d.Description = noDescription
	}
	var buf bytes.Buffer
	if err := s.user.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s Stage) request(user string, images []ai.ImagePart) ai.CompletionRequest {
	return ai.CompletionRequest{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		JSONMode:    s.JSON,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Text: s.System},
			{Role: ai.RoleUser, Text: user, Images: images},
		},
	}
}

// ImageRequest per-image analysis call (index is 1-based)
func (p *ThermostatPrompts) ImageRequest(index, total int, description string, img ai.ImagePart) (ai.CompletionRequest, error) {
	user, err := p.ImageAnalysis.render(promptData{Index: index, Total: total, Description: description})
	if err != nil {
		return ai.CompletionRequest{}, err
	}
	if img.Detail == "" {
		img.Detail = p.ImageAnalysis.Detail
	}
	return p.ImageAnalysis.request(user, []ai.ImagePart{img}), nil
}

// DescriptionRequest analysis call when no photos were uploaded
func (p *ThermostatPrompts) DescriptionRequest(description string) (ai.CompletionRequest, error) {
	user, err := p.DescriptionAnalysis.render(promptData{Description: description})
	if err != nil {
		return ai.CompletionRequest{}, err
	}
	return p.DescriptionAnalysis.request(user, nil), nil
}

// SummaryRequest aggregation call over the analyses gathered so far
func (p *ThermostatPrompts) SummaryRequest(description string, analyses []string) (ai.CompletionRequest, error) {
	user, err := p.ResultsSummary.render(promptData{Description: description, Analysis: JoinImageAnalyses(analyses)})
	if err != nil {
		return ai.CompletionRequest{}, err
	}
	return p.ResultsSummary.request(user, nil), nil
}

// JoinImageAnalyses labels each per-image analysis for the aggregation prompt
func JoinImageAnalyses(analyses []string) string {
	if len(analyses) == 1 {
		return analyses[0]
	}
	var b strings.Builder
	for i, a := range analyses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Photo %d:\n%s", i+1, strings.TrimSpace(a))
	}
	return b.String()
}
