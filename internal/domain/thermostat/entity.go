package thermostat

import "time"

// Compatibility enum
type Compatibility string

const (
	Compatible    Compatibility = "Compatible"
	NotCompatible Compatibility = "Not Compatible"
	Uncertain     Compatibility = "Uncertain"
)

// Image is an uploaded photo sitting in temporary storage
type Image struct {
	Filename string
	Path     string
	MIMEType string
	Size     int64
}

// AnalysisRequest one incoming check: description and/or photos
type AnalysisRequest struct {
	Description string
	Images      []Image
}

// Verdict value object parsed from the model output
type Verdict struct {
	ThermostatType  string        `json:"thermostatType"`
	Compatibility   Compatibility `json:"compatibility"`
	Confidence      float64       `json:"confidence"`
	Recommendations []string      `json:"recommendations"`
}

// ParseMode tells how a verdict was recovered from model text
type ParseMode string

const (
	ParseStrict   ParseMode = "strict"
	ParseLenient  ParseMode = "lenient"
	ParsePattern  ParseMode = "pattern"
	ParseSentinel ParseMode = "sentinel"
)

// Debug diagnostics attached to each result
type Debug struct {
	Timestamp      time.Time `json:"timestamp"`
	Model          string    `json:"model"`
	ProcessingTime int64     `json:"processingTime"`
	FilesProcessed int       `json:"filesProcessed"`
	ParseMode      ParseMode `json:"parseMode"`
}

// Result is constructed once per request and never mutated afterwards
type Result struct {
	Verdict
	Analysis      string   `json:"analysis"`
	Summary       string   `json:"summary"`
	ImageAnalyses []string `json:"imageAnalyses,omitempty"`
	Debug         Debug    `json:"debug"`
}

// Response envelope for POST /api/analyze
type Response struct {
	Results             []Result `json:"results"`
	Count               int      `json:"count"`
	TotalProcessingTime int64    `json:"totalProcessingTime"`
}
