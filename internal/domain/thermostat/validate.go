package thermostat

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxFiles    = 5
	DefaultMaxFileSize = 5 * 1024 * 1024
)

// DefaultAllowedTypes MIME allow-list for uploaded photos
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/heic"}

const (
	MsgNoInput     = "No thermostat description or images provided"
	MsgInvalidType = "Invalid file type. Only JPG, PNG and HEIC files are allowed."
	MsgTooLarge    = "File too large"
	MsgTooMany     = "Too many files"
)

// ValidationError is a client error; Message is shown as `error`, Details as `details`.
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// Limits bounds for uploads
type Limits struct {
	MaxFiles     int
	MaxFileSize  int64
	AllowedTypes []string
}

// DefaultLimits 5 files, 5MB each, jpeg/png/heic
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:     DefaultMaxFiles,
		MaxFileSize:  DefaultMaxFileSize,
		AllowedTypes: DefaultAllowedTypes,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultMaxFiles
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if len(l.AllowedTypes) == 0 {
		l.AllowedTypes = DefaultAllowedTypes
	}
	return l
}

// Allowed reports whether mime is on the allow-list; parameters like "; charset" are ignored.
func (l Limits) Allowed(mime string) bool {
	l = l.withDefaults()
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, t := range l.AllowedTypes {
		if mime == strings.ToLower(t) {
			return true
		}
	}
	return false
}

// ValidateFile checks one upload against the MIME allow-list and size ceiling
func ValidateFile(mime string, size int64, limits Limits) error {
	limits = limits.withDefaults()
	if !limits.Allowed(mime) {
		return &ValidationError{Message: MsgInvalidType}
	}
	if size > limits.MaxFileSize {
		return &ValidationError{
			Message: MsgTooLarge,
			Details: fmt.Sprintf("Maximum file size is %s.", humanMB(limits.MaxFileSize)),
		}
	}
	return nil
}

// ValidateCount checks the number of uploaded files
func ValidateCount(n int, limits Limits) error {
	limits = limits.withDefaults()
	if n > limits.MaxFiles {
		return &ValidationError{
			Message: MsgTooMany,
			Details: fmt.Sprintf("Maximum of %d images per request.", limits.MaxFiles),
		}
	}
	return nil
}

// Validate at least one of description or images, and every image within limits
func (r AnalysisRequest) Validate(limits Limits) error {
	if strings.TrimSpace(r.Description) == "" && len(r.Images) == 0 {
		return &ValidationError{Message: MsgNoInput}
	}
	if err := ValidateCount(len(r.Images), limits); err != nil {
		return err
	}
	for _, img := range r.Images {
		if err := ValidateFile(img.MIMEType, img.Size, limits); err != nil {
			return err
		}
	}
	return nil
}

func humanMB(n int64) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
	return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
}
