package thermostat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisRequest_Validate(t *testing.T) {
	jpeg := Image{Filename: "a.jpg", MIMEType: "image/jpeg", Size: 1024}

	tests := []struct {
		name    string
		req     AnalysisRequest
		wantMsg string
	}{
		{"description only", AnalysisRequest{Description: "Honeywell, 4 wires"}, ""},
		{"images only", AnalysisRequest{Images: []Image{jpeg, jpeg}}, ""},
		{"nothing", AnalysisRequest{Description: "   "}, MsgNoInput},
		{"bad mime", AnalysisRequest{Images: []Image{{MIMEType: "image/gif", Size: 10}}}, MsgInvalidType},
		{"too large", AnalysisRequest{Images: []Image{{MIMEType: "image/png", Size: DefaultMaxFileSize + 1}}}, MsgTooLarge},
		{"too many", AnalysisRequest{Images: []Image{jpeg, jpeg, jpeg, jpeg, jpeg, jpeg}}, MsgTooMany},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(DefaultLimits())
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Equal(t, tt.wantMsg, verr.Message)
		})
	}
}

func TestValidateFile_Details(t *testing.T) {
	err := ValidateFile("image/jpeg", 6*1024*1024, Limits{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Maximum file size is 5MB.", verr.Details)

	err = ValidateCount(3, Limits{MaxFiles: 2})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Maximum of 2 images per request.", verr.Details)
}

func TestLimits_Allowed(t *testing.T) {
	l := DefaultLimits()
	assert.True(t, l.Allowed("IMAGE/JPEG"))
	assert.True(t, l.Allowed("image/png; name=x.png"))
	assert.True(t, l.Allowed("image/heic"))
	assert.False(t, l.Allowed("application/pdf"))
	assert.False(t, l.Allowed(""))
}
