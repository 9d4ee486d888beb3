package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"thermostat/2025/01/02/a.jpg":  "image/jpeg",
		"thermostat/2025/01/02/b.JPEG": "image/jpeg",
		"c.png":                        "image/png",
		"d.heic":                       "image/heic",
		"e":                            "application/octet-stream",
	}
	for in, want := range cases {
		assert.Equal(t, want, ContentType(in), in)
	}
}
