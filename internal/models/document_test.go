package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xhad/docchat/internal/models"
)

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		path string
		want models.Extension
	}{
		{"docs/guide.MDX", models.ExtMDX},
		{"a/b/c.jsonl", models.ExtJSONL},
		{"data.csv", models.ExtCSV},
		{"README", ""},
		{"archive.tar.gz", "gz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ExtensionOf(tt.path))
		})
	}
}
