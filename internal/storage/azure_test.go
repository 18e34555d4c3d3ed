package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadOptions(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
	}{
		{name: "Report snapshot", filename: "reports/blue-bottle-2025-03-14.json", contentType: "application/json"},
		{name: "Other file", filename: "exports/reviews.csv"},
		{name: "No extension", filename: "alerts/latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := uploadOptions(tt.filename)
			assert.Equal(t, int64(blobBlockSize), opts.BlockSize)
			if tt.contentType == "" {
				assert.Nil(t, opts.HTTPHeaders)
				return
			}
			require.NotNil(t, opts.HTTPHeaders)
			assert.Equal(t, tt.contentType, *opts.HTTPHeaders.BlobContentType)
		})
	}
}

func TestNotFound_IgnoresOtherErrors(t *testing.T) {
	assert.NoError(t, notFound(errors.New("connection reset"), "reports/a.json"))
}

func TestNewAzureStorage_RequiresAccount(t *testing.T) {
	_, err := NewAzureStorage("", "reviews")
	assert.Error(t, err)
}
