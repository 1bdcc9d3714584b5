package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sedfit/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusComplete,
			NObjects:  1200,
			NDraws:    250,
			Seed:      42,
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			NObjects:  7,
			NDraws:    50,
			Seed:      1,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	for _, want := range []string{"ID", "STATUS", "STARS", "SEED", "abc12345", "complete", "1200", "running", "2025-06-15 10:30", "2m0s"} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "abc12345-6789")
}

func TestFormatRunsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, nil)

	assert.Contains(t, buf.String(), "ID")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
