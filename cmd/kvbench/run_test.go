package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvbench/internal/testutil"
)

func TestRunBenchmark_WithMetrics(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Index.Name = "btreemap"
	cfg.Metrics.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.ExporterType = "console"
	cfg.Report.Environment = false
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	require.NoError(t, runBenchmark(context.Background(), &out, cfg))

	text := out.String()
	assert.NotContains(t, text, "Environment:")
	assert.Contains(t, text, "\tTarget: btreemap")
	assert.Contains(t, text, "\tOperations: 4000")
}
