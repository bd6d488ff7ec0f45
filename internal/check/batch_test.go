package check

import (
	"context"
	"testing"

	"github.com/exomass/masschecker-go/internal/config"
)

func TestRunBatchEmpty(t *testing.T) {
	cfg := &config.Config{MaxConcurrentChecks: 2}
	c := New(cfg, nil, nil, nil, nil, nil)

	summary, results := c.RunBatch(context.Background(), nil, nil, nil)
	if summary.Total != 0 || len(results) != 0 {
		t.Errorf("empty batch: summary=%+v results=%d", summary, len(results))
	}
}
