package gateway

import (
	"context"
	"net/http"
)

// health serves the public probe: overall store status with sensitive
// detail omitted.
func (g *Gateway) health(ctx context.Context, _ *http.Request) (any, error) {
	d, err := g.checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	return d.Sanitized(), nil
}

// adminHealth serves the full diagnostic: store detail, limiter statistics,
// and configuration validation warnings.
func (g *Gateway) adminHealth(ctx context.Context, _ *http.Request) (any, error) {
	d, err := g.checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	warnings := g.warnings
	if warnings == nil {
		warnings = []string{}
	}
	return map[string]any{
		"store":           d,
		"rate_limiter":    g.limiter.Snapshot(),
		"config_warnings": warnings,
	}, nil
}
