package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/common/expfmt"
)

// Export formats.
const (
	FormatJSON       = "json"
	FormatPrometheus = "prometheus"
)

// Export renders the collector's state in the given format:
//   - "json": the DetailedMetrics snapshot
//   - "prometheus": the text exposition format of the registry
func (c *Collector) Export(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		data, err := json.MarshalIndent(c.DetailedMetrics(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode metrics: %w", err)
		}
		return data, nil

	case FormatPrometheus:
		families, err := c.registry.Gather()
		if err != nil {
			return nil, fmt.Errorf("failed to gather metrics: %w", err)
		}

		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return nil, fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
			}
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported metrics format %q (want %q or %q)", format, FormatJSON, FormatPrometheus)
	}
}
