package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Envelope wraps a feed with run metadata.
type Envelope struct {
	RunID       string   `json:"run_id" yaml:"run_id"`
	GeneratedAt string   `json:"generated_at" yaml:"generated_at"`
	Start       string   `json:"start" yaml:"start"`
	End         string   `json:"end" yaml:"end"`
	Events      []Record `json:"events" yaml:"events"`
}

// NewEnvelope stamps records with a fresh run ID and the current time.
func NewEnvelope(records []Record, start, end time.Time) Envelope {
	return Envelope{
		RunID:       uuid.New().String(),
		GeneratedAt: FormatDateTime(time.Now()),
		Start:       FormatDateTime(start),
		End:         FormatDateTime(end),
		Events:      records,
	}
}

// Encode writes v (a []Record or an Envelope) in the given format.
func Encode(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json feed: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml feed: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
