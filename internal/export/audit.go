package export

import (
	"io"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/safety-kpi/internal/cleaning"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Manifest is the audit.yaml document. It is the only artifact that
// carries run-specific data; the tables are reproducible from the input.
type Manifest struct {
	RunID         string         `yaml:"run_id"`
	GeneratedAt   string         `yaml:"generated_at"`
	Source        string         `yaml:"source"`
	Schema        string         `yaml:"schema"`
	Params        any            `yaml:"params,omitempty"`
	Cleaning      cleaning.Audit `yaml:"cleaning"`
	RetentionRate float64        `yaml:"retention_rate"`
	KPI           *KPISummary    `yaml:"kpi,omitempty"`
	Artifacts     []string       `yaml:"artifacts"`
}

// KPISummary counts the computed results.
type KPISummary struct {
	Groupings []string `yaml:"groupings"`
	Results   int      `yaml:"results"`
	Undefined int      `yaml:"undefined"`
	Rankings  int      `yaml:"rankings"`
}

// WriteManifest encodes m as YAML.
func WriteManifest(out io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return eris.Wrap(err, "export: encode audit manifest")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "export: close audit manifest")
	}
	return nil
}
