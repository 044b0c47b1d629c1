// Package config holds the Session/CLI configuration for the Metanúcleo
// runtime, grounded on the teacher's internal/config/config.go and
// internal/config/logging.go (a top-level Config struct with nested,
// YAML-tagged sub-configs, plus a category-gated logging block).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration: scheduler budgets, feature
// toggles, VM calc-mode, output formatting, and logging.
type Config struct {
	// Scheduler holds the §4.8 scheduler knobs.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Ontology holds §4.6/§4.7 ontology and code-route toggles.
	Ontology OntologyConfig `yaml:"ontology"`

	// Output controls §6.2's --format/--include-* gates.
	Output OutputConfig `yaml:"output"`

	// Logging configures the categorized logger.
	Logging LoggingConfig `yaml:"logging"`
}

// SchedulerConfig mirrors §4.8 and §5's resource model.
type SchedulerConfig struct {
	// StepBudget is the hard ceiling on operator applications (§4.8, §5). Default 32.
	StepBudget int `yaml:"step_budget"`

	// QualityThreshold halts the scheduler once ISR.quality reaches this
	// value and an answer has been produced (§4.8).
	QualityThreshold float64 `yaml:"quality_threshold"`

	// ContradictionsEnabled toggles contradiction checking during INFER
	// (§6.2 --enable-contradictions / --disable-contradictions).
	ContradictionsEnabled bool `yaml:"contradictions_enabled"`

	// CalcMode is "full" (run the Φ-loop) or "plan_only" (VM-only, halts with
	// PLAN_EXECUTED) per §6.2 --calc-mode.
	CalcMode string `yaml:"calc_mode"`

	// ContextCap bounds ISR.context after NORMALIZE (§3.3, §8 P8). Default 16.
	ContextCap int `yaml:"context_cap"`
}

// OntologyConfig toggles optional code-route languages (§9 open question b).
type OntologyConfig struct {
	// ExtraCodeLanguages enables the JavaScript and Rust code routes
	// (keyword-hint detection, tree-sitter parsing) beyond the always-on
	// Python/Go core. Off by default.
	ExtraCodeLanguages bool `yaml:"extra_code_languages"`

	// FactLimit bounds the in-turn ontology fact store (mirrors the
	// teacher's FactLimit safety valve, scaled down to a single turn).
	FactLimit int `yaml:"fact_limit"`
}

// OutputConfig controls serialization format and optional record sections.
type OutputConfig struct {
	Format             string `yaml:"format"` // text | json | both
	IncludeMeta        bool   `yaml:"include_meta"`
	IncludeStats       bool   `yaml:"include_stats"`
	IncludeExplanation bool   `yaml:"include_explanation"`
	IncludeReport      bool   `yaml:"include_report"`
	IncludeLCMeta      bool   `yaml:"include_lc_meta"`
}

// LoggingConfig mirrors the teacher's LoggingConfig (debug_mode master
// switch + per-category toggles), adapted to gate zap instead of a bespoke
// file logger.
type LoggingConfig struct {
	DebugMode bool     `yaml:"debug_mode"`
	JSON      bool     `yaml:"json_format"`
	Quiet     []string `yaml:"quiet_categories"`
}

// Default returns the production defaults used when no config file is
// supplied, matching the spec's stated defaults (budget 32, no fast-path
// quality floor below 1.0 unless a route preseeds one).
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			StepBudget:            32,
			QualityThreshold:      1.0,
			ContradictionsEnabled: true,
			CalcMode:              "full",
			ContextCap:            16,
		},
		Ontology: OntologyConfig{
			ExtraCodeLanguages: false,
			FactLimit:          100000,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Load reads a YAML config file, overlaying it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
