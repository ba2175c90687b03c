// Package rules loads, validates, and evaluates YAML scoring rule sets.
//
// A rule file configures how candidate quality is scored for one entity
// type: feature weights, missing-attribute penalties, hard blocks, and
// the thresholds that route a score to a resolution state. Rule sets are
// immutable once registered; content changes are versioned by SHA-256
// hash rather than edited in place.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"canonry/internal/entity"
	"gopkg.in/yaml.v3"
)

// Required top-level keys of every rule file.
var requiredKeys = []string{
	"entity_type",
	"source_system",
	"version",
	"thresholds",
	"feature_weights",
	"hard_blocks",
	"source_precedence",
	"survivorship_rules",
	"missing_attribute_penalties",
}

var requiredThresholdKeys = []string{"auto_promote", "review", "hold"}

// ValidationError reports a rule file that fails schema validation.
// It is fatal: nothing downstream may use an invalid rule set.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "rule set validation: " + e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RuleSet is a parsed, validated scoring configuration.
type RuleSet struct {
	EntityType                entity.Type
	SourceSystem              string
	Version                   string
	ContentHash               string
	Thresholds                Thresholds
	FeatureWeights            map[string]float64
	HardBlocks                []string
	SourcePrecedence          []string
	SurvivorshipRules         map[string]string
	MissingAttributePenalties map[string]float64
	RawYAML                   string
}

// Thresholds routes a computed score to a resolution state.
// Invariant: 0 <= Hold <= Review <= AutoPromote <= 1.
type Thresholds struct {
	AutoPromote float64
	Review      float64
	Hold        float64
}

// HasHardBlock reports whether flag is configured as a hard block.
func (r *RuleSet) HasHardBlock(flag string) bool {
	for _, b := range r.HardBlocks {
		if b == flag {
			return true
		}
	}
	return false
}

// WeightNames returns the feature-weight keys in sorted order, so reason
// strings and NBA generation are deterministic.
func (r *RuleSet) WeightNames() []string {
	names := make([]string, 0, len(r.FeatureWeights))
	for name := range r.FeatureWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PenaltyNames returns the penalty keys in sorted order.
func (r *RuleSet) PenaltyNames() []string {
	names := make([]string, 0, len(r.MissingAttributePenalties))
	for name := range r.MissingAttributePenalties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads, validates, and hashes a rule file.
func LoadFile(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rs, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse validates raw YAML content and returns an immutable RuleSet.
func Parse(raw []byte) (*RuleSet, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, validationErrorf("malformed YAML: %v", err)
	}
	if doc == nil {
		return nil, validationErrorf("YAML root must be a mapping")
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	rs := &RuleSet{
		EntityType:                entity.Type(stringOf(doc["entity_type"])),
		SourceSystem:              stringOf(doc["source_system"]),
		Version:                   stringOf(doc["version"]),
		ContentHash:               hex.EncodeToString(sum[:]),
		Thresholds:                thresholdsOf(doc["thresholds"]),
		FeatureWeights:            floatMapOf(doc["feature_weights"]),
		HardBlocks:                stringSliceOf(doc["hard_blocks"]),
		SourcePrecedence:          stringSliceOf(doc["source_precedence"]),
		SurvivorshipRules:         stringMapOf(doc["survivorship_rules"]),
		MissingAttributePenalties: floatMapOf(doc["missing_attribute_penalties"]),
		RawYAML:                   string(raw),
	}
	return rs, nil
}

func validate(doc map[string]any) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return validationErrorf("missing required keys: %v", missing)
	}

	if _, err := entity.ParseType(stringOf(doc["entity_type"])); err != nil {
		return validationErrorf("invalid entity_type %q", stringOf(doc["entity_type"]))
	}

	thresholds, ok := mapOf(doc["thresholds"])
	if !ok {
		return validationErrorf("'thresholds' must be a mapping")
	}
	var missingThresh []string
	for _, key := range requiredThresholdKeys {
		if _, ok := thresholds[key]; !ok {
			missingThresh = append(missingThresh, key)
		}
	}
	if len(missingThresh) > 0 {
		sort.Strings(missingThresh)
		return validationErrorf("missing threshold keys: %v", missingThresh)
	}
	for key, val := range thresholds {
		f, ok := floatOf(val)
		if !ok {
			return validationErrorf("threshold %q value %v is not numeric", key, val)
		}
		if f < 0.0 || f > 1.0 {
			return validationErrorf("threshold %q value %g must be in [0.0, 1.0]", key, f)
		}
	}
	hold, _ := floatOf(thresholds["hold"])
	review, _ := floatOf(thresholds["review"])
	autoPromote, _ := floatOf(thresholds["auto_promote"])
	if hold > review {
		return validationErrorf("'hold' threshold (%g) must be <= 'review' (%g)", hold, review)
	}
	if review > autoPromote {
		return validationErrorf("'review' threshold (%g) must be <= 'auto_promote' (%g)", review, autoPromote)
	}

	weights, ok := mapOf(doc["feature_weights"])
	if !ok || len(weights) == 0 {
		return validationErrorf("'feature_weights' must not be empty")
	}
	for feat, val := range weights {
		f, ok := floatOf(val)
		if !ok {
			return validationErrorf("feature_weight %q value %v is not numeric", feat, val)
		}
		if f < 0 {
			return validationErrorf("feature_weight %q value %g must be >= 0", feat, f)
		}
	}

	if penalties, ok := mapOf(doc["missing_attribute_penalties"]); ok {
		for key, val := range penalties {
			if _, ok := floatOf(val); !ok {
				return validationErrorf("missing_attribute_penalty %q value %v is not numeric", key, val)
			}
		}
	}
	return nil
}

// YAML scalar coercion helpers. yaml.v3 decodes untyped mappings as
// map[string]any with int/float64/string scalars.

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func floatOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func mapOf(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func thresholdsOf(v any) Thresholds {
	m, _ := mapOf(v)
	auto, _ := floatOf(m["auto_promote"])
	review, _ := floatOf(m["review"])
	hold, _ := floatOf(m["hold"])
	return Thresholds{AutoPromote: auto, Review: review, Hold: hold}
}

func floatMapOf(v any) map[string]float64 {
	out := map[string]float64{}
	m, _ := mapOf(v)
	for key, val := range m {
		if f, ok := floatOf(val); ok {
			out[key] = f
		}
	}
	return out
}

func stringMapOf(v any) map[string]string {
	out := map[string]string{}
	m, _ := mapOf(v)
	for key, val := range m {
		out[key] = stringOf(val)
	}
	return out
}

func stringSliceOf(v any) []string {
	var out []string
	if items, ok := v.([]any); ok {
		for _, item := range items {
			out = append(out, stringOf(item))
		}
	}
	return out
}
