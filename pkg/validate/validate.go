// Package validate runs the guardrail checks over rendered artifacts.
// Every artifact is checked for placeholder leakage; structured artifacts
// must additionally parse. All checks run for a row even after the first
// failure so the report names every broken artifact at once.
package validate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/types"
)

// Artifact checks one rendered artifact against the checks its kind
// requires.
func Artifact(a types.RenderedArtifact, kind template.Kind) types.ValidationResult {
	var problems []string

	if strings.Contains(a.Content, template.LegacyMarker) {
		problems = append(problems, fmt.Sprintf("legacy %s marker present", template.LegacyMarker))
	}
	if leaked := template.Unresolved(a.Content); len(leaked) > 0 {
		problems = append(problems, "unresolved placeholders: "+strings.Join(leaked, ", "))
	}

	if kind == template.KindYAML {
		var doc any
		if err := yaml.Unmarshal([]byte(a.Content), &doc); err != nil {
			problems = append(problems, "not parseable as YAML: "+yamlErr(err))
		}
	}

	if len(problems) > 0 {
		return types.ValidationResult{Artifact: a.Path, Message: strings.Join(problems, "; ")}
	}
	return types.ValidationResult{Artifact: a.Path, Passed: true, Message: "ok"}
}

// All checks every rendered artifact against its plan entry. The two
// slices are parallel, as produced by template.RenderAll.
func All(plans []template.Plan, artifacts []types.RenderedArtifact) []types.ValidationResult {
	results := make([]types.ValidationResult, 0, len(artifacts))
	for i, a := range artifacts {
		kind := template.KindText
		if i < len(plans) {
			kind = plans[i].Kind
		}
		results = append(results, Artifact(a, kind))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []types.ValidationResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failures returns only the failed results.
func Failures(results []types.ValidationResult) []types.ValidationResult {
	var failed []types.ValidationResult
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Summary renders the failed results into one row-failure message.
func Summary(results []types.ValidationResult) string {
	failed := Failures(results)
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Artifact, r.Message))
	}
	return strings.Join(parts, "; ")
}

// yamlErr flattens the multi-line messages yaml.v3 produces.
func yamlErr(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
