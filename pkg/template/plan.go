package template

import (
	"fmt"
	"path"

	"github.com/rzbill/stencil/pkg/types"
)

// Kind tells the guardrail stage which validator an artifact gets.
type Kind int

const (
	// KindYAML artifacts must parse as structured documents.
	KindYAML Kind = iota
	// KindText artifacts only get the placeholder-leakage check.
	KindText
)

// Plan maps one template to one output artifact for a row.
type Plan struct {
	// Template is the template file name in the library.
	Template string

	// Path is the output path relative to the repository root.
	Path string

	// Kind selects the guardrail validator.
	Kind Kind

	// Derive adjusts the token map for this one target file, e.g. the
	// indentation of a multi-line block. The resolved map itself is
	// never mutated.
	Derive func(types.TokenMap) types.TokenMap
}

// PlanFor returns the artifact plan for one row's language variant and
// profile. The agent config artifact is planned only when the agent flag
// is on; its tokens are pruned from the map otherwise and the template
// would fail leakage validation.
func PlanFor(app string, profile types.Profile, lang types.Language, agentEnabled bool) []Plan {
	chartDir := "helm-" + app

	plans := []Plan{
		{Template: ciConfigTemplate(lang), Path: "ci-config.yaml", Kind: KindYAML},
		{Template: dockerfileTemplate(lang), Path: "Dockerfile", Kind: KindText},
		{Template: "chart.yaml.tmpl", Path: path.Join(chartDir, "Chart.yaml"), Kind: KindYAML},
		{Template: valuesTemplate(profile), Path: path.Join(chartDir, "values.yaml"), Kind: KindYAML},
	}

	if agentEnabled {
		plans = append(plans, Plan{
			Template: "agent-config.yaml.tmpl",
			Path:     "agent-config.yaml",
			Kind:     KindYAML,
			Derive: func(m types.TokenMap) types.TokenMap {
				out := m.Clone()
				out[types.TokenAgentEnvMap] = IndentBlock(m[types.TokenAgentEnvMap], "    ")
				return out
			},
		})
	}

	return plans
}

// PRBodyPlan returns the pull-request body artifact. It is rendered with
// its own small token map and committed alongside the artifact set.
func PRBodyPlan() Plan {
	return Plan{Template: "pr-body.md.tmpl", Path: "PR_BODY.md", Kind: KindText}
}

// RenderAll renders every plan entry against the resolved tokens.
func RenderAll(lib *Library, r *Renderer, plans []Plan, tokens types.TokenMap) ([]types.RenderedArtifact, error) {
	artifacts := make([]types.RenderedArtifact, 0, len(plans))
	for _, p := range plans {
		body, err := lib.Load(p.Template)
		if err != nil {
			return nil, err
		}

		m := tokens
		if p.Derive != nil {
			m = p.Derive(tokens)
		}

		artifacts = append(artifacts, types.RenderedArtifact{
			Path:    p.Path,
			Content: r.Render(body, m),
		})
	}
	return artifacts, nil
}

func dockerfileTemplate(lang types.Language) string {
	if lang == types.LanguagePython {
		return "dockerfile.python.tmpl"
	}
	return "dockerfile.jvm.tmpl"
}

func ciConfigTemplate(lang types.Language) string {
	suffix := "jvm"
	if lang == types.LanguagePython {
		suffix = "python"
	}
	return fmt.Sprintf("ci-config.%s.yaml.tmpl", suffix)
}

func valuesTemplate(profile types.Profile) string {
	if profile == types.ProfileExtended {
		return "values-extended.yaml.tmpl"
	}
	return "values.yaml.tmpl"
}
