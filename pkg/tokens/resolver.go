// Package tokens resolves one tabular row into the complete, defaulted
// token binding set consumed by the template renderer.
package tokens

import (
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/stencil/pkg/types"
)

// Defaults carries the configurable resource-token defaults.
type Defaults struct {
	CPURequest    string
	CPULimit      string
	MemoryRequest string
	MemoryLimit   string
}

// Resolver builds TokenMaps for rows under a given profile. The zero value
// is not usable; construct with NewResolver.
type Resolver struct {
	profile  types.Profile
	defaults Defaults

	// now is the clock used for the generated tag token.
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the tag clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver for the given profile.
func NewResolver(profile types.Profile, defaults Defaults, opts ...Option) *Resolver {
	if defaults.CPURequest == "" {
		defaults.CPURequest = "100m"
	}
	if defaults.CPULimit == "" {
		defaults.CPULimit = "500m"
	}
	if defaults.MemoryRequest == "" {
		defaults.MemoryRequest = "256Mi"
	}
	if defaults.MemoryLimit == "" {
		defaults.MemoryLimit = "512Mi"
	}

	r := &Resolver{
		profile:  profile,
		defaults: defaults,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve turns a row into a fully resolved TokenMap. Mandatory columns
// with no default cause a MissingFieldsError before any side effect; the
// caller must not have touched the filesystem or network for this row yet.
func (r *Resolver) Resolve(row types.Row) (types.TokenMap, error) {
	if missing := row.MissingMandatory(r.profile); len(missing) > 0 {
		return nil, &types.MissingFieldsError{App: row.AppName(), Fields: missing}
	}

	app := row.AppName()
	imageRepo := row.Get(types.ColImageRepo)

	m := types.TokenMap{
		types.TokenAppName:   app,
		types.TokenImageRepo: imageRepo,
		types.TokenTag:       r.now().UTC().Format("20060102150405"),
		types.TokenBaseImage: row.Get(types.ColBaseImage),
		types.TokenJarFile:   row.Get(types.ColJarFile),

		types.TokenExposePort:   row.GetDefault(types.ColExposePort, "8092"),
		types.TokenNamespace:    row.GetDefault("namespace", "default"),
		types.TokenReplicas:     row.GetDefault("replicas", "1"),
		types.TokenAppImageName: row.GetDefault("application_image_name", app),

		types.TokenCPURequest:    row.GetDefault("cpu_request", r.defaults.CPURequest),
		types.TokenCPULimit:      row.GetDefault("cpu_limit", r.defaults.CPULimit),
		types.TokenMemoryRequest: row.GetDefault("memory_request", r.defaults.MemoryRequest),
		types.TokenMemoryLimit:   row.GetDefault("memory_limit", r.defaults.MemoryLimit),

		types.TokenImagePullSecret: row.GetDefault("image_pull_secret", "nexus-registry"),
		types.TokenAppVersion:      row.GetDefault("application_version", "1.0.0"),
		types.TokenLogTraceEnabled: row.GetDefault("log_trace_enabled", "false"),
		types.TokenNonProdEnv:      row.GetDefault("non_prod_env_default", "UAT"),
		types.TokenSnapshotSuffix:  row.GetDefault("snapshot_default", "-SNAPSHOT"),
		types.TokenCRNumber:        row.Get("cr_number_default"),
		types.TokenJDKPath:         row.GetDefault("jdk_path", "/usr/lib/jvm/default"),
		types.TokenMavenPath:       row.GetDefault("maven_path", "/usr/lib/maven"),
		types.TokenBuildEnabled:    row.GetDefault("build_enabled", "false"),
		types.TokenNexusID:         row.GetDefault("nexus_id", "nexus3uk"),
		types.TokenNexusCred:       row.GetDefault("nexus_jenkins_cred", "GB-SVC-CDMS-SHP"),
		types.TokenPomPath:         row.GetDefault("pom_path", "./pom.xml"),
		types.TokenMavenGoal:       row.GetDefault("maven_goal", "clean install"),
		types.TokenContainerBuild:  row.GetDefault("container_build_type", "kaniko"),
		types.TokenDockerfileDir:   row.GetDefault("dockerfile_location", "."),
		types.TokenTagExpr:         row.GetDefault("tag_expr", "${params.container_image_tag}"),
		types.TokenDockerCred:      row.GetDefault("docker_jenkins_cred", "CDMS-SA-Docker-Config"),
		types.TokenEIM:             row.Get("eim"),
		types.TokenJiraCredID:      row.Get("jira_credential_id"),
		types.TokenJiraHost:        row.Get("jira_host"),
		types.TokenIadpEnabled:     row.GetDefault("iadp_enabled", "false"),
		types.TokenIadpContracts:   row.GetDefault("iadp_contracts_path", "api/contracts"),
		types.TokenPublishToAny:    row.GetDefault("publish_to_any_enabled", "false"),
		types.TokenApixEnabled:     row.GetDefault("apix_enabled", "false"),
	}

	m[types.TokenRegistryHost] = registryHost(row, imageRepo)

	// Agent-dependent tokens are bound only when the flag is truthy, so a
	// template expecting them absent can never receive a blank value.
	agentEnabled := types.IsTruthy(row.GetDefault("agent_enabled", "true"))
	m[types.TokenAgentEnabled] = fmt.Sprintf("%t", agentEnabled)
	if agentEnabled {
		m[types.TokenProjectArea] = row.GetDefault("agent_project_area", "platform")
		m[types.TokenAgentAppName] = row.GetDefault("agent_application_name", app)
		m[types.TokenReleaseConfig] = row.GetDefault("release_config_id", "0")
		m[types.TokenAgentEnvMap] = row.GetDefault("agent_env_map",
			"- { env: DEV, profile: dev }\n- { env: UAT, profile: uat }\n- { env: PROD, profile: prod }")
	}

	if r.profile == types.ProfileExtended {
		m[types.TokenEnvConfigMap] = row.Get(types.ColEnvConfigMap)
		m[types.TokenDBSecret] = row.Get(types.ColDBSecret)
		m[types.TokenDBConfigMap] = row.Get(types.ColDBConfigMap)
		m[types.TokenServicePort] = row.Get(types.ColServicePort)
		m[types.TokenTargetPort] = row.Get(types.ColTargetPort)
	}

	hosts := SplitHosts(row.Get(types.ColIngressHosts))
	m[types.TokenIngressHosts] = strings.Join(hosts, ",")
	m[types.TokenIngressHostsBlock] = HostsBlock(hosts, "    ")

	// Credential identifiers must survive resolution non-empty; a row can
	// blank a default on purpose, which is rejected here rather than
	// rendered into an invalid pipeline config.
	var empty []string
	for _, tok := range []string{types.TokenNexusCred, types.TokenDockerCred} {
		if m[tok] == "" {
			empty = append(empty, tok)
		}
	}
	if len(empty) > 0 {
		return nil, &types.MissingFieldsError{App: app, Fields: empty}
	}

	return m, nil
}

// registryHost derives the registry host token: an explicit column wins,
// otherwise the image repository's first path segment.
func registryHost(row types.Row, imageRepo string) string {
	if v := row.Get("registry_host"); v != "" {
		return v
	}
	if idx := strings.Index(imageRepo, "/"); idx > 0 {
		return imageRepo[:idx]
	}
	return imageRepo
}

// SplitHosts parses a comma-separated hostname list, dropping empty
// entries.
func SplitHosts(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// HostsBlock expands hostnames into an indented YAML sequence consumed by
// the values template. An empty list renders the explicit empty-collection
// literal so the consuming document stays parseable.
func HostsBlock(hosts []string, indent string) string {
	if len(hosts) == 0 {
		return "[]"
	}
	var b strings.Builder
	for _, h := range hosts {
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(h)
	}
	return b.String()
}
