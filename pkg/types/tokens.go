package types

import "sort"

// TokenMap is the fully resolved key to value binding set for one row.
// It is built once per row by the resolver and never mutated afterwards,
// except for template-specific derived fields added at render time.
type TokenMap map[string]string

// Token names substituted into templates.
const (
	TokenAppName       = "APP_NAME"
	TokenImageRepo     = "IMAGE_REPO"
	TokenTag           = "TAG"
	TokenBaseImage     = "BASE_IMAGE"
	TokenJarFile       = "JAR_FILE"
	TokenExposePort    = "EXPOSE_PORT"
	TokenRegistryHost  = "REGISTRY_HOST"
	TokenAppImageName  = "APPLICATION_IMAGE_NAME"
	TokenNamespace     = "NAMESPACE"
	TokenReplicas      = "REPLICAS"
	TokenCPURequest    = "CPU_REQUEST"
	TokenCPULimit      = "CPU_LIMIT"
	TokenMemoryRequest = "MEMORY_REQUEST"
	TokenMemoryLimit   = "MEMORY_LIMIT"

	TokenImagePullSecret = "IMAGE_PULL_SECRET"
	TokenAppVersion      = "APPLICATION_VERSION"
	TokenLogTraceEnabled = "LOG_TRACE_ENABLED"
	TokenNonProdEnv      = "NON_PROD_ENV_DEFAULT"
	TokenSnapshotSuffix  = "SNAPSHOT_DEFAULT"
	TokenCRNumber        = "CR_NUMBER_DEFAULT"
	TokenJDKPath         = "JDK_PATH"
	TokenMavenPath       = "MAVEN_PATH"
	TokenBuildEnabled    = "BUILD_ENABLED"
	TokenNexusID         = "NEXUS_ID"
	TokenNexusCred       = "NEXUS_JENKINS_CRED"
	TokenPomPath         = "POM_PATH"
	TokenMavenGoal       = "MAVEN_GOAL"
	TokenContainerBuild  = "CONTAINER_BUILD_TYPE"
	TokenDockerfileDir   = "DOCKERFILE_LOCATION"
	TokenTagExpr         = "TAG_EXPR"
	TokenDockerCred      = "DOCKER_JENKINS_CRED"
	TokenEIM             = "EIM"
	TokenJiraCredID      = "JIRA_CREDENTIAL_ID"
	TokenJiraHost        = "JIRA_HOST"
	TokenIadpEnabled     = "IADP_ENABLED"
	TokenIadpContracts   = "IADP_CONTRACTS_PATH"
	TokenPublishToAny    = "PUBLISH_TO_ANY_ENABLED"
	TokenApixEnabled     = "APIX_ENABLED"

	// Agent feature flag and its dependent tokens. When the flag is false
	// the dependent tokens are omitted from the map entirely.
	TokenAgentEnabled  = "AGENT_ENABLED"
	TokenProjectArea   = "AGENT_PROJECT_AREA"
	TokenAgentAppName  = "AGENT_APPLICATION_NAME"
	TokenReleaseConfig = "RELEASE_CONFIG_ID"
	TokenAgentEnvMap   = "AGENT_ENV_MAP"

	// Extended-profile tokens.
	TokenEnvConfigMap      = "ENV_CONFIGMAP"
	TokenDBSecret          = "DB_SECRET"
	TokenDBConfigMap       = "DB_CONFIGMAP"
	TokenIngressHosts      = "INGRESS_HOSTS"
	TokenIngressHostsBlock = "INGRESS_HOSTS_BLOCK"
	TokenServicePort       = "SERVICE_PORT"
	TokenTargetPort        = "TARGET_PORT"

	// PR body status tokens.
	TokenDockerResult = "DOCKER_RESULT"
	TokenHelmResult   = "HELM_RESULT"
	TokenTestResult   = "TEST_RESULT"
)

// Has reports whether a token is bound.
func (m TokenMap) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Names returns the bound token names in sorted order.
func (m TokenMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of the map. Render-time derived fields are added to
// a clone so the resolved map stays untouched.
func (m TokenMap) Clone() TokenMap {
	out := make(TokenMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
