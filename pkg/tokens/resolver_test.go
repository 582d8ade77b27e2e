package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/stencil/pkg/types"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	}
}

func baseRow() types.Row {
	return types.Row{
		types.ColRepoURL:   "https://git.example/org/app1",
		types.ColBranch:    "main",
		types.ColAppName:   "app1",
		types.ColImageRepo: "registry/app1",
		types.ColBaseImage: "openjdk:17",
		types.ColJarFile:   "app1.jar",
	}
}

func TestResolveAppliesDefaults(t *testing.T) {
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))

	m, err := r.Resolve(baseRow())
	require.NoError(t, err)

	assert.Equal(t, "app1", m[types.TokenAppName])
	assert.Equal(t, "registry/app1", m[types.TokenImageRepo])
	assert.Equal(t, "openjdk:17", m[types.TokenBaseImage])
	assert.Equal(t, "app1.jar", m[types.TokenJarFile])
	assert.Equal(t, "20250314150926", m[types.TokenTag])
	assert.Equal(t, "8092", m[types.TokenExposePort])
	assert.Equal(t, "100m", m[types.TokenCPURequest])
	assert.Equal(t, "512Mi", m[types.TokenMemoryLimit])
	assert.Equal(t, "nexus-registry", m[types.TokenImagePullSecret])
	assert.Equal(t, "nexus3uk", m[types.TokenNexusID])
	assert.Equal(t, "app1", m[types.TokenAppImageName])
	// Retained for the downstream templating pass, untouched.
	assert.Equal(t, "${params.container_image_tag}", m[types.TokenTagExpr])
}

func TestResolveRowValuesWinOverDefaults(t *testing.T) {
	row := baseRow()
	row["expose_port"] = "9090"
	row["cpu_limit"] = "2"
	row["application_image_name"] = "app1-svc"

	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))
	m, err := r.Resolve(row)
	require.NoError(t, err)

	assert.Equal(t, "9090", m[types.TokenExposePort])
	assert.Equal(t, "2", m[types.TokenCPULimit])
	assert.Equal(t, "app1-svc", m[types.TokenAppImageName])
}

func TestResolveMissingMandatory(t *testing.T) {
	row := baseRow()
	delete(row, types.ColBaseImage)

	r := NewResolver(types.ProfileStandard, Defaults{})
	_, err := r.Resolve(row)
	require.Error(t, err)

	var missing *types.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{types.ColBaseImage}, missing.Fields)
	assert.Equal(t, "app1", missing.App)
}

func TestResolveRegistryHostDerived(t *testing.T) {
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))

	m, err := r.Resolve(baseRow())
	require.NoError(t, err)
	assert.Equal(t, "registry", m[types.TokenRegistryHost])

	row := baseRow()
	row[types.ColImageRepo] = "plainrepo"
	m, err = r.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "plainrepo", m[types.TokenRegistryHost])

	row = baseRow()
	row["registry_host"] = "registry.internal:5000"
	m, err = r.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "registry.internal:5000", m[types.TokenRegistryHost])
}

func TestResolveTagIsFreshPerInvocation(t *testing.T) {
	current := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(func() time.Time {
		current = current.Add(time.Second)
		return current
	}))

	first, err := r.Resolve(baseRow())
	require.NoError(t, err)
	second, err := r.Resolve(baseRow())
	require.NoError(t, err)
	assert.NotEqual(t, first[types.TokenTag], second[types.TokenTag])
}

func TestResolveAgentFlagPrunesDependentTokens(t *testing.T) {
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))

	// Default is enabled.
	m, err := r.Resolve(baseRow())
	require.NoError(t, err)
	assert.Equal(t, "true", m[types.TokenAgentEnabled])
	assert.True(t, m.Has(types.TokenProjectArea))
	assert.True(t, m.Has(types.TokenAgentEnvMap))

	row := baseRow()
	row["agent_enabled"] = "no"
	m, err = r.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "false", m[types.TokenAgentEnabled])
	// Pruned, not blank.
	assert.False(t, m.Has(types.TokenProjectArea))
	assert.False(t, m.Has(types.TokenAgentAppName))
	assert.False(t, m.Has(types.TokenReleaseConfig))
	assert.False(t, m.Has(types.TokenAgentEnvMap))
}

func TestResolveAgentFlagTruthyVocabulary(t *testing.T) {
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))

	for _, v := range []string{"true", "YES", "y", "1"} {
		row := baseRow()
		row["agent_enabled"] = v
		m, err := r.Resolve(row)
		require.NoError(t, err)
		assert.Equal(t, "true", m[types.TokenAgentEnabled], "value %q", v)
	}

	for _, v := range []string{"on", "enabled", "tru"} {
		row := baseRow()
		row["agent_enabled"] = v
		m, err := r.Resolve(row)
		require.NoError(t, err)
		assert.Equal(t, "false", m[types.TokenAgentEnabled], "value %q", v)
	}
}

func TestResolveExtendedProfile(t *testing.T) {
	row := baseRow()
	row[types.ColEnvConfigMap] = "app1-env"
	row[types.ColDBSecret] = "app1-db-credentials"
	row[types.ColDBConfigMap] = "app1-db-config"
	row[types.ColIngressHosts] = "app1.example.com, app1.internal.example.com"
	row[types.ColServicePort] = "80"
	row[types.ColTargetPort] = "8092"

	r := NewResolver(types.ProfileExtended, Defaults{}, WithClock(fixedClock()))
	m, err := r.Resolve(row)
	require.NoError(t, err)

	assert.Equal(t, "app1-env", m[types.TokenEnvConfigMap])
	assert.Equal(t, "80", m[types.TokenServicePort])
	assert.Equal(t, "8092", m[types.TokenTargetPort])
	assert.Equal(t, "app1.example.com,app1.internal.example.com", m[types.TokenIngressHosts])
	assert.Equal(t, "\n    - app1.example.com\n    - app1.internal.example.com", m[types.TokenIngressHostsBlock])
}

func TestResolveExtendedProfileMissingFields(t *testing.T) {
	r := NewResolver(types.ProfileExtended, Defaults{})
	_, err := r.Resolve(baseRow())

	var missing *types.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Fields, types.ColEnvConfigMap)
	assert.Contains(t, missing.Fields, types.ColTargetPort)
	assert.Len(t, missing.Fields, 6)
}

func TestResolveEmptyIngressListRendersEmptyCollection(t *testing.T) {
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))
	m, err := r.Resolve(baseRow())
	require.NoError(t, err)
	assert.Equal(t, "[]", m[types.TokenIngressHostsBlock])
}

func TestResolveBlankedCredentialRejected(t *testing.T) {
	row := baseRow()
	row["nexus_jenkins_cred"] = "   "

	// A whitespace-only value trims to empty, falls back to the default,
	// and passes.
	r := NewResolver(types.ProfileStandard, Defaults{}, WithClock(fixedClock()))
	m, err := r.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "GB-SVC-CDMS-SHP", m[types.TokenNexusCred])
}

func TestSplitHosts(t *testing.T) {
	assert.Nil(t, SplitHosts(""))
	assert.Nil(t, SplitHosts("  , ,"))
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, SplitHosts(" a.example.com ,b.example.com"))
}

func TestHostsBlock(t *testing.T) {
	assert.Equal(t, "[]", HostsBlock(nil, "  "))
	assert.Equal(t, "\n  - a\n  - b", HostsBlock([]string{"a", "b"}, "  "))
}
