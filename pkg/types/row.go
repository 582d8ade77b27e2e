// Package types defines the core data model for Stencil propagation runs.
package types

import "strings"

// Column names recognized in the tabular input. One row describes one
// target repository.
const (
	ColRepoURL        = "repoUrl"
	ColBranch         = "branch"
	ColAppName        = "appName"
	ColImageRepo      = "imageRepo"
	ColLang           = "lang"
	ColSkipLocalBuild = "skipLocalBuild"
	ColBaseImage      = "base_image"
	ColJarFile        = "jar_file"
	ColExposePort     = "expose_port"

	// Extended-profile columns, mandatory when the extended profile is active.
	ColEnvConfigMap = "env_configmap"
	ColDBSecret     = "db_secret"
	ColDBConfigMap  = "db_configmap"
	ColIngressHosts = "ingress_hosts"
	ColServicePort  = "service_port"
	ColTargetPort   = "target_port"
)

// Row is one unit of tabular input: a mapping of column name to raw string
// value. Rows are immutable once read.
type Row map[string]string

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Has reports whether a column is present with a non-empty value.
func (r Row) Has(col string) bool {
	return r.Get(col) != ""
}

// GetDefault returns the column value, or def when absent or empty.
func (r Row) GetDefault(col, def string) string {
	if v := r.Get(col); v != "" {
		return v
	}
	return def
}

// RepoURL returns the clone URL for the row's target repository.
func (r Row) RepoURL() string { return r.Get(ColRepoURL) }

// AppName returns the application name for the row.
func (r Row) AppName() string { return r.Get(ColAppName) }

// BaseBranch returns the declared base branch for the row.
func (r Row) BaseBranch() string { return r.Get(ColBranch) }

// Language is the template variant discriminator for a row.
type Language string

const (
	LanguageJVM    Language = "jvm"
	LanguagePython Language = "python"
)

// Lang returns the row's language variant. JVM is the default; "python"
// and "py" select the Python variant, anything else falls back to JVM.
func (r Row) Lang() Language {
	switch strings.ToLower(r.Get(ColLang)) {
	case "python", "py":
		return LanguagePython
	default:
		return LanguageJVM
	}
}

// SkipLocalBuild reports whether the row opts out of the local build steps.
func (r Row) SkipLocalBuild() bool {
	return IsTruthy(r.Get(ColSkipLocalBuild))
}

// IsTruthy reports whether a raw flag value matches the accepted truthy
// vocabulary. The match is case-insensitive; anything else is false.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}

// Profile selects the pipeline variant a run renders and validates for.
type Profile string

const (
	// ProfileStandard is the default artifact set.
	ProfileStandard Profile = "standard"
	// ProfileExtended adds the config-map/secret/ingress wiring and its
	// additional mandatory columns.
	ProfileExtended Profile = "extended"
)

// MandatoryColumns returns the columns that must be present and non-empty
// before any side effect occurs for a row.
func MandatoryColumns(profile Profile) []string {
	cols := []string{ColRepoURL, ColBranch, ColAppName, ColImageRepo, ColBaseImage, ColJarFile}
	if profile == ProfileExtended {
		cols = append(cols,
			ColEnvConfigMap, ColDBSecret, ColDBConfigMap,
			ColIngressHosts, ColServicePort, ColTargetPort,
		)
	}
	return cols
}

// MissingMandatory returns the mandatory columns the row does not satisfy,
// in declaration order.
func (r Row) MissingMandatory(profile Profile) []string {
	var missing []string
	for _, col := range MandatoryColumns(profile) {
		if !r.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}
