package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rzbill/stencil/pkg/exec"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/types"
)

// Verification outcomes as rendered into the pull request body.
const (
	ResultPass    = "PASS"
	ResultFail    = "FAIL"
	ResultSkipped = "SKIPPED"
)

// Results holds the outcome of each local verification step.
type Results struct {
	Docker string
	Helm   string
	Tests  string
}

// Tokens returns the results as PR body token bindings.
func (r Results) Tokens() types.TokenMap {
	return types.TokenMap{
		types.TokenDockerResult: r.Docker,
		types.TokenHelmResult:   r.Helm,
		types.TokenTestResult:   r.Tests,
	}
}

// Skipped returns the result set for a row that opted out of local
// verification.
func Skipped() Results {
	return Results{Docker: ResultSkipped, Helm: ResultSkipped, Tests: ResultSkipped}
}

// Verifier runs the local verification steps. A nil Docker builder skips
// the image build, for hosts without a reachable daemon.
type Verifier struct {
	docker *Docker
	exec   exec.Executor
	logger log.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(docker *Docker, executor exec.Executor, logger log.Logger) *Verifier {
	return &Verifier{docker: docker, exec: executor, logger: logger.WithComponent("build")}
}

// Verify runs the image build, the language build with its tests and the
// chart lint against a prepared working copy. Each step's failure is
// recorded in the results rather than aborting the row; the pull request
// surfaces the outcome to its reviewers.
func (v *Verifier) Verify(ctx context.Context, workDir, chartDir, imageRef string, lang types.Language) Results {
	res := Results{Docker: ResultSkipped, Helm: ResultSkipped, Tests: ResultSkipped}

	if v.docker != nil {
		if err := v.docker.BuildImage(ctx, workDir, "Dockerfile", imageRef); err != nil {
			v.logger.Warn("Image build failed", log.Err(err))
			res.Docker = ResultFail
		} else {
			res.Docker = ResultPass
		}
	}

	if lang == types.LanguageJVM {
		res.Tests = v.runStep(ctx, workDir, mavenArgv(workDir))
	}

	res.Helm = v.runStep(ctx, workDir, []string{"helm", "lint", chartDir})
	return res
}

// runStep executes one verification command and maps its exit status.
func (v *Verifier) runStep(ctx context.Context, workDir string, argv []string) string {
	result, err := v.exec.Run(ctx, workDir, argv...)
	if err != nil {
		v.logger.Warn("Verification step could not run",
			log.Str("cmd", strings.Join(argv, " ")), log.Err(err))
		return ResultSkipped
	}
	if result.ExitCode != 0 {
		v.logger.Warn("Verification step failed",
			log.Str("cmd", strings.Join(argv, " ")),
			log.Int("exit", result.ExitCode))
		return ResultFail
	}
	return ResultPass
}

// mavenArgv prefers the repository's own wrapper over a system maven.
func mavenArgv(workDir string) []string {
	if _, err := os.Stat(filepath.Join(workDir, "mvnw")); err == nil {
		return []string{"./mvnw", "package"}
	}
	return []string{"mvn", "package"}
}

// ImageRef builds the local tag for a verification image.
func ImageRef(tokens types.TokenMap) string {
	return fmt.Sprintf("%s:%s", tokens[types.TokenImageRepo], tokens[types.TokenTag])
}
