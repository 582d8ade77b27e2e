// Package propagate drives the end-to-end pipeline: resolve, render,
// validate, reconcile, commit and submit, one row at a time.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/stencil/pkg/build"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/scm"
	"github.com/rzbill/stencil/pkg/store"
	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/tokens"
	"github.com/rzbill/stencil/pkg/types"
	"github.com/rzbill/stencil/pkg/validate"
)

// RepoPreparer reconciles the working copy and change branch for a row.
type RepoPreparer interface {
	Prepare(ctx context.Context, repoURL, baseBranch, app string) (*types.RepoContext, error)
}

// ArtifactCommitter writes and publishes rendered artifacts.
type ArtifactCommitter interface {
	WriteArtifacts(workDir string, artifacts []types.RenderedArtifact) error
	CommitAndPush(ctx context.Context, rc *types.RepoContext, app string, paths []string) (bool, error)
}

// LocalVerifier runs the optional local build checks.
type LocalVerifier interface {
	Verify(ctx context.Context, workDir, chartDir, imageRef string, lang types.Language) build.Results
}

// PRCreator submits the pull request for a pushed change branch.
type PRCreator interface {
	CreatePR(ctx context.Context, cloneURL string, pr scm.PullRequest) (url string, alreadyExists bool, err error)
}

// Options are the per-run knobs.
type Options struct {
	Profile types.Profile

	// DryRun stops each row after validation; nothing is cloned, written
	// or pushed.
	DryRun bool

	// SkipBuild disables local verification for every row, regardless of
	// the row's own skip column.
	SkipBuild bool

	// PRTitleFmt receives the application name.
	PRTitleFmt string
}

// Orchestrator runs the pipeline over a row set sequentially. A row
// failure is isolated: it is recorded and the run moves on.
type Orchestrator struct {
	opts      Options
	resolver  *tokens.Resolver
	library   *template.Library
	renderer  *template.Renderer
	repos     RepoPreparer
	committer ArtifactCommitter
	verifier  LocalVerifier
	prs       PRCreator
	journal   store.Store
	logger    log.Logger
	now       func() time.Time
}

// New creates an orchestrator. verifier and prs may be nil: verification
// is then skipped and pull requests are left for the operator.
func New(
	opts Options,
	resolver *tokens.Resolver,
	library *template.Library,
	repos RepoPreparer,
	committer ArtifactCommitter,
	verifier LocalVerifier,
	prs PRCreator,
	journal store.Store,
	logger log.Logger,
) *Orchestrator {
	if opts.PRTitleFmt == "" {
		opts.PRTitleFmt = "Add standardized CI/CD templates for %s"
	}
	return &Orchestrator{
		opts:      opts,
		resolver:  resolver,
		library:   library,
		renderer:  template.NewRenderer(),
		repos:     repos,
		committer: committer,
		verifier:  verifier,
		prs:       prs,
		journal:   journal,
		logger:    logger.WithComponent("propagate"),
		now:       time.Now,
	}
}

// Run processes every row and returns the aggregate report. The report is
// journaled before returning; a journaling failure is logged, not fatal.
func (o *Orchestrator) Run(ctx context.Context, rows []types.Row) *types.Report {
	report := &types.Report{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		DryRun:    o.opts.DryRun,
	}

	o.logger.Info("Starting propagation run",
		log.Str("run_id", report.RunID),
		log.Int("rows", len(rows)),
		log.Bool("dry_run", o.opts.DryRun))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			report.Add(types.RowResult{
				App:     row.AppName(),
				RepoURL: row.RepoURL(),
				Message: "run aborted: " + err.Error(),
			})
			continue
		}
		report.Add(o.processRow(ctx, i, row))
	}

	report.FinishedAt = o.now()
	if o.journal != nil {
		if err := o.journal.SaveReport(report); err != nil {
			o.logger.Error("Failed to journal run report", log.Err(err))
		}
	}
	return report
}

// processRow runs the pipeline for one row. A panic in any stage is
// converted into a row failure so the remaining rows still run.
func (o *Orchestrator) processRow(ctx context.Context, index int, row types.Row) (result types.RowResult) {
	start := o.now()
	result = types.RowResult{App: row.AppName(), RepoURL: row.RepoURL()}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Message = fmt.Sprintf("panic: %v", r)
			o.logger.Error("Row processing panicked",
				log.Int("row", index), log.Str("app", result.App), log.Any("panic", r))
		}
		result.Duration = o.now().Sub(start)
	}()

	logger := o.logger.With(log.Str("app", row.AppName()), log.Int("row", index))

	tokenMap, err := o.resolver.Resolve(row)
	if err != nil {
		result.Message = err.Error()
		logger.Warn("Row rejected", log.Err(err))
		return result
	}

	logger.Debug("Tokens resolved", log.Any("tokens", tokenMap.Names()))

	app := row.AppName()
	agentEnabled := tokenMap[types.TokenAgentEnabled] == "true"
	plans := template.PlanFor(app, o.opts.Profile, row.Lang(), agentEnabled)

	artifacts, err := template.RenderAll(o.library, o.renderer, plans, tokenMap)
	if err != nil {
		result.Message = "render: " + err.Error()
		return result
	}

	checks := validate.All(plans, artifacts)
	if !validate.Passed(checks) {
		result.Message = "validation failed: " + validate.Summary(checks)
		logger.Warn("Guardrail checks failed", log.Str("detail", validate.Summary(checks)))
		return result
	}

	if o.opts.DryRun {
		result.Success = true
		result.Message = fmt.Sprintf("dry run: %d artifacts rendered and validated", len(artifacts))
		return result
	}

	rc, err := o.repos.Prepare(ctx, row.RepoURL(), row.BaseBranch(), app)
	if err != nil {
		result.Message = "prepare repository: " + err.Error()
		return result
	}

	if err := o.committer.WriteArtifacts(rc.WorkDir, artifacts); err != nil {
		result.Message = "write artifacts: " + err.Error()
		return result
	}

	verification := build.Skipped()
	if o.verifier != nil && !o.opts.SkipBuild && !row.SkipLocalBuild() {
		verification = o.verifier.Verify(ctx, rc.WorkDir, "helm-"+app, build.ImageRef(tokenMap), row.Lang())
	}

	prBody, err := o.renderPRBody(tokenMap, verification)
	if err != nil {
		if types.IsValidationError(err) {
			result.Message = "validation failed: " + err.Error()
			logger.Warn("Guardrail checks failed", log.Str("detail", err.Error()))
		} else {
			result.Message = "render PR body: " + err.Error()
		}
		return result
	}
	if err := o.committer.WriteArtifacts(rc.WorkDir, []types.RenderedArtifact{prBody}); err != nil {
		result.Message = "write PR body: " + err.Error()
		return result
	}

	paths := make([]string, 0, len(artifacts)+1)
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	paths = append(paths, prBody.Path)

	pushed, err := o.committer.CommitAndPush(ctx, rc, app, paths)
	if err != nil {
		result.Message = "publish: " + err.Error()
		return result
	}

	// A PR is attempted when this run pushed, and also when the branch
	// was already on the remote: an earlier run may have pushed and then
	// failed before submission. A duplicate attempt reports the existing
	// PR instead of erroring.
	if !pushed && !rc.BranchExistedRemotely {
		result.Success = true
		result.Message = "no changes to publish"
		return result
	}

	result.Success = true
	result.PRURL, result.Message = o.submitPR(ctx, logger, row, rc, app, prBody.Content)
	return result
}

// submitPR opens the pull request and returns the PR URL (when one was
// created) and the row message. A missing credential downgrades to a
// manual follow-up, not a failure.
func (o *Orchestrator) submitPR(ctx context.Context, logger log.Logger, row types.Row, rc *types.RepoContext, app, body string) (prURL, message string) {
	manual := fmt.Sprintf("branch %s pushed; open the pull request manually", rc.ChangeBranch)
	if o.prs == nil {
		return "", manual
	}

	url, alreadyExists, err := o.prs.CreatePR(ctx, row.RepoURL(), scm.PullRequest{
		Title: fmt.Sprintf(o.opts.PRTitleFmt, app),
		Body:  body,
		Head:  rc.ChangeBranch,
		Base:  rc.BaseBranch,
	})
	switch {
	case errors.Is(err, scm.ErrNoToken):
		logger.Warn("No SCM token configured, skipping PR submission")
		return "", manual
	case err != nil:
		logger.Warn("PR submission failed", log.Err(err))
		return "", fmt.Sprintf("branch %s pushed but PR submission failed: %v", rc.ChangeBranch, err)
	case alreadyExists:
		return "", "pull request already open"
	default:
		return url, "pull request opened"
	}
}

// renderPRBody renders the PR body artifact with the verification tokens
// layered over the row's map. The body goes through the same guardrail
// check as the other artifacts; it renders late, so its check runs late.
func (o *Orchestrator) renderPRBody(tokenMap types.TokenMap, verification build.Results) (types.RenderedArtifact, error) {
	merged := tokenMap.Clone()
	for k, v := range verification.Tokens() {
		merged[k] = v
	}

	rendered, err := template.RenderAll(o.library, o.renderer, []template.Plan{template.PRBodyPlan()}, merged)
	if err != nil {
		return types.RenderedArtifact{}, err
	}
	if check := validate.Artifact(rendered[0], template.KindText); !check.Passed {
		return types.RenderedArtifact{}, types.NewValidationError("%s: %s", check.Artifact, check.Message)
	}
	return rendered[0], nil
}
