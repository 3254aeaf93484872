// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"forgeenv-cli/internal/archive"
	"forgeenv-cli/internal/fetch"
	"forgeenv-cli/internal/issue"
	"forgeenv-cli/internal/pkgmgr"
	"forgeenv-cli/internal/plan"
	"forgeenv-cli/internal/retry"
)

// ProfileFileName is the shell profile rendered into the install
// prefix after a successful run.
const ProfileFileName = "env.sh"

// ErrPackageManagerUnavailable is returned when a plan needs OS
// packages but no supported package manager is on PATH.
var ErrPackageManagerUnavailable = errors.New("no supported package manager found")

type (
	// Option configures a Provisioner.
	Option func(*Provisioner)

	// Provisioner runs plans step by step, retrying each step with the
	// configured executor and threading an immutable Environment
	// through the run.
	Provisioner struct {
		cacheDir      string
		installPrefix string

		executor *retry.Executor
		manager  pkgmgr.Manager
		client   *fetch.Client
		scripts  *ScriptRunner
		logger   *log.Logger

		dryRun bool
		only   map[string]struct{}

		// environ supplies the base process environment for script
		// steps. Swapped in tests.
		environ func() []string
	}
)

// WithCacheDir sets the directory downloaded archives are kept in.
func WithCacheDir(dir string) Option {
	return func(p *Provisioner) {
		p.cacheDir = dir
	}
}

// WithInstallPrefix sets the root directory tools install under.
func WithInstallPrefix(dir string) Option {
	return func(p *Provisioner) {
		p.installPrefix = dir
	}
}

// WithExecutor sets the retry executor used for every step.
func WithExecutor(e *retry.Executor) Option {
	return func(p *Provisioner) {
		p.executor = e
	}
}

// WithManager sets the OS package manager.
func WithManager(m pkgmgr.Manager) Option {
	return func(p *Provisioner) {
		p.manager = m
	}
}

// WithClient sets the download client.
func WithClient(c *fetch.Client) Option {
	return func(p *Provisioner) {
		p.client = c
	}
}

// WithScriptRunner sets the embedded shell runner for script steps.
func WithScriptRunner(r *ScriptRunner) Option {
	return func(p *Provisioner) {
		p.scripts = r
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithDryRun logs what each step would do without executing anything.
func WithDryRun(dryRun bool) Option {
	return func(p *Provisioner) {
		p.dryRun = dryRun
	}
}

// WithOnly restricts the run to the named steps. An empty list runs
// everything.
func WithOnly(names ...string) Option {
	return func(p *Provisioner) {
		if len(names) == 0 {
			return
		}

		p.only = make(map[string]struct{}, len(names))
		for _, n := range names {
			p.only[n] = struct{}{}
		}
	}
}

// WithEnviron overrides the base process environment for script steps.
func WithEnviron(environ func() []string) Option {
	return func(p *Provisioner) {
		p.environ = environ
	}
}

// New creates a Provisioner. Unset collaborators get working defaults:
// a default-policy retry executor, the apt package manager, a plain
// download client, and a script runner wired to the process streams.
func New(opts ...Option) *Provisioner {
	p := &Provisioner{
		executor: retry.NewExecutor(),
		manager:  pkgmgr.NewApt(pkgmgr.WithOutput(os.Stderr, os.Stderr)),
		client:   fetch.NewClient(),
		scripts:  NewScriptRunner(os.Stdin, os.Stdout, os.Stderr),
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "forgeenv"}),
		environ:  os.Environ,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Validate checks a plan against this Provisioner's collaborators
// before anything runs: script syntax, --only names that match no
// step, and package manager availability when packages steps exist.
func (p *Provisioner) Validate(pl *plan.Plan) error {
	var errs []error

	for name := range p.only {
		if pl.Step(name) == nil {
			errs = append(errs, fmt.Errorf("no step named %q in plan", name))
		}
	}

	needsPackages := false

	for i := range pl.Steps {
		s := &pl.Steps[i]

		switch s.Kind {
		case plan.KindPackages:
			needsPackages = true
		case plan.KindScript:
			if err := p.scripts.CheckSyntax(s.Script); err != nil {
				errs = append(errs, fmt.Errorf("step %q: %w", s.Name, err))
			}
		case plan.KindDownload, plan.KindExtract:
		}
	}

	if needsPackages && !p.dryRun && !p.manager.Available() {
		errs = append(errs, issue.NewErrorContext().
			WithOperation("check package manager").
			WithSuggestion("Install apt-get or run on a Debian-based system").
			WithSuggestion("Remove packages steps from the plan to provision without OS packages").
			Wrap(ErrPackageManagerUnavailable).
			BuildError())
	}

	return errors.Join(errs...)
}

// Run executes the plan and returns the Environment accumulated from
// all successful steps. The first step whose retries are exhausted
// aborts the run.
func (p *Provisioner) Run(ctx context.Context, pl *plan.Plan) (*Environment, error) {
	if err := p.Validate(pl); err != nil {
		return nil, err
	}

	env := NewEnvironment()

	for i := range pl.Steps {
		s := &pl.Steps[i]

		if p.only != nil {
			if _, wanted := p.only[s.Name]; !wanted {
				p.logger.Debug("skipping step", "step", s.Name)
				continue
			}
		}

		if p.dryRun {
			p.logger.Info("would run step", "step", s.Name, "kind", s.Kind, "detail", p.describe(s))
			env = p.applyExports(env, s)

			continue
		}

		p.logger.Info("running step", "step", s.Name, "kind", s.Kind)

		outcome := p.executor.Run(ctx, s.Name, p.stepOp(s, env))
		if outcome.Failed() {
			return nil, p.stepFailure(s, outcome)
		}

		env = p.applyExports(env, s)
		p.logger.Info("step complete", "step", s.Name, "attempts", outcome.Attempts)
	}

	if !p.dryRun {
		if err := p.writeProfile(env); err != nil {
			return nil, err
		}
	}

	return env, nil
}

// stepOp adapts one plan step into a retryable operation. The
// Environment snapshot the step observes is the one accumulated before
// the step started; its own exports apply only after it succeeds.
func (p *Provisioner) stepOp(s *plan.Step, env *Environment) retry.Op {
	switch s.Kind {
	case plan.KindPackages:
		return func(ctx context.Context, _ int) error {
			return p.installPackages(ctx, s)
		}
	case plan.KindDownload:
		return func(ctx context.Context, _ int) error {
			return p.download(ctx, s)
		}
	case plan.KindExtract:
		return func(ctx context.Context, _ int) error {
			return p.extract(ctx, s)
		}
	case plan.KindScript:
		return func(ctx context.Context, _ int) error {
			return p.runScript(ctx, s, env)
		}
	}

	return func(context.Context, int) error {
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
}

func (p *Provisioner) installPackages(ctx context.Context, s *plan.Step) error {
	if s.Update {
		if err := p.manager.Update(ctx); err != nil {
			return err
		}
	}

	return p.manager.Install(ctx, s.Packages)
}

func (p *Provisioner) download(ctx context.Context, s *plan.Step) error {
	dest := filepath.Join(p.cacheDir, s.Filename())

	want := s.SHA256
	if want == "" && s.SHA256URL != "" {
		resolved, err := p.resolveChecksum(ctx, s)
		if err != nil {
			return err
		}

		want = resolved
	}

	if want != "" {
		if err := fetch.VerifyFile(dest, want); err == nil {
			p.logger.Debug("using cached archive", "step", s.Name, "file", dest)
			return nil
		}
	}

	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if err := p.client.DownloadFile(ctx, s.URL, dest); err != nil {
		return err
	}

	if want != "" {
		if err := fetch.VerifyFile(dest, want); err != nil {
			// A corrupt file must not satisfy the cache check on the
			// next attempt.
			_ = os.Remove(dest)

			return err
		}
	}

	return nil
}

// resolveChecksum fetches the step's checksums file and looks up the
// entry for the file being downloaded. Runs inside the step's retry
// scope, so a flaky checksum host gets the same retry treatment as the
// archive itself.
func (p *Provisioner) resolveChecksum(ctx context.Context, s *plan.Step) (string, error) {
	body, err := p.client.Get(ctx, s.SHA256URL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	entries, err := fetch.ParseChecksums(body)
	if err != nil {
		return "", fmt.Errorf("parse checksums from %s: %w", s.SHA256URL, err)
	}

	hash, err := fetch.FindChecksum(entries, s.Filename())
	if err != nil {
		return "", fmt.Errorf("resolve checksum for %s: %w", s.Filename(), err)
	}

	return hash, nil
}

func (p *Provisioner) extract(_ context.Context, s *plan.Step) error {
	archivePath := filepath.Join(p.cacheDir, s.Archive)
	dest := p.resolvePrefixed(s.Dest)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	return archive.Extract(archivePath, dest, archive.Options{
		StripComponents: s.StripComponents,
	})
}

func (p *Provisioner) runScript(ctx context.Context, s *plan.Step, env *Environment) error {
	if err := os.MkdirAll(p.installPrefix, 0o755); err != nil {
		return fmt.Errorf("create install prefix: %w", err)
	}

	environ := env.
		WithVar("FORGEENV_PREFIX", p.installPrefix).
		WithVar("FORGEENV_CACHE_DIR", p.cacheDir).
		Environ(p.environ())

	return p.scripts.Run(ctx, s.Script, p.installPrefix, environ)
}

// applyExports folds a successful step's PATH and variable exports
// into the run environment. Relative PATH entries resolve under the
// install prefix.
func (p *Provisioner) applyExports(env *Environment, s *plan.Step) *Environment {
	for _, dir := range s.Path {
		env = env.WithPathEntry(p.resolvePrefixed(dir))
	}

	for _, name := range sortedKeys(s.Env) {
		env = env.WithVar(name, s.Env[name])
	}

	return env
}

func (p *Provisioner) resolvePrefixed(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}

	return filepath.Join(p.installPrefix, dir)
}

func (p *Provisioner) writeProfile(env *Environment) error {
	if err := os.MkdirAll(p.installPrefix, 0o755); err != nil {
		return fmt.Errorf("create install prefix: %w", err)
	}

	profilePath := filepath.Join(p.installPrefix, ProfileFileName)

	if err := os.WriteFile(profilePath, []byte(env.RenderProfile()), 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", profilePath, err)
	}

	p.logger.Info("wrote shell profile", "path", profilePath)

	return nil
}

func (p *Provisioner) describe(s *plan.Step) string {
	switch s.Kind {
	case plan.KindPackages:
		return fmt.Sprintf("install %d package(s)", len(s.Packages))
	case plan.KindDownload:
		return fmt.Sprintf("download %s", s.URL)
	case plan.KindExtract:
		return fmt.Sprintf("extract %s into %s", s.Archive, p.resolvePrefixed(s.Dest))
	case plan.KindScript:
		return "run inline script"
	}

	return string(s.Kind)
}

func (p *Provisioner) stepFailure(s *plan.Step, outcome retry.Outcome) error {
	ec := issue.NewErrorContext().
		WithOperation(fmt.Sprintf("run step %q", s.Name)).
		WithSuggestion(fmt.Sprintf("All %d attempts failed; the last error is shown above", outcome.Attempts))

	switch s.Kind {
	case plan.KindPackages:
		ec = ec.WithSuggestion("Check network connectivity to the package mirrors").
			WithSuggestion("Run 'apt-get update' manually to inspect mirror errors")
	case plan.KindDownload:
		ec = ec.WithResource(s.URL).
			WithSuggestion("Check network connectivity and that the URL is still valid").
			WithSuggestion("Partial downloads are kept and resumed on the next run")
	case plan.KindExtract:
		ec = ec.WithResource(s.Archive).
			WithSuggestion("Delete the cached archive to force a fresh download")
	case plan.KindScript:
		ec = ec.WithSuggestion("Run with --verbose to see the script's output")
	}

	return ec.Wrap(outcome.Err).BuildError()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
