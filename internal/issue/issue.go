// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	PlanNotFoundId Id = iota + 1
	PlanParseErrorId
	ConfigLoadFailedId
	PackageManagerNotFoundId
	PackageInstallFailedId
	DownloadFailedId
	ChecksumMismatchId
	ExtractionFailedId
	ScriptExecutionFailedId
	RetriesExhaustedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	planNotFoundIssue = &Issue{
		id: PlanNotFoundId,
		mdMsg: `
# No provisioning plan found!

We searched for a plan file but couldn't find one in the expected locations.

## Search locations (in order of precedence):
1. The path given with --plan
2. ./forgeenv.toml in the current directory
3. plan_path configured in your config file

## Things you can try:
- Point at an explicit plan file:
~~~
$ forgeenv provision --plan ./plans/webengine.toml
~~~

- Or create a minimal plan in the current directory:
~~~toml
[[step]]
name = "toolchain-packages"
kind = "packages"
packages = ["build-essential", "ninja-build"]
~~~`,
	}

	planParseErrorIssue = &Issue{
		id: PlanParseErrorId,
		mdMsg: `
# Failed to parse the provisioning plan!

Your plan file contains syntax errors or invalid step definitions.

## Common issues:
- Invalid TOML syntax (missing quotes, brackets, etc.)
- Unknown step kind (valid: packages, download, extract, script)
- A download step without a url
- Duplicate step names

## Things you can try:
- Check the error message above for the specific field
- Validate the plan without running it:
~~~
$ forgeenv plan show --plan ./forgeenv.toml
~~~

## Example of a valid download step:
~~~toml
[[step]]
name = "fetch-cmake"
kind = "download"
url = "https://example.com/cmake-3.28.3-linux-x86_64.tar.gz"
sha256 = "bbfa4" # full 64-char hash
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the forgeenv configuration file.

## Configuration file locations:
- Linux: ~/.config/forgeenv/config.toml
- macOS: ~/Library/Application Support/forgeenv/config.toml
- Windows: %APPDATA%\forgeenv\config.toml

## Things you can try:
- Check the configuration syntax
- Remove the config file to use defaults
- Inspect the effective configuration:
~~~
$ forgeenv config show
~~~

## Example configuration:
~~~toml
cache_dir = "/var/cache/forgeenv"
install_prefix = "/opt/toolchain"

[retry]
attempts = 5
delay = "15s"
~~~`,
	}

	packageManagerNotFoundIssue = &Issue{
		id: PackageManagerNotFoundId,
		mdMsg: `
# Package manager not found!

A packages step needs apt-get, but it is not available on this system.

## Things you can try:
- Run forgeenv inside a Debian/Ubuntu environment (e.g. ubuntu:22.04)
- Remove packages steps from the plan when provisioning a non-apt host
- Install the tools listed in the step manually and re-run`,
	}

	packageInstallFailedIssue = &Issue{
		id: PackageInstallFailedId,
		mdMsg: `
# Package installation failed!

apt-get exited non-zero after all retry attempts.

## Common causes:
- A package name in the plan does not exist in the configured repositories
- The apt lists are stale (the plan should start with an update step)
- Another process holds the dpkg lock

## Things you can try:
- Re-run with verbose mode for the full apt output:
~~~
$ forgeenv --verbose provision
~~~

- Verify the package names:
~~~
$ apt-cache policy <package>
~~~`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Archive download failed!

The download did not complete even after all retry attempts.

## Common causes:
- The URL in the plan is wrong (retries cannot fix a 404)
- The mirror is unreachable from this network
- A proxy is interfering with HTTP range requests

## Things you can try:
- Check the URL in the plan file
- Fetch the URL manually to inspect the response
- Partial downloads are kept and resumed, so simply re-running
  the provision run continues where it stopped`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum verification failed!

The downloaded archive does not match the SHA256 recorded in the plan.

## Common causes:
- The upstream artifact was re-published with different contents
- The download was corrupted (rare; transfers are verified after resume)
- The plan pins the hash of a different version

## Things you can try:
- Recompute the expected hash and update the plan:
~~~
$ sha256sum cmake-3.28.3-linux-x86_64.tar.gz
~~~

- Delete the cached file and download again:
~~~
$ rm <cache_dir>/<archive>
$ forgeenv provision
~~~`,
	}

	extractionFailedIssue = &Issue{
		id: ExtractionFailedId,
		mdMsg: `
# Archive extraction failed!

The archive could not be unpacked into the install prefix.

## Common causes:
- The archive is not a supported format (tar.gz or zip)
- An entry escapes the destination directory (rejected for safety)
- The install prefix is not writable

## Things you can try:
- Verify the archive format matches the step's file name
- Check permissions on the install prefix
- Inspect the archive contents:
~~~
$ tar -tzf <archive> | head
~~~`,
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# Script step failed!

The inline script exited non-zero in the embedded shell interpreter.

## Common causes:
- A command used by the script is not installed yet (step ordering)
- The script assumes bash-only syntax (the interpreter is POSIX sh)
- A previous step did not export the PATH entry the script needs

## Things you can try:
- Re-run with verbose mode for per-line output:
~~~
$ forgeenv --verbose provision
~~~

- Move the script step after the packages step that installs its tools`,
	}

	retriesExhaustedIssue = &Issue{
		id: RetriesExhaustedId,
		mdMsg: `
# All retry attempts failed!

A step failed on every permitted attempt and the provisioning run was aborted.

## What happened:
- Each externally-fallible step is retried a bounded number of times
  with a fixed delay (default: 5 attempts, 15s apart)
- No attempt succeeded, so the run stopped at this step

## Things you can try:
- Check whether the failure is permanent (bad URL, missing package);
  retries never fix those
- Raise the attempt count for genuinely flaky networks:
~~~toml
[retry]
attempts = 8
delay = "30s"
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- The install prefix or cache dir is owned by another user
- Package installs need root inside the build container

## Things you can try:
- Point cache_dir and install_prefix at directories you own
- Run the provisioning step as root inside the container
- Check file and directory permissions`,
	}

	issues = map[Id]*Issue{
		planNotFoundIssue.Id():           planNotFoundIssue,
		planParseErrorIssue.Id():         planParseErrorIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		packageManagerNotFoundIssue.Id(): packageManagerNotFoundIssue,
		packageInstallFailedIssue.Id():   packageInstallFailedIssue,
		downloadFailedIssue.Id():         downloadFailedIssue,
		checksumMismatchIssue.Id():       checksumMismatchIssue,
		extractionFailedIssue.Id():       extractionFailedIssue,
		scriptExecutionFailedIssue.Id():  scriptExecutionFailedIssue,
		retriesExhaustedIssue.Id():       retriesExhaustedIssue,
		permissionDeniedIssue.Id():       permissionDeniedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
