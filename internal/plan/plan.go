// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"forgeenv-cli/internal/fetch"
)

type (
	// Kind identifies what a step does.
	Kind string

	// Step is a single provisioning action. Exactly the fields for its
	// Kind may be set; Validate rejects anything else.
	Step struct {
		// Name uniquely identifies the step within its plan. It appears
		// in diagnostics and in the --only filter.
		Name string `toml:"name"`
		// Kind selects the step behavior.
		Kind Kind `toml:"kind"`

		// Packages lists OS packages to install (KindPackages).
		Packages []string `toml:"packages,omitempty"`
		// Update refreshes the package index before installing
		// (KindPackages).
		Update bool `toml:"update,omitempty"`

		// URL is the location of the file to download (KindDownload).
		URL string `toml:"url,omitempty"`
		// SHA256 is the expected hex digest of the downloaded file
		// (KindDownload). Empty skips verification.
		SHA256 string `toml:"sha256,omitempty"`
		// SHA256URL is the location of a sha256sum-format checksums
		// file naming the downloaded file (KindDownload). Alternative
		// to SHA256, for upstreams that publish a SHA256SUMS file next
		// to their releases.
		SHA256URL string `toml:"sha256_url,omitempty"`
		// File overrides the destination filename derived from the URL
		// (KindDownload).
		File string `toml:"file,omitempty"`

		// Archive names a previously downloaded file to unpack
		// (KindExtract).
		Archive string `toml:"archive,omitempty"`
		// Dest is the extraction target directory (KindExtract).
		// Relative paths resolve under the install prefix.
		Dest string `toml:"dest,omitempty"`
		// StripComponents removes leading path elements from archive
		// entries (KindExtract).
		StripComponents int `toml:"strip_components,omitempty"`

		// Script is inline shell source run by the embedded interpreter
		// (KindScript).
		Script string `toml:"script,omitempty"`

		// Path lists directories the step exports onto PATH once it
		// succeeds. Relative paths resolve under the install prefix.
		Path []string `toml:"path,omitempty"`
		// Env lists environment variables the step exports once it
		// succeeds.
		Env map[string]string `toml:"env,omitempty"`
	}

	// Plan is an ordered provisioning plan decoded from a TOML file.
	Plan struct {
		// Description is a short human-readable summary of the plan.
		Description string `toml:"description,omitempty"`
		// Steps run in file order.
		Steps []Step `toml:"step"`
	}

	// ValidationError reports a single invalid field on a step.
	ValidationError struct {
		// StepName is the offending step's name, or its 1-based index
		// rendered as "#n" when the name itself is missing.
		StepName string
		// Reason describes what is wrong.
		Reason string
	}
)

const (
	KindPackages Kind = "packages"
	KindDownload Kind = "download"
	KindExtract  Kind = "extract"
	KindScript   Kind = "script"
)

var (
	// ErrNoSteps indicates a plan without any steps.
	ErrNoSteps = errors.New("plan has no steps")

	// ErrInvalidPlan wraps all step validation failures.
	ErrInvalidPlan = errors.New("invalid plan")
)

// IsValid reports whether k is a recognized step kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindPackages, KindDownload, KindExtract, KindScript:
		return true
	}

	return false
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %q: %s", e.StepName, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPlan }

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates TOML plan source. Unknown fields are
// rejected so that typos in plan files surface as errors instead of
// silently ignored configuration.
func Parse(data []byte) (*Plan, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks structural plan invariants: at least one step, unique
// non-empty names, recognized kinds, and kind-appropriate fields.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return ErrNoSteps
	}

	seen := make(map[string]struct{}, len(p.Steps))

	var errs []error

	for i, s := range p.Steps {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			errs = append(errs, &ValidationError{StepName: name, Reason: "missing name"})
		} else if _, dup := seen[name]; dup {
			errs = append(errs, &ValidationError{StepName: name, Reason: "duplicate step name"})
		}

		seen[name] = struct{}{}

		errs = append(errs, s.validate(name)...)
	}

	return errors.Join(errs...)
}

// Step returns the step with the given name, or nil if absent.
func (p *Plan) Step(name string) *Step {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return &p.Steps[i]
		}
	}

	return nil
}

// Filename returns the cache file name for a download step: the File
// override when set, otherwise the base name of the URL path.
func (s *Step) Filename() string {
	if s.File != "" {
		return s.File
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return path.Base(s.URL)
	}

	return path.Base(u.Path)
}

func (s *Step) validate(name string) []error {
	fail := func(reason string) *ValidationError {
		return &ValidationError{StepName: name, Reason: reason}
	}

	if !s.Kind.IsValid() {
		return []error{fail(fmt.Sprintf("unknown kind %q", s.Kind))}
	}

	var errs []error

	switch s.Kind {
	case KindPackages:
		if len(s.Packages) == 0 {
			errs = append(errs, fail("packages step lists no packages"))
		}

		for _, pkg := range s.Packages {
			if strings.TrimSpace(pkg) == "" {
				errs = append(errs, fail("empty package name"))
			}
		}

		errs = append(errs, s.rejectFields(name, fieldsDownload|fieldsExtract|fieldsScript)...)
	case KindDownload:
		if s.URL == "" {
			errs = append(errs, fail("download step has no url"))
		} else if fn := s.Filename(); fn == "." || fn == "/" {
			errs = append(errs, fail("cannot derive a file name from the url"))
		}

		if s.SHA256 != "" && !fetch.IsValidHash(s.SHA256) {
			errs = append(errs, fail(fmt.Sprintf("malformed sha256 %q", s.SHA256)))
		}

		if s.SHA256 != "" && s.SHA256URL != "" {
			errs = append(errs, fail("specify sha256 or sha256_url, not both"))
		}

		errs = append(errs, s.rejectFields(name, fieldsPackages|fieldsExtract|fieldsScript)...)
	case KindExtract:
		if s.Archive == "" {
			errs = append(errs, fail("extract step names no archive"))
		}

		if s.Dest == "" {
			errs = append(errs, fail("extract step has no dest"))
		}

		if s.StripComponents < 0 {
			errs = append(errs, fail("negative strip_components"))
		}

		errs = append(errs, s.rejectFields(name, fieldsPackages|fieldsDownload|fieldsScript)...)
	case KindScript:
		if strings.TrimSpace(s.Script) == "" {
			errs = append(errs, fail("script step has no script body"))
		}

		errs = append(errs, s.rejectFields(name, fieldsPackages|fieldsDownload|fieldsExtract)...)
	}

	return errs
}

type fieldSet uint8

const (
	fieldsPackages fieldSet = 1 << iota
	fieldsDownload
	fieldsExtract
	fieldsScript
)

// rejectFields flags fields that belong to a different kind than the
// step declares. Mixing kinds in one step almost always means a stray
// copy-paste in the plan file.
func (s *Step) rejectFields(name string, forbidden fieldSet) []error {
	var errs []error

	fail := func(field string) {
		errs = append(errs, &ValidationError{
			StepName: name,
			Reason:   fmt.Sprintf("field %q is not valid for kind %q", field, s.Kind),
		})
	}

	if forbidden&fieldsPackages != 0 {
		if len(s.Packages) > 0 {
			fail("packages")
		}

		if s.Update {
			fail("update")
		}
	}

	if forbidden&fieldsDownload != 0 {
		if s.URL != "" {
			fail("url")
		}

		if s.SHA256 != "" {
			fail("sha256")
		}

		if s.SHA256URL != "" {
			fail("sha256_url")
		}

		if s.File != "" {
			fail("file")
		}
	}

	if forbidden&fieldsExtract != 0 {
		if s.Archive != "" {
			fail("archive")
		}

		if s.Dest != "" {
			fail("dest")
		}

		if s.StripComponents != 0 {
			fail("strip_components")
		}
	}

	if forbidden&fieldsScript != 0 && s.Script != "" {
		fail("script")
	}

	return errs
}
