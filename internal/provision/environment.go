// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Environment is an immutable record of what provisioning steps have
// exported so far: PATH entries in export order and named variables.
// All With* methods return a modified copy; the receiver is never
// changed. Steps receive the current Environment and the process
// environment stays untouched.
type Environment struct {
	path []string
	vars map[string]string
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{}
}

// WithPathEntry returns a copy with dir appended to the PATH exports.
// A dir already present is not added again.
func (e *Environment) WithPathEntry(dir string) *Environment {
	for _, existing := range e.path {
		if existing == dir {
			return e
		}
	}

	next := e.clone()
	next.path = append(next.path, dir)

	return next
}

// WithVar returns a copy with the variable set. A later export of the
// same name wins.
func (e *Environment) WithVar(key, value string) *Environment {
	next := e.clone()
	next.vars[key] = value

	return next
}

// Var reports the value of an exported variable.
func (e *Environment) Var(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// PathEntries returns the exported PATH directories in export order.
// The caller must not modify the returned slice.
func (e *Environment) PathEntries() []string {
	return e.path
}

// VarNames returns the exported variable names in sorted order.
func (e *Environment) VarNames() []string {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

// Environ merges the exports onto a base process environment, suitable
// for passing to a child process or the embedded shell. Exported
// variables override base entries of the same name and PATH entries are
// prepended to the base PATH.
func (e *Environment) Environ(base []string) []string {
	merged := make([]string, 0, len(base)+len(e.vars)+1)

	basePath := ""

	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		if key == "PATH" {
			basePath = value
			continue
		}

		if _, overridden := e.vars[key]; overridden {
			continue
		}

		merged = append(merged, kv)
	}

	for _, name := range e.VarNames() {
		merged = append(merged, name+"="+e.vars[name])
	}

	merged = append(merged, "PATH="+e.pathValue(basePath))

	return merged
}

// RenderProfile renders a POSIX shell profile snippet exporting the
// accumulated variables and PATH entries. Sourcing it from a shell rc
// file makes the provisioned tools available.
func (e *Environment) RenderProfile() string {
	var sb strings.Builder

	sb.WriteString("# Generated by forgeenv. Source this file to use the provisioned tools.\n")

	for _, name := range e.VarNames() {
		sb.WriteString(fmt.Sprintf("export %s=%q\n", name, e.vars[name]))
	}

	if len(e.path) > 0 {
		sb.WriteString(fmt.Sprintf("export PATH=%q\n", e.pathValue("$PATH")))
	}

	return sb.String()
}

func (e *Environment) pathValue(base string) string {
	parts := make([]string, 0, len(e.path)+1)
	parts = append(parts, e.path...)

	if base != "" {
		parts = append(parts, base)
	}

	return strings.Join(parts, string(os.PathListSeparator))
}

func (e *Environment) clone() *Environment {
	next := &Environment{
		path: make([]string, len(e.path)),
		vars: make(map[string]string, len(e.vars)),
	}

	copy(next.path, e.path)

	for k, v := range e.vars {
		next.vars[k] = v
	}

	return next
}
