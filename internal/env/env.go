// Package env implements the Environment described in spec.md §3/§9: named
// libraries, the current working dataset registry, options, and title —
// process-wide state threaded through the driver as an explicit parameter,
// never a singleton.
package env

import (
	"strings"

	"github.com/cwbudde/go-sdpl/internal/pdv"
)

// datasetKey is a case-insensitive (libref, member) pair.
type datasetKey struct{ libref, member string }

func fold(s string) string { return strings.ToUpper(s) }

// Environment is the SDPL program's global mutable state (spec.md §9): it
// is created once at process start and passed explicitly to every
// component that needs it.
type Environment struct {
	Libraries map[string]string // libref (folded) -> directory path
	Options   map[string]string // option name (folded) -> value
	Title     string

	datasets map[datasetKey]*pdv.Dataset
	lastMade *pdv.Dataset // most recently created dataset, for PROC DATA= defaulting
	lastKey  datasetKey   // (libref, member) of lastMade, for PROC SORT's implicit in-place OUT=
}

// New creates an Environment with WORK already bound to workDir.
func New(workDir string) *Environment {
	e := &Environment{
		Libraries: map[string]string{"WORK": workDir},
		Options:   map[string]string{},
		datasets:  map[datasetKey]*pdv.Dataset{},
	}
	return e
}

// DefaultLibrary returns the always-present default libref.
func (e *Environment) DefaultLibrary() string { return "WORK" }

// CreateLibrary binds libref to path, overwriting any prior binding.
func (e *Environment) CreateLibrary(libref, path string) {
	e.Libraries[fold(libref)] = path
}

// ResolveLibrary returns the directory bound to libref.
func (e *Environment) ResolveLibrary(libref string) (string, bool) {
	if libref == "" {
		libref = e.DefaultLibrary()
	}
	dir, ok := e.Libraries[fold(libref)]
	return dir, ok
}

// SetOption records an OPTIONS statement's name/value pair.
func (e *Environment) SetOption(name, value string) { e.Options[fold(name)] = value }

// Option returns an option's current value.
func (e *Environment) Option(name string) (string, bool) {
	v, ok := e.Options[fold(name)]
	return v, ok
}

// PublishDataset registers ds under (libref, member), becoming the library's
// current version of that dataset, and the new "most recently created"
// dataset.
func (e *Environment) PublishDataset(libref, member string, ds *pdv.Dataset) {
	if libref == "" {
		libref = e.DefaultLibrary()
	}
	key := datasetKey{fold(libref), fold(member)}
	e.datasets[key] = ds
	e.lastMade = ds
	e.lastKey = key
}

// Dataset looks up a published dataset by (libref, member).
func (e *Environment) Dataset(libref, member string) (*pdv.Dataset, bool) {
	if libref == "" {
		libref = e.DefaultLibrary()
	}
	ds, ok := e.datasets[datasetKey{fold(libref), fold(member)}]
	return ds, ok
}

// LastDataset returns the most recently published dataset, used to default
// PROC PRINT/SORT's DATA= when omitted (spec.md §4.5).
func (e *Environment) LastDataset() (*pdv.Dataset, bool) {
	return e.lastMade, e.lastMade != nil
}

// LastRef returns the (libref, member) pair the most recently published
// dataset was published under, used by PROC SORT to replace its input
// in-place when neither DATA= nor OUT= names a libref/member explicitly.
func (e *Environment) LastRef() (libref, member string, ok bool) {
	if e.lastMade == nil {
		return "", "", false
	}
	return e.lastKey.libref, e.lastKey.member, true
}

// Members lists the member names currently published under libref in this
// environment. (`sdpl libname list` reads the directory on disk instead.)
func (e *Environment) Members(libref string) []string {
	key := fold(libref)
	var out []string
	for k := range e.datasets {
		if k.libref == key {
			out = append(out, k.member)
		}
	}
	return out
}

// PublishedRefs lists every (libref, member) pair published so far, in no
// particular order; used to re-stamp on-disk TDF metadata when a TITLE
// statement changes the environment's title after datasets already exist
// (SPEC_FULL.md domain stack).
func (e *Environment) PublishedRefs() []struct{ Libref, Member string } {
	out := make([]struct{ Libref, Member string }, 0, len(e.datasets))
	for k := range e.datasets {
		out = append(out, struct{ Libref, Member string }{k.libref, k.member})
	}
	return out
}
