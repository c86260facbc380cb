// Package binary locates the external expgram executables before anything is
// run, so a missing tool fails the run at setup instead of hours into it.
package binary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// subdirs are searched below every base directory, in order.
var subdirs = []string{"bin", "progs", "scripts"}

// NotFoundError reports an executable missing from every candidate directory.
type NotFoundError struct {
	Name     string
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("binary %s does not exist (searched %s)", e.Name, strings.Join(e.Searched, ", "))
}

// Resolver searches a fixed, ordered list of candidate directories.
type Resolver struct {
	dirs []string
}

// NewResolver builds the candidate list for dir. An empty dir means "where
// this program is installed": the executable's directory and its parent.
func NewResolver(dir string) (*Resolver, error) {
	var bases []string
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("expgram directory %s: %w", dir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("expgram directory %s does not exist: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("expgram directory %s is not a directory", dir)
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		bases = []string{abs}
	} else {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		self := filepath.Dir(exe)
		bases = []string{self, filepath.Dir(self)}
	}
	return NewResolverFromBases(bases...), nil
}

// NewResolverFromBases searches each base followed by its bin, progs and
// scripts subdirectories. Duplicates are dropped.
func NewResolverFromBases(bases ...string) *Resolver {
	var dirs []string
	for _, base := range bases {
		for _, d := range append([]string{base}, joinAll(base, subdirs)...) {
			if !slices.Contains(dirs, d) {
				dirs = append(dirs, d)
			}
		}
	}
	return &Resolver{dirs: dirs}
}

func joinAll(base string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(base, n)
	}
	return out
}

// Dirs returns the candidate directories in search order.
func (r *Resolver) Dirs() []string {
	return slices.Clone(r.dirs)
}

// Find returns the absolute path of the first regular file called name.
func (r *Resolver) Find(name string) (string, error) {
	for _, dir := range r.dirs {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("binary %s: %w", name, err)
		}
		return abs, nil
	}
	return "", &NotFoundError{Name: name, Searched: r.Dirs()}
}

// Set maps executable names to resolved absolute paths.
type Set map[string]string

// Path returns the resolved path of name, or the bare name when it was never
// resolved.
func (s Set) Path(name string) string {
	if p, ok := s[name]; ok {
		return p
	}
	return name
}

// ResolveAll resolves every name concurrently. All missing names are reported
// together, joined with errors.Join, each as a *NotFoundError; the names that
// were found are still returned alongside that error.
func (r *Resolver) ResolveAll(ctx context.Context, names []string) (Set, error) {
	var (
		mu      sync.Mutex
		found   = make(Set, len(names))
		missing []error
	)
	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			p, err := r.Find(name)
			mu.Lock()
			defer mu.Unlock()
			var nf *NotFoundError
			switch {
			case errors.As(err, &nf):
				missing = append(missing, nf)
			case err != nil:
				return err
			default:
				found[name] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		slices.SortFunc(missing, func(a, b error) int {
			return strings.Compare(a.(*NotFoundError).Name, b.(*NotFoundError).Name)
		})
		return found, errors.Join(missing...)
	}
	return found, nil
}

// Launcher returns the message-passing launcher. With mpiDir set, mpiDir/bin
// and then mpiDir are searched; otherwise the bare name is left to PATH.
func Launcher(mpiDir string) (string, error) {
	const name = "mpirun"
	if mpiDir == "" {
		return name, nil
	}
	info, err := os.Stat(mpiDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("MPI directory %s does not exist", mpiDir)
	}
	r := &Resolver{dirs: []string{filepath.Join(mpiDir, "bin"), mpiDir}}
	return r.Find(name)
}
