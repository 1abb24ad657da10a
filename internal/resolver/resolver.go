// Package resolver maps request paths onto files under the served root,
// applying the single-page-application fallback.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"liveserve/internal/model"
)

const indexFile = "index.html"

type Resolver struct {
	root     string
	realRoot string
	fallback string
}

// New expects an absolute, existing root. fallback is relative to root and
// may be empty.
func New(root, fallback string) (*Resolver, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidRoot, err)
	}

	r := &Resolver{
		root:     filepath.Clean(root),
		realRoot: realRoot,
	}

	if fallback != "" {
		r.fallback = filepath.Join(r.root, filepath.FromSlash(fallback))
		if !within(r.root, r.fallback) {
			return nil, fmt.Errorf("%w: fallback %q", model.ErrPathTraversal, fallback)
		}
	}

	return r, nil
}

func (r *Resolver) Root() string {
	return r.root
}

func (r *Resolver) Resolve(requestPath string) (model.ResolvedEntry, error) {
	if strings.IndexByte(requestPath, 0) != -1 {
		return model.ResolvedEntry{}, model.ErrPathTraversal
	}

	// Join cleans ".." against root instead of clamping at "/", so escapes stay
	// visible to the containment check.
	rel := strings.TrimLeft(filepath.FromSlash(requestPath), string(filepath.Separator))
	target := filepath.Join(r.root, rel)
	if !within(r.root, target) {
		return model.ResolvedEntry{}, model.ErrPathTraversal
	}

	entry, err := r.lookup(target)
	if err != nil {
		return model.ResolvedEntry{}, err
	}
	if entry.Exists {
		return entry, nil
	}

	if r.fallback != "" {
		entry, err := r.lookup(r.fallback)
		if err != nil {
			return model.ResolvedEntry{}, err
		}
		if entry.Exists {
			entry.IsFallback = true
			return entry, nil
		}
	}

	return model.ResolvedEntry{AbsolutePath: target}, nil
}

func (r *Resolver) lookup(target string) (model.ResolvedEntry, error) {
	info, err := os.Stat(target)
	if err != nil {
		if isMissing(err) {
			return model.ResolvedEntry{AbsolutePath: target}, nil
		}
		return model.ResolvedEntry{}, fmt.Errorf("failed to stat %s: %w", target, err)
	}

	if info.IsDir() {
		target = filepath.Join(target, indexFile)
		info, err = os.Stat(target)
		if err != nil || info.IsDir() {
			return model.ResolvedEntry{AbsolutePath: target}, nil
		}
	}

	if err := r.checkSymlinks(target); err != nil {
		return model.ResolvedEntry{}, err
	}

	return model.ResolvedEntry{
		AbsolutePath: target,
		Exists:       true,
		ContentType:  ContentType(target),
	}, nil
}

func (r *Resolver) checkSymlinks(target string) error {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	if !within(r.realRoot, resolved) {
		return model.ErrPathTraversal
	}

	return nil
}

// isMissing reports stat errors that mean no servable file is there.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ENAMETOOLONG)
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
