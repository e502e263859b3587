// Package workspace locates AEM project checkouts and writes generated
// component bundles into them.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
)

// ContextType represents the type of directory detected.
type ContextType int

const (
	ContextNone    ContextType = iota
	ContextProject             // a multi-module AEM project (core + ui.apps)
)

// maxParentWalk is the maximum number of parent directories to walk up when searching.
const maxParentWalk = 10

const appsRoot = "ui.apps/src/main/content/jcr_root/apps"

// ProjectContext describes the detected output location.
type ProjectContext struct {
	Type ContextType
	Root string
	// AppIDs lists the application folders below ui.apps/.../apps.
	AppIDs []string
}

// DetectProject finds the AEM project containing dir. It checks dir and then
// walks up its parents for a directory holding both a core and a ui.apps
// module. When none is found the context has type ContextNone and dir as root.
func DetectProject(dir string) (*ProjectContext, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	current := absDir
	for i := 0; i <= maxParentWalk; i++ {
		if isProjectRoot(current) {
			return &ProjectContext{
				Type:   ContextProject,
				Root:   current,
				AppIDs: listDirs(filepath.Join(current, filepath.FromSlash(appsRoot))),
			}, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return &ProjectContext{Type: ContextNone, Root: absDir}, nil
}

// DefaultAppID returns the project's only application id, or "" when there
// are none or several.
func (p *ProjectContext) DefaultAppID() string {
	if len(p.AppIDs) == 1 {
		return p.AppIDs[0]
	}
	return ""
}

func isProjectRoot(dir string) bool {
	return isDir(filepath.Join(dir, "core")) && isDir(filepath.Join(dir, "ui.apps"))
}

func listDirs(parent string) []string {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

// ErrUnsafePath is returned for placements that would escape the output root.
var ErrUnsafePath = errors.New("path escapes output directory")

// ErrFileExists is returned when an export would overwrite a file.
var ErrFileExists = errors.New("file already exists")

// unplacedDir receives artifacts the bundle has no placement for.
const unplacedDir = "_unplaced"

// ExportOptions controls Export.
type ExportOptions struct {
	Overwrite bool
	// DryRun resolves and checks every path without writing.
	DryRun bool
}

// ExportedFile reports where one artifact was (or would be) written.
type ExportedFile struct {
	Artifact string `json:"artifact"`
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
}

// Export writes every present artifact of bundle below root at its
// placement. All paths are checked before anything is written, so a bundle
// with one unsafe or conflicting path leaves root untouched.
func Export(root string, bundle *models.ArtifactBundle, opts ExportOptions) ([]ExportedFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}

	type pending struct {
		file    ExportedFile
		content string
	}
	var plan []pending
	for _, artifact := range bundle.Paths() {
		content, ok := bundle.Lookup(artifact)
		if !ok {
			continue
		}
		rel := bundle.Placement[artifact]
		if rel == "" {
			rel = unplacedDir + "/" + artifact
		}
		target, err := SafeJoin(absRoot, rel)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", artifact, err)
		}
		if !opts.Overwrite && isFile(target) {
			return nil, fmt.Errorf("artifact %s: %w: %s", artifact, ErrFileExists, target)
		}
		plan = append(plan, pending{
			file:    ExportedFile{Artifact: artifact, Path: target, Bytes: len(content)},
			content: content,
		})
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].file.Path < plan[j].file.Path })

	files := make([]ExportedFile, 0, len(plan))
	for _, p := range plan {
		if !opts.DryRun {
			if err := os.MkdirAll(filepath.Dir(p.file.Path), 0o755); err != nil {
				return files, fmt.Errorf("creating directory for %s: %w", p.file.Artifact, err)
			}
			if err := os.WriteFile(p.file.Path, []byte(p.content), 0o644); err != nil {
				return files, fmt.Errorf("writing %s: %w", p.file.Artifact, err)
			}
		}
		files = append(files, p.file)
	}
	return files, nil
}

// SafeJoin joins a slash-separated relative path onto root and rejects
// absolute paths and any result outside root.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, target)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return target, nil
}

// isFile returns true if path exists and is a regular file.
func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// isDir returns true if path exists and is a directory.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
