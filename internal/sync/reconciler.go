package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// previewChangeLimit caps the change list carried on a directory outcome.
const previewChangeLimit = 5

// ErrTypeConflict is returned when a mapping's source and destination
// disagree on file vs. directory. The conflict is never resolved by
// silent deletion; the caller layer must decide.
var ErrTypeConflict = errors.New("mirror type conflict between source and destination")

// Reconciler compares one declared source path with its mirror path and,
// in Apply mode, makes the mirror match. Symlinked source files are
// followed and copied by content; symlinked directories below a mapped
// directory are not descended into.
type Reconciler struct{}

// NewReconciler creates a new reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile synchronizes a single source path to its destination. A
// missing source is a soft condition, never an error. In Preview mode no
// filesystem write is performed under any circumstances.
func (r *Reconciler) Reconcile(source, dest string, mode Mode) Outcome {
	srcInfo, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return Outcome{Status: StatusSourceMissing}
		}
		return failed(fmt.Errorf("failed to stat source %s: %w", source, err))
	}

	dstInfo, err := os.Stat(dest)
	dstExists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return failed(fmt.Errorf("failed to stat destination %s: %w", dest, err))
	}

	if dstExists && srcInfo.IsDir() != dstInfo.IsDir() {
		return failed(fmt.Errorf("%w: %s", ErrTypeConflict, dest))
	}

	if srcInfo.IsDir() {
		return r.reconcileDir(source, dest, dstExists, mode)
	}
	return r.reconcileFile(source, dest, dstExists, mode)
}

// reconcileFile handles a regular-file source with byte-for-byte change
// detection.
func (r *Reconciler) reconcileFile(source, dest string, dstExists bool, mode Mode) Outcome {
	status := StatusCreated
	if dstExists {
		same, err := filesEqual(source, dest)
		if err != nil {
			return failed(fmt.Errorf("failed to compare %s: %w", dest, err))
		}
		if same {
			return Outcome{Status: StatusUnchanged}
		}
		status = StatusUpdated
	}

	if mode == Preview {
		return Outcome{Status: status}
	}

	if err := copyFile(source, dest); err != nil {
		return failed(fmt.Errorf("failed to copy %s: %w", dest, err))
	}
	return Outcome{Status: status}
}

// reconcileDir handles a directory source with mirror semantics: after an
// apply, the destination tree's content set equals the source tree's,
// including removal of entries present only in the destination.
func (r *Reconciler) reconcileDir(source, dest string, dstExists bool, mode Mode) Outcome {
	changes, err := diffTrees(source, dest)
	if err != nil {
		return failed(fmt.Errorf("failed to diff %s: %w", dest, err))
	}

	if len(changes) == 0 {
		if dstExists {
			return Outcome{Status: StatusUnchanged}
		}
		// An empty source directory still counts as present: the mapping
		// root itself must be mirrored.
		if mode == Preview {
			return Outcome{Status: StatusCreated}
		}
		if err := os.MkdirAll(dest, 0755); err != nil {
			return failed(fmt.Errorf("failed to create destination directory: %w", err))
		}
		return Outcome{Status: StatusCreated}
	}

	status := StatusUpdated
	if !dstExists {
		status = StatusCreated
	}

	preview, more := capChanges(changes)
	if mode == Preview {
		return Outcome{Status: status, Changes: preview, MoreChanges: more}
	}

	if err := applyChanges(source, dest, changes); err != nil {
		return failed(fmt.Errorf("failed to sync %s: %w", dest, err))
	}
	return Outcome{Status: status, Changes: preview, MoreChanges: more}
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// capChanges bounds a change list to the preview size, returning the
// omitted count alongside.
func capChanges(changes []Change) ([]Change, int) {
	if len(changes) <= previewChangeLimit {
		return changes, 0
	}
	return changes[:previewChangeLimit], len(changes) - previewChangeLimit
}

// treeEntry records what kind of entry exists at a relative path.
type treeEntry struct {
	isDir bool
}

// walkTree indexes every entry below root by its relative path. Empty
// directories count as present. A missing root yields an empty index.
func walkTree(root string) (map[string]treeEntry, error) {
	entries := make(map[string]treeEntry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries[rel] = treeEntry{isDir: d.IsDir()}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, err
	}

	return entries, nil
}

// diffTrees computes the entry-level changes needed to make dest mirror
// source. The result is sorted by path, deletes last, for deterministic
// preview output.
func diffTrees(source, dest string) ([]Change, error) {
	srcEntries, err := walkTree(source)
	if err != nil {
		return nil, err
	}
	dstEntries, err := walkTree(dest)
	if err != nil {
		return nil, err
	}

	var changes []Change
	var replaced []string

	srcPaths := make([]string, 0, len(srcEntries))
	for rel := range srcEntries {
		srcPaths = append(srcPaths, rel)
	}
	sort.Strings(srcPaths)

	for _, rel := range srcPaths {
		src := srcEntries[rel]
		dst, exists := dstEntries[rel]

		if !exists {
			changes = append(changes, Change{Kind: ChangeAdd, Path: rel})
			continue
		}
		if src.isDir != dst.isDir {
			// Entry-level type change: mirrored as an update, the stale
			// entry is removed before the new one is written.
			changes = append(changes, Change{Kind: ChangeUpdate, Path: rel})
			replaced = append(replaced, rel)
			continue
		}
		if src.isDir {
			continue
		}

		same, err := filesEqual(filepath.Join(source, rel), filepath.Join(dest, rel))
		if err != nil {
			return nil, err
		}
		if !same {
			changes = append(changes, Change{Kind: ChangeUpdate, Path: rel})
		}
	}

	var deletes []string
	for rel := range dstEntries {
		if _, exists := srcEntries[rel]; !exists {
			deletes = append(deletes, rel)
		}
	}
	sort.Strings(deletes)

	// Entries below a deleted or type-flipped ancestor vanish when that
	// ancestor is removed; emitting them as deletes would fail once the
	// ancestor has been replaced.
	removedRoots := append(append([]string(nil), deletes...), replaced...)
	sort.Strings(removedRoots)
	for _, rel := range deletes {
		if coveredByRemoval(removedRoots, rel) {
			continue
		}
		changes = append(changes, Change{Kind: ChangeDelete, Path: rel})
	}

	return changes, nil
}

// coveredByRemoval reports whether rel sits below another removed entry in
// the sorted list; removing the ancestor removes it too.
func coveredByRemoval(sorted []string, rel string) bool {
	dir := filepath.Dir(rel)
	for dir != "." && dir != string(filepath.Separator) {
		idx := sort.SearchStrings(sorted, dir)
		if idx < len(sorted) && sorted[idx] == dir {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}

// applyChanges executes a tree change set against the destination.
func applyChanges(source, dest string, changes []Change) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	for _, ch := range changes {
		src := filepath.Join(source, ch.Path)
		dst := filepath.Join(dest, ch.Path)

		switch ch.Kind {
		case ChangeDelete:
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("failed to delete %s: %w", dst, err)
			}

		case ChangeAdd, ChangeUpdate:
			srcInfo, err := os.Stat(src)
			if err != nil {
				return err
			}
			if dstInfo, err := os.Lstat(dst); err == nil && dstInfo.IsDir() != srcInfo.IsDir() {
				if err := os.RemoveAll(dst); err != nil {
					return fmt.Errorf("failed to replace %s: %w", dst, err)
				}
			}
			if srcInfo.IsDir() {
				if err := os.MkdirAll(dst, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dst, err)
				}
				continue
			}
			if err := copyFile(src, dst); err != nil {
				return fmt.Errorf("failed to copy %s: %w", dst, err)
			}
		}
	}

	return nil
}

// filesEqual compares two files byte-for-byte, short-circuiting on size.
func filesEqual(a, b string) (bool, error) {
	aInfo, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bInfo, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if aInfo.Size() != bInfo.Size() {
		return false, nil
	}

	aHash, err := fileHash(a)
	if err != nil {
		return false, err
	}
	bHash, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return aHash == bHash, nil
}

// copyFile copies a file from src to dst with atomic write: the content
// lands in a temporary name in the destination's directory and is renamed
// into place, so a crash mid-copy cannot leave a truncated file
// masquerading as a final copy.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".dotmirror-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// fileHash computes the SHA256 hash of a file
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
