// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package manifest discovers and verifies SHA-256 checksum files on mounted
// media trees.
//
// Recognized manifests are `*.sha`, `sha256sum.txt` and `SHA256SUMS`
// (case-insensitive). Entries resolve relative to the manifest's own
// directory; entries pointing outside it are rejected unopened.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/siderolabs/gen/xslices"
	"github.com/spf13/afero"

	"github.com/isotools/isocheck/digest"
)

// linePattern matches sha256sum-style lines. The prefix strip covers `*`
// (binary mode) and leading dot/slash runs, so `./name`, `.\name` and
// `../name` all resolve inside the manifest's directory.
var linePattern = regexp.MustCompile(`^([a-fA-F0-9]{64})\s+[\*\.\/\\]*(.*)`)

// Status classifies the outcome of a single manifest entry.
type Status int

// Entry outcomes.
const (
	StatusOK Status = iota
	StatusMismatch
	StatusMissing
	StatusUnsafe
	StatusUnreadable
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMismatch:
		return "mismatch"
	case StatusMissing:
		return "missing"
	case StatusUnsafe:
		return "unsafe path"
	case StatusUnreadable:
		return "unreadable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// EntryResult is the outcome of one manifest line.
type EntryResult struct {
	// Name as written in the manifest, prefix-stripped and trimmed.
	Name string

	// Expected is the manifest's digest, lowercase hex.
	Expected string

	// Computed is the file's digest; empty when the file was never hashed.
	Computed string

	// Err carries the I/O failure behind StatusUnreadable.
	Err error

	Status Status
}

// Result covers one checksum file.
type Result struct {
	// Path of the checksum file as discovered.
	Path string

	Entries []EntryResult
}

// Total returns the number of recognized entries.
func (r *Result) Total() int {
	return len(r.Entries)
}

// Failed returns the entries that did not verify.
func (r *Result) Failed() []EntryResult {
	return xslices.Filter(r.Entries, func(e EntryResult) bool { return e.Status != StatusOK })
}

// Summary folds per-manifest results into run-wide counts.
type Summary struct {
	Manifests int
	Total     int
	Failed    int
}

// Summarize aggregates results of a whole scan.
func Summarize(results []*Result) Summary {
	s := Summary{
		Manifests: len(results),
	}

	for _, r := range results {
		s.Total += r.Total()
		s.Failed += len(r.Failed())
	}

	return s
}

func isChecksumName(name string) bool {
	name = strings.ToLower(name)

	return strings.HasSuffix(name, ".sha") || name == "sha256sum.txt" || name == "sha256sums"
}

// Discover walks root collecting checksum manifests.
//
// Unreadable entries are skipped and the walk keeps going: partially readable
// optical media should still yield whatever manifests are reachable. A missing
// root yields no manifests, not an error.
func Discover(fsys afero.Fs, root string) ([]string, error) {
	var found []string

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr
		}

		if info.IsDir() {
			return nil
		}

		if isChecksumName(info.Name()) {
			found = append(found, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}

	return found, nil
}

// Verify checks every entry of the checksum file at path.
//
// A failing entry never stops the scan; the failure lands in its EntryResult.
// Lines that don't look like sha256sum entries are ignored.
func Verify(fsys afero.Fs, path string) (*Result, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checksum file %q: %w", path, err)
	}

	defer f.Close() //nolint:errcheck

	res := &Result{Path: path}
	baseDir := filepath.Dir(path)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		matches := linePattern.FindStringSubmatch(scanner.Text())
		if matches == nil {
			continue
		}

		res.Entries = append(res.Entries, verifyEntry(fsys, baseDir, strings.ToLower(matches[1]), strings.TrimSpace(matches[2])))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksum file %q: %w", path, err)
	}

	return res, nil
}

func verifyEntry(fsys afero.Fs, baseDir, expected, name string) EntryResult {
	entry := EntryResult{
		Name:     name,
		Expected: expected,
	}

	base := filepath.Clean(baseDir)

	target := filepath.Clean(filepath.Join(base, name))
	if target != base && !strings.HasPrefix(target, base+string(filepath.Separator)) {
		entry.Status = StatusUnsafe

		return entry
	}

	if _, err := fsys.Stat(target); err != nil {
		if os.IsNotExist(err) {
			entry.Status = StatusMissing
		} else {
			entry.Status = StatusUnreadable
			entry.Err = err
		}

		return entry
	}

	f, err := fsys.Open(target)
	if err != nil {
		entry.Status = StatusUnreadable
		entry.Err = err

		return entry
	}

	defer f.Close() //nolint:errcheck

	computed, err := digest.SHA256Reader(f)
	if err != nil {
		entry.Status = StatusUnreadable
		entry.Err = err

		return entry
	}

	entry.Computed = computed

	if !digest.Equal(computed, expected) {
		entry.Status = StatusMismatch
	}

	return entry
}

// VerifyTree discovers and verifies every manifest under root.
func VerifyTree(fsys afero.Fs, root string) ([]*Result, error) {
	paths, err := Discover(fsys, root)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(paths))

	for _, path := range paths {
		res, err := Verify(fsys, path)
		if err != nil {
			return results, err
		}

		results = append(results, res)
	}

	return results, nil
}
