// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package verify runs the verification checks of a single target and folds
// their outcomes into one Report.
//
// Checks are independent: a failing implanted-MD5 check never suppresses the
// SHA-256 or content results, and the other way around. The package renders
// nothing; presentation and exit codes belong to the caller.
package verify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isotools/isocheck/block"
	"github.com/isotools/isocheck/digest"
	"github.com/isotools/isocheck/iso9660"
	"github.com/isotools/isocheck/manifest"
	"github.com/isotools/isocheck/mount"
)

var sha256Pattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Run verifies target and reports every requested check's outcome.
//
// The target is a path to an image file, a raw optical device, or a directory
// (mounted media; only content verification applies there). An error return
// means the target could not be inspected at all; failures of individual
// checks land in the Report instead.
func Run(target string, opts ...Option) (*Report, error) {
	options := applyOptions(opts...)

	report := &Report{
		RunID:  uuid.New(),
		Target: target,
	}

	logger := options.Logger.With(zap.Stringer("run_id", report.RunID), zap.String("target", target))

	st, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("inspecting target %q: %w", target, err)
	}

	if st.IsDir() {
		report.Kind = TargetDirectory

		if options.SHA256 || options.ImplantedMD5 {
			logger.Warn("whole-image checks need a file or device target, only verifying content")
		}

		if options.Content {
			report.Content = contentCheck(mount.Existing(target), nil, logger)
		}

		return report, nil
	}

	src, err := block.Open(target)
	if err != nil {
		return nil, fmt.Errorf("opening target %q: %w", target, err)
	}

	defer src.Close() //nolint:errcheck

	report.Kind = TargetFile

	if src.Kind() == block.KindDevice {
		report.Kind = TargetDevice

		// shared lock for the duration of the run; anything rewriting the
		// medium under a verification pass would make every result meaningless
		if err := src.TryLock(false); err != nil {
			logger.Warn("could not acquire shared lock", zap.Error(err))
		} else {
			defer src.Unlock() //nolint:errcheck
		}

		if src.IsCDNoMedia() {
			return nil, fmt.Errorf("no media in drive %q", target)
		}
	}

	if info, err := iso9660.Probe(src); err == nil && info != nil {
		report.Volume = info

		logger.Debug("probed ISO 9660 volume",
			zap.Stringp("label", info.Label),
			zap.Uint64("filesystem_size", info.FilesystemSize))
	}

	runWholeImageChecks(report, target, src, options, logger)

	if options.Content {
		report.Content = runContentCheck(report.Kind, target, logger)
	}

	if options.Eject && report.Kind == TargetDevice {
		if err := src.Eject(); err != nil {
			report.Eject = EjectResult{Outcome: OutcomeError, Err: err}
		} else {
			report.Eject = EjectResult{Outcome: OutcomePassed}
		}
	}

	return report, nil
}

// runWholeImageChecks drives the SHA-256 and implanted-MD5 checks.
//
// On image files the two run concurrently over independently opened sources:
// a file handle's cursor is single-cursor state, so sharing one between
// digests is not an option. Optical drives get one handle and sequential
// checks instead, seeking a physical pickup back and forth halves throughput.
func runWholeImageChecks(report *Report, target string, src *block.Source, options Options, logger *zap.Logger) {
	var (
		expected, expectedSource string
		expectedErr              error
	)

	if options.SHA256 {
		expected, expectedSource, expectedErr = resolveExpectedSHA256(target, report.Kind, options)
		if expectedErr != nil {
			report.SHA256 = SHA256Check{Outcome: OutcomeError, Err: expectedErr}
		}
	}

	runSHA256 := options.SHA256 && expectedErr == nil

	if report.Kind == TargetFile && runSHA256 && options.ImplantedMD5 {
		var eg errgroup.Group

		eg.Go(func() error {
			report.SHA256 = sha256CheckPath(target, expected, expectedSource, logger)

			return nil
		})

		eg.Go(func() error {
			report.MD5 = md5Check(target, src, options, logger)

			return nil
		})

		eg.Wait() //nolint:errcheck // checks report failure through the Report

		return
	}

	if runSHA256 {
		report.SHA256 = sha256CheckSource(src, expected, expectedSource, logger)
	}

	if options.ImplantedMD5 {
		report.MD5 = md5Check(target, src, options, logger)
	}
}

// resolveExpectedSHA256 picks the reference digest: the explicit value when
// given, else the matching entry of the hash file. Empty with no error means
// digest-only information mode.
func resolveExpectedSHA256(target string, kind TargetKind, options Options) (expected, source string, err error) {
	if options.ExpectedSHA256 != "" {
		if !sha256Pattern.MatchString(options.ExpectedSHA256) {
			return "", "", fmt.Errorf("invalid SHA-256 %q: expected 64 hex characters", options.ExpectedSHA256)
		}

		return options.ExpectedSHA256, "command line", nil
	}

	if options.SHA256File == "" {
		return "", "", nil
	}

	expected, err = expectedFromHashFile(options.SHA256File, filepath.Base(target), kind == TargetDevice)
	if err != nil {
		return "", "", err
	}

	return expected, options.SHA256File, nil
}

// expectedFromHashFile scans a sha256sum-style file for the target's entry.
//
// An entry naming the target's base name wins; with none (hash files often
// name the image differently than the local copy) the first hash-shaped line
// is used. Device targets match any .iso entry since a drive path never
// matches an image name.
func expectedFromHashFile(path, targetBase string, device bool) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading hash file: %w", err)
	}

	namePattern := regexp.QuoteMeta(targetBase)
	if device {
		namePattern = `.*\.iso`
	}

	specific := regexp.MustCompile(`(?m)^([a-fA-F0-9]{64})\s+\*?\s*` + namePattern)
	if matches := specific.FindSubmatch(content); matches != nil {
		return string(matches[1]), nil
	}

	generic := regexp.MustCompile(`(?m)^([a-fA-F0-9]{64})\s+\*?\s*`)
	if matches := generic.FindSubmatch(content); matches != nil {
		return string(matches[1]), nil
	}

	return "", fmt.Errorf("no SHA-256 entry found in hash file %q", path)
}

func sha256CheckPath(target, expected, source string, logger *zap.Logger) SHA256Check {
	src, err := block.Open(target)
	if err != nil {
		return SHA256Check{Outcome: OutcomeError, Err: fmt.Errorf("opening target for SHA-256 check: %w", err)}
	}

	defer src.Close() //nolint:errcheck

	return sha256CheckSource(src, expected, source, logger)
}

func sha256CheckSource(src *block.Source, expected, source string, logger *zap.Logger) SHA256Check {
	check := SHA256Check{
		Expected: expected,
		Source:   source,
	}

	logger.Debug("computing whole-target SHA-256")

	if _, err := src.File().Seek(0, io.SeekStart); err != nil {
		check.Outcome = OutcomeError
		check.Err = fmt.Errorf("rewinding source: %w", err)

		return check
	}

	computed, err := digest.SHA256Reader(src.File())
	if err != nil {
		check.Outcome = OutcomeError
		check.Err = err

		return check
	}

	check.Computed = computed

	switch {
	case expected == "":
		check.Outcome = OutcomeInfo
	case digest.Equal(computed, expected):
		check.Outcome = OutcomePassed
	default:
		check.Outcome = OutcomeFailed
	}

	logger.Debug("whole-target SHA-256 finished",
		zap.String("computed", computed),
		zap.Stringer("outcome", check.Outcome))

	return check
}

// runContentCheck makes the target's tree visible and verifies manifests in it.
func runContentCheck(kind TargetKind, target string, logger *zap.Logger) ContentReport {
	var (
		m   *mount.Mount
		err error
	)

	switch kind {
	case TargetDevice:
		// media already mounted by the desktop or an admin is used in place
		// and left mounted afterwards
		if mountpoint, mpErr := mount.MountpointOf(target); mpErr == nil && mountpoint != "" {
			logger.Debug("using existing mountpoint", zap.String("mountpoint", mountpoint))

			m = mount.Existing(mountpoint)
		} else {
			m, err = mount.Device(target)
		}
	case TargetFile:
		m, err = mount.Image(target)
	default:
		m = mount.Existing(target)
	}

	if err != nil {
		return ContentReport{Outcome: OutcomeError, Err: fmt.Errorf("mounting target for content verification: %w", err)}
	}

	return contentCheck(m, func() {
		if err := m.Unmount(); err != nil {
			logger.Warn("unmounting after content verification", zap.Error(err))
		}
	}, logger)
}

func contentCheck(m *mount.Mount, cleanup func(), logger *zap.Logger) ContentReport {
	if cleanup != nil {
		defer cleanup()
	}

	report := ContentReport{Root: m.Target}

	logger.Debug("verifying content manifests", zap.String("root", m.Target))

	results, err := manifest.VerifyTree(afero.NewOsFs(), m.Target)

	report.Results = results
	report.Summary = manifest.Summarize(results)

	switch {
	case err != nil:
		report.Outcome = OutcomeError
		report.Err = err
	case report.Summary.Manifests == 0:
		report.Outcome = OutcomeAbsent
	case report.Summary.Failed > 0:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomePassed
	}

	return report
}
