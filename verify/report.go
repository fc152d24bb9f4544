// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verify

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/isotools/isocheck/iso9660"
	"github.com/isotools/isocheck/manifest"
)

// Outcome classifies a single check within a Report.
type Outcome int

// Check outcomes. The zero value is OutcomeSkipped, so a check that never ran
// reports itself correctly.
const (
	// OutcomeSkipped means the check was not requested.
	OutcomeSkipped Outcome = iota

	// OutcomePassed means the check ran and the target verified.
	OutcomePassed

	// OutcomeFailed means the check ran and the target did not verify.
	OutcomeFailed

	// OutcomeAbsent means the check ran but found nothing to verify against
	// (no implanted signature, no checksum files on the media).
	OutcomeAbsent

	// OutcomeInfo means the check produced information without a verdict.
	OutcomeInfo

	// OutcomeError means the check could not be completed.
	OutcomeError
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAbsent:
		return "absent"
	case OutcomeInfo:
		return "info"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// TargetKind describes what kind of path a Report covers.
type TargetKind int

// Target kinds.
const (
	// TargetFile is a regular file, usually an ISO image.
	TargetFile TargetKind = iota

	// TargetDevice is a raw block device, usually an optical drive.
	TargetDevice

	// TargetDirectory is a browsable tree, usually already-mounted media.
	// Only content verification applies.
	TargetDirectory
)

// String implements fmt.Stringer.
func (k TargetKind) String() string {
	switch k {
	case TargetFile:
		return "file"
	case TargetDevice:
		return "device"
	case TargetDirectory:
		return "directory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SHA256Check is the outcome of the whole-image SHA-256 comparison.
type SHA256Check struct { //nolint:govet
	Outcome Outcome

	// Expected is the reference digest, lowercase hex.
	//
	// Empty when no reference was supplied and the digest was computed for
	// information only.
	Expected string

	// Computed is the digest of the target, lowercase hex.
	Computed string

	// Source names where Expected came from: "command line" or the path of
	// the hash file.
	Source string

	Err error
}

// MD5Check is the outcome of the implanted-MD5 verification.
type MD5Check struct { //nolint:govet
	Outcome Outcome

	// Method names the verification strategy that produced the verdict.
	Method string

	// Stored and Computed are the signature digest and the reproduced digest,
	// lowercase hex. Both are empty when an external tool produced the
	// verdict, since its contract is exit-code only.
	Stored   string
	Computed string

	// SkipSectors is the trailing-sector exclusion declared by the signature.
	SkipSectors int

	// Output is the captured output of the external tool; empty for the
	// built-in engine.
	Output string

	Err error
}

// ContentReport aggregates manifest verification across the target's tree.
type ContentReport struct { //nolint:govet
	Outcome Outcome

	// Root is the directory the tree was read through: the target itself,
	// an existing mountpoint, or a temporary mount.
	Root string

	Results []*manifest.Result
	Summary manifest.Summary

	Err error
}

// EjectResult reports the post-verification eject, when one was requested.
type EjectResult struct { //nolint:govet
	Outcome Outcome
	Err     error
}

// Report is the complete result of one verification run.
//
// Every check records its own outcome; nothing aborts the run short of the
// target being unopenable.
type Report struct { //nolint:govet
	// RunID tags all log entries of the run for correlation.
	RunID uuid.UUID

	// Target is the path as given.
	Target string

	Kind TargetKind

	// Volume is the probed ISO 9660 volume information, nil when the target
	// does not carry the filesystem or could not be probed.
	Volume *iso9660.VolumeInfo

	SHA256  SHA256Check
	MD5     MD5Check
	Content ContentReport
	Eject   EjectResult
}

// Failed reports whether any verification check failed or errored.
//
// Eject problems are recorded in the Report but do not fail the run.
func (r *Report) Failed() bool {
	for _, outcome := range []Outcome{r.SHA256.Outcome, r.MD5.Outcome, r.Content.Outcome} {
		if outcome == OutcomeFailed || outcome == OutcomeError {
			return true
		}
	}

	return false
}
