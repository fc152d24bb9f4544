// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"

	"github.com/isotools/isocheck/verify"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func render(w io.Writer, report *verify.Report) {
	fmt.Fprintf(w, "Target: %s (%s)\n", report.Target, report.Kind)

	if report.Volume != nil && report.Volume.Label != nil {
		fmt.Fprintf(w, "Volume: %q, %d bytes\n", *report.Volume.Label, report.Volume.FilesystemSize)
	}

	renderSHA256(w, report.SHA256)
	renderMD5(w, report.MD5)
	renderContent(w, report.Content)

	if report.Eject.Outcome == verify.OutcomeError {
		fmt.Fprintf(w, "\n%sWarning: eject failed: %v%s\n", colorYellow, report.Eject.Err, colorReset)
	}

	if report.Failed() {
		fmt.Fprintf(w, "\n%sResult: FAILURE%s\n", colorRed, colorReset)
	} else {
		fmt.Fprintf(w, "\n%sResult: SUCCESS%s\n", colorGreen, colorReset)
	}
}

func renderSHA256(w io.Writer, check verify.SHA256Check) {
	if check.Outcome == verify.OutcomeSkipped {
		return
	}

	fmt.Fprintln(w, "\n--- Whole-Target SHA-256 ---")

	switch check.Outcome {
	case verify.OutcomeInfo:
		fmt.Fprintf(w, "%sSHA256: %s%s\n", colorYellow, check.Computed, colorReset)
	case verify.OutcomeError:
		fmt.Fprintf(w, "%sError: %v%s\n", colorRed, check.Err, colorReset)
	default:
		fmt.Fprintf(w, "  - Expected (%s): %s\n", check.Source, check.Expected)
		fmt.Fprintf(w, "  - Calculated:    %s\n", check.Computed)

		if check.Outcome == verify.OutcomePassed {
			fmt.Fprintf(w, "%sSUCCESS: Hashes match.%s\n", colorGreen, colorReset)
		} else {
			fmt.Fprintf(w, "%sFAILURE: Hashes DO NOT match.%s\n", colorRed, colorReset)
		}
	}
}

func renderMD5(w io.Writer, check verify.MD5Check) {
	if check.Outcome == verify.OutcomeSkipped {
		return
	}

	fmt.Fprintln(w, "\n--- Implanted ISO MD5 (checkisomd5 compatible) ---")

	if check.Output != "" {
		fmt.Fprint(w, check.Output)
	}

	switch check.Outcome {
	case verify.OutcomeAbsent:
		fmt.Fprintf(w, "%sNo 'ISO MD5SUM' signature found; this image was not created with implantisomd5.%s\n", colorYellow, colorReset)
	case verify.OutcomeError:
		fmt.Fprintf(w, "%sError: %v%s\n", colorRed, check.Err, colorReset)
	case verify.OutcomePassed, verify.OutcomeFailed:
		if check.Stored != "" {
			fmt.Fprintf(w, "Verification Method: %s\n", check.Method)
			fmt.Fprintf(w, "Stored MD5:          %s\n", check.Stored)
			fmt.Fprintf(w, "Calculated MD5:      %s\n", check.Computed)
		}

		if check.Outcome == verify.OutcomePassed {
			fmt.Fprintf(w, "%sSUCCESS: Implanted MD5 is valid.%s\n", colorGreen, colorReset)
		} else {
			fmt.Fprintf(w, "%sFAILURE: Implanted MD5 does not match.%s\n", colorRed, colorReset)
		}
	}
}

func renderContent(w io.Writer, content verify.ContentReport) {
	if content.Outcome == verify.OutcomeSkipped {
		return
	}

	fmt.Fprintln(w, "\n--- Content Verification ---")

	switch content.Outcome {
	case verify.OutcomeError:
		fmt.Fprintf(w, "%sError: %v%s\n", colorRed, content.Err, colorReset)

		return
	case verify.OutcomeAbsent:
		fmt.Fprintf(w, "%sNo checksum files (*.sha, sha256sum.txt, SHA256SUMS) found on the media.%s\n", colorYellow, colorReset)

		return
	}

	for _, result := range content.Results {
		fmt.Fprintf(w, "Checksum file: %s (%d entries)\n", result.Path, result.Total())

		for _, entry := range result.Failed() {
			fmt.Fprintf(w, "  %s%s: %s%s\n", colorRed, entry.Name, entry.Status, colorReset)
		}
	}

	summary := content.Summary

	if content.Outcome == verify.OutcomePassed {
		fmt.Fprintf(w, "%sSUCCESS: %d file(s) verified across %d checksum file(s).%s\n",
			colorGreen, summary.Total, summary.Manifests, colorReset)
	} else {
		fmt.Fprintf(w, "%sFAILURE: %d of %d file(s) failed verification.%s\n",
			colorRed, summary.Failed, summary.Total, colorReset)
	}
}
