// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verify

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"

	"github.com/isotools/isocheck/block"
	"github.com/isotools/isocheck/isomd5"
)

// externalToolName is the reference implementation of the implanted-MD5
// check. When present it is preferred over the built-in engine, mainly to
// sidestep crypto-policy setups that refuse MD5 in-process.
const externalToolName = "checkisomd5"

// ExternalMethod names the external verification strategy in results.
const ExternalMethod = "external checkisomd5"

// md5Check verifies the implanted MD5 through the external tool when one
// resolves, falling back to the built-in engine when the tool cannot be run.
//
// A nonzero exit of the tool is a verification verdict, not a tool failure,
// and does not trigger the fallback.
func md5Check(target string, src *block.Source, options Options, logger *zap.Logger) MD5Check {
	if tool := resolveExternalTool(options.ExternalTool); tool != "" {
		logger.Debug("verifying implanted MD5 with external tool", zap.String("tool", tool))

		check, ran := runExternalTool(tool, target)
		if ran {
			return check
		}

		logger.Warn("external tool could not be run, using the built-in engine",
			zap.String("tool", tool), zap.Error(check.Err))
	}

	return internalMD5Check(src, logger)
}

// resolveExternalTool finds the checkisomd5 binary: the pinned path when one
// was configured, else next to our own executable, else PATH.
func resolveExternalTool(pinned string) string {
	if pinned != "" {
		return pinned
	}

	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), externalToolName)

		if st, err := os.Stat(local); err == nil && !st.IsDir() {
			return local
		}
	}

	if path, err := exec.LookPath(externalToolName); err == nil {
		return path
	}

	return ""
}

// runExternalTool invokes the tool under its exit-code contract: zero means
// verified, nonzero means failed. The second return is false when the tool
// never produced a verdict and the caller should fall back.
func runExternalTool(tool, target string) (MD5Check, bool) {
	stdout, err := cmd.Run(tool, "-v", target)
	if err != nil {
		var exitError *cmd.ExitError

		if errors.As(err, &exitError) {
			return MD5Check{
				Outcome: OutcomeFailed,
				Method:  ExternalMethod,
				Output:  string(exitError.Output),
			}, true
		}

		return MD5Check{Err: fmt.Errorf("running %q: %w", tool, err)}, false
	}

	return MD5Check{
		Outcome: OutcomePassed,
		Method:  ExternalMethod,
		Output:  stdout,
	}, true
}

func internalMD5Check(src *block.Source, logger *zap.Logger) MD5Check {
	logger.Debug("verifying implanted MD5 with the built-in engine")

	res, err := isomd5.Check(src)

	switch {
	case errors.Is(err, block.ErrSizeUnavailable):
		return MD5Check{
			Outcome: OutcomeError,
			Err: fmt.Errorf("%w; implanted-MD5 verification needs the original image file, "+
				"not a mounted or virtual view of it", err),
		}
	case err != nil:
		return MD5Check{Outcome: OutcomeError, Err: err}
	case res == nil:
		// unsigned image: nothing to verify against, nothing failed
		return MD5Check{Outcome: OutcomeAbsent}
	}

	check := MD5Check{
		Method:      res.Method,
		Stored:      res.Stored,
		Computed:    res.Computed,
		SkipSectors: res.SkipSectors,
	}

	if res.Matches {
		check.Outcome = OutcomePassed
	} else {
		check.Outcome = OutcomeFailed
	}

	logger.Debug("implanted MD5 finished",
		zap.String("stored", res.Stored),
		zap.String("computed", res.Computed),
		zap.Bool("matches", res.Matches))

	return check
}
