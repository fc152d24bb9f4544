// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verify

import "go.uber.org/zap"

// Options control what a verification run checks and how.
type Options struct { //nolint:govet
	// Logger for run progress; defaults to a nop logger.
	Logger *zap.Logger

	// ExpectedSHA256 is the reference digest for the whole-target check,
	// 64 hex characters.
	ExpectedSHA256 string

	// SHA256File is the path of a sha256sum-style file to pull the reference
	// digest from when ExpectedSHA256 is empty.
	SHA256File string

	// ExternalTool pins the checkisomd5 binary to use for the implanted-MD5
	// check. Empty means look next to the executable and in PATH; the
	// built-in engine runs when nothing resolves or the tool fails to start.
	ExternalTool string

	// SHA256 enables the whole-target SHA-256 check. Without a reference
	// digest the computed value is reported as information.
	SHA256 bool

	// ImplantedMD5 enables the implanted-MD5 check.
	ImplantedMD5 bool

	// Content enables manifest verification over the target's directory tree.
	Content bool

	// Eject opens the drive tray after verifying a physical drive.
	Eject bool
}

// Option is a single run option.
type Option func(*Options)

// WithLogger sets the logger for the run.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithExpectedSHA256 supplies the reference digest for the whole-target check
// and enables it.
func WithExpectedSHA256(hash string) Option {
	return func(o *Options) {
		o.ExpectedSHA256 = hash
		o.SHA256 = true
	}
}

// WithSHA256File reads the reference digest from a sha256sum-style file and
// enables the whole-target check.
func WithSHA256File(path string) Option {
	return func(o *Options) {
		o.SHA256File = path
		o.SHA256 = true
	}
}

// WithSHA256 toggles the whole-target SHA-256 check.
func WithSHA256(enabled bool) Option {
	return func(o *Options) {
		o.SHA256 = enabled
	}
}

// WithImplantedMD5 toggles the implanted-MD5 check.
func WithImplantedMD5(enabled bool) Option {
	return func(o *Options) {
		o.ImplantedMD5 = enabled
	}
}

// WithContentCheck toggles manifest verification of the target's tree.
func WithContentCheck(enabled bool) Option {
	return func(o *Options) {
		o.Content = enabled
	}
}

// WithExternalTool pins the checkisomd5 binary used for the implanted-MD5
// check.
func WithExternalTool(path string) Option {
	return func(o *Options) {
		o.ExternalTool = path
	}
}

// WithEject opens the drive tray after verification.
func WithEject(enabled bool) Option {
	return func(o *Options) {
		o.Eject = enabled
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
