// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// isocheck verifies optical media and ISO images: whole-image SHA-256,
// the implanted MD5 convention of implantisomd5, and per-file checksum
// manifests found on the medium.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isotools/isocheck/block"
	"github.com/isotools/isocheck/verify"
)

var (
	flagSHA256       string
	flagSHAFile      string
	flagMD5          bool
	flagNoVerify     bool
	flagEject        bool
	flagDebug        bool
	flagExternalTool string
)

// errVerificationFailed signals a nonzero exit after the report was already
// rendered.
var errVerificationFailed = errors.New("verification failed")

var rootCmd = &cobra.Command{
	Use:   "isocheck [flags] <path|device|directory> [sha256]",
	Short: "Verify ISO images and optical media",
	Long: `isocheck verifies the integrity of ISO 9660 images and optical media through
three independent checks: a whole-image SHA-256 digest, the implanted MD5
convention of implantisomd5/checkisomd5, and per-file SHA-256 manifests
(*.sha, sha256sum.txt, SHA256SUMS) found on the medium.

The target is an image file, a raw optical device such as /dev/sr0, or a
directory of already-mounted media (content verification only).`,
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args)
	},
}

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List optical drives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		drives, err := block.ListDrives()
		if err != nil {
			return err
		}

		if len(drives) == 0 {
			fmt.Println("no optical drives found")

			return nil
		}

		for _, drive := range drives {
			media := "no media"
			if drive.MediaPresent {
				media = "media present"
			}

			fmt.Printf("%s  %s  (%s)\n", drive.Path, drive.Model, media)
		}

		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagSHA256, "sha256", "", "expected SHA-256 hash of the whole target")
	rootCmd.Flags().StringVar(&flagSHAFile, "sha-file", "", "sha256sum-style file to read the expected hash from")
	rootCmd.Flags().BoolVar(&flagMD5, "md5", false, "verify the implanted MD5 signature")
	rootCmd.Flags().BoolVar(&flagNoVerify, "no-verify", false, "skip verifying checksum manifests on the medium")
	rootCmd.Flags().BoolVar(&flagEject, "eject", false, "eject the drive after verification")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&flagExternalTool, "external-tool", "", "path to a checkisomd5 binary to use instead of the built-in engine")

	rootCmd.AddCommand(drivesCmd)

	viper.SetEnvPrefix("isocheck")
	viper.AutomaticEnv()

	viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))                 //nolint:errcheck
	viper.BindPFlag("external_tool", rootCmd.Flags().Lookup("external-tool")) //nolint:errcheck

	viper.SetConfigName("isocheck")
	viper.AddConfigPath("$HOME/.config/isocheck")
	viper.AddConfigPath(".")
}

func run(args []string) error {
	// config file is optional
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	target := args[0]

	expectedSHA256 := flagSHA256
	if len(args) == 2 && expectedSHA256 == "" {
		expectedSHA256 = args[1]
	}

	opts := []verify.Option{
		verify.WithLogger(buildLogger(viper.GetBool("debug"))),
		verify.WithSHA256(true),
		verify.WithImplantedMD5(flagMD5),
		verify.WithContentCheck(!flagNoVerify),
		verify.WithEject(flagEject),
		verify.WithExternalTool(viper.GetString("external_tool")),
	}

	if expectedSHA256 != "" {
		opts = append(opts, verify.WithExpectedSHA256(expectedSHA256))
	}

	if flagSHAFile != "" {
		opts = append(opts, verify.WithSHA256File(flagSHAFile))
	}

	report, err := verify.Run(target, opts...)
	if err != nil {
		return err
	}

	render(os.Stdout, report)

	if report.Failed() {
		return errVerificationFailed
	}

	return nil
}

func buildLogger(debug bool) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errVerificationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		os.Exit(1)
	}
}
