package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/runzip/runzip/pkg/archive"
	"github.com/runzip/runzip/pkg/home"
	"github.com/runzip/runzip/pkg/launcher"
	"github.com/runzip/runzip/pkg/runargs"
	"github.com/runzip/runzip/pkg/signature"
)

func runCmd(cfg home.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run an entry point from an archive, or a script directly",
		ArgsUsage: "[LAUNCHER_ARGS] [ARCHIVE] [ENTRY] " +
			"[-- SCRIPT_ARGS...]",
		Description: "Tokens before the archive path go to the " +
			"launcher; the first token after it names the entry " +
			"point; everything later, and everything after --, " +
			"goes to the script.\n\nSpecial flags:\n" +
			"   -p, --password <value>  decryption password\n" +
			"   --signed [keyfile]      verify the archive signature\n" +
			"   -hh, --uv-run-help      show the launcher's own help",
		// The grammar is positional and order-sensitive; tokens are
		// scanned by hand instead of the flag framework.
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) > 0 &&
				(args[0] == "-h" || args[0] == "--help") {
				return cli.ShowCommandHelp(c, "run")
			}
			code, err := runAction(cfg, args)
			if err != nil {
				return err
			}
			if code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

func runAction(cfg home.Config, tokens []string) (int, error) {
	res, err := runargs.Partition(tokens, runargs.Options{
		SignatureKeyEnv: cfg.SignatureKeyEnv,
	})
	if err != nil {
		return 0, err
	}

	l := launcher.New(cfg)
	if err := ensureLauncher(l); err != nil {
		return 0, err
	}

	if res.LauncherHelp {
		return l.Run("run", "--help")
	}

	if !isArchive(res.Target) {
		// A bare script runs straight through the launcher.
		return l.Run(launchArgs(res, res.Target)...)
	}

	if res.Verify {
		if err := signature.Verify(
			res.Target, res.KeyPath,
		); err != nil {
			return 0, fmt.Errorf(
				"verify %s: %w", res.Target, err,
			)
		}
		slog.Debug("signature verified",
			"archive", res.Target,
			"key", res.KeyPath,
		)
	}

	staging, err := cfg.StagingDir()
	if err != nil {
		return 0, err
	}

	count, err := archive.Extract(
		res.Target, staging, res.Password,
		archive.OSExecPolicy{},
	)
	if err != nil {
		return 0, fmt.Errorf(
			"extract %s: %w", res.Target, err,
		)
	}
	slog.Debug("extracted",
		"archive", res.Target,
		"files", count,
		"staging", staging,
	)

	entry, err := archive.ResolveEntryPoint(
		staging, res.Entry,
	)
	if err != nil {
		return 0, err
	}

	args := launchArgs(res, entry)
	fmt.Printf("Running: uv %s\n", strings.Join(args, " "))
	return l.Run(args...)
}

func launchArgs(res *runargs.Result, script string) []string {
	args := append([]string{"run"}, res.LauncherArgs...)
	args = append(args, script)
	return append(args, res.ScriptArgs...)
}

func isArchive(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".zip")
}

func ensureLauncher(l *launcher.Launcher) error {
	if l.Installed() {
		return nil
	}
	fmt.Println("Launcher not found, downloading...")

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Minute,
	)
	defer cancel()

	path, err := l.Install(ctx)
	if err != nil {
		return fmt.Errorf("install launcher: %w", err)
	}
	fmt.Printf("Installed launcher: %s\n", path)
	return nil
}
