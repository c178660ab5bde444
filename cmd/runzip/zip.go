package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/runzip/runzip/pkg/archive"
	"github.com/runzip/runzip/pkg/paths"
	"github.com/runzip/runzip/pkg/runargs"
	"github.com/runzip/runzip/pkg/signature"
)

func zipCmd() *cli.Command {
	return &cli.Command{
		Name:      "zip",
		Usage:     "pack a directory into an archive",
		ArgsUsage: "[directory]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   runargs.DefaultTarget,
				Usage:   "output archive path",
			},
			&cli.StringFlag{
				Name:    "ignore",
				Aliases: []string{"i"},
				Usage: "comma-delimited extra ignore patterns; " +
					"an empty value drops the default excludes",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "encrypt entries with this password",
			},
			&cli.BoolFlag{
				Name:  "sign",
				Usage: "append a detached signature after packing",
			},
		},
		Action: zipAction,
	}
}

func zipAction(c *cli.Context) error {
	dir := "."
	if c.NArg() > 0 {
		dir = c.Args().Get(0)
	}
	output := c.String("output")

	var userPatterns []string
	if c.IsSet("ignore") {
		userPatterns = strings.Split(c.String("ignore"), ",")
	}
	patterns := paths.CompilePatterns(dir, userPatterns)
	slog.Debug("packing",
		"dir", dir,
		"output", output,
		"patterns", patterns,
	)

	count, err := archive.Build(
		dir, output, patterns, c.String("password"),
	)
	if err != nil {
		return fmt.Errorf("pack %s: %w", dir, err)
	}
	fmt.Printf("Packed %d files into %s\n", count, output)

	if c.Bool("sign") {
		keyPath, err := signature.Sign(output)
		if err != nil {
			return fmt.Errorf("sign %s: %w", output, err)
		}
		fmt.Printf("Signed %s (key: %s)\n", output, keyPath)
	}
	return nil
}
