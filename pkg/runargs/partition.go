// Package runargs splits the flat token stream of a run invocation into
// its three destinations: tool flags, launcher arguments, and script
// arguments. The grammar has no separator discipline beyond a single
// optional "--", so classification runs as an explicit state machine
// with a fixed per-token rule order.
package runargs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/runzip/runzip/pkg/signature"
)

const (
	// DefaultTarget is used when no positional target appears.
	DefaultTarget = "app.zip"
	// DefaultEntry is used when no entry-point name appears.
	DefaultEntry = "main.py"

	flagVerify       = "--signed"
	flagPassword     = "--password"
	flagPasswordShrt = "-p"
	flagSeparator    = "--"
	flagHelpLauncher = "--uv-run-help"
	flagHelpShort    = "-hh"

	// launcherHelpArg is what a launcher-help request translates to.
	launcherHelpArg = "--help"
)

// ErrMissingValue marks a flag whose required value token is absent.
var ErrMissingValue = errors.New("flag requires a value")

// Options carries the partition's resolved surroundings. The fallback
// key-locator environment value is captured by the caller; the
// partitioner never reads process state itself.
type Options struct {
	SignatureKeyEnv string
}

// Result is the total, order-preserving partition of one invocation's
// tokens. Every input token lands in exactly one place.
type Result struct {
	Target       string
	Entry        string
	Password     string
	Verify       bool
	KeyPath      string
	LauncherArgs []string
	ScriptArgs   []string
	LauncherHelp bool
}

type scanState int

const (
	// awaitingTarget: no positional seen yet; flags feed the launcher.
	awaitingTarget scanState = iota
	// awaitingEntry: target resolved; the next positional names the
	// entry point.
	awaitingEntry
	// consumingScriptArgs: target and entry resolved; everything
	// before the separator still belongs to the script.
	consumingScriptArgs
	// postSeparator: "--" seen; every token is a script argument.
	postSeparator
)

// Partition scans tokens left to right, applying the rule order:
// verification request, password request, first separator, positional
// state, launcher-help alias, launcher argument. The launcher-help
// alias terminates the scan and discards what follows.
func Partition(tokens []string, opts Options) (*Result, error) {
	res := &Result{}
	state := awaitingTarget
	seenSeparator := false

	for i := 0; i < len(tokens); {
		tok := tokens[i]

		switch tok {
		case flagVerify:
			res.Verify = true
			if i+1 < len(tokens) {
				res.KeyPath = tokens[i+1]
				i += 2
			} else {
				// Tiered default resolved after the scan.
				i++
			}
			continue
		case flagPassword, flagPasswordShrt:
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf(
					"%w: %s", ErrMissingValue, tok,
				)
			}
			res.Password = tokens[i+1]
			i += 2
			continue
		}

		if tok == flagSeparator && !seenSeparator {
			seenSeparator = true
			state = postSeparator
			i++
			continue
		}

		switch state {
		case postSeparator, consumingScriptArgs:
			res.ScriptArgs = append(res.ScriptArgs, tok)

		case awaitingEntry:
			if strings.HasPrefix(tok, "-") {
				res.ScriptArgs = append(res.ScriptArgs, tok)
			} else {
				res.Entry = tok
			}
			state = consumingScriptArgs

		case awaitingTarget:
			if !strings.HasPrefix(tok, "-") {
				res.Target = tok
				state = awaitingEntry
				break
			}
			if tok == flagHelpShort || tok == flagHelpLauncher {
				res.LauncherArgs = append(
					res.LauncherArgs, launcherHelpArg,
				)
				res.LauncherHelp = true
				return finish(res, opts), nil
			}
			res.LauncherArgs = append(res.LauncherArgs, tok)
		}
		i++
	}

	return finish(res, opts), nil
}

// finish applies defaults and the key-locator tiering: explicit value,
// then environment fallback, then the target path with its extension
// swapped for the key extension.
func finish(res *Result, opts Options) *Result {
	if res.Target == "" {
		res.Target = DefaultTarget
	}
	if res.Entry == "" {
		res.Entry = DefaultEntry
	}
	if res.Verify && res.KeyPath == "" {
		if opts.SignatureKeyEnv != "" {
			res.KeyPath = opts.SignatureKeyEnv
		} else {
			res.KeyPath = signature.KeyPathFor(res.Target)
		}
	}
	return res
}
