// Package command builds external-program invocations as an ordered list of
// typed flag/value pairs. A Command is a value: every append returns a new
// Command, so a rendered command line can never be changed after the fact.
package command

import (
	"strconv"
	"strings"
)

type kind int

const (
	kindSwitch kind = iota
	kindQuoted      // paths and free-form strings
	kindRaw         // emitted verbatim (binary paths for --prog, host lists)
	kindInt
	kindFloat
)

type arg struct {
	flag  string
	kind  kind
	value string
}

// Command is one external invocation: a binary followed by flags.
type Command struct {
	bin  string
	args []arg
}

// New starts a command for the given binary path.
func New(bin string) Command {
	return Command{bin: bin}
}

// Path appends a flag whose value is a filesystem path.
func (c Command) Path(flag, path string) Command {
	return c.with(arg{flag: flag, kind: kindQuoted, value: path})
}

// String appends a flag with a quoted string value.
func (c Command) String(flag, v string) Command {
	return c.with(arg{flag: flag, kind: kindQuoted, value: v})
}

// Raw appends a flag whose value is emitted without quoting.
func (c Command) Raw(flag, v string) Command {
	return c.with(arg{flag: flag, kind: kindRaw, value: v})
}

// Int appends an integer flag.
func (c Command) Int(flag string, n int) Command {
	return c.with(arg{flag: flag, kind: kindInt, value: strconv.Itoa(n)})
}

// Float appends a floating point flag using the shortest representation that
// round-trips, so 8 renders as "8" and 0.5 as "0.5".
func (c Command) Float(flag string, f float64) Command {
	return c.with(arg{flag: flag, kind: kindFloat, value: strconv.FormatFloat(f, 'g', -1, 64)})
}

// Switch appends a boolean flag.
func (c Command) Switch(flag string) Command {
	return c.with(arg{flag: flag, kind: kindSwitch})
}

// Value returns the unquoted value of the first occurrence of flag.
func (c Command) Value(flag string) (string, bool) {
	for _, a := range c.args {
		if a.flag == flag {
			return a.value, true
		}
	}
	return "", false
}

func (c Command) with(a arg) Command {
	args := make([]arg, len(c.args), len(c.args)+1)
	copy(args, c.args)
	return Command{bin: c.bin, args: append(args, a)}
}

// Render returns the shell command line. Quoted values are wrapped in double
// quotes with the characters the shell interprets inside them escaped.
func (c Command) Render() string {
	var b strings.Builder
	b.WriteString(c.bin)
	for _, a := range c.args {
		b.WriteByte(' ')
		b.WriteString(a.flag)
		switch a.kind {
		case kindSwitch:
		case kindQuoted:
			b.WriteByte(' ')
			b.WriteString(Quote(a.value))
		default:
			b.WriteByte(' ')
			b.WriteString(a.value)
		}
	}
	return b.String()
}

// Argv returns the command as an argument vector for direct execution.
func (c Command) Argv() []string {
	argv := make([]string, 0, 1+2*len(c.args))
	argv = append(argv, c.bin)
	for _, a := range c.args {
		argv = append(argv, a.flag)
		if a.kind != kindSwitch {
			argv = append(argv, a.value)
		}
	}
	return argv
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

// Quote wraps s in double quotes for /bin/sh.
func Quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
