package input

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrSyntax is returned for lines that cannot be split into arguments.
var ErrSyntax = errors.New("input: syntax error")

// ParseLine splits line into command arguments using shell quoting rules.
// Blank lines and comments yield no arguments and no error. Arguments that
// contain shell operators (; & | < >) must be quoted.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrSyntax, err, line)
	}
	// The parser stops at the first unquoted operator and reports where.
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w: unquoted shell operator in %q", ErrSyntax, line)
	}
	return args, nil
}

// Key returns the key a command acts on: its first argument after the
// command name, or the name itself for commands without arguments.
func Key(args []string) string {
	switch len(args) {
	case 0:
		return ""
	case 1:
		return args[0]
	default:
		return args[1]
	}
}
