package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// MaxLineSize is the longest line Scan and Follow accept.
const MaxLineSize = 1 << 20

// Handler receives the arguments of one command.
type Handler func(ctx context.Context, args []string) error

// Scan reads r to the end and calls fn for every command line.
// It returns the number of commands handled. Scanning stops at the first
// syntax error, handler error or when ctx ends.
func Scan(ctx context.Context, r io.Reader, fn Handler) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	n, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return n, err
		}
		handled, err := handleLine(ctx, sc.Text(), fn)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if handled {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read input: %w", err)
	}
	return n, nil
}

func handleLine(ctx context.Context, line string, fn Handler) (bool, error) {
	args, err := ParseLine(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	if err := fn(ctx, args); err != nil {
		return false, err
	}
	return true, nil
}
