package resp

import (
	"errors"

	"github.com/tidwall/redcon"
)

var errNoArgs = errors.New("resp: command has no arguments")

// Encode serializes args as a single request frame.
func Encode(args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errNoArgs
	}
	return AppendCommand(nil, args...), nil
}

// AppendCommand appends the request frame for args to dst and returns the extended buffer.
func AppendCommand(dst []byte, args ...string) []byte {
	dst = redcon.AppendArray(dst, len(args))
	for _, a := range args {
		dst = redcon.AppendBulkString(dst, a)
	}
	return dst
}
