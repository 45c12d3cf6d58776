package domain

import "strings"

// ReplyOK is the status reply the store sends for a successful AUTH.
const ReplyOK = "OK"

// noAuthPrefix starts the error reply sent when a password is required,
// e.g. "NOAUTH Authentication required.".
const noAuthPrefix = "NOAUTH"

// ReplyError is an error reply ("-ERR ...") returned by the store.
// The connection that produced it is still usable.
type ReplyError string

func (e ReplyError) Error() string {
	return string(e)
}

// AuthRequired reports whether the store refused the request for lack of a password.
func (e ReplyError) AuthRequired() bool {
	return strings.HasPrefix(string(e), noAuthPrefix)
}
