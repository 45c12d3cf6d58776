// Package resp encodes requests in the Redis serialization protocol.
//
// Every request is an array of bulk strings:
//
//	*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n
//
// Frames produced here can be handed to relay.Sender.LoadKey unchanged.
package resp
