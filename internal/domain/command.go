package domain

// Command is a single relayed request.
// Frame is sent to the store as is; Key is kept alongside it for replay and logs.
type Command struct {
	Key   string
	Frame []byte
}

// NewCommand creates a command from a key and its serialized frame.
func NewCommand(key string, frame []byte) Command {
	return Command{Key: key, Frame: frame}
}

// CommandFromKey creates a command whose key is itself the serialized frame.
func CommandFromKey(key string) Command {
	return Command{Key: key, Frame: []byte(key)}
}

// Size returns the frame length in bytes.
func (c Command) Size() int {
	return len(c.Frame)
}

// Empty returns true if there is nothing to send.
func (c Command) Empty() bool {
	return len(c.Frame) == 0
}
