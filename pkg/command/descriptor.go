package command

import (
	"context"
	"strings"
	"time"

	"konoha/pkg/bus"
)

// HandlerFunc runs one command invocation. Replies go through msg.
type HandlerFunc func(ctx context.Context, msg *Message, dc DispatchContext) error

// Descriptor is the registered metadata and handler for one command.
type Descriptor struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// Category overrides the display grouping derived from name and description.
	Category  string
	OwnerOnly bool
	Handler   HandlerFunc
}

// Factory builds a descriptor at registry load time. A factory that fails or
// panics is skipped without aborting the load.
type Factory func() (Descriptor, error)

// Static wraps a ready descriptor as a factory.
func Static(desc Descriptor) Factory {
	return func() (Descriptor, error) {
		return desc, nil
	}
}

// DispatchContext is built fresh for every dispatch and handed to the
// handler by value.
type DispatchContext struct {
	Prefix     string
	Command    string
	Args       []string
	Text       string
	Group      *bus.GroupInfo
	IsAdmin    bool
	IsBotAdmin bool
	// Implicit is set when the command was synthesized from a bare URL.
	Implicit   bool
	ReceivedAt time.Time
}

// Arg returns the i-th argument or an empty string.
func (dc DispatchContext) Arg(i int) string {
	if i < 0 || i >= len(dc.Args) {
		return ""
	}

	return dc.Args[i]
}

// Parse splits a prefixed body into a lower-cased command name and its
// whitespace-separated arguments. ok is false when body lacks the prefix or
// names no command.
func Parse(prefix string, body string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return "", nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(body, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}

	return strings.ToLower(fields[0]), fields[1:], true
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
