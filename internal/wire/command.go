package wire

import "strings"

// Command categories. PM commands manage projects themselves, PA commands
// operate inside one project.
const (
	CategoryProjectManagement = "PM"
	CategoryProjectAccess     = "PA"
)

// Actions understood by the dispatcher. The category+action prefix is fixed
// width (2+4 bytes) with no delimiter, so actions are always four letters.
const (
	ActionCreate   = "CREA"
	ActionDelete   = "DELE"
	ActionInfo     = "INFO"
	ActionTask     = "TASK"
	ActionFile     = "FILE"
	ActionBuild    = "BULD"
	ActionDatabase = "DABA"
	ActionQuery    = "QURY"
)

// Task sub-actions carried as the first PA TASK argument.
const (
	TaskList   = "LIST"
	TaskStatus = "STAT"
	TaskResult = "RESU"
	TaskDelete = "DELE"
)

// Command is a parsed request payload. Args are raw wire arguments; callers
// unescape the fields that may legitimately contain underscores.
type Command struct {
	Category string
	Action   string
	Args     []string
}

// SplitCommand parses a request payload into its category, action, and
// argument list. It performs no semantic validation; each manager checks the
// arity and types of its own argument list.
func SplitCommand(payload string) (Command, error) {
	if len(payload) < 6 {
		return Command{}, &ProtocolError{Reason: "command shorter than category+action prefix"}
	}
	cmd := Command{
		Category: payload[:2],
		Action:   payload[2:6],
	}
	rest := payload[6:]
	if rest == "" {
		return cmd, nil
	}
	// The prefix is separated from the first argument by '_'.
	rest = strings.TrimPrefix(rest, "_")
	cmd.Args = strings.Split(rest, "_")
	return cmd, nil
}

// Escape prepares an argument that may contain literal underscores for
// transmission. The receiver reverses it with Unescape.
func Escape(arg string) string {
	return strings.ReplaceAll(arg, "_", "\t")
}

// Unescape restores the literal underscores of a received argument.
func Unescape(arg string) string {
	return strings.ReplaceAll(arg, "\t", "_")
}

// Join assembles a command payload from its parts, escaping each argument.
func Join(category, action string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, category+action)
	for _, arg := range args {
		parts = append(parts, Escape(arg))
	}
	return strings.Join(parts, "_")
}
