// Package server parses client input lines into typed commands.
package server

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies the parsed command variant.
type CommandKind int

// Command variants. CmdChat is the deliberate fallback for any line whose
// leading token is not in the vocabulary.
const (
	CmdChat CommandKind = iota
	CmdJoin
	CmdLeave
	CmdExit
	CmdUsers
	CmdPost
	CmdMessage
	CmdGroups
	CmdGroupJoin
	CmdGroupLeave
	CmdGroupUsers
	CmdGroupPost
	CmdGroupMessage
)

// GroupRef is the typed result of parsing a group argument: either a numeric
// ID or a name. Integer parsing is attempted first; anything that is not a
// valid integer is treated as an exact name.
type GroupRef struct {
	id      int
	name    string
	numeric bool
}

// ParseGroupRef classifies a raw group argument.
func ParseGroupRef(s string) GroupRef {
	if id, err := strconv.Atoi(s); err == nil {
		return GroupRef{id: id, numeric: true}
	}
	return GroupRef{name: s}
}

// ID returns the numeric ID and true when the reference was numeric.
func (r GroupRef) ID() (int, bool) {
	return r.id, r.numeric
}

// Name returns the name form of the reference; empty for numeric references.
func (r GroupRef) Name() string {
	return r.name
}

func (r GroupRef) String() string {
	if r.numeric {
		return strconv.Itoa(r.id)
	}
	return r.name
}

// Command is one parsed input line. Only the fields relevant to Kind are
// populated.
type Command struct {
	Kind      CommandKind
	Group     GroupRef
	MessageID int
	Text      string
}

func malformed(usage string) error {
	return fmt.Errorf("%w: %s", ErrMalformed, usage)
}

// ParseLine interprets one whitespace-trimmed input line. The leading token
// is matched case-sensitively against the fixed vocabulary; unrecognized
// lines become CmdChat with the whole line as content. A returned error
// wraps ErrMalformed and its text is suitable as the reply to the sender.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	token, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch token {
	case "%join":
		return Command{Kind: CmdJoin}, nil
	case "%leave":
		return Command{Kind: CmdLeave}, nil
	case "%exit":
		return Command{Kind: CmdExit}, nil
	case "%users":
		return Command{Kind: CmdUsers}, nil
	case "%groups":
		return Command{Kind: CmdGroups}, nil
	case "%post":
		if rest == "" {
			return Command{}, malformed("usage: %post <text>")
		}
		return Command{Kind: CmdPost, Text: rest}, nil
	case "%message":
		id, err := strconv.Atoi(rest)
		if err != nil {
			return Command{}, malformed("usage: %message <id>")
		}
		return Command{Kind: CmdMessage, MessageID: id}, nil
	case "%groupjoin", "%groupleave", "%groupusers":
		if rest == "" || strings.ContainsAny(rest, " \t") {
			return Command{}, malformed("usage: " + token + " <id-or-name>")
		}
		kind := map[string]CommandKind{
			"%groupjoin":  CmdGroupJoin,
			"%groupleave": CmdGroupLeave,
			"%groupusers": CmdGroupUsers,
		}[token]
		return Command{Kind: kind, Group: ParseGroupRef(rest)}, nil
	case "%grouppost":
		ref, text, ok := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !ok || ref == "" || text == "" {
			return Command{}, malformed("usage: %grouppost <id-or-name> <text>")
		}
		return Command{Kind: CmdGroupPost, Group: ParseGroupRef(ref), Text: text}, nil
	case "%groupmessage":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, malformed("usage: %groupmessage <id-or-name> <messageID>")
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Command{}, malformed("usage: %groupmessage <id-or-name> <messageID>")
		}
		return Command{Kind: CmdGroupMessage, Group: ParseGroupRef(fields[0]), MessageID: id}, nil
	default:
		return Command{Kind: CmdChat, Text: line}, nil
	}
}
