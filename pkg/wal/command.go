package wal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

// Op is the first token of a log line.
type Op string

const (
	OpUserAdd            Op = "U-ADD"
	OpConversationAdd    Op = "C-ADD"
	OpMessageAdd         Op = "M-ADD"
	OpAccessSet          Op = "A-SET"
	OpDefaultSet         Op = "D-SET"
	OpUserDelete         Op = "U-DEL"
	OpConversationDelete Op = "C-DEL"
	OpRelaySeen          Op = "R-SEEN"
)

var (
	ErrUnknownOp = errors.New("unknown log opcode")
	ErrMalformed = errors.New("malformed log line")
)

// Command is one committed mutation, encoded as one line.
type Command interface {
	Op() Op
	Line() string
}

// UserAdd: U-ADD <id> <ms> <name...>
type UserAdd struct {
	ID   ids.ID
	Time time.Time
	Name string
}

// ConversationAdd: C-ADD <id> <owner> <ms> <control> <title...>
type ConversationAdd struct {
	ID      ids.ID
	Owner   ids.ID
	Time    time.Time
	Control models.Control
	Title   string
}

// MessageAdd: M-ADD <id> <author> <conversation> <ms> <body...>
type MessageAdd struct {
	ID           ids.ID
	Author       ids.ID
	Conversation ids.ID
	Time         time.Time
	Body         string
}

// AccessSet: A-SET <conversation> <user> <flags>
type AccessSet struct {
	Conversation ids.ID
	User         ids.ID
	Flags        models.Access
}

// DefaultSet: D-SET <conversation> <control>
type DefaultSet struct {
	Conversation ids.ID
	Control      models.Control
}

// UserDelete: U-DEL <id>
type UserDelete struct{ ID ids.ID }

// ConversationDelete: C-DEL <id>
type ConversationDelete struct{ ID ids.ID }

// RelaySeen: R-SEEN <bundle id>. Records the relay cursor after a batch
// has been applied.
type RelaySeen struct{ Root ids.ID }

func (UserAdd) Op() Op            { return OpUserAdd }
func (ConversationAdd) Op() Op    { return OpConversationAdd }
func (MessageAdd) Op() Op         { return OpMessageAdd }
func (AccessSet) Op() Op          { return OpAccessSet }
func (DefaultSet) Op() Op         { return OpDefaultSet }
func (UserDelete) Op() Op         { return OpUserDelete }
func (ConversationDelete) Op() Op { return OpConversationDelete }
func (RelaySeen) Op() Op          { return OpRelaySeen }

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func (c UserAdd) Line() string {
	return join(OpUserAdd, c.ID.String(), ms(c.Time), c.Name)
}

func (c ConversationAdd) Line() string {
	return join(OpConversationAdd, c.ID.String(), c.Owner.String(), ms(c.Time), strconv.Itoa(int(c.Control)), c.Title)
}

func (c MessageAdd) Line() string {
	return join(OpMessageAdd, c.ID.String(), c.Author.String(), c.Conversation.String(), ms(c.Time), c.Body)
}

func (c AccessSet) Line() string {
	return join(OpAccessSet, c.Conversation.String(), c.User.String(), strconv.Itoa(int(c.Flags)))
}

func (c DefaultSet) Line() string {
	return join(OpDefaultSet, c.Conversation.String(), strconv.Itoa(int(c.Control)))
}

func (c UserDelete) Line() string         { return join(OpUserDelete, c.ID.String()) }
func (c ConversationDelete) Line() string { return join(OpConversationDelete, c.ID.String()) }
func (c RelaySeen) Line() string          { return join(OpRelaySeen, c.Root.String()) }

func join(op Op, fields ...string) string {
	return string(op) + " " + strings.Join(fields, " ")
}

// fields splits off n single-space separated tokens. When text is set the
// remainder of the line, spaces included, is returned as the last element.
func fields(rest string, n int, text bool) ([]string, error) {
	out := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		tok, tail, found := strings.Cut(rest, " ")
		if tok == "" {
			return nil, ErrMalformed
		}
		out = append(out, tok)
		rest = tail
		if !found && i < n-1 {
			return nil, ErrMalformed
		}
	}
	if text {
		out = append(out, rest)
	} else if rest != "" {
		return nil, ErrMalformed
	}
	return out, nil
}

// Parse decodes one log line.
func Parse(line string) (Command, error) {
	op, rest, _ := strings.Cut(line, " ")
	switch Op(op) {
	case OpUserAdd:
		f, err := fields(rest, 2, true)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0])
		if err != nil {
			return nil, err
		}
		t, err := parseMs(f[1])
		if err != nil {
			return nil, err
		}
		return UserAdd{ID: idv[0], Time: t, Name: f[2]}, nil

	case OpConversationAdd:
		f, err := fields(rest, 4, true)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0], f[1])
		if err != nil {
			return nil, err
		}
		t, err := parseMs(f[2])
		if err != nil {
			return nil, err
		}
		ctl, err := parseByte(f[3])
		if err != nil {
			return nil, err
		}
		return ConversationAdd{ID: idv[0], Owner: idv[1], Time: t, Control: models.Control(ctl), Title: f[4]}, nil

	case OpMessageAdd:
		f, err := fields(rest, 4, true)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0], f[1], f[2])
		if err != nil {
			return nil, err
		}
		t, err := parseMs(f[3])
		if err != nil {
			return nil, err
		}
		return MessageAdd{ID: idv[0], Author: idv[1], Conversation: idv[2], Time: t, Body: f[4]}, nil

	case OpAccessSet:
		f, err := fields(rest, 3, false)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0], f[1])
		if err != nil {
			return nil, err
		}
		flags, err := parseByte(f[2])
		if err != nil {
			return nil, err
		}
		return AccessSet{Conversation: idv[0], User: idv[1], Flags: models.Access(flags)}, nil

	case OpDefaultSet:
		f, err := fields(rest, 2, false)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0])
		if err != nil {
			return nil, err
		}
		ctl, err := parseByte(f[1])
		if err != nil {
			return nil, err
		}
		return DefaultSet{Conversation: idv[0], Control: models.Control(ctl)}, nil

	case OpUserDelete, OpConversationDelete, OpRelaySeen:
		f, err := fields(rest, 1, false)
		if err != nil {
			return nil, err
		}
		idv, err := parseIDs(f[0])
		if err != nil {
			return nil, err
		}
		switch Op(op) {
		case OpUserDelete:
			return UserDelete{ID: idv[0]}, nil
		case OpRelaySeen:
			return RelaySeen{Root: idv[0]}, nil
		}
		return ConversationDelete{ID: idv[0]}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func parseIDs(s ...string) ([]ids.ID, error) {
	out := make([]ids.ID, len(s))
	for i, v := range s {
		id, err := ids.Parse(v)
		if err != nil {
			return nil, malformed(err)
		}
		out[i] = id
	}
	return out, nil
}

func parseMs(s string) (time.Time, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, malformed(err)
	}
	return time.UnixMilli(v), nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, malformed(err)
	}
	return byte(v), nil
}
