package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

// Applier receives replayed commands. The controller's raw operations
// satisfy it.
type Applier interface {
	AddUser(id ids.ID, name string, creation time.Time) (*models.User, error)
	AddConversation(id ids.ID, title string, owner ids.ID, creation time.Time, control models.Control) (*models.ConversationHeader, error)
	AddMessage(id, author, conversation ids.ID, body string, creation time.Time) (*models.Message, error)
	SetAccess(user, conversation ids.ID, flags models.Access) error
	ChangeDefault(conversation ids.ID, control models.Control) error
	DeleteUser(id ids.ID) error
	DeleteConversation(id ids.ID) error
}

// ReplayStats summarizes a replay. RelayCursor is the highest R-SEEN
// bundle id in the log.
type ReplayStats struct {
	Lines       int64         `json:"lines"`
	Applied     int64         `json:"applied"`
	Malformed   int64         `json:"malformed"`
	Rejected    int64         `json:"rejected"`
	RelayCursor ids.ID        `json:"relay_cursor"`
	Duration    time.Duration `json:"duration"`
}

// Replay applies every command in path, in file order. A missing file is
// an empty log. Lines that fail to parse or apply are logged and skipped.
func Replay(path string, a Applier, log *slog.Logger) (*ReplayStats, error) {
	stats := &ReplayStats{}
	start := time.Now()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("wal_empty", "path", path)
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("open wal: %w", err)
	}
	defer f.Close()

	log.Info("replay_started", "path", path)
	rd := bufio.NewReader(f)
	for {
		line, rerr := rd.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return stats, fmt.Errorf("read wal: %w", rerr)
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if line != "" {
			stats.Lines++
			replayLine(a, line, stats, log)
		}
		if rerr != nil {
			break
		}
	}

	stats.Duration = time.Since(start)
	log.Info("replay_completed",
		"lines", stats.Lines,
		"applied", stats.Applied,
		"malformed", stats.Malformed,
		"rejected", stats.Rejected,
		"relay_cursor", stats.RelayCursor,
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

func replayLine(a Applier, line string, stats *ReplayStats, log *slog.Logger) {
	cmd, err := Parse(line)
	if err != nil {
		stats.Malformed++
		log.Error("wal_replay_parse_error", "line", stats.Lines, "error", err)
		return
	}
	if seen, ok := cmd.(RelaySeen); ok {
		if seen.Root > stats.RelayCursor {
			stats.RelayCursor = seen.Root
		}
		stats.Applied++
		return
	}
	if err := apply(a, cmd); err != nil {
		stats.Rejected++
		log.Warn("wal_replay_apply_error", "line", stats.Lines, "op", cmd.Op(), "error", err)
		return
	}
	stats.Applied++
}

func apply(a Applier, cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case UserAdd:
		_, err = a.AddUser(c.ID, c.Name, c.Time)
	case ConversationAdd:
		_, err = a.AddConversation(c.ID, c.Title, c.Owner, c.Time, c.Control)
	case MessageAdd:
		_, err = a.AddMessage(c.ID, c.Author, c.Conversation, c.Body, c.Time)
	case AccessSet:
		err = a.SetAccess(c.User, c.Conversation, c.Flags)
	case DefaultSet:
		err = a.ChangeDefault(c.Conversation, c.Control)
	case UserDelete:
		err = a.DeleteUser(c.ID)
	case ConversationDelete:
		err = a.DeleteConversation(c.ID)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownOp, cmd.Op())
	}
	return err
}
