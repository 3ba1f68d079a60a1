package server

import (
	"context"
	"strings"

	"codeuchat/pkg/controller"
	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
	"codeuchat/pkg/relay"
	"codeuchat/pkg/wal"
	"codeuchat/pkg/wire"
)

// push snapshots a committed message on the timeline and publishes it from
// a separate goroutine.
func (s *Server) push(author, conversation, message ids.ID) {
	st := s.ctrl.Store()
	u, h, m := st.User(author), st.Conversation(conversation), st.Message(message)
	if u == nil || h == nil || m == nil {
		s.log.Warn("relay_push_skipped", "user", author, "conversation", conversation, "message", message)
		return
	}
	user := relay.Pack(u.ID, u.Name, u.Creation)
	conv := relay.Pack(h.ID, h.Title, h.Creation)
	msg := relay.Pack(m.ID, m.Content, m.Creation)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.RelayTimeout)
		defer cancel()
		if err := s.relay.Write(ctx, s.cfg.ServerID, s.cfg.Secret, user, conv, msg); err != nil {
			s.metrics.RelayPushes.WithLabelValues("error").Inc()
			s.log.Error("relay_write_failed", "message", msg.ID, "error", err)
			return
		}
		s.metrics.RelayPushes.WithLabelValues("ok").Inc()
		s.log.Debug("relay_write_ok", "message", msg.ID)
	}()
}

// pollTask fetches the next batch off the timeline. The apply step runs
// back on the timeline and schedules the next poll.
func (s *Server) pollTask() {
	if s.baseCtx.Err() != nil {
		return
	}
	root := s.lastSeen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.RelayTimeout)
		bundles, err := s.relay.Read(ctx, s.cfg.ServerID, s.cfg.Secret, root, s.cfg.RelayBatch)
		cancel()
		if err != nil {
			s.metrics.RelayPolls.WithLabelValues("error").Inc()
			s.log.Error("relay_read_failed", "root", root, "error", err)
			s.tl.ScheduleIn(s.cfg.RelayPoll, s.pollTask)
			return
		}
		s.metrics.RelayPolls.WithLabelValues("ok").Inc()
		s.tl.ScheduleNow(func() {
			s.Apply(bundles)
			s.tl.ScheduleIn(s.cfg.RelayPoll, s.pollTask)
		})
	}()
}

// Apply materializes every entity a bundle refers to that is not known
// locally, and advances the cursor. Known entities are left untouched. A
// moved cursor is journaled as R-SEEN so a restart resumes after it.
// Must run on the timeline.
func (s *Server) Apply(bundles []relay.Bundle) {
	prev := s.lastSeen
	for _, b := range bundles {
		if err := s.applyBundle(b); err != nil {
			s.log.Warn("relay_bundle_skipped", "bundle", b.ID, "team", b.Team, "error", err)
		}
		if b.ID > s.lastSeen {
			s.lastSeen = b.ID
		}
	}
	if s.lastSeen > prev {
		s.journal(wal.RelaySeen{Root: s.lastSeen})
	}
	if len(bundles) > 0 {
		s.log.Debug("relay_batch_applied", "count", len(bundles), "last_seen", s.lastSeen)
	}
}

// LastSeen returns the relay cursor. Must run on the timeline.
func (s *Server) LastSeen() ids.ID { return s.lastSeen }

func (s *Server) applyBundle(b relay.Bundle) error {
	for _, c := range []relay.Component{b.User, b.Conversation, b.Message} {
		if c.ID.IsNull() || len(c.Text) > wire.MaxString || strings.ContainsAny(c.Text, "\r\n") {
			return controller.ErrInvalidText
		}
	}
	st := s.ctrl.Store()
	author := b.User.ID

	if st.User(author) == nil {
		u, err := s.ctrl.AddUser(author, b.User.Text, b.User.Created())
		if err != nil {
			return err
		}
		s.journal(wal.UserAdd{ID: u.ID, Time: u.Creation, Name: u.Name})
		s.metrics.RelayIngested.WithLabelValues("user").Inc()
	}
	if st.Conversation(b.Conversation.ID) == nil {
		h, err := s.ctrl.AddConversation(b.Conversation.ID, b.Conversation.Text, author, b.Conversation.Created(), models.ControlPublic)
		if err != nil {
			return err
		}
		s.journal(wal.ConversationAdd{ID: h.ID, Owner: h.Owner, Time: h.Creation, Control: h.Control, Title: h.Title})
		s.metrics.RelayIngested.WithLabelValues("conversation").Inc()
	}
	if st.Message(b.Message.ID) == nil {
		m, err := s.ctrl.AddMessage(b.Message.ID, author, b.Conversation.ID, b.Message.Text, b.Message.Created())
		if err != nil {
			return err
		}
		s.journal(wal.MessageAdd{ID: m.ID, Author: m.Author, Conversation: b.Conversation.ID, Time: m.Creation, Body: m.Content})
		s.metrics.RelayIngested.WithLabelValues("message").Inc()
	}
	return nil
}
