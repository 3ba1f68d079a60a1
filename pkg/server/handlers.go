package server

import (
	"time"

	"codeuchat/pkg/models"
	"codeuchat/pkg/wal"
	"codeuchat/pkg/wire"
)

func (s *Server) routes() map[wire.Code]handler {
	return map[wire.Code]handler{
		wire.ServerInfoRequest:           s.serverInfo,
		wire.NewMessageRequest:           s.newMessage,
		wire.NewUserRequest:              s.newUser,
		wire.NewConversationRequest:      s.newConversation,
		wire.GetUsersRequest:             s.getUsers,
		wire.GetAllConversationsRequest:  s.getConversations,
		wire.GetConversationsByIDRequest: s.getPayloads,
		wire.GetMessagesByIDRequest:      s.getMessages,
		wire.ChangeDefaultRequest:        s.changeDefault,
		wire.DeleteConversationRequest:   s.deleteConversation,
		wire.CheckMemberRequest:          s.checkAccess(models.KindMember),
		wire.CheckOwnerRequest:           s.checkAccess(models.KindOwner),
		wire.CheckCreatorRequest:         s.checkAccess(models.KindCreator),
		wire.CheckRemovedRequest:         s.checkAccess(models.KindRemoved),
		wire.RetrieveDefaultRequest:      s.retrieveDefault,
		wire.ChangeAccessRequest:         s.changeAccess,
		wire.DeleteUserRequest:           s.deleteUser,
	}
}

func (s *Server) rejected(code wire.Code, err error) {
	s.metrics.Rejected.WithLabelValues(code.String()).Inc()
	s.log.Info("request_rejected", "code", code.String(), "error", err)
}

func (s *Server) serverInfo(*wire.Reader) exec {
	return func(w *wire.Writer) {
		w.Code(wire.ServerInfoResponse)
		wire.WriteServerInfo(w, wire.ServerInfo{
			Version:   s.cfg.Version,
			ServerID:  s.cfg.ServerID,
			StartTime: s.start,
			Uptime:    time.Since(s.start),
		})
	}
}

func (s *Server) newUser(r *wire.Reader) exec {
	name := r.Text()
	return func(w *wire.Writer) {
		u, err := s.ctrl.NewUser(name)
		if err != nil {
			s.rejected(wire.NewUserRequest, err)
		} else {
			s.journal(wal.UserAdd{ID: u.ID, Time: u.Creation, Name: u.Name})
		}
		w.Code(wire.NewUserResponse)
		wire.WriteNullable(w, u, wire.WriteUser)
	}
}

func (s *Server) newConversation(r *wire.Reader) exec {
	title := r.Text()
	owner := r.ID()
	control := models.Control(r.Byte())
	return func(w *wire.Writer) {
		h, err := s.ctrl.NewConversation(title, owner, control)
		if err != nil {
			s.rejected(wire.NewConversationRequest, err)
		} else {
			s.journal(wal.ConversationAdd{ID: h.ID, Owner: h.Owner, Time: h.Creation, Control: h.Control, Title: h.Title})
		}
		w.Code(wire.NewConversationResponse)
		wire.WriteNullable(w, h, wire.WriteHeader)
	}
}

func (s *Server) newMessage(r *wire.Reader) exec {
	author := r.ID()
	conversation := r.ID()
	body := r.Text()
	return func(w *wire.Writer) {
		m, err := s.ctrl.NewMessage(author, conversation, body)
		if err != nil {
			s.rejected(wire.NewMessageRequest, err)
		} else {
			s.journal(wal.MessageAdd{ID: m.ID, Author: m.Author, Conversation: conversation, Time: m.Creation, Body: m.Content})
			mid := m.ID
			s.tl.ScheduleNow(func() { s.push(author, conversation, mid) })
		}
		w.Code(wire.NewMessageResponse)
		wire.WriteNullable(w, m, wire.WriteMessage)
	}
}

func (s *Server) getUsers(*wire.Reader) exec {
	return func(w *wire.Writer) {
		w.Code(wire.GetUsersResponse)
		wire.WriteList(w, s.ctrl.Store().Users(), writeUserRef)
	}
}

func (s *Server) getConversations(*wire.Reader) exec {
	return func(w *wire.Writer) {
		w.Code(wire.GetAllConversationsResponse)
		wire.WriteList(w, s.ctrl.Store().Conversations(), writeHeaderRef)
	}
}

func (s *Server) getPayloads(r *wire.Reader) exec {
	list := wire.ReadList(r, wire.ReadID)
	return func(w *wire.Writer) {
		w.Code(wire.GetConversationsByIDResponse)
		wire.WriteList(w, s.ctrl.Store().Payloads(list), writePayloadRef)
	}
}

func (s *Server) getMessages(r *wire.Reader) exec {
	list := wire.ReadList(r, wire.ReadID)
	return func(w *wire.Writer) {
		w.Code(wire.GetMessagesByIDResponse)
		wire.WriteList(w, s.ctrl.Store().Messages(list), writeMessageRef)
	}
}

func (s *Server) changeDefault(r *wire.Reader) exec {
	conversation := r.ID()
	control := models.Control(r.Byte())
	return func(w *wire.Writer) {
		err := s.ctrl.ChangeDefault(conversation, control)
		if err != nil {
			s.rejected(wire.ChangeDefaultRequest, err)
		} else {
			s.journal(wal.DefaultSet{Conversation: conversation, Control: control})
		}
		w.Code(wire.ChangeDefaultResponse)
		w.Bool(err == nil)
	}
}

func (s *Server) deleteConversation(r *wire.Reader) exec {
	id := r.ID()
	return func(w *wire.Writer) {
		err := s.ctrl.DeleteConversation(id)
		if err != nil {
			s.rejected(wire.DeleteConversationRequest, err)
		} else {
			s.journal(wal.ConversationDelete{ID: id})
		}
		w.Code(wire.DeleteConversationResponse)
		w.Bool(err == nil)
	}
}

func (s *Server) deleteUser(r *wire.Reader) exec {
	id := r.ID()
	return func(w *wire.Writer) {
		err := s.ctrl.DeleteUser(id)
		if err != nil {
			s.rejected(wire.DeleteUserRequest, err)
		} else {
			s.journal(wal.UserDelete{ID: id})
		}
		w.Code(wire.DeleteUserResponse)
		w.Bool(err == nil)
	}
}

func (s *Server) checkAccess(kind models.Kind) handler {
	return func(r *wire.Reader) exec {
		user := r.ID()
		conversation := r.ID()
		return func(w *wire.Writer) {
			w.Code(wire.UserStatusResponse)
			w.Bool(s.ctrl.CheckAccess(user, conversation, kind))
		}
	}
}

func (s *Server) retrieveDefault(r *wire.Reader) exec {
	conversation := r.ID()
	return func(w *wire.Writer) {
		var out *byte
		if c, err := s.ctrl.GetDefault(conversation); err == nil {
			b := byte(c)
			out = &b
		}
		w.Code(wire.RetrieveDefaultResponse)
		wire.WriteNullable(w, out, wire.WriteByteValue)
	}
}

func (s *Server) changeAccess(r *wire.Reader) exec {
	username := r.Text()
	conversation := r.ID()
	flags := models.Access(r.Byte())
	return func(w *wire.Writer) {
		uid, err := s.ctrl.ChangeAccess(username, conversation, flags)
		if err != nil {
			s.rejected(wire.ChangeAccessRequest, err)
		} else {
			s.journal(wal.AccessSet{Conversation: conversation, User: uid, Flags: flags})
		}
		w.Code(wire.ChangeAccessResponse)
		w.Bool(err == nil)
	}
}

func writeUserRef(w *wire.Writer, u *models.User)                   { wire.WriteUser(w, *u) }
func writeHeaderRef(w *wire.Writer, h *models.ConversationHeader)   { wire.WriteHeader(w, *h) }
func writePayloadRef(w *wire.Writer, p *models.ConversationPayload) { wire.WritePayload(w, *p) }
func writeMessageRef(w *wire.Writer, m *models.Message)             { wire.WriteMessage(w, *m) }
