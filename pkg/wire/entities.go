package wire

import (
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

// ServerInfo answers ServerInfoRequest.
type ServerInfo struct {
	Version   string
	ServerID  ids.ID
	StartTime time.Time
	Uptime    time.Duration
}

func WriteServerInfo(w *Writer, s ServerInfo) {
	w.Text(s.Version)
	w.ID(s.ServerID)
	w.Time(s.StartTime)
	w.Int64(s.Uptime.Milliseconds())
}

func ReadServerInfo(r *Reader) ServerInfo {
	return ServerInfo{
		Version:   r.Text(),
		ServerID:  r.ID(),
		StartTime: r.Time(),
		Uptime:    time.Duration(r.Int64()) * time.Millisecond,
	}
}

func WriteUser(w *Writer, u models.User) {
	w.ID(u.ID)
	w.Text(u.Name)
	w.Time(u.Creation)
}

func ReadUser(r *Reader) models.User {
	return models.User{ID: r.ID(), Name: r.Text(), Creation: r.Time()}
}

// Headers travel without their role sets; roles are queried with the
// check requests.
func WriteHeader(w *Writer, h models.ConversationHeader) {
	w.ID(h.ID)
	w.ID(h.Owner)
	w.Time(h.Creation)
	w.Text(h.Title)
	w.Byte(byte(h.Control))
}

func ReadHeader(r *Reader) models.ConversationHeader {
	id := r.ID()
	owner := r.ID()
	creation := r.Time()
	title := r.Text()
	control := models.Control(r.Byte())
	return *models.NewConversationHeader(id, owner, creation, title, control)
}

func WritePayload(w *Writer, p models.ConversationPayload) {
	w.ID(p.ID)
	w.ID(p.FirstMessage)
	w.ID(p.LastMessage)
}

func ReadPayload(r *Reader) models.ConversationPayload {
	return models.ConversationPayload{ID: r.ID(), FirstMessage: r.ID(), LastMessage: r.ID()}
}

func WriteMessage(w *Writer, m models.Message) {
	w.ID(m.ID)
	w.ID(m.Previous)
	w.ID(m.Next)
	w.Time(m.Creation)
	w.ID(m.Author)
	w.Text(m.Content)
}

func ReadMessage(r *Reader) models.Message {
	return models.Message{
		ID:       r.ID(),
		Previous: r.ID(),
		Next:     r.ID(),
		Creation: r.Time(),
		Author:   r.ID(),
		Content:  r.Text(),
	}
}
