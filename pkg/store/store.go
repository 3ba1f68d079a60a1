// Package store holds every entity in memory, indexed by id.
//
// Store has no locks. All reads and writes happen on the timeline worker,
// which is the only writer in the process.
package store

import (
	"sort"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

type Store struct {
	users    map[ids.ID]*models.User
	byName   map[string]*models.User
	headers  map[ids.ID]*models.ConversationHeader
	payloads map[ids.ID]*models.ConversationPayload
	messages map[ids.ID]*models.Message
}

func New() *Store {
	return &Store{
		users:    make(map[ids.ID]*models.User),
		byName:   make(map[string]*models.User),
		headers:  make(map[ids.ID]*models.ConversationHeader),
		payloads: make(map[ids.ID]*models.ConversationPayload),
		messages: make(map[ids.ID]*models.Message),
	}
}

// Counts reports the size of each index.
type Counts struct {
	Users         int
	Conversations int
	Messages      int
}

func (s *Store) Counts() Counts {
	return Counts{Users: len(s.users), Conversations: len(s.headers), Messages: len(s.messages)}
}

// InUse reports whether id names a user, conversation or message.
func (s *Store) InUse(id ids.ID) bool {
	if _, ok := s.users[id]; ok {
		return true
	}
	if _, ok := s.headers[id]; ok {
		return true
	}
	_, ok := s.messages[id]
	return ok
}

// AddUser indexes u. When two users share a name the first one keeps the
// by-name slot.
func (s *Store) AddUser(u *models.User) {
	s.users[u.ID] = u
	if _, ok := s.byName[u.Name]; !ok {
		s.byName[u.Name] = u
	}
}

func (s *Store) RemoveUser(id ids.ID) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.users, id)
	if cur := s.byName[u.Name]; cur != nil && cur.ID == id {
		delete(s.byName, u.Name)
		for _, other := range s.Users() {
			if other.Name == u.Name {
				s.byName[u.Name] = other
				break
			}
		}
	}
}

func (s *Store) User(id ids.ID) *models.User {
	return s.users[id]
}

func (s *Store) UserByName(name string) *models.User {
	return s.byName[name]
}

// Users returns all users ordered by creation time, then id.
func (s *Store) Users() []*models.User {
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Creation.Equal(out[j].Creation) {
			return out[i].Creation.Before(out[j].Creation)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) AddConversation(h *models.ConversationHeader, p *models.ConversationPayload) {
	s.headers[h.ID] = h
	s.payloads[p.ID] = p
}

// RemoveConversation drops the header and payload. Messages stay indexed.
func (s *Store) RemoveConversation(id ids.ID) {
	delete(s.headers, id)
	delete(s.payloads, id)
}

func (s *Store) Conversation(id ids.ID) *models.ConversationHeader {
	return s.headers[id]
}

func (s *Store) Payload(id ids.ID) *models.ConversationPayload {
	return s.payloads[id]
}

// Conversations returns all headers ordered by creation time, then id.
func (s *Store) Conversations() []*models.ConversationHeader {
	out := make([]*models.ConversationHeader, 0, len(s.headers))
	for _, h := range s.headers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Creation.Equal(out[j].Creation) {
			return out[i].Creation.Before(out[j].Creation)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Payloads resolves ids in order, skipping unknown ones.
func (s *Store) Payloads(list []ids.ID) []*models.ConversationPayload {
	out := make([]*models.ConversationPayload, 0, len(list))
	for _, id := range list {
		if p, ok := s.payloads[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) AddMessage(m *models.Message) {
	s.messages[m.ID] = m
}

func (s *Store) Message(id ids.ID) *models.Message {
	return s.messages[id]
}

// Messages resolves ids in order, skipping unknown ones.
func (s *Store) Messages(list []ids.ID) []*models.Message {
	out := make([]*models.Message, 0, len(list))
	for _, id := range list {
		if m, ok := s.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
