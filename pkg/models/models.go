package models

import (
	"time"

	"codeuchat/pkg/ids"
)

// Control is the join policy of a conversation.
type Control byte

const (
	ControlPrivate Control = 0
	ControlPublic  Control = 1
)

func (c Control) String() string {
	if c == ControlPublic {
		return "public"
	}
	return "private"
}

// Access is a bit set of per-conversation roles for one user.
type Access byte

const (
	AccessMember  Access = 1
	AccessOwner   Access = 2
	AccessRemoved Access = 4
)

// Kind selects which role CheckAccess evaluates.
type Kind int

const (
	KindMember Kind = iota + 1
	KindOwner
	KindCreator
	KindRemoved
)

func (k Kind) String() string {
	switch k {
	case KindMember:
		return "member"
	case KindOwner:
		return "owner"
	case KindCreator:
		return "creator"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type User struct {
	ID       ids.ID    `json:"id"`
	Name     string    `json:"name"`
	Creation time.Time `json:"creation"`
}

// ConversationHeader describes a conversation and who may use it. Owner is
// the creator and is fixed at creation.
type ConversationHeader struct {
	ID       ids.ID    `json:"id"`
	Owner    ids.ID    `json:"owner"`
	Creation time.Time `json:"creation"`
	Title    string    `json:"title"`
	Control  Control   `json:"control"`

	owners  map[ids.ID]struct{}
	members map[ids.ID]struct{}
	removed map[ids.ID]struct{}
}

func NewConversationHeader(id, owner ids.ID, creation time.Time, title string, control Control) *ConversationHeader {
	return &ConversationHeader{
		ID:       id,
		Owner:    owner,
		Creation: creation,
		Title:    title,
		Control:  control,
		owners:   make(map[ids.ID]struct{}),
		members:  make(map[ids.ID]struct{}),
		removed:  make(map[ids.ID]struct{}),
	}
}

// Flags returns the explicit roles held by user.
func (h *ConversationHeader) Flags(user ids.ID) Access {
	var a Access
	if _, ok := h.members[user]; ok {
		a |= AccessMember
	}
	if _, ok := h.owners[user]; ok {
		a |= AccessOwner
	}
	if _, ok := h.removed[user]; ok {
		a |= AccessRemoved
	}
	return a
}

// SetFlags replaces the explicit roles of user. Removed wins over the other
// bits. The caller guarantees user is not the creator when Removed is set.
func (h *ConversationHeader) SetFlags(user ids.ID, a Access) {
	delete(h.members, user)
	delete(h.owners, user)
	delete(h.removed, user)
	if a&AccessRemoved != 0 {
		h.removed[user] = struct{}{}
		return
	}
	if a&AccessMember != 0 {
		h.members[user] = struct{}{}
	}
	if a&AccessOwner != 0 {
		h.owners[user] = struct{}{}
	}
}

func (h *ConversationHeader) IsCreator(user ids.ID) bool {
	return user == h.Owner
}

func (h *ConversationHeader) IsRemoved(user ids.ID) bool {
	_, ok := h.removed[user]
	return ok
}

func (h *ConversationHeader) IsOwner(user ids.ID) bool {
	_, ok := h.owners[user]
	return ok || h.IsCreator(user)
}

func (h *ConversationHeader) IsMember(user ids.ID) bool {
	if h.IsRemoved(user) {
		return false
	}
	if _, ok := h.members[user]; ok {
		return true
	}
	return h.IsOwner(user) || h.Control == ControlPublic
}

// Clone copies the header including its role sets.
func (h *ConversationHeader) Clone() *ConversationHeader {
	c := NewConversationHeader(h.ID, h.Owner, h.Creation, h.Title, h.Control)
	for k := range h.owners {
		c.owners[k] = struct{}{}
	}
	for k := range h.members {
		c.members[k] = struct{}{}
	}
	for k := range h.removed {
		c.removed[k] = struct{}{}
	}
	return c
}

// ConversationPayload points at the first and last message of a
// conversation.
type ConversationPayload struct {
	ID           ids.ID `json:"id"`
	FirstMessage ids.ID `json:"first_message"`
	LastMessage  ids.ID `json:"last_message"`
}

// Message is one entry of a conversation's linked log. Previous is kept for
// wire compatibility and always Null.
type Message struct {
	ID       ids.ID    `json:"id"`
	Previous ids.ID    `json:"previous"`
	Next     ids.ID    `json:"next"`
	Creation time.Time `json:"creation"`
	Author   ids.ID    `json:"author"`
	Content  string    `json:"content"`
}
