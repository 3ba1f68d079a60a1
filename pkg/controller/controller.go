// Package controller validates and applies every change to the store and
// owns the conversation access rules.
package controller

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
	"codeuchat/pkg/store"
)

var (
	ErrUnknownUser         = errors.New("unknown user")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrNotMember           = errors.New("author is not a member of the conversation")
	ErrCreatorImmutable    = errors.New("conversation creator cannot be removed")
	ErrInvalidText         = errors.New("text must be non-empty and contain no line breaks")
	ErrInvalidControl      = errors.New("invalid default control")
	ErrIDInUse             = errors.New("id already used by another kind of entity")
)

// Basic is the client-facing set of operations.
type Basic interface {
	NewUser(name string) (*models.User, error)
	NewConversation(title string, owner ids.ID, control models.Control) (*models.ConversationHeader, error)
	NewMessage(author, conversation ids.ID, body string) (*models.Message, error)
	DeleteUser(id ids.ID) error
	DeleteConversation(id ids.ID) error
	ChangeDefault(conversation ids.ID, control models.Control) error
	GetDefault(conversation ids.ID) (models.Control, error)
	ChangeAccess(username string, conversation ids.ID, flags models.Access) (ids.ID, error)
	CheckAccess(user, conversation ids.ID, kind models.Kind) bool
}

// Raw adds the administrative operations used by log replay and relay
// ingestion. They take ids and times verbatim and are no-ops when the id
// already exists.
type Raw interface {
	Basic
	AddUser(id ids.ID, name string, creation time.Time) (*models.User, error)
	AddConversation(id ids.ID, title string, owner ids.ID, creation time.Time, control models.Control) (*models.ConversationHeader, error)
	AddMessage(id, author, conversation ids.ID, body string, creation time.Time) (*models.Message, error)
	SetAccess(user, conversation ids.ID, flags models.Access) error
}

type Controller struct {
	store *store.Store
	gen   ids.Generator
	log   *slog.Logger
	now   func() time.Time
}

var _ Raw = (*Controller)(nil)

type Option func(*Controller)

// WithClock overrides the time source used for new entities.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(s *store.Store, gen ids.Generator, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{store: s, gen: gen, log: log, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Store() *store.Store { return c.store }

// newID asks the generator until it yields an id unused by any entity kind.
// A generator whose range is exhausted, or that keeps returning taken ids,
// makes this loop forever.
func (c *Controller) newID() ids.ID {
	for {
		id := c.gen.Make()
		if !id.IsNull() && !c.store.InUse(id) {
			return id
		}
	}
}

// stamp truncates to millisecond precision, which is what the log and the
// wire keep.
func (c *Controller) stamp() time.Time {
	return c.now().Truncate(time.Millisecond)
}

func validText(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\r\n")
}

func (c *Controller) NewUser(name string) (*models.User, error) {
	if !validText(name) {
		c.log.Warn("user_rejected", "name", name, "error", ErrInvalidText)
		return nil, ErrInvalidText
	}
	u := &models.User{ID: c.newID(), Name: name, Creation: c.stamp()}
	c.store.AddUser(u)
	c.log.Info("user_created", "id", u.ID, "name", u.Name, "time", u.Creation)
	return u, nil
}

func (c *Controller) NewConversation(title string, owner ids.ID, control models.Control) (*models.ConversationHeader, error) {
	if !validText(title) {
		c.log.Warn("conversation_rejected", "title", title, "error", ErrInvalidText)
		return nil, ErrInvalidText
	}
	if control != models.ControlPrivate && control != models.ControlPublic {
		return nil, ErrInvalidControl
	}
	if c.store.User(owner) == nil {
		c.log.Warn("conversation_rejected", "title", title, "owner", owner, "error", ErrUnknownUser)
		return nil, ErrUnknownUser
	}
	h := c.addConversation(c.newID(), title, owner, c.stamp(), control)
	return h, nil
}

func (c *Controller) addConversation(id ids.ID, title string, owner ids.ID, creation time.Time, control models.Control) *models.ConversationHeader {
	h := models.NewConversationHeader(id, owner, creation, title, control)
	c.store.AddConversation(h, &models.ConversationPayload{ID: id})
	c.log.Info("conversation_created", "id", h.ID, "owner", h.Owner, "title", h.Title, "control", h.Control.String(), "time", h.Creation)
	return h
}

// NewMessage appends body to the conversation on behalf of author, who must
// pass the Member check.
func (c *Controller) NewMessage(author, conversation ids.ID, body string) (*models.Message, error) {
	if strings.ContainsAny(body, "\r\n") {
		c.log.Warn("message_rejected", "author", author, "conversation", conversation, "error", ErrInvalidText)
		return nil, ErrInvalidText
	}
	if err := c.checkRefs(author, conversation); err != nil {
		c.log.Warn("message_rejected", "author", author, "conversation", conversation, "error", err)
		return nil, err
	}
	if !c.store.Conversation(conversation).IsMember(author) {
		c.log.Warn("message_rejected", "author", author, "conversation", conversation, "error", ErrNotMember)
		return nil, ErrNotMember
	}
	return c.appendMessage(c.newID(), author, conversation, body, c.stamp()), nil
}

func (c *Controller) checkRefs(author, conversation ids.ID) error {
	if c.store.User(author) == nil {
		return ErrUnknownUser
	}
	if c.store.Conversation(conversation) == nil || c.store.Payload(conversation) == nil {
		return ErrUnknownConversation
	}
	return nil
}

// appendMessage links a new message after the conversation's last one.
func (c *Controller) appendMessage(id, author, conversation ids.ID, body string, creation time.Time) *models.Message {
	m := &models.Message{ID: id, Creation: creation, Author: author, Content: body}
	p := c.store.Payload(conversation)
	if last := c.store.Message(p.LastMessage); last != nil {
		last.Next = m.ID
	}
	c.store.AddMessage(m)
	if p.FirstMessage.IsNull() {
		p.FirstMessage = m.ID
	}
	p.LastMessage = m.ID
	c.log.Info("message_created", "id", m.ID, "author", m.Author, "conversation", conversation, "time", m.Creation)
	return m
}

func (c *Controller) DeleteUser(id ids.ID) error {
	if c.store.User(id) == nil {
		c.log.Warn("user_delete_rejected", "id", id, "error", ErrUnknownUser)
		return ErrUnknownUser
	}
	c.store.RemoveUser(id)
	c.log.Info("user_deleted", "id", id)
	return nil
}

func (c *Controller) DeleteConversation(id ids.ID) error {
	if c.store.Conversation(id) == nil {
		c.log.Warn("conversation_delete_rejected", "id", id, "error", ErrUnknownConversation)
		return ErrUnknownConversation
	}
	c.store.RemoveConversation(id)
	c.log.Info("conversation_deleted", "id", id)
	return nil
}

func (c *Controller) ChangeDefault(conversation ids.ID, control models.Control) error {
	if control != models.ControlPrivate && control != models.ControlPublic {
		return ErrInvalidControl
	}
	h := c.store.Conversation(conversation)
	if h == nil {
		return ErrUnknownConversation
	}
	h.Control = control
	c.log.Info("default_changed", "conversation", conversation, "control", control.String())
	return nil
}

func (c *Controller) GetDefault(conversation ids.ID) (models.Control, error) {
	h := c.store.Conversation(conversation)
	if h == nil {
		return 0, ErrUnknownConversation
	}
	return h.Control, nil
}

// ChangeAccess replaces the explicit roles of the named user on one
// conversation and returns that user's id.
func (c *Controller) ChangeAccess(username string, conversation ids.ID, flags models.Access) (ids.ID, error) {
	u := c.store.UserByName(username)
	if u == nil {
		c.log.Warn("access_rejected", "user", username, "conversation", conversation, "error", ErrUnknownUser)
		return ids.Null, ErrUnknownUser
	}
	if err := c.SetAccess(u.ID, conversation, flags); err != nil {
		c.log.Warn("access_rejected", "user", username, "conversation", conversation, "error", err)
		return ids.Null, err
	}
	return u.ID, nil
}

func (c *Controller) SetAccess(user, conversation ids.ID, flags models.Access) error {
	h := c.store.Conversation(conversation)
	if h == nil {
		return ErrUnknownConversation
	}
	if flags&models.AccessRemoved != 0 && h.IsCreator(user) {
		return ErrCreatorImmutable
	}
	h.SetFlags(user, flags)
	c.log.Info("access_changed", "user", user, "conversation", conversation, "flags", int(flags))
	return nil
}

// CheckAccess evaluates one role. Unknown conversations and unknown kinds
// yield false.
func (c *Controller) CheckAccess(user, conversation ids.ID, kind models.Kind) bool {
	h := c.store.Conversation(conversation)
	if h == nil {
		return false
	}
	switch kind {
	case models.KindMember:
		return h.IsMember(user)
	case models.KindOwner:
		return h.IsOwner(user)
	case models.KindCreator:
		return h.IsCreator(user)
	case models.KindRemoved:
		return h.IsRemoved(user)
	default:
		return false
	}
}

func (c *Controller) AddUser(id ids.ID, name string, creation time.Time) (*models.User, error) {
	if u := c.store.User(id); u != nil {
		return u, nil
	}
	if id.IsNull() || c.store.InUse(id) {
		return nil, ErrIDInUse
	}
	u := &models.User{ID: id, Name: name, Creation: creation}
	c.store.AddUser(u)
	c.log.Info("user_added", "id", u.ID, "name", u.Name, "time", u.Creation)
	return u, nil
}

func (c *Controller) AddConversation(id ids.ID, title string, owner ids.ID, creation time.Time, control models.Control) (*models.ConversationHeader, error) {
	if h := c.store.Conversation(id); h != nil {
		return h, nil
	}
	if id.IsNull() || c.store.InUse(id) {
		return nil, ErrIDInUse
	}
	if c.store.User(owner) == nil {
		return nil, ErrUnknownUser
	}
	return c.addConversation(id, title, owner, creation, control), nil
}

// AddMessage appends through the same path as NewMessage without the
// membership check.
func (c *Controller) AddMessage(id, author, conversation ids.ID, body string, creation time.Time) (*models.Message, error) {
	if m := c.store.Message(id); m != nil {
		return m, nil
	}
	if id.IsNull() || c.store.InUse(id) {
		return nil, ErrIDInUse
	}
	if err := c.checkRefs(author, conversation); err != nil {
		return nil, err
	}
	return c.appendMessage(id, author, conversation, body, creation), nil
}
