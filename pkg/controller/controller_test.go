package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/logger"
	"codeuchat/pkg/models"
	"codeuchat/pkg/store"
)

// scripted replays a fixed list of candidates, then counts up from next.
type scripted struct {
	queue []ids.ID
	next  ids.ID
}

func (s *scripted) Make() ids.ID {
	if len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		return id
	}
	s.next++
	return s.next
}

func newTestController(gen ids.Generator) *Controller {
	clock := time.Unix(1500000000, 0)
	return New(store.New(), gen, logger.Discard(), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
}

func TestExampleScenario(t *testing.T) {
	c := newTestController(ids.NewSequential(1))

	a, err := c.NewUser("A")
	require.NoError(t, err)
	general, err := c.NewConversation("General", a.ID, models.ControlPrivate)
	require.NoError(t, err)
	b, err := c.NewUser("B")
	require.NoError(t, err)

	_, err = c.NewMessage(b.ID, general.ID, "too early")
	require.ErrorIs(t, err, ErrNotMember)

	uid, err := c.ChangeAccess("B", general.ID, models.AccessMember)
	require.NoError(t, err)
	assert.Equal(t, b.ID, uid)

	m, err := c.NewMessage(b.ID, general.ID, "hello")
	require.NoError(t, err)

	p := c.Store().Payload(general.ID)
	assert.Equal(t, m.ID, p.FirstMessage)
	assert.Equal(t, m.ID, p.LastMessage)
	assert.Equal(t, b.ID, m.Author)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, ids.Null, m.Previous)
}

func TestMessageChainIntegrity(t *testing.T) {
	c := newTestController(ids.NewSequential(1))
	u, _ := c.NewUser("u")
	conv, _ := c.NewConversation("one", u.ID, models.ControlPublic)
	other, _ := c.NewConversation("two", u.ID, models.ControlPublic)

	const n = 12
	mine := make(map[ids.ID]bool)
	for i := 0; i < n; i++ {
		m, err := c.NewMessage(u.ID, conv.ID, "m")
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		mine[m.ID] = true
		if _, err := c.NewMessage(u.ID, other.ID, "noise"); err != nil {
			t.Fatalf("NewMessage other: %v", err)
		}
	}

	p := c.Store().Payload(conv.ID)
	steps := 0
	cur := c.Store().Message(p.FirstMessage)
	for cur.ID != p.LastMessage {
		if !mine[cur.ID] {
			t.Fatalf("reached foreign message %s", cur.ID)
		}
		cur = c.Store().Message(cur.Next)
		if cur == nil {
			t.Fatalf("chain broken after %d steps", steps)
		}
		steps++
	}
	if steps != n-1 {
		t.Fatalf("walked %d steps, want %d", steps, n-1)
	}
	if !cur.Next.IsNull() {
		t.Fatalf("last message has next %s", cur.Next)
	}
}

func TestUniquenessAcrossKinds(t *testing.T) {
	// every kind of entity is offered id 1 again before a fresh one
	gen := &scripted{queue: []ids.ID{1, 1, 1, 2, 2, 3, 0, 1, 2, 3}, next: 3}
	c := newTestController(gen)

	u, err := c.NewUser("u")
	require.NoError(t, err)
	conv, err := c.NewConversation("c", u.ID, models.ControlPublic)
	require.NoError(t, err)
	m, err := c.NewMessage(u.ID, conv.ID, "x")
	require.NoError(t, err)
	v, err := c.NewUser("v")
	require.NoError(t, err)

	seen := map[ids.ID]string{}
	for kind, id := range map[string]ids.ID{"user": u.ID, "conversation": conv.ID, "message": m.ID, "user2": v.ID} {
		if id.IsNull() {
			t.Fatalf("%s got null id", kind)
		}
		if prev, ok := seen[id]; ok {
			t.Fatalf("%s and %s share id %s", prev, kind, id)
		}
		seen[id] = kind
	}
}

func TestCreatorAccessInvariant(t *testing.T) {
	for _, control := range []models.Control{models.ControlPrivate, models.ControlPublic} {
		c := newTestController(ids.NewSequential(1))
		owner, _ := c.NewUser("owner")
		conv, _ := c.NewConversation("c", owner.ID, control)

		_, err := c.ChangeAccess("owner", conv.ID, models.AccessRemoved)
		require.ErrorIs(t, err, ErrCreatorImmutable)

		assert.True(t, c.CheckAccess(owner.ID, conv.ID, models.KindOwner))
		assert.True(t, c.CheckAccess(owner.ID, conv.ID, models.KindMember))
		assert.True(t, c.CheckAccess(owner.ID, conv.ID, models.KindCreator))
		assert.False(t, c.CheckAccess(owner.ID, conv.ID, models.KindRemoved))
	}
}

func TestAccessByControl(t *testing.T) {
	c := newTestController(ids.NewSequential(1))
	owner, _ := c.NewUser("owner")
	guest, _ := c.NewUser("guest")
	private, _ := c.NewConversation("private", owner.ID, models.ControlPrivate)
	public, _ := c.NewConversation("public", owner.ID, models.ControlPublic)

	assert.False(t, c.CheckAccess(guest.ID, private.ID, models.KindMember))
	assert.True(t, c.CheckAccess(guest.ID, public.ID, models.KindMember))
	assert.False(t, c.CheckAccess(guest.ID, public.ID, models.KindOwner))

	_, err := c.ChangeAccess("guest", public.ID, models.AccessRemoved)
	require.NoError(t, err)
	assert.False(t, c.CheckAccess(guest.ID, public.ID, models.KindMember))
	assert.True(t, c.CheckAccess(guest.ID, public.ID, models.KindRemoved))
	_, err = c.NewMessage(guest.ID, public.ID, "let me in")
	require.ErrorIs(t, err, ErrNotMember)

	// changes on one conversation do not leak into another
	assert.False(t, c.CheckAccess(guest.ID, private.ID, models.KindRemoved))

	assert.False(t, c.CheckAccess(owner.ID, public.ID, models.Kind(99)))
	assert.False(t, c.CheckAccess(owner.ID, 12345, models.KindMember))
}

func TestDefaultControl(t *testing.T) {
	c := newTestController(ids.NewSequential(1))
	owner, _ := c.NewUser("owner")
	guest, _ := c.NewUser("guest")
	conv, _ := c.NewConversation("c", owner.ID, models.ControlPrivate)

	got, err := c.GetDefault(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ControlPrivate, got)

	require.NoError(t, c.ChangeDefault(conv.ID, models.ControlPublic))
	assert.True(t, c.CheckAccess(guest.ID, conv.ID, models.KindMember))

	require.ErrorIs(t, c.ChangeDefault(conv.ID, models.Control(7)), ErrInvalidControl)
	require.ErrorIs(t, c.ChangeDefault(999, models.ControlPublic), ErrUnknownConversation)
	_, err = c.GetDefault(999)
	require.ErrorIs(t, err, ErrUnknownConversation)
}

func TestValidationFailures(t *testing.T) {
	c := newTestController(ids.NewSequential(1))
	u, _ := c.NewUser("u")
	conv, _ := c.NewConversation("c", u.ID, models.ControlPublic)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"empty name", func() error { _, err := c.NewUser(""); return err }, ErrInvalidText},
		{"multiline name", func() error { _, err := c.NewUser("a\nb"); return err }, ErrInvalidText},
		{"unknown owner", func() error { _, err := c.NewConversation("t", 999, models.ControlPublic); return err }, ErrUnknownUser},
		{"unknown author", func() error { _, err := c.NewMessage(999, conv.ID, "x"); return err }, ErrUnknownUser},
		{"unknown conversation", func() error { _, err := c.NewMessage(u.ID, 999, "x"); return err }, ErrUnknownConversation},
		{"multiline body", func() error { _, err := c.NewMessage(u.ID, conv.ID, "x\r\ny"); return err }, ErrInvalidText},
		{"access unknown user", func() error { _, err := c.ChangeAccess("nobody", conv.ID, models.AccessMember); return err }, ErrUnknownUser},
		{"delete unknown user", func() error { return c.DeleteUser(999) }, ErrUnknownUser},
		{"delete unknown conversation", func() error { return c.DeleteConversation(999) }, ErrUnknownConversation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
	if got := c.Store().Counts(); got.Users != 1 || got.Conversations != 1 || got.Messages != 0 {
		t.Fatalf("failed operations changed the store: %+v", got)
	}
}

func TestDeletes(t *testing.T) {
	c := newTestController(ids.NewSequential(1))
	u, _ := c.NewUser("u")
	conv, _ := c.NewConversation("c", u.ID, models.ControlPublic)

	require.NoError(t, c.DeleteConversation(conv.ID))
	assert.Nil(t, c.Store().Conversation(conv.ID))
	assert.Nil(t, c.Store().Payload(conv.ID))

	require.NoError(t, c.DeleteUser(u.ID))
	assert.Nil(t, c.Store().User(u.ID))
	assert.Nil(t, c.Store().UserByName("u"))
}

func TestRawIsIdempotentAndVerbatim(t *testing.T) {
	c := newTestController(ids.NewSequential(1000))
	at := time.UnixMilli(1499999999123)

	u, err := c.AddUser(7, "seven", at)
	require.NoError(t, err)
	again, err := c.AddUser(7, "other name", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Same(t, u, again)
	assert.Equal(t, "seven", again.Name)

	h, err := c.AddConversation(8, "eight", 7, at, models.ControlPrivate)
	require.NoError(t, err)
	assert.Equal(t, at, h.Creation)

	// raw messages skip the membership check
	m, err := c.AddMessage(9, 7, 8, "body with  spaces", at)
	require.NoError(t, err)
	_, err = c.AddMessage(9, 7, 8, "body with  spaces", at)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Store().Counts().Messages)
	assert.Equal(t, ids.ID(9), c.Store().Payload(8).LastMessage)
	assert.Equal(t, at, m.Creation)

	_, err = c.AddConversation(7, "clash", 7, at, models.ControlPublic)
	require.ErrorIs(t, err, ErrIDInUse)
	_, err = c.AddMessage(10, 7, 404, "x", at)
	require.ErrorIs(t, err, ErrUnknownConversation)
}
