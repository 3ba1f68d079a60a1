package store

import (
	"testing"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

func TestUsersByName(t *testing.T) {
	s := New()
	first := &models.User{ID: 1, Name: "ann", Creation: time.Unix(1, 0)}
	second := &models.User{ID: 2, Name: "ann", Creation: time.Unix(2, 0)}
	s.AddUser(first)
	s.AddUser(second)

	if got := s.UserByName("ann"); got != first {
		t.Fatalf("by-name index should keep first user, got %+v", got)
	}
	s.RemoveUser(1)
	if got := s.UserByName("ann"); got != second {
		t.Fatalf("by-name index should fall back to remaining user, got %+v", got)
	}
	s.RemoveUser(2)
	if s.UserByName("ann") != nil {
		t.Fatalf("expected empty by-name slot")
	}
	if s.Counts().Users != 0 {
		t.Fatalf("expected no users, got %d", s.Counts().Users)
	}
}

func TestInUseAcrossKinds(t *testing.T) {
	s := New()
	s.AddUser(&models.User{ID: 1, Name: "u"})
	s.AddConversation(models.NewConversationHeader(2, 1, time.Time{}, "c", models.ControlPublic), &models.ConversationPayload{ID: 2})
	s.AddMessage(&models.Message{ID: 3, Author: 1})

	for _, id := range []ids.ID{1, 2, 3} {
		if !s.InUse(id) {
			t.Fatalf("InUse(%s) = false", id)
		}
	}
	if s.InUse(4) {
		t.Fatalf("InUse(4) = true")
	}

	s.RemoveConversation(2)
	if s.InUse(2) || s.Payload(2) != nil {
		t.Fatalf("conversation 2 still indexed")
	}
}

func TestListingOrderAndLookup(t *testing.T) {
	s := New()
	s.AddUser(&models.User{ID: 9, Name: "late", Creation: time.Unix(20, 0)})
	s.AddUser(&models.User{ID: 5, Name: "early", Creation: time.Unix(10, 0)})
	s.AddUser(&models.User{ID: 3, Name: "tie", Creation: time.Unix(20, 0)})

	users := s.Users()
	want := []ids.ID{5, 3, 9}
	for i, u := range users {
		if u.ID != want[i] {
			t.Fatalf("Users()[%d] = %s, want %s", i, u.ID, want[i])
		}
	}

	s.AddMessage(&models.Message{ID: 100})
	s.AddMessage(&models.Message{ID: 101})
	got := s.Messages([]ids.ID{101, 7, 100})
	if len(got) != 2 || got[0].ID != 101 || got[1].ID != 100 {
		t.Fatalf("Messages returned %+v", got)
	}
}
