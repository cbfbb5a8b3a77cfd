package domain

import (
	"testing"
)

func TestActivityObjectTypeConstraints(t *testing.T) {
	cases := []struct {
		activityType ActivityType
		objectType   ObjectType
		allowed      bool
	}{
		{ActivityFollow, ObjectActor, true},
		{ActivityFollow, ObjectNote, false},
		{ActivityUndoFollow, ObjectActor, true},
		{ActivityLike, ObjectNote, true},
		{ActivityLike, ObjectActivity, true},
		{ActivityLike, ObjectActor, false},
		{ActivityAnnounce, ObjectNote, true},
		{ActivityAnnounce, ObjectActivity, true},
		{ActivityAnnounce, ObjectActor, false},
		{ActivityUpdate, ObjectNote, true},
		{ActivityUpdate, ObjectActor, false},
		{ActivityDelete, ObjectNote, true},
	}
	for _, c := range cases {
		if got := c.activityType.AllowsObject(c.objectType); got != c.allowed {
			t.Errorf("Expected %s.AllowsObject(%s) = %v, got %v",
				c.activityType, c.objectType, c.allowed, got)
		}
	}
}

func TestActivityObjectTypeDetection(t *testing.T) {
	account := Actor{Oid: "acct:me@example.org", Username: "me"}

	followActivity := NewActivity(account, ActivityFollow)
	followActivity.ObjActor = Actor{Oid: "acct:other@example.org", Username: "other"}
	if followActivity.ObjectType() != ObjectActor {
		t.Errorf("Expected ACTOR object, got %s", followActivity.ObjectType())
	}

	noteActivity := NewLoadedNote(account, "note-1", 1000)
	noteActivity.Note.Content = "hello"
	if noteActivity.ObjectType() != ObjectNote {
		t.Errorf("Expected NOTE object, got %s", noteActivity.ObjectType())
	}

	likeActivity := NewActivity(account, ActivityLike)
	likeActivity.SetWrapped(noteActivity)
	if likeActivity.ObjectType() != ObjectActivity {
		t.Errorf("Expected ACTIVITY object, got %s", likeActivity.ObjectType())
	}

	empty := NewActivity(account, ActivityEmpty)
	if empty.ObjectType() != ObjectEmpty {
		t.Errorf("Expected EMPTY object, got %s", empty.ObjectType())
	}
}

func TestGetNoteDescendsIntoWrapped(t *testing.T) {
	account := Actor{Oid: "acct:me@example.org", Username: "me"}
	inner := NewLoadedNote(account, "note-2", 2000)
	inner.Note.Content = "original"
	inner.Actor = Actor{Oid: "acct:author@example.org", Username: "author"}

	announce := NewActivity(account, ActivityAnnounce)
	announce.SetWrapped(inner)

	note := announce.GetNote()
	if note == nil || note.Content != "original" {
		t.Fatalf("Expected wrapped note content 'original', got %v", note)
	}
	if author := announce.Author(); author.Username != "author" {
		t.Errorf("Expected author 'author', got '%s'", author.Username)
	}
}

func TestNoteAudience(t *testing.T) {
	note := &Note{Oid: "note-3"}
	if note.HasAudience() {
		t.Error("Expected no audience on a fresh note")
	}

	note.AddRecipient(ActorFromOid("http://activityschema.org/collection/public"))
	note.AddRecipient(EmptyActor)
	note.AddRecipient(ActorFromOid("acct:friend@example.org"))

	if len(note.Audience) != 2 {
		t.Fatalf("Expected 2 recipients (empty one skipped), got %d", len(note.Audience))
	}
	first := note.FirstNonPublic()
	if first.Oid != "acct:friend@example.org" {
		t.Errorf("Expected first non-public recipient 'acct:friend@example.org', got '%s'", first.Oid)
	}
}

func TestTriState(t *testing.T) {
	if TriUnknown.Known() {
		t.Error("Expected unknown to not be known")
	}
	if !TriStateFromBool(true).ToBool(false) {
		t.Error("Expected true tri-state to coerce to true")
	}
	if TriStateFromBool(false).ToBool(true) {
		t.Error("Expected false tri-state to coerce to false")
	}
	if !TriUnknown.ToBool(true) {
		t.Error("Expected unknown to coerce to the substitute value")
	}
}

func TestActorHostAndUniqueName(t *testing.T) {
	actor := Actor{Oid: "acct:jpope@io.jpope.org", Username: "jpope", WebFingerID: "jpope@io.jpope.org"}
	if actor.Host() != "io.jpope.org" {
		t.Errorf("Expected host 'io.jpope.org', got '%s'", actor.Host())
	}
	if actor.UniqueName() != "jpope@io.jpope.org" {
		t.Errorf("Expected unique name 'jpope@io.jpope.org', got '%s'", actor.UniqueName())
	}
}
