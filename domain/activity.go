package domain

// ActivityType classifies a normalized event.
type ActivityType int

const (
	ActivityEmpty ActivityType = iota
	ActivityUpdate
	ActivityAnnounce
	ActivityUndoAnnounce
	ActivityLike
	ActivityUndoLike
	ActivityFollow
	ActivityUndoFollow
	ActivityDelete
)

func (t ActivityType) String() string {
	switch t {
	case ActivityUpdate:
		return "UPDATE"
	case ActivityAnnounce:
		return "ANNOUNCE"
	case ActivityUndoAnnounce:
		return "UNDO_ANNOUNCE"
	case ActivityLike:
		return "LIKE"
	case ActivityUndoLike:
		return "UNDO_LIKE"
	case ActivityFollow:
		return "FOLLOW"
	case ActivityUndoFollow:
		return "UNDO_FOLLOW"
	case ActivityDelete:
		return "DELETE"
	default:
		return "EMPTY"
	}
}

// ObjectType classifies what an activity acts upon.
type ObjectType int

const (
	ObjectEmpty ObjectType = iota
	ObjectNote
	ObjectActor
	ObjectActivity
)

func (o ObjectType) String() string {
	switch o {
	case ObjectNote:
		return "NOTE"
	case ObjectActor:
		return "ACTOR"
	case ObjectActivity:
		return "ACTIVITY"
	default:
		return "EMPTY"
	}
}

// Activity is the atomic normalized event: an acting Actor and an
// object that is a Note, an Actor, or a nested Activity. AccountActor
// is the account under which the data was fetched, needed for
// per-viewer state such as "favorited by me".
type Activity struct {
	Type         ActivityType
	Oid          string
	UpdatedDate  int64
	Actor        Actor
	AccountActor Actor

	Note     *Note
	ObjActor Actor
	Wrapped  *Activity
}

// NewActivity starts an activity of the given type fetched under
// accountActor.
func NewActivity(accountActor Actor, t ActivityType) *Activity {
	return &Activity{Type: t, AccountActor: accountActor}
}

// NewLoadedNote starts an UPDATE activity around a freshly parsed note.
func NewLoadedNote(accountActor Actor, noteOid string, updatedDate int64) *Activity {
	return &Activity{
		Type:         ActivityUpdate,
		Oid:          noteOid,
		UpdatedDate:  updatedDate,
		AccountActor: accountActor,
		Note:         NoteFromOid(noteOid),
	}
}

// NewPartialNote builds a placeholder for a note known only by its
// author and oid, to be fetched and resolved lazily by callers.
func NewPartialNote(accountActor, author Actor, noteOid string) *Activity {
	return &Activity{
		Type:         ActivityUpdate,
		Oid:          noteOid,
		AccountActor: accountActor,
		Actor:        author,
		Note:         NoteFromOid(noteOid),
	}
}

func (a *Activity) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Type == ActivityEmpty && a.Oid == "" && a.Note.IsEmpty() &&
		a.ObjActor.IsEmpty() && a.Wrapped.IsEmpty()
}

func (a *Activity) NonEmpty() bool {
	return !a.IsEmpty()
}

// ObjectType reports what kind of object the activity carries.
func (a *Activity) ObjectType() ObjectType {
	switch {
	case a == nil:
		return ObjectEmpty
	case a.ObjActor.NonEmpty():
		return ObjectActor
	case a.Note.NonEmpty():
		return ObjectNote
	case a.Wrapped.NonEmpty():
		return ObjectActivity
	default:
		return ObjectEmpty
	}
}

// GetNote resolves the carried note, descending into a wrapped
// activity when the object is itself an activity.
func (a *Activity) GetNote() *Note {
	if a == nil {
		return nil
	}
	if a.Note.NonEmpty() || a.Wrapped == nil {
		return a.Note
	}
	return a.Wrapped.GetNote()
}

// Author is the creator of the carried note: the wrapped activity's
// actor for reblogs and likes, this activity's actor otherwise.
func (a *Activity) Author() Actor {
	if a == nil {
		return EmptyActor
	}
	if a.Wrapped.NonEmpty() {
		return a.Wrapped.Author()
	}
	return a.Actor
}

// SetWrapped sets a nested activity as the object.
func (a *Activity) SetWrapped(inner *Activity) {
	a.Wrapped = inner
}

// AddAttachment appends an attachment to the carried note, creating
// the note if needed.
func (a *Activity) AddAttachment(att Attachment) {
	if !att.IsValid() {
		return
	}
	if a.Note == nil {
		a.Note = &Note{}
	}
	a.Note.Attachments = append(a.Note.Attachments, att)
}

// AllowsObject states the co-constraint between activity type and
// object type: FOLLOW acts on an actor, LIKE and ANNOUNCE on a note or
// a note-bearing activity, UPDATE and DELETE on a note.
func (t ActivityType) AllowsObject(o ObjectType) bool {
	switch t {
	case ActivityFollow, ActivityUndoFollow:
		return o == ObjectActor
	case ActivityLike, ActivityUndoLike, ActivityAnnounce, ActivityUndoAnnounce:
		return o == ObjectNote || o == ObjectActivity
	case ActivityUpdate, ActivityDelete:
		return o == ObjectNote
	default:
		return true
	}
}
