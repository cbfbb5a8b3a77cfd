package domain

// Note represents a normalized unit of posted content. The body may be
// HTML-bearing; Content carries it as received.
type Note struct {
	Oid       string
	Name      string
	Summary   string
	Content   string
	URL       string
	Sensitive bool
	Via       string

	// FavoritedBy is the per-viewer favorited state, keyed implicitly by
	// the account actor the enclosing activity was fetched under.
	FavoritedBy TriState

	// InReplyTo is a partial (unfetched) activity placeholder when the
	// response only names the replied-to author and note.
	InReplyTo *Activity

	Audience    []Actor
	Attachments []Attachment
	Replies     []*Activity
}

func NoteFromOid(oid string) *Note {
	return &Note{Oid: oid}
}

func (n *Note) IsEmpty() bool {
	return n == nil || (n.Oid == "" && n.Content == "" && n.Name == "")
}

func (n *Note) NonEmpty() bool {
	return !n.IsEmpty()
}

// AddRecipient appends a recipient to the audience, skipping empties.
func (n *Note) AddRecipient(a Actor) {
	if a.IsEmpty() && !a.IsPublic() {
		return
	}
	n.Audience = append(n.Audience, a)
}

// HasAudience reports whether any recipient, public marker included,
// was addressed.
func (n *Note) HasAudience() bool {
	return n != nil && len(n.Audience) > 0
}

// FirstNonPublic returns the first concrete recipient, skipping public
// collection markers. EmptyActor when none.
func (n *Note) FirstNonPublic() Actor {
	if n == nil {
		return EmptyActor
	}
	for _, a := range n.Audience {
		if !a.IsPublic() {
			return a
		}
	}
	return EmptyActor
}

// IsReply reports whether the note carries a reply-to placeholder.
func (n *Note) IsReply() bool {
	return n != nil && n.InReplyTo != nil && !n.InReplyTo.IsEmpty()
}
