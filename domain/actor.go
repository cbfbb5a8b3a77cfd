package domain

import (
	"strings"
)

// ActorEndpointType keys the per-actor endpoint URLs a backend exposes.
type ActorEndpointType int

const (
	EndpointEmpty ActorEndpointType = iota
	EndpointAPIProfile
	EndpointAPIInbox
	EndpointAPIOutbox
	EndpointAPIFollowing
	EndpointAPIFollowers
	EndpointAPILiked
	EndpointAPIUpload
	EndpointBanner
)

// Actor represents a normalized identity on a remote service.
type Actor struct {
	Oid         string
	Username    string
	RealName    string
	WebFingerID string
	Summary     string
	Location    string
	Homepage    string
	ProfileURL  string
	AvatarURL   string
	Endpoints   map[ActorEndpointType]string

	NotesCount     int64
	FavoritesCount int64
	FollowingCount int64
	FollowersCount int64

	CreatedDate int64
	UpdatedDate int64

	IsMyFriend TriState
}

// EmptyActor is the canonical absent value: no oid and no username.
var EmptyActor = Actor{}

func ActorFromOid(oid string) Actor {
	return Actor{Oid: oid}
}

// IsEmpty reports whether the actor is the canonical empty value and
// must never be dereferenced for identity.
func (a Actor) IsEmpty() bool {
	return a.Oid == "" && a.Username == ""
}

func (a Actor) NonEmpty() bool {
	return !a.IsEmpty()
}

// Host returns the actor's home host, derived from the webfinger id.
func (a Actor) Host() string {
	if idx := strings.LastIndex(a.WebFingerID, "@"); idx >= 0 {
		return a.WebFingerID[idx+1:]
	}
	return ""
}

// UniqueName is the user@host style portable identity string.
func (a Actor) UniqueName() string {
	if a.WebFingerID != "" {
		return a.WebFingerID
	}
	if host := a.Host(); host != "" {
		return a.Username + "@" + host
	}
	return a.Username
}

// SetEndpoint records an endpoint URL, ignoring empty values.
func (a *Actor) SetEndpoint(t ActorEndpointType, uri string) {
	if uri == "" {
		return
	}
	if a.Endpoints == nil {
		a.Endpoints = make(map[ActorEndpointType]string)
	}
	a.Endpoints[t] = uri
}

func (a Actor) Endpoint(t ActorEndpointType) string {
	return a.Endpoints[t]
}

// Known "public collection" identifiers across backends. An audience
// entry with one of these oids addresses everyone rather than an actor.
var publicCollectionOids = map[string]bool{
	"http://activityschema.org/collection/public":  true,
	"https://www.w3.org/ns/activitystreams#Public": true,
}

// IsPublic reports whether this audience entry is a public marker
// rather than a concrete recipient.
func (a Actor) IsPublic() bool {
	return publicCollectionOids[a.Oid]
}
