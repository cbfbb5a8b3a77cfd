package connector

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/jaller94/andstatus/domain"
	"github.com/jaller94/andstatus/util"
)

// PublicCollectionID addresses everyone on an ActivityStreams backend.
const PublicCollectionID = "http://activityschema.org/collection/public"

const (
	pumpioMaxTimelineItems = 200
	pumpioTextLimit        = 5000
	pumpioUploadLimit      = 10 * 1024 * 1024
)

// pumpioConnection implements the Pump.io ActivityStreams API. Most
// endpoints are per-user and carry a %nickname% placeholder; writes go
// to the account's own feed as verb-carrying activities, and reads on
// foreign actors are resolved against the actor's home host.
type pumpioConnection struct {
	baseConnection
	resolver *connectionResolver
}

func newPumpioConnection(data *ConnectionData) *pumpioConnection {
	conn := &pumpioConnection{baseConnection: baseConnection{
		data: data,
		endpoints: endpointTable{
			RoutineVerifyCredentials: "api/whoami",
			RoutineGetActor:          "api/user/%nickname%/profile",
			RoutineHomeTimeline:      "api/user/%nickname%/inbox",
			RoutineActorTimeline:     "api/user/%nickname%/feed",
			RoutineLikedTimeline:     "api/user/%nickname%/favorites",
			RoutineGetFollowers:      "api/user/%nickname%/followers",
			RoutineGetFriends:        "api/user/%nickname%/following",
			RoutineUpdateNote:        "api/user/%nickname%/feed",
			RoutineDeleteNote:        "api/user/%nickname%/feed",
			RoutineLike:              "api/user/%nickname%/feed",
			RoutineUndoLike:          "api/user/%nickname%/feed",
			RoutineAnnounce:          "api/user/%nickname%/feed",
			RoutineFollow:            "api/user/%nickname%/feed",
			RoutineUndoFollow:        "api/user/%nickname%/feed",
			RoutineUploadMedia:       "api/user/%nickname%/uploads",
		},
	}}
	conn.resolver = newConnectionResolver(conn)
	return conn
}

// oidToObjectType recovers the ActivityStreams object type from an
// object id URL.
func oidToObjectType(oid string) string {
	objectType := ""
	switch {
	case strings.HasPrefix(oid, "acct:"):
		objectType = "person"
	case strings.Contains(oid, "/comment/"):
		objectType = "comment"
	case strings.HasPrefix(oid, PublicCollectionID):
		objectType = "collection"
	case strings.Contains(oid, "/note/"):
		objectType = "note"
	case strings.Contains(oid, "/notice/"):
		objectType = "note"
	case strings.Contains(oid, "/person/"):
		objectType = "person"
	case strings.Contains(oid, "/collection/"), strings.HasSuffix(oid, "/followers"):
		objectType = "collection"
	case strings.Contains(oid, "/user/"):
		objectType = "person"
	default:
		pattern := "/api/"
		if ind := strings.Index(oid, pattern); ind >= 0 {
			afterAPI := oid[ind+len(pattern):]
			if slash := strings.Index(afterAPI, "/"); slash >= 0 {
				objectType = afterAPI[:slash]
			}
		}
	}
	if objectType == "" {
		objectType = "unknown object type: " + oid
		log.Printf("Connector: %s", objectType)
	}
	return objectType
}

// actorOidToHost extracts the home host from an "acct:user@host" oid.
// Empty when the oid carries no host.
func actorOidToHost(actorOid string) string {
	ind := strings.Index(actorOid, "@")
	if ind < 0 {
		return ""
	}
	return actorOid[ind+1:]
}

// usernameToNickname strips the host part: the nickname is what the
// per-user API paths are keyed by.
func usernameToNickname(username string) string {
	username = strings.TrimPrefix(username, "acct:")
	if ind := strings.Index(username, "@"); ind >= 0 {
		return username[:ind]
	}
	return username
}

func usernameToHost(username string) string {
	if ind := strings.Index(username, "@"); ind >= 0 {
		return username[ind+1:]
	}
	return ""
}

type pumpioImage struct {
	URL string `json:"url"`
}

type pumpioLink struct {
	Href string `json:"href"`
}

type pumpioPerson struct {
	ID                string       `json:"id"`
	ObjectType        string       `json:"objectType"`
	PreferredUsername string       `json:"preferredUsername"`
	DisplayName       string       `json:"displayName"`
	Summary           string       `json:"summary"`
	URL               string       `json:"url"`
	Image             *pumpioImage `json:"image"`
	Location          *struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Updated   string                `json:"updated"`
	Published string                `json:"published"`
	Links     map[string]pumpioLink `json:"links"`
	Followers *pumpioImage          `json:"followers"`
	Following *pumpioImage          `json:"following"`
	Favorites *pumpioImage          `json:"favorites"`
}

type pumpioObject struct {
	ID          string          `json:"id"`
	ObjectType  string          `json:"objectType"`
	DisplayName string          `json:"displayName"`
	Content     string          `json:"content"`
	URL         string          `json:"url"`
	Published   string          `json:"published"`
	Updated     string          `json:"updated"`
	Author      json.RawMessage `json:"author"`
	Image       *pumpioImage    `json:"image"`
	FullImage   *pumpioImage    `json:"fullImage"`
	InReplyTo   *struct {
		ID     string          `json:"id"`
		Author json.RawMessage `json:"author"`
	} `json:"inReplyTo"`
	Replies *struct {
		Items []json.RawMessage `json:"items"`
	} `json:"replies"`
}

type pumpioActivity struct {
	ID        string            `json:"id"`
	Verb      string            `json:"verb"`
	Updated   string            `json:"updated"`
	Published string            `json:"published"`
	Actor     json.RawMessage   `json:"actor"`
	Object    json.RawMessage   `json:"object"`
	To        []json.RawMessage `json:"to"`
	Cc        []json.RawMessage `json:"cc"`
	Generator *struct {
		DisplayName string `json:"displayName"`
	} `json:"generator"`
}

func verbToActivityType(verb string) domain.ActivityType {
	switch verb {
	case "favorite":
		return domain.ActivityLike
	case "unfavorite", "unlike":
		return domain.ActivityUndoLike
	case "share":
		return domain.ActivityAnnounce
	case "unshare":
		return domain.ActivityUndoAnnounce
	case "follow":
		return domain.ActivityFollow
	case "stop-following", "unfollow":
		return domain.ActivityUndoFollow
	case "delete":
		return domain.ActivityDelete
	default:
		// "post" and "update" both normalize to UPDATE.
		return domain.ActivityUpdate
	}
}

func (c *pumpioConnection) actorFromJSON(raw json.RawMessage) (domain.Actor, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.EmptyActor, nil
	}
	var person pumpioPerson
	if err := json.Unmarshal(raw, &person); err != nil {
		return domain.EmptyActor, ErrParse("parsing person", raw, err)
	}
	if person.ID == "" {
		return domain.EmptyActor, ErrParse("person without id", raw, nil)
	}
	actor := domain.ActorFromOid(person.ID)
	actor.Username = person.PreferredUsername
	if actor.Username == "" {
		actor.Username = usernameToNickname(person.ID)
	}
	actor.WebFingerID = strings.TrimPrefix(person.ID, "acct:")
	actor.RealName = person.DisplayName
	actor.Summary = person.Summary
	actor.ProfileURL = person.URL
	actor.Homepage = person.URL
	if person.Image != nil {
		actor.AvatarURL = person.Image.URL
	}
	if person.Location != nil {
		actor.Location = person.Location.DisplayName
	}
	actor.UpdatedDate = c.ParseDate(person.Updated)
	actor.CreatedDate = c.ParseDate(person.Published)
	if link, ok := person.Links["self"]; ok {
		actor.SetEndpoint(domain.EndpointAPIProfile, c.hostURL(link.Href))
	}
	if link, ok := person.Links["activity-inbox"]; ok {
		actor.SetEndpoint(domain.EndpointAPIInbox, c.hostURL(link.Href))
	}
	if link, ok := person.Links["activity-outbox"]; ok {
		actor.SetEndpoint(domain.EndpointAPIOutbox, c.hostURL(link.Href))
	}
	if person.Followers != nil {
		actor.SetEndpoint(domain.EndpointAPIFollowers, person.Followers.URL)
	}
	if person.Following != nil {
		actor.SetEndpoint(domain.EndpointAPIFollowing, person.Following.URL)
	}
	if person.Favorites != nil {
		actor.SetEndpoint(domain.EndpointAPILiked, person.Favorites.URL)
	}
	return actor, nil
}

// hostURL resolves a possibly relative link against the origin.
func (c *pumpioConnection) hostURL(href string) string {
	if href == "" || util.IsDownloadable(href) || c.data.OriginURL == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.data.OriginURL.ResolveReference(ref).String()
}

func (c *pumpioConnection) activityFromJSON(raw json.RawMessage) (*domain.Activity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &domain.Activity{}, nil
	}
	var pa pumpioActivity
	if err := json.Unmarshal(raw, &pa); err != nil {
		return nil, ErrParse("parsing activity", raw, err)
	}
	if pa.Verb == "" {
		// A bare object arrives when fetching a note by its oid.
		return c.activityFromObject(raw, "")
	}

	activity := domain.NewActivity(c.data.AccountActor, verbToActivityType(pa.Verb))
	activity.Oid = pa.ID
	activity.UpdatedDate = c.ParseDate(pa.Updated)
	if activity.UpdatedDate == 0 {
		activity.UpdatedDate = c.ParseDate(pa.Published)
	}
	actor, err := c.actorFromJSON(pa.Actor)
	if err != nil {
		return nil, err
	}
	activity.Actor = actor

	var probe struct {
		ObjectType string `json:"objectType"`
		Verb       string `json:"verb"`
	}
	if len(pa.Object) > 0 {
		if err := json.Unmarshal(pa.Object, &probe); err != nil {
			return nil, ErrParse("parsing activity object", pa.Object, err)
		}
	}
	switch {
	case probe.ObjectType == "person":
		objActor, err := c.actorFromJSON(pa.Object)
		if err != nil {
			return nil, err
		}
		activity.ObjActor = objActor
	case probe.ObjectType == "activity" || probe.Verb != "":
		inner, err := c.activityFromJSON(pa.Object)
		if err != nil {
			return nil, err
		}
		activity.SetWrapped(inner)
	case len(pa.Object) > 0:
		via := ""
		if pa.Generator != nil {
			via = pa.Generator.DisplayName
		}
		objActivity, err := c.activityFromObject(pa.Object, via)
		if err != nil {
			return nil, err
		}
		activity.Note = objActivity.Note
		if activity.Actor.IsEmpty() {
			activity.Actor = objActivity.Actor
		}
	}

	if activity.Note != nil {
		for _, recipient := range append(pa.To, pa.Cc...) {
			var obj struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(recipient, &obj); err != nil || obj.ID == "" {
				continue
			}
			activity.Note.AddRecipient(domain.ActorFromOid(obj.ID))
		}
	}
	return activity, nil
}

// activityFromObject wraps a bare note or comment object into an UPDATE
// activity, descending into reply items.
func (c *pumpioConnection) activityFromObject(raw json.RawMessage, via string) (*domain.Activity, error) {
	var obj pumpioObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrParse("parsing object", raw, err)
	}
	if obj.ID == "" {
		return nil, ErrParse("object without id", raw, nil)
	}

	updatedDate := c.ParseDate(obj.Updated)
	if updatedDate == 0 {
		updatedDate = c.ParseDate(obj.Published)
	}
	activity := domain.NewLoadedNote(c.data.AccountActor, obj.ID, updatedDate)
	author, err := c.actorFromJSON(obj.Author)
	if err != nil {
		return nil, err
	}
	activity.Actor = author

	note := activity.Note
	note.Name = obj.DisplayName
	note.Content = obj.Content
	note.URL = obj.URL
	note.Via = via

	if obj.InReplyTo != nil && obj.InReplyTo.ID != "" {
		replyAuthor, err := c.actorFromJSON(obj.InReplyTo.Author)
		if err != nil {
			return nil, err
		}
		note.InReplyTo = domain.NewPartialNote(c.data.AccountActor, replyAuthor, obj.InReplyTo.ID)
	}

	var attachments []domain.Attachment
	if obj.FullImage != nil && obj.FullImage.URL != "" {
		attachments = append(attachments, domain.AttachmentFromURI(obj.FullImage.URL))
		if obj.Image != nil && obj.Image.URL != "" && obj.Image.URL != obj.FullImage.URL {
			preview := domain.AttachmentFromURI(obj.Image.URL)
			preview.PreviewOf = obj.FullImage.URL
			attachments = append(attachments, preview)
		}
	} else if obj.Image != nil && obj.Image.URL != "" {
		attachments = append(attachments, domain.AttachmentFromURI(obj.Image.URL))
	}
	note.Attachments = domain.FoldPreviews(attachments)

	if obj.Replies != nil {
		for ind, item := range obj.Replies.Items {
			reply, err := c.activityFromJSON(item)
			if err != nil {
				log.Printf("Connector: skipping malformed reply %d: %v", ind, err)
				continue
			}
			note.Replies = append(note.Replies, reply)
		}
	}
	return activity, nil
}

func (c *pumpioConnection) GetTimeline(ctx context.Context, routine ApiRoutine, youngest, oldest domain.TimelinePosition,
	limit int, actor domain.Actor) ([]*domain.Activity, error) {
	conn, err := c.resolver.Resolve(ctx, routine, actor)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	appendPositions(params, youngest, oldest, "since", "before")
	params.Set("count", clampLimit(limit, pumpioMaxTimelineItems))
	obj, err := conn.HTTP.GetObject(ctx, addQuery(conn.URI, params))
	if err != nil {
		return nil, err
	}
	items, err := feedItems(obj)
	if err != nil {
		return nil, err
	}
	return itemsToTimeline(items, c.activityFromJSON)
}

// feedItems unwraps the "items" array of a Pump.io collection document.
func feedItems(obj map[string]json.RawMessage) ([]json.RawMessage, error) {
	if len(obj["items"]) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(obj["items"], &items); err != nil {
		raw, _ := json.Marshal(obj)
		return nil, ErrParse("expected an 'items' array", raw, err)
	}
	return items, nil
}

// GetNote fetches the object by its oid, which on this backend is a
// dereferenceable URL.
func (c *pumpioConnection) GetNote(ctx context.Context, noteOid string) (*domain.Activity, error) {
	if noteOid == "" {
		return nil, ErrBadRequest("%s: noteId is required", RoutineGetNote)
	}
	if !util.IsDownloadable(noteOid) {
		return nil, ErrBadRequest("%s: not a URL oid: %s", RoutineGetNote, noteOid)
	}
	obj, err := c.http().GetObject(ctx, noteOid)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	return c.activityFromJSON(raw)
}

func (c *pumpioConnection) UpdateNote(ctx context.Context, note *domain.Note, inReplyToOid string,
	attachments []domain.Attachment) (*domain.Activity, error) {
	object := map[string]interface{}{
		"objectType": "note",
		"content":    note.Content,
	}
	if note.Name != "" {
		object["displayName"] = note.Name
	}
	if inReplyToOid != "" {
		object["objectType"] = "comment"
		object["inReplyTo"] = map[string]interface{}{
			"id":         inReplyToOid,
			"objectType": oidToObjectType(inReplyToOid),
		}
	}

	for _, attachment := range attachments {
		if util.IsDownloadable(attachment.URI) {
			log.Printf("Connector: skipped downloadable %s", attachment.URI)
			continue
		}
		uploaded, err := c.uploadMedia(ctx, attachment.URI)
		if err != nil {
			return nil, err
		}
		// The uploaded media object becomes the activity object, the
		// note's text riding on it.
		uploaded["content"] = note.Content
		if note.Name != "" {
			uploaded["displayName"] = note.Name
		}
		object = uploaded
		break
	}

	payload := map[string]interface{}{
		"verb":   "post",
		"object": object,
	}
	// Replies inherit the conversation's audience server-side; only
	// top-level notes are addressed to the public collection.
	if inReplyToOid == "" {
		payload["to"] = []interface{}{
			map[string]interface{}{
				"id":         PublicCollectionID,
				"objectType": "collection",
			},
		}
	}
	return c.postActivity(ctx, RoutineUpdateNote, payload)
}

func (c *pumpioConnection) uploadMedia(ctx context.Context, mediaURI string) (map[string]interface{}, error) {
	conn, err := c.resolver.Resolve(ctx, RoutineUploadMedia, c.data.AccountActor)
	if err != nil {
		return nil, err
	}
	obj, err := conn.HTTP.UploadFile(ctx, conn.URI, "file", mediaURI)
	if err != nil {
		return nil, err
	}
	uploaded := make(map[string]interface{}, len(obj))
	for key, value := range obj {
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			raw, _ := json.Marshal(obj)
			return nil, ErrParse("parsing uploaded media", raw, err)
		}
		uploaded[key] = decoded
	}
	return uploaded, nil
}

// postActivity posts a verb-carrying activity to the account's own feed
// and parses the activity echoed back.
func (c *pumpioConnection) postActivity(ctx context.Context, routine ApiRoutine, payload map[string]interface{}) (*domain.Activity, error) {
	conn, err := c.resolver.Resolve(ctx, routine, c.data.AccountActor)
	if err != nil {
		return nil, err
	}
	obj, err := conn.HTTP.PostObject(ctx, conn.URI, payload)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	return c.activityFromJSON(raw)
}

func (c *pumpioConnection) verbOnObject(ctx context.Context, routine ApiRoutine, verb, oid, objectType string) (*domain.Activity, error) {
	if oid == "" {
		return nil, ErrBadRequest("%s: object id is required", routine)
	}
	return c.postActivity(ctx, routine, map[string]interface{}{
		"verb": verb,
		"object": map[string]interface{}{
			"id":         oid,
			"objectType": objectType,
		},
	})
}

func (c *pumpioConnection) DeleteNote(ctx context.Context, noteOid string) (bool, error) {
	activity, err := c.verbOnObject(ctx, RoutineDeleteNote, "delete", noteOid, oidToObjectType(noteOid))
	return activity.NonEmpty(), err
}

func (c *pumpioConnection) Like(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.verbOnObject(ctx, RoutineLike, "favorite", noteOid, oidToObjectType(noteOid))
}

func (c *pumpioConnection) UndoLike(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.verbOnObject(ctx, RoutineUndoLike, "unfavorite", noteOid, oidToObjectType(noteOid))
}

func (c *pumpioConnection) Announce(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.verbOnObject(ctx, RoutineAnnounce, "share", noteOid, oidToObjectType(noteOid))
}

func (c *pumpioConnection) UndoAnnounce(ctx context.Context, noteOid string) (bool, error) {
	activity, err := c.verbOnObject(ctx, RoutineUndoAnnounce, "unshare", noteOid, oidToObjectType(noteOid))
	return activity.NonEmpty(), err
}

func (c *pumpioConnection) Follow(ctx context.Context, actorOid string, follow bool) (*domain.Activity, error) {
	verb := "follow"
	routine := RoutineFollow
	if !follow {
		verb = "stop-following"
		routine = RoutineUndoFollow
	}
	return c.verbOnObject(ctx, routine, verb, actorOid, "person")
}

func (c *pumpioConnection) GetFriends(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFriends, actor)
}

func (c *pumpioConnection) GetFollowers(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFollowers, actor)
}

func (c *pumpioConnection) getActors(ctx context.Context, routine ApiRoutine, actor domain.Actor) ([]domain.Actor, error) {
	conn, err := c.resolver.Resolve(ctx, routine, actor)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("count", clampLimit(0, pumpioMaxTimelineItems))
	obj, err := conn.HTTP.GetObject(ctx, addQuery(conn.URI, params))
	if err != nil {
		return nil, err
	}
	items, err := feedItems(obj)
	if err != nil {
		return nil, err
	}
	return itemsToActors(items, c.actorFromJSON)
}

func (c *pumpioConnection) GetActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	conn, err := c.resolver.Resolve(ctx, RoutineGetActor, actor)
	if err != nil {
		return domain.EmptyActor, err
	}
	obj, err := conn.HTTP.GetObject(ctx, conn.URI)
	if err != nil {
		return domain.EmptyActor, err
	}
	if len(obj) == 0 {
		return domain.EmptyActor, nil
	}
	raw, _ := json.Marshal(obj)
	return c.actorFromJSON(raw)
}

func (c *pumpioConnection) SearchNotes(ctx context.Context, youngest, oldest domain.TimelinePosition,
	limit int, searchQuery string) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineSearchNotes)
}

func (c *pumpioConnection) SearchActors(ctx context.Context, limit int, searchQuery string) ([]domain.Actor, error) {
	return nil, ErrUnsupported(RoutineSearchActors)
}

func (c *pumpioConnection) GetConversation(ctx context.Context, conversationOid string) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineGetConversation)
}

// GetConfig: the backend publishes no limits endpoint.
func (c *pumpioConnection) GetConfig(ctx context.Context) (OriginConfig, error) {
	return OriginConfig{TextLimit: pumpioTextLimit, UploadLimit: pumpioUploadLimit}, nil
}

func (c *pumpioConnection) DownloadFile(ctx context.Context, uri string, w io.Writer) error {
	return c.http().Download(ctx, uri, w)
}

// ParseDate accepts ISO 8601 only; other formats resolve to 0.
func (c *pumpioConnection) ParseDate(stringDate string) int64 {
	return parseIso8601Date(stringDate)
}
