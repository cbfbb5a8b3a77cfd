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

const (
	mastodonMaxTimelineItems   = 80
	mastodonTextLimitDefault   = 500
	mastodonUploadLimitDefault = 10 * 1024 * 1024
)

// mastodonConnection implements the Mastodon REST API.
type mastodonConnection struct {
	baseConnection
}

func newMastodonConnection(data *ConnectionData) *mastodonConnection {
	return &mastodonConnection{baseConnection{
		data: data,
		endpoints: endpointTable{
			RoutineGetConfig:             "api/v1/instance",
			RoutineHomeTimeline:          "api/v1/timelines/home",
			RoutineNotificationsTimeline: "api/v1/notifications",
			RoutineLikedTimeline:         "api/v1/favourites",
			RoutinePublicTimeline:        "api/v1/timelines/public",
			RoutineTagTimeline:           "api/v1/timelines/tag/%tag%",
			RoutineActorTimeline:         "api/v1/accounts/%actorId%/statuses",
			RoutineVerifyCredentials:     "api/v1/accounts/verify_credentials",
			RoutineUpdateNote:            "api/v1/statuses",
			RoutineUploadMedia:           "api/v1/media",
			RoutineGetNote:               "api/v1/statuses/%noteId%",
			RoutineSearchActors:          "api/v1/accounts/search",
			RoutineGetConversation:       "api/v1/statuses/%noteId%/context",
			RoutineLike:                  "api/v1/statuses/%noteId%/favourite",
			RoutineUndoLike:              "api/v1/statuses/%noteId%/unfavourite",
			RoutineFollow:                "api/v1/accounts/%actorId%/follow",
			RoutineUndoFollow:            "api/v1/accounts/%actorId%/unfollow",
			RoutineGetFollowers:          "api/v1/accounts/%actorId%/followers",
			RoutineGetFriends:            "api/v1/accounts/%actorId%/following",
			RoutineGetActor:              "api/v1/accounts/%actorId%",
			RoutineAnnounce:              "api/v1/statuses/%noteId%/reblog",
			RoutineUndoAnnounce:          "api/v1/statuses/%noteId%/unreblog",
			RoutineSearchNotes:           "api/v1/timelines/tag/%tag%",
		},
	}}
}

type mastodonField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type mastodonAccount struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Acct           string          `json:"acct"`
	DisplayName    string          `json:"display_name"`
	Note           string          `json:"note"`
	URL            string          `json:"url"`
	Avatar         string          `json:"avatar"`
	Header         string          `json:"header"`
	FollowersCount int64           `json:"followers_count"`
	FollowingCount int64           `json:"following_count"`
	StatusesCount  int64           `json:"statuses_count"`
	CreatedAt      string          `json:"created_at"`
	Fields         []mastodonField `json:"fields"`
}

type mastodonMedia struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	RemoteURL  string `json:"remote_url"`
	PreviewURL string `json:"preview_url"`
}

type mastodonStatus struct {
	ID                 string          `json:"id"`
	URI                string          `json:"uri"`
	URL                string          `json:"url"`
	CreatedAt          string          `json:"created_at"`
	Account            json.RawMessage `json:"account"`
	Content            string          `json:"content"`
	SpoilerText        string          `json:"spoiler_text"`
	Sensitive          bool            `json:"sensitive"`
	InReplyToID        string          `json:"in_reply_to_id"`
	InReplyToAccountID string          `json:"in_reply_to_account_id"`
	Reblog             json.RawMessage `json:"reblog"`
	Favourited         *bool           `json:"favourited"`
	Application        *struct {
		Name string `json:"name"`
	} `json:"application"`
	MediaAttachments []mastodonMedia `json:"media_attachments"`
}

// mastodonItem probes a timeline entry. A non-null discriminator Type
// marks a notification envelope wrapping an embedded status; without it
// the entry is a plain status.
type mastodonItem struct {
	Type      *string         `json:"type"`
	ID        string          `json:"id"`
	CreatedAt string          `json:"created_at"`
	Account   json.RawMessage `json:"account"`
	Status    json.RawMessage `json:"status"`
}

// extractSummary joins the free-text bio with the structured profile
// fields, one "name: value" pair per line.
func extractSummary(note string, fields []mastodonField) string {
	parts := make([]string, 0, len(fields)+1)
	if note != "" {
		parts = append(parts, note)
	}
	for _, field := range fields {
		if field.Name == "" && field.Value == "" {
			continue
		}
		parts = append(parts, field.Name+": "+field.Value)
	}
	return strings.Join(parts, "\n<br>")
}

func (c *mastodonConnection) actorFromJSON(raw json.RawMessage) (domain.Actor, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.EmptyActor, nil
	}
	var ma mastodonAccount
	if err := json.Unmarshal(raw, &ma); err != nil {
		return domain.EmptyActor, ErrParse("parsing account", raw, err)
	}
	if ma.ID == "" || ma.Username == "" {
		return domain.EmptyActor, ErrParse("id or username is empty", raw, nil)
	}
	actor := domain.ActorFromOid(ma.ID)
	actor.Username = ma.Username
	actor.RealName = ma.DisplayName
	actor.Summary = extractSummary(ma.Note, ma.Fields)
	actor.ProfileURL = ma.URL
	actor.AvatarURL = ma.Avatar
	actor.SetEndpoint(domain.EndpointBanner, ma.Header)
	if strings.Contains(ma.Acct, "@") {
		actor.WebFingerID = ma.Acct
	} else {
		actor.WebFingerID = ma.Username + "@" + c.data.Host()
	}
	actor.FollowersCount = ma.FollowersCount
	actor.FollowingCount = ma.FollowingCount
	actor.NotesCount = ma.StatusesCount
	actor.CreatedDate = c.ParseDate(ma.CreatedAt)
	return actor, nil
}

// activityFromItem disambiguates notification envelopes from plain
// statuses. The notifier is the activity's actor; the embedded status
// becomes the wrapped object for likes and reblogs.
func (c *mastodonConnection) activityFromItem(raw json.RawMessage) (*domain.Activity, error) {
	var item mastodonItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, ErrParse("parsing timeline item", raw, err)
	}
	if item.Type == nil {
		return c.activityFromStatus(raw)
	}

	var activityType domain.ActivityType
	switch *item.Type {
	case "favourite":
		activityType = domain.ActivityLike
	case "reblog":
		activityType = domain.ActivityAnnounce
	case "follow":
		activityType = domain.ActivityFollow
	case "mention":
		activityType = domain.ActivityUpdate
	default:
		activityType = domain.ActivityEmpty
	}

	activity := domain.NewActivity(c.data.AccountActor, activityType)
	activity.Oid = item.ID
	activity.UpdatedDate = c.ParseDate(item.CreatedAt)
	notifier, err := c.actorFromJSON(item.Account)
	if err != nil {
		return nil, err
	}
	activity.Actor = notifier

	switch activityType {
	case domain.ActivityLike, domain.ActivityAnnounce:
		inner, err := c.activityFromStatus(item.Status)
		if err != nil {
			return nil, err
		}
		activity.SetWrapped(inner)
	case domain.ActivityFollow:
		activity.ObjActor = c.data.AccountActor
	case domain.ActivityUpdate:
		inner, err := c.activityFromStatus(item.Status)
		if err != nil {
			return nil, err
		}
		activity.Note = inner.GetNote()
	}
	return activity, nil
}

func (c *mastodonConnection) activityFromStatus(raw json.RawMessage) (*domain.Activity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &domain.Activity{}, nil
	}
	var ms mastodonStatus
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, ErrParse("parsing status", raw, err)
	}
	if ms.ID == "" {
		return nil, ErrParse("status without id", raw, nil)
	}

	activity := domain.NewLoadedNote(c.data.AccountActor, ms.ID, c.ParseDate(ms.CreatedAt))
	actor, err := c.actorFromJSON(ms.Account)
	if err != nil {
		return nil, err
	}
	activity.Actor = actor

	// A reblog is an ANNOUNCE of the wrapped original.
	if len(ms.Reblog) > 0 && string(ms.Reblog) != "null" {
		inner, err := c.activityFromStatus(ms.Reblog)
		if err != nil {
			return nil, err
		}
		activity.Type = domain.ActivityAnnounce
		activity.Note = nil
		activity.SetWrapped(inner)
		return activity, nil
	}

	note := activity.Note
	note.Content = ms.Content
	note.Summary = ms.SpoilerText
	note.Sensitive = ms.Sensitive
	note.URL = ms.URL
	if ms.Application != nil {
		note.Via = ms.Application.Name
	}
	if ms.Favourited != nil {
		note.FavoritedBy = domain.TriStateFromBool(*ms.Favourited)
	}
	if ms.InReplyToID != "" && ms.InReplyToAccountID != "" {
		note.InReplyTo = domain.NewPartialNote(c.data.AccountActor,
			domain.ActorFromOid(ms.InReplyToAccountID), ms.InReplyToID)
	}

	var attachments []domain.Attachment
	for _, media := range ms.MediaAttachments {
		uri := media.URL
		if uri == "" {
			uri = media.RemoteURL
		}
		if uri == "" {
			continue
		}
		attachments = append(attachments, domain.AttachmentFromURIAndMimeType(uri, media.Type))
		if media.PreviewURL != "" && media.PreviewURL != uri {
			preview := domain.AttachmentFromURIAndMimeType(media.PreviewURL, media.Type)
			preview.PreviewOf = uri
			attachments = append(attachments, preview)
		}
	}
	note.Attachments = domain.FoldPreviews(attachments)
	return activity, nil
}

func (c *mastodonConnection) GetTimeline(ctx context.Context, routine ApiRoutine, youngest, oldest domain.TimelinePosition,
	limit int, actor domain.Actor) ([]*domain.Activity, error) {
	var path string
	var err error
	if routine == RoutineActorTimeline {
		path, err = c.pathWithActorID(routine, actor.Oid)
	} else {
		path, err = c.apiPath(routine)
	}
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	appendPositions(params, youngest, oldest, "since_id", "max_id")
	params.Set("limit", clampLimit(limit, mastodonMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToTimeline(items, c.activityFromItem)
}

func (c *mastodonConnection) GetNote(ctx context.Context, noteOid string) (*domain.Activity, error) {
	path, err := c.pathWithNoteID(RoutineGetNote, noteOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().GetObject(ctx, path)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	return c.activityFromStatus(raw)
}

func (c *mastodonConnection) UpdateNote(ctx context.Context, note *domain.Note, inReplyToOid string,
	attachments []domain.Attachment) (*domain.Activity, error) {
	payload := map[string]interface{}{
		"status": note.Content,
	}
	if note.Summary != "" {
		payload["spoiler_text"] = note.Summary
	}
	if note.Sensitive {
		payload["sensitive"] = note.Sensitive
	}
	if inReplyToOid != "" {
		payload["in_reply_to_id"] = inReplyToOid
	}

	var ids []string
	for _, attachment := range attachments {
		if util.IsDownloadable(attachment.URI) {
			log.Printf("Connector: skipped downloadable %s", attachment.URI)
			continue
		}
		mediaID, err := c.uploadMedia(ctx, attachment.URI)
		if err != nil {
			return nil, err
		}
		if mediaID != "" {
			ids = append(ids, mediaID)
		}
	}
	if len(ids) > 0 {
		payload["media_ids"] = ids
	}

	path, err := c.apiPath(RoutineUpdateNote)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	return c.activityFromStatus(raw)
}

func (c *mastodonConnection) uploadMedia(ctx context.Context, mediaURI string) (string, error) {
	path, err := c.apiPath(RoutineUploadMedia)
	if err != nil {
		return "", err
	}
	obj, err := c.http().UploadFile(ctx, path, "file", mediaURI)
	if err != nil {
		return "", err
	}
	return jsonString(obj, "id"), nil
}

func (c *mastodonConnection) DeleteNote(ctx context.Context, noteOid string) (bool, error) {
	return false, ErrUnsupported(RoutineDeleteNote)
}

func (c *mastodonConnection) Like(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.postStatusAction(ctx, RoutineLike, noteOid)
}

func (c *mastodonConnection) UndoLike(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.postStatusAction(ctx, RoutineUndoLike, noteOid)
}

func (c *mastodonConnection) Announce(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.postStatusAction(ctx, RoutineAnnounce, noteOid)
}

func (c *mastodonConnection) UndoAnnounce(ctx context.Context, noteOid string) (bool, error) {
	activity, err := c.postStatusAction(ctx, RoutineUndoAnnounce, noteOid)
	return activity.NonEmpty(), err
}

func (c *mastodonConnection) postStatusAction(ctx context.Context, routine ApiRoutine, noteOid string) (*domain.Activity, error) {
	path, err := c.pathWithNoteID(routine, noteOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	return c.activityFromStatus(raw)
}

// Follow posts to the follow/unfollow endpoint and reads back the
// relationship document. A relationship matching the requested state
// yields FOLLOW or UNDO_FOLLOW; a contradicting one yields UPDATE so
// the caller refetches the actor; a missing one yields an empty
// activity.
func (c *mastodonConnection) Follow(ctx context.Context, actorOid string, follow bool) (*domain.Activity, error) {
	routine := RoutineFollow
	if !follow {
		routine = RoutineUndoFollow
	}
	path, err := c.pathWithActorID(routine, actorOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var rel struct {
		Following *bool `json:"following"`
	}
	raw, _ := json.Marshal(obj)
	if err := json.Unmarshal(raw, &rel); err != nil || rel.Following == nil {
		return domain.NewActivity(c.data.AccountActor, domain.ActivityEmpty), nil
	}

	activityType := domain.ActivityUpdate
	if *rel.Following == follow {
		if follow {
			activityType = domain.ActivityFollow
		} else {
			activityType = domain.ActivityUndoFollow
		}
	}
	activity := domain.NewActivity(c.data.AccountActor, activityType)
	activity.Actor = c.data.AccountActor
	activity.ObjActor = domain.ActorFromOid(actorOid)
	return activity, nil
}

func (c *mastodonConnection) GetFriends(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFriends, actor)
}

func (c *mastodonConnection) GetFollowers(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFollowers, actor)
}

func (c *mastodonConnection) getActors(ctx context.Context, routine ApiRoutine, actor domain.Actor) ([]domain.Actor, error) {
	path, err := c.pathWithActorID(routine, actor.Oid)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("limit", clampLimit(0, mastodonMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToActors(items, c.actorFromJSON)
}

func (c *mastodonConnection) GetActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	oid := actor.Oid
	if oid == "" {
		oid = actor.Username
	}
	path, err := c.pathWithActorID(RoutineGetActor, oid)
	if err != nil {
		return domain.EmptyActor, err
	}
	obj, err := c.http().GetObject(ctx, path)
	if err != nil {
		return domain.EmptyActor, err
	}
	if len(obj) == 0 {
		return domain.EmptyActor, nil
	}
	raw, _ := json.Marshal(obj)
	return c.actorFromJSON(raw)
}

// SearchNotes maps a free-text query onto the tag timeline using the
// first tag or keyword. An empty query yields an empty timeline.
func (c *mastodonConnection) SearchNotes(ctx context.Context, youngest, oldest domain.TimelinePosition,
	limit int, searchQuery string) ([]*domain.Activity, error) {
	tag := util.FirstTagOrKeyword(searchQuery)
	if tag == "" {
		return nil, nil
	}
	path, err := c.pathWithTag(RoutineSearchNotes, tag)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	appendPositions(params, youngest, oldest, "since_id", "max_id")
	params.Set("limit", clampLimit(limit, mastodonMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToTimeline(items, c.activityFromItem)
}

func (c *mastodonConnection) SearchActors(ctx context.Context, limit int, searchQuery string) ([]domain.Actor, error) {
	path, err := c.apiPath(RoutineSearchActors)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("resolve", "true")
	params.Set("limit", clampLimit(limit, mastodonMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToActors(items, c.actorFromJSON)
}

// GetConversation fetches the status context: ancestors first, then
// descendants, in the server's order.
func (c *mastodonConnection) GetConversation(ctx context.Context, conversationOid string) ([]*domain.Activity, error) {
	path, err := c.pathWithNoteID(RoutineGetConversation, conversationOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().GetObject(ctx, path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	for _, key := range []string{"ancestors", "descendants"} {
		if len(obj[key]) == 0 {
			continue
		}
		var part []json.RawMessage
		if err := json.Unmarshal(obj[key], &part); err != nil {
			raw, _ := json.Marshal(obj)
			return nil, ErrParse("expected a '"+key+"' array", raw, err)
		}
		items = append(items, part...)
	}
	return itemsToTimeline(items, c.activityFromStatus)
}

func (c *mastodonConnection) GetConfig(ctx context.Context) (OriginConfig, error) {
	path, err := c.apiPath(RoutineGetConfig)
	if err != nil {
		return OriginConfig{}, err
	}
	obj, err := c.http().GetObject(ctx, path)
	if err != nil {
		return OriginConfig{}, err
	}
	config := OriginConfig{
		TextLimit:   mastodonTextLimitDefault,
		UploadLimit: mastodonUploadLimitDefault,
	}
	var limit int
	if err := json.Unmarshal(obj["max_toot_chars"], &limit); err == nil && limit > 0 {
		config.TextLimit = limit
	}
	return config, nil
}

func (c *mastodonConnection) DownloadFile(ctx context.Context, uri string, w io.Writer) error {
	return c.http().Download(ctx, uri, w)
}

func (c *mastodonConnection) ParseDate(stringDate string) int64 {
	return parseIso8601Date(stringDate)
}
