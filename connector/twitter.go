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
	twitterMaxTimelineItems = 200
	twitterTextLimit        = 280
	twitterUploadLimit      = 5 * 1024 * 1024
)

// twitterConnection implements the classic REST API of twitter.com and
// compatible services.
type twitterConnection struct {
	baseConnection
}

func newTwitterConnection(data *ConnectionData) *twitterConnection {
	return &twitterConnection{baseConnection{
		data: data,
		endpoints: endpointTable{
			RoutineRateLimitStatus:       "application/rate_limit_status.json",
			RoutineLike:                  "favorites/create.json?tweet_mode=extended",
			RoutineUndoLike:              "favorites/destroy.json?tweet_mode=extended",
			RoutineLikedTimeline:         "favorites/list.json?tweet_mode=extended",
			RoutineGetFollowers:          "followers/list.json",
			RoutineGetFriends:            "friends/list.json",
			RoutineGetNote:               "statuses/show.json?id=%noteId%&tweet_mode=extended",
			RoutineDeleteNote:            "statuses/destroy/%noteId%.json?tweet_mode=extended",
			RoutineHomeTimeline:          "statuses/home_timeline.json?tweet_mode=extended",
			RoutineNotificationsTimeline: "statuses/mentions_timeline.json?tweet_mode=extended",
			RoutineUpdateNote:            "statuses/update.json?tweet_mode=extended",
			RoutineAnnounce:              "statuses/retweet/%noteId%.json?tweet_mode=extended",
			RoutineUndoAnnounce:          "statuses/unretweet/%noteId%.json?tweet_mode=extended",
			RoutineUploadMedia:           "media/upload.json",
			RoutineSearchNotes:           "search/tweets.json?tweet_mode=extended",
			RoutineSearchActors:          "users/search.json?tweet_mode=extended",
			RoutineActorTimeline:         "statuses/user_timeline.json?tweet_mode=extended",
			RoutineGetActor:              "users/show.json?tweet_mode=extended",
			RoutineFollow:                "friendships/create.json",
			RoutineUndoFollow:            "friendships/destroy.json",
			RoutineVerifyCredentials:     "account/verify_credentials.json",
		},
	}}
}

// apiPath allows an alternative host for compatible services, but the
// real twitter.com uploads media through a dedicated host.
func (c *twitterConnection) uploadPath() (string, error) {
	if c.data.OriginURL != nil && c.data.OriginURL.Host == "api.twitter.com" {
		return "https://upload.twitter.com/1.1/media/upload.json", nil
	}
	return c.apiPath(RoutineUploadMedia)
}

type twitterActor struct {
	IDStr                string      `json:"id_str"`
	ID                   json.Number `json:"id"`
	ScreenName           string      `json:"screen_name"`
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	URL                  string      `json:"url"`
	Location             string      `json:"location"`
	ProfileImageURLHTTPS string      `json:"profile_image_url_https"`
	ProfileImageURL      string      `json:"profile_image_url"`
	ProfileBannerURL     string      `json:"profile_banner_url"`
	FollowersCount       int64       `json:"followers_count"`
	FriendsCount         int64       `json:"friends_count"`
	StatusesCount        int64       `json:"statuses_count"`
	FavouritesCount      int64       `json:"favourites_count"`
	CreatedAt            string      `json:"created_at"`
	Following            *bool       `json:"following"`
}

type twitterMedia struct {
	MediaURLHTTPS string `json:"media_url_https"`
	MediaURL      string `json:"media_url_http"`
}

type twitterEntities struct {
	Media []twitterMedia `json:"media"`
}

type twitterStatus struct {
	IDStr                string           `json:"id_str"`
	FullText             string           `json:"full_text"`
	Text                 string           `json:"text"`
	CreatedAt            string           `json:"created_at"`
	PossiblySensitive    bool             `json:"possibly_sensitive"`
	InReplyToStatusIDStr string           `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string           `json:"in_reply_to_user_id_str"`
	Source               string           `json:"source"`
	User                 json.RawMessage  `json:"user"`
	RetweetedStatus      json.RawMessage  `json:"retweeted_status"`
	Favorited            *bool            `json:"favorited"`
	Entities             *twitterEntities `json:"entities"`
	ExtendedEntities     *twitterEntities `json:"extended_entities"`
}

func (c *twitterConnection) actorFromJSON(raw json.RawMessage) (domain.Actor, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.EmptyActor, nil
	}
	var ta twitterActor
	if err := json.Unmarshal(raw, &ta); err != nil {
		return domain.EmptyActor, ErrParse("parsing actor", raw, err)
	}
	oid := ta.IDStr
	if oid == "" {
		oid = ta.ID.String()
	}
	if oid == "" || oid == "0" || ta.ScreenName == "" {
		return domain.EmptyActor, ErrParse("id or username is empty", raw, nil)
	}
	actor := domain.ActorFromOid(oid)
	actor.Username = ta.ScreenName
	actor.RealName = ta.Name
	actor.Summary = ta.Description
	actor.Location = ta.Location
	actor.Homepage = ta.URL
	actor.WebFingerID = ta.ScreenName + "@" + c.data.Host()
	if ta.ProfileImageURLHTTPS != "" {
		actor.AvatarURL = ta.ProfileImageURLHTTPS
	} else {
		actor.AvatarURL = ta.ProfileImageURL
	}
	actor.SetEndpoint(domain.EndpointBanner, ta.ProfileBannerURL)
	actor.FollowersCount = ta.FollowersCount
	actor.FollowingCount = ta.FriendsCount
	actor.NotesCount = ta.StatusesCount
	actor.FavoritesCount = ta.FavouritesCount
	actor.CreatedDate = c.ParseDate(ta.CreatedAt)
	if ta.Following != nil {
		actor.IsMyFriend = domain.TriStateFromBool(*ta.Following)
	}
	return actor, nil
}

func (c *twitterConnection) activityFromStatus(raw json.RawMessage) (*domain.Activity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &domain.Activity{}, nil
	}
	var ts twitterStatus
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, ErrParse("parsing status", raw, err)
	}
	if ts.IDStr == "" {
		return nil, ErrParse("status without id", raw, nil)
	}

	activity := domain.NewLoadedNote(c.data.AccountActor, ts.IDStr, c.ParseDate(ts.CreatedAt))
	actor, err := c.actorFromJSON(ts.User)
	if err != nil {
		return nil, err
	}
	activity.Actor = actor

	note := activity.Note
	if ts.FullText != "" {
		note.Content = ts.FullText
	} else {
		note.Content = ts.Text
	}
	note.Sensitive = ts.PossiblySensitive
	note.Via = ts.Source
	if ts.Favorited != nil {
		note.FavoritedBy = domain.TriStateFromBool(*ts.Favorited)
	}

	if ts.InReplyToUserIDStr != "" && ts.InReplyToStatusIDStr != "" {
		note.InReplyTo = domain.NewPartialNote(c.data.AccountActor,
			domain.ActorFromOid(ts.InReplyToUserIDStr), ts.InReplyToStatusIDStr)
	}

	// The retweeted original becomes a wrapped ANNOUNCE object.
	if len(ts.RetweetedStatus) > 0 && string(ts.RetweetedStatus) != "null" {
		inner, err := c.activityFromStatus(ts.RetweetedStatus)
		if err != nil {
			return nil, err
		}
		activity.Type = domain.ActivityAnnounce
		activity.Note = nil
		activity.SetWrapped(inner)
		return activity, nil
	}

	entities := ts.ExtendedEntities
	if entities == nil || len(entities.Media) == 0 {
		entities = ts.Entities
	}
	if entities != nil {
		for _, media := range entities.Media {
			uri := media.MediaURLHTTPS
			if uri == "" {
				uri = media.MediaURL
			}
			activity.AddAttachment(domain.AttachmentFromURI(uri))
		}
	}
	return activity, nil
}

func (c *twitterConnection) GetTimeline(ctx context.Context, routine ApiRoutine, youngest, oldest domain.TimelinePosition,
	limit int, actor domain.Actor) ([]*domain.Activity, error) {
	path, err := c.apiPath(routine)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if actor.NonEmpty() {
		params.Set("user_id", actor.Oid)
	}
	appendPositions(params, youngest, oldest, "since_id", "max_id")
	params.Set("count", clampLimit(limit, twitterMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToTimeline(items, c.activityFromStatus)
}

func (c *twitterConnection) GetNote(ctx context.Context, noteOid string) (*domain.Activity, error) {
	path, err := c.pathWithNoteID(RoutineGetNote, noteOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().GetObject(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.activityFromObject(obj)
}

func (c *twitterConnection) activityFromObject(obj map[string]json.RawMessage) (*domain.Activity, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, ErrParse("re-encoding response", nil, err)
	}
	return c.activityFromStatus(raw)
}

// UpdateNote posts a new status. Remote-hosted attachments are only
// referenced; local ones go through the two-phase media upload first.
func (c *twitterConnection) UpdateNote(ctx context.Context, note *domain.Note, inReplyToOid string,
	attachments []domain.Attachment) (*domain.Activity, error) {
	payload := map[string]interface{}{
		"status": note.Content,
	}
	if inReplyToOid != "" {
		payload["in_reply_to_status_id"] = inReplyToOid
	}
	if note.Sensitive {
		payload["possibly_sensitive"] = note.Sensitive
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
		payload["media_ids"] = strings.Join(ids, ",")
	}

	path, err := c.apiPath(RoutineUpdateNote)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	return c.activityFromObject(obj)
}

// uploadMedia is phase one of the upload: post the raw bytes, get back
// the remote media reference id.
func (c *twitterConnection) uploadMedia(ctx context.Context, mediaURI string) (string, error) {
	path, err := c.uploadPath()
	if err != nil {
		return "", err
	}
	obj, err := c.http().UploadFile(ctx, path, "media", mediaURI)
	if err != nil {
		return "", err
	}
	return jsonString(obj, "media_id_string"), nil
}

func (c *twitterConnection) DeleteNote(ctx context.Context, noteOid string) (bool, error) {
	path, err := c.pathWithNoteID(RoutineDeleteNote, noteOid)
	if err != nil {
		return false, err
	}
	_, err = c.http().PostObject(ctx, path, nil)
	return err == nil, err
}

func (c *twitterConnection) Like(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.postStatusAction(ctx, RoutineLike, noteOid)
}

func (c *twitterConnection) UndoLike(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return c.postStatusAction(ctx, RoutineUndoLike, noteOid)
}

// postStatusAction posts {"id": noteOid} to a favorites endpoint and
// parses the returned status.
func (c *twitterConnection) postStatusAction(ctx context.Context, routine ApiRoutine, noteOid string) (*domain.Activity, error) {
	if noteOid == "" {
		return nil, ErrBadRequest("%s: noteId is required", routine)
	}
	path, err := c.apiPath(routine)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, map[string]interface{}{"id": noteOid})
	if err != nil {
		return nil, err
	}
	return c.activityFromObject(obj)
}

func (c *twitterConnection) Announce(ctx context.Context, noteOid string) (*domain.Activity, error) {
	path, err := c.pathWithNoteID(RoutineAnnounce, noteOid)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return c.activityFromObject(obj)
}

func (c *twitterConnection) UndoAnnounce(ctx context.Context, noteOid string) (bool, error) {
	path, err := c.pathWithNoteID(RoutineUndoAnnounce, noteOid)
	if err != nil {
		return false, err
	}
	_, err = c.http().PostObject(ctx, path, nil)
	return err == nil, err
}

func (c *twitterConnection) Follow(ctx context.Context, actorOid string, follow bool) (*domain.Activity, error) {
	routine := RoutineFollow
	activityType := domain.ActivityFollow
	if !follow {
		routine = RoutineUndoFollow
		activityType = domain.ActivityUndoFollow
	}
	if actorOid == "" {
		return nil, ErrBadRequest("%s: actorId is required", routine)
	}
	path, err := c.apiPath(routine)
	if err != nil {
		return nil, err
	}
	obj, err := c.http().PostObject(ctx, path, map[string]interface{}{"user_id": actorOid})
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(obj)
	friend, err := c.actorFromJSON(raw)
	if err != nil {
		return nil, err
	}
	activity := domain.NewActivity(c.data.AccountActor, activityType)
	activity.Actor = c.data.AccountActor
	activity.ObjActor = friend
	return activity, nil
}

func (c *twitterConnection) GetFriends(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFriends, actor)
}

func (c *twitterConnection) GetFollowers(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return c.getActors(ctx, RoutineGetFollowers, actor)
}

func (c *twitterConnection) getActors(ctx context.Context, routine ApiRoutine, actor domain.Actor) ([]domain.Actor, error) {
	path, err := c.apiPath(routine)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if actor.Oid != "" {
		params.Set("user_id", actor.Oid)
	}
	params.Set("count", clampLimit(0, twitterMaxTimelineItems))
	obj, err := c.http().GetObject(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(obj["users"], &items); err != nil {
		raw, _ := json.Marshal(obj)
		return nil, ErrParse("expected a 'users' array", raw, err)
	}
	return itemsToActors(items, c.actorFromJSON)
}

func (c *twitterConnection) GetActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	path, err := c.apiPath(RoutineGetActor)
	if err != nil {
		return domain.EmptyActor, err
	}
	params := url.Values{}
	if actor.Oid != "" {
		params.Set("user_id", actor.Oid)
	} else if actor.Username != "" {
		params.Set("screen_name", actor.Username)
	} else {
		return domain.EmptyActor, ErrBadRequest("GET_ACTOR: neither actorId nor username given")
	}
	obj, err := c.http().GetObject(ctx, addQuery(path, params))
	if err != nil {
		return domain.EmptyActor, err
	}
	raw, _ := json.Marshal(obj)
	return c.actorFromJSON(raw)
}

func (c *twitterConnection) SearchNotes(ctx context.Context, youngest, oldest domain.TimelinePosition,
	limit int, searchQuery string) ([]*domain.Activity, error) {
	path, err := c.apiPath(RoutineSearchNotes)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if searchQuery != "" {
		params.Set("q", searchQuery)
	}
	appendPositions(params, youngest, oldest, "since_id", "max_id")
	params.Set("count", clampLimit(limit, twitterMaxTimelineItems))
	obj, err := c.http().GetObject(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(obj["statuses"], &items); err != nil {
		raw, _ := json.Marshal(obj)
		return nil, ErrParse("expected a 'statuses' array", raw, err)
	}
	return itemsToTimeline(items, c.activityFromStatus)
}

func (c *twitterConnection) SearchActors(ctx context.Context, limit int, searchQuery string) ([]domain.Actor, error) {
	path, err := c.apiPath(RoutineSearchActors)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if searchQuery != "" {
		params.Set("q", searchQuery)
	}
	params.Set("count", clampLimit(limit, twitterMaxTimelineItems))
	items, err := c.http().GetArray(ctx, addQuery(path, params))
	if err != nil {
		return nil, err
	}
	return itemsToActors(items, c.actorFromJSON)
}

func (c *twitterConnection) GetConversation(ctx context.Context, conversationOid string) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineGetConversation)
}

// GetConfig: the classic REST API exposes no usable limits endpoint,
// the documented constants are hardcoded.
func (c *twitterConnection) GetConfig(ctx context.Context) (OriginConfig, error) {
	return OriginConfig{TextLimit: twitterTextLimit, UploadLimit: twitterUploadLimit}, nil
}

func (c *twitterConnection) DownloadFile(ctx context.Context, uri string, w io.Writer) error {
	return c.http().Download(ctx, uri, w)
}

func (c *twitterConnection) ParseDate(stringDate string) int64 {
	return parseTwitterDate(stringDate)
}
