package connector

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jaller94/andstatus/domain"
)

// Connection is the capability interface every protocol adapter
// implements. All blocking operations take a context; cancelling it
// cancels the underlying exchange.
type Connection interface {
	// HasAPIEndpoint reports whether the routine is supported by this
	// backend. Unsupported routines fail fast with a capability error
	// before any network call.
	HasAPIEndpoint(routine ApiRoutine) bool

	GetTimeline(ctx context.Context, routine ApiRoutine, youngest, oldest domain.TimelinePosition,
		limit int, actor domain.Actor) ([]*domain.Activity, error)
	GetNote(ctx context.Context, noteOid string) (*domain.Activity, error)
	UpdateNote(ctx context.Context, note *domain.Note, inReplyToOid string,
		attachments []domain.Attachment) (*domain.Activity, error)
	DeleteNote(ctx context.Context, noteOid string) (bool, error)
	Like(ctx context.Context, noteOid string) (*domain.Activity, error)
	UndoLike(ctx context.Context, noteOid string) (*domain.Activity, error)
	Announce(ctx context.Context, noteOid string) (*domain.Activity, error)
	UndoAnnounce(ctx context.Context, noteOid string) (bool, error)
	Follow(ctx context.Context, actorOid string, follow bool) (*domain.Activity, error)
	GetFriends(ctx context.Context, actor domain.Actor) ([]domain.Actor, error)
	GetFollowers(ctx context.Context, actor domain.Actor) ([]domain.Actor, error)
	GetActor(ctx context.Context, actor domain.Actor) (domain.Actor, error)
	SearchNotes(ctx context.Context, youngest, oldest domain.TimelinePosition,
		limit int, searchQuery string) ([]*domain.Activity, error)
	SearchActors(ctx context.Context, limit int, searchQuery string) ([]domain.Actor, error)
	GetConversation(ctx context.Context, conversationOid string) ([]*domain.Activity, error)
	GetConfig(ctx context.Context) (OriginConfig, error)
	DownloadFile(ctx context.Context, uri string, w io.Writer) error

	// ParseDate converts an adapter-specific date string to canonical
	// epoch milliseconds. It never fails: unparsable dates resolve to 0.
	ParseDate(stringDate string) int64

	Data() *ConnectionData
}

// endpointTable maps supported routines to endpoint URL templates with
// %noteId%, %actorId%, %nickname% and %tag% placeholders.
type endpointTable map[ApiRoutine]string

// baseConnection carries the shared plumbing of all remote adapters:
// the capability table, placeholder substitution and query helpers.
type baseConnection struct {
	data      *ConnectionData
	endpoints endpointTable
}

func (c *baseConnection) Data() *ConnectionData {
	return c.data
}

func (c *baseConnection) HasAPIEndpoint(routine ApiRoutine) bool {
	return c.endpoints[routine] != ""
}

// apiPath resolves the routine's endpoint template against the origin.
// Absolute templates are used verbatim.
func (c *baseConnection) apiPath(routine ApiRoutine) (string, error) {
	template := c.endpoints[routine]
	if template == "" {
		return "", ErrUnsupported(routine)
	}
	return c.apiPathFromTemplate(template)
}

func (c *baseConnection) apiPathFromTemplate(template string) (string, error) {
	if strings.HasPrefix(template, "http://") || strings.HasPrefix(template, "https://") {
		return template, nil
	}
	if c.data.OriginURL == nil {
		return "", ErrBadRequest("no origin URL configured for %s", template)
	}
	return c.data.OriginURL.String() + "/" + template, nil
}

func (c *baseConnection) pathWithNoteID(routine ApiRoutine, noteOid string) (string, error) {
	if noteOid == "" {
		return "", ErrBadRequest("%s: noteId is required", routine)
	}
	path, err := c.apiPath(routine)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(path, "%noteId%", url.PathEscape(noteOid)), nil
}

func (c *baseConnection) pathWithActorID(routine ApiRoutine, actorOid string) (string, error) {
	if actorOid == "" {
		return "", ErrBadRequest("%s: actorId is required", routine)
	}
	path, err := c.apiPath(routine)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(path, "%actorId%", url.PathEscape(actorOid)), nil
}

func (c *baseConnection) pathWithTag(routine ApiRoutine, tag string) (string, error) {
	if tag == "" {
		return "", ErrBadRequest("%s: tag is required", routine)
	}
	path, err := c.apiPath(routine)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(path, "%tag%", url.PathEscape(tag)), nil
}

func (c *baseConnection) http() *Client {
	return c.data.HTTP
}

// addQuery appends query parameters to a path that may already carry
// some (Twitter templates embed tweet_mode=extended).
func addQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

// clampLimit clamps the requested item count to the backend's
// documented maximum and returns it as a query value.
func clampLimit(limit, max int) string {
	if limit <= 0 || limit > max {
		limit = max
	}
	return strconv.Itoa(limit)
}

// appendPositions adds the since/until cursors under the adapter's
// parameter names. The cursors stay opaque: whatever the adapter
// issued earlier is passed back verbatim.
func appendPositions(params url.Values, youngest, oldest domain.TimelinePosition, sinceName, maxName string) {
	if !youngest.IsEmpty() {
		params.Set(sinceName, youngest.Position)
	}
	if !oldest.IsEmpty() {
		params.Set(maxName, oldest.Position)
	}
}

var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
}

// parseIso8601Date parses an ISO8601 date to epoch milliseconds,
// 0 when unparsable.
func parseIso8601Date(stringDate string) int64 {
	if stringDate == "" {
		return 0
	}
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, stringDate); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// parseTwitterDate parses the classic REST date format
// ("Wed Nov 27 09:27:01 -0300 2013") to epoch milliseconds, falling
// back to ISO8601, 0 when unparsable.
func parseTwitterDate(stringDate string) int64 {
	if stringDate == "" {
		return 0
	}
	if t, err := time.Parse("Mon Jan 02 15:04:05 -0700 2006", stringDate); err == nil {
		return t.UnixMilli()
	}
	return parseIso8601Date(stringDate)
}

// itemsToTimeline parses each raw item with the adapter's item parser.
// A single malformed item is skipped and logged rather than aborting
// the whole list parse.
func itemsToTimeline(items []json.RawMessage, parse func(json.RawMessage) (*domain.Activity, error)) ([]*domain.Activity, error) {
	timeline := make([]*domain.Activity, 0, len(items))
	for ind, item := range items {
		activity, err := parse(item)
		if err != nil {
			log.Printf("Connector: skipping malformed timeline item #%d: %v", ind, err)
			continue
		}
		if activity.NonEmpty() {
			timeline = append(timeline, activity)
		}
	}
	return timeline, nil
}

// itemsToActors parses each raw item with the adapter's actor parser,
// skipping malformed entries.
func itemsToActors(items []json.RawMessage, parse func(json.RawMessage) (domain.Actor, error)) ([]domain.Actor, error) {
	actors := make([]domain.Actor, 0, len(items))
	for ind, item := range items {
		actor, err := parse(item)
		if err != nil {
			log.Printf("Connector: skipping malformed actor item #%d: %v", ind, err)
			continue
		}
		if actor.NonEmpty() {
			actors = append(actors, actor)
		}
	}
	return actors, nil
}

// jsonString decodes a raw JSON value as a string, empty when absent
// or not a string.
func jsonString(raw map[string]json.RawMessage, key string) string {
	var s string
	if err := json.Unmarshal(raw[key], &s); err != nil {
		return ""
	}
	return s
}
