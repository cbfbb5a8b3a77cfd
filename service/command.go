package service

import (
	"strconv"

	"github.com/jaller94/andstatus/connector"
	"github.com/jaller94/andstatus/util"
)

// CommandEnum is the persisted code of a background operation.
type CommandEnum string

const (
	CommandEmpty           CommandEnum = ""
	CommandGetTimeline     CommandEnum = "get-timeline"
	CommandGetNote         CommandEnum = "get-status"
	CommandUpdateNote      CommandEnum = "update-status"
	CommandDeleteNote      CommandEnum = "destroy-status"
	CommandLike            CommandEnum = "create-favorite"
	CommandUndoLike        CommandEnum = "destroy-favorite"
	CommandAnnounce        CommandEnum = "reblog"
	CommandUndoAnnounce    CommandEnum = "destroy-reblog"
	CommandFollow          CommandEnum = "follow-actor"
	CommandUndoFollow      CommandEnum = "stop-following-actor"
	CommandGetActor        CommandEnum = "get-actor"
	CommandGetFriends      CommandEnum = "get-friends"
	CommandGetFollowers    CommandEnum = "get-followers"
	CommandGetConversation CommandEnum = "get-conversation"
	CommandSearchNotes     CommandEnum = "search-notes"
	CommandSearchActors    CommandEnum = "search-actors"
	CommandGetConfig       CommandEnum = "get-config"
	CommandDownloadFile    CommandEnum = "fetch-attachment"
	CommandRateLimitStatus CommandEnum = "rate-limit-status"
)

// Priority orders commands within equal foreground status: lower runs
// first. User-initiated writes outrank fetches, bulk downloads run
// last.
func (c CommandEnum) Priority() int {
	switch c {
	case CommandUpdateNote, CommandDeleteNote, CommandLike, CommandUndoLike,
		CommandAnnounce, CommandUndoAnnounce, CommandFollow, CommandUndoFollow:
		return 0
	case CommandGetNote, CommandGetActor, CommandGetConversation:
		return 1
	case CommandGetTimeline, CommandSearchNotes, CommandSearchActors,
		CommandGetFriends, CommandGetFollowers:
		return 2
	default:
		return 3
	}
}

// TimelineType scopes a timeline-fetching command.
type TimelineType string

const (
	TimelineEmpty         TimelineType = ""
	TimelineHome          TimelineType = "home"
	TimelineNotifications TimelineType = "notifications"
	TimelineLiked         TimelineType = "liked"
	TimelinePublic        TimelineType = "public"
	TimelineTag           TimelineType = "tag"
	TimelineActor         TimelineType = "actor"
	TimelineSearch        TimelineType = "search"
)

// Routine maps the timeline type onto the capability registry.
func (t TimelineType) Routine() connector.ApiRoutine {
	switch t {
	case TimelineHome:
		return connector.RoutineHomeTimeline
	case TimelineNotifications:
		return connector.RoutineNotificationsTimeline
	case TimelineLiked:
		return connector.RoutineLikedTimeline
	case TimelinePublic:
		return connector.RoutinePublicTimeline
	case TimelineTag:
		return connector.RoutineTagTimeline
	case TimelineActor:
		return connector.RoutineActorTimeline
	case TimelineSearch:
		return connector.RoutineSearchNotes
	default:
		return connector.RoutineGetConfig
	}
}

// Timeline is the scope descriptor of a timeline command: the type plus
// the actor and search query it is keyed by. It takes part in command
// deduplication.
type Timeline struct {
	Type        TimelineType
	ActorOid    string
	SearchQuery string
}

func (t Timeline) IsEmpty() bool {
	return t.Type == TimelineEmpty && t.ActorOid == "" && t.SearchQuery == ""
}

// CommandKey is the dedup tuple: two commands with the same key are the
// same queued work regardless of their retry or result state.
type CommandKey struct {
	Command     CommandEnum
	AccountName string
	Timeline    Timeline
	ItemID      string
}

// CommandData is one queued unit of background work, serializable to a
// property bag for persistence.
type CommandData struct {
	CommandID    int64
	Command      CommandEnum
	AccountName  string
	Timeline     Timeline
	ItemID       string
	Username     string
	Description  string
	Foreground   bool
	ManualLaunch bool
	CreatedDate  int64

	// Body and InReplyToOid feed note-updating commands.
	Body         string
	InReplyToOid string
	MediaURI     string

	Result CommandResult
}

// NewCommand creates a fresh PENDING command. The id doubles as the
// creation-order tie breaker, so it is unique by construction.
func NewCommand(command CommandEnum, accountName string) *CommandData {
	id := util.UniqueCurrentTimeMS()
	return &CommandData{
		CommandID:   id,
		Command:     command,
		AccountName: accountName,
		CreatedDate: id,
	}
}

func (d *CommandData) Key() CommandKey {
	return CommandKey{
		Command:     d.Command,
		AccountName: d.AccountName,
		Timeline:    d.Timeline,
		ItemID:      d.ItemID,
	}
}

// EqualsDedup reports queue-equality: result and retry state are
// excluded so a resubmitted duplicate of in-flight work is discarded.
func (d *CommandData) EqualsDedup(other *CommandData) bool {
	return other != nil && d.Key() == other.Key()
}

// Compare defines the total dequeue order: foreground before
// background, then ascending priority, then ascending command id.
func (d *CommandData) Compare(other *CommandData) int {
	if d.Foreground != other.Foreground {
		if d.Foreground {
			return -1
		}
		return 1
	}
	if p1, p2 := d.Command.Priority(), other.Command.Priority(); p1 != p2 {
		if p1 < p2 {
			return -1
		}
		return 1
	}
	switch {
	case d.CommandID < other.CommandID:
		return -1
	case d.CommandID > other.CommandID:
		return 1
	default:
		return 0
	}
}

// Property bag keys, the persisted form of a queued command.
const (
	propCommand       = "command"
	propCommandID     = "commandId"
	propAccountName   = "accountName"
	propTimelineType  = "timelineType"
	propTimelineActor = "timelineActorId"
	propSearchQuery   = "searchQuery"
	propItemID        = "itemId"
	propUsername      = "username"
	propDescription   = "description"
	propForeground    = "inForeground"
	propManualLaunch  = "manuallyLaunched"
	propCreatedDate   = "createdDate"
	propBody          = "body"
	propInReplyTo     = "inReplyToId"
	propMediaURI      = "mediaUri"
)

// ToProperties serializes the command, result snapshot included, into
// an opaque key/value bag.
func (d *CommandData) ToProperties() map[string]string {
	bag := map[string]string{
		propCommand:     string(d.Command),
		propCommandID:   strconv.FormatInt(d.CommandID, 10),
		propAccountName: d.AccountName,
		propCreatedDate: strconv.FormatInt(d.CreatedDate, 10),
	}
	putNonEmpty := func(key, value string) {
		if value != "" {
			bag[key] = value
		}
	}
	putNonEmpty(propTimelineType, string(d.Timeline.Type))
	putNonEmpty(propTimelineActor, d.Timeline.ActorOid)
	putNonEmpty(propSearchQuery, d.Timeline.SearchQuery)
	putNonEmpty(propItemID, d.ItemID)
	putNonEmpty(propUsername, d.Username)
	putNonEmpty(propDescription, d.Description)
	putNonEmpty(propBody, d.Body)
	putNonEmpty(propInReplyTo, d.InReplyToOid)
	putNonEmpty(propMediaURI, d.MediaURI)
	if d.Foreground {
		bag[propForeground] = "true"
	}
	if d.ManualLaunch {
		bag[propManualLaunch] = "true"
	}
	d.Result.toProperties(bag)
	return bag
}

// CommandFromProperties restores a command from its property bag.
// Unknown keys are ignored, missing ones resolve to zero values.
func CommandFromProperties(bag map[string]string) *CommandData {
	d := &CommandData{
		Command:     CommandEnum(bag[propCommand]),
		AccountName: bag[propAccountName],
		Timeline: Timeline{
			Type:        TimelineType(bag[propTimelineType]),
			ActorOid:    bag[propTimelineActor],
			SearchQuery: bag[propSearchQuery],
		},
		ItemID:       bag[propItemID],
		Username:     bag[propUsername],
		Description:  bag[propDescription],
		Foreground:   bag[propForeground] == "true",
		ManualLaunch: bag[propManualLaunch] == "true",
		Body:         bag[propBody],
		InReplyToOid: bag[propInReplyTo],
		MediaURI:     bag[propMediaURI],
	}
	d.CommandID, _ = strconv.ParseInt(bag[propCommandID], 10, 64)
	d.CreatedDate, _ = strconv.ParseInt(bag[propCreatedDate], 10, 64)
	if d.CommandID == 0 {
		d.CommandID = util.UniqueCurrentTimeMS()
	}
	if d.CreatedDate == 0 {
		d.CreatedDate = d.CommandID
	}
	d.Result = resultFromProperties(bag)
	return d
}
