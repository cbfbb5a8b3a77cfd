package service

import (
	"context"
	"io"

	"github.com/jaller94/andstatus/connector"
	"github.com/jaller94/andstatus/domain"
	"github.com/jaller94/andstatus/util"
)

// descriptionLimit caps the stored plain-text summary of a posted note.
const descriptionLimit = 80

// ConnectionSupplier resolves the adapter for an account name. The db
// layer implements it over the stored accounts.
type ConnectionSupplier interface {
	ConnectionFor(accountName string) (connector.Connection, error)
}

// Executor turns a dequeued command into exactly one adapter call.
type Executor struct {
	connections   ConnectionSupplier
	timelineLimit int
}

func NewExecutor(connections ConnectionSupplier, timelineLimit int) *Executor {
	if timelineLimit <= 0 {
		timelineLimit = 40
	}
	return &Executor{connections: connections, timelineLimit: timelineLimit}
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// Execute runs the command against its account's adapter and returns
// the number of items downloaded.
func (e *Executor) Execute(ctx context.Context, cmd *CommandData) (int, error) {
	conn, err := e.connections.ConnectionFor(cmd.AccountName)
	if err != nil {
		return 0, err
	}

	switch cmd.Command {
	case CommandGetTimeline:
		activities, err := conn.GetTimeline(ctx, cmd.Timeline.Type.Routine(),
			domain.EmptyPosition, domain.EmptyPosition, e.timelineLimit,
			domain.ActorFromOid(cmd.Timeline.ActorOid))
		return len(activities), err
	case CommandGetNote:
		_, err := conn.GetNote(ctx, cmd.ItemID)
		return counted(err), err
	case CommandUpdateNote:
		note := &domain.Note{Content: cmd.Body}
		if cmd.Description == "" {
			cmd.Description = util.TrimTextAt(util.HtmlToPlainText(cmd.Body), descriptionLimit)
		}
		var attachments []domain.Attachment
		if cmd.MediaURI != "" {
			attachments = append(attachments, domain.AttachmentFromURI(cmd.MediaURI))
		}
		_, err := conn.UpdateNote(ctx, note, cmd.InReplyToOid, attachments)
		return counted(err), err
	case CommandDeleteNote:
		_, err := conn.DeleteNote(ctx, cmd.ItemID)
		return counted(err), err
	case CommandLike:
		_, err := conn.Like(ctx, cmd.ItemID)
		return counted(err), err
	case CommandUndoLike:
		_, err := conn.UndoLike(ctx, cmd.ItemID)
		return counted(err), err
	case CommandAnnounce:
		_, err := conn.Announce(ctx, cmd.ItemID)
		return counted(err), err
	case CommandUndoAnnounce:
		_, err := conn.UndoAnnounce(ctx, cmd.ItemID)
		return counted(err), err
	case CommandFollow:
		_, err := conn.Follow(ctx, cmd.ItemID, true)
		return counted(err), err
	case CommandUndoFollow:
		_, err := conn.Follow(ctx, cmd.ItemID, false)
		return counted(err), err
	case CommandGetActor:
		_, err := conn.GetActor(ctx, domain.Actor{Oid: cmd.ItemID, Username: cmd.Username})
		return counted(err), err
	case CommandGetFriends:
		actors, err := conn.GetFriends(ctx, domain.ActorFromOid(cmd.ItemID))
		return len(actors), err
	case CommandGetFollowers:
		actors, err := conn.GetFollowers(ctx, domain.ActorFromOid(cmd.ItemID))
		return len(actors), err
	case CommandGetConversation:
		activities, err := conn.GetConversation(ctx, cmd.ItemID)
		return len(activities), err
	case CommandSearchNotes:
		activities, err := conn.SearchNotes(ctx, domain.EmptyPosition, domain.EmptyPosition,
			e.timelineLimit, cmd.Timeline.SearchQuery)
		return len(activities), err
	case CommandSearchActors:
		actors, err := conn.SearchActors(ctx, e.timelineLimit, cmd.Timeline.SearchQuery)
		return len(actors), err
	case CommandGetConfig:
		_, err := conn.GetConfig(ctx)
		return counted(err), err
	case CommandDownloadFile:
		var w countingWriter
		err := conn.DownloadFile(ctx, cmd.ItemID, io.Writer(&w))
		return counted(err), err
	case CommandRateLimitStatus:
		rate := conn.Data().HTTP.LastRateLimit()
		cmd.Result.RateLimitRemaining = rate.Remaining
		cmd.Result.RateLimitLimit = rate.Limit
		return 0, nil
	default:
		return 0, connector.ErrBadRequest("unknown command %q", cmd.Command)
	}
}

func counted(err error) int {
	if err != nil {
		return 0
	}
	return 1
}
