package connector

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jaller94/andstatus/domain"
)

// localConnection backs origins without a remote service. Its
// capability table is empty, so every remote operation fails fast
// before any network attempt; only local file downloads succeed.
type localConnection struct {
	baseConnection
}

func newLocalConnection(data *ConnectionData) *localConnection {
	return &localConnection{baseConnection{data: data, endpoints: endpointTable{}}}
}

func (c *localConnection) GetTimeline(ctx context.Context, routine ApiRoutine, youngest, oldest domain.TimelinePosition,
	limit int, actor domain.Actor) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(routine)
}

func (c *localConnection) GetNote(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineGetNote)
}

func (c *localConnection) UpdateNote(ctx context.Context, note *domain.Note, inReplyToOid string,
	attachments []domain.Attachment) (*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineUpdateNote)
}

func (c *localConnection) DeleteNote(ctx context.Context, noteOid string) (bool, error) {
	return false, ErrUnsupported(RoutineDeleteNote)
}

func (c *localConnection) Like(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineLike)
}

func (c *localConnection) UndoLike(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineUndoLike)
}

func (c *localConnection) Announce(ctx context.Context, noteOid string) (*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineAnnounce)
}

func (c *localConnection) UndoAnnounce(ctx context.Context, noteOid string) (bool, error) {
	return false, ErrUnsupported(RoutineUndoAnnounce)
}

func (c *localConnection) Follow(ctx context.Context, actorOid string, follow bool) (*domain.Activity, error) {
	if follow {
		return nil, ErrUnsupported(RoutineFollow)
	}
	return nil, ErrUnsupported(RoutineUndoFollow)
}

func (c *localConnection) GetFriends(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return nil, ErrUnsupported(RoutineGetFriends)
}

func (c *localConnection) GetFollowers(ctx context.Context, actor domain.Actor) ([]domain.Actor, error) {
	return nil, ErrUnsupported(RoutineGetFollowers)
}

func (c *localConnection) GetActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	return domain.EmptyActor, ErrUnsupported(RoutineGetActor)
}

func (c *localConnection) SearchNotes(ctx context.Context, youngest, oldest domain.TimelinePosition,
	limit int, searchQuery string) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineSearchNotes)
}

func (c *localConnection) SearchActors(ctx context.Context, limit int, searchQuery string) ([]domain.Actor, error) {
	return nil, ErrUnsupported(RoutineSearchActors)
}

func (c *localConnection) GetConversation(ctx context.Context, conversationOid string) ([]*domain.Activity, error) {
	return nil, ErrUnsupported(RoutineGetConversation)
}

func (c *localConnection) GetConfig(ctx context.Context) (OriginConfig, error) {
	return OriginConfig{}, nil
}

// DownloadFile copies a local file into w. Remote URIs are not served
// by this origin.
func (c *localConnection) DownloadFile(ctx context.Context, uri string, w io.Writer) error {
	path := strings.TrimPrefix(uri, "file://")
	if path == "" || strings.Contains(path, "://") {
		return ErrBadRequest("%s: not a local file: %s", RoutineDownloadFile, uri)
	}
	f, err := os.Open(path)
	if err != nil {
		return ErrHard(fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return ErrHard(fmt.Sprintf("reading %s", path), err)
	}
	return nil
}

func (c *localConnection) ParseDate(stringDate string) int64 {
	return parseIso8601Date(stringDate)
}
