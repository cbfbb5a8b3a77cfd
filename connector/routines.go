package connector

// ApiRoutine enumerates the abstract operations of the capability
// registry. Each adapter declares which routines it supports and the
// concrete endpoint template for each.
type ApiRoutine int

const (
	RoutineGetConfig ApiRoutine = iota
	RoutineHomeTimeline
	RoutineNotificationsTimeline
	RoutineLikedTimeline
	RoutinePublicTimeline
	RoutineTagTimeline
	RoutineActorTimeline
	RoutineVerifyCredentials
	RoutineUpdateNote
	RoutineDeleteNote
	RoutineUploadMedia
	RoutineGetNote
	RoutineSearchNotes
	RoutineSearchActors
	RoutineGetConversation
	RoutineLike
	RoutineUndoLike
	RoutineFollow
	RoutineUndoFollow
	RoutineGetFollowers
	RoutineGetFriends
	RoutineGetActor
	RoutineAnnounce
	RoutineUndoAnnounce
	RoutineRateLimitStatus
	RoutineDownloadFile
)

func (r ApiRoutine) String() string {
	switch r {
	case RoutineGetConfig:
		return "GET_CONFIG"
	case RoutineHomeTimeline:
		return "HOME_TIMELINE"
	case RoutineNotificationsTimeline:
		return "NOTIFICATIONS_TIMELINE"
	case RoutineLikedTimeline:
		return "LIKED_TIMELINE"
	case RoutinePublicTimeline:
		return "PUBLIC_TIMELINE"
	case RoutineTagTimeline:
		return "TAG_TIMELINE"
	case RoutineActorTimeline:
		return "ACTOR_TIMELINE"
	case RoutineVerifyCredentials:
		return "ACCOUNT_VERIFY_CREDENTIALS"
	case RoutineUpdateNote:
		return "UPDATE_NOTE"
	case RoutineDeleteNote:
		return "DELETE_NOTE"
	case RoutineUploadMedia:
		return "UPLOAD_MEDIA"
	case RoutineGetNote:
		return "GET_NOTE"
	case RoutineSearchNotes:
		return "SEARCH_NOTES"
	case RoutineSearchActors:
		return "SEARCH_ACTORS"
	case RoutineGetConversation:
		return "GET_CONVERSATION"
	case RoutineLike:
		return "LIKE"
	case RoutineUndoLike:
		return "UNDO_LIKE"
	case RoutineFollow:
		return "FOLLOW"
	case RoutineUndoFollow:
		return "UNDO_FOLLOW"
	case RoutineGetFollowers:
		return "GET_FOLLOWERS"
	case RoutineGetFriends:
		return "GET_FRIENDS"
	case RoutineGetActor:
		return "GET_ACTOR"
	case RoutineAnnounce:
		return "ANNOUNCE"
	case RoutineUndoAnnounce:
		return "UNDO_ANNOUNCE"
	case RoutineRateLimitStatus:
		return "RATE_LIMIT_STATUS"
	case RoutineDownloadFile:
		return "DOWNLOAD_FILE"
	default:
		return "UNKNOWN"
	}
}
