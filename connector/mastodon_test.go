package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jaller94/andstatus/domain"
)

const mastodonAccountJSON = `{
	"id": "32",
	"username": "somebody",
	"acct": "somebody",
	"display_name": "Some Body",
	"note": "<p>Tooting around</p>",
	"url": "https://social.example.org/@somebody",
	"avatar": "https://social.example.org/avatars/32.png",
	"header": "https://social.example.org/headers/32.png",
	"followers_count": 14,
	"following_count": 7,
	"statuses_count": 291,
	"created_at": "2017-04-16T11:13:12.000Z",
	"fields": [
		{"name": "Website", "value": "https://some.body"},
		{"name": "Pronouns", "value": "they/them"}
	]
}`

func mastodonStatusJSON(id string) string {
	return `{
		"id": "` + id + `",
		"created_at": "2017-04-16T11:13:12.000Z",
		"in_reply_to_id": null,
		"in_reply_to_account_id": null,
		"sensitive": false,
		"spoiler_text": "",
		"url": "https://social.example.org/@somebody/` + id + `",
		"content": "<p>Hello fediverse</p>",
		"favourited": true,
		"account": ` + mastodonAccountJSON + `,
		"media_attachments": [{
			"type": "image",
			"url": "https://files.example.org/media/original.png",
			"preview_url": "https://files.example.org/media/small.png",
			"remote_url": null
		}]
	}`
}

func newTestMastodon(t *testing.T, server *httptest.Server) *mastodonConnection {
	return newMastodonConnection(testData(t, server, OriginMastodon))
}

func TestMastodonActorParsing(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)

	actor, err := conn.actorFromJSON(json.RawMessage(mastodonAccountJSON))
	if err != nil {
		t.Fatalf("Failed to parse account: %v", err)
	}
	if actor.Oid != "32" {
		t.Errorf("Expected oid '32', got '%s'", actor.Oid)
	}
	if actor.Username != "somebody" {
		t.Errorf("Expected username 'somebody', got '%s'", actor.Username)
	}
	if actor.FollowersCount != 14 || actor.FollowingCount != 7 || actor.NotesCount != 291 {
		t.Errorf("Unexpected counts: %d/%d/%d", actor.FollowersCount, actor.FollowingCount, actor.NotesCount)
	}
	wantSummary := "<p>Tooting around</p>\n<br>Website: https://some.body\n<br>Pronouns: they/them"
	if actor.Summary != wantSummary {
		t.Errorf("Expected summary '%s', got '%s'", wantSummary, actor.Summary)
	}
	if actor.CreatedDate == 0 {
		t.Error("Expected created date to parse")
	}
}

func TestMastodonStatusParsing(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)

	activity, err := conn.activityFromItem(json.RawMessage(mastodonStatusJSON("1042")))
	if err != nil {
		t.Fatalf("Failed to parse status: %v", err)
	}
	if activity.Type != domain.ActivityUpdate {
		t.Errorf("Expected UPDATE, got %s", activity.Type)
	}
	note := activity.GetNote()
	if note.Content != "<p>Hello fediverse</p>" {
		t.Errorf("Expected content, got '%s'", note.Content)
	}
	if note.FavoritedBy != domain.TriTrue {
		t.Errorf("Expected favorited TRUE, got %s", note.FavoritedBy)
	}
	if len(note.Attachments) != 1 {
		t.Fatalf("Expected 1 attachment after preview folding, got %d", len(note.Attachments))
	}
	att := note.Attachments[0]
	if att.URI != "https://files.example.org/media/original.png" {
		t.Errorf("Expected full-resolution URI, got '%s'", att.URI)
	}
	if att.Preview == nil || att.Preview.URI != "https://files.example.org/media/small.png" {
		t.Errorf("Expected folded preview, got %+v", att.Preview)
	}
}

func TestMastodonNotificationDisambiguation(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)

	cases := []struct {
		notificationType string
		activityType     domain.ActivityType
	}{
		{"favourite", domain.ActivityLike},
		{"reblog", domain.ActivityAnnounce},
		{"follow", domain.ActivityFollow},
		{"mention", domain.ActivityUpdate},
		{"admin.sign_up", domain.ActivityEmpty},
	}
	for _, c := range cases {
		item := `{
			"id": "4772",
			"type": "` + c.notificationType + `",
			"created_at": "2017-04-16T11:13:12.000Z",
			"account": ` + mastodonAccountJSON + `,
			"status": ` + mastodonStatusJSON("1042") + `
		}`
		activity, err := conn.activityFromItem(json.RawMessage(item))
		if err != nil {
			t.Fatalf("Failed to parse %s notification: %v", c.notificationType, err)
		}
		if activity.Type != c.activityType {
			t.Errorf("Expected %s for type %q, got %s", c.activityType, c.notificationType, activity.Type)
		}
		if activity.Oid != "4772" {
			t.Errorf("Expected notification oid '4772', got '%s'", activity.Oid)
		}
		if activity.Actor.Username != "somebody" {
			t.Errorf("Expected the notifier as actor, got '%s'", activity.Actor.Username)
		}
	}
}

func TestMastodonNotificationWrapsStatus(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)

	item := `{
		"id": "4773",
		"type": "favourite",
		"created_at": "2017-04-16T11:13:12.000Z",
		"account": ` + mastodonAccountJSON + `,
		"status": ` + mastodonStatusJSON("1042") + `
	}`
	activity, err := conn.activityFromItem(json.RawMessage(item))
	if err != nil {
		t.Fatalf("Failed to parse notification: %v", err)
	}
	if activity.ObjectType() != domain.ObjectActivity {
		t.Fatalf("Expected a wrapped activity object, got %s", activity.ObjectType())
	}
	if note := activity.GetNote(); note == nil || note.Oid != "1042" {
		t.Errorf("Expected wrapped note '1042', got %+v", note)
	}
}

func TestMastodonReplyLinkage(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)

	status := `{
		"id": "1050",
		"created_at": "2017-04-16T12:00:00.000Z",
		"in_reply_to_id": "1042",
		"in_reply_to_account_id": "32",
		"content": "<p>replying</p>",
		"account": ` + mastodonAccountJSON + `
	}`
	activity, err := conn.activityFromStatus(json.RawMessage(status))
	if err != nil {
		t.Fatalf("Failed to parse reply: %v", err)
	}
	note := activity.GetNote()
	if !note.IsReply() {
		t.Fatal("Expected a reply placeholder")
	}
	if note.InReplyTo.Oid != "1042" {
		t.Errorf("Expected reply-to oid '1042', got '%s'", note.InReplyTo.Oid)
	}
	if note.InReplyTo.Actor.Oid != "32" {
		t.Errorf("Expected reply-to author '32', got '%s'", note.InReplyTo.Actor.Oid)
	}
	if note.InReplyTo.Note == nil || note.InReplyTo.Note.Content != "" {
		t.Error("Expected the placeholder to carry no content")
	}
}

func TestMastodonUpdateNoteWithUpload(t *testing.T) {
	var mediaUploaded bool
	var statusPayload map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/media", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected part name 'file': %v", err)
		}
		mediaUploaded = true
		w.Write([]byte(`{"id": "9999", "type": "image"}`))
	})
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&statusPayload); err != nil {
			t.Errorf("Failed to decode status payload: %v", err)
		}
		w.Write([]byte(mastodonStatusJSON("1060")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	tmp := t.TempDir() + "/pic.png"
	if err := writeTempFile(tmp); err != nil {
		t.Fatal(err)
	}
	note := &domain.Note{Content: "with a picture", Summary: "cw", Sensitive: true}
	activity, err := conn.UpdateNote(context.Background(), note, "",
		[]domain.Attachment{domain.AttachmentFromURI(tmp)})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if !mediaUploaded {
		t.Error("Expected the media upload phase to run first")
	}
	if activity.Oid != "1060" {
		t.Errorf("Expected posted status '1060', got '%s'", activity.Oid)
	}
	ids, ok := statusPayload["media_ids"].([]interface{})
	if !ok || len(ids) != 1 || ids[0] != "9999" {
		t.Errorf("Expected media_ids ['9999'], got %v", statusPayload["media_ids"])
	}
	if statusPayload["spoiler_text"] != "cw" {
		t.Errorf("Expected spoiler_text 'cw', got %v", statusPayload["spoiler_text"])
	}
	if _, present := statusPayload["in_reply_to_id"]; present {
		t.Error("Expected no in_reply_to_id for a top-level status")
	}
}

func TestMastodonUpdateNoteSkipsRemoteAttachments(t *testing.T) {
	var statusPayload map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/media", func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no upload for a remotely hosted attachment")
	})
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&statusPayload)
		w.Write([]byte(mastodonStatusJSON("1061")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	_, err := conn.UpdateNote(context.Background(), &domain.Note{Content: "linked"}, "",
		[]domain.Attachment{domain.AttachmentFromURI("https://files.example.org/remote.png")})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if _, present := statusPayload["media_ids"]; present {
		t.Error("Expected no media_ids when the attachment is only referenced")
	}
}

func TestMastodonFollowRelationship(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/32/follow", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "32", "following": true, "followed_by": false}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	activity, err := conn.Follow(context.Background(), "32", true)
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if activity.Type != domain.ActivityFollow {
		t.Errorf("Expected FOLLOW, got %s", activity.Type)
	}
	if activity.ObjActor.Oid != "32" {
		t.Errorf("Expected object actor '32', got '%s'", activity.ObjActor.Oid)
	}
}

func TestMastodonFollowContradictedBecomesUpdate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/32/unfollow", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "32", "following": true}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	activity, err := conn.Follow(context.Background(), "32", false)
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if activity.Type != domain.ActivityUpdate {
		t.Errorf("Expected UPDATE when the relationship contradicts the request, got %s", activity.Type)
	}
}

func TestMastodonGetConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/1042/context", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"ancestors": [` + mastodonStatusJSON("1040") + `],
			"descendants": [` + mastodonStatusJSON("1043") + `, ` + mastodonStatusJSON("1044") + `]
		}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	activities, err := conn.GetConversation(context.Background(), "1042")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(activities) != 3 {
		t.Fatalf("Expected 3 activities, got %d", len(activities))
	}
	if activities[0].Oid != "1040" {
		t.Errorf("Expected ancestors first, got '%s'", activities[0].Oid)
	}
}

func TestMastodonGetConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/instance", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uri": "social.example.org", "max_toot_chars": 5000}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	config, err := conn.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.TextLimit != 5000 {
		t.Errorf("Expected text limit 5000, got %d", config.TextLimit)
	}
}

func TestMastodonGetConfigDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/instance", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uri": "social.example.org"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	config, err := conn.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.TextLimit != mastodonTextLimitDefault {
		t.Errorf("Expected default text limit %d, got %d", mastodonTextLimitDefault, config.TextLimit)
	}
}

func TestMastodonSearchNotesEmptyQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no network call for an empty query")
	}))
	defer server.Close()
	conn := newTestMastodon(t, server)

	activities, err := conn.SearchNotes(context.Background(), domain.EmptyPosition, domain.EmptyPosition, 20, "")
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if len(activities) != 0 {
		t.Errorf("Expected empty result, got %d", len(activities))
	}
}

func TestMastodonTimelineSkipsMalformedItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timelines/home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[` + mastodonStatusJSON("1042") + `, {"content": "no id"}, ` + mastodonStatusJSON("1043") + `]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestMastodon(t, server)

	activities, err := conn.GetTimeline(context.Background(), RoutineHomeTimeline,
		domain.EmptyPosition, domain.EmptyPosition, 20, domain.EmptyActor)
	if err != nil {
		t.Fatalf("GetTimeline failed: %v", err)
	}
	if len(activities) != 2 {
		t.Errorf("Expected the malformed item to be skipped, got %d activities", len(activities))
	}
}

func TestMastodonDeleteNoteUnsupported(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestMastodon(t, server)
	_, err := conn.DeleteNote(context.Background(), "1042")
	if StatusOf(err) != StatusUnsupportedAPI {
		t.Errorf("Expected UNSUPPORTED_API, got %v", err)
	}
}

func TestExtractSummary(t *testing.T) {
	got := extractSummary("bio", nil)
	if got != "bio" {
		t.Errorf("Expected 'bio', got '%s'", got)
	}
	got = extractSummary("", []mastodonField{{Name: "a", Value: "1"}})
	if got != "a: 1" {
		t.Errorf("Expected 'a: 1', got '%s'", got)
	}
	got = extractSummary("bio", []mastodonField{{Name: "a", Value: "1"}, {}})
	if !strings.Contains(got, "bio") || !strings.Contains(got, "a: 1") || strings.Contains(got, ": \n") {
		t.Errorf("Unexpected combined summary '%s'", got)
	}
}
