package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jaller94/andstatus/domain"
)

const twitterUserJSON = `{
	"id": 144771645,
	"id_str": "144771645",
	"screen_name": "exampler",
	"name": "Example R",
	"description": "testing things",
	"location": "Earth",
	"url": "https://example.org",
	"profile_image_url_https": "https://pbs.example.org/profile.png",
	"profile_banner_url": "https://pbs.example.org/banner.png",
	"followers_count": 5,
	"friends_count": 11,
	"statuses_count": 203,
	"favourites_count": 7,
	"created_at": "Wed Nov 18 09:12:23 +0000 2009",
	"following": true
}`

func twitterStatusJSON(id, text string) string {
	return `{
		"id_str": "` + id + `",
		"full_text": "` + text + `",
		"created_at": "Wed Nov 18 09:12:23 +0000 2009",
		"possibly_sensitive": false,
		"source": "web",
		"favorited": false,
		"user": ` + twitterUserJSON + `
	}`
}

func newTestTwitter(t *testing.T, server *httptest.Server) *twitterConnection {
	return newTwitterConnection(testData(t, server, OriginTwitter))
}

func TestTwitterActorParsing(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	actor, err := conn.actorFromJSON(json.RawMessage(twitterUserJSON))
	if err != nil {
		t.Fatalf("Failed to parse user: %v", err)
	}
	if actor.Oid != "144771645" {
		t.Errorf("Expected oid '144771645', got '%s'", actor.Oid)
	}
	if actor.Username != "exampler" {
		t.Errorf("Expected username 'exampler', got '%s'", actor.Username)
	}
	if actor.AvatarURL != "https://pbs.example.org/profile.png" {
		t.Errorf("Expected https avatar, got '%s'", actor.AvatarURL)
	}
	if actor.Endpoint(domain.EndpointBanner) != "https://pbs.example.org/banner.png" {
		t.Errorf("Expected banner endpoint, got '%s'", actor.Endpoint(domain.EndpointBanner))
	}
	if actor.IsMyFriend != domain.TriTrue {
		t.Errorf("Expected following TRUE, got %s", actor.IsMyFriend)
	}
	if actor.CreatedDate == 0 {
		t.Error("Expected created date to parse")
	}
}

func TestTwitterActorWithoutUsernameIsParseError(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	_, err := conn.actorFromJSON(json.RawMessage(`{"id_str": "1"}`))
	if StatusOf(err) != StatusParseError {
		t.Fatalf("Expected PARSE_ERROR, got %v", err)
	}
	var connErr *ConnError
	if !errors.As(err, &connErr) || connErr.Payload == "" {
		t.Error("Expected the parse error to carry the offending payload")
	}
}

func TestTwitterStatusFullText(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	activity, err := conn.activityFromStatus(json.RawMessage(twitterStatusJSON("1001", "the full text")))
	if err != nil {
		t.Fatalf("Failed to parse status: %v", err)
	}
	if activity.Type != domain.ActivityUpdate {
		t.Errorf("Expected UPDATE, got %s", activity.Type)
	}
	if got := activity.GetNote().Content; got != "the full text" {
		t.Errorf("Expected full_text content, got '%s'", got)
	}
	if activity.GetNote().FavoritedBy != domain.TriFalse {
		t.Errorf("Expected favorited FALSE, got %s", activity.GetNote().FavoritedBy)
	}
}

func TestTwitterRetweetBecomesAnnounce(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	status := `{
		"id_str": "2001",
		"created_at": "Wed Nov 18 10:00:00 +0000 2009",
		"user": ` + twitterUserJSON + `,
		"retweeted_status": ` + twitterStatusJSON("1001", "the original") + `
	}`
	activity, err := conn.activityFromStatus(json.RawMessage(status))
	if err != nil {
		t.Fatalf("Failed to parse retweet: %v", err)
	}
	if activity.Type != domain.ActivityAnnounce {
		t.Errorf("Expected ANNOUNCE, got %s", activity.Type)
	}
	if activity.ObjectType() != domain.ObjectActivity {
		t.Errorf("Expected a wrapped activity, got %s", activity.ObjectType())
	}
	if note := activity.GetNote(); note.Oid != "1001" || note.Content != "the original" {
		t.Errorf("Expected the original note, got %+v", note)
	}
}

func TestTwitterMediaEntitiesFallback(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	// extended_entities win over entities, media_url_https over media_url_http
	status := `{
		"id_str": "3001",
		"full_text": "with media",
		"user": ` + twitterUserJSON + `,
		"entities": {"media": [{"media_url_http": "http://pbs.example.org/old.jpg"}]},
		"extended_entities": {"media": [
			{"media_url_https": "https://pbs.example.org/a.jpg"},
			{"media_url_http": "http://pbs.example.org/b.jpg"}
		]}
	}`
	activity, err := conn.activityFromStatus(json.RawMessage(status))
	if err != nil {
		t.Fatalf("Failed to parse status: %v", err)
	}
	attachments := activity.GetNote().Attachments
	if len(attachments) != 2 {
		t.Fatalf("Expected 2 attachments, got %d", len(attachments))
	}
	if attachments[0].URI != "https://pbs.example.org/a.jpg" {
		t.Errorf("Expected https URI preferred, got '%s'", attachments[0].URI)
	}
	if attachments[1].URI != "http://pbs.example.org/b.jpg" {
		t.Errorf("Expected http fallback, got '%s'", attachments[1].URI)
	}
}

func TestTwitterLikePostsNoteID(t *testing.T) {
	var payload map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/favorites/create.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(twitterStatusJSON("1001", "liked")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestTwitter(t, server)

	activity, err := conn.Like(context.Background(), "1001")
	if err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	if payload["id"] != "1001" {
		t.Errorf("Expected posted id '1001', got %v", payload["id"])
	}
	if activity.Oid != "1001" {
		t.Errorf("Expected the liked status back, got '%s'", activity.Oid)
	}
}

func TestTwitterUploadMediaResponseKey(t *testing.T) {
	var statusPayload map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("media"); err != nil {
			t.Errorf("Expected part name 'media': %v", err)
		}
		w.Write([]byte(`{"media_id": 710511363345354753, "media_id_string": "710511363345354753"}`))
	})
	mux.HandleFunc("/statuses/update.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&statusPayload)
		w.Write([]byte(twitterStatusJSON("4001", "posted")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestTwitter(t, server)

	tmp := t.TempDir() + "/pic.png"
	if err := writeTempFile(tmp); err != nil {
		t.Fatal(err)
	}
	_, err := conn.UpdateNote(context.Background(), &domain.Note{Content: "posted"}, "",
		[]domain.Attachment{domain.AttachmentFromURI(tmp)})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if statusPayload["media_ids"] != "710511363345354753" {
		t.Errorf("Expected media_ids from media_id_string, got %v", statusPayload["media_ids"])
	}
}

func TestTwitterSearchUnwrapsStatuses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/tweets.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("Expected q 'golang', got '%s'", got)
		}
		w.Write([]byte(`{"statuses": [` + twitterStatusJSON("1001", "a") + `, ` + twitterStatusJSON("1002", "b") + `]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestTwitter(t, server)

	activities, err := conn.SearchNotes(context.Background(), domain.EmptyPosition, domain.EmptyPosition, 20, "golang")
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if len(activities) != 2 {
		t.Errorf("Expected 2 results, got %d", len(activities))
	}
}

func TestTwitterTimelinePagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/statuses/home_timeline.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("since_id") != "100" {
			t.Errorf("Expected since_id '100', got '%s'", q.Get("since_id"))
		}
		if q.Get("max_id") != "200" {
			t.Errorf("Expected max_id '200', got '%s'", q.Get("max_id"))
		}
		if q.Get("count") != "200" {
			t.Errorf("Expected count clamped to '200', got '%s'", q.Get("count"))
		}
		if q.Get("tweet_mode") != "extended" {
			t.Errorf("Expected tweet_mode 'extended', got '%s'", q.Get("tweet_mode"))
		}
		w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	conn := newTestTwitter(t, server)

	_, err := conn.GetTimeline(context.Background(), RoutineHomeTimeline,
		domain.NewTimelinePosition("100"), domain.NewTimelinePosition("200"), 1000, domain.EmptyActor)
	if err != nil {
		t.Fatalf("GetTimeline failed: %v", err)
	}
}

func TestTwitterGetConfigHardcoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no network call for the hardcoded config")
	}))
	defer server.Close()
	conn := newTestTwitter(t, server)

	config, err := conn.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.TextLimit != 280 {
		t.Errorf("Expected text limit 280, got %d", config.TextLimit)
	}
	if config.UploadLimit != 5*1024*1024 {
		t.Errorf("Expected 5MB upload limit, got %d", config.UploadLimit)
	}
}

func TestTwitterWebfingerFromOriginHost(t *testing.T) {
	server := httptest.NewServer(nil)
	defer server.Close()
	conn := newTestTwitter(t, server)

	actor, err := conn.actorFromJSON(json.RawMessage(twitterUserJSON))
	if err != nil {
		t.Fatalf("Failed to parse user: %v", err)
	}
	if !strings.HasPrefix(actor.WebFingerID, "exampler@") {
		t.Errorf("Expected webfinger id derived from origin host, got '%s'", actor.WebFingerID)
	}
}
