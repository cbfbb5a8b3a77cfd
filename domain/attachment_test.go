package domain

import (
	"testing"
)

func TestFoldPreviews(t *testing.T) {
	full := Attachment{URI: "https://files.example.org/img.jpg", MimeType: "image"}
	preview := Attachment{URI: "https://files.example.org/img_small.jpg", MimeType: "image", PreviewOf: full.URI}
	other := Attachment{URI: "https://files.example.org/clip.mp4", MimeType: "video"}

	folded := FoldPreviews([]Attachment{full, preview, other})
	if len(folded) != 2 {
		t.Fatalf("Expected 2 attachments after folding, got %d", len(folded))
	}
	if folded[0].Preview == nil {
		t.Fatal("Expected the full-resolution attachment to carry its preview")
	}
	if folded[0].Preview.URI != preview.URI {
		t.Errorf("Expected preview URI '%s', got '%s'", preview.URI, folded[0].Preview.URI)
	}
	if folded[0].Preview.PreviewOf != "" {
		t.Error("Expected the attached preview to drop its PreviewOf reference")
	}
	if folded[1].Preview != nil {
		t.Error("Expected no preview on the video attachment")
	}
}

func TestFoldPreviewsDropsOrphans(t *testing.T) {
	orphan := Attachment{URI: "https://files.example.org/thumb.jpg", PreviewOf: "https://files.example.org/gone.jpg"}
	folded := FoldPreviews([]Attachment{orphan})
	if len(folded) != 0 {
		t.Errorf("Expected orphaned preview to be dropped, got %d attachments", len(folded))
	}
}

func TestAttachmentEqualIgnoresPreviewLinkage(t *testing.T) {
	a := Attachment{URI: "https://files.example.org/img.jpg", MimeType: "image/jpeg"}
	b := Attachment{URI: "https://files.example.org/img.jpg", MimeType: "image/jpeg", Preview: &a}
	if !a.Equal(b) {
		t.Error("Expected attachments with equal URI and type to be equal")
	}
	c := Attachment{URI: "https://files.example.org/img.jpg", MimeType: "image/png"}
	if a.Equal(c) {
		t.Error("Expected attachments with different mime types to differ")
	}
}

func TestContentType(t *testing.T) {
	if got := (Attachment{MimeType: "image/jpeg"}).ContentType(); got != "image" {
		t.Errorf("Expected content type 'image', got '%s'", got)
	}
	if got := (Attachment{MimeType: "video"}).ContentType(); got != "video" {
		t.Errorf("Expected content type 'video', got '%s'", got)
	}
}
