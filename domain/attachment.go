package domain

import "strings"

// Attachment is a URI plus content type. An attachment parsed from a
// response may declare itself a preview of another attachment via
// PreviewOf; FoldPreviews resolves those references.
type Attachment struct {
	URI       string
	MimeType  string
	PreviewOf string
	Preview   *Attachment
}

func AttachmentFromURI(uri string) Attachment {
	return Attachment{URI: uri}
}

func AttachmentFromURIAndMimeType(uri, mimeType string) Attachment {
	return Attachment{URI: uri, MimeType: mimeType}
}

func (a Attachment) IsValid() bool {
	return a.URI != ""
}

// Equal compares by URI and type; preview linkage is ignored.
func (a Attachment) Equal(b Attachment) bool {
	return a.URI == b.URI && a.MimeType == b.MimeType
}

// ContentType returns the general media class ("image", "video", ...)
// from the mime type.
func (a Attachment) ContentType() string {
	if idx := strings.Index(a.MimeType, "/"); idx > 0 {
		return a.MimeType[:idx]
	}
	return a.MimeType
}

// FoldPreviews removes items flagged as previews from the flat list and
// attaches each to its full-resolution counterpart. Orphaned previews
// (no counterpart present) are dropped silently.
func FoldPreviews(list []Attachment) []Attachment {
	var folded []Attachment
	for _, att := range list {
		if att.PreviewOf != "" {
			continue
		}
		folded = append(folded, att)
	}
	for _, att := range list {
		if att.PreviewOf == "" {
			continue
		}
		for i := range folded {
			if folded[i].URI == att.PreviewOf {
				preview := att
				preview.PreviewOf = ""
				folded[i].Preview = &preview
				break
			}
		}
	}
	return folded
}
