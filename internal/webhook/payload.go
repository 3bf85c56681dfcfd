package webhook

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// mathSubject routes submissions to a dedicated workflow branch keyed
// by field name. The downstream workflow expects "Mat" for mathematics
// and "Topic" for everything else.
const mathSubject = "matematica"

// Input collects the validated form fields a route forwards to the
// workflow. Absent fields are simply not written as payload keys.
type Input struct {
	Text      string
	DoubtText string
	Topic     string
	Subject   string

	Image      []byte
	ImageMIME  string
	Images     [][]byte
	ImageMIMEs []string
}

// BuildPayload assembles the outbound JSON body for the workflow
// webhook. Images are embedded inline as data URIs; a single image
// goes under "imageBase64", multiple under "imagesBase64".
func BuildPayload(in Input) map[string]any {
	payload := map[string]any{}

	if in.Text != "" {
		payload["text"] = in.Text
	}
	if in.DoubtText != "" {
		payload["doubtText"] = in.DoubtText
	}
	if in.Topic != "" {
		payload["topic"] = in.Topic
		// Some workflows read the capitalized key; send both.
		payload["Topic"] = in.Topic
	}
	if in.Subject != "" {
		if strings.EqualFold(strings.TrimSpace(in.Subject), mathSubject) {
			payload["Mat"] = in.Subject
		} else {
			payload["Topic"] = in.Subject
		}
	}

	if len(in.Image) > 0 {
		payload["imageBase64"] = DataURI(in.Image, in.ImageMIME)
	}
	if len(in.Images) > 0 {
		uris := make([]string, 0, len(in.Images))
		for i, img := range in.Images {
			mime := ""
			if i < len(in.ImageMIMEs) {
				mime = in.ImageMIMEs[i]
			}
			uris = append(uris, DataURI(img, mime))
		}
		payload["imagesBase64"] = uris
	}

	return payload
}

// DataURI encodes image bytes as a data:<mime>;base64,<payload>
// string, sniffing the MIME type when none was supplied.
func DataURI(data []byte, mime string) string {
	mime = strings.TrimSpace(mime)
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	if mime == "" {
		mime = SniffImageMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffImageMIME guesses the image content type from magic bytes,
// falling back to net/http content detection.
func SniffImageMIME(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if ct := http.DetectContentType(b); ct != "application/octet-stream" {
		return ct
	}
	return "image/jpeg"
}
