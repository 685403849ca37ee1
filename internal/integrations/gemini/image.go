package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

const fallbackMIMEType = "image/png"

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+)(;base64)?,`)

// imagePart turns an opaque image reference into a genai part. Data URLs are
// sent inline; anything else is passed through as a file URI.
func imagePart(ref string) (*genai.Part, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("gemini: image reference is empty")
	}
	if !strings.HasPrefix(ref, "data:") {
		return &genai.Part{FileData: &genai.FileData{
			FileURI:  ref,
			MIMEType: mimeFromPath(ref),
		}}, nil
	}

	matches := dataURLRegex.FindStringSubmatch(ref)
	if len(matches) != 3 {
		return nil, errors.New("gemini: malformed data URL")
	}
	if matches[2] == "" {
		return nil, errors.New("gemini: data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(ref[len(matches[0]):])
	if err != nil {
		return nil, fmt.Errorf("gemini: decode data URL: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("gemini: data URL has no payload")
	}
	return &genai.Part{InlineData: &genai.Blob{
		Data:     data,
		MIMEType: matches[1],
	}}, nil
}

func mimeFromPath(ref string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(ref))); t != "" {
		return t
	}
	return fallbackMIMEType
}
