package delivery

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/pageclip/models"
)

// WireMessage is the JSON body POSTed to the sink.
type WireMessage struct {
	URL      string       `json:"url"`
	Content  string       `json:"content"`
	Title    string       `json:"title"`
	Idea     string       `json:"idea"`
	Summary  string       `json:"summary"`
	Metadata WireMetadata `json:"metadata"`
}

// WireMetadata is the fixed metadata shape the sink understands.
type WireMetadata struct {
	Author         string         `json:"author"`
	Platform       string         `json:"platform"`
	ParagraphCount int            `json:"paragraphCount"`
	Images         []models.Image `json:"images"`
	Timestamp      string         `json:"timestamp"`
	Likes          *string        `json:"likes"`
	Comments       *string        `json:"comments"`
	Shares         *string        `json:"shares"`
	Collects       *string        `json:"collects"`
	Tags           []string       `json:"tags"`
	UserIdea       *string        `json:"userIdea"`
	AuthorURL      string         `json:"authorUrl"`
	PublishTime    string         `json:"publishTime"`
	ExtractionTime string         `json:"extractionTime"`
}

// NewWireMessage converts rec into the sink format. now stamps the message
// timestamp. A record without a title, an absolute URL, or an extraction
// time is a FORMAT_ERROR: the orchestrator always sets them.
func NewWireMessage(rec models.ContentRecord, now time.Time) (*WireMessage, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return nil, formatError("record has no title")
	}
	if u, err := url.Parse(rec.URL); err != nil || !u.IsAbs() {
		return nil, formatError("record url is not absolute: " + rec.URL)
	}
	if rec.Metadata.ExtractionTime == "" {
		return nil, formatError("record has no extraction time")
	}

	meta := rec.Metadata
	msg := &WireMessage{
		URL:     rec.URL,
		Content: rec.Content,
		Title:   rec.Title,
		Idea:    rec.Idea,
		Summary: Summary(meta),
		Metadata: WireMetadata{
			Author:         meta.Author,
			Platform:       meta.Platform,
			ParagraphCount: paragraphCount(rec.Content),
			Images:         meta.Images,
			Timestamp:      now.UTC().Format(time.RFC3339),
			Likes:          meta.Likes,
			Comments:       meta.Comments,
			Shares:         meta.Shares,
			Collects:       meta.Collects,
			Tags:           meta.Tags,
			AuthorURL:      meta.AuthorURL,
			PublishTime:    meta.PublishTime,
			ExtractionTime: meta.ExtractionTime,
		},
	}
	if msg.Metadata.Author == "" {
		msg.Metadata.Author = models.UnknownAuthor
	}
	if msg.Metadata.Platform == "" {
		msg.Metadata.Platform = models.DefaultPlatform
	}
	if msg.Metadata.Images == nil {
		msg.Metadata.Images = []models.Image{}
	}
	if msg.Metadata.Tags == nil {
		msg.Metadata.Tags = []string{}
	}
	if rec.Idea != "" {
		idea := rec.Idea
		msg.Metadata.UserIdea = &idea
	}
	return msg, nil
}

// Encode marshals the wire message of rec.
func Encode(rec models.ContentRecord, now time.Time) ([]byte, error) {
	msg, err := NewWireMessage(rec, now)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeFormat, "marshal wire message", err)
	}
	return body, nil
}

// Summary is the human-readable digest of the metadata that is present,
// one "Label: value" per line.
func Summary(meta models.Metadata) string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	add("Author", meta.Author)
	add("Platform", meta.Platform)
	add("Published", meta.PublishTime)
	add("Likes", deref(meta.Likes))
	add("Comments", deref(meta.Comments))
	add("Shares", deref(meta.Shares))
	add("Collects", deref(meta.Collects))
	if len(meta.Tags) > 0 {
		add("Tags", strings.Join(meta.Tags, ", "))
	}
	return strings.Join(lines, "\n")
}

func paragraphCount(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Split(content, "\n"))
}

func formatError(msg string) error {
	return models.NewCaptureError(models.ErrCodeFormat, msg, nil)
}
