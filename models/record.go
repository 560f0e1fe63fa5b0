package models

import "reflect"

// Sentinels for metadata fields a page did not provide.
const (
	UnknownAuthor   = "unknown"
	DefaultPlatform = "generic web page"
	ZeroCount       = "0"
)

// ContentRecord is the canonical unit produced by every adapter and consumed
// by delivery. It is passed by value; use Clone before handing it across a
// goroutine boundary.
type ContentRecord struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Content  string   `json:"content"`
	Idea     string   `json:"idea"`
	Metadata Metadata `json:"metadata"`
}

// Image is a media item found in the extracted content.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Alt    string `json:"alt"`
}

// Link is an outbound hyperlink found in the extracted body.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Retweet is the quoted post embedded in a repost.
type Retweet struct {
	Author      string  `json:"author"`
	Content     string  `json:"content"`
	URL         string  `json:"url,omitempty"`
	PublishTime string  `json:"publishTime,omitempty"`
	Images      []Image `json:"images,omitempty"`
	Likes       string  `json:"likes"`
	Comments    string  `json:"comments"`
	Shares      string  `json:"shares"`
}

// Metadata is the open-ended bag attached to a record. The named fields are
// the recognized keys; anything platform specific goes into Extra.
type Metadata struct {
	Platform       string   `json:"platform,omitempty"`
	Author         string   `json:"author,omitempty"`
	AuthorURL      string   `json:"authorUrl,omitempty"`
	PublishTime    string   `json:"publishTime,omitempty"`
	ExtractionTime string   `json:"extractionTime,omitempty"`
	Tags           []string `json:"tags"`
	Images         []Image  `json:"images"`

	// Engagement counters are nil when the page has no such counter.
	Likes    *string `json:"likes"`
	Comments *string `json:"comments"`
	Shares   *string `json:"shares"`
	Collects *string `json:"collects"`

	UserIdea      string         `json:"userIdea"`
	Source        string         `json:"source,omitempty"`
	Description   string         `json:"description,omitempty"`
	Keywords      string         `json:"keywords,omitempty"`
	ExternalLinks []Link         `json:"externalLinks,omitempty"`
	Retweet       *Retweet       `json:"retweet,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Count returns a pointer to s for use in the engagement counter fields.
func Count(s string) *string {
	return &s
}

// Clone returns a deep copy of the record.
func (r ContentRecord) Clone() ContentRecord {
	r.Metadata = r.Metadata.Clone()
	return r
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m.Tags != nil {
		m.Tags = append([]string(nil), m.Tags...)
	}
	if m.Images != nil {
		m.Images = append([]Image(nil), m.Images...)
	}
	if m.ExternalLinks != nil {
		m.ExternalLinks = append([]Link(nil), m.ExternalLinks...)
	}
	m.Likes = cloneCount(m.Likes)
	m.Comments = cloneCount(m.Comments)
	m.Shares = cloneCount(m.Shares)
	m.Collects = cloneCount(m.Collects)
	if m.Retweet != nil {
		rt := *m.Retweet
		if rt.Images != nil {
			rt.Images = append([]Image(nil), rt.Images...)
		}
		m.Retweet = &rt
	}
	if m.Extra != nil {
		extra := make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = cloneExtra(v)
		}
		m.Extra = extra
	}
	return m
}

// Merge overlays every non-empty field of other onto m. Tags and images from
// other replace m's only when other has some.
func (m *Metadata) Merge(other Metadata) {
	if other.Platform != "" {
		m.Platform = other.Platform
	}
	if other.Author != "" && other.Author != UnknownAuthor {
		m.Author = other.Author
	}
	if other.AuthorURL != "" {
		m.AuthorURL = other.AuthorURL
	}
	if other.PublishTime != "" {
		m.PublishTime = other.PublishTime
	}
	if len(other.Tags) > 0 {
		m.Tags = other.Tags
	}
	if len(other.Images) > 0 {
		m.Images = other.Images
	}
	if other.Likes != nil {
		m.Likes = other.Likes
	}
	if other.Comments != nil {
		m.Comments = other.Comments
	}
	if other.Shares != nil {
		m.Shares = other.Shares
	}
	if other.Collects != nil {
		m.Collects = other.Collects
	}
	if other.Source != "" {
		m.Source = other.Source
	}
	if len(other.ExternalLinks) > 0 {
		m.ExternalLinks = other.ExternalLinks
	}
	if other.Retweet != nil {
		m.Retweet = other.Retweet
	}
	for k, v := range other.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
}

func cloneCount(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneExtra copies the slices and maps an adapter may store in
// Metadata.Extra, element by element. Scalars are returned as is.
func cloneExtra(v any) any {
	if v == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(v)).Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	default:
		return v
	}
}
