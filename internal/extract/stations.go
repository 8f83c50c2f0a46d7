package extract

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// joinTrack formats a record, returning "" when either part is blank.
func joinTrack(artist, title string) string {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" || title == "" {
		return ""
	}
	return artist + " - " + title
}

// stringField reads a string value from a loosely typed record.
func stringField(record map[string]any, key string) string {
	s, _ := record[key].(string)
	return s
}

// decodeRecords decodes a JSON array leniently: elements that are not objects become nil.
func decodeRecords(raw []json.RawMessage) []map[string]any {
	records := make([]map[string]any, len(raw))
	for i, item := range raw {
		var record map[string]any
		if err := json.Unmarshal(item, &record); err == nil {
			records[i] = record
		}
	}
	return records
}

// Radio886 reads the radio 88.6 metadata feed: {"data": [{"name": artist, "title": title}, ...]}.
//
// The feed is already oldest first.
type Radio886 struct{}

func (Radio886) Name() string { return "radio886" }

func (Radio886) Extract(body []byte) ([]string, error) {
	var feed struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	var tracks []string
	for _, record := range decodeRecords(feed.Data) {
		if track := joinTrack(stringField(record, "name"), stringField(record, "title")); track != "" {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// RadioRock reads the Radio Rock playlist API: [{"artist": artist, "title": title}, ...], newest first.
type RadioRock struct{}

func (RadioRock) Name() string { return "radiorock" }

func (RadioRock) Extract(body []byte) ([]string, error) {
	var feed []json.RawMessage
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	var tracks []string
	for _, record := range decodeRecords(feed) {
		if track := joinTrack(stringField(record, "artist"), stringField(record, "title")); track != "" {
			tracks = append(tracks, track)
		}
	}
	slices.Reverse(tracks)
	return tracks, nil
}

// RadiaCZ reads the radia.cz playlist page, newest first.
//
// Each element with class "interpret-song" holds the artist in ".interpret" and the title in ".song".
type RadiaCZ struct{}

func (RadiaCZ) Name() string { return "radiacz" }

func (RadiaCZ) Extract(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var tracks []string
	for _, item := range findByClass(doc, "interpret-song") {
		track := joinTrack(textOfClass(item, "interpret"), textOfClass(item, "song"))
		if track != "" {
			tracks = append(tracks, track)
		}
	}
	slices.Reverse(tracks)
	return tracks, nil
}

// hasClass reports whether n is an element carrying class in its class attribute.
func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" && slices.Contains(strings.Fields(attr.Val), class) {
			return true
		}
	}
	return false
}

// findByClass returns the descendants of root with class, in document order.
//
// Matches are not searched for nested matches.
func findByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if hasClass(c, class) {
				found = append(found, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return found
}

// textOfClass concatenates the text of every descendant of root with class.
func textOfClass(root *html.Node, class string) string {
	var b strings.Builder
	for _, n := range findByClass(root, class) {
		collectText(n, &b)
	}
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
