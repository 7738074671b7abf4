package feishu

import (
	"fmt"
	"strings"
)

// InteractiveCard message card body
type InteractiveCard struct {
	Config   *CardConfig   `json:"config,omitempty"`
	Header   *CardHeader   `json:"header,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader title; Template is the header colour (blue, green, red, orange)
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"`
}

// CardText Tag is plain_text or lark_md
type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type CardElement struct {
	Tag      string        `json:"tag"`
	Text     *CardText     `json:"text,omitempty"`
	Fields   []CardField   `json:"fields,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
	Content  string        `json:"content,omitempty"`
}

type CardField struct {
	IsShort bool     `json:"is_short"`
	Text    CardText `json:"text"`
}

// CardEntry one labelled value rendered as a short field
type CardEntry struct {
	Label string
	Value string
}

// NewNotificationCard builds the card used for user notifications. Mentions
// are rendered as a note under the body; empty entries are dropped.
func NewNotificationCard(title, body string, entries []CardEntry, mentions []string) InteractiveCard {
	card := InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: title},
			Template: "blue",
		},
	}
	if body != "" {
		card.Elements = append(card.Elements, CardElement{
			Tag:  "div",
			Text: &CardText{Tag: "lark_md", Content: body},
		})
	}

	var fields []CardField
	for _, e := range entries {
		if e.Value == "" {
			continue
		}
		fields = append(fields, CardField{
			IsShort: true,
			Text:    CardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", e.Label, e.Value)},
		})
	}
	if len(fields) > 0 {
		card.Elements = append(card.Elements, CardElement{Tag: "div", Fields: fields})
	}

	if len(mentions) > 0 {
		card.Elements = append(card.Elements,
			CardElement{Tag: "hr"},
			CardElement{
				Tag:      "note",
				Elements: []CardElement{{Tag: "plain_text", Content: "For: " + strings.Join(mentions, ", ")}},
			},
		)
	}
	return card
}
