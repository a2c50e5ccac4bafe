package feishu

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageEvent is the subset of Feishu's im.message.receive_v1 event
// callback payload this adapter reads.
type MessageEvent struct {
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			ChatID      string        `json:"chat_id"`
			MessageID   string        `json:"message_id"`
			ChatType    string        `json:"chat_type"` // "p2p" or "group"
			MessageType string        `json:"message_type"`
			Content     string        `json:"content"`
			RootID      string        `json:"root_id"`
			ParentID    string        `json:"parent_id"`
			Mentions    []eventMention `json:"mentions"`
		} `json:"message"`
	} `json:"event"`
}

type eventMention struct {
	Key string `json:"key"`
	ID  struct {
		OpenID string `json:"open_id"`
	} `json:"id"`
	Name string `json:"name"`
}

// webhookChallenge is Feishu's URL-verification handshake payload: on
// first configuring a webhook endpoint, Feishu POSTs this and expects
// the challenge value echoed back verbatim.
type webhookChallenge struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
}

// messageContext holds parsed information from a Feishu message event,
// independent of the raw wire shape.
type messageContext struct {
	ChatID       string
	MessageID    string
	SenderID     string // sender_id.open_id
	ChatType     string // "p2p" or "group"
	Content      string
	MentionedBot bool
}

// parseMessageEvent extracts a messageContext from the raw event,
// stripping the bot's own @-mention placeholder out of group message
// text once a mention of the bot is detected.
func (c *Channel) parseMessageEvent(event *MessageEvent) *messageContext {
	msg := &event.Event.Message
	senderID := event.Event.Sender.SenderID.OpenID

	content := parseMessageContent(msg.Content, msg.MessageType)

	mentionedBot := false
	var mentionKey string
	for _, m := range msg.Mentions {
		if c.botOpenID != "" && m.ID.OpenID == c.botOpenID {
			mentionedBot = true
			mentionKey = m.Key
		}
	}
	if mentionedBot && mentionKey != "" {
		content = strings.TrimSpace(strings.ReplaceAll(content, mentionKey, ""))
	}

	return &messageContext{
		ChatID:       msg.ChatID,
		MessageID:    msg.MessageID,
		SenderID:     senderID,
		ChatType:     msg.ChatType,
		Content:      content,
		MentionedBot: mentionedBot,
	}
}

// parseMessageContent decodes a Feishu message's JSON-encoded content
// field into plain text, by message type.
func parseMessageContent(rawContent, messageType string) string {
	if rawContent == "" {
		return ""
	}

	switch messageType {
	case "text":
		var textMsg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(rawContent), &textMsg); err == nil {
			return textMsg.Text
		}
		return rawContent

	case "post":
		return parsePostContent(rawContent)

	case "image":
		return "[image]"

	case "file":
		var fileMsg struct {
			FileName string `json:"file_name"`
		}
		if err := json.Unmarshal([]byte(rawContent), &fileMsg); err == nil {
			return fmt.Sprintf("[file: %s]", fileMsg.FileName)
		}
		return "[file]"

	default:
		return fmt.Sprintf("[%s message]", messageType)
	}
}

// parsePostContent flattens a Feishu "post" (rich text) message body
// into plain text, preferring zh_cn/en_us locales and falling back to
// whichever locale the payload carries.
func parsePostContent(rawContent string) string {
	var post map[string]interface{}
	if err := json.Unmarshal([]byte(rawContent), &post); err != nil {
		return rawContent
	}

	var langContent interface{}
	for _, lang := range []string{"zh_cn", "en_us"} {
		if lc, ok := post[lang]; ok {
			langContent = lc
			break
		}
	}
	if langContent == nil {
		for _, v := range post {
			langContent = v
			break
		}
	}
	if langContent == nil {
		return rawContent
	}

	langMap, ok := langContent.(map[string]interface{})
	if !ok {
		return rawContent
	}
	contentArr, ok := langMap["content"].([]interface{})
	if !ok {
		return rawContent
	}

	var textParts []string
	for _, para := range contentArr {
		paraArr, ok := para.([]interface{})
		if !ok {
			continue
		}
		var lineParts []string
		for _, elem := range paraArr {
			elemMap, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			switch elemMap["tag"] {
			case "text", "md":
				if t, ok := elemMap["text"].(string); ok {
					lineParts = append(lineParts, t)
				}
			case "at":
				if name, ok := elemMap["user_name"].(string); ok {
					lineParts = append(lineParts, "@"+name)
				}
			case "a":
				href, _ := elemMap["href"].(string)
				text, _ := elemMap["text"].(string)
				if text != "" {
					lineParts = append(lineParts, fmt.Sprintf("[%s](%s)", text, href))
				} else {
					lineParts = append(lineParts, href)
				}
			case "img":
				lineParts = append(lineParts, "[image]")
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return strings.Join(textParts, "\n")
}
