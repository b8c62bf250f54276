package notify

import "fmt"

const notificationBodyRunes = 50

// Message is the payload shown by the service worker on the client.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
	URL   string `json:"url"`
}

// questionMessage builds the localized push payload for a new question. The
// tag collapses repeated notifications for the same question and the url
// points the client at its inbox.
func questionMessage(locale, content string, questionID int64) Message {
	return Message{
		Title: questionTitle(locale),
		Body:  truncateRunes(content, notificationBodyRunes),
		Tag:   fmt.Sprintf("question-%d", questionID),
		URL:   "/inbox",
	}
}

func questionTitle(locale string) string {
	switch locale {
	case "ko":
		return "새로운 질문이 도착했어요!"
	default:
		return "You received a new question!"
	}
}

// truncateRunes shortens s to max runes, appending an ellipsis when content
// was cut.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
