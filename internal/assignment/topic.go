package assignment

import (
	"strings"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// topic is the normalized view of what a session is about.
type topic struct {
	category string
	keywords map[string]struct{}
	text     string
}

func newTopic(session *domain.Session) topic {
	t := topic{keywords: make(map[string]struct{})}
	if session == nil {
		return t
	}
	t.category = normalize(session.Category)
	for _, kw := range session.Keywords {
		if key := normalize(kw); key != "" {
			t.keywords[key] = struct{}{}
		}
	}
	t.text = strings.ToLower(session.Text)
	if t.category != "" {
		t.keywords[t.category] = struct{}{}
	}
	return t
}

// matches reports whether a skill tag appears among the keywords or, as a
// substring, in the session text. Substring matching covers languages that
// do not separate words with spaces.
func (t topic) matches(tag string) bool {
	if _, ok := t.keywords[tag]; ok {
		return true
	}
	return t.text != "" && strings.Contains(t.text, tag)
}
