package event

import "strings"

// Topic is a hierarchical event type, segments joined by dots, e.g.
// "trigger.save" or "document.destroyed".
type Topic string

// Topics published by the engine.
const (
	// TopicTriggerCommand carries an explicit format command.
	TopicTriggerCommand Topic = "trigger.command"

	// TopicTriggerType carries a debounced buffer-change trigger.
	TopicTriggerType Topic = "trigger.type"

	// TopicTriggerSave carries an intercepted save request.
	TopicTriggerSave Topic = "trigger.save"

	// TopicDocumentDestroyed is the terminal sentinel for a document's
	// stream.
	TopicDocumentDestroyed Topic = "document.destroyed"
)

// Match reports whether t matches pattern. A "*" segment in the pattern
// matches exactly one topic segment, so "trigger.*" matches "trigger.save"
// but not "trigger.save.late".
func (t Topic) Match(pattern Topic) bool {
	if t == pattern {
		return true
	}

	have := strings.Split(string(t), ".")
	want := strings.Split(string(pattern), ".")
	if len(have) != len(want) {
		return false
	}
	for i, seg := range want {
		if seg != "*" && seg != have[i] {
			return false
		}
	}
	return true
}
