package config

import "strings"

const (
	// TopicLibraryEvents carries library lifecycle events (library.*).
	TopicLibraryEvents = "library.events"

	// TopicLibraryConfigEvents carries config association events
	// (library.config.*), split from the library topic so the pipeline
	// orchestrator can consume them independently.
	TopicLibraryConfigEvents = "library.config.events"

	// TopicDocumentEvents carries document and fragment events
	// (document.*). Fragment events on this topic trigger parsing.
	TopicDocumentEvents = "document.events"

	// TopicContentEvents carries extracted-content events (content.*)
	// that trigger per-config chunking.
	TopicContentEvents = "content.events"

	// TopicVectorizationEvents carries pipeline coordination events
	// (vectorization.*): scheduling, embedding creation, completion.
	TopicVectorizationEvents = "vectorization.events"
)

// AllTopics lists every topic for pre-creation at startup.
var AllTopics = []string{
	TopicLibraryEvents,
	TopicLibraryConfigEvents,
	TopicDocumentEvents,
	TopicContentEvents,
	TopicVectorizationEvents,
}

// TopicFor routes an event name to its topic by prefix. The
// library.config prefix must match before the library prefix.
func TopicFor(eventName string) string {
	switch {
	case strings.HasPrefix(eventName, "library.config."):
		return TopicLibraryConfigEvents
	case strings.HasPrefix(eventName, "library."):
		return TopicLibraryEvents
	case strings.HasPrefix(eventName, "document."):
		return TopicDocumentEvents
	case strings.HasPrefix(eventName, "content."):
		return TopicContentEvents
	default:
		return TopicVectorizationEvents
	}
}
