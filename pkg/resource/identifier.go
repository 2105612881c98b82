package resource

import "strings"

// ExtractID derives the short identifier recorded for a resource from its raw
// locator. When the kind's delimiter does not occur, the locator is returned
// unchanged.
func ExtractID(locator string, kind Kind) string {
	if kind == KindQueue {
		return queuePrefix(locator)
	}

	delim := kind.Delimiter()
	if delim == "" {
		return locator
	}
	if _, after, found := strings.Cut(locator, delim); found && after != "" {
		return after
	}
	return locator
}

// QueueName returns the trailing path segment of a queue URL.
func QueueName(queueURL string) string {
	trimmed := strings.TrimRight(queueURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// queuePrefix keeps the part of the queue name before the first "--" so that
// related queues ("orders--worker1", "orders--worker2") share one identity.
// Names without the separator are returned whole.
func queuePrefix(queueURL string) string {
	name := QueueName(queueURL)
	if prefix, _, found := strings.Cut(name, KindQueue.Delimiter()); found && prefix != "" {
		return prefix
	}
	if name == "" {
		return queueURL
	}
	return name
}
