// Package triage composes the classifier, the archive and the presence
// store. Every message is archived before presence is consulted, so digests
// include messages that arrived while the owner was asleep.
package triage
