// Package events defines the wire messages that cross process boundaries:
// the task-created event handed from the API to the worker through the
// broker, and the status message broadcast to realtime observers on every
// lifecycle transition. Both are plain JSON documents; field names are part
// of the pipeline's wire contract.
package events
