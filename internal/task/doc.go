// Package task implements the consuming side of the pipeline: the
// processor that drives a task's status through its lifecycle, the worker
// pool that drains broker deliveries under the prefetch bound, and the
// contract for the work executor that interprets task payloads.
package task
