// Package commandqueue provides lane-based task execution with FIFO ordering
// per lane.
//
// Invariants:
// - Tasks in the same lane execute in FIFO order.
// - Tasks in different lanes may execute concurrently.
// - Resetting a lane rejects its queued tasks and fences stale enqueues.
//
// The bot runs one lane per chat, so events for a chat serialize against
// that chat's session while other chats proceed in parallel.
package commandqueue
