// Package store provides storage and pub/sub functionality for poll records.
//
// This package is internal to pollmatch and keeps the in-memory state of
// polls submitted to the HTTP service. It implements a publish-subscribe
// pattern so SSE clients see every attempt as it happens.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: Bounded in-memory implementation of Store with pub/sub
//   - [PollRecord]: Storage representation of one poll
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
package store
