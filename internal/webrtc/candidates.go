package webrtc

import (
	pion "github.com/pion/webrtc/v4"
)

// CandidateBuffer queues remote ICE candidates per stream until the
// stream's remote description is applied. It is not safe for concurrent
// use; the session loop owns it.
type CandidateBuffer struct {
	queues map[string][]pion.ICECandidateInit
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{queues: make(map[string][]pion.ICECandidateInit)}
}

// Add appends c to the stream's queue unless an identical candidate is
// already queued. It reports whether c was queued.
func (b *CandidateBuffer) Add(streamID string, c pion.ICECandidateInit) bool {
	c = normalizeCandidate(c)
	for _, queued := range b.queues[streamID] {
		if candidatesEqual(queued, c) {
			return false
		}
	}
	b.queues[streamID] = append(b.queues[streamID], c)
	return true
}

// Flush returns the queued candidates in arrival order and clears the queue.
func (b *CandidateBuffer) Flush(streamID string) []pion.ICECandidateInit {
	queued := b.queues[streamID]
	delete(b.queues, streamID)
	return queued
}

func (b *CandidateBuffer) Len(streamID string) int {
	return len(b.queues[streamID])
}

// Drop discards the queue of a closed stream.
func (b *CandidateBuffer) Drop(streamID string) {
	delete(b.queues, streamID)
}

// normalizeCandidate turns empty optional fields into nil so equality does
// not depend on whether the sender omitted a field or sent it empty.
func normalizeCandidate(c pion.ICECandidateInit) pion.ICECandidateInit {
	if c.SDPMid != nil && *c.SDPMid == "" {
		c.SDPMid = nil
	}
	if c.UsernameFragment != nil && *c.UsernameFragment == "" {
		c.UsernameFragment = nil
	}
	return c
}

func candidatesEqual(a, b pion.ICECandidateInit) bool {
	return a.Candidate == b.Candidate &&
		equalPtr(a.SDPMid, b.SDPMid) &&
		equalPtr(a.SDPMLineIndex, b.SDPMLineIndex) &&
		equalPtr(a.UsernameFragment, b.UsernameFragment)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
