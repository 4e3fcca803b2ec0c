package webrtc

import (
	"testing"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func u16Ptr(v uint16) *uint16 { return &v }

func TestCandidateBuffer_FIFOAndDedupe(t *testing.T) {
	b := NewCandidateBuffer()
	c1 := pion.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: strPtr("audio"), SDPMLineIndex: u16Ptr(0)}
	c2 := pion.ICECandidateInit{Candidate: "candidate:2 1 udp 1 10.0.0.2 5000 typ host", SDPMid: strPtr("video"), SDPMLineIndex: u16Ptr(1)}

	require.True(t, b.Add("s1", c1))
	require.True(t, b.Add("s1", c2))
	require.False(t, b.Add("s1", c1))
	require.Equal(t, 2, b.Len("s1"))

	flushed := b.Flush("s1")
	require.Len(t, flushed, 2)
	require.Equal(t, c1.Candidate, flushed[0].Candidate)
	require.Equal(t, c2.Candidate, flushed[1].Candidate)

	require.Empty(t, b.Flush("s1"))
	require.Zero(t, b.Len("s1"))
}

func TestCandidateBuffer_NormalizesEmptyFields(t *testing.T) {
	b := NewCandidateBuffer()
	withEmpty := pion.ICECandidateInit{Candidate: "candidate:1", SDPMid: strPtr(""), UsernameFragment: strPtr("")}
	omitted := pion.ICECandidateInit{Candidate: "candidate:1"}

	require.True(t, b.Add("s1", withEmpty))
	require.False(t, b.Add("s1", omitted))

	flushed := b.Flush("s1")
	require.Len(t, flushed, 1)
	require.Nil(t, flushed[0].SDPMid)
	require.Nil(t, flushed[0].UsernameFragment)
}

func TestCandidateBuffer_DistinctFieldsAreKept(t *testing.T) {
	b := NewCandidateBuffer()
	require.True(t, b.Add("s1", pion.ICECandidateInit{Candidate: "candidate:1", SDPMLineIndex: u16Ptr(0)}))
	require.True(t, b.Add("s1", pion.ICECandidateInit{Candidate: "candidate:1", SDPMLineIndex: u16Ptr(1)}))
	require.Equal(t, 2, b.Len("s1"))
}

func TestCandidateBuffer_StreamsAreIndependent(t *testing.T) {
	b := NewCandidateBuffer()
	c := pion.ICECandidateInit{Candidate: "candidate:1"}
	require.True(t, b.Add("s1", c))
	require.True(t, b.Add("s2", c))

	b.Drop("s1")
	require.Zero(t, b.Len("s1"))
	require.Equal(t, 1, b.Len("s2"))
}
