package webrtc

import (
	"slices"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

type recordingOutbound struct {
	mu    sync.Mutex
	descs []pion.SessionDescription
}

func (o *recordingOutbound) SendDescription(_ string, desc pion.SessionDescription) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.descs = append(o.descs, desc)
	return nil
}

func (o *recordingOutbound) sent() []pion.SessionDescription {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]pion.SessionDescription(nil), o.descs...)
}

func newTestNegotiator(t *testing.T) (*Negotiator, *recordingOutbound) {
	t.Helper()
	out := &recordingOutbound{}
	n := NewNegotiator(newTestRegistry(t, RegistryConfig{}), NewCandidateBuffer(), out)
	return n, out
}

func newRemotePeer(t *testing.T) *pion.PeerConnection {
	t.Helper()
	pc, err := pion.NewPeerConnection(pion.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc
}

const hostCandidate = "candidate:1 1 udp 2130706431 192.0.2.10 50000 typ host"

// remoteCandidateIPs lists the remote candidate addresses pc has been given.
func remoteCandidateIPs(pc *pion.PeerConnection) []string {
	var ips []string
	for _, s := range pc.GetStats() {
		if c, ok := s.(pion.ICECandidateStats); ok && c.Type == pion.StatsTypeRemoteCandidate {
			ips = append(ips, c.IP)
		}
	}
	return ips
}

func TestNegotiator_AnswersRemoteOffer(t *testing.T) {
	n, out := newTestNegotiator(t)

	remote := newRemotePeer(t)
	_, err := remote.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionSendonly})
	require.NoError(t, err)
	offer, err := remote.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(offer))

	require.NoError(t, n.ApplyRemoteAndRespond("s1", offer.SDP, "offer"))

	sent := out.sent()
	require.Len(t, sent, 1)
	require.Equal(t, pion.SDPTypeAnswer, sent[0].Type)
	require.NotEmpty(t, sent[0].SDP)

	e, ok := n.registry.entries["s1"]
	require.True(t, ok)
	require.True(t, e.RemoteDescriptionSet)
	require.NoError(t, remote.SetRemoteDescription(sent[0]))
}

func TestNegotiator_OfferThenAnswerWithBufferedCandidates(t *testing.T) {
	n, out := newTestNegotiator(t)
	n.registry.SetLocalStream(newTestLocalStream(t))

	require.NoError(t, n.CreateOffer("s1"))
	sent := out.sent()
	require.Len(t, sent, 1)
	require.Equal(t, pion.SDPTypeOffer, sent[0].Type)

	mid := "0"
	c := pion.ICECandidateInit{Candidate: hostCandidate, SDPMid: &mid, SDPMLineIndex: u16Ptr(0)}
	require.NoError(t, n.TakeCandidate("s1", c))
	require.NoError(t, n.TakeCandidate("s1", c))
	require.Equal(t, 1, n.buffer.Len("s1"))

	remote := newRemotePeer(t)
	require.NoError(t, remote.SetRemoteDescription(sent[0]))
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))

	require.NoError(t, n.ApplyRemoteAndRespond("s1", answer.SDP, "answer"))
	require.Len(t, out.sent(), 1)
	require.Zero(t, n.buffer.Len("s1"))
	require.False(t, n.registry.ShouldBuffer("s1"))

	pc := n.registry.entries["s1"].PC
	require.Eventually(t, func() bool {
		return slices.Contains(remoteCandidateIPs(pc), "192.0.2.10")
	}, 5*time.Second, 20*time.Millisecond, "buffered candidate was not applied")

	require.NoError(t, n.TakeCandidate("s1", pion.ICECandidateInit{Candidate: "candidate:2 1 udp 2130706431 192.0.2.11 50001 typ host", SDPMid: &mid}))
	require.Zero(t, n.buffer.Len("s1"))
}

func TestNegotiator_RemoteDescriptionErrors(t *testing.T) {
	n, out := newTestNegotiator(t)

	err := n.ApplyRemoteAndRespond("s1", "not an sdp", "offer")
	require.Error(t, err)
	require.True(t, IsRemoteDescriptionError(err))

	err = n.ApplyRemoteAndRespond("s1", "v=0", "rollback")
	require.ErrorIs(t, err, ErrUnsupportedSDPType)
	require.True(t, IsRemoteDescriptionError(err))

	require.Empty(t, out.sent())
	require.True(t, n.registry.ShouldBuffer("s1"))
}

func TestNegotiator_CandidateAfterCloseRecreates(t *testing.T) {
	n, _ := newTestNegotiator(t)
	require.NoError(t, n.TakeCandidate("s1", pion.ICECandidateInit{Candidate: hostCandidate}))
	first := n.registry.entries["s1"]

	require.True(t, n.Close("s1"))
	require.Zero(t, n.buffer.Len("s1"))
	require.False(t, n.Close("s1"))

	require.NoError(t, n.TakeCandidate("s1", pion.ICECandidateInit{Candidate: hostCandidate}))
	second, ok := n.registry.entries["s1"]
	require.True(t, ok)
	require.NotSame(t, first.PC, second.PC)
	require.Equal(t, 1, n.buffer.Len("s1"))
}

func TestIsRemoteDescriptionError(t *testing.T) {
	require.False(t, IsRemoteDescriptionError(nil))
	require.False(t, IsRemoteDescriptionError(newError(OpCreateOffer, "s1", ErrStreamClosed)))
	require.True(t, IsRemoteDescriptionError(newError(OpSetRemoteDescription, "s1", ErrStreamClosed)))
}
