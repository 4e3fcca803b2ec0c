// Package webrtc holds the per-stream peer connections of a signaling
// session and the offer/answer logic that drives them.
package webrtc

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"
)

// DefaultPLIInterval is how often a keyframe is requested on received video.
const DefaultPLIInterval = 3 * time.Second

// NewAPI builds the pion API shared by every peer connection: default
// codecs and interceptors plus a periodic keyframe request for incoming
// video.
func NewAPI(loggerFactory logging.LoggerFactory) (*pion.API, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(DefaultPLIInterval))
	if err != nil {
		return nil, fmt.Errorf("create pli interceptor: %w", err)
	}
	i.Add(pli)

	s := pion.SettingEngine{}
	if loggerFactory != nil {
		s.LoggerFactory = loggerFactory
	}

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(s),
	), nil
}
