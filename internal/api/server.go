// Package api exposes a running session's stream commands over a local
// HTTP interface.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/signaling"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Controller is the session surface the API drives. *adaptor.Session
// implements it.
type Controller interface {
	Publish(streamID, token string) error
	Play(streamID, token, room string) error
	Stop(streamID string) error
	Join(streamID string) error
	Leave(streamID string) error
	JoinRoom(room, streamID string) error
	LeaveFromRoom(room string) error
	GetRoomInfo(room, streamID string) error
	GetStreamInfo(streamID string) error
	InitPeerConnection(streamID string) error
	EnableStats(streamID string, interval time.Duration) error
	DisableStats(streamID string) error
	SendData(streamID, msgType string, payload any) error

	Streams() []webrtc.StreamInfo
	RemoteStreams() map[string]*webrtc.RemoteStream
	LocalStream() *media.LocalStream
	RoomName() string
	State() signaling.State
}

type Server struct {
	ctrl    Controller
	events  *EventLog
	engine  *gin.Engine
	handler http.Handler
}

// NewServer builds the router. allowedOrigins feeds the CORS policy; empty
// allows any origin.
func NewServer(ctrl Controller, events *EventLog, allowedOrigins []string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{ctrl: ctrl, events: events, engine: engine}
	s.routes()

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(engine)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("control api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) routes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/session", s.getSession)
	v1.GET("/streams", s.getStreams)
	v1.GET("/remote-streams", s.getRemoteStreams)
	v1.GET("/events", s.getEvents)

	streams := v1.Group("/streams/:id")
	streams.POST("/publish", s.publish)
	streams.POST("/play", s.play)
	streams.POST("/stop", s.streamCommand(s.ctrl.Stop))
	streams.POST("/join", s.streamCommand(s.ctrl.Join))
	streams.POST("/leave", s.streamCommand(s.ctrl.Leave))
	streams.POST("/info", s.streamCommand(s.ctrl.GetStreamInfo))
	streams.POST("/connection", s.streamCommand(s.ctrl.InitPeerConnection))
	streams.POST("/stats", s.enableStats)
	streams.DELETE("/stats", s.streamCommand(s.ctrl.DisableStats))
	streams.POST("/data", s.sendData)

	rooms := v1.Group("/rooms/:room")
	rooms.POST("/join", s.joinRoom)
	rooms.POST("/leave", s.leaveRoom)
	rooms.POST("/info", s.roomInfo)
}

type localStreamView struct {
	ID    string `json:"id"`
	Video int    `json:"video"`
	Audio int    `json:"audio"`
}

func (s *Server) getSession(c *gin.Context) {
	resp := gin.H{
		"state": s.ctrl.State().String(),
		"room":  s.ctrl.RoomName(),
	}
	if local := s.ctrl.LocalStream(); local != nil {
		resp["localStream"] = localStreamView{ID: local.ID(), Video: local.VideoTracks(), Audio: local.AudioTracks()}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStreams(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Streams())
}

type remoteStreamView struct {
	Key      string `json:"key"`
	StreamID string `json:"streamId"`
	Tracks   int    `json:"tracks"`
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
}

func (s *Server) getRemoteStreams(c *gin.Context) {
	remote := s.ctrl.RemoteStreams()
	out := make([]remoteStreamView, 0, len(remote))
	for key, rs := range remote {
		out = append(out, remoteStreamView{
			Key:      key,
			StreamID: rs.StreamID(),
			Tracks:   len(rs.Tracks()),
			Packets:  rs.Packets(),
			Bytes:    rs.Bytes(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	c.JSON(http.StatusOK, out)
}

func (s *Server) getEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusOK, []Event{})
		return
	}
	c.JSON(http.StatusOK, s.events.Events())
}

type publishRequest struct {
	Token string `json:"token"`
}

func (s *Server) publish(c *gin.Context) {
	var req publishRequest
	if !bindOptional(c, &req) {
		return
	}
	if s.ctrl.LocalStream() == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "local media not ready"})
		return
	}
	s.respond(c, s.ctrl.Publish(c.Param("id"), req.Token))
}

type playRequest struct {
	Token string `json:"token"`
	Room  string `json:"room"`
}

func (s *Server) play(c *gin.Context) {
	var req playRequest
	if !bindOptional(c, &req) {
		return
	}
	s.respond(c, s.ctrl.Play(c.Param("id"), req.Token, req.Room))
}

type statsRequest struct {
	Interval string `json:"interval"`
}

func (s *Server) enableStats(c *gin.Context) {
	var req statsRequest
	if !bindOptional(c, &req) {
		return
	}
	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interval", "details": req.Interval})
			return
		}
		interval = d
	}
	s.respond(c, s.ctrl.EnableStats(c.Param("id"), interval))
}

type dataRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload" binding:"required"`
}

func (s *Server) sendData(c *gin.Context) {
	var req dataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
		return
	}
	s.respond(c, s.ctrl.SendData(c.Param("id"), req.Type, req.Payload))
}

type roomRequest struct {
	StreamID string `json:"streamId"`
}

func (s *Server) joinRoom(c *gin.Context) {
	var req roomRequest
	if !bindOptional(c, &req) {
		return
	}
	s.respond(c, s.ctrl.JoinRoom(c.Param("room"), req.StreamID))
}

func (s *Server) leaveRoom(c *gin.Context) {
	s.respond(c, s.ctrl.LeaveFromRoom(c.Param("room")))
}

func (s *Server) roomInfo(c *gin.Context) {
	var req roomRequest
	if !bindOptional(c, &req) {
		return
	}
	s.respond(c, s.ctrl.GetRoomInfo(c.Param("room"), req.StreamID))
}

func (s *Server) streamCommand(fn func(streamID string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respond(c, fn(c.Param("id")))
	}
}

// bindOptional decodes a JSON body when one is present.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
		return false
	}
	return true
}

func (s *Server) respond(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, adaptor.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, webrtc.ErrStreamClosed):
		return http.StatusNotFound
	case errors.Is(err, webrtc.ErrNoDataChannel), errors.Is(err, webrtc.ErrDataChannelNotOpen):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
