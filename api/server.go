// Package api exposes the engine's command bus over HTTP
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/gin-gonic/gin"

	"go-imuse/debug"
	"go-imuse/imuse"
)

// Server routes HTTP requests to one engine
type Server struct {
	engine *imuse.Engine
	router *gin.Engine
}

// NewServer builds the router. Call gin.SetMode before this to silence
// gin's own startup output.
func NewServer(engine *imuse.Engine) *Server {
	s := &Server{engine: engine, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())

	s.router.GET("/health", healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.status)
		v1.GET("/sounds/:id", s.soundStatus)
		v1.POST("/sounds/:id/start", s.startSound)
		v1.POST("/sounds/:id/stop", s.stopSound)
		v1.POST("/sounds/stop", s.stopAll)
		v1.POST("/command", s.command)
		v1.PUT("/volume", s.setVolume)
		v1.GET("/properties/:name", s.property)
		v1.PUT("/properties/:name", s.setProperty)
		v1.GET("/state", s.saveState)
		v1.PUT("/state", s.loadState)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errc := make(chan error, 1)
	go func() {
		debug.Log("api", "listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debug.Log("api", "%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

// httpStatus maps an engine error to a response code by its fault tag
func httpStatus(err error) int {
	if errors.Is(err, imuse.ErrPendingTrigger) {
		return http.StatusConflict
	}
	switch ftag.Get(err) {
	case ftag.NotFound:
		return http.StatusNotFound
	case ftag.InvalidArgument:
		return http.StatusBadRequest
	case imuse.ResourceExhausted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "go-imuse",
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func soundID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sound id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) soundStatus(c *gin.Context) {
	id, ok := soundID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": s.engine.SoundStatus(id),
		"active": s.engine.SoundActive(id),
	})
}

type startRequest struct {
	NoteOffset int  `json:"noteOffset"`
	SFX        bool `json:"sfx"`
}

func (s *Server) startSound(c *gin.Context) {
	id, ok := soundID(c)
	if !ok {
		return
	}
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var err error
	switch {
	case req.SFX:
		err = s.engine.StartSFX(id)
	case req.NoteOffset != 0:
		err = s.engine.StartSoundWithNoteOffset(id, req.NoteOffset)
	default:
		err = s.engine.StartSound(id)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": s.engine.SoundStatus(id)})
}

func (s *Server) stopSound(c *gin.Context) {
	id, ok := soundID(c)
	if !ok {
		return
	}
	if err := s.engine.StopSound(id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stopAll(c *gin.Context) {
	s.engine.StopAllSounds()
	c.Status(http.StatusNoContent)
}

type commandRequest struct {
	Args []int `json:"args" binding:"required,min=1,max=8"`
}

func (s *Server) command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": s.engine.DoCommand(req.Args...)})
}

// volumeRequest fields are optional; only those present change
type volumeRequest struct {
	Master *int  `json:"master" binding:"omitempty,min=0,max=255"`
	Music  *int  `json:"music" binding:"omitempty,min=0,max=255"`
	Sfx    *int  `json:"sfx" binding:"omitempty,min=0,max=255"`
	Speech *bool `json:"speech"`
	Paused *bool `json:"paused"`
}

func (s *Server) setVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Master != nil {
		s.engine.SetMasterVolume(*req.Master)
	}
	if req.Music != nil {
		s.engine.SetMusicVolume(*req.Music)
	}
	if req.Sfx != nil {
		s.engine.SetSfxVolume(*req.Sfx)
	}
	if req.Speech != nil {
		s.engine.SetSpeechActive(*req.Speech)
	}
	if req.Paused != nil {
		s.engine.Pause(*req.Paused)
	}

	st := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"master": st.MasterVolume,
		"music":  st.MusicVolume,
		"sfx":    st.SfxVolume,
		"paused": st.Paused,
	})
}

var properties = map[string]int{
	"tempo":   imuse.PropTempoBase,
	"players": imuse.PropLimitPlayers,
	"recycle": imuse.PropRecyclePlayers,
	"dialect": imuse.PropDialect,
}

func (s *Server) property(c *gin.Context) {
	prop, ok := properties[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown property"})
		return
	}
	v, err := s.engine.Property(prop)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "value": v})
}

type propertyRequest struct {
	Value *int `json:"value" binding:"required"`
}

func (s *Server) setProperty(c *gin.Context) {
	prop, ok := properties[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown property"})
		return
	}
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.SetProperty(prop, *req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "value": *req.Value})
}

func (s *Server) saveState(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if err := s.engine.Save(c.Writer); err != nil {
		debug.Log("api", "save state: %v", err)
	}
}

func (s *Server) loadState(c *gin.Context) {
	if err := s.engine.Load(c.Request.Body); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
