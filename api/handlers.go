package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-metronome/patterns"
	"go-metronome/sequencer"
)

// StateResponse is the transport state and settings
type StateResponse struct {
	Playing     bool   `json:"playing"`
	Bar         int    `json:"bar"`
	Beat        int    `json:"beat"`
	PatternMode bool   `json:"patternMode"`
	Pattern     string `json:"pattern,omitempty"`
	Connected   bool   `json:"connected"`
	Tempo       int    `json:"tempo"`
	TempoName   string `json:"tempoName"`
	Numerator   int    `json:"numerator"`
	Denominator int    `json:"denominator"`
	Resolution  int    `json:"resolution"`
	Dropped     uint64 `json:"dropped"`
}

type tempoRequest struct {
	BPM int `json:"bpm" binding:"required"`
}

type timeSignatureRequest struct {
	Numerator   int `json:"numerator" binding:"required"`
	Denominator int `json:"denominator" binding:"required"`
}

type patternModeRequest struct {
	Enabled bool `json:"enabled"`
}

// PatternJSON is the wire form of a pattern
type PatternJSON struct {
	Name   string    `json:"name"`
	Figure int       `json:"figure"`
	Rows   []RowJSON `json:"rows"`
}

// RowJSON is one pattern row
type RowJSON struct {
	Key   uint8    `json:"key"`
	Name  string   `json:"name,omitempty"`
	Cells []string `json:"cells"`
}

// health godoc
// @Summary Health check endpoint
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "go-metronome"})
}

// state godoc
// @Summary Transport state
// @Tags transport
// @Produce json
// @Success 200 {object} StateResponse
// @Router /api/v1/state [get]
func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) snapshot() StateResponse {
	st := s.engine.State()
	cfg := s.engine.Config()
	return StateResponse{
		Playing:     st.Playing(),
		Bar:         st.Bar,
		Beat:        st.Beat,
		PatternMode: st.PatternMode,
		Pattern:     st.Pattern,
		Connected:   st.Connected,
		Tempo:       cfg.Tempo,
		TempoName:   sequencer.TempoName(cfg.Tempo),
		Numerator:   cfg.Numerator,
		Denominator: cfg.Denominator,
		Resolution:  cfg.Resolution,
		Dropped:     st.Dropped,
	}
}

// play godoc
// @Summary Start from bar 1
// @Tags transport
// @Produce json
// @Success 200 {object} StateResponse
// @Failure 503 {object} map[string]string
// @Router /api/v1/play [post]
func (s *Server) play(c *gin.Context) {
	if err := s.engine.Start(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

// stop godoc
// @Summary Stop playback
// @Tags transport
// @Produce json
// @Success 200 {object} StateResponse
// @Router /api/v1/stop [post]
func (s *Server) stop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, s.snapshot())
}

// cont godoc
// @Summary Continue from the stopped position
// @Tags transport
// @Produce json
// @Success 200 {object} StateResponse
// @Router /api/v1/cont [post]
func (s *Server) cont(c *gin.Context) {
	if err := s.engine.Continue(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

// setTempo godoc
// @Summary Change the tempo, also while playing
// @Tags transport
// @Accept json
// @Produce json
// @Param body body tempoRequest true "beats per minute"
// @Success 200 {object} StateResponse
// @Router /api/v1/tempo [put]
func (s *Server) setTempo(c *gin.Context) {
	var req tempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.SetTempo(req.BPM)
	c.JSON(http.StatusOK, s.snapshot())
}

// setTimeSignature godoc
// @Summary Change the time signature while stopped
// @Tags transport
// @Accept json
// @Produce json
// @Param body body timeSignatureRequest true "signature"
// @Success 200 {object} StateResponse
// @Failure 409 {object} map[string]string
// @Router /api/v1/timesig [put]
func (s *Server) setTimeSignature(c *gin.Context) {
	var req timeSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.SetTimeSignature(req.Numerator, req.Denominator); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

// setPatternMode godoc
// @Summary Switch between clicks and the selected pattern while stopped
// @Tags transport
// @Accept json
// @Produce json
// @Param body body patternModeRequest true "mode"
// @Success 200 {object} StateResponse
// @Failure 409 {object} map[string]string
// @Router /api/v1/pattern-mode [put]
func (s *Server) setPatternMode(c *gin.Context) {
	var req patternModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.SetPatternMode(req.Enabled); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

// ports godoc
// @Summary List MIDI ports
// @Tags connection
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/ports [get]
func (s *Server) ports(c *gin.Context) {
	outs, err := s.engine.OutputConnections()
	if err != nil {
		fail(c, err)
		return
	}
	ins, err := s.engine.InputConnections()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": outs, "inputs": ins})
}

// listInstruments godoc
// @Summary List known instruments
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/instruments [get]
func (s *Server) listInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": s.instruments.Names()})
}

// listPatterns godoc
// @Summary List stored patterns
// @Tags patterns
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/patterns [get]
func (s *Server) listPatterns(c *gin.Context) {
	names, err := s.store.Names(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"patterns": names})
}

// getPattern godoc
// @Summary Get one pattern
// @Tags patterns
// @Produce json
// @Param name path string true "pattern name"
// @Success 200 {object} PatternJSON
// @Failure 404 {object} map[string]string
// @Router /api/v1/patterns/{name} [get]
func (s *Server) getPattern(c *gin.Context) {
	p, err := s.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toJSON(p))
}

// putPattern godoc
// @Summary Create or replace a pattern
// @Tags patterns
// @Accept json
// @Produce json
// @Param name path string true "pattern name"
// @Param body body PatternJSON true "pattern"
// @Success 200 {object} PatternJSON
// @Failure 400 {object} map[string]string
// @Router /api/v1/patterns/{name} [put]
func (s *Server) putPattern(c *gin.Context) {
	var req PatternJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := fromJSON(c.Param("name"), req)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.Put(c.Request.Context(), p); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toJSON(p))
}

// deletePattern godoc
// @Summary Delete a pattern
// @Tags patterns
// @Param name path string true "pattern name"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/patterns/{name} [delete]
func (s *Server) deletePattern(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("name")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// selectPattern godoc
// @Summary Select the pattern played in pattern mode
// @Tags patterns
// @Produce json
// @Param name path string true "pattern name"
// @Success 200 {object} StateResponse
// @Router /api/v1/patterns/{name}/select [post]
func (s *Server) selectPattern(c *gin.Context) {
	p, err := s.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.engine.SetPattern(p.Grid(s.keyName)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

// exportSMF godoc
// @Summary Render a pattern as a Standard MIDI File
// @Tags patterns
// @Produce audio/midi
// @Param name path string true "pattern name"
// @Param bars query int false "bars to render (default 4)"
// @Success 200 {file} binary
// @Router /api/v1/patterns/{name}/smf [get]
func (s *Server) exportSMF(c *gin.Context) {
	p, err := s.store.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	bars, err := strconv.Atoi(c.DefaultQuery("bars", "4"))
	if err != nil || bars < 1 || bars > 256 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bars must be 1..256"})
		return
	}

	var buf bytes.Buffer
	if err := patterns.WriteSMF(&buf, p.Grid(s.keyName), s.engine.Config(), bars); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+".mid"))
	c.Data(http.StatusOK, "audio/midi", buf.Bytes())
}

// streamEvents godoc
// @Summary Server-sent transport notifications
// @Tags transport
// @Produce text/event-stream
// @Router /api/v1/events [get]
func (s *Server) streamEvents(c *gin.Context) {
	if s.events == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event stream disabled"})
		return
	}
	ch, cancel := s.events.Subscribe(256)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(n.Kind.String(), eventJSON(n))
			return true
		}
	})
}

func eventJSON(n sequencer.Notification) gin.H {
	h := gin.H{"kind": n.Kind.String()}
	switch n.Kind {
	case sequencer.PositionUpdate:
		h["bar"], h["beat"] = n.Bar, n.Beat
	case sequencer.TimeSignatureAnnounced:
		h["numerator"], h["denominator"] = n.Numerator, n.Denominator
	case sequencer.DeviceLost:
		if n.Err != nil {
			h["error"] = n.Err.Error()
		}
	}
	return h
}

func (s *Server) keyName(key uint8) string {
	return s.instruments.KeyName(s.instrument, key)
}

func (s *Server) toJSON(p patterns.Pattern) PatternJSON {
	out := PatternJSON{Name: p.Name, Figure: p.Figure(), Rows: make([]RowJSON, len(p.Rows))}
	for i, r := range p.Rows {
		cells := make([]string, len(r.Cells))
		for j, cell := range r.Cells {
			cells[j] = string(cell)
		}
		out.Rows[i] = RowJSON{Key: r.Key, Name: s.keyName(r.Key), Cells: cells}
	}
	return out
}

func fromJSON(name string, in PatternJSON) (patterns.Pattern, error) {
	p := patterns.Pattern{Name: name}
	for _, r := range in.Rows {
		row := patterns.Row{Key: r.Key}
		for _, v := range r.Cells {
			cell, ok := patterns.ParseCell(v)
			if !ok {
				return patterns.Pattern{}, fmt.Errorf("%w: cell %q", patterns.ErrInvalid, v)
			}
			row.Cells = append(row.Cells, cell)
		}
		p.Rows = append(p.Rows, row)
	}
	if in.Figure > 0 {
		if err := p.SetFigure(in.Figure); err != nil {
			return patterns.Pattern{}, err
		}
	}
	return p, p.Validate()
}
