package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
	"github.com/ftl/ecgscope/playback"
	"github.com/ftl/ecgscope/render"
)

const maxBeatLength = 10000

var errNoStrip = errors.New("no strip selected")

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type datasetResponse struct {
	Name         ecg.Dataset `json:"name"`
	Classes      []ecg.Class `json:"classes"`
	DefaultClass ecg.Class   `json:"default_class"`
}

func (s *Server) datasets(c *gin.Context) {
	datasets := ecg.Datasets()
	result := make([]datasetResponse, 0, len(datasets))
	for _, dataset := range datasets {
		result = append(result, datasetResponse{
			Name:         dataset,
			Classes:      ecg.Classes(dataset),
			DefaultClass: ecg.DefaultClass(dataset),
		})
	}
	c.JSON(http.StatusOK, result)
}

type beatRequest struct {
	Dataset ecg.Dataset
	Class   ecg.Class
	Length  int
}

// parseBeatRequest reads the query parameters dataset, class, and length. The dataset defaults
// to mitbih, the class to the default class of the dataset.
func parseBeatRequest(c *gin.Context) (beatRequest, error) {
	var result beatRequest

	dataset, err := ecg.ParseDataset(c.DefaultQuery("dataset", string(ecg.MITBIH)))
	if err != nil {
		return result, err
	}
	result.Dataset = dataset

	result.Class = ecg.ResolveClass(dataset, c.Query("class"))
	if result.Class == "" {
		result.Class = ecg.DefaultClass(dataset)
	}

	result.Length = ecg.DefaultBeatLength
	if length := c.Query("length"); length != "" {
		result.Length, err = strconv.Atoi(length)
		if err != nil || result.Length > maxBeatLength {
			return result, fmt.Errorf("%w: %s", ecg.ErrInvalidBeatLength, length)
		}
	}
	return result, nil
}

func (r beatRequest) generate() ([]float64, error) {
	return ecg.GenerateBeat(r.Length, r.Class)
}

type beatResponse struct {
	Dataset ecg.Dataset `json:"dataset"`
	Class   ecg.Class   `json:"class"`
	Samples []float64   `json:"samples"`
}

func (s *Server) beat(c *gin.Context) {
	request, err := parseBeatRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	beat, err := request.generate()
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, beatResponse{
		Dataset: request.Dataset,
		Class:   request.Class,
		Samples: beat,
	})
}

type fiducialsResponse struct {
	Dataset  ecg.Dataset     `json:"dataset"`
	Class    ecg.Class       `json:"class"`
	Result   fiducial.Result `json:"result"`
	Summary  []fiducial.Row  `json:"summary"`
	Inverted []string        `json:"inverted"`
}

func (s *Server) fiducials(c *gin.Context) {
	request, err := parseBeatRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	beat, err := request.generate()
	if err != nil {
		badRequest(c, err)
		return
	}
	result := fiducial.Detect(beat)
	c.JSON(http.StatusOK, fiducialsResponse{
		Dataset:  request.Dataset,
		Class:    request.Class,
		Result:   result,
		Summary:  fiducial.Summarize(result),
		Inverted: result.Inverted(),
	})
}

func (s *Server) beatChart(c *gin.Context) {
	request, err := parseBeatRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	beat, err := request.generate()
	if err != nil {
		badRequest(c, err)
		return
	}
	chart := render.BeatChart(beat, fiducial.Detect(beat))

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, render.Options(chart))
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err = render.Write(c.Writer, chart)
	if err != nil {
		s.log.Warn("cannot write beat chart", zap.Error(err))
	}
}

// playbackChart returns the chart options of the playback at the current frame, or at the
// frame given as query parameter.
func (s *Server) playbackChart(c *gin.Context) {
	strip := s.session.Strip()
	if strip.Empty() {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: errNoStrip.Error()})
		return
	}
	frame, err := s.frame(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, render.Options(render.PlaybackChart(strip, frame)))
}

func (s *Server) frame(c *gin.Context) (int, error) {
	value := c.Query("frame")
	if value == "" {
		return s.session.Snapshot().Frame, nil
	}
	frame, err := strconv.Atoi(value)
	if err != nil || frame < 0 {
		return 0, errors.New("invalid frame")
	}
	return frame, nil
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Snapshot())
}

type positionsResponse struct {
	Frame     int                `json:"frame"`
	Positions fiducial.Positions `json:"positions"`
}

// positions returns the fiducials of the strip that are revealed at the current frame, or at
// the frame given as query parameter.
func (s *Server) positions(c *gin.Context) {
	strip := s.session.Strip()
	if strip.Empty() {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: errNoStrip.Error()})
		return
	}
	frame, err := s.frame(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, positionsResponse{
		Frame:     frame,
		Positions: strip.MarkersAt(frame),
	})
}

func (s *Server) control(command func(Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		command(s.session)
		c.JSON(http.StatusOK, s.session.Snapshot())
	}
}

type speedRequest struct {
	Speed string `json:"speed" binding:"required"`
}

func (s *Server) setSpeed(c *gin.Context) {
	var request speedRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	speed, err := playback.ParseSpeed(request.Speed)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.session.SetSpeed(speed)
	c.JSON(http.StatusOK, s.session.Snapshot())
}

type selectionRequest struct {
	Dataset string `json:"dataset" binding:"required"`
	Class   string `json:"class"`
}

func (s *Server) selectStrip(c *gin.Context) {
	var request selectionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	dataset, err := ecg.ParseDataset(request.Dataset)
	if err != nil {
		badRequest(c, err)
		return
	}
	err = s.session.Select(dataset, ecg.ResolveClass(dataset, request.Class))
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.Snapshot())
}
