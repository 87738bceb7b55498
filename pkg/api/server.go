// Package api provides the REST API server for groovekit
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/groovekit/groovekit/pkg/codec"
	"github.com/groovekit/groovekit/pkg/config"
	"github.com/groovekit/groovekit/pkg/export"
	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/notation"
	"github.com/groovekit/groovekit/pkg/shorten"
	"github.com/groovekit/groovekit/pkg/theory"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title GrooveKit API
// @version 1.0
// @description API for encoding, decoding, transcoding and sharing drum grooves
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	r := NewRouter()
	return r.Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine with all routes registered. Split from
// StartServer so tests can drive it with httptest.
func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/voices", listVoices)
		v1.GET("/divisions", listDivisions)
		v1.POST("/groove/encode", handleEncode)
		v1.POST("/groove/decode", handleDecode)
		v1.POST("/groove/abc", handleABC)
		v1.POST("/groove/midi", handleMIDI)
		v1.POST("/url/validate", handleValidateURL)
		v1.POST("/url/shorten", handleShorten)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "groovekit",
	})
}

// listVoices godoc
// @Summary List drum voices
// @Description Returns every drum voice with its code, name and GM note
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]interface{}
// @Router /api/v1/voices [get]
func listVoices(c *gin.Context) {
	voices := make([]gin.H, 0, groove.NumVoices)
	for _, v := range groove.Voices() {
		voices = append(voices, gin.H{
			"code":     v.Code(),
			"name":     v.String(),
			"midiNote": v.GMNote(),
			"foot":     v.Foot(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

// listDivisions godoc
// @Summary List compatible divisions
// @Description Returns the divisions compatible with a time signature, and the default fallback
// @Tags info
// @Produce json
// @Param beats query int true "Beats per measure (2-15)"
// @Param noteValue query int true "Note value (4, 8 or 16)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/divisions [get]
func listDivisions(c *gin.Context) {
	var q struct {
		Beats     int `form:"beats"`
		NoteValue int `form:"noteValue"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts := theory.TimeSignature{Beats: q.Beats, NoteValue: q.NoteValue}
	if !ts.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported time signature %s", ts)})
		return
	}
	divisions := theory.CompatibleDivisions(q.Beats, q.NoteValue)
	out := make([]int, len(divisions))
	for i, d := range divisions {
		out[i] = int(d)
	}
	c.JSON(http.StatusOK, gin.H{
		"divisions": out,
		"default":   int(theory.DefaultDivision(q.Beats, q.NoteValue)),
	})
}

// handleEncode godoc
// @Summary Encode a groove to a shareable URL
// @Description Serializes a groove into a query string and classifies the URL length
// @Tags groove
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/groove/encode [post]
func handleEncode(c *gin.Context) {
	var body GrooveJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := body.ToGroove()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := codec.Encode(g)
	fullURL := config.GetString("share.base_url") + "?" + query
	c.JSON(http.StatusOK, gin.H{
		"query":  query,
		"url":    fullURL,
		"length": codec.ValidateURLLength(fullURL),
	})
}

// handleDecode godoc
// @Summary Decode a groove URL
// @Description Parses a query string back into a groove
// @Tags groove
// @Accept json
// @Produce json
// @Success 200 {object} GrooveJSON
// @Failure 400 {object} map[string]string
// @Router /api/v1/groove/decode [post]
func handleDecode(c *gin.Context) {
	var body struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !codec.HasGrooveParams(body.Query) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query does not encode a groove"})
		return
	}
	g, err := codec.Decode(body.Query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, FromGroove(g))
}

// handleABC godoc
// @Summary Transcode a groove to ABC notation
// @Description Renders the groove as a two-stave ABC percussion score
// @Tags groove
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/groove/abc [post]
func handleABC(c *gin.Context) {
	var body struct {
		Groove          GrooveJSON              `json:"groove"`
		MeasuresPerLine int                     `json:"measuresPerLine"`
		Render          *notation.RenderOptions `json:"render,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := body.Groove.ToGroove()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	abc := notation.ToABC(g, notation.Options{MeasuresPerLine: body.MeasuresPerLine})
	perLine := body.MeasuresPerLine
	if perLine <= 0 {
		perLine = notation.DefaultMeasuresPerLine
	}
	resp := gin.H{"abc": abc, "measuresPerLine": perLine}
	if body.Render != nil {
		resp["render"] = body.Render
	}
	c.JSON(http.StatusOK, resp)
}

// handleMIDI godoc
// @Summary Export a groove as a MIDI file
// @Description Renders the groove as a Standard MIDI File download
// @Tags groove
// @Accept json
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/groove/midi [post]
func handleMIDI(c *gin.Context) {
	var body GrooveJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := body.ToGroove()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := export.GrooveToSMF(g)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := g.Title
	if name == "" {
		name = "groove"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".mid"))
	c.Data(http.StatusOK, "audio/midi", data)
}

// handleValidateURL godoc
// @Summary Classify a URL's share safety
// @Description Checks an encoded URL against the soft and hard length limits
// @Tags url
// @Accept json
// @Produce json
// @Success 200 {object} codec.LengthReport
// @Failure 400 {object} map[string]string
// @Router /api/v1/url/validate [post]
func handleValidateURL(c *gin.Context) {
	var body struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, codec.ValidateURLLength(body.URL))
}

// handleShorten godoc
// @Summary Shorten a groove URL
// @Description Exchanges a long groove URL for a short one via the configured shortener
// @Tags url
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/url/shorten [post]
func handleShorten(c *gin.Context) {
	var body struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	base := config.GetString("shortener.base_url")
	if base == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no shortener configured"})
		return
	}
	client := shorten.New(base, config.GetString("shortener.token"),
		time.Duration(config.GetInt("shortener.timeout"))*time.Second)
	short, err := client.Shorten(body.URL)
	if err != nil {
		var failure *shorten.Failure
		status := http.StatusBadGateway
		kind := shorten.FailureUnknown
		if errors.As(err, &failure) {
			kind = failure.Kind
			switch failure.Kind {
			case shorten.FailureUnauthorized:
				status = http.StatusUnauthorized
			case shorten.FailureRateLimited:
				status = http.StatusTooManyRequests
			}
		}
		c.JSON(status, gin.H{"error": err.Error(), "kind": string(kind)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"short_url": short})
}
