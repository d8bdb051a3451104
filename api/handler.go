package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/martinkersner/dtmx-funding-rate-explorer/config"
	"github.com/martinkersner/dtmx-funding-rate-explorer/engine"
	"github.com/martinkersner/dtmx-funding-rate-explorer/metrics"
	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
	"github.com/martinkersner/dtmx-funding-rate-explorer/selection"
	"github.com/martinkersner/dtmx-funding-rate-explorer/source"
)

const dayFormat = "2006-01-02"

// SeriesParams are the query parameters of the series endpoint. Every
// parameter is optional; values that do not match the loaded data are
// resolved to defaults rather than rejected, so stale deep links keep
// working after the dataset changes.
type SeriesParams struct {
	Asset  string `form:"asset"`
	VenueA string `form:"venue_a"`
	VenueB string `form:"venue_b"`
	Start  string `form:"start"`
}

// Window reports the day range the series was computed over.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SeriesResponse echoes the resolved selection alongside the computed
// rows. Rows is empty (never null) when the selection yields no series;
// Message says why when that happens.
type SeriesResponse struct {
	Asset   string                `json:"asset"`
	VenueA  string                `json:"venue_a"`
	VenueB  string                `json:"venue_b"`
	Start   string                `json:"start"`
	Window  *Window               `json:"window,omitempty"`
	Rows    []models.VenuePairRow `json:"rows"`
	Message string                `json:"message,omitempty"`
}

// Handler serves the funding comparison API from a cached event table.
type Handler struct {
	cache    *source.TableCache
	defaults config.DefaultsConfig
}

func NewHandler(cache *source.TableCache, defaults config.DefaultsConfig) *Handler {
	return &Handler{cache: cache, defaults: defaults}
}

// GetSeries computes the venue-pair advantage series for the requested
// (or resolved) selection.
func (h *Handler) GetSeries(c *gin.Context) {
	var params SeriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	table, err := h.cache.Get(c.Request.Context())
	if err != nil {
		h.dataError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildSeries(table, params))
}

// GetAssets lists the assets observable from the selected start date on.
func (h *Handler) GetAssets(c *gin.Context) {
	table, err := h.cache.Get(c.Request.Context())
	if err != nil {
		h.dataError(c, err)
		return
	}

	start := selection.ResolveStartDate(c.Query("start"), h.defaults.Year)
	c.JSON(http.StatusOK, gin.H{"assets": table.From(start).Assets()})
}

// GetVenues lists the venues and canonical venue pairs available for an
// asset from the selected start date on. The asset is resolved with the
// same fallback rules as the series endpoint so the two endpoints always
// agree.
func (h *Handler) GetVenues(c *gin.Context) {
	table, err := h.cache.Get(c.Request.Context())
	if err != nil {
		h.dataError(c, err)
		return
	}

	start := selection.ResolveStartDate(c.Query("start"), h.defaults.Year)
	visible := table.From(start)

	asset, ok := selection.ResolveAsset(visible.Assets(), c.Query("asset"), h.defaults.Asset)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"asset": "", "venues": []string{}, "pairs": [][2]string{}})
		return
	}
	venues := visible.Venues(asset)
	pairs := selection.Pairs(venues)
	if pairs == nil {
		pairs = [][2]string{}
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "venues": venues, "pairs": pairs})
}

func (h *Handler) buildSeries(table models.EventTable, params SeriesParams) SeriesResponse {
	timer := prometheus.NewTimer(metrics.PipelineDuration)
	defer timer.ObserveDuration()

	start := selection.ResolveStartDate(params.Start, h.defaults.Year)
	resp := SeriesResponse{
		Start: start.Format(dayFormat),
		Rows:  []models.VenuePairRow{},
	}

	// Selections are resolved against the start-filtered table so the
	// offered choices always match what the pipeline can actually see.
	visible := table.From(start)

	asset, ok := selection.ResolveAsset(visible.Assets(), params.Asset, h.defaults.Asset)
	if !ok {
		resp.Message = "no funding data on or after " + resp.Start
		return resp
	}
	resp.Asset = asset

	pair, ok := selection.ResolvePair(selection.Pairs(visible.Venues(asset)), params.VenueA, params.VenueB)
	if !ok {
		resp.Message = "asset " + asset + " is reported by fewer than two venues"
		return resp
	}
	resp.VenueA, resp.VenueB = pair[0], pair[1]

	rows, window := engine.PairSeries(visible, asset, pair[0], pair[1])
	if window == nil {
		resp.Message = "venues " + pair[0] + " and " + pair[1] + " have no overlapping observations after " + resp.Start
		return resp
	}
	resp.Window = &Window{
		Start: window.Start.Format(dayFormat),
		End:   window.End.Format(dayFormat),
	}
	if len(rows) > 0 {
		resp.Rows = rows
	}
	return resp
}

// dataError maps a failed table load to a status code. Only an
// unavailable source is the client's concern (503); anything else is an
// internal fault.
func (h *Handler) dataError(c *gin.Context, err error) {
	if errors.Is(err, source.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// SetupRoutes wires the HTTP surface: the chart page, the JSON API, the
// health check and the Prometheus endpoint.
func SetupRoutes(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), metrics.GinMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/", ChartPage)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/funding/series", h.GetSeries)
	r.GET("/api/funding/assets", h.GetAssets)
	r.GET("/api/funding/venues", h.GetVenues)

	return r
}
