package api

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed index.html
var chartPage []byte

// ChartPage serves the embedded single-page chart UI. The page drives the
// JSON API and mirrors the current selection into the URL so charts can be
// deep-linked.
func ChartPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", chartPage)
}
