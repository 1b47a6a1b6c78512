package controllers

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"strconv"
	"strings"

	"goodturn-api/services"
	"goodturn-api/utils"
)

type DiscoveryController struct {
	cache *services.CacheService
}

func NewDiscoveryController(cache *services.CacheService) *DiscoveryController {
	return &DiscoveryController{cache: cache}
}

// SearchEvents handles GET /api/v1/events/search?city=&state=
func (dc *DiscoveryController) SearchEvents(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	state := strings.TrimSpace(c.Query("state"))
	if city == "" || state == "" {
		utils.SendValidationError(c, "city and state are required")
		return
	}

	events, err := dc.cache.Search(c.Request.Context(), city, state)
	if err != nil {
		utils.SendError(c, http.StatusServiceUnavailable, "Event lookup failed, please retry")
		return
	}

	utils.SendEvents(c, events, len(events))
}

// TonightEvents handles GET /api/v1/events/tonight?city=&state=&limit=
func (dc *DiscoveryController) TonightEvents(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	state := strings.TrimSpace(c.Query("state"))
	if city == "" || state == "" {
		utils.SendValidationError(c, "city and state are required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	events, err := dc.cache.DiscoverNow(c.Request.Context(), city, state, limit)
	if err != nil {
		utils.SendError(c, http.StatusServiceUnavailable, "Event lookup failed, please retry")
		return
	}

	utils.SendEvents(c, events, len(events))
}
