package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/pharmacy-orderflow/internal/auth"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
	"github.com/imrishuroy/pharmacy-orderflow/internal/recommend"
)

const maxLimit = 50

// RegisterRecommendationRoutes registers the alternatives and personalised
// recommendation routes.
func RegisterRecommendationRoutes(r gin.IRouter, cfg HandlerConfig) {
	svc := cfg.Recommender

	r.GET("/catalog/:id/alternatives", func(c *gin.Context) {
		opts := recommend.AlternativeOptions()
		if err := parseLimit(c, &opts); err != nil {
			writeError(c, err)
			return
		}
		if raw := c.Query("prefer_cheaper"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(c, &orders.ValidationError{Field: "prefer_cheaper", Message: "must be true or false"})
				return
			}
			opts.PreferCheaper = b
		}
		items, err := svc.Alternatives(c.Request.Context(), c.Param("id"), opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	r.GET("/users/:id/recommendations", func(c *gin.Context) {
		actor := auth.ActorFrom(c)
		userID := c.Param("id")
		if !actor.IsAdmin() && (actor.IsGuest() || actor.ID != userID) {
			writeError(c, orders.ErrForbidden)
			return
		}
		opts := recommend.RecommendationOptions()
		if err := parseLimit(c, &opts); err != nil {
			writeError(c, err)
			return
		}
		res, err := svc.ForUser(c.Request.Context(), userID, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

func parseLimit(c *gin.Context, opts *recommend.Options) error {
	raw := c.Query("limit")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return &orders.ValidationError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxLimit)}
	}
	opts.MaxResults = n
	return nil
}
