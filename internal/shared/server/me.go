package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/shared/server/middleware"
	"credit-backend/internal/shared/server/respond"
	"credit-backend/internal/shared/util"
)

type meResponse struct {
	UserID      string `json:"userId"`
	OwnerPrefix string `json:"ownerPrefix"`
}

func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing caller identity", nil)
			return
		}
		// Clients build upload keys under this prefix.
		respond.OK(c, meResponse{UserID: userID, OwnerPrefix: util.OwnerPrefix(userID)})
	})
}
