package main

import (
	"log"
	"net/http"
	"tourledger/src/middlewares"
	"tourledger/src/sessions"
	"tourledger/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (a *app) adminHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	admin := apiv1.Group("/admin")
	admin.Use(middlewares.AdminAuth(a.cfg.JWTSecret))
	admin.PUT("/bookings/session", func(ctx *gin.Context) {
		var body types.ChangeSessionRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := a.changer.Change(ctx.Request.Context(), sessions.ChangeRequest{
			BookingID:    uuid.MustParse(body.BookingID),
			NewSessionID: body.NewSessionID,
			NewTourID:    body.NewTourID,
		})
		if err != nil {
			log.Printf("[Admin] session change for %s failed: %s\n", body.BookingID, err.Error())
			ctx.JSON(types.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		log.Printf("[Admin] %s moved booking %s to session %s\n", ctx.GetString("uid"), body.BookingID, body.NewSessionID)
		ctx.JSON(http.StatusOK, result)
	})
	return admin
}
