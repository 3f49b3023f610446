package main

import (
	"log"
	"net/http"
	"tourledger/src/middlewares"
	"tourledger/src/types"

	"github.com/gin-gonic/gin"
)

func (a *app) cronHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	cron := apiv1.Group("/cron")
	cron.Use(middlewares.CronAuth(a.cfg.CronSecret))
	cron.POST("/payment-reminders", func(ctx *gin.Context) {
		summary, err := a.reminders.Run(ctx.Request.Context())
		if err != nil {
			log.Printf("[Reminders] scan failed: %s\n", err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		ctx.JSON(http.StatusOK, types.APIResponseReminders{
			BalanceReminders: summary.BalanceReminders,
			DepositReminders: summary.DepositReminders,
			Failed:           summary.Failed,
		})
	})
	return cron
}
