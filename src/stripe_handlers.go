package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"tourledger/src/types"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = int64(65536)

// acknowledged reports errors the gateway should not retry: the payload will
// never become valid on redelivery.
func acknowledged(err error) bool {
	return errors.Is(err, types.ErrMissingMetadata) || errors.Is(err, types.ErrValidation)
}

func (a *app) stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes)
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		event, err := a.verifier.Parse(payload, ctx.GetHeader("Stripe-Signature"))
		if err != nil {
			if acknowledged(err) {
				log.Printf("[Stripe] ignoring event: %s\n", err.Error())
				ctx.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
			return
		}
		log.Printf("[StripeEvent] %s %T\n", event.EventID(), event)

		if err := a.engine.HandleEvent(ctx.Request.Context(), event); err != nil {
			if acknowledged(err) {
				log.Printf("[Stripe] event %s not applied: %s\n", event.EventID(), err.Error())
				ctx.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			log.Printf("[Stripe] event %s failed: %s\n", event.EventID(), err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler failed"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"received": true})
	})
	return apiv1
}
