package main

import (
	"log"
	"net/http"
	"tourledger/src/middlewares"
	"tourledger/src/reconciliation"
	"tourledger/src/types"
	"tourledger/src/webhooks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestFromBody(body *types.CreateBookingRequestBody) (reconciliation.Request, bool) {
	req := reconciliation.Request{
		IntentID:        body.PaymentIntentID,
		UserID:          body.UserID,
		TourID:          body.TourID,
		SessionID:       body.SessionID,
		Quantity:        body.Quantity,
		AmountPaid:      body.AmountPaid,
		TourTitle:       body.TourTitle,
		TourDestination: body.TourDestination,
		GiftCardCode:    body.GiftCardCode,
		Customer: webhooks.Customer{
			Email: body.CustomerEmail,
			Name:  body.CustomerName,
		},
	}
	if body.PaymentType != "" {
		pt, ok := types.ParsePaymentType(body.PaymentType)
		if !ok {
			return req, false
		}
		req.PaymentType = pt
	}
	if body.SessionPrice > 0 {
		req.Pricing = &webhooks.Pricing{Price: body.SessionPrice, Deposit: body.SessionDeposit}
	}
	return req, true
}

func (a *app) bookingHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	bookings := apiv1.Group("/bookings")
	bookings.Use(middlewares.AdminAuth(a.cfg.JWTSecret))
	bookings.
		POST("", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req, ok := requestFromBody(&body)
			if !ok {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "payment_type must be one of deposit, balance, full"})
				return
			}
			out, err := a.engine.CreateBooking(ctx.Request.Context(), req)
			if err != nil {
				log.Printf("[Bookings] create failed: %s\n", err.Error())
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": err.Error()})
				return
			}
			for _, w := range out.Warnings {
				log.Printf("[Bookings] %s: %s\n", out.Booking.StripePaymentIntentID, w.Error())
			}
			status := http.StatusCreated
			if out.Action == reconciliation.ActionReplayed || out.Action == reconciliation.ActionSkipped {
				status = http.StatusOK
			}
			ctx.JSON(status, gin.H{
				"data":         out.Booking,
				"action":       out.Action,
				"user_created": out.UserCreated,
			})
		}).
		GET("/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := a.bookings.FindByID(ctx.Request.Context(), uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/:id/balance-checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := a.bookings.FindByID(ctx.Request.Context(), uuid.MustParse(params.ID))
			if err != nil {
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": err.Error()})
				return
			}
			if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_DEPOSIT_PAID {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "booking is not awaiting payment"})
				return
			}
			cs, err := a.checkout.BalanceCheckout(ctx.Request.Context(), booking)
			if err != nil {
				log.Printf("[Stripe] balance checkout for %s failed: %s\n", booking.ID, err.Error())
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": cs.ID, "url": cs.URL})
		})
	return bookings
}
