package main

import (
	"log"
	"net/http"
	"tourledger/src/giftcards"
	"tourledger/src/middlewares"
	"tourledger/src/models"
	"tourledger/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func giftCardResponse(card *models.GiftCard) types.APIResponseGiftCard {
	return types.APIResponseGiftCard{
		Code:             card.Code,
		Amount:           card.Amount,
		RemainingBalance: card.RemainingBalance,
		Status:           card.Status,
		ExpiresAt:        card.ExpiresAt,
	}
}

func (a *app) giftCardHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	cards := apiv1.Group("/gift-cards")
	cards.
		POST("/validate", func(ctx *gin.Context) {
			var body types.ValidateGiftCardRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
				return
			}
			card, err := a.giftCards.Validate(ctx.Request.Context(), body.Code)
			if err != nil {
				ctx.JSON(types.HTTPStatus(err), gin.H{"valid": false, "error": types.GiftCardMessage(err)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"valid": true, "data": giftCardResponse(card)})
		}).
		POST("/apply", middlewares.AdminAuth(a.cfg.JWTSecret), func(ctx *gin.Context) {
			var body types.ApplyGiftCardRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req := giftcards.ApplyRequest{
				Code:        body.Code,
				AmountToPay: body.AmountToPay,
				UserID:      body.UserID,
			}
			if body.BookingID != "" {
				id := uuid.MustParse(body.BookingID)
				req.BookingID = &id
			}
			redemption, err := a.giftCards.Apply(ctx.Request.Context(), req)
			if err != nil {
				log.Printf("[GiftCards] apply failed: %s\n", err.Error())
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": types.GiftCardMessage(err)})
				return
			}
			if redemption.AuditErr != nil {
				log.Printf("[GiftCards] redemption of %s not recorded: %s\n", redemption.Card.Code, redemption.AuditErr.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"data": types.APIResponseRedemption{
				Code:             redemption.Card.Code,
				Discount:         redemption.Discount,
				RemainingBalance: redemption.RemainingBalance,
				Status:           redemption.Status,
			}})
		}).
		GET("/:code", func(ctx *gin.Context) {
			card, err := a.giftCards.Lookup(ctx.Request.Context(), ctx.Param("code"))
			if err != nil {
				ctx.JSON(types.HTTPStatus(err), gin.H{"error": types.GiftCardMessage(err)})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": giftCardResponse(card)})
		})
	return cards
}
