package reconciliation

import (
	"fmt"
	"strings"
	"tourledger/src/models"
	"tourledger/src/types"
)

func welcomeMessage(name, link string) (string, string) {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s,\n\nThanks for your booking. We created an account for you so you can manage it online.\nSet your password here: %s\n", name, link)
	return "Your booking account is ready", body
}

func giftCardMessage(card *models.GiftCard) (string, string) {
	var b strings.Builder
	name := card.RecipientName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nYou have received a gift card worth %s.\n", name, types.FormatCents(card.Amount))
	if card.Message != "" {
		fmt.Fprintf(&b, "\n%q\n", card.Message)
	}
	fmt.Fprintf(&b, "\nCode: %s\n", card.Code)
	if card.ExpiresAt != nil {
		fmt.Fprintf(&b, "Valid until %s.\n", card.ExpiresAt.Format("2 January 2006"))
	}
	return "You've received a gift card", b.String()
}
