// Package support answers guest questions with canned guidance chosen by keyword.
package support

import (
	"fmt"
	"strings"
)

type Intent string

const (
	IntentBooking      Intent = "booking_help"
	IntentPayment      Intent = "payment_help"
	IntentCancellation Intent = "cancellation_help"
	IntentTechnical    Intent = "technical_support"
	IntentGeneral      Intent = "general_help"
)

// Context carries the user facts a reply may mention.
type Context struct {
	ActiveBookings int
}

type rule struct {
	intent   Intent
	keywords []string
}

// Checked in order; the first matching rule wins.
var rules = []rule{
	{IntentBooking, []string{"book", "reserve", "stay"}},
	{IntentPayment, []string{"payment", "pay", "card"}},
	{IntentCancellation, []string{"cancel", "refund", "policy"}},
	{IntentTechnical, []string{"error", "problem", "bug", "not working"}},
}

func Classify(message string) Intent {
	text := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.intent
			}
		}
	}
	return IntentGeneral
}

func Respond(intent Intent, ctx Context) string {
	switch intent {
	case IntentBooking:
		return "To book a stay, pick your dates on the listing page, check availability, review the price breakdown and continue to payment. " +
			"The dates are held while payment is pending. " + bookingsLine(ctx, "active booking(s)")
	case IntentPayment:
		return "Payments are taken by card through our payment provider and your booking is confirmed as soon as the charge succeeds. " +
			"If a payment fails you can retry it while the booking is still pending. " + bookingsLine(ctx, "booking(s) with a payment status")
	case IntentCancellation:
		return "Confirmed bookings can be cancelled more than a day before check-in. " +
			"Refunds: 7 or more days before check-in 100%, 1 to 7 days 50%, less than 24 hours no refund. " +
			bookingsLine(ctx, "booking(s) that may be eligible")
	case IntentTechnical:
		return "Sorry you hit a problem. Try refreshing the page and signing in again. " +
			"If the issue persists, reply with what you were doing and any error message you saw."
	default:
		return "I can help with bookings, payments, cancellations and refunds. What would you like to know?"
	}
}

// Topic is a quick-help entry a client can offer before the user types anything.
type Topic struct {
	Title       string
	Description string
	Intent      Intent
}

var topics = []Topic{
	{"How to book a stay", "Step-by-step guide to booking your stay", IntentBooking},
	{"Payment issues", "Help with payments and billing", IntentPayment},
	{"Cancel a booking", "How to cancel and get refunds", IntentCancellation},
	{"Technical problems", "Website and app troubleshooting", IntentTechnical},
	{"Account help", "Login, profile and account issues", IntentGeneral},
}

// Topics returns the quick-help list, one entry per intent.
func Topics() []Topic {
	return append([]Topic(nil), topics...)
}

// Reply classifies message and answers it in one step.
func Reply(message string, ctx Context) (Intent, string) {
	intent := Classify(message)
	return intent, Respond(intent, ctx)
}

func bookingsLine(ctx Context, what string) string {
	if ctx.ActiveBookings <= 0 {
		return "You have no active bookings."
	}
	return fmt.Sprintf("You have %d %s.", ctx.ActiveBookings, what)
}
