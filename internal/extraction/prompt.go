package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/internal/schedule"
)

const outputSchema = `Respond with ONE JSON object and nothing else, exactly this shape:
{
  "hasAppointment": boolean,   // the customer wants to book an appointment
  "readyToCreate": boolean,    // true only if both date and time are known
  "date": "YYYY-MM-DD" | null,
  "time": "HH:MM" | null,      // 24h clock
  "service": string | null,
  "name": string | null,       // the customer's name if given
  "missingInfo": ["date" | "time" | "service" | "name"],
  "confidence": number         // between 0 and 1
}`

// buildPrompt renders the extraction request for a conversation.
func buildPrompt(history []nlu.Message, today time.Time) nlu.Request {
	var sys strings.Builder
	sys.WriteString("You extract appointment booking details from a customer chat with a business.\n")
	sys.WriteString("Read the whole conversation. Information given in earlier messages still counts.\n\n")

	fmt.Fprintf(&sys, "Today is %s (%s).\n", today.Format("Monday 2 January 2006"), schedule.FormatDate(today))
	sys.WriteString("Resolve relative dates against today before answering:\n")
	fmt.Fprintf(&sys, "- \"today\" / \"aujourd'hui\" = %s\n", schedule.FormatDate(today))
	fmt.Fprintf(&sys, "- \"tomorrow\" / \"demain\" = %s\n", schedule.FormatDate(today.AddDate(0, 0, 1)))
	fmt.Fprintf(&sys, "- \"day after tomorrow\" / \"après-demain\" = %s\n", schedule.FormatDate(today.AddDate(0, 0, 2)))
	sys.WriteString("- a weekday name means its next occurrence from today\n")
	fmt.Fprintf(&sys, "- a date without a year (\"15 December\", \"15 décembre\") is in %d\n\n", today.Year())

	sys.WriteString("List in missingInfo only fields the customer has not given anywhere in the conversation. ")
	sys.WriteString("If the customer corrects a field, use the latest value.\n")
	sys.WriteString("If the customer is not asking to book, set hasAppointment to false.\n\n")
	sys.WriteString(outputSchema)

	var convo strings.Builder
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		speaker := "Customer"
		if m.Role == nlu.RoleAssistant {
			speaker = "Business"
		}
		fmt.Fprintf(&convo, "%s: %s\n", speaker, content)
	}

	return nlu.Request{
		System: sys.String(),
		Messages: []nlu.Message{{
			Role:    nlu.RoleUser,
			Content: "Conversation:\n" + convo.String() + "\nReturn the JSON object.",
		}},
		MaxTokens:   300,
		Temperature: 0,
		JSON:        true,
	}
}
