package reply

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/booking-concierge/internal/booking"
	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/schedule"
)

var frenchMarkers = regexp.MustCompile(`(?i)\b(bonjour|bonsoir|salut|merci|je|voudrais|rdv|rendez-vous|demain|après-demain|svp|s'il|est-ce|pour|avec|oui|non)\b`)

func isFrench(text string) bool {
	return frenchMarkers.MatchString(text)
}

var fieldLabels = map[extraction.Field][2]string{
	extraction.FieldDate:    {"the day", "le jour"},
	extraction.FieldTime:    {"the time", "l'heure"},
	extraction.FieldService: {"the service", "la prestation"},
	extraction.FieldName:    {"your name", "votre nom"},
}

// Template is the deterministic reply for an outcome. It is used when reply
// generation fails and never claims a booking that was not committed.
func Template(out booking.Outcome, businessName, lastCustomerText string) string {
	fr := isFrench(lastCustomerText)
	lang := 0
	if fr {
		lang = 1
	}
	req := out.Request

	switch out.State {
	case booking.StateCommitted:
		if fr {
			return fmt.Sprintf("C'est noté ! Votre rendez-vous est réservé le %s à %s%s. À bientôt chez %s !",
				schedule.FormatDate(*req.Date), req.Time, serviceSuffix(req.Service, " pour "), businessName)
		}
		return fmt.Sprintf("All set! Your appointment is booked for %s at %s%s. See you soon at %s!",
			schedule.FormatDate(*req.Date), req.Time, serviceSuffix(req.Service, " for "), businessName)

	case booking.StateConflict:
		alts := joinTimes(out.Alternatives)
		switch {
		case out.Reason == booking.ReasonClosed && fr:
			return "Désolé, nous sommes fermés ce jour-là. Quel autre jour vous conviendrait ?"
		case out.Reason == booking.ReasonClosed:
			return "Sorry, we're closed that day. Which other day would suit you?"
		case alts == "" && fr:
			return "Désolé, ce créneau n'est pas disponible. Quel autre jour vous conviendrait ?"
		case alts == "":
			return "Sorry, that slot isn't available. Which other day would suit you?"
		case fr:
			return fmt.Sprintf("Désolé, ce créneau n'est pas disponible. Je peux vous proposer : %s. Lequel vous convient ?", alts)
		default:
			return fmt.Sprintf("Sorry, that slot isn't available. I can offer: %s. Which one works for you?", alts)
		}

	case booking.StateIntentDetected:
		labels := make([]string, 0, len(req.MissingInfo))
		for _, f := range req.MissingInfo {
			labels = append(labels, fieldLabels[f][lang])
		}
		if fr {
			return fmt.Sprintf("Avec plaisir ! Pouvez-vous me préciser %s ?", joinWords(labels, " et "))
		}
		return fmt.Sprintf("Happy to help! Could you tell me %s?", joinWords(labels, " and "))

	case booking.StateFailed:
		if fr {
			return "Désolé, un problème technique nous empêche d'enregistrer votre rendez-vous, il n'est donc pas réservé. Pouvez-vous réessayer dans quelques minutes ?"
		}
		return "Sorry, a technical problem stopped us from saving your appointment. Nothing was booked, please try again in a few minutes."
	}

	if fr {
		return fmt.Sprintf("Bonjour ! Ici %s. Comment puis-je vous aider ?", businessName)
	}
	return fmt.Sprintf("Hi! This is %s. How can I help you?", businessName)
}

func serviceSuffix(service, sep string) string {
	if service == "" {
		return ""
	}
	return sep + service
}

func joinWords(words []string, last string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	return strings.Join(words[:len(words)-1], ", ") + last + words[len(words)-1]
}
