package upsell

import "strings"

// ClassifyReply maps a reply payload onto an outcome using case-insensitive
// keyword matching.
//
// Unrecognized payloads classify as ReplyMaybe; a reply that is neither
// clearly affirmative nor clearly negative still warrants human follow-up.
func ClassifyReply(payload string) ReplyOutcome {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "yes", "y", "interested", "schedule":
		return ReplyYes

	case "no", "n", "not interested":
		return ReplyNo

	default:
		return ReplyMaybe
	}
}
