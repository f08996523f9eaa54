package upsell

import (
	"fmt"
	"strings"
	"time"
)

// SummaryChannel is the channel that internal summaries are posted to.
const SummaryChannel = "#sales-opportunities"

// OpportunityType is the ledger classification for engagements produced by
// this process.
const OpportunityType = "usage_based_upsell"

// NewDraft composes the outbound communication for a recommendation.
//
// It is a pure computation.
func NewDraft(u UsageSnapshot, c ContractSnapshot, r Recommendation) Draft {
	var features strings.Builder
	for _, f := range r.Features {
		fmt.Fprintf(&features, "- %s\n", f)
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"We've noticed that your account %s has been experiencing significant growth in %s usage.\n\n"+
			"Current Usage: %.1f\n"+
			"Usage Trend: %s\n"+
			"Current Plan: %s\n\n"+
			"Based on your usage patterns, we recommend upgrading to our %s plan, which includes:\n\n"+
			"%s\n"+
			"Estimated Value: $%.2f\n"+
			"ROI Analysis: %s\n\n"+
			"Would you be interested in discussing this opportunity further?\n\n"+
			"Best regards,\n"+
			"Your Account Team",
		c.PrimaryContact,
		u.AccountID,
		u.MetricType,
		u.CurrentUsage,
		u.Trend,
		c.CurrentPlan,
		r.Plan,
		features.String(),
		r.EstimatedValue,
		r.ROIAnalysis,
	)

	return Draft{
		Subject:   fmt.Sprintf("Growth Opportunity: Upgrade to %s Plan", r.Plan),
		Body:      body,
		Recipient: c.PrimaryContact,
		CC:        []string{c.SecondaryContact},
	}
}

// NewSummary composes the internal summary for an opportunity.
func NewSummary(
	u UsageSnapshot,
	c ContractSnapshot,
	r Recommendation,
	sent bool,
) Summary {
	sentMark := "no"
	if sent {
		sentMark = "yes"
	}

	message := fmt.Sprintf(
		"Upsell Opportunity Detected\n\n"+
			"Account: %s\n"+
			"Current Plan: %s\n"+
			"Usage Trend: %s (%.1f)\n"+
			"Recommended Plan: %s\n"+
			"Estimated Value: $%.2f\n"+
			"Communication Sent: %s",
		u.AccountID,
		c.CurrentPlan,
		u.Trend,
		u.CurrentUsage,
		r.Plan,
		r.EstimatedValue,
		sentMark,
	)

	return Summary{
		Channel: SummaryChannel,
		Message: message,
		Attachments: []SummaryAttachment{
			{
				Title: "Usage Analysis",
				Text: fmt.Sprintf(
					"Current: %.1f, Threshold: %.1f",
					u.CurrentUsage,
					u.Threshold,
				),
			},
			{
				Title: "ROI Analysis",
				Text:  r.ROIAnalysis,
			},
		},
	}
}

// NewMeeting composes the follow-up meeting for an affirmative reply.
func NewMeeting(
	accountID string,
	c ContractSnapshot,
	r Recommendation,
	start time.Time,
) Meeting {
	return Meeting{
		Topic: fmt.Sprintf(
			"Upsell Discussion - %s - %s Plan",
			accountID,
			r.Plan,
		),
		StartTime: start,
		Duration:  30 * time.Minute,
		Attendees: []string{
			c.PrimaryContact,
			c.SecondaryContact,
			"sales@company.com",
		},
	}
}

// NewOutcome composes the ledger entry for a completed engagement.
func NewOutcome(
	in Input,
	r Recommendation,
	reply ReplyOutcome,
	meetingScheduled bool,
	now time.Time,
) Outcome {
	meeting := "not scheduled"
	if meetingScheduled {
		meeting = "scheduled"
	}

	return Outcome{
		AccountID:       in.AccountID,
		EventID:         in.EventID,
		OpportunityType: OpportunityType,
		EstimatedValue:  r.EstimatedValue,
		Status:          reply,
		CreatedAt:       now,
		Notes: fmt.Sprintf(
			"Triggered by %s recommendation. Follow-up meeting: %s.",
			r.Plan,
			meeting,
		),
	}
}
