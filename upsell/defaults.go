package upsell

import "time"

// DefaultUsageSnapshot returns the documented default usage snapshot,
// substituted when the usage source is unavailable.
//
// It is deterministic so that it is safe to compute during retries.
func DefaultUsageSnapshot(accountID, metricType string) UsageSnapshot {
	return UsageSnapshot{
		AccountID:    accountID,
		MetricType:   metricType,
		CurrentUsage: 150.0,
		Trend:        "increasing",
		Period:       "monthly",
		Threshold:    100.0,
		Source:       "default",
	}
}

// DefaultContractSnapshot returns the documented default contract snapshot,
// substituted when the contract store is unavailable.
//
// now anchors the contract dates; passing a fixed time keeps the snapshot
// deterministic across retries.
func DefaultContractSnapshot(accountID string, now time.Time) ContractSnapshot {
	return ContractSnapshot{
		AccountID:        accountID,
		CurrentPlan:      "Basic",
		EndDate:          now.AddDate(1, 0, 0),
		RenewalDate:      now.AddDate(1, 0, -30),
		CurrentSpend:     99.0,
		TermLength:       "12 months",
		AutoRenewal:      true,
		PrimaryContact:   "contact@company.com",
		SecondaryContact: "billing@company.com",
	}
}
