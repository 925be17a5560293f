package model

import (
	"fmt"
	"strings"
	"time"
)

// Trigger is the condition an alert rule watches for.
type Trigger string

// Alert triggers.
const (
	TriggerIncrease       Trigger = "increase"
	TriggerDecrease       Trigger = "decrease"
	TriggerAbove          Trigger = "above"
	TriggerBelow          Trigger = "below"
	TriggerBelowBenchmark Trigger = "below_benchmark"
	TriggerChange         Trigger = "change"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TriggerIncrease, TriggerDecrease, TriggerAbove, TriggerBelow, TriggerBelowBenchmark, TriggerChange:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
}

// AlertRule is a user-defined condition on one KPI. Platform and CampaignID
// narrow the scope when set.
type AlertRule struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	KPI        KPI      `json:"kpi"`
	Trigger    Trigger  `json:"trigger"`
	Threshold  float64  `json:"threshold"`
	Platform   Platform `json:"platform,omitempty"`
	CampaignID string   `json:"campaign_id,omitempty"`
	Active     bool     `json:"active"`
}

// AlertEvent is emitted when a rule's condition holds.
type AlertEvent struct {
	ID         string    `json:"id"`
	RuleID     string    `json:"rule_id"`
	UserID     string    `json:"user_id"`
	KPI        KPI       `json:"kpi"`
	Trigger    Trigger   `json:"trigger"`
	Platform   Platform  `json:"platform,omitempty"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Current    float64   `json:"current"`
	Previous   *float64  `json:"previous,omitempty"`
	Threshold  float64   `json:"threshold"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}
