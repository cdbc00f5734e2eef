// Package action defines proposed side effects produced by tasks, and the
// validation applied to them before they reach the decision engine.
package action

import (
	"fmt"
	"time"
)

// Classification is the decision engine's verdict on an action.
type Classification string

const (
	AutoApprove   Classification = "auto_approve"
	NeedsApproval Classification = "needs_approval"
	Reject        Classification = "reject"
)

// Kind discriminates the closed set of action payload variants. Agent output
// that does not match one of these shapes is a permanent error, rejected at
// the worker boundary.
type Kind string

const (
	KindSendAlert       Kind = "send_alert"
	KindCreateWorkOrder Kind = "create_work_order"
	KindAdjustSetpoint  Kind = "adjust_setpoint"
)

// Payload is a tagged union: exactly one variant must be set, matching Kind.
type Payload struct {
	Kind      Kind              `json:"kind"`
	Alert     *AlertPayload     `json:"alert,omitempty"`
	WorkOrder *WorkOrderPayload `json:"work_order,omitempty"`
	Setpoint  *SetpointPayload  `json:"setpoint,omitempty"`
}

// AlertPayload notifies tenant users about a finding.
type AlertPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"` // "info", "warning", "critical"
}

// WorkOrderPayload proposes creating a maintenance work order.
type WorkOrderPayload struct {
	SiteID      string `json:"site_id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// SetpointPayload proposes adjusting an operational setpoint.
type SetpointPayload struct {
	DeviceID string  `json:"device_id"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
}

// Validate checks that the payload is a well-formed member of the union.
func (p *Payload) Validate() error {
	switch p.Kind {
	case KindSendAlert:
		if p.Alert == nil || p.WorkOrder != nil || p.Setpoint != nil {
			return fmt.Errorf("payload kind %q: alert variant must be set exclusively", p.Kind)
		}
		if p.Alert.Title == "" {
			return fmt.Errorf("alert payload: title is required")
		}
	case KindCreateWorkOrder:
		if p.WorkOrder == nil || p.Alert != nil || p.Setpoint != nil {
			return fmt.Errorf("payload kind %q: work_order variant must be set exclusively", p.Kind)
		}
		if p.WorkOrder.SiteID == "" || p.WorkOrder.Description == "" {
			return fmt.Errorf("work order payload: site_id and description are required")
		}
	case KindAdjustSetpoint:
		if p.Setpoint == nil || p.Alert != nil || p.WorkOrder != nil {
			return fmt.Errorf("payload kind %q: setpoint variant must be set exclusively", p.Kind)
		}
		if p.Setpoint.DeviceID == "" || p.Setpoint.Metric == "" {
			return fmt.Errorf("setpoint payload: device_id and metric are required")
		}
	default:
		return fmt.Errorf("unknown action kind %q", p.Kind)
	}
	return nil
}

// RiskInputs are the declared risk characteristics of a proposed action.
// The decision engine derives the risk score from these alone.
type RiskInputs struct {
	// Magnitude of the external effect in [0, 1]; 1 is the largest effect
	// the capability can propose.
	Magnitude float64 `json:"magnitude"`

	// Reversibility in [0, 1]; 1 means fully reversible.
	Reversibility float64 `json:"reversibility"`

	// Confidence of the producing task in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Action is a proposed effect produced by a task. Immutable after
// classification; only the associated approval state may change afterwards.
type Action struct {
	ID             string         `json:"id"`
	TaskID         string         `json:"task_id"`
	TenantID       string         `json:"tenant_id"`
	Payload        Payload        `json:"payload"`
	Risk           RiskInputs     `json:"risk"`
	RiskScore      float64        `json:"risk_score"`
	Classification Classification `json:"classification,omitempty"`
	PolicyVersion  int            `json:"policy_version,omitempty"`
	Committed      bool           `json:"committed"`
	CreatedAt      time.Time      `json:"created_at"`
}
