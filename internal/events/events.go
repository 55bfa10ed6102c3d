// Package events publishes status-change notifications for the external
// notification pipeline. Delivery (SMS/WhatsApp to the customer) is out of
// scope; this is the producing side of that interface.
package events

import "context"

// StatusChange is the message published after every successful transition.
type StatusChange struct {
	MaintenanceNo string `json:"maintenance_no"`
	ItemName      string `json:"item_name"`
	CustomerName  string `json:"customer_name"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	TransitionID  string `json:"transition_id"`
	Label         string `json:"label"`
	ChangedBy     string `json:"changed_by"`
	ChangedAt     string `json:"changed_at"`
}

// Publisher emits status-change events.
type Publisher interface {
	PublishStatusChange(ctx context.Context, msg StatusChange) error
	Close() error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) PublishStatusChange(context.Context, StatusChange) error { return nil }
func (Nop) Close() error                                            { return nil }
