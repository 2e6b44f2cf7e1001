package contract

import "time"

type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelInstagram ChannelType = "instagram"
)

// AgentConnectionState tracks the external channel-account lifecycle of an agent.
type AgentConnectionState string

const (
	AgentPending      AgentConnectionState = "pending"
	AgentConnected    AgentConnectionState = "connected"
	AgentDisconnected AgentConnectionState = "disconnected"
)

type AccountEventKind string

const (
	AccountCreationSuccess AccountEventKind = "CREATION_SUCCESS"
	AccountSyncSuccess     AccountEventKind = "SYNC_SUCCESS"
	AccountDeleted         AccountEventKind = "DELETED"
)

type EnquiryStatus string

const (
	EnquiryPending  EnquiryStatus = "pending"
	EnquiryResolved EnquiryStatus = "resolved"
	EnquiryClosed   EnquiryStatus = "closed"
)

// Sender identifies the external contact behind an inbound message.
type Sender struct {
	ExternalContactID string `json:"external_contact_id"`
	DisplayName       string `json:"display_name"`
}

// InboundMessageEvent is the channel-provider payload for a customer message.
type InboundMessageEvent struct {
	ChatID            string `json:"chat_id"`
	ExternalAccountID string `json:"external_account_id"`
	IsGroup           bool   `json:"is_group"`
	MessageID         string `json:"message_id,omitempty"`
	Sender            Sender `json:"sender"`
	Message           string `json:"message"`
}

// AccountStatusEvent is the channel-provider payload for account lifecycle changes.
type AccountStatusEvent struct {
	ExternalAccountID string           `json:"external_account_id"`
	AccountType       string           `json:"account_type,omitempty"`
	EventKind         AccountEventKind `json:"event_kind"`
}

// ToolContext is the explicit execution context threaded into every tool
// invocation. Tools never read identifiers from ambient state.
type ToolContext struct {
	AgentID        string `json:"agent_id"`
	ThreadID       string `json:"thread_id"`
	RestaurantID   string `json:"restaurant_id"`
	ExternalChatID string `json:"external_chat_id"`
}

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// GenerationResult is the outcome of one bounded tool-calling pass.
// Text may be non-empty even when BudgetExhausted is set; the orchestrator
// forwards best-effort output instead of dropping it.
type GenerationResult struct {
	Text            string
	Steps           int
	BudgetExhausted bool
}

// RestaurantProfile is the public restaurant view exposed to the tool surface.
type RestaurantProfile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	OpeningHours      string   `json:"opening_hours,omitempty"`
	FulfillmentPolicy string   `json:"fulfillment_policy,omitempty"`
	DeliveryZones     []string `json:"delivery_zones,omitempty"`
}

type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	Available   bool    `json:"available"`
}

// LastSync records the outcome of the most recent channel sync event.
type LastSync struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
