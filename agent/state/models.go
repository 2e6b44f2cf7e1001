package state

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
)

// Agent is one automated persona acting for a restaurant on one channel.
// Agents are never hard-deleted; disconnect is a state transition.
type Agent struct {
	bun.BaseModel `bun:"table:agents,alias:ag"`

	ID                string                         `bun:"id,pk"`
	RestaurantID      string                         `bun:"restaurant_id,notnull"`
	ChannelType       contractx.ChannelType          `bun:"channel_type,notnull"`
	ExternalAccountID string                         `bun:"external_account_id,unique,nullzero"`
	PairingCode       string                         `bun:"pairing_code,nullzero"`
	ConnectionState   contractx.AgentConnectionState `bun:"connection_state,notnull"`
	SupervisorContact string                         `bun:"supervisor_contact,nullzero"`
	Persona           string                         `bun:"persona,nullzero"`
	Goal              string                         `bun:"goal,nullzero"`
	Traits            []string                       `bun:"traits,array"`
	LastSyncStatus    string                         `bun:"last_sync_status,nullzero"`
	LastSyncAt        *time.Time                     `bun:"last_sync_at,nullzero"`
	ExcludedContacts  []string                       `bun:"excluded_contacts,array"`
	FlaggedNumbers    []string                       `bun:"flagged_numbers,array"`
	CreatedAt         time.Time                      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time                      `bun:"updated_at,notnull,default:current_timestamp"`
}

// ThreadRecord maps one (agent, external contact) pair to the canonical
// provider thread id. Title carries the encoded pair and is unique, so a
// concurrent duplicate create fails at the store instead of forking the
// conversation.
type ThreadRecord struct {
	bun.BaseModel `bun:"table:thread_records,alias:tr"`

	ID          string    `bun:"id,pk"`
	AgentID     string    `bun:"agent_id,notnull"`
	ContactID   string    `bun:"contact_id,notnull"`
	Title       string    `bun:"title,notnull,unique"`
	DisplayName string    `bun:"display_name,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Enquiry is a question the agent escalated to restaurant staff.
// Response is set if and only if status is resolved or closed.
type Enquiry struct {
	bun.BaseModel `bun:"table:enquiries,alias:en"`

	ID             string                  `bun:"id,pk"`
	ThreadID       string                  `bun:"thread_id,notnull"`
	AgentID        string                  `bun:"agent_id,notnull"`
	RestaurantID   string                  `bun:"restaurant_id,notnull"`
	Question       string                  `bun:"question,notnull"`
	ExternalChatID string                  `bun:"external_chat_id,notnull"`
	Status         contractx.EnquiryStatus `bun:"status,notnull"`
	Response       string                  `bun:"response,nullzero"`
	ResolverID     string                  `bun:"resolver_id,nullzero"`
	ResolvedAt     *time.Time              `bun:"resolved_at,nullzero"`
	ClosedAt       *time.Time              `bun:"closed_at,nullzero"`
	CreatedAt      time.Time               `bun:"created_at,notnull,default:current_timestamp"`
}

// Restaurant is the read-only slice of the CRUD layer's restaurant record
// that the tool surface exposes to the model.
type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:rs"`

	ID                string   `bun:"id,pk"`
	Name              string   `bun:"name,notnull"`
	Description       string   `bun:"description,nullzero"`
	OpeningHours      string   `bun:"opening_hours,nullzero"`
	FulfillmentPolicy string   `bun:"fulfillment_policy,nullzero"`
	DeliveryZones     []string `bun:"delivery_zones,array"`
}

type FoodItem struct {
	bun.BaseModel `bun:"table:food_items,alias:fi"`

	ID           string  `bun:"id,pk"`
	RestaurantID string  `bun:"restaurant_id,notnull"`
	Name         string  `bun:"name,notnull"`
	Description  string  `bun:"description,nullzero"`
	Price        float64 `bun:"price,notnull"`
	Currency     string  `bun:"currency,nullzero"`
	Available    bool    `bun:"available,notnull,default:true"`
}

// ThreadMessage is one entry of provider-side conversation memory.
// Assistant tool calls and tool results are persisted so a reopened thread
// replays the full exchange to the model.
type ThreadMessage struct {
	bun.BaseModel `bun:"table:thread_messages,alias:tm"`

	ID         int64           `bun:"id,pk,autoincrement"`
	ThreadID   string          `bun:"thread_id,notnull"`
	Role       string          `bun:"role,notnull"`
	Content    string          `bun:"content,nullzero"`
	ToolCalls  json.RawMessage `bun:"tool_calls,type:jsonb,nullzero"`
	ToolCallID string          `bun:"tool_call_id,nullzero"`
	ToolName   string          `bun:"tool_name,nullzero"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}
