package models

// Product is one catalog entry as seen by the conversation engine.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Category    string  `json:"category,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Policies holds the business policy fragments surfaced in the system prompt.
type Policies struct {
	Shipping   string `json:"shipping,omitempty"`
	Refund     string `json:"refund,omitempty"`
	BrandVoice string `json:"brand_voice,omitempty"`
}

// LeadMemory is the per-contact commercial state snapshot loaded before a run.
type LeadMemory struct {
	Stage          string   `json:"stage,omitempty"`
	ProductsViewed []string `json:"products_viewed,omitempty"`
	Preferences    []string `json:"preferences,omitempty"`
	Objections     []string `json:"objections,omitempty"`
}

// PendingOrder describes an in-flight transaction the agent must be aware of,
// e.g. an order awaiting payment proof.
type PendingOrder struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id,omitempty"`
	Status    string `json:"status"`
}

// HTTPToolConfig is a tenant-configured generic HTTP tool. URL, header
// values, and body template may contain {{variable}} placeholders that
// are interpolated with LLM-supplied arguments at call time.
type HTTPToolConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Method      string            `json:"method" yaml:"method"`
	URL         string            `json:"url" yaml:"url"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`

	// Schema is an optional JSON Schema for the tool's arguments.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Objective selects which built-in tools a tenant's agent exposes.
type Objective string

const (
	ObjectiveSales        Objective = "sales"
	ObjectiveAppointments Objective = "appointments"
)

// TenantContext is the per-conversation snapshot of tenant configuration
// and commercial state handed to the conversation engine. It is assembled
// by the host before a drain and is read-only during the run.
type TenantContext struct {
	BusinessID     string           `json:"business_id"`
	BusinessName   string           `json:"business_name"`
	Timezone       string           `json:"timezone,omitempty"`
	CurrencySymbol string           `json:"currency_symbol,omitempty"`
	Objective      Objective        `json:"objective,omitempty"`
	CustomPrompt   string           `json:"custom_prompt,omitempty"`
	Products       []Product        `json:"products,omitempty"`
	Policies       Policies         `json:"policies,omitempty"`
	Lead           LeadMemory       `json:"lead,omitempty"`
	PendingOrder   *PendingOrder    `json:"pending_order,omitempty"`
	MediaResources map[string]string `json:"media_resources,omitempty"`
	LearnedRules   []string         `json:"learned_rules,omitempty"`
	HTTPTools      []HTTPToolConfig `json:"http_tools,omitempty"`

	// AdvancedMode routes the run through the secondary LLM pathway
	// when available.
	AdvancedMode bool `json:"advanced_mode,omitempty"`

	// ContactName is a display name for the sender, when known.
	ContactName string `json:"contact_name,omitempty"`
}
