package exchange

// ExchangeConfig holds configuration for creating exchange instances.
type ExchangeConfig struct {
	Name  string       `json:"name"` // exchange name (e.g. "bybit")
	Bybit *BybitConfig `json:"bybit,omitempty"`
}

// BybitConfig holds Bybit-specific configuration. Credentials are normally
// injected from the environment rather than the config file.
type BybitConfig struct {
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
	Category  string `json:"category"` // "linear", "spot", "inverse"
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
}
