package bank

const (
	// GarantiProductionAPIURL is the production API endpoint
	GarantiProductionAPIURL = "https://api.garantibbva.com.tr"
	// GarantiSandboxAPIURL is the sandbox API endpoint
	GarantiSandboxAPIURL = "https://sandbox.api.garantibbva.com.tr"
	// GarantiDefaultScope is requested when the connector has no scope override
	GarantiDefaultScope = "accounts payments fx"
)

// GarantiConfig holds endpoint settings for the GarantiBBVA API
type GarantiConfig struct {
	ProductionURL string
	SandboxURL    string
	TokenPath     string
	DefaultScope  string
}

// DefaultGarantiConfig returns the published GarantiBBVA endpoints
func DefaultGarantiConfig() *GarantiConfig {
	return &GarantiConfig{
		ProductionURL: GarantiProductionAPIURL,
		SandboxURL:    GarantiSandboxAPIURL,
		TokenPath:     "/oauth2/token",
		DefaultScope:  GarantiDefaultScope,
	}
}
