package bank

const (
	// ZiraatProductionAPIURL is the production API endpoint
	ZiraatProductionAPIURL = "https://api.ziraatbank.com.tr"
	// ZiraatSandboxAPIURL is the sandbox API endpoint
	ZiraatSandboxAPIURL = "https://sandbox-api.ziraatbank.com.tr"
	// ZiraatCorporateScope is requested for corporate connectors
	ZiraatCorporateScope = "corporate_accounts corporate_payments"
)

// ZiraatConfig holds endpoint settings for the Ziraat Bankası API
type ZiraatConfig struct {
	ProductionURL  string
	SandboxURL     string
	TokenPath      string
	CorporateScope string
}

// DefaultZiraatConfig returns the published Ziraat endpoints
func DefaultZiraatConfig() *ZiraatConfig {
	return &ZiraatConfig{
		ProductionURL:  ZiraatProductionAPIURL,
		SandboxURL:     ZiraatSandboxAPIURL,
		TokenPath:      "/oauth/token",
		CorporateScope: ZiraatCorporateScope,
	}
}
