package bank

const (
	// QNBProductionAPIURL is the production API endpoint
	QNBProductionAPIURL = "https://api.qnbfinansbank.com"
	// QNBSandboxAPIURL is the sandbox API endpoint
	QNBSandboxAPIURL = "https://sandbox-api.qnbfinansbank.com"
	// QNBDefaultScope is always requested
	QNBDefaultScope = "accounts payments"
)

// QNBConfig holds endpoint settings for the QNB Finansbank API
type QNBConfig struct {
	ProductionURL string
	SandboxURL    string
	TokenPath     string
	Scope         string
}

// DefaultQNBConfig returns the published QNB endpoints
func DefaultQNBConfig() *QNBConfig {
	return &QNBConfig{
		ProductionURL: QNBProductionAPIURL,
		SandboxURL:    QNBSandboxAPIURL,
		TokenPath:     "/oauth/token",
		Scope:         QNBDefaultScope,
	}
}
