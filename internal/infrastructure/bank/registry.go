package bank

import (
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
)

// Endpoints overrides the published bank endpoints, mainly for sandboxes and tests
type Endpoints struct {
	Garanti *GarantiConfig
	Ziraat  *ZiraatConfig
	QNB     *QNBConfig
}

// NewRegistry returns a registry holding every supported bank adapter
func NewRegistry(endpoints Endpoints, logger *zap.Logger) *banking.AdapterRegistry {
	return banking.NewAdapterRegistry(
		NewGarantiAdapter(endpoints.Garanti, logger),
		NewZiraatAdapter(endpoints.Ziraat, logger),
		NewQNBAdapter(endpoints.QNB, logger),
	)
}
