// Package qcommerce models quick-commerce sales channels and the webhook
// events they push to us.
package qcommerce

// PlatformType identifies a quick-commerce platform
type PlatformType string

const (
	PlatformGetir       PlatformType = "getir"
	PlatformYemeksepeti PlatformType = "yemeksepeti"
	PlatformVigo        PlatformType = "vigo"
)

// AllPlatforms returns every supported platform
func AllPlatforms() []PlatformType {
	return []PlatformType{PlatformGetir, PlatformYemeksepeti, PlatformVigo}
}

// IsValid checks if the platform is supported
func (p PlatformType) IsValid() bool {
	switch p {
	case PlatformGetir, PlatformYemeksepeti, PlatformVigo:
		return true
	}
	return false
}

// String returns the string representation
func (p PlatformType) String() string {
	return string(p)
}

// DisplayName returns a human-readable name
func (p PlatformType) DisplayName() string {
	switch p {
	case PlatformGetir:
		return "Getir"
	case PlatformYemeksepeti:
		return "Yemeksepeti"
	case PlatformVigo:
		return "Vigo"
	default:
		return string(p)
	}
}
