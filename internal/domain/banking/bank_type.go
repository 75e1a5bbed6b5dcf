package banking

// ---------------------------------------------------------------------------
// BankType identifies the adapter variant of a connector
// ---------------------------------------------------------------------------

// BankType is the discriminator used to dispatch to a bank adapter
type BankType string

const (
	// BankTypeGarantiBBVA is Garanti BBVA open banking
	BankTypeGarantiBBVA BankType = "garantibbva"
	// BankTypeZiraat is Ziraat Bankası open banking
	BankTypeZiraat BankType = "ziraat"
	// BankTypeQNB is QNB Finansbank open banking
	BankTypeQNB BankType = "qnb"
)

// AllBankTypes returns every supported bank type
func AllBankTypes() []BankType {
	return []BankType{BankTypeGarantiBBVA, BankTypeZiraat, BankTypeQNB}
}

// IsValid returns true if the bank type is supported
func (t BankType) IsValid() bool {
	switch t {
	case BankTypeGarantiBBVA, BankTypeZiraat, BankTypeQNB:
		return true
	default:
		return false
	}
}

// String returns the string representation of BankType
func (t BankType) String() string {
	return string(t)
}

// DisplayName returns a human-readable bank name
func (t BankType) DisplayName() string {
	switch t {
	case BankTypeGarantiBBVA:
		return "Garanti BBVA"
	case BankTypeZiraat:
		return "Ziraat Bankası"
	case BankTypeQNB:
		return "QNB Finansbank"
	default:
		return string(t)
	}
}
