package banking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// DefaultTokenSafetyWindow is the margin before expiry after which a cached token is no longer used
const DefaultTokenSafetyWindow = 5 * time.Minute

// DefaultSyncInterval is the auto-sync cadence for connectors that don't configure one
const DefaultSyncInterval = 60 * time.Minute

// ConnectorState is the lifecycle state of a BankConnector
type ConnectorState string

const (
	// ConnectorStateDraft is a configured connector that never obtained a token
	ConnectorStateDraft ConnectorState = "draft"
	// ConnectorStateConnected is a connector whose last token acquisition succeeded
	ConnectorStateConnected ConnectorState = "connected"
	// ConnectorStateError is a connector whose last remote call failed non-recoverably
	ConnectorStateError ConnectorState = "error"
	// ConnectorStateDisconnected is a connector whose tokens were dropped on request
	ConnectorStateDisconnected ConnectorState = "disconnected"
)

// IsValid returns true if the state is known
func (s ConnectorState) IsValid() bool {
	switch s {
	case ConnectorStateDraft, ConnectorStateConnected, ConnectorStateError, ConnectorStateDisconnected:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectorState
func (s ConnectorState) String() string {
	return string(s)
}

// BankConnector is a configured link between the system and one external bank tenant.
// Access tokens live on the connector so they survive restarts and are shared by workers.
type BankConnector struct {
	shared.BaseEntity
	Name        string
	BankType    BankType
	SandboxMode bool
	CompanyID   uuid.UUID
	BankRef     string // owning bank reference (e.g. BIC or internal bank code)

	// OAuth2 client credentials
	ClientID     string
	ClientSecret string
	Scope        string // empty means the adapter default

	// Ziraat corporate options
	IsCorporate         bool
	CorporateCustomerNo string

	// Token state
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time

	State     ConnectorState
	LastError string
	LastSync  *time.Time

	AutoSyncEnabled     bool
	SyncIntervalMinutes int
}

// NewBankConnector creates a connector in draft state
func NewBankConnector(name string, bankType BankType, clientID, clientSecret string, sandbox bool) (*BankConnector, error) {
	c := &BankConnector{
		BaseEntity:          shared.NewBaseEntity(),
		Name:                strings.TrimSpace(name),
		BankType:            bankType,
		SandboxMode:         sandbox,
		ClientID:            strings.TrimSpace(clientID),
		ClientSecret:        clientSecret,
		State:               ConnectorStateDraft,
		AutoSyncEnabled:     true,
		SyncIntervalMinutes: int(DefaultSyncInterval / time.Minute),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the connector carries what a token request needs.
// Failures are CONFIG_ERROR so they surface before any network call.
func (c *BankConnector) Validate() error {
	if c.Name == "" {
		return configError("validate connector", ErrMissingName)
	}
	if !c.BankType.IsValid() {
		return configError("validate connector", ErrUnsupportedBank)
	}
	if c.ClientID == "" {
		return configError("validate connector", ErrMissingClientID)
	}
	if c.ClientSecret == "" {
		return configError("validate connector", ErrMissingClientSecret)
	}
	return nil
}

// TokenValid reports whether the cached access token can be used at now.
// A token is usable only while now+window is strictly before the expiry.
func (c *BankConnector) TokenValid(now time.Time, window time.Duration) bool {
	if c.AccessToken == "" || c.TokenExpiresAt == nil {
		return false
	}
	return now.Add(window).Before(*c.TokenExpiresAt)
}

// ApplyToken stores a freshly issued token and moves the connector to connected.
// An empty refresh token keeps the previously stored one.
func (c *BankConnector) ApplyToken(accessToken, refreshToken string, expiresAt time.Time, now time.Time) {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.TokenExpiresAt = &expiresAt
	c.State = ConnectorStateConnected
	c.LastError = ""
	c.Touch(now)
}

// InvalidateToken drops the cached access token so the next call re-authenticates
func (c *BankConnector) InvalidateToken() {
	c.AccessToken = ""
	c.TokenExpiresAt = nil
}

// MarkError moves the connector to error and records the detail
func (c *BankConnector) MarkError(detail string, now time.Time) {
	c.State = ConnectorStateError
	c.LastError = detail
	c.Touch(now)
}

// Disconnect drops all token state
func (c *BankConnector) Disconnect(now time.Time) {
	c.State = ConnectorStateDisconnected
	c.AccessToken = ""
	c.RefreshToken = ""
	c.TokenExpiresAt = nil
	c.Touch(now)
}

// MarkSynced records a completed sync action
func (c *BankConnector) MarkSynced(now time.Time) {
	c.LastSync = &now
	c.Touch(now)
}

// CanSync reports whether a sync action may start
func (c *BankConnector) CanSync() error {
	if c.State == ConnectorStateDisconnected {
		return ErrConnectorDisconnected
	}
	return c.Validate()
}

// SyncInterval returns the configured auto-sync cadence
func (c *BankConnector) SyncInterval() time.Duration {
	if c.SyncIntervalMinutes <= 0 {
		return DefaultSyncInterval
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// IsDueForSync reports whether the cron trigger should sync this connector at now
func (c *BankConnector) IsDueForSync(now time.Time) bool {
	if !c.AutoSyncEnabled || c.State != ConnectorStateConnected {
		return false
	}
	if c.LastSync == nil {
		return true
	}
	return !now.Before(c.LastSync.Add(c.SyncInterval()))
}
