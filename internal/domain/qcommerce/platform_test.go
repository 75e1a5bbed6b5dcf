package qcommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformType(t *testing.T) {
	for _, p := range AllPlatforms() {
		assert.True(t, p.IsValid())
		assert.NotEqual(t, string(p), p.DisplayName())
	}
	assert.False(t, PlatformType("trendyol").IsValid())
	assert.Equal(t, "trendyol", PlatformType("trendyol").DisplayName())
}

func TestWebhookEvent_DedupKey(t *testing.T) {
	e := &WebhookEvent{EventID: "evt-1", Platform: PlatformGetir}
	assert.Equal(t, "getir:evt-1", e.DedupKey())
}

func TestChannel_CanVerify(t *testing.T) {
	c := &Channel{Platform: PlatformVigo}
	assert.False(t, c.CanVerify())
	c.WebhookSecret = "s3cret"
	assert.True(t, c.CanVerify())
}
