package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappedRecord(t *testing.T) {
	r := NewMappedRecord()
	r.Set(TargetSKU, "A-1")
	r.Set(TargetSKU, "A-2")
	r.Set(TargetName, "")
	r.Set(TargetPrice, "12.50")
	r.Set(TargetStock, "abc")

	assert.Equal(t, "A-1", r.Get(TargetSKU), "first non-empty value wins")
	assert.False(t, r.Has(TargetName))

	price, ok, err := r.Decimal(TargetPrice)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.5", price.String())

	_, ok, err = r.Decimal(TargetCost)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = r.Decimal(TargetStock)
	assert.Error(t, err)

	assert.True(t, r.Valid())
	r.Missing = append(r.Missing, TargetName)
	assert.False(t, r.Valid())
}

func TestMappedRecord_Images(t *testing.T) {
	r := NewMappedRecord()
	primary, extra := r.Images()
	assert.Empty(t, primary)
	assert.Nil(t, extra)

	r.Append(TargetImages, "https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/1.jpg", "")
	primary, extra = r.Images()
	assert.Equal(t, "https://cdn/1.jpg", primary)
	assert.Equal(t, []string{"https://cdn/2.jpg"}, extra)

	r.Set(TargetImage, "https://cdn/main.jpg")
	primary, extra = r.Images()
	assert.Equal(t, "https://cdn/main.jpg", primary)
	assert.Equal(t, []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}, extra)
}
