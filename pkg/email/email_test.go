package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"awa.diop@mairie.sn", "Awa", "Diop"},
		{"MOUSSA_FALL@mairie.sn", "Moussa", "Fall"},
		{"agent42@mairie.sn", "Agent", "Mairie"},
		{"ibrahima@mairie.sn", "Ibrahima", "Mairie"},
		{"jean-paul.sarr+test@x.sn", "Jean", "Test"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			first, last := DeriveNameFromEmail(tt.in)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestIsPlausible(t *testing.T) {
	assert.True(t, IsPlausible("a@b.sn"))
	assert.False(t, IsPlausible("a@b"))
	assert.False(t, IsPlausible("@b.sn"))
	assert.False(t, IsPlausible("a b@c.sn"))
	assert.Equal(t, "awa@x.sn", Normalize("  AWA@x.sn "))
}
