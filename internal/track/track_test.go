package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNormalization(t *testing.T) {
	a := NewKey("Daft Punk", "Harder, Better, Faster, Stronger", "Discovery")
	b := NewKey("  daft   punk ", "harder, better, faster, stronger", "DISCOVERY")

	assert.Equal(t, a, b)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestKeyHashIgnoresAlbum(t *testing.T) {
	a := NewKey("Kraftwerk", "Autobahn", "Autobahn")
	b := NewKey("Kraftwerk", "Autobahn", "The Best Of")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestFingerprintPrefersTrackID(t *testing.T) {
	a := &Reading{Artist: "Boards of Canada", Title: "Roygbiv", TrackID: "spotify:track:abc"}
	b := &Reading{Artist: "Boards of Canada", Title: "Roygbiv", TrackID: "spotify:track:def"}

	assert.False(t, a.IsSameTrack(b))

	c := &Reading{Artist: "boards  of canada", Title: "ROYGBIV"}
	d := &Reading{Artist: "Boards of Canada", Title: "Roygbiv"}
	assert.True(t, c.IsSameTrack(d))
}

func TestReadingIsValid(t *testing.T) {
	var nilReading *Reading
	assert.False(t, nilReading.IsValid())
	assert.False(t, (&Reading{Artist: "Autechre"}).IsValid())
	assert.True(t, (&Reading{Artist: "Autechre", Title: "Bike"}).IsValid())
}
