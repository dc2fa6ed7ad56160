package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelMapResolve(t *testing.T) {
	m := LabelMap{"greenmat", "object"}

	assert.Equal(t, "greenmat", m.Resolve(0))
	assert.Equal(t, "object", m.Resolve(1))
	assert.Equal(t, "7", m.Resolve(7))
	assert.Equal(t, "-1", m.Resolve(-1))
	assert.Equal(t, "0", LabelMap(nil).Resolve(0))
}

func TestLabelMapIndex(t *testing.T) {
	m := DefaultLabelMap()
	assert.Equal(t, 1, m.Index(LabelObject))
	assert.Equal(t, 0, m.Index(LabelBackground))
	assert.Equal(t, -1, m.Index("pallet"))
}

func TestDenormalize(t *testing.T) {
	d := Detection{XMin: 0.25, XMax: 0.75, YMin: 0.1, YMax: 0.5}
	assert.Equal(t, image.Rect(75, 30, 225, 150), d.Denormalize(300, 300))
}
