package qa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-station/internal/measure"
	"qa-station/internal/wms"
)

func demo(t *testing.T, key string) *wms.TransferRecord {
	t.Helper()
	rec, err := wms.Demo().Lookup(context.Background(), key)
	require.NoError(t, err)
	return rec
}

func TestMismatch(t *testing.T) {
	expected := wms.Dimensions{Length: 20, Width: 11, Depth: 7.7}

	assert.False(t, Mismatch(measure.Dimension{Length: 20, Width: 11, Height: 7.7}, expected))
	assert.False(t, Mismatch(measure.Dimension{Length: 20.5, Width: 10.5, Height: 8.2}, expected), "tolerance is inclusive")
	assert.True(t, Mismatch(measure.Dimension{Length: 20.6, Width: 11, Height: 7.7}, expected))
	assert.True(t, Mismatch(measure.Dimension{Length: 20, Width: 11, Height: 7.1}, expected), "too small is a mismatch too")
	assert.True(t, Mismatch(measure.Dimension{}, expected))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusLapse, StatusFor(true))
	assert.Equal(t, StatusSuccess, StatusFor(false))
}

func TestAdmit(t *testing.T) {
	in, err := Admit(demo(t, "334456"))
	require.NoError(t, err)
	assert.Equal(t, StatusDefault, in.Status)
	assert.True(t, in.UpdatesEnabled())

	for key, state := range map[string]string{"23456": wms.StateCompleted, "98765": wms.StateFlagged} {
		_, err := Admit(demo(t, key))
		require.ErrorIs(t, err, ErrNotAwaiting)
		var nae *NotAwaitingError
		require.ErrorAs(t, err, &nae)
		assert.Equal(t, state, nae.State)
		assert.Equal(t, "QA "+state, err.Error())
	}

	_, err = Admit(nil)
	assert.ErrorIs(t, err, wms.ErrNotFound)
}

func TestInspectionLifecycle(t *testing.T) {
	in, err := Admit(demo(t, "334456"))
	require.NoError(t, err)

	assert.False(t, in.Observe(measure.Dimension{}), "empty measurements are ignored")
	assert.Equal(t, StatusDefault, in.Status)

	require.True(t, in.Observe(measure.Dimension{Length: 25, Width: 11, Height: 7.7}))
	assert.Equal(t, StatusLapse, in.Status)
	assert.True(t, in.Mismatch())

	require.True(t, in.Observe(measure.Dimension{Length: 20.2, Width: 11.1, Height: 7.5}))
	assert.Equal(t, StatusSuccess, in.Status)

	o, err := BuildOverride(OverrideInput{Length: "19.8", Quantity: "40"}, in.Measured, in.Record)
	require.NoError(t, err)
	in.Confirm(o)
	assert.Equal(t, StatusSuccess, in.Status)
	assert.False(t, in.UpdatesEnabled())
	assert.Equal(t, 19.8, in.Measured.Length)

	assert.False(t, in.Observe(measure.Dimension{Length: 1, Width: 1, Height: 1}), "confirmed inspections are frozen")
	assert.Equal(t, 19.8, in.Measured.Length)

	assert.True(t, in.ToggleFlag())
	assert.False(t, in.ToggleFlag())
}

func TestBuildOverride(t *testing.T) {
	rec := demo(t, "334456")
	measured := measure.Dimension{Length: 20.1, Width: 10.9, Height: 7.6}

	o, err := BuildOverride(OverrideInput{Width: " 11 cm", ActualWeight: "498 g", Quantity: "40"}, measured, rec)
	require.NoError(t, err)
	assert.Equal(t, Override{
		Length: 20.1, Width: 11, Height: 7.6,
		ActualWeight: 498, ExpectedWeight: 500, Quantity: 40,
	}, o)

	o, err = BuildOverride(OverrideInput{Quantity: "3"}, measured, rec)
	require.NoError(t, err)
	assert.Equal(t, 500.0, o.ActualWeight, "actual weight defaults to the record")
}

func TestBuildOverrideRejectsZeros(t *testing.T) {
	rec := demo(t, "334456")
	measured := measure.Dimension{Length: 20, Width: 11}

	cases := map[string]OverrideInput{
		"height falls back to zero": {Quantity: "40"},
		"missing quantity":          {Height: "7.7"},
		"fractional quantity":       {Height: "7.7", Quantity: "1.5"},
		"explicit zero":             {Height: "7.7", Length: "0", Quantity: "40"},
		"negative":                  {Height: "-7.7", Quantity: "40"},
		"garbage":                   {Height: "tall", Quantity: "40"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildOverride(input, measured, rec)
			assert.ErrorIs(t, err, ErrInvalidOverride)
		})
	}

	_, err := BuildOverride(OverrideInput{Quantity: "1"}, measure.Dimension{Length: 1, Width: 1, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidOverride)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("12.5cm", 0)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = parseAmount("", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = parseAmount("cm", 0)
	assert.Error(t, err)
}
