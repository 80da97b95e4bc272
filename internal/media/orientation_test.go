package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectOrientation(t *testing.T) {
	tests := []struct {
		name   string
		t      Transform
		orient Orientation
		device DevicePosition
	}{
		{"portrait front", Transform{B: 1, C: 1}, OrientationPortrait, DeviceFront},
		{"portrait back", Transform{B: 1, C: -1}, OrientationPortrait, DeviceBack},
		{"portrait odd shear", Transform{B: 1, C: 0.5}, OrientationPortrait, DeviceUnspecified},
		{"upside down front", Transform{B: -1, C: -1}, OrientationPortraitUpsideDown, DeviceFront},
		{"upside down back", Transform{B: -1, C: 1}, OrientationPortraitUpsideDown, DeviceBack},
		{"landscape right front", Transform{A: 1, D: -1}, OrientationLandscapeRight, DeviceFront},
		{"landscape right back", Transform{A: 1, D: 1}, OrientationLandscapeRight, DeviceBack},
		{"landscape left front", Transform{A: -1, D: 1}, OrientationLandscapeLeft, DeviceFront},
		{"landscape left back", Transform{A: -1, D: -1}, OrientationLandscapeLeft, DeviceBack},
		{"translation ignored", Transform{A: 1, D: 1, Tx: 1080, Ty: 0}, OrientationLandscapeRight, DeviceBack},
		{"zero matrix", Transform{}, OrientationUnknown, DeviceUnspecified},
		{"scaled matrix", Transform{A: 2, D: 2}, OrientationUnknown, DeviceUnspecified},
		{"45 degrees", Transform{A: 0.7071, B: 0.7071, C: -0.7071, D: 0.7071}, OrientationUnknown, DeviceUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectOrientation(tt.t)
			assert.Equal(t, tt.orient, got.Orientation)
			assert.Equal(t, tt.device, got.Device)
		})
	}
}

func TestTransformFromRotation(t *testing.T) {
	tests := []struct {
		degrees float64
		want    Orientation
		ok      bool
	}{
		{0, OrientationLandscapeRight, true},
		{-90, OrientationPortrait, true},
		{270, OrientationPortrait, true},
		{90, OrientationPortraitUpsideDown, true},
		{180, OrientationLandscapeLeft, true},
		{-180, OrientationLandscapeLeft, true},
		{45, OrientationUnknown, false},
	}

	for _, tt := range tests {
		tr, ok := TransformFromRotation(tt.degrees)
		assert.Equal(t, tt.ok, ok, "degrees=%v", tt.degrees)
		assert.Equal(t, tt.want, DetectOrientation(tr).Orientation, "degrees=%v", tt.degrees)
	}
}

func TestParseDisplayMatrix(t *testing.T) {
	dump := "\n00000000:            0       65536           0\n" +
		"00000001:       -65536           0           0\n" +
		"00000002:            0           0  1073741824\n"

	tr, ok := parseDisplayMatrix(dump)
	assert.True(t, ok)
	assert.Equal(t, Transform{B: 1, C: -1}, tr)

	info := DetectOrientation(tr)
	assert.Equal(t, OrientationPortrait, info.Orientation)
	assert.Equal(t, DeviceBack, info.Device)

	_, ok = parseDisplayMatrix("00000000: 1 2 3")
	assert.False(t, ok)

	_, ok = parseDisplayMatrix("00000000: a b c\n00000001: 1 2 3\n00000002: 1 2 3")
	assert.False(t, ok)
}

func TestOrientation_IsPortrait(t *testing.T) {
	assert.True(t, OrientationPortrait.IsPortrait())
	assert.True(t, OrientationPortraitUpsideDown.IsPortrait())
	assert.False(t, OrientationLandscapeLeft.IsPortrait())
	assert.False(t, OrientationUnknown.IsPortrait())
}
