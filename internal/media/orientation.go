package media

import (
	"math"
	"strconv"
	"strings"
)

// Orientation is the display orientation a video track was recorded in.
type Orientation string

// Orientations recognized by DetectOrientation.
const (
	OrientationUnknown            Orientation = "unknown"
	OrientationPortrait           Orientation = "portrait"
	OrientationPortraitUpsideDown Orientation = "portraitUpsideDown"
	OrientationLandscapeLeft      Orientation = "landscapeLeft"
	OrientationLandscapeRight     Orientation = "landscapeRight"
)

// IsPortrait reports whether frames are displayed rotated by a quarter turn.
func (o Orientation) IsPortrait() bool {
	return o == OrientationPortrait || o == OrientationPortraitUpsideDown
}

// DevicePosition is the camera a clip was most likely recorded with.
type DevicePosition string

// Camera positions recognized by DetectOrientation.
const (
	DeviceUnspecified DevicePosition = "unspecified"
	DeviceFront       DevicePosition = "front"
	DeviceBack        DevicePosition = "back"
)

// OrientationInfo pairs the orientation and camera derived from a transform.
type OrientationInfo struct {
	Orientation Orientation    `json:"orientation"`
	Device      DevicePosition `json:"device"`
}

// Transform is the 2D affine display matrix stored with a video track:
//
//	| A  B  0 |
//	| C  D  0 |
//	| Tx Ty 1 |
type Transform struct {
	A, B, C, D float64
	Tx, Ty     float64
}

// Identity is the transform of an unrotated track.
var Identity = Transform{A: 1, D: 1}

// DetectOrientation classifies a track transform against the four canonical
// rotations. The sign of the off-axis term tells a mirrored front camera
// from the back camera. Anything else is unknown and unspecified.
func DetectOrientation(t Transform) OrientationInfo {
	info := OrientationInfo{Orientation: OrientationUnknown, Device: DeviceUnspecified}

	switch {
	case t.A == 0 && t.B == 1 && t.D == 0:
		info.Orientation = OrientationPortrait
		info.Device = pick(t.C, DeviceFront, DeviceBack)
	case t.A == 0 && t.B == -1 && t.D == 0:
		info.Orientation = OrientationPortraitUpsideDown
		info.Device = pick(t.C, DeviceBack, DeviceFront)
	case t.A == 1 && t.B == 0 && t.C == 0:
		info.Orientation = OrientationLandscapeRight
		info.Device = pick(t.D, DeviceBack, DeviceFront)
	case t.A == -1 && t.B == 0 && t.C == 0:
		info.Orientation = OrientationLandscapeLeft
		info.Device = pick(t.D, DeviceFront, DeviceBack)
	}

	return info
}

// pick returns ifPos for +1, ifNeg for -1 and DeviceUnspecified otherwise.
func pick(v float64, ifPos, ifNeg DevicePosition) DevicePosition {
	switch v {
	case 1:
		return ifPos
	case -1:
		return ifNeg
	default:
		return DeviceUnspecified
	}
}

// TransformFromRotation builds the canonical matrix for a rotation reported
// by ffprobe, in degrees counterclockwise. ok is false for rotations that
// are not a multiple of 90 degrees.
func TransformFromRotation(degrees float64) (t Transform, ok bool) {
	r := int(math.Round(degrees)) % 360
	if r < 0 {
		r += 360
	}
	switch r {
	case 0:
		return Identity, true
	case 90:
		return Transform{B: -1, C: 1}, true
	case 180:
		return Transform{A: -1, D: -1}, true
	case 270:
		return Transform{B: 1, C: -1}, true
	default:
		return Transform{}, false
	}
}

// fixedOne is 1.0 in the 16.16 fixed point used by container display matrices.
const fixedOne = 1 << 16

// parseDisplayMatrix parses the display matrix dump printed by ffprobe:
//
//	00000000:            0       65536           0
//	00000001:       -65536           0           0
//	00000002:            0           0  1073741824
func parseDisplayMatrix(s string) (Transform, bool) {
	var v []float64
	for _, line := range strings.Split(s, "\n") {
		_, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		for _, f := range strings.Fields(rest) {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return Transform{}, false
			}
			v = append(v, float64(n))
		}
	}
	if len(v) != 9 {
		return Transform{}, false
	}
	return Transform{
		A:  v[0] / fixedOne,
		B:  v[1] / fixedOne,
		C:  v[3] / fixedOne,
		D:  v[4] / fixedOne,
		Tx: v[6] / fixedOne,
		Ty: v[7] / fixedOne,
	}, true
}
