package livelink

import (
	"fmt"
	"strings"
)

// FaceBlendShape identifies one parameter of a LiveLink frame. The numeric
// value is the parameter's position on the wire.
type FaceBlendShape int

const (
	EyeBlinkLeft FaceBlendShape = iota
	EyeLookDownLeft
	EyeLookInLeft
	EyeLookOutLeft
	EyeLookUpLeft
	EyeSquintLeft
	EyeWideLeft
	EyeBlinkRight
	EyeLookDownRight
	EyeLookInRight
	EyeLookOutRight
	EyeLookUpRight
	EyeSquintRight
	EyeWideRight
	JawForward
	JawLeft
	JawRight
	JawOpen
	MouthClose
	MouthFunnel
	MouthPucker
	MouthLeft
	MouthRight
	MouthSmileLeft
	MouthSmileRight
	MouthFrownLeft
	MouthFrownRight
	MouthDimpleLeft
	MouthDimpleRight
	MouthStretchLeft
	MouthStretchRight
	MouthRollLower
	MouthRollUpper
	MouthShrugLower
	MouthShrugUpper
	MouthPressLeft
	MouthPressRight
	MouthLowerDownLeft
	MouthLowerDownRight
	MouthUpperUpLeft
	MouthUpperUpRight
	BrowDownLeft
	BrowDownRight
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	NoseSneerLeft
	NoseSneerRight
	TongueOut
	HeadYaw
	HeadPitch
	HeadRoll
	LeftEyeYaw
	LeftEyePitch
	LeftEyeRoll
	RightEyeYaw
	RightEyePitch
	RightEyeRoll
)

// ShapeCount is the number of parameters in a complete frame.
const ShapeCount = int(RightEyeRoll) + 1

var shapeNames = [ShapeCount]string{
	"EyeBlinkLeft", "EyeLookDownLeft", "EyeLookInLeft", "EyeLookOutLeft",
	"EyeLookUpLeft", "EyeSquintLeft", "EyeWideLeft",
	"EyeBlinkRight", "EyeLookDownRight", "EyeLookInRight", "EyeLookOutRight",
	"EyeLookUpRight", "EyeSquintRight", "EyeWideRight",
	"JawForward", "JawLeft", "JawRight", "JawOpen",
	"MouthClose", "MouthFunnel", "MouthPucker", "MouthLeft", "MouthRight",
	"MouthSmileLeft", "MouthSmileRight", "MouthFrownLeft", "MouthFrownRight",
	"MouthDimpleLeft", "MouthDimpleRight", "MouthStretchLeft", "MouthStretchRight",
	"MouthRollLower", "MouthRollUpper", "MouthShrugLower", "MouthShrugUpper",
	"MouthPressLeft", "MouthPressRight", "MouthLowerDownLeft", "MouthLowerDownRight",
	"MouthUpperUpLeft", "MouthUpperUpRight",
	"BrowDownLeft", "BrowDownRight", "BrowInnerUp", "BrowOuterUpLeft", "BrowOuterUpRight",
	"CheekPuff", "CheekSquintLeft", "CheekSquintRight",
	"NoseSneerLeft", "NoseSneerRight", "TongueOut",
	"HeadYaw", "HeadPitch", "HeadRoll",
	"LeftEyeYaw", "LeftEyePitch", "LeftEyeRoll",
	"RightEyeYaw", "RightEyePitch", "RightEyeRoll",
}

// Valid reports whether s names a known parameter.
func (s FaceBlendShape) Valid() bool {
	return s >= 0 && int(s) < ShapeCount
}

func (s FaceBlendShape) String() string {
	if !s.Valid() {
		return fmt.Sprintf("FaceBlendShape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape looks a parameter up by name, ignoring case.
func ParseShape(name string) (FaceBlendShape, error) {
	for i, n := range shapeNames {
		if strings.EqualFold(n, name) {
			return FaceBlendShape(i), nil
		}
	}
	return 0, fmt.Errorf("livelink: unknown blendshape %q", name)
}
