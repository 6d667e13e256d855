package remap

import (
	"fmt"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/livelink"
)

// IndexMap associates each blendshape carried on the OSC side with its dense
// index. It is immutable once built.
type IndexMap struct {
	shapes [core.BlendshapeCount]livelink.FaceBlendShape // index → shape
	index  map[livelink.FaceBlendShape]int               // shape → index
}

// defaultOrder is the OSC-side numbering: position i holds the shape sent
// as /W i.
var defaultOrder = [core.BlendshapeCount]livelink.FaceBlendShape{
	livelink.BrowInnerUp,
	livelink.BrowDownLeft,
	livelink.BrowDownRight,
	livelink.BrowOuterUpLeft,
	livelink.BrowOuterUpRight,
	livelink.EyeLookUpLeft,
	livelink.EyeLookUpRight,
	livelink.EyeLookDownLeft,
	livelink.EyeLookDownRight,
	livelink.EyeLookInLeft,
	livelink.EyeLookInRight,
	livelink.EyeLookOutLeft,
	livelink.EyeLookOutRight,
	livelink.EyeBlinkLeft,
	livelink.EyeBlinkRight,
	livelink.EyeSquintLeft,
	livelink.EyeSquintRight,
	livelink.EyeWideLeft,
	livelink.EyeWideRight,
	livelink.CheekPuff,
	livelink.CheekSquintLeft,
	livelink.CheekSquintRight,
	livelink.NoseSneerLeft,
	livelink.NoseSneerRight,
	livelink.JawOpen,
	livelink.JawForward,
	livelink.JawLeft,
	livelink.JawRight,
	livelink.MouthFunnel,
	livelink.MouthPucker,
	livelink.MouthLeft,
	livelink.MouthRight,
	livelink.MouthRollUpper,
	livelink.MouthRollLower,
	livelink.MouthShrugUpper,
	livelink.MouthShrugLower,
	livelink.MouthClose,
	livelink.MouthSmileLeft,
	livelink.MouthSmileRight,
	livelink.MouthFrownLeft,
	livelink.MouthFrownRight,
	livelink.MouthDimpleLeft,
	livelink.MouthDimpleRight,
	livelink.MouthUpperUpLeft,
	livelink.MouthUpperUpRight,
	livelink.MouthLowerDownLeft,
	livelink.MouthLowerDownRight,
	livelink.MouthPressLeft,
	livelink.MouthPressRight,
	livelink.MouthStretchLeft,
	livelink.MouthStretchRight,
	livelink.TongueOut,
}

var defaultIndexMap = mustIndexMap(defaultOrder)

// DefaultIndexMap returns the process-wide map used by the OSC receivers.
func DefaultIndexMap() *IndexMap {
	return defaultIndexMap
}

// NewIndexMap builds a map from shape to dense index. The map must cover
// every index 0..BlendshapeCount-1 exactly once.
func NewIndexMap(m map[livelink.FaceBlendShape]int) (*IndexMap, error) {
	if len(m) != core.BlendshapeCount {
		return nil, fmt.Errorf("remap: index map has %d entries, want %d", len(m), core.BlendshapeCount)
	}
	var order [core.BlendshapeCount]livelink.FaceBlendShape
	var seen [core.BlendshapeCount]bool
	for shape, idx := range m {
		if !shape.Valid() {
			return nil, fmt.Errorf("remap: unknown shape %v", shape)
		}
		if idx < 0 || idx >= core.BlendshapeCount {
			return nil, fmt.Errorf("remap: %v maps to index %d, out of range", shape, idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("remap: index %d assigned twice", idx)
		}
		seen[idx] = true
		order[idx] = shape
	}
	return newIndexMap(order)
}

func newIndexMap(order [core.BlendshapeCount]livelink.FaceBlendShape) (*IndexMap, error) {
	m := &IndexMap{
		shapes: order,
		index:  make(map[livelink.FaceBlendShape]int, core.BlendshapeCount),
	}
	for i, s := range order {
		if !s.Valid() {
			return nil, fmt.Errorf("remap: unknown shape %v at index %d", s, i)
		}
		if prev, dup := m.index[s]; dup {
			return nil, fmt.Errorf("remap: %v mapped to both %d and %d", s, prev, i)
		}
		m.index[s] = i
	}
	return m, nil
}

func mustIndexMap(order [core.BlendshapeCount]livelink.FaceBlendShape) *IndexMap {
	m, err := newIndexMap(order)
	if err != nil {
		panic(err)
	}
	return m
}

// Shape returns the shape written at dense index i.
func (m *IndexMap) Shape(i int) livelink.FaceBlendShape {
	return m.shapes[i]
}

// Index returns the dense index of s.
func (m *IndexMap) Index(s livelink.FaceBlendShape) (int, bool) {
	i, ok := m.index[s]
	return i, ok
}

// Len is always core.BlendshapeCount.
func (m *IndexMap) Len() int {
	return len(m.shapes)
}
