// Package skeleton holds the fixed joint hierarchy and the append-only
// buffer of captured skeleton snapshots.
package skeleton

import (
	"fmt"

	"github.com/pithecene-io/skelcap/types"
)

// JointID indexes a joint in canonical order.
type JointID int

// NoParent is the parent index of the root joint.
const NoParent JointID = -1

// Joint identifiers in canonical order. The order matches the tracker's
// joint enumeration and the layout of types.SkeletonSnapshot.
const (
	Pelvis JointID = iota
	SpineNavel
	SpineChest
	Neck
	ClavicleLeft
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	HandtipLeft
	ThumbLeft
	ClavicleRight
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HandtipRight
	ThumbRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	Head
)

// Joint is one node of the hierarchy.
type Joint struct {
	ID     JointID
	Name   string
	Parent JointID
}

// IsRoot reports whether the joint has no parent.
func (j Joint) IsRoot() bool { return j.Parent == NoParent }

// Hierarchy is a static table of joints and their parent indices.
// Every parent index precedes its child index.
type Hierarchy struct {
	joints   []Joint
	children [][]JointID
}

// defaultTable keeps the node names of earlier exports, spelling included
// ("Spine_Naval", "Clavical_Right"), so rigs retargeted by name still bind.
var defaultTable = []Joint{
	{Pelvis, "Pelvis", NoParent},
	{SpineNavel, "Spine_Naval", Pelvis},
	{SpineChest, "Spine_Chest", SpineNavel},
	{Neck, "Neck", SpineChest},
	{ClavicleLeft, "Clavicle_Left", SpineChest},
	{ShoulderLeft, "Shoulder_Left", ClavicleLeft},
	{ElbowLeft, "Elbow_Left", ShoulderLeft},
	{WristLeft, "Wrist_Left", ElbowLeft},
	{HandLeft, "Hand_Left", WristLeft},
	{HandtipLeft, "Handtip_Left", HandLeft},
	{ThumbLeft, "Thumb_Left", HandtipLeft},
	{ClavicleRight, "Clavical_Right", SpineChest},
	{ShoulderRight, "Shoulder_Right", ClavicleRight},
	{ElbowRight, "Elbow_Right", ShoulderRight},
	{WristRight, "Wrist_Right", ElbowRight},
	{HandRight, "Hand_Right", WristRight},
	{HandtipRight, "Handtip_Right", HandRight},
	{ThumbRight, "Thumb_Right", HandtipRight},
	{HipLeft, "Hip_Left", Pelvis},
	{KneeLeft, "Knee_Left", HipLeft},
	{AnkleLeft, "Ankle_Left", KneeLeft},
	{FootLeft, "Foot_Left", AnkleLeft},
	{HipRight, "Hip_Right", Pelvis},
	{KneeRight, "Knee_Right", HipRight},
	{AnkleRight, "Ankle_Right", KneeRight},
	{FootRight, "Foot_Right", AnkleRight},
	{Head, "Head", Neck},
}

var defaultHierarchy = mustNew(defaultTable)

// Default returns the 27-joint body tracking hierarchy.
func Default() *Hierarchy {
	return defaultHierarchy
}

// New builds a hierarchy from a joint table and validates it.
func New(table []Joint) (*Hierarchy, error) {
	h := &Hierarchy{
		joints:   append([]Joint(nil), table...),
		children: make([][]JointID, len(table)),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	for _, j := range h.joints {
		if !j.IsRoot() {
			h.children[j.Parent] = append(h.children[j.Parent], j.ID)
		}
	}
	return h, nil
}

func mustNew(table []Joint) *Hierarchy {
	h, err := New(table)
	if err != nil {
		panic(err)
	}
	return h
}

// Validate checks that the table forms a single tree in topological order.
func (h *Hierarchy) Validate() error {
	if len(h.joints) == 0 {
		return fmt.Errorf("hierarchy is empty")
	}
	roots := 0
	for i, j := range h.joints {
		if int(j.ID) != i {
			return fmt.Errorf("joint %q has id %d at position %d", j.Name, j.ID, i)
		}
		if j.IsRoot() {
			roots++
			continue
		}
		// A parent index earlier in the table rules out cycles.
		if j.Parent < 0 || j.Parent >= j.ID {
			return fmt.Errorf("joint %q has parent %d, want an index below %d", j.Name, j.Parent, j.ID)
		}
	}
	if roots != 1 {
		return fmt.Errorf("hierarchy has %d roots, want 1", roots)
	}
	return nil
}

// JointCount returns the number of joints.
func (h *Hierarchy) JointCount() int { return len(h.joints) }

// Joints returns the joints in canonical order.
func (h *Hierarchy) Joints() []Joint {
	return append([]Joint(nil), h.joints...)
}

// Joint returns the joint with the given id.
func (h *Hierarchy) Joint(id JointID) Joint { return h.joints[id] }

// Root returns the root joint.
func (h *Hierarchy) Root() Joint {
	for _, j := range h.joints {
		if j.IsRoot() {
			return j
		}
	}
	return h.joints[0]
}

// ParentOf returns the parent of id, and false for the root.
func (h *Hierarchy) ParentOf(id JointID) (JointID, bool) {
	p := h.joints[id].Parent
	return p, p != NoParent
}

// Children returns the direct children of id in canonical order.
func (h *Hierarchy) Children(id JointID) []JointID {
	return append([]JointID(nil), h.children[id]...)
}

// Depth returns the number of edges between id and the root.
func (h *Hierarchy) Depth(id JointID) int {
	d := 0
	for p, ok := h.ParentOf(id); ok; p, ok = h.ParentOf(p) {
		d++
	}
	return d
}

// Lookup finds a joint by name.
func (h *Hierarchy) Lookup(name string) (Joint, bool) {
	for _, j := range h.joints {
		if j.Name == name {
			return j, true
		}
	}
	return Joint{}, false
}

func init() {
	if defaultHierarchy.JointCount() != types.JointCount {
		panic(fmt.Sprintf("skeleton: default hierarchy has %d joints, snapshot has %d",
			defaultHierarchy.JointCount(), types.JointCount))
	}
}
