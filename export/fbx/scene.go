// Package fbx writes skeleton animation clips as FBX 7.4 ASCII scenes.
package fbx

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/types"
)

// FBX time constants.
const (
	// KTimeSecond is the number of FBX time ticks per second.
	KTimeSecond = 46186158000
	// FileVersion is the FBX version written to the header.
	FileVersion = 7400
	// timeModeFrames30 is the GlobalSettings TimeMode for 30 fps.
	timeModeFrames30 = 6
	// timeModeCustom is the GlobalSettings TimeMode for a custom rate.
	timeModeCustom = 14
)

// Linear key attributes: interpolation linear with generic clamp tangents.
const (
	keyAttrFlagsLinear = 24836
	keyAttrRefCount    = 1
)

var keyAttrDataFloat = []string{"0", "0", "218434821", "0"}

// Scene metadata written to the header's SceneInfo block.
const (
	SceneTitle    = "Azure Kinect Skeleton Export"
	SceneSubject  = "Converts Azure Kinect skeleton to FBX animation."
	SceneKeywords = "azure kinect skeleton animation"
	SceneComment  = "Joint translations relative to the parent joint."
)

// Options configures the FBX encoder.
type Options struct {
	// Floor adds a flat reference plane mesh under the scene root.
	Floor bool
	// FloorHalfExtent is the half width of the floor plane. Zero means 50.
	FloorHalfExtent float64
	// Now stamps CreationTimeStamp. Nil means time.Now.
	Now func() time.Time
}

// KTime converts seconds to FBX time ticks.
func KTime(seconds float64) int64 {
	return int64(math.Round(seconds * KTimeSecond))
}

// ids hands out unique object ids in allocation order.
type ids struct{ next int64 }

func (a *ids) alloc() int64 {
	a.next++
	return a.next
}

type jointObjects struct {
	model     int64
	attr      int64
	curveNode int64
	curves    [3]int64
}

type scene struct {
	clip   *anim.Clip
	opts   Options
	joints []jointObjects

	skeletonModel int64
	skeletonAttr  int64
	stack         int64
	layer         int64

	floorModel    int64
	floorGeometry int64
	floorMaterial int64
}

func newScene(clip *anim.Clip, opts Options) *scene {
	a := &ids{next: 1000000000}
	s := &scene{
		clip:          clip,
		opts:          opts,
		joints:        make([]jointObjects, len(clip.Joints)),
		skeletonModel: a.alloc(),
		skeletonAttr:  a.alloc(),
		stack:         a.alloc(),
		layer:         a.alloc(),
	}
	for i := range s.joints {
		j := &s.joints[i]
		j.model = a.alloc()
		j.attr = a.alloc()
		j.curveNode = a.alloc()
		for k := range j.curves {
			j.curves[k] = a.alloc()
		}
	}
	if opts.Floor {
		s.floorModel = a.alloc()
		s.floorGeometry = a.alloc()
		s.floorMaterial = a.alloc()
	}
	return s
}

// Encode writes clip as an FBX ASCII document. The clip must already be
// in the FBX axis convention.
func Encode(w io.Writer, clip *anim.Clip, opts Options) error {
	if err := clip.Validate(); err != nil {
		return fmt.Errorf("invalid clip: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FloorHalfExtent == 0 {
		opts.FloorHalfExtent = 50
	}
	s := newScene(clip, opts)
	e := newEmitter(w)

	e.line("; FBX %d.%d.0 project file", FileVersion/1000, FileVersion%1000/100)
	e.line("; Created by skelcap %s", types.Version)
	e.line("; ----------------------------------------------------")
	e.blank()
	s.writeHeader(e)
	s.writeGlobalSettings(e)
	s.writeDefinitions(e)
	s.writeObjects(e)
	s.writeConnections(e)
	s.writeTakes(e)
	return e.flush()
}

func (s *scene) stopTime() int64 {
	return KTime(s.clip.Duration())
}

func (s *scene) takeName() string {
	if s.clip.Name == "" {
		return "Take 001"
	}
	return s.clip.Name
}

func (s *scene) writeHeader(e *emitter) {
	now := s.opts.Now()
	e.open("FBXHeaderExtension: ")
	e.line("FBXHeaderVersion: 1003")
	e.line("FBXVersion: %d", FileVersion)
	e.open("CreationTimeStamp: ")
	e.line("Version: 1000")
	e.line("Year: %d", now.Year())
	e.line("Month: %d", int(now.Month()))
	e.line("Day: %d", now.Day())
	e.line("Hour: %d", now.Hour())
	e.line("Minute: %d", now.Minute())
	e.line("Second: %d", now.Second())
	e.line("Millisecond: %d", now.Nanosecond()/int(time.Millisecond))
	e.close()
	e.line("Creator: %q", "skelcap "+types.Version)
	e.open("SceneInfo: %q, %q", "SceneInfo::GlobalInfo", "UserData")
	e.line("Type: %q", "UserData")
	e.line("Version: 100")
	e.open("MetaData: ")
	e.line("Version: 100")
	e.line("Title: %q", SceneTitle)
	e.line("Subject: %q", SceneSubject)
	e.line("Author: %q", "")
	e.line("Keywords: %q", SceneKeywords)
	e.line("Revision: %q", "v"+types.Version)
	e.line("Comment: %q", SceneComment)
	e.close()
	e.close()
	e.close()
}

func (s *scene) writeGlobalSettings(e *emitter) {
	timeMode := timeModeFrames30
	customRate := -1.0
	if s.clip.FrameRate != 30 {
		timeMode = timeModeCustom
		customRate = s.clip.FrameRate
	}
	e.open("GlobalSettings: ")
	e.line("Version: 1000")
	e.open("Properties70: ")
	e.prop("UpAxis", "int", "Integer", "", "1")
	e.prop("UpAxisSign", "int", "Integer", "", "1")
	e.prop("FrontAxis", "int", "Integer", "", "2")
	e.prop("FrontAxisSign", "int", "Integer", "", "1")
	e.prop("CoordAxis", "int", "Integer", "", "0")
	e.prop("CoordAxisSign", "int", "Integer", "", "1")
	// Samples are millimetres; FBX units are centimetres.
	e.prop("UnitScaleFactor", "double", "Number", "", "0.1")
	e.prop("OriginalUnitScaleFactor", "double", "Number", "", "0.1")
	e.prop("TimeMode", "enum", "", "", fmt.Sprint(timeMode))
	e.prop("TimeSpanStart", "KTime", "Time", "", "0")
	e.prop("TimeSpanStop", "KTime", "Time", "", formatInt(s.stopTime()))
	e.prop("CustomFrameRate", "double", "Number", "", formatFloat(customRate))
	e.close()
	e.close()
}

type definition struct {
	objectType string
	count      int
}

func (s *scene) definitions() []definition {
	n := len(s.joints)
	defs := []definition{
		{"GlobalSettings", 1},
		{"Model", n + 1},
		{"NodeAttribute", n + 1},
		{"AnimationStack", 1},
		{"AnimationLayer", 1},
		{"AnimationCurveNode", n},
		{"AnimationCurve", 3 * n},
	}
	if s.opts.Floor {
		defs[1].count++
		defs = append(defs, definition{"Geometry", 1}, definition{"Material", 1})
	}
	return defs
}

func (s *scene) writeDefinitions(e *emitter) {
	defs := s.definitions()
	total := 0
	for _, d := range defs {
		total += d.count
	}
	e.open("Definitions: ")
	e.line("Version: 100")
	e.line("Count: %d", total)
	for _, d := range defs {
		e.open("ObjectType: %q", d.objectType)
		e.line("Count: %d", d.count)
		e.close()
	}
	e.close()
}

func (s *scene) writeObjects(e *emitter) {
	h := s.clip.Hierarchy
	e.open("Objects: ")

	e.open("NodeAttribute: %d, %q, %q", s.skeletonAttr, "NodeAttribute::Skeleton", "Null")
	e.line("TypeFlags: %q", "Null")
	e.close()
	e.open("Model: %d, %q, %q", s.skeletonModel, "Model::Skeleton", "Null")
	e.line("Version: 232")
	e.open("Properties70: ")
	e.prop("DefaultAttributeIndex", "int", "Integer", "", "0")
	e.close()
	e.line("Shading: Y")
	e.line("Culling: %q", "CullingOff")
	e.close()

	for _, j := range h.Joints() {
		obj := s.joints[j.ID]
		e.open("NodeAttribute: %d, %q, %q", obj.attr, "NodeAttribute::"+j.Name, "LimbNode")
		e.open("Properties70: ")
		e.prop("Size", "double", "Number", "", "10")
		e.close()
		e.line("TypeFlags: %q", "Skeleton")
		e.close()

		rest := s.restTranslation(j.ID)
		e.open("Model: %d, %q, %q", obj.model, "Model::"+j.Name, "LimbNode")
		e.line("Version: 232")
		e.open("Properties70: ")
		e.prop("Lcl Translation", "Lcl Translation", "", "A",
			formatFloat(rest[0]), formatFloat(rest[1]), formatFloat(rest[2]))
		e.prop("DefaultAttributeIndex", "int", "Integer", "", "0")
		e.close()
		e.line("Shading: T")
		e.line("Culling: %q", "CullingOff")
		e.close()
	}

	if s.opts.Floor {
		s.writeFloor(e)
	}

	stop := formatInt(s.stopTime())
	e.open("AnimationStack: %d, %q, %q", s.stack, "AnimStack::"+s.takeName(), "")
	e.open("Properties70: ")
	e.prop("LocalStop", "KTime", "Time", "", stop)
	e.prop("ReferenceStop", "KTime", "Time", "", stop)
	e.close()
	e.close()
	e.open("AnimationLayer: %d, %q, %q", s.layer, "AnimLayer::Layer0", "")
	e.close()

	times := s.keyTimes()
	for _, j := range h.Joints() {
		obj := s.joints[j.ID]
		rest := s.restTranslation(j.ID)
		e.open("AnimationCurveNode: %d, %q, %q", obj.curveNode, "AnimCurveNode::T", "")
		e.open("Properties70: ")
		for _, a := range anim.Axes {
			e.prop("d|"+a.String(), "Number", "", "A", formatFloat(rest[a]))
		}
		e.close()
		e.close()

		curves := s.clip.Curves(j.ID)
		for _, a := range anim.Axes {
			s.writeCurve(e, obj.curves[a], times, curves[a], rest[a])
		}
	}
	e.close()
}

func (s *scene) writeCurve(e *emitter, id int64, times []int64, c anim.Curve, def float64) {
	values := make([]float64, c.Len())
	for i, k := range c.Keys {
		values[i] = k.Value
	}
	e.open("AnimationCurve: %d, %q, %q", id, "AnimCurve::", "")
	e.line("Default: %s", formatFloat(def))
	e.line("KeyVer: 4009")
	e.array("KeyTime", formatInts(times))
	e.array("KeyValueFloat", formatFloats(values, formatFloat32))
	e.array("KeyAttrFlags", []string{fmt.Sprint(keyAttrFlagsLinear)})
	e.array("KeyAttrDataFloat", keyAttrDataFloat)
	e.array("KeyAttrRefCount", []string{fmt.Sprint(c.Len() * keyAttrRefCount)})
	e.close()
}

func (s *scene) writeFloor(e *emitter) {
	d := formatFloat(s.opts.FloorHalfExtent)
	nd := formatFloat(-s.opts.FloorHalfExtent)
	e.open("Geometry: %d, %q, %q", s.floorGeometry, "Geometry::floor", "Mesh")
	e.array("Vertices", []string{nd, "0", d, d, "0", d, d, "0", nd, nd, "0", nd})
	e.array("PolygonVertexIndex", []string{"0", "3", "2", "-2"})
	e.line("GeometryVersion: 124")
	e.open("LayerElementNormal: 0")
	e.line("Version: 101")
	e.line("Name: %q", "")
	e.line("MappingInformationType: %q", "ByVertice")
	e.line("ReferenceInformationType: %q", "Direct")
	e.array("Normals", []string{"0", "1", "0", "0", "1", "0", "0", "1", "0", "0", "1", "0"})
	e.close()
	e.open("LayerElementMaterial: 0")
	e.line("Version: 101")
	e.line("Name: %q", "")
	e.line("MappingInformationType: %q", "AllSame")
	e.line("ReferenceInformationType: %q", "IndexToDirect")
	e.array("Materials", []string{"0"})
	e.close()
	e.open("Layer: 0")
	e.line("Version: 100")
	e.open("LayerElement: ")
	e.line("Type: %q", "LayerElementNormal")
	e.line("TypedIndex: 0")
	e.close()
	e.open("LayerElement: ")
	e.line("Type: %q", "LayerElementMaterial")
	e.line("TypedIndex: 0")
	e.close()
	e.close()
	e.close()

	e.open("Model: %d, %q, %q", s.floorModel, "Model::Floor", "Mesh")
	e.line("Version: 232")
	e.line("Shading: T")
	e.line("Culling: %q", "CullingOff")
	e.close()

	e.open("Material: %d, %q, %q", s.floorMaterial, "Material::floor", "")
	e.line("Version: 102")
	e.line("ShadingModel: %q", "lambert")
	e.line("MultiLayer: 0")
	e.open("Properties70: ")
	e.prop("DiffuseColor", "Color", "", "A", "0.8", "0.8", "0.8")
	e.close()
	e.close()
}

func (s *scene) writeConnections(e *emitter) {
	h := s.clip.Hierarchy
	e.open("Connections: ")
	e.line("C: %q,%d,0", "OO", s.skeletonModel)
	e.line("C: %q,%d,%d", "OO", s.skeletonAttr, s.skeletonModel)
	for _, j := range h.Joints() {
		obj := s.joints[j.ID]
		parent := s.skeletonModel
		if !j.IsRoot() {
			parent = s.joints[j.Parent].model
		}
		e.line("C: %q,%d,%d", "OO", obj.model, parent)
		e.line("C: %q,%d,%d", "OO", obj.attr, obj.model)
	}
	if s.opts.Floor {
		e.line("C: %q,%d,0", "OO", s.floorModel)
		e.line("C: %q,%d,%d", "OO", s.floorGeometry, s.floorModel)
		e.line("C: %q,%d,%d", "OO", s.floorMaterial, s.floorModel)
	}
	e.line("C: %q,%d,%d", "OO", s.layer, s.stack)
	for _, j := range h.Joints() {
		obj := s.joints[j.ID]
		e.line("C: %q,%d,%d", "OO", obj.curveNode, s.layer)
		e.line("C: %q,%d,%d, %q", "OP", obj.curveNode, obj.model, "Lcl Translation")
		for _, a := range anim.Axes {
			e.line("C: %q,%d,%d, %q", "OP", obj.curves[a], obj.curveNode, "d|"+a.String())
		}
	}
	e.close()
}

func (s *scene) writeTakes(e *emitter) {
	name := s.takeName()
	stop := s.stopTime()
	e.open("Takes: ")
	e.line("Current: %q", name)
	e.open("Take: %q", name)
	e.line("FileName: %q", name+".tak")
	e.line("LocalTime: 0,%d", stop)
	e.line("ReferenceTime: 0,%d", stop)
	e.close()
	e.close()
}

func (s *scene) keyTimes() []int64 {
	times := s.clip.Times()
	out := make([]int64, len(times))
	for i, t := range times {
		out[i] = KTime(t)
	}
	return out
}

// restTranslation is the model's static translation: the first key, or
// the origin for an empty clip.
func (s *scene) restTranslation(id skeleton.JointID) [3]float64 {
	if s.clip.FrameCount() == 0 {
		return [3]float64{}
	}
	v := s.clip.LocalAt(id, 0)
	return [3]float64{v.X, v.Y, v.Z}
}
