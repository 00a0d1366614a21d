package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/types"
)

type recordingBackend struct {
	kind  Kind
	conv  anim.Convention
	err   error
	calls int
	clip  *anim.Clip
	path  string
}

func (b *recordingBackend) Kind() Kind                  { return b.kind }
func (b *recordingBackend) Convention() anim.Convention { return b.conv }

func (b *recordingBackend) Write(_ context.Context, clip *anim.Clip, path string) ([]string, error) {
	b.calls++
	b.clip = clip
	b.path = path
	if b.err != nil {
		return nil, b.err
	}
	return []string{path}, nil
}

func oneFrame() *skeleton.Buffer {
	var s types.SkeletonSnapshot
	s.Joints[skeleton.Pelvis] = types.JointSample{X: 1, Y: 2, Z: 3}
	s.Joints[skeleton.SpineNavel] = types.JointSample{X: 1.5, Y: 2.5, Z: 3.5}
	return skeleton.BufferOf(s)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"out.fbx", KindFBX, false},
		{"dir/OUT.FBX", KindFBX, false},
		{"out.gltf", KindGLTF, false},
		{"out.glb", KindGLTF, false},
		{"out.obj", "", true},
		{"out", "", true},
		{"out.fbx.txt", "", true},
	}
	for _, tt := range tests {
		got, err := KindOf(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("KindOf(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidOutputType) {
			t.Errorf("KindOf(%q) error = %v, want ErrInvalidOutputType", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/tmp/takes/jump.fbx"); got != "jump" {
		t.Errorf("Stem() = %q, want jump", got)
	}
}

func TestDispatch_RoutesByKind(t *testing.T) {
	fbx := &recordingBackend{kind: KindFBX, conv: anim.ConventionFlipY}
	gltf := &recordingBackend{kind: KindGLTF, conv: anim.ConventionCaptured}
	d := NewDispatcher(fbx, gltf)

	res, err := d.Dispatch(t.Context(), "take.fbx", oneFrame(), skeleton.Default())
	if err != nil {
		t.Fatalf("Dispatch(fbx) error: %v", err)
	}
	if fbx.calls != 1 || gltf.calls != 0 {
		t.Errorf("calls fbx=%d gltf=%d, want 1/0", fbx.calls, gltf.calls)
	}
	if res.Kind != KindFBX || res.Frames != 1 {
		t.Errorf("result = %+v", res)
	}
	if fbx.clip.Name != "take" {
		t.Errorf("clip name = %q, want take", fbx.clip.Name)
	}
	// The FBX back end receives flipped y values.
	if got := fbx.clip.LocalAt(skeleton.Pelvis, 0).Y; got != -2 {
		t.Errorf("fbx pelvis y = %v, want -2", got)
	}
	if got := fbx.clip.LocalAt(skeleton.SpineNavel, 0).Y; got != -0.5 {
		t.Errorf("fbx spine y = %v, want -0.5", got)
	}

	if _, err := d.Dispatch(t.Context(), "take.glb", oneFrame(), skeleton.Default()); err != nil {
		t.Fatalf("Dispatch(glb) error: %v", err)
	}
	if gltf.calls != 1 {
		t.Errorf("gltf calls = %d, want 1", gltf.calls)
	}
	if got := gltf.clip.LocalAt(skeleton.Pelvis, 0).Y; got != 2 {
		t.Errorf("gltf pelvis y = %v, want 2", got)
	}
}

func TestDispatch_InvalidKindInvokesNothing(t *testing.T) {
	fbx := &recordingBackend{kind: KindFBX}
	gltf := &recordingBackend{kind: KindGLTF}
	d := NewDispatcher(fbx, gltf)

	_, err := d.Dispatch(t.Context(), "take.obj", oneFrame(), skeleton.Default())
	if !errors.Is(err, ErrInvalidOutputType) {
		t.Fatalf("error = %v, want ErrInvalidOutputType", err)
	}
	if fbx.calls+gltf.calls != 0 {
		t.Errorf("back ends invoked %d times, want 0", fbx.calls+gltf.calls)
	}
}

func TestDispatch_BackendErrorNamesBackend(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"take.fbx", "An error occurred while creating the fbx."},
		{"take.gltf", "An error occurred while creating the gltf."},
	}
	cause := errors.New("disk full")
	d := NewDispatcher(
		&recordingBackend{kind: KindFBX, err: cause},
		&recordingBackend{kind: KindGLTF, err: cause},
	)
	for _, tt := range tests {
		_, err := d.Dispatch(t.Context(), tt.path, oneFrame(), skeleton.Default())
		if err == nil {
			t.Fatalf("Dispatch(%q) succeeded", tt.path)
		}
		if err.Error() != tt.want {
			t.Errorf("error = %q, want %q", err.Error(), tt.want)
		}
		if !errors.Is(err, cause) {
			t.Error("BackendError does not unwrap to cause")
		}
		if !IsBackendError(err) {
			t.Error("IsBackendError() = false")
		}
	}
}

func TestDispatch_EmptyBuffer(t *testing.T) {
	fbx := &recordingBackend{kind: KindFBX}
	d := NewDispatcher(fbx)
	res, err := d.Dispatch(t.Context(), "empty.fbx", skeleton.NewBuffer(0), nil)
	if err != nil {
		t.Fatalf("Dispatch(empty) error: %v", err)
	}
	if res.Frames != 0 || fbx.clip.FrameCount() != 0 {
		t.Errorf("frames = %d, want 0", res.Frames)
	}
}

func TestDispatch_UnregisteredKind(t *testing.T) {
	d := NewDispatcher(&recordingBackend{kind: KindFBX})
	if _, err := d.Validate("take.gltf"); !errors.Is(err, ErrInvalidOutputType) {
		t.Errorf("Validate(gltf) error = %v, want ErrInvalidOutputType", err)
	}
}

func TestPrepareOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "take.fbx")

	if err := PrepareOutput(path, false); err != nil {
		t.Fatalf("PrepareOutput() error: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir not created: %v", err)
	}

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := PrepareOutput(path, false); !errors.Is(err, ErrOutputExists) {
		t.Errorf("PrepareOutput(existing) = %v, want ErrOutputExists", err)
	}
	if err := PrepareOutput(path, true); err != nil {
		t.Errorf("PrepareOutput(existing, overwrite) = %v", err)
	}
}

