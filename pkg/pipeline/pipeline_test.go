package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/boneforge/boneforge/pkg/cache"
	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/store"
)

const sampleBVH = `HIERARCHY
ROOT Hips
{
  OFFSET 0 0 0
  CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
  JOINT Spine
  {
    OFFSET 0 5 0
    CHANNELS 3 Zrotation Xrotation Yrotation
    End Site
    {
      OFFSET 0 2 0
    }
  }
}
MOTION
Frames: 2
Frame Time: 0.0333333
0 0 0 0 0 0 0 0 0
1 2 3 10 20 30 5 0 0
`

const samplePlan = `
[[op]]
kind = "scale"
factor = 2.0
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walk.bvh")
	if err := os.WriteFile(path, []byte(sampleBVH), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edit.toml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.bvh")
	res, err := Run(context.Background(), Options{
		Input:    writeInput(t),
		PlanPath: writePlan(t),
		Output:   out,
		Cache:    cache.NewNullCache(),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.RunID == "" {
		t.Error("Run() returned empty RunID")
	}
	if res.Stats.Joints != 3 {
		t.Errorf("Stats.Joints = %d, want 3", res.Stats.Joints)
	}
	if res.Stats.Frames != 2 {
		t.Errorf("Stats.Frames = %d, want 2", res.Stats.Frames)
	}
	if res.Cache.Hit {
		t.Error("null cache should never hit")
	}

	spine, err := res.Skeleton.Lookup("Spine")
	if err != nil {
		t.Fatalf("Lookup(Spine) error = %v", err)
	}
	if got := res.Skeleton.Offset(spine).Y(); got != 10 {
		t.Errorf("scaled Spine offset Y = %g, want 10", got)
	}

	if _, err := os.Stat(out); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestRun_CacheHit(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	opts := Options{
		Input:    writeInput(t),
		PlanPath: writePlan(t),
		Cache:    c,
	}

	first, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.Cache.Hit {
		t.Error("first run should miss")
	}

	second, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !second.Cache.Hit {
		t.Error("second run should hit")
	}
	if first.Cache.Key != second.Cache.Key {
		t.Errorf("cache keys differ: %s vs %s", first.Cache.Key, second.Cache.Key)
	}
	if got := second.Stats.Joints; got != first.Stats.Joints {
		t.Errorf("cached skeleton has %d joints, want %d", got, first.Stats.Joints)
	}

	spine, err := second.Skeleton.Lookup("Spine")
	if err != nil {
		t.Fatalf("Lookup(Spine) error = %v", err)
	}
	if got := second.Skeleton.Offset(spine).Y(); got != 10 {
		t.Errorf("cached Spine offset Y = %g, want 10", got)
	}
}

func TestRun_SavesClip(t *testing.T) {
	st := store.NewMemoryStore()
	res, err := Run(context.Background(), Options{
		Input:  writeInput(t),
		Store:  st,
		SaveAs: "walk",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	clip, err := st.Get(context.Background(), "walk")
	if err != nil {
		t.Fatalf("Get(walk) error = %v", err)
	}
	if got := len(clip.Document.Joints); got != res.Stats.Joints {
		t.Errorf("stored clip has %d joints, want %d", got, res.Stats.Joints)
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := Run(context.Background(), Options{Input: filepath.Join(t.TempDir(), "missing.bvh")}); err == nil {
		t.Error("Run() with missing input expected error")
	}

	// Traversal sequences are rejected before anything is read or written.
	_, err := Run(context.Background(), Options{Input: writeInput(t), Output: "../escape.bvh"})
	if err == nil {
		t.Error("Run() with traversal output expected error")
	} else if !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("error = %v, want INVALID_PATH", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[[op]]\nkind = \"explode\""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), Options{Input: writeInput(t), PlanPath: bad}); err == nil {
		t.Error("Run() with invalid plan expected error")
	}
}
