package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStage_PutGet(t *testing.T) {
	t.Parallel()
	c := &Stage{Dir: t.TempDir()}
	key := KeyFrom("gpt-4o", "system\n\nuser")
	c.Put(key, []byte(`{"queries":["a"]}`))
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `{"queries":["a"]}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestStage_MissOnAbsentKey(t *testing.T) {
	t.Parallel()
	c := &Stage{Dir: t.TempDir()}
	if _, ok := c.Get(KeyFrom("m", "p")); ok {
		t.Fatal("expected miss")
	}
}

func TestStage_KeyDependsOnModelAndPrompt(t *testing.T) {
	t.Parallel()
	if KeyFrom("a", "p") == KeyFrom("b", "p") {
		t.Fatal("model must be part of the key")
	}
	if KeyFrom("a", "p1") == KeyFrom("a", "p2") {
		t.Fatal("prompt must be part of the key")
	}
}

func TestStage_NilAndUnconfiguredAreMisses(t *testing.T) {
	t.Parallel()
	var c *Stage
	if _, ok := c.Get("k"); ok {
		t.Fatal("nil cache must miss")
	}
	c.Put("k", []byte("x")) // must not panic
	empty := &Stage{}
	if _, ok := empty.Get("k"); ok {
		t.Fatal("unconfigured cache must miss")
	}
}

func TestStage_EmptyFileIsAMiss(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &Stage{Dir: dir}
	key := KeyFrom("m", "p")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("empty record must be treated as a miss")
	}
}
