/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cache_test

import (
	"testing"

	"bennypowers.dev/lattice/cache"
	"bennypowers.dev/lattice/internal/mapfs"
)

func TestKeyRenderDeterministic(t *testing.T) {
	a := cache.Key{"/src/app.js", int64(1736000000000), "12345"}
	b := cache.Key{"/src/app.js", int64(1736000000000), "12345"}
	if a.Render() != b.Render() {
		t.Errorf("Equal keys rendered differently: %q vs %q", a.Render(), b.Render())
	}

	c := cache.Key{"/src/app.js", int64(1736000000001), "12345"}
	if a.Render() == c.Render() {
		t.Error("Different keys rendered identically")
	}
}

func TestKeyRenderOrderSensitive(t *testing.T) {
	a := cache.Key{"x", "y"}
	b := cache.Key{"y", "x"}
	if a.Render() == b.Render() {
		t.Error("Reordered tuples rendered identically")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := cache.NewMemory()
	key := cache.Key{"/src/app.js", int64(1), "9"}

	if _, ok := m.Get(key); ok {
		t.Error("Expected miss on empty cache")
	}

	m.Set(key, []byte(`{"code":"x"}`))
	data, ok := m.Get(key)
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if string(data) != `{"code":"x"}` {
		t.Errorf("Got %q", data)
	}
}

func TestDirRoundTrip(t *testing.T) {
	mfs := mapfs.New()
	d := cache.NewDir(mfs, "/cache/dependency_cache")
	key := cache.Key{"/src/app.js", int64(1), "9"}

	if _, ok := d.Get(key); ok {
		t.Error("Expected miss on empty cache")
	}

	d.Set(key, []byte(`{"dependencyIdentifiers":["./foo"]}`))
	data, ok := d.Get(key)
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if string(data) != `{"dependencyIdentifiers":["./foo"]}` {
		t.Errorf("Got %q", data)
	}
}

func TestDirDistinctKeys(t *testing.T) {
	mfs := mapfs.New()
	d := cache.NewDir(mfs, "/cache")

	d.Set(cache.Key{"/a.js", int64(1)}, []byte("a"))
	d.Set(cache.Key{"/b.js", int64(1)}, []byte("b"))

	data, ok := d.Get(cache.Key{"/a.js", int64(1)})
	if !ok || string(data) != "a" {
		t.Errorf("Got %q, %v; want 'a', true", data, ok)
	}
}

func TestWriteThroughReadsOwnWrites(t *testing.T) {
	backend := cache.NewMemory()
	wt, err := cache.NewWriteThrough(backend, 4)
	if err != nil {
		t.Fatalf("NewWriteThrough failed: %v", err)
	}

	key := cache.Key{"/src/app.js", int64(1)}
	wt.Set(key, []byte("v"))

	data, ok := wt.Get(key)
	if !ok || string(data) != "v" {
		t.Errorf("Got %q, %v; want 'v', true", data, ok)
	}

	// The durable layer saw the write too
	data, ok = backend.Get(key)
	if !ok || string(data) != "v" {
		t.Errorf("Backend got %q, %v; want 'v', true", data, ok)
	}
}

func TestWriteThroughFallsBackToBackend(t *testing.T) {
	backend := cache.NewMemory()
	key := cache.Key{"/src/app.js", int64(1)}
	backend.Set(key, []byte("durable"))

	wt, err := cache.NewWriteThrough(backend, 4)
	if err != nil {
		t.Fatalf("NewWriteThrough failed: %v", err)
	}

	data, ok := wt.Get(key)
	if !ok || string(data) != "durable" {
		t.Errorf("Got %q, %v; want 'durable', true", data, ok)
	}
}

func TestLayoutNamespaces(t *testing.T) {
	mfs := mapfs.New()
	layout := cache.NewLayout(mfs, "/proj/.lattice", "abc123")

	key := cache.Key{"/src/app.js", int64(1), "9"}
	layout.Dependency.Set(key, []byte("deps"))

	// Namespaces do not leak into each other
	if _, ok := layout.AST.Get(key); ok {
		t.Error("Dependency write visible in AST namespace")
	}
	if _, ok := layout.PackageResolve.Get(key); ok {
		t.Error("Dependency write visible in PackageResolve namespace")
	}
	if data, ok := layout.Dependency.Get(key); !ok || string(data) != "deps" {
		t.Errorf("Dependency namespace got %q, %v", data, ok)
	}
}

func TestMemoryLayout(t *testing.T) {
	layout := cache.MemoryLayout()
	key := cache.Key{"/a", int64(1)}
	layout.ModuleResolve.Set(key, []byte("x"))
	if data, ok := layout.ModuleResolve.Get(key); !ok || string(data) != "x" {
		t.Errorf("Got %q, %v", data, ok)
	}
}
