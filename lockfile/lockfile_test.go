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
package lockfile_test

import (
	"testing"

	"bennypowers.dev/lattice/internal/mapfs"
	"bennypowers.dev/lattice/lockfile"
)

func TestTreeHashStable(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/proj/package-lock.json", `{"lockfileVersion": 3}`, 0644)

	first := lockfile.TreeHash(mfs, "/proj")
	second := lockfile.TreeHash(mfs, "/proj")
	if first != second {
		t.Errorf("Hash not stable: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("Expected 16 hex chars, got %q", first)
	}
}

func TestTreeHashChangesWithLockfile(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/proj/package-lock.json", `{"lockfileVersion": 3}`, 0644)
	before := lockfile.TreeHash(mfs, "/proj")

	mfs.AddFile("/proj/package-lock.json", `{"lockfileVersion": 3, "packages": {}}`, 0644)
	after := lockfile.TreeHash(mfs, "/proj")

	if before == after {
		t.Error("Hash did not change with lockfile content")
	}
}

func TestTreeHashCombinesLockfiles(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/proj/package-lock.json", "a", 0644)
	npmOnly := lockfile.TreeHash(mfs, "/proj")

	mfs.AddFile("/proj/yarn.lock", "b", 0644)
	both := lockfile.TreeHash(mfs, "/proj")

	if npmOnly == both {
		t.Error("Adding a second lockfile did not change the hash")
	}
}

func TestTreeHashNoLockfile(t *testing.T) {
	mfs := mapfs.New()
	first := lockfile.TreeHash(mfs, "/empty")
	second := lockfile.TreeHash(mfs, "/also-empty")
	if first != second {
		t.Error("Projects without lockfiles should share a stable sentinel hash")
	}
}
