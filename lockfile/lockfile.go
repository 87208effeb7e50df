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

// Package lockfile digests package-manifest lockfiles into a single hash
// used to namespace the resolver cache directories. Upgrading dependencies
// changes the digest and thereby invalidates cached resolutions.
package lockfile

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"bennypowers.dev/lattice/fs"
)

// Candidate lockfile names, in lookup order.
var lockfileNames = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
}

// TreeHash digests the lockfiles found under root. Lockfiles that exist
// contribute their name and content; missing ones contribute nothing. When
// no lockfile exists at all the digest is still stable, so a project without
// one shares a single cache namespace.
func TreeHash(fsys fs.FileSystem, root string) string {
	hasher := xxhash.New()
	for _, name := range lockfileNames {
		path := filepath.Join(root, name)
		if !fsys.Exists(path) {
			continue
		}
		content, err := fsys.ReadFile(path)
		if err != nil {
			continue
		}
		_, _ = hasher.WriteString(name)
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(content)
		_, _ = hasher.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", hasher.Sum64())
}
