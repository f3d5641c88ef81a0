// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version holds build-time version information, overridden via
// -ldflags at release build time.
package version

import "fmt"

// Version is the released semantic version, or "dev" for local builds.
var Version = "dev"

// Commit is the VCS commit the binary was built from, set via -ldflags.
var Commit = ""

// GetVersionString renders the version string shown by -version.
func GetVersionString() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
