// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funcutil

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMap(t *testing.T) {
	got := Map([]string{"^Run$", "^Handle"}, strings.ToUpper)
	if diff := cmp.Diff([]string{"^RUN$", "^HANDLE"}, got); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
	if Map(nil, strings.ToUpper) != nil {
		t.Errorf("mapping nothing returns nil")
	}
}

func TestExists(t *testing.T) {
	prefixes := []string{"example.com/a", "example.com/b"}
	if !Exists(prefixes, func(p string) bool { return strings.HasPrefix("example.com/b/c", p) }) {
		t.Errorf("example.com/b/c has a prefix")
	}
	if Exists(prefixes, func(p string) bool { return strings.HasPrefix("example.com/c", p) }) {
		t.Errorf("example.com/c has no prefix")
	}
}
