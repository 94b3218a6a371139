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

package statevars

import (
	"testing"

	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
)

func TestOf(t *testing.T) {
	c := &ir.Class{Name: "Node", Package: "example.com/n"}
	term := c.AddField("term", "uint64")
	mu := c.AddField("mu", "sync.Mutex")
	counter := c.AddField("counter", "int")
	counter.Static = true

	all := Of(c, nil)
	if !all.Contains(term) || !all.Contains(mu) || all.Contains(counter) {
		t.Errorf("expected the instance fields, got %v", all)
	}

	cfg, err := config.Parse([]byte("ignored-field-types: ['^sync\\.']\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	filtered := Of(c, cfg)
	if filtered.Cardinality() != 1 || !filtered.Contains(term) {
		t.Errorf("expected only term, got %v", filtered)
	}

	if Of(nil, cfg).Cardinality() != 0 {
		t.Errorf("a missing class has no state")
	}
}
