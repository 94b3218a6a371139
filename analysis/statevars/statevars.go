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

// Package statevars discovers the concrete state of a class: the fields whose values make up the persistent state
// of its instances.
package statevars

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
)

// Of returns the instance fields of class, minus the fields whose type is ignored by the config.
// cfg may be nil.
func Of(class *ir.Class, cfg *config.Config) mapset.Set[*ir.Field] {
	res := mapset.NewSet[*ir.Field]()
	if class == nil {
		return res
	}
	for _, f := range class.Fields {
		if f.Static {
			continue
		}
		if cfg != nil && cfg.IsIgnoredFieldType(f.Type) {
			continue
		}
		res.Add(f)
	}
	return res
}
