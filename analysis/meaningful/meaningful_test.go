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

package meaningful

import (
	"testing"

	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
)

const testConfig = `
package-prefixes:
  - example.com/app
trivial-calls:
  - package: example.com/app/metrics
meaningful-calls:
  - package: example.com/app/metrics
    method: ^Flush$
  - package: github.com/vendor/raft
    type: ^Node$
    method: ^Step$
`

func TestFilter(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	f := New(cfg)
	for _, tc := range []struct {
		callee     ir.Callee
		mode       ir.CallMode
		meaningful bool
	}{
		{ir.Callee{Package: "example.com/app/store", Type: "Store", Name: "Put"}, ir.CallDirect, true},
		{ir.Callee{Package: "example.com/app/store", Type: "Store", Name: "GetKey"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/store", Type: "Store", Name: "IsOpen"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/store", Type: "Store", Name: "String"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/store", Type: "NotFoundError", Name: "Wrap"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/store", Name: "NewCorruptionError"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/metrics", Name: "Inc"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/metrics", Name: "Flush"}, ir.CallDirect, true},
		{ir.Callee{Package: "fmt", Name: "Sprintf"}, ir.CallDirect, false},
		{ir.Callee{Package: "os", Name: "Exit"}, ir.CallDirect, true},
		{ir.Callee{Package: "os/exec", Type: "Cmd", Name: "Start"}, ir.CallDirect, true},
		{ir.Callee{Package: "net", Type: "Listener", Name: "Accept"}, ir.CallDirect, true},
		{ir.Callee{Package: "net", Type: "Conn", Name: "Read"}, ir.CallDirect, false},
		{ir.Callee{Package: "sync", Type: "WaitGroup", Name: "Wait"}, ir.CallDirect, true},
		{ir.Callee{Package: "sync", Type: "Mutex", Name: "Lock"}, ir.CallDirect, false},
		{ir.Callee{Package: "log", Name: "Printf"}, ir.CallDirect, true},
		{ir.Callee{Package: "log/slog", Type: "Logger", Name: "Debug"}, ir.CallDirect, false},
		{ir.Callee{Package: "github.com/sirupsen/logrus", Name: "Warnf"}, ir.CallDirect, true},
		{ir.Callee{Package: "github.com/sirupsen/logrus", Name: "Tracef"}, ir.CallDirect, false},
		{ir.Callee{Package: "github.com/vendor/raft", Type: "Node", Name: "Step"}, ir.CallDirect, true},
		{ir.Callee{Package: "github.com/vendor/raft", Type: "Node", Name: "Tick"}, ir.CallDirect, false},
		{ir.Callee{Package: "example.com/app/store", Name: "compact"}, ir.CallGo, true},
		{ir.Callee{Package: "strings", Name: "TrimSpace"}, ir.CallGo, true},
	} {
		call := &ir.CallExpr{Callee: tc.callee, Mode: tc.mode}
		if got := f.IsMeaningfulCall(call); got != tc.meaningful {
			t.Errorf("%s (mode %d): expected meaningful=%v, got %v", tc.callee, tc.mode, tc.meaningful, got)
		}
	}
}

func TestInstructionsWithoutCallsAreTrivial(t *testing.T) {
	f := New(nil)
	b := ir.NewBuilder(nil, "f")
	x := b.Local("x", "int")
	assign := b.Assign(x, ir.NewConst("1", "int"))
	call := b.Call(x, ir.Callee{Package: "example.com/app", Name: "next"}, x)
	b.Return(x)
	b.MustBuild()
	if f.IsMeaningful(assign) {
		t.Errorf("an assignment is not meaningful")
	}
	if !f.IsMeaningful(call) {
		t.Errorf("a call into the program is meaningful when no package prefix is set")
	}
}

func TestIsStdlib(t *testing.T) {
	for pkg, std := range map[string]bool{
		"os":                     true,
		"net/http":               true,
		"golang.org/x/tools/ssa": false,
		"example.com/app":        false,
		"":                       false,
	} {
		if IsStdlib(pkg) != std {
			t.Errorf("IsStdlib(%q) should be %v", pkg, std)
		}
	}
}
