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

// Package meaningful decides which instructions perform an operation that matters to the state of the program.
//
// Only calls are meaningful. A call into the target program is meaningful unless it is an accessor or one of the
// trivial object methods (String, Error, Len, ...). A call into the standard library is meaningful only when it
// controls processes, goroutines, timers or listeners. A logging call is meaningful only for the error, warning
// and info levels. Other calls are trivial. Starting a goroutine is always meaningful. The rules of the config take
// precedence over these defaults.
package meaningful

import (
	"strings"

	"github.com/statecraft/asmi/analysis/config"
	"github.com/statecraft/asmi/analysis/ir"
)

// Filter implements the meaningful operation predicate of the abstract state derivation
type Filter struct {
	config *config.Config
}

// New returns a filter using the package prefixes and call rules of cfg
func New(cfg *config.Config) *Filter {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	return &Filter{config: cfg}
}

// IsMeaningful returns true if the first call performed by i is meaningful
func (f *Filter) IsMeaningful(i *ir.Instruction) bool {
	call := ir.FirstCall(i)
	if call == nil {
		return false
	}
	return f.IsMeaningfulCall(call)
}

// IsMeaningfulCall classifies a single call
//
//gocyclo:ignore
func (f *Filter) IsMeaningfulCall(call *ir.CallExpr) bool {
	callee := call.Callee
	if f.config.IsMeaningfulCall(callee.Package, callee.Type, callee.Name) {
		return true
	}
	if f.config.IsTrivialCall(callee.Package, callee.Type, callee.Name) {
		return false
	}
	if call.Mode == ir.CallGo {
		return true
	}
	switch {
	case isLogging(callee.Package):
		return isReportedLevel(callee.Name)
	case f.isTarget(callee.Package):
		return !isTrivialMethod(callee)
	case IsStdlib(callee.Package):
		return isControlCall(callee)
	default:
		return false
	}
}

func (f *Filter) isTarget(pkg string) bool {
	if pkg == "" {
		return false
	}
	if len(f.config.PackagePrefixes) == 0 {
		return !IsStdlib(pkg)
	}
	for _, p := range f.config.PackagePrefixes {
		if strings.HasPrefix(pkg, p) {
			return true
		}
	}
	return false
}

// IsStdlib returns true if pkg is a package of the standard library: its first path element has no dot
func IsStdlib(pkg string) bool {
	if pkg == "" {
		return false
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}

var trivialMethods = map[string]bool{
	"String":    true,
	"Error":     true,
	"GoString":  true,
	"Hash":      true,
	"HashCode":  true,
	"Len":       true,
	"Less":      true,
	"Swap":      true,
	"Compare":   true,
	"Equal":     true,
	"Iterator":  true,
	"Unwrap":    true,
	"Format":    true,
	"MarshalTo": true,
}

// isTrivialMethod returns true for accessors, error constructors and trivial object methods of the target program
func isTrivialMethod(callee ir.Callee) bool {
	if strings.HasSuffix(callee.Type, "Error") || strings.HasSuffix(callee.Type, "Exception") {
		return true
	}
	name := callee.Name
	if strings.HasPrefix(name, "New") && strings.HasSuffix(name, "Error") {
		return true
	}
	for _, prefix := range []string{"Get", "get", "Is", "is", "Has", "has"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return trivialMethods[name]
}

var loggingPackages = []string{
	"log",
	"log/slog",
	"github.com/sirupsen/logrus",
	"go.uber.org/zap",
	"github.com/rs/zerolog",
	"k8s.io/klog",
}

func isLogging(pkg string) bool {
	for _, p := range loggingPackages {
		if pkg == p || strings.HasPrefix(pkg, p+"/") {
			return true
		}
	}
	return false
}

// isReportedLevel returns true for the logging functions of the error, warning and info levels. The standard
// logger's Print functions log at the info level; its Fatal and Panic functions stop the program.
func isReportedLevel(name string) bool {
	for _, level := range []string{"Error", "Warn", "Info", "Print", "Fatal", "Panic"} {
		if strings.HasPrefix(name, level) {
			return true
		}
	}
	return false
}

// controlCalls lists the standard library operations that control processes, goroutines, timers and listeners,
// keyed by package then receiver type ("" for functions)
var controlCalls = map[string]map[string][]string{
	"os": {
		"":        {"Exit"},
		"Process": {"Kill", "Signal", "Wait", "Release"},
	},
	"os/exec": {
		"Cmd": {"Start", "Run", "Wait", "Output", "CombinedOutput"},
	},
	"runtime": {
		"": {"Goexit"},
	},
	"time": {
		"":       {"AfterFunc"},
		"Timer":  {"Stop", "Reset"},
		"Ticker": {"Stop", "Reset"},
	},
	"sync": {
		"WaitGroup": {"Wait"},
	},
	"net": {
		"":             {"Listen", "ListenPacket"},
		"Listener":     {"Accept", "Close"},
		"TCPListener":  {"Accept", "AcceptTCP", "Close"},
		"UnixListener": {"Accept", "AcceptUnix", "Close"},
	},
	"net/http": {
		"":       {"ListenAndServe", "ListenAndServeTLS", "Serve"},
		"Server": {"ListenAndServe", "ListenAndServeTLS", "Serve", "Shutdown", "Close"},
	},
}

func isControlCall(callee ir.Callee) bool {
	byType, ok := controlCalls[callee.Package]
	if !ok {
		return false
	}
	for _, name := range byType[callee.Type] {
		if name == callee.Name {
			return true
		}
	}
	return false
}
