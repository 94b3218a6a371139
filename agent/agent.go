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

// Package agent is the runtime side of the instrumentation: instrumented programs call InformState every time a
// procedure enters one of its abstract states.
//
// The calls are inserted by the instrumentation; they are not meant to be written by hand:
//
//	asmiID := agent.GoroutineID()
//	agent.InformState("example.com/server.Worker", asmiID, "(example.com/server.Worker).Run", 0)
package agent

import (
	"log"
	"os"
	"reflect"
	"sync"

	"github.com/petermattis/goid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileEnv is the environment variable naming the file where Init logs the transitions
const LogFileEnv = "ASMI_AGENT_LOG"

var (
	manager  = NewManager(nil)
	initOnce sync.Once
)

// Default returns the manager receiving the reports of the instrumented program
func Default() *Manager { return manager }

// InformState reports that the procedure signature of className entered state on the current goroutine. instance
// is the identity of the reporting actor.
func InformState(className string, instance int64, signature string, state int) bool {
	return manager.Update(goid.Get(), className, instance, signature, state)
}

// GoroutineID returns the identity of the current goroutine
func GoroutineID() int64 {
	return goid.Get()
}

// Identity returns an identity of x that is stable for the lifetime of x. Values that are not references, and nil
// references, are copied between calls and are identified by the current goroutine instead.
func Identity(x any) int64 {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		if p := v.Pointer(); p != 0 {
			return int64(p)
		}
	}
	return goid.Get()
}

// Init prepares the agent. When LogFileEnv is set, the transitions are logged to that file, rotated. Only the
// first call has an effect.
func Init() {
	initOnce.Do(func() {
		filename := os.Getenv(LogFileEnv)
		if filename == "" {
			return
		}
		logger := log.New(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    50,
			MaxBackups: 3,
		}, "", 0)
		manager.SetListener(func(t Transition) {
			logger.Println(t)
		})
	})
}
