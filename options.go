/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cxxabi

import (
	"github.com/cloudwego/cxxabi/internal/msabi"
	"go.uber.org/zap"
)

// Option is the property setter function for a Module.
type Option = msabi.Option

// WithLogger routes emission traces of the Module to the given
// logger. Tracing is off by default.
func WithLogger(log *zap.Logger) Option {
	if log == nil {
		panic("cxxabi: logger must not be nil")
	}
	return msabi.WithLogger(log)
}

// WithDebugChecks enables extra consistency checks that panic on
// symbol collisions instead of silently reusing the global.
func WithDebugChecks() Option {
	return msabi.WithDebugChecks()
}
