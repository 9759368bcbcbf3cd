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

// Package cxxabi generates code against the Microsoft Visual C++
// ABI: virtual function and virtual base tables, member pointers in
// their shape-dependent representations, constructor and destructor
// variants, and the guard protocol for function-local statics.
//
// Class hierarchies are described with the layout types, then lowered
// through a Module into register-machine programs and module-level
// globals.
package cxxabi

import (
	"github.com/cloudwego/cxxabi/internal/layout"
	"github.com/cloudwego/cxxabi/internal/msabi"
)

// Class describes one C++ class: its bases, fields and methods.
type Class = layout.Class

// Base is one inheritance edge, possibly virtual.
type Base = layout.Base

// Field is one non-static data member.
type Field = layout.Field

// Method is one member function declaration.
type Method = layout.Method

// Module is a per-translation-unit code generation context.
type Module = msabi.Module

// Global is one emitted module-level object.
type Global = msabi.Global

// NewClass declares a class with the given direct bases.
func NewClass(name string, bases ...Base) *Class {
	return layout.NewClass(name, bases...)
}

// NewModule creates a code generation context over a fresh layout
// cache.
func NewModule(opts ...Option) *Module {
	return msabi.NewModule(layout.NewTable(), opts...)
}
