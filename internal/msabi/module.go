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

package msabi

import (
	"fmt"

	"github.com/cloudwego/cxxabi/internal/hir"
	"github.com/cloudwego/cxxabi/internal/layout"
	"github.com/oleiade/lane"
	"go.uber.org/zap"
)

// UnsupportedError reports a construct this ABI implementation
// declines to lower. Emission continues with a placeholder value so
// the caller can collect every diagnostic in one pass.
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string {
	return "msabi: unsupported construct: " + e.What
}

type vftableKey struct {
	class  *layout.Class
	offset int64
}

// Module is the per-translation-unit code generation context. It owns
// the type layouts, the slot assignment context, the mangler, and the
// registry of emitted globals.
type Module struct {
	Types   *layout.Table
	VTables *layout.Context
	Names   *layout.Mangler

	log   *zap.Logger
	debug bool

	globals  map[string]*Global
	vftables map[vftableKey]*Global
	vbtables map[*layout.Class][]*Global
	guards   map[string]*guardInfo
	deferred *lane.Queue
	queued   map[vftableKey]bool
	diags    []error
}

func NewModule(types *layout.Table, opts ...Option) *Module {
	m := &Module{
		Types:    types,
		VTables:  layout.NewContext(types),
		Names:    layout.NewMangler(),
		log:      zap.NewNop(),
		globals:  make(map[string]*Global),
		vftables: make(map[vftableKey]*Global),
		vbtables: make(map[*layout.Class][]*Global),
		guards:   make(map[string]*guardInfo),
		deferred: lane.NewQueue(),
		queued:   make(map[vftableKey]bool),
	}
	for _, fn := range opts {
		fn(m)
	}
	return m
}

// Option customizes a Module.
type Option func(*Module)

// WithLogger routes emission traces to the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Module) {
		if log == nil {
			panic("msabi: logger must not be nil")
		}
		m.log = log
	}
}

// WithDebugChecks enables the extra consistency checks that panic on
// symbol collisions instead of silently reusing the global.
func WithDebugChecks() Option {
	return func(m *Module) {
		m.debug = true
	}
}

// Report records a diagnostic and logs it. Lowering continues after a
// report, emission results for the offending construct are
// placeholders.
func (m *Module) Report(err error) {
	m.diags = append(m.diags, err)
	m.log.Warn("diagnostic", zap.Error(err))
}

// Diagnostics returns every diagnostic reported so far.
func (m *Module) Diagnostics() []error {
	return m.diags
}

// Global looks up an emitted global by symbol name.
func (m *Module) Global(name string) (*Global, bool) {
	g, ok := m.globals[name]
	return g, ok
}

// Globals returns every global registered so far, in no particular
// order.
func (m *Module) Globals() []*Global {
	r := make([]*Global, 0, len(m.globals))
	for _, g := range m.globals {
		r = append(r, g)
	}
	return r
}

func (m *Module) intern(g *Global) *Global {
	if old, ok := m.globals[g.Name]; ok {
		if m.debug && old.Kind != g.Kind {
			panic(fmt.Sprintf("msabi: symbol %q emitted with two kinds", g.Name))
		}
		return old
	}
	m.globals[g.Name] = g
	return g
}

// Fn is the in-progress lowering state of one function body. The
// receiver object pointer always lives in P0, the implicit trailing
// integer parameter of structors in R0.
type Fn struct {
	B       *hir.Builder
	Module  *Module
	Method  *layout.Method
	Variant layout.StructorVariant

	This     hir.PointerRegister
	Implicit hir.GenericRegister

	nreg uint8
	npr  uint8
}

// NewFn starts lowering a function body for the given method.
func (m *Module) NewFn(method *layout.Method) *Fn {
	return &Fn{
		B:        hir.CreateBuilder(),
		Module:   m,
		Method:   method,
		This:     hir.P0,
		Implicit: hir.R0,
		nreg:     1,
		npr:      1,
	}
}

// TempReg allocates a scratch generic register.
func (p *Fn) TempReg() hir.GenericRegister {
	if p.nreg >= uint8(hir.Rz) {
		panic("msabi: out of generic registers")
	}
	r := hir.GenericRegister(p.nreg)
	p.nreg++
	return r
}

// TempPtr allocates a scratch pointer register.
func (p *Fn) TempPtr() hir.PointerRegister {
	if p.npr >= uint8(hir.Pn) {
		panic("msabi: out of pointer registers")
	}
	r := hir.PointerRegister(p.npr)
	p.npr++
	return r
}

// Finish seals the body and returns the built program.
func (p *Fn) Finish() hir.Program {
	return p.B.Build()
}
