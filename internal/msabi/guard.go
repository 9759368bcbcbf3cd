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
	"github.com/cloudwego/cxxabi/internal/hir"
	"go.uber.org/zap"
)

// guardInfo tracks the shared guard variable of one function scope:
// one i32 bitmask covers up to 32 static locals, each initialized
// statics gets the next bit.
type guardInfo struct {
	global  *Global
	nextBit int
}

// GuardBits is the capacity of one guard variable.
const GuardBits = 32

// guardFor finds or creates the guard of a function scope.
func (m *Module) guardFor(scope string) *guardInfo {
	if gi, ok := m.guards[scope]; ok {
		return gi
	}
	g := m.intern(&Global{
		Name:    m.Names.Guard(scope),
		Kind:    GlobalGuard,
		Linkage: LinkInternal,
		Init:    true,
	})
	gi := &guardInfo{global: g}
	m.guards[scope] = gi
	return gi
}

// guardBit hands out the bit of one static local. Externally visible
// statics carry a pre-assigned index in their decorated name so every
// translation unit agrees; the rest take the next free bit of the
// scope. Past 32 statics one i32 cannot cover the scope: a
// pre-assigned index that far is reported, other translation units
// keep using the shared guard and would disagree on the bit. Locally
// numbered statics just roll over into a fresh guard covering this
// translation unit only.
func (m *Module) guardBit(scope, variable string) (*guardInfo, int) {
	gi := m.guardFor(scope)

	if i, ok := m.Names.StaticIndex(variable); ok {
		if i >= GuardBits {
			m.Report(&UnsupportedError{What: "more than 32 guarded statics in scope " + scope})
			return m.overflowGuard(scope, variable), i % GuardBits
		}
		return gi, i
	}

	bit := gi.nextBit
	if bit >= GuardBits {
		gi = m.overflowGuard(scope, variable)
		bit = 0
	}
	gi.nextBit = bit + 1
	m.Names.AssignStaticIndex(variable, bit)
	return gi, bit
}

// overflowGuard is the per-variable fallback once the scope's shared
// bitmask is exhausted.
func (m *Module) overflowGuard(scope, variable string) *guardInfo {
	g := m.intern(&Global{
		Name:    m.Names.Guard(scope + "$" + variable),
		Kind:    GlobalGuard,
		Linkage: LinkInternal,
		Init:    true,
	})
	return &guardInfo{global: g}
}

// EmitThreadLocalInit rejects dynamic initialization of thread-local
// statics: the guard protocol above covers plain statics only.
func (p *Fn) EmitThreadLocalInit(scope, variable string) {
	p.Module.Report(&UnsupportedError{What: "dynamic initialization of thread-local " + variable + " in " + scope})
}

// EmitGuardedInit wraps a static local initializer in the guard
// protocol: test the variable's bit, skip when set, otherwise set the
// bit first and then run the initializer. Setting the bit before the
// initializer runs means a recursive re-entry observes the variable
// as initialized, and an initializer that throws never retries. The
// protocol takes no lock, concurrent first calls race.
func (p *Fn) EmitGuardedInit(scope, variable string, emitInit func(*Fn)) {
	gi, bit := p.Module.guardBit(scope, variable)
	mask := int64(1) << uint(bit)

	gp := p.TempPtr()
	cur := p.TempReg()
	hit := p.TempReg()

	p.B.Next()
	p.B.IG(gi.global.Name, gp)
	p.B.LL(gp, 0, cur)
	p.B.ANDI(cur, mask, hit)
	p.B.BNE(hit, hir.Rz, "_guard_end_{n}")
	p.B.ORI(cur, mask, cur)
	p.B.SL(cur, gp, 0)
	emitInit(p)
	p.B.Label("_guard_end_{n}")

	p.Module.log.Debug("guarded init",
		zap.String("scope", scope),
		zap.String("variable", variable),
		zap.Int("bit", bit))
}
