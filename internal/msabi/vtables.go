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
	"go.uber.org/zap"
)

// AddrOfVFTable returns the vftable global injected at the given
// offset of c, creating the declaration on first use. The same
// (class, offset) pair always yields the same global. Filling in the
// slots is deferred until EmitDeferred runs, so address-of never
// forces the whole hierarchy to be laid out eagerly.
func (m *Module) AddrOfVFTable(c *layout.Class, offset int64) *Global {
	key := vftableKey{class: c, offset: offset}
	if g, ok := m.vftables[key]; ok {
		return g
	}

	var path []string
	for _, vf := range m.VTables.VFPtrOffsets(c) {
		if vf.Offset == offset {
			path = vf.Path
		}
	}

	name := m.Names.VFTable(c, path)
	if m.debug {
		if _, ok := m.globals[name]; ok {
			panic(fmt.Sprintf("msabi: vftable symbol %q collides with an existing global", name))
		}
	}

	g := m.intern(&Global{Name: name, Kind: GlobalVFTable, Linkage: LinkOnce})
	m.vftables[key] = g

	if !m.queued[key] {
		m.queued[key] = true
		m.deferred.Enqueue(key)
	}

	m.log.Debug("vftable declared", zap.String("class", c.Name), zap.Int64("offset", offset), zap.String("symbol", name))
	return g
}

// EmitVFTableDefinition fills in the slot roster of an already
// declared vftable. Writing a definition twice is a no-op.
func (m *Module) EmitVFTableDefinition(c *layout.Class, offset int64) *Global {
	g := m.AddrOfVFTable(c, offset)
	if g.Init {
		return g
	}

	slots := m.VTables.VFTableLayout(c, offset)
	g.Slots = make([]TableSlot, 0, len(slots))
	for _, s := range slots {
		g.Slots = append(g.Slots, TableSlot{
			Fn:         m.slotSymbol(s),
			Adjustment: s.Adjustment,
		})
	}
	g.Init = true
	return g
}

// slotSymbol names the function a vftable slot points at: the
// deleting destructor for the destructor slot, an adjustor thunk when
// the this displacement is nonzero, the overrider itself otherwise.
func (m *Module) slotSymbol(s layout.Slot) string {
	if s.Method.Dtor {
		return m.Names.Dtor(s.Method.Class, layout.StructorDeleting)
	}
	if s.Adjustment != 0 {
		return m.Names.Thunk(s.Method, s.Adjustment)
	}
	return m.Names.Method(s.Method)
}

// EmitDeferred drains the deferred vftable queue, defining every
// table whose address was taken. Definitions may take more addresses,
// the queue is drained to a fixpoint.
func (m *Module) EmitDeferred() {
	for !m.deferred.Empty() {
		key := m.deferred.Dequeue().(vftableKey)
		m.EmitVFTableDefinition(key.class, key.offset)
	}
}

// vbtableSite is one vbptr location inside a complete object: the
// byte offset of the vbptr, the class whose virtual base roster the
// table through it serves, and the base path that reached it (empty
// for the class's own table).
type vbtableSite struct {
	owner *layout.Class
	path  []string
	off   int64
}

// vbtableSites enumerates every vbptr a complete object of c carries.
// The vbptr on the donor chain belongs to c itself even when a base
// donated it. Non-virtual bases off that chain keep their own vbptrs,
// those surface as additional sites addressed by the base path.
func (m *Module) vbtableSites(c *layout.Class) []vbtableSite {
	var r []vbtableSite
	m.collectVBTableSites(c, c, 0, nil, &r)
	return r
}

func (m *Module) collectVBTableSites(owner, c *layout.Class, at int64, path []string, out *[]vbtableSite) {
	if c.NumVBases() == 0 {
		return
	}
	donor := layout.VBPtrDonor(c)
	if donor == nil {
		*out = append(*out, vbtableSite{owner: owner, path: path, off: at + m.Types.VBPtrOffset(c)})
	}
	l := m.Types.Of(c)
	for _, b := range c.Bases {
		if b.Virtual || b.Class.NumVBases() == 0 {
			continue
		}
		next, sub := owner, path
		if b.Class != donor {
			next = b.Class
			sub = append(append([]string(nil), path...), b.Class.Name)
		}
		m.collectVBTableSites(next, b.Class, at+l.BaseOffset(b.Class), sub, out)
	}
}

// EnumerateVBTables emits every vbtable a complete object of c needs,
// one per reachable vbptr. A class reusing a donated vbptr still gets
// a table of its own: the donor's rows do not match the derived
// layout.
func (m *Module) EnumerateVBTables(c *layout.Class) []*Global {
	if g, ok := m.vbtables[c]; ok {
		return g
	}
	var r []*Global
	for _, s := range m.vbtableSites(c) {
		r = append(r, m.emitVBTableDefinition(c, s))
	}
	m.vbtables[c] = r
	return r
}

// emitVBTableDefinition writes the displacement rows of the vbtable
// at one vbptr site: row 0 holds 0, row i holds the offset of the
// owner's i-th virtual base relative to the vbptr.
func (m *Module) emitVBTableDefinition(c *layout.Class, s vbtableSite) *Global {
	l := m.Types.Of(c)
	name := m.Names.VBTable(c, s.path)
	g := m.intern(&Global{Name: name, Kind: GlobalVBTable, Linkage: LinkOnce})
	if g.Init {
		return g
	}

	vbases := s.owner.VBases()
	g.Offsets = make([]int32, 1+len(vbases))
	g.Offsets[0] = 0
	for _, v := range vbases {
		i := m.VTables.VBTableIndex(s.owner, v)
		g.Offsets[i] = int32(l.VBaseOffset(v) - s.off)
	}
	g.Init = true

	m.log.Debug("vbtable emitted", zap.String("class", c.Name), zap.String("symbol", name))
	return g
}

// VTableAddressPoint is the offset within a vftable global at which
// the vfptr points. Tables here carry no RTTI prefix, the address
// point is the first slot.
func (m *Module) VTableAddressPoint(c *layout.Class, offset int64) int64 {
	return 0
}

// EmitVirtualFunctionPointer loads the callee out of the receiver's
// vftable for an indirect virtual call. The receiver must already
// point at the subobject holding the relevant vfptr.
func (p *Fn) EmitVirtualFunctionPointer(obj hir.PointerRegister, target *layout.Method) hir.PointerRegister {
	ml := p.Module.VTables.MethodLocation(target)
	vft := p.TempPtr()
	fn := p.TempPtr()
	p.B.LP(obj, 0, vft)
	p.B.LP(vft, int64(ml.Index)*layout.PtrSize, fn)
	return fn
}

// EmitVirtualCall lowers a whole virtual call: adjust the receiver to
// the callee's expected subobject, fetch the slot, and call through
// it with the adjusted receiver as the first argument.
func (p *Fn) EmitVirtualCall(obj hir.PointerRegister, c *layout.Class, target *layout.Method) {
	this := p.EmitThisForVirtualCall(obj, c, target)
	fn := p.EmitVirtualFunctionPointer(this, target)
	p.B.CALLP(fn).A0(this)
}
