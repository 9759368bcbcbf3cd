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
)

// VBPtrOffset returns the static offset of the vbptr within a
// complete object of c. Classes without virtual bases have none.
func (m *Module) VBPtrOffset(c *layout.Class) int64 {
	return m.Types.VBPtrOffset(c)
}

// VBPtrOffsetFromBases walks the non-virtual bases of c to the
// subobject that donated the vbptr, accumulating the base offsets on
// the way. Classes that carry their own vbptr resolve to the layout
// offset directly.
func (m *Module) VBPtrOffsetFromBases(c *layout.Class) int64 {
	l := m.Types.Of(c)
	if c.NumVBases() == 0 {
		panic(fmt.Sprintf("msabi: %s has no virtual bases", c.Name))
	}
	donor := layout.VBPtrDonor(c)
	if donor == nil {
		return l.VBPtrOffset
	}
	return l.BaseOffset(donor) + m.VBPtrOffsetFromBases(donor)
}

// vbptrOffsetOrZero seeds the vbptr offset slot of a member pointer:
// the donor-aware offset when the class has virtual bases, zero when
// it has none.
func (m *Module) vbptrOffsetOrZero(c *layout.Class) int64 {
	if c.NumVBases() == 0 {
		return 0
	}
	return m.VBPtrOffsetFromBases(c)
}

// EmitVBaseOffset loads the displacement from obj to the given
// virtual base subobject at runtime: chase the vbptr, index the
// vbtable row, and add back the vbptr offset so the result is
// relative to obj itself.
func (p *Fn) EmitVBaseOffset(obj hir.PointerRegister, c *layout.Class, v *layout.Class) hir.GenericRegister {
	vbptr := p.Module.VBPtrOffsetFromBases(c)
	index := p.Module.VTables.VBTableIndex(c, v)
	return p.emitVBTableLoad(obj, vbptr, index)
}

// emitVBTableLoad reads vbtable[index] through the vbptr at the given
// offset of obj, returning the displacement relative to obj.
func (p *Fn) emitVBTableLoad(obj hir.PointerRegister, vbptrOffset int64, index int) hir.GenericRegister {
	vbt := p.TempPtr()
	off := p.TempReg()
	p.B.LP(obj, vbptrOffset, vbt)
	p.B.LL(vbt, int64(index)*layout.IntSize, off)
	if vbptrOffset != 0 {
		p.B.ADDI(off, vbptrOffset, off)
	}
	return off
}

// EmitVBaseAddress computes the address of the virtual base subobject
// v within the object of type c at obj.
func (p *Fn) EmitVBaseAddress(obj hir.PointerRegister, c *layout.Class, v *layout.Class) hir.PointerRegister {
	off := p.EmitVBaseOffset(obj, c, v)
	out := p.TempPtr()
	p.B.ADDP(obj, off, out)
	return out
}

// EmitAdjustToVBase converts a pointer to c into a pointer to its
// virtual base v. Null pointers stay null: the conversion branches
// around the displacement when the source is nil.
func (p *Fn) EmitAdjustToVBase(obj hir.PointerRegister, c *layout.Class, v *layout.Class) hir.PointerRegister {
	out := p.TempPtr()
	p.B.Next()
	p.B.MOVP(hir.Pn, out)
	p.B.BEQN(obj, "_vbnull_{n}")
	off := p.EmitVBaseOffset(obj, c, v)
	p.B.ADDP(obj, off, out)
	p.B.Label("_vbnull_{n}")
	return out
}
