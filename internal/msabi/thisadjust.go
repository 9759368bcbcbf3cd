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
	"github.com/cloudwego/cxxabi/internal/layout"
)

// ThisAdjustment is the displacement an adjustor thunk applies to the
// receiver before tail-calling the target. The virtual part reads a
// vtordisp and, for cross-vbase overrides, a vbtable row.
type ThisAdjustment struct {
	NonVirtual     int32
	VtordispOffset int32
	VBPtrOffset    int32
	VBOffsetOffset int32
}

func (a ThisAdjustment) IsZero() bool {
	return a == ThisAdjustment{}
}

// ReturnAdjustment converts a covariant return value from the base
// subobject the callee produced to the derived class the caller
// expects.
type ReturnAdjustment struct {
	NonVirtual  int32
	VBPtrOffset int32
	VBIndex     int32
}

func (a ReturnAdjustment) IsZero() bool {
	return a == ReturnAdjustment{}
}

// EmitThisForVirtualCall displaces obj from a pointer-to-c to the
// subobject the callee expects its receiver to point at, per the
// callee's declared vftable location. The callee's prologue then
// undoes that displacement to recover its own subobject, see
// AdjustThisInPrologue.
//
// Calls into a virtual base normally read the displacement out of the
// vbtable. When the current function is a structor of c itself the
// object is known to be complete, so the static layout offset is used
// instead and no vbtable load is emitted. Destructor calls on a
// direct non-virtual base get the same treatment.
func (p *Fn) EmitThisForVirtualCall(obj hir.PointerRegister, c *layout.Class, target *layout.Method) hir.PointerRegister {
	ml := p.Module.VTables.MethodLocation(target)

	/* the vbase subobject the callee's frame lives in, seen from c */
	frame := ml.VBase
	extra := int64(0)
	if frame == nil {
		if off, ok := p.Module.Types.NVBaseOffset(c, target.Class); ok {
			return p.displace(obj, off+ml.VFPtrOffset)
		}
		for _, v := range c.VBases() {
			if off, ok := p.Module.Types.NVBaseOffset(v, target.Class); ok {
				frame, extra = v, off
				break
			}
		}
		if frame == nil {
			panic("msabi: receiver type does not reach " + target.Class.Name)
		}
	}

	if p.avoidVirtualOffset(c, target) {
		l := p.Module.Types.Of(c)
		return p.displace(obj, l.VBaseOffset(frame)+extra+ml.VFPtrOffset)
	}
	base := p.EmitVBaseAddress(obj, c, frame)
	return p.displace(base, extra+ml.VFPtrOffset)
}

// avoidVirtualOffset reports whether the receiver is statically known
// to be a complete object of the target's class, making the vbtable
// load unnecessary.
func (p *Fn) avoidVirtualOffset(c *layout.Class, target *layout.Method) bool {
	if p.Method == nil || !target.Dtor {
		return false
	}
	if p.Method.Class == c && c == target.Class {
		return true
	}
	/* base destructor invoked on a direct non-virtual base */
	for _, b := range p.Method.Class.Bases {
		if !b.Virtual && b.Class == c && c == target.Class {
			return true
		}
	}
	return false
}

// AdjustThisInPrologue recovers the overrider's own subobject pointer
// at the top of a virtual function body. Every virtual function
// receives its receiver pointing at the subobject that first declared
// it, so the prologue subtracts the declared vftable displacement,
// adding the virtual base's static offset first when the slot lives
// in one. Complete destructor variants take a pointer to the complete
// object as is and skip the adjustment.
func (p *Fn) AdjustThisInPrologue(obj hir.PointerRegister, target *layout.Method) hir.PointerRegister {
	if target.Dtor && p.Variant == layout.StructorComplete {
		return obj
	}
	ml := p.Module.VTables.MethodLocation(target)
	off := ml.VFPtrOffset
	if ml.VBase != nil {
		l := p.Module.Types.Of(target.Class)
		off += l.VBaseOffset(ml.VBase)
	}
	return p.displace(obj, -off)
}

func (p *Fn) displace(obj hir.PointerRegister, off int64) hir.PointerRegister {
	if off == 0 {
		return obj
	}
	out := p.TempPtr()
	p.B.ADDPI(obj, off, out)
	return out
}

// PerformThisAdjustment lowers an adjustor thunk displacement: undo
// the vtordisp if one applies, hop through the vbtable for
// cross-vbase overrides, then add the static part.
func (p *Fn) PerformThisAdjustment(obj hir.PointerRegister, a ThisAdjustment) hir.PointerRegister {
	if a.IsZero() {
		return obj
	}
	cur := obj
	if a.VtordispOffset != 0 {
		disp := p.TempReg()
		out := p.TempPtr()
		p.B.LL(cur, int64(a.VtordispOffset), disp)
		p.B.SUBP(cur, disp, out)
		cur = out
	}
	if a.VBOffsetOffset != 0 {
		vbt := p.TempPtr()
		off := p.TempReg()
		out := p.TempPtr()
		p.B.LP(cur, int64(a.VBPtrOffset), vbt)
		p.B.LL(vbt, int64(a.VBOffsetOffset), off)
		if a.VBPtrOffset != 0 {
			p.B.ADDI(off, int64(a.VBPtrOffset), off)
		}
		p.B.ADDP(cur, off, out)
		cur = out
	}
	return p.displace(cur, int64(a.NonVirtual))
}

// PerformReturnAdjustment converts the covariant return value. Null
// results pass through untouched.
func (p *Fn) PerformReturnAdjustment(ret hir.PointerRegister, a ReturnAdjustment) hir.PointerRegister {
	if a.IsZero() {
		return ret
	}
	out := p.TempPtr()
	p.B.Next()
	p.B.MOVP(hir.Pn, out)
	p.B.BEQN(ret, "_radj_{n}")
	cur := ret
	if a.VBIndex != 0 {
		off := p.emitVBTableLoad(cur, int64(a.VBPtrOffset), int(a.VBIndex))
		nxt := p.TempPtr()
		p.B.ADDP(cur, off, nxt)
		cur = nxt
	}
	if a.NonVirtual != 0 {
		nxt := p.TempPtr()
		p.B.ADDPI(cur, int64(a.NonVirtual), nxt)
		cur = nxt
	}
	p.B.MOVP(cur, out)
	p.B.Label("_radj_{n}")
	return out
}

// AdjustToCompleteObject is an identity transform here: a pointer
// used in a delete-expression already addresses the complete object,
// the deleting destructor takes care of the rest.
func (p *Fn) AdjustToCompleteObject(obj hir.PointerRegister) hir.PointerRegister {
	return obj
}
