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

// Flag bits of the deleting destructor's implicit parameter.
const (
	DtorShouldDelete  = 1 << 0
	DtorScalarVsArray = 1 << 1
)

// HasThisReturn reports whether the function hands its receiver back
// in the return slot. Only constructors do, destructor variants
// return normally.
func HasThisReturn(m *layout.Method, ctor bool) bool {
	return ctor
}

// CtorHasMostDerivedParam reports whether constructors of c take the
// implicit trailing is_most_derived flag. Only classes with virtual
// bases do: the single emitted constructor serves as both the base
// and the complete variant, the flag picks which.
func CtorHasMostDerivedParam(c *layout.Class) bool {
	return c.NumVBases() > 0
}

// LoadStructorImplicitParam binds the implicit trailing parameter in
// the prologue: is_most_derived for constructors, the delete flags
// for deleting destructors. Argument slot 0 is the receiver.
func (p *Fn) LoadStructorImplicitParam() hir.GenericRegister {
	p.B.LDAP(0, p.This)
	p.B.LDAQ(1, p.Implicit)
	return p.Implicit
}

// EmitVBPtrStores writes the vbtable address into every vbptr a
// complete object of c carries, the donated one included: the base
// constructor stored the base's own table there, whose rows do not
// match the derived layout.
func (p *Fn) EmitVBPtrStores(c *layout.Class) {
	sites := p.Module.vbtableSites(c)
	tables := p.Module.EnumerateVBTables(c)
	for i, s := range sites {
		vbt := p.TempPtr()
		p.B.IG(tables[i].Name, vbt)
		p.B.SP(vbt, p.This, s.off)
	}
}

// EmitVFPtrStores writes every vfptr of c. Constructors overwrite the
// pointers stored by base constructors so that virtual dispatch sees
// the dynamic type currently under construction.
func (p *Fn) EmitVFPtrStores(c *layout.Class) {
	for _, vf := range p.Module.VTables.VFPtrOffsets(c) {
		g := p.Module.AddrOfVFTable(c, vf.Offset)
		vft := p.TempPtr()
		p.B.IG(g.Name, vft)
		p.B.SP(vft, p.This, vf.Offset)
	}
}

// InitializeVtorDisps stores the vtordisp of every virtual base that
// carries one: the difference between where the vbase actually is at
// runtime and where the static layout of c puts it. The field sits in
// the four bytes immediately before the vbase subobject.
func (p *Fn) InitializeVtorDisps(c *layout.Class) {
	l := p.Module.Types.Of(c)
	for _, e := range l.VBaseOffsets() {
		if !e.VtorDisp {
			continue
		}
		static := e.Offset
		off := p.EmitVBaseOffset(p.This, c, e.Class)
		disp := p.TempReg()
		vb := p.TempPtr()
		p.B.ADDI(off, -static, disp)
		p.B.ADDP(p.This, off, vb)
		p.B.SL(disp, vb, -layout.IntSize)
	}
}

// EmitCtorCompleteObjectHandler opens a constructor body. The
// vtordisps are initialized first, on both paths: an intermediate
// base constructor running on behalf of a more derived object needs
// them just as much as the most-derived one. Only then does the
// implicit flag pick the most-derived branch, which stores the vbptrs
// and runs the virtual base constructors before falling through to
// the shared body. Returns after the shared body must go through
// EmitThisReturn.
func (p *Fn) EmitCtorCompleteObjectHandler(c *layout.Class, initVBases func(*Fn)) {
	if !CtorHasMostDerivedParam(c) {
		p.B.LDAP(0, p.This)
		return
	}
	p.LoadStructorImplicitParam()
	p.InitializeVtorDisps(c)
	p.B.Next()
	p.B.BEQ(p.Implicit, hir.Rz, "_skip_vbases_{n}")
	p.EmitVBPtrStores(c)
	if initVBases != nil {
		initVBases(p)
	}
	p.B.Label("_skip_vbases_{n}")
}

// EmitThisReturn writes the receiver into return slot 0, the
// structor calling convention hands the object pointer back.
func (p *Fn) EmitThisReturn() {
	p.B.STRP(p.This, 0)
	p.B.RET().R0(p.This)
}

// EmitConstructorCall calls the single emitted constructor of c on
// obj. mostDerived picks whether the callee initializes the virtual
// bases, base subobject construction passes false.
func (p *Fn) EmitConstructorCall(obj hir.PointerRegister, c *layout.Class, mostDerived bool) {
	sym := p.Module.Names.Ctor(c)
	if !CtorHasMostDerivedParam(c) {
		p.B.CALL(sym).A0(obj)
		return
	}
	flag := p.TempReg()
	if mostDerived {
		p.B.IL(1, flag)
	} else {
		p.B.IL(0, flag)
	}
	p.B.CALL(sym).A0(obj).A1(flag)
}

// EmitCompleteDestructorBody synthesizes the complete variant as a
// forwarding body: run the base variant on the receiver, then destroy
// the virtual bases in reverse construction order.
func (p *Fn) EmitCompleteDestructorBody(c *layout.Class) {
	p.B.LDAP(0, p.This)
	p.B.CALL(p.Module.Names.Dtor(c, layout.StructorBase)).A0(p.This)
	vbases := c.VBases()
	for i := len(vbases) - 1; i >= 0; i-- {
		v := vbases[i]
		if v.Dtor() == nil {
			continue
		}
		l := p.Module.Types.Of(c)
		vb := p.displace(p.This, l.VBaseOffset(v))
		p.B.CALL(p.Module.Names.Dtor(v, layout.StructorBase)).A0(vb)
	}
	p.B.RET()
}

// EmitDeletingDestructorBody synthesizes the deleting variant: tear
// the object down via the complete variant, then free the storage
// when bit 0 of the implicit flags is set. Bit 1 marks array
// deallocation, the element count comes out of the array cookie and
// the freed pointer backs up over it, the allocation starts at the
// cookie rather than at the first element.
func (p *Fn) EmitDeletingDestructorBody(c *layout.Class, freeSym string) {
	p.LoadStructorImplicitParam()
	complete := p.Module.Names.Dtor(c, layout.StructorComplete)
	alloc := p.TempPtr()

	arrayBit := p.TempReg()
	p.B.Next()
	p.B.ANDI(p.Implicit, DtorScalarVsArray, arrayBit)
	p.B.BNE(arrayBit, hir.Rz, "_dtor_array_{n}")

	/* scalar delete */
	p.B.MOVP(p.This, alloc)
	p.B.CALL(complete).A0(p.This)
	p.B.JMP("_dtor_free_{n}")

	/* array delete */
	p.B.Label("_dtor_array_{n}")
	p.B.ADDPI(p.This, -p.Module.ArrayCookieSize(c), alloc)
	p.emitArrayDestruction(c, complete)

	p.B.Label("_dtor_free_{n}")
	freeBit := p.TempReg()
	p.B.ANDI(p.Implicit, DtorShouldDelete, freeBit)
	p.B.BEQ(freeBit, hir.Rz, "_dtor_done_{n}")
	p.B.CALL(freeSym).A0(alloc)
	p.B.Label("_dtor_done_{n}")
	p.B.RET()
}

// emitArrayDestruction walks the elements in reverse, the last
// constructed element is destroyed first.
func (p *Fn) emitArrayDestruction(c *layout.Class, dtorSym string) {
	l := p.Module.Types.Of(c)
	n := p.TempReg()
	i := p.TempReg()
	sz := p.TempReg()
	end := p.TempReg()
	cur := p.TempPtr()

	p.ReadArrayCookie(p.This, c, n)
	p.B.MOV(n, i)
	p.B.IL(l.Size, sz)
	p.B.MULI(n, l.Size, end)
	p.B.ADDP(p.This, end, cur)

	p.B.Label("_dtor_loop_{n}")
	p.B.BEQ(i, hir.Rz, "_dtor_loop_end_{n}")
	p.B.SUBP(cur, sz, cur)
	p.B.CALL(dtorSym).A0(cur)
	p.B.ADDI(i, -1, i)
	p.B.JMP("_dtor_loop_{n}")
	p.B.Label("_dtor_loop_end_{n}")
}

// NeedsArrayCookie reports whether new[] allocations of c prepend an
// element count. Only destructible elements need one, the deleting
// destructor has to know how many elements to tear down.
func NeedsArrayCookie(c *layout.Class) bool {
	return c.Dtor() != nil
}

// ArrayCookieSize is the byte size of the cookie: one size_t, padded
// up to the element alignment so the first element stays aligned.
func (m *Module) ArrayCookieSize(c *layout.Class) int64 {
	l := m.Types.Of(c)
	sz := int64(layout.PtrSize)
	if l.Align > sz {
		sz = l.Align
	}
	return sz
}

// InitializeArrayCookie stores the element count at the start of a
// new[] allocation and returns the pointer to the first element.
func (p *Fn) InitializeArrayCookie(alloc hir.PointerRegister, count hir.GenericRegister, c *layout.Class) hir.PointerRegister {
	if !NeedsArrayCookie(c) {
		return alloc
	}
	p.B.SL(count, alloc, 0)
	return p.displace(alloc, p.Module.ArrayCookieSize(c))
}

// ReadArrayCookie loads the element count of an array whose first
// element is at obj. The cookie sits immediately before it.
func (p *Fn) ReadArrayCookie(obj hir.PointerRegister, c *layout.Class, out hir.GenericRegister) {
	p.B.LL(obj, -p.Module.ArrayCookieSize(c), out)
}

// EmitVirtualDestructorCall dispatches through the single destructor
// vftable slot, which always holds the deleting variant. flags selects
// whether the callee frees the storage.
func (p *Fn) EmitVirtualDestructorCall(obj hir.PointerRegister, c *layout.Class, flags int64) {
	d := c.Dtor()
	this := p.EmitThisForVirtualCall(obj, c, d)
	fn := p.EmitVirtualFunctionPointer(this, d)
	fl := p.TempReg()
	p.B.IL(flags, fl)
	p.B.CALLP(fn).A0(this).A1(fl)
}
