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

// MemPtrModel describes the representation of a member pointer type:
// which of the four possible fields it carries, as decided by the
// inheritance shape of the class and whether it points at data or at
// a member function.
type MemPtrModel struct {
	Class *layout.Class
	Func  bool
}

func (d MemPtrModel) shape() layout.Shape {
	return d.Class.Shape()
}

// HasNVAdjustmentField reports the presence of the non-virtual this
// displacement. Function pointers carry it from the multiple shape
// up, data pointers only under the unspecified shape.
func (d MemPtrModel) HasNVAdjustmentField() bool {
	if d.Func {
		return d.shape() >= layout.Multiple
	}
	return d.shape() == layout.Unspecified
}

// HasVBPtrOffsetField is only set under the unspecified shape, where
// not even the vbptr location is known statically.
func (d MemPtrModel) HasVBPtrOffsetField() bool {
	return d.shape() == layout.Unspecified
}

// HasVBAdjustmentField reports the vbtable displacement field, present
// from the virtual shape up.
func (d MemPtrModel) HasVBAdjustmentField() bool {
	return d.shape() >= layout.Virtual
}

// HasOnlyOneField reports the compact single-slot representation.
func (d MemPtrModel) HasOnlyOneField() bool {
	if d.Func {
		return d.shape() == layout.Single
	}
	return d.shape() <= layout.Multiple
}

// NullIsAllOnes reports whether null is encoded as -1 instead of 0.
// Data pointers use 0 for null only when 0 can never be a real field
// offset: a polymorphic class puts its vfptr there, and multi-field
// representations disambiguate through the extra fields. Function
// pointers always null the function slot.
func (d MemPtrModel) NullIsAllOnes() bool {
	if d.Func {
		return false
	}
	return !d.Class.Polymorphic() && d.HasOnlyOneField()
}

// IsZeroInitializable reports whether all-zero storage is a valid
// null member pointer of this model. Function pointers always are,
// nullness only reads the function slot. Data pointers are not when
// null carries a -1, in the field offset or in the vbtable
// displacement field.
func (d MemPtrModel) IsZeroInitializable() bool {
	if d.Func {
		return true
	}
	return !d.HasVBAdjustmentField() && !d.NullIsAllOnes()
}

// Size is the storage footprint of the representation.
func (d MemPtrModel) Size() int64 {
	var n int64
	if d.Func {
		n = layout.PtrSize
	} else {
		n = layout.IntSize
	}
	if d.HasNVAdjustmentField() {
		n += layout.IntSize
	}
	if d.HasVBPtrOffsetField() {
		n += layout.IntSize
	}
	if d.HasVBAdjustmentField() {
		n += layout.IntSize
	}
	return n
}

// MemPtr is a constant member pointer value.
type MemPtr struct {
	FieldOffset int64
	Fn          string
	NVAdj       int32
	VBPtrOffset int32
	VBAdj       int32
	Null        bool
}

// NullMemPtr builds the null constant of a model.
func NullMemPtr(d MemPtrModel) MemPtr {
	v := MemPtr{Null: true}
	if !d.Func && d.NullIsAllOnes() {
		v.FieldOffset = -1
	}
	if d.HasVBAdjustmentField() {
		v.VBAdj = -1
	}
	return v
}

// DataMemPtr builds the constant member pointer to a non-static data
// member at the given offset within the non-virtual part of the
// class.
func (m *Module) DataMemPtr(d MemPtrModel, offset int64) MemPtr {
	v := MemPtr{FieldOffset: offset}
	if d.HasVBPtrOffsetField() {
		v.VBPtrOffset = int32(m.vbptrOffsetOrZero(d.Class))
	}
	return v
}

// FuncMemPtr builds the constant member pointer to a method. Pointers
// to virtual members need vcall thunks, which this implementation
// declines to synthesize: a diagnostic is reported and the null
// constant stands in.
func (m *Module) FuncMemPtr(d MemPtrModel, method *layout.Method) MemPtr {
	if method.Virtual {
		m.Report(&UnsupportedError{What: "pointer to virtual member function " + method.Class.Name + "::" + method.Name})
		return NullMemPtr(d)
	}
	v := MemPtr{Fn: m.Names.Method(method)}
	if d.HasNVAdjustmentField() && method.Class != d.Class {
		l := m.Types.Of(d.Class)
		v.NVAdj = int32(l.BaseOffset(method.Class))
	}
	if d.HasVBPtrOffsetField() {
		v.VBPtrOffset = int32(m.vbptrOffsetOrZero(d.Class))
	}
	return v
}

// MemPtrIsNull evaluates the null test on a constant. Function
// pointers are null when the function slot is, the trailing fields
// can hold garbage. Data pointers must match the null pattern in
// every present field: a zero field offset alone can name a real
// member at offset zero when the model has more than one field.
func MemPtrIsNull(d MemPtrModel, v MemPtr) bool {
	if d.Func {
		return v.Fn == ""
	}
	null := NullMemPtr(d)
	if v.FieldOffset != null.FieldOffset {
		return false
	}
	if d.HasNVAdjustmentField() && v.NVAdj != null.NVAdj {
		return false
	}
	if d.HasVBPtrOffsetField() && v.VBPtrOffset != null.VBPtrOffset {
		return false
	}
	if d.HasVBAdjustmentField() && v.VBAdj != null.VBAdj {
		return false
	}
	return true
}

// ConvertMemPtr reinterprets a constant member pointer of the source
// class as one of the destination class, applying the static
// derived-to-base displacement. Conversions that cross a virtual base
// would need a vbtable lookup baked into the constant, those are
// reported and yield null.
func (m *Module) ConvertMemPtr(v MemPtr, src, dst MemPtrModel) MemPtr {
	if MemPtrIsNull(src, v) {
		return NullMemPtr(dst)
	}
	derived, base := dst.Class, src.Class
	if !derived.DerivesFrom(base) {
		derived, base = src.Class, dst.Class
	}
	if crossesVBase(derived, base) {
		m.Report(&UnsupportedError{What: "member pointer conversion across a virtual base of " + derived.Name})
		return NullMemPtr(dst)
	}

	off, _ := m.Types.NVBaseOffset(derived, base)
	if !dst.Class.DerivesFrom(src.Class) {
		off = -off
	}

	/* data pointers fold the displacement into the field offset even
	 * when the model carries a this-adjustment slot, only function
	 * pointers adjust the receiver separately */
	out := v
	if dst.Func {
		if dst.HasNVAdjustmentField() {
			out.NVAdj = v.NVAdj + int32(off)
		}
	} else {
		out.FieldOffset = v.FieldOffset + off
	}
	if dst.HasVBPtrOffsetField() {
		out.VBPtrOffset = int32(m.vbptrOffsetOrZero(dst.Class))
	}
	if dst.HasVBAdjustmentField() && !src.HasVBAdjustmentField() {
		out.VBAdj = 0
	}
	return out
}

// crossesVBase reports whether the base subobject is only reachable
// from derived through a virtual inheritance edge.
func crossesVBase(derived, base *layout.Class) bool {
	if derived == base {
		return false
	}
	for _, b := range derived.Bases {
		if !b.Virtual && !crossesVBase(b.Class, base) {
			return false
		}
	}
	return true
}

// MemPtrValue is a member pointer held in registers during lowering.
// Absent fields stay as the zero register.
type MemPtrValue struct {
	Field hir.GenericRegister // data offset or function low half
	Fn    hir.PointerRegister // function entry, function pointers only
	NVAdj hir.GenericRegister
	VBPtr hir.GenericRegister
	VBAdj hir.GenericRegister
}

// EmitLoadMemPtr materializes a constant member pointer into
// registers.
func (p *Fn) EmitLoadMemPtr(d MemPtrModel, v MemPtr) MemPtrValue {
	out := MemPtrValue{Field: hir.Rz, Fn: hir.Pn, NVAdj: hir.Rz, VBPtr: hir.Rz, VBAdj: hir.Rz}
	if d.Func {
		if v.Fn != "" {
			out.Fn = p.TempPtr()
			p.B.IG(v.Fn, out.Fn)
		}
	} else {
		out.Field = p.TempReg()
		p.B.IL(v.FieldOffset, out.Field)
	}
	if d.HasNVAdjustmentField() {
		out.NVAdj = p.TempReg()
		p.B.IL(int64(v.NVAdj), out.NVAdj)
	}
	if d.HasVBPtrOffsetField() {
		out.VBPtr = p.TempReg()
		p.B.IL(int64(v.VBPtrOffset), out.VBPtr)
	}
	if d.HasVBAdjustmentField() {
		out.VBAdj = p.TempReg()
		p.B.IL(int64(v.VBAdj), out.VBAdj)
	}
	return out
}

// EmitMemPtrIsNotNull lowers the boolean test of a member pointer.
// Function pointers test the function slot alone, the other fields of
// a null value can hold garbage. Data pointers compare every present
// field against the null pattern and the inequalities are anded,
// matching the constant evaluation.
func (p *Fn) EmitMemPtrIsNotNull(d MemPtrModel, v MemPtrValue) hir.GenericRegister {
	out := p.TempReg()
	if d.Func {
		p.B.SNEP(v.Fn, hir.Pn, out)
		return out
	}
	null := NullMemPtr(d)
	p.emitNotNullPattern(v.Field, null.FieldOffset, out)
	tmp := p.TempReg()
	if d.HasNVAdjustmentField() {
		p.emitNotNullPattern(v.NVAdj, int64(null.NVAdj), tmp)
		p.B.AND(out, tmp, out)
	}
	if d.HasVBPtrOffsetField() {
		p.emitNotNullPattern(v.VBPtr, int64(null.VBPtrOffset), tmp)
		p.B.AND(out, tmp, out)
	}
	if d.HasVBAdjustmentField() {
		p.emitNotNullPattern(v.VBAdj, int64(null.VBAdj), tmp)
		p.B.AND(out, tmp, out)
	}
	return out
}

func (p *Fn) emitNotNullPattern(r hir.GenericRegister, want int64, out hir.GenericRegister) {
	if want == 0 {
		p.B.SNE(r, hir.Rz, out)
		return
	}
	c := p.TempReg()
	p.B.IL(want, c)
	p.B.SNE(r, c, out)
}

// EmitMemPtrComparison lowers equality of two member pointers of the
// same model: the first fields must match and the trailing field
// comparisons are anded in. For function pointers a null first field
// makes the whole value null and the trailing fields are don't-care,
// so their comparison is ored with the null test. Data pointers have
// no such escape, every field participates.
func (p *Fn) EmitMemPtrComparison(d MemPtrModel, l, r MemPtrValue, eq bool) hir.GenericRegister {
	cmp := p.TempReg()
	if d.Func {
		p.B.SEQP(l.Fn, r.Fn, cmp)
	} else {
		p.B.SEQ(l.Field, r.Field, cmp)
	}

	if !d.HasOnlyOneField() {
		rest := p.TempReg()
		tmp := p.TempReg()
		p.B.IL(1, rest)
		if d.HasNVAdjustmentField() {
			p.B.SEQ(l.NVAdj, r.NVAdj, tmp)
			p.B.AND(rest, tmp, rest)
		}
		if d.HasVBPtrOffsetField() {
			p.B.SEQ(l.VBPtr, r.VBPtr, tmp)
			p.B.AND(rest, tmp, rest)
		}
		if d.HasVBAdjustmentField() {
			p.B.SEQ(l.VBAdj, r.VBAdj, tmp)
			p.B.AND(rest, tmp, rest)
		}

		if d.Func {
			isz := p.TempReg()
			p.B.SEQP(l.Fn, hir.Pn, isz)
			p.B.OR(rest, isz, rest)
		}
		p.B.AND(cmp, rest, cmp)
	}

	if !eq {
		p.B.SEQ(cmp, hir.Rz, cmp)
	}
	return cmp
}

// EmitMemPtrConversion lowers a derived-to-base or base-to-derived
// member pointer conversion on a runtime value. Null values pass
// through as the destination's null: the adjustment is branched
// around and the merged result lives in fresh destination registers.
func (p *Fn) EmitMemPtrConversion(v MemPtrValue, src, dst MemPtrModel) MemPtrValue {
	out := MemPtrValue{Field: hir.Rz, Fn: hir.Pn, NVAdj: hir.Rz, VBPtr: hir.Rz, VBAdj: hir.Rz}

	derived, base := dst.Class, src.Class
	if !derived.DerivesFrom(base) {
		derived, base = src.Class, dst.Class
	}
	if crossesVBase(derived, base) {
		p.Module.Report(&UnsupportedError{What: "member pointer conversion across a virtual base of " + derived.Name})
		return p.EmitLoadMemPtr(dst, NullMemPtr(dst))
	}

	off, _ := p.Module.Types.NVBaseOffset(derived, base)
	if !dst.Class.DerivesFrom(src.Class) {
		off = -off
	}

	/* destination registers, preset to the destination null */
	null := NullMemPtr(dst)
	if dst.Func {
		out.Fn = p.TempPtr()
		p.B.MOVP(hir.Pn, out.Fn)
	} else {
		out.Field = p.TempReg()
		p.B.IL(null.FieldOffset, out.Field)
	}
	if dst.HasNVAdjustmentField() {
		out.NVAdj = p.TempReg()
		p.B.IL(int64(null.NVAdj), out.NVAdj)
	}
	if dst.HasVBPtrOffsetField() {
		out.VBPtr = p.TempReg()
		p.B.IL(int64(null.VBPtrOffset), out.VBPtr)
	}
	if dst.HasVBAdjustmentField() {
		out.VBAdj = p.TempReg()
		p.B.IL(int64(null.VBAdj), out.VBAdj)
	}

	nn := p.EmitMemPtrIsNotNull(src, v)
	p.B.Next()
	p.B.BEQ(nn, hir.Rz, "_mpconv_{n}")

	/* non-null: carry the fields over with the displacement applied.
	 * Data pointers fold it into the field offset, function pointers
	 * into the this-adjustment */
	if dst.Func {
		p.B.MOVP(v.Fn, out.Fn)
	} else if off != 0 {
		p.B.ADDI(v.Field, off, out.Field)
	} else {
		p.B.MOV(v.Field, out.Field)
	}
	if dst.HasNVAdjustmentField() {
		if dst.Func {
			p.B.ADDI(v.NVAdj, off, out.NVAdj)
		} else {
			p.B.MOV(v.NVAdj, out.NVAdj)
		}
	}
	if dst.HasVBPtrOffsetField() {
		p.B.IL(p.Module.vbptrOffsetOrZero(dst.Class), out.VBPtr)
	}
	if dst.HasVBAdjustmentField() {
		if src.HasVBAdjustmentField() {
			p.B.MOV(v.VBAdj, out.VBAdj)
		} else {
			p.B.IL(0, out.VBAdj)
		}
	}
	p.B.Label("_mpconv_{n}")
	return out
}

// EmitMemPtrDataAddress lowers obj->*mp for a data member pointer:
// hop through the vbtable when the representation carries a vbtable
// displacement, then add the field offset.
func (p *Fn) EmitMemPtrDataAddress(obj hir.PointerRegister, d MemPtrModel, v MemPtrValue) hir.PointerRegister {
	cur := obj
	if d.HasVBAdjustmentField() {
		cur = p.emitMemPtrVBaseHop(cur, d, v)
	}
	out := p.TempPtr()
	p.B.ADDP(cur, v.Field, out)
	return out
}

// EmitMemPtrFunctionCall lowers (obj->*mp)(...): adjust the receiver
// by the vbtable and non-virtual displacements, then call through the
// function field.
func (p *Fn) EmitMemPtrFunctionCall(obj hir.PointerRegister, d MemPtrModel, v MemPtrValue) {
	cur := obj
	if d.HasVBAdjustmentField() {
		cur = p.emitMemPtrVBaseHop(cur, d, v)
	}
	if d.HasNVAdjustmentField() {
		nxt := p.TempPtr()
		p.B.ADDP(cur, v.NVAdj, nxt)
		cur = nxt
	}
	p.B.CALLP(v.Fn).A0(cur)
}

// emitMemPtrVBaseHop applies the virtual displacement of a member
// pointer: read the vbtable entry at the carried offset and add it
// together with the vbptr offset. A zero displacement means the
// member does not sit behind a vbptr and the object may not even
// carry one, that branch leaves the pointer alone.
func (p *Fn) emitMemPtrVBaseHop(obj hir.PointerRegister, d MemPtrModel, v MemPtrValue) hir.PointerRegister {
	vbptr := v.VBPtr
	if !d.HasVBPtrOffsetField() {
		vbptr = p.TempReg()
		p.B.IL(p.Module.vbptrOffsetOrZero(d.Class), vbptr)
	}

	out := p.TempPtr()
	p.B.Next()
	p.B.MOVP(obj, out)
	p.B.BEQ(v.VBAdj, hir.Rz, "_mphop_{n}")

	base := p.TempPtr()
	vbt := p.TempPtr()
	off := p.TempReg()
	p.B.ADDP(obj, vbptr, base)
	p.B.LP(base, 0, vbt)
	p.B.ADDP(vbt, v.VBAdj, vbt)
	p.B.LL(vbt, 0, off)
	p.B.ADDP(base, off, out)
	p.B.Label("_mphop_{n}")
	return out
}
