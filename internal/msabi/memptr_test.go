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
	"testing"

	"github.com/cloudwego/cxxabi/internal/layout"
	"github.com/stretchr/testify/require"
)

func TestMemPtrModelFields(t *testing.T) {
	single := layout.NewClass("S")
	multi := layout.NewClass("M", layout.Base{Class: layout.NewClass("A")}, layout.Base{Class: layout.NewClass("B")})
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})
	unspec := layout.NewClass("U")
	unspec.Incomplete = true

	/* function member pointers */
	require.True(t, MemPtrModel{Class: single, Func: true}.HasOnlyOneField())
	require.True(t, MemPtrModel{Class: multi, Func: true}.HasNVAdjustmentField())
	require.False(t, MemPtrModel{Class: multi, Func: true}.HasVBAdjustmentField())
	require.True(t, MemPtrModel{Class: virt, Func: true}.HasVBAdjustmentField())
	require.True(t, MemPtrModel{Class: unspec, Func: true}.HasVBPtrOffsetField())

	/* data member pointers stay compact longer */
	require.True(t, MemPtrModel{Class: multi}.HasOnlyOneField())
	require.False(t, MemPtrModel{Class: multi}.HasNVAdjustmentField())
	require.True(t, MemPtrModel{Class: virt}.HasVBAdjustmentField())
	require.True(t, MemPtrModel{Class: unspec}.HasNVAdjustmentField())
}

func TestMemPtrModelSize(t *testing.T) {
	single := layout.NewClass("S")
	unspec := layout.NewClass("U")
	unspec.Incomplete = true

	require.Equal(t, int64(4), MemPtrModel{Class: single}.Size())
	require.Equal(t, int64(8), MemPtrModel{Class: single, Func: true}.Size())
	require.Equal(t, int64(16), MemPtrModel{Class: unspec}.Size())
	require.Equal(t, int64(20), MemPtrModel{Class: unspec, Func: true}.Size())
}

func TestNullMemPtr(t *testing.T) {
	plain := layout.NewClass("P")
	poly := layout.NewClass("Q")
	poly.AddMethod(vmethod("f"))
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})

	/* plain data: 0 would be a valid field offset, null is all-ones */
	d := MemPtrModel{Class: plain}
	require.Equal(t, int64(-1), NullMemPtr(d).FieldOffset)
	require.False(t, d.IsZeroInitializable())

	/* polymorphic data: offset 0 is the vfptr, 0 can mean null */
	dp := MemPtrModel{Class: poly}
	require.Equal(t, int64(0), NullMemPtr(dp).FieldOffset)
	require.True(t, dp.IsZeroInitializable())

	/* multi-field data representations disambiguate with the extra fields,
	 * but the vbtable displacement of null is -1, so zero storage is not null */
	dv := MemPtrModel{Class: virt}
	require.Equal(t, int64(0), NullMemPtr(dv).FieldOffset)
	require.Equal(t, int32(-1), NullMemPtr(dv).VBAdj)
	require.False(t, dv.IsZeroInitializable())

	/* function null is always a null function field */
	f := MemPtrModel{Class: plain, Func: true}
	require.Equal(t, "", NullMemPtr(f).Fn)
	require.True(t, f.IsZeroInitializable())
}

func TestMemPtrIsNull(t *testing.T) {
	plain := layout.NewClass("P")
	d := MemPtrModel{Class: plain}
	m := newTestModule()

	require.True(t, MemPtrIsNull(d, NullMemPtr(d)))
	require.False(t, MemPtrIsNull(d, m.DataMemPtr(d, 0)), "offset 0 is a real member of a plain class")
	require.False(t, MemPtrIsNull(d, m.DataMemPtr(d, 8)))

	poly := layout.NewClass("Q")
	poly.AddMethod(vmethod("f"))
	dp := MemPtrModel{Class: poly}
	require.True(t, MemPtrIsNull(dp, NullMemPtr(dp)))
	require.False(t, MemPtrIsNull(dp, m.DataMemPtr(dp, 8)))

	/* a zero field offset alone is not null once more fields exist */
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})
	dv := MemPtrModel{Class: virt}
	require.True(t, MemPtrIsNull(dv, NullMemPtr(dv)))
	require.False(t, MemPtrIsNull(dv, m.DataMemPtr(dv, 0)), "offset 0 with a zero vbtable displacement names a real member")
}

func TestFuncMemPtr(t *testing.T) {
	a := layout.NewClass("A")
	f := &layout.Method{Name: "f"}
	a.AddMethod(f)
	b := layout.NewClass("B")
	g := &layout.Method{Name: "g"}
	b.AddMethod(g)
	d := layout.NewClass("D", layout.Base{Class: a}, layout.Base{Class: b})

	m := newTestModule()
	dm := MemPtrModel{Class: d, Func: true}

	v := m.FuncMemPtr(dm, f)
	require.Equal(t, int32(0), v.NVAdj)

	v = m.FuncMemPtr(dm, g)
	require.Equal(t, int32(1), v.NVAdj, "members of the second base need the subobject displacement")
	require.False(t, MemPtrIsNull(dm, v))
}

func TestFuncMemPtrVirtualUnsupported(t *testing.T) {
	a := layout.NewClass("A")
	f := a.AddMethod(vmethod("f"))

	m := newTestModule()
	dm := MemPtrModel{Class: a, Func: true}
	v := m.FuncMemPtr(dm, f)
	require.True(t, MemPtrIsNull(dm, v))
	require.Equal(t, 1, len(m.Diagnostics()))
	require.IsType(t, &UnsupportedError{}, m.Diagnostics()[0])
}

func TestConvertMemPtrDerivedToBase(t *testing.T) {
	a := layout.NewClass("A")
	a.Fields = []layout.Field{{Name: "x", Size: 4, Align: 4}}
	b := layout.NewClass("B")
	b.Fields = []layout.Field{{Name: "y", Size: 4, Align: 4}}
	d := layout.NewClass("D", layout.Base{Class: a}, layout.Base{Class: b})

	m := newTestModule()
	bm := MemPtrModel{Class: b}
	dm := MemPtrModel{Class: d}

	/* &B::y seen as a member of D shifts by B's subobject offset */
	v := m.ConvertMemPtr(m.DataMemPtr(bm, 0), bm, dm)
	require.Equal(t, m.Types.Of(d).BaseOffset(b), v.FieldOffset)

	/* null converts to null whatever the displacement */
	n := m.ConvertMemPtr(NullMemPtr(bm), bm, dm)
	require.True(t, MemPtrIsNull(dm, n))
}

func TestConvertMemPtrRoundTrip(t *testing.T) {
	a := layout.NewClass("A")
	a.Fields = []layout.Field{{Name: "x", Size: 4, Align: 4}}
	b := layout.NewClass("B")
	b.Fields = []layout.Field{{Name: "y", Size: 4, Align: 4}}
	d := layout.NewClass("D", layout.Base{Class: a}, layout.Base{Class: b})

	m := newTestModule()
	bm := MemPtrModel{Class: b}
	dm := MemPtrModel{Class: d}

	orig := m.DataMemPtr(bm, 0)
	down := m.ConvertMemPtr(orig, bm, dm)
	back := m.ConvertMemPtr(down, dm, bm)
	require.Equal(t, orig.FieldOffset, back.FieldOffset)
	require.Empty(t, m.Diagnostics())
}

func TestConvertMemPtrUnspecifiedData(t *testing.T) {
	a := layout.NewClass("A")
	a.Fields = []layout.Field{{Name: "p", Size: 8, Align: 8}}
	b := layout.NewClass("B")
	b.Fields = []layout.Field{{Name: "x", Size: 4, Align: 4}}
	d := layout.NewClass("D", layout.Base{Class: a}, layout.Base{Class: b})
	d.Incomplete = true

	m := newTestModule()
	bm := MemPtrModel{Class: b}
	dm := MemPtrModel{Class: d}
	require.True(t, dm.HasNVAdjustmentField())

	/* data conversions fold the displacement into the field offset,
	 * the this-adjustment slot is for function pointers only */
	v := m.ConvertMemPtr(m.DataMemPtr(bm, 0), bm, dm)
	require.Equal(t, m.Types.Of(d).BaseOffset(b), v.FieldOffset)
	require.Equal(t, int32(0), v.NVAdj)

	back := m.ConvertMemPtr(v, dm, bm)
	require.Equal(t, int64(0), back.FieldOffset)
	require.Empty(t, m.Diagnostics())
}

func TestConvertMemPtrAcrossVBase(t *testing.T) {
	v := layout.NewClass("V")
	v.Fields = []layout.Field{{Name: "x", Size: 4, Align: 4}}
	c := layout.NewClass("C", layout.Base{Class: v, Virtual: true})

	m := newTestModule()
	vm := MemPtrModel{Class: v}
	cm := MemPtrModel{Class: c}

	out := m.ConvertMemPtr(m.DataMemPtr(vm, 0), vm, cm)
	require.True(t, MemPtrIsNull(cm, out), "vbase-crossing conversions degrade to null")
	require.NotEmpty(t, m.Diagnostics())
}

func TestEmitMemPtrIsNotNull(t *testing.T) {
	plain := layout.NewClass("P")
	d := MemPtrModel{Class: plain}

	m := newTestModule()
	p := m.NewFn(nil)
	mp := p.EmitLoadMemPtr(d, m.DataMemPtr(d, 8))
	p.EmitMemPtrIsNotNull(d, mp)
	p.B.RET()
	prog := p.Finish()
	defer prog.Free()

	s := prog.Disassemble()
	require.Contains(t, s, "il      $-1", "all-ones is the null to compare against")
	require.Contains(t, s, "sne")
}

func TestEmitMemPtrIsNotNullMultiField(t *testing.T) {
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})
	d := MemPtrModel{Class: virt}

	m := newTestModule()
	m.Types.Of(virt)
	p := m.NewFn(nil)
	mp := p.EmitLoadMemPtr(d, m.DataMemPtr(d, 0))
	p.EmitMemPtrIsNotNull(d, mp)
	p.B.RET()
	prog := p.Finish()
	defer prog.Free()

	s := prog.Disassemble()
	require.Contains(t, s, "il      $-1", "the vbtable displacement of null is -1")
	require.Contains(t, s, "and", "every present field takes part in the null test")
}

func TestEmitMemPtrDataAddress(t *testing.T) {
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})
	d := MemPtrModel{Class: virt}

	m := newTestModule()
	m.Types.Of(virt)
	p := m.NewFn(nil)
	p.B.LDAP(0, p.This)
	mp := p.EmitLoadMemPtr(d, m.DataMemPtr(d, 4))
	p.EmitMemPtrDataAddress(p.This, d, mp)
	p.B.RET()
	prog := p.Finish()
	defer prog.Free()

	s := prog.Disassemble()
	require.Contains(t, s, "lp", "the hop goes through the vbtable")
	require.Contains(t, s, "beq", "a zero displacement skips the hop")
}

func TestEmitMemPtrComparison(t *testing.T) {
	virt := layout.NewClass("V", layout.Base{Class: layout.NewClass("X"), Virtual: true})
	d := MemPtrModel{Class: virt, Func: true}

	m := newTestModule()
	p := m.NewFn(nil)
	l := p.EmitLoadMemPtr(d, NullMemPtr(d))
	r := p.EmitLoadMemPtr(d, NullMemPtr(d))
	p.EmitMemPtrComparison(d, l, r, true)
	p.B.RET()
	prog := p.Finish()
	defer prog.Free()

	s := prog.Disassemble()
	require.Contains(t, s, "seq")
	require.Contains(t, s, "and")
	require.Contains(t, s, "or", "null equality ignores the trailing fields")
}
