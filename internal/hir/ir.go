/*
 * Copyright 2022 ByteDance Inc.
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

package hir

import (
    `fmt`
    `strings`
)

type OpCode byte

const (
    OP_nop OpCode = iota    // no operation
    OP_il                   // i32(Iv) -> Rx
    OP_ig                   // &global[Sym] -> Pd
    OP_ll                   // *(*i32)(Ps + Iv) -> Rx
    OP_lp                   //     *(*ptr)(Ps + Iv) -> Pd
    OP_sl                   // i32(Rx) -> *(*i32)(Pd + Iv)
    OP_sp                   //     Ps  -> *(*ptr)(Pd + Iv)
    OP_mov                  // Rx -> Ry
    OP_movp                 // Ps -> Pd
    OP_ldaq                 // arg[Iv] -> Rx
    OP_ldap                 // arg[Iv] -> Pd
    OP_strp                 // Ps -> ret[Iv]
    OP_addp                 // Ps + Rx -> Pd
    OP_subp                 // Ps - Rx -> Pd
    OP_addpi                // Ps + Iv -> Pd
    OP_add                  // Rx + Ry -> Rz
    OP_sub                  // Rx - Ry -> Rz
    OP_addi                 // Rx + Iv -> Ry
    OP_muli                 // Rx * Iv -> Ry
    OP_andi                 // Rx & Iv -> Ry
    OP_ori                  // Rx | Iv -> Ry
    OP_seq                  // (Rx == Ry) -> Rz
    OP_sne                  // (Rx != Ry) -> Rz
    OP_seqp                 // (Ps == Pd) -> Rx
    OP_snep                 // (Ps != Pd) -> Rx
    OP_and                  // Rx & Ry -> Rz
    OP_or                   // Rx | Ry -> Rz
    OP_beq                  // if (Rx == Ry) Br -> PC
    OP_bne                  // if (Rx != Ry) Br -> PC
    OP_beqn                 // if (Ps == nil) Br -> PC
    OP_bnen                 // if (Ps != nil) Br -> PC
    OP_jmp                  // Br -> PC
    OP_call                 // call global[Sym], args Ar, rets Rr
    OP_callp                // call *Ps, args Ar, rets Rr
    OP_ret                  // return from the current function
)

type Instr struct {
    Op  OpCode
    Rx  GenericRegister
    Ry  GenericRegister
    Rz  GenericRegister
    Ps  PointerRegister
    Pd  PointerRegister
    An  uint8
    Rn  uint8
    Ar  [8]uint8
    Rr  [8]uint8
    Iv  int64
    Sym string
    Br  *Instr
    Ln  *Instr
}

func (self *Instr) iv(v int64)           *Instr { self.Iv = v; return self }
func (self *Instr) sym(v string)         *Instr { self.Sym = v; return self }
func (self *Instr) rx(v GenericRegister) *Instr { self.Rx = v; return self }
func (self *Instr) ry(v GenericRegister) *Instr { self.Ry = v; return self }
func (self *Instr) rz(v GenericRegister) *Instr { self.Rz = v; return self }
func (self *Instr) ps(v PointerRegister) *Instr { self.Ps = v; return self }
func (self *Instr) pd(v PointerRegister) *Instr { self.Pd = v; return self }

func (self *Instr) A0(v Register) *Instr { self.An, self.Ar[0] = 1, v.A(); return self }
func (self *Instr) A1(v Register) *Instr { self.An, self.Ar[1] = 2, v.A(); return self }
func (self *Instr) A2(v Register) *Instr { self.An, self.Ar[2] = 3, v.A(); return self }
func (self *Instr) A3(v Register) *Instr { self.An, self.Ar[3] = 4, v.A(); return self }

func (self *Instr) R0(v Register) *Instr { self.Rn, self.Rr[0] = 1, v.A(); return self }
func (self *Instr) R1(v Register) *Instr { self.Rn, self.Rr[1] = 2, v.A(); return self }

func (self *Instr) Args(vv []Register) *Instr {
    if len(vv) > len(self.Ar) {
        panic("too many call arguments")
    }
    for i, v := range vv {
        self.Ar[i] = v.A()
    }
    self.An = uint8(len(vv))
    return self
}

func (self *Instr) isBranch() bool {
    return self.Op >= OP_beq && self.Op <= OP_jmp
}

func (self *Instr) formatCalls() string {
    args := make([]string, self.An)
    rets := make([]string, self.Rn)

    /* add arguments */
    for i := uint8(0); i < self.An; i++ {
        if v := self.Ar[i]; (v & ArgPointer) == 0 {
            args[i] = "%" + GenericRegister(v & ArgMask).String()
        } else {
            args[i] = "%" + PointerRegister(v & ArgMask).String()
        }
    }

    /* add return values */
    for i := uint8(0); i < self.Rn; i++ {
        if v := self.Rr[i]; (v & ArgPointer) == 0 {
            rets[i] = "%" + GenericRegister(v & ArgMask).String()
        } else {
            rets[i] = "%" + PointerRegister(v & ArgMask).String()
        }
    }

    /* compose the result */
    return fmt.Sprintf(
        "{%s}, {%s}",
        strings.Join(args, ", "),
        strings.Join(rets, ", "),
    )
}

func (self *Instr) disassemble(refs map[*Instr]string) string {
    switch self.Op {
        case OP_nop   : return "nop"
        case OP_il    : return fmt.Sprintf("il      $%d, %%%s", self.Iv, self.Rx)
        case OP_ig    : return fmt.Sprintf("ig      $%s, %%%s", self.Sym, self.Pd)
        case OP_ll    : return fmt.Sprintf("ll      %d(%%%s), %%%s", self.Iv, self.Ps, self.Rx)
        case OP_lp    : return fmt.Sprintf("lp      %d(%%%s), %%%s", self.Iv, self.Ps, self.Pd)
        case OP_sl    : return fmt.Sprintf("sl      %%%s, %d(%%%s)", self.Rx, self.Iv, self.Pd)
        case OP_sp    : return fmt.Sprintf("sp      %%%s, %d(%%%s)", self.Ps, self.Iv, self.Pd)
        case OP_mov   : return fmt.Sprintf("mov     %%%s, %%%s", self.Rx, self.Ry)
        case OP_movp  : return fmt.Sprintf("mov     %%%s, %%%s", self.Ps, self.Pd)
        case OP_ldaq  : return fmt.Sprintf("lda     $%d, %%%s", self.Iv, self.Rx)
        case OP_ldap  : return fmt.Sprintf("lda     $%d, %%%s", self.Iv, self.Pd)
        case OP_strp  : return fmt.Sprintf("str     %%%s, $%d", self.Ps, self.Iv)
        case OP_addp  : return fmt.Sprintf("add     %%%s, %%%s, %%%s", self.Ps, self.Rx, self.Pd)
        case OP_subp  : return fmt.Sprintf("sub     %%%s, %%%s, %%%s", self.Ps, self.Rx, self.Pd)
        case OP_addpi : return fmt.Sprintf("add     %%%s, %d, %%%s", self.Ps, self.Iv, self.Pd)
        case OP_add   : return fmt.Sprintf("add     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_sub   : return fmt.Sprintf("sub     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_addi  : return fmt.Sprintf("add     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
        case OP_muli  : return fmt.Sprintf("mul     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
        case OP_andi  : return fmt.Sprintf("and     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
        case OP_ori   : return fmt.Sprintf("or      %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
        case OP_seq   : return fmt.Sprintf("seq     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_sne   : return fmt.Sprintf("sne     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_seqp  : return fmt.Sprintf("seq     %%%s, %%%s, %%%s", self.Ps, self.Pd, self.Rx)
        case OP_snep  : return fmt.Sprintf("sne     %%%s, %%%s, %%%s", self.Ps, self.Pd, self.Rx)
        case OP_and   : return fmt.Sprintf("and     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_or    : return fmt.Sprintf("or      %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
        case OP_beq   : return fmt.Sprintf("beq     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
        case OP_bne   : return fmt.Sprintf("bne     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
        case OP_beqn  : return fmt.Sprintf("beq     %%%s, %%nil, %s", self.Ps, refs[self.Br])
        case OP_bnen  : return fmt.Sprintf("bne     %%%s, %%nil, %s", self.Ps, refs[self.Br])
        case OP_jmp   : return fmt.Sprintf("jmp     %s", refs[self.Br])
        case OP_call  : return fmt.Sprintf("call    $%s, %s", self.Sym, self.formatCalls())
        case OP_callp : return fmt.Sprintf("call    *%%%s, %s", self.Ps, self.formatCalls())
        case OP_ret   : return "ret"
        default       : panic(fmt.Sprintf("invalid OpCode: 0x%02x", self.Op))
    }
}
