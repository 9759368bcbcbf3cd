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
    `strconv`
    `strings`
)

type Builder struct {
    i     int
    head  *Instr
    tail  *Instr
    refs  map[string]*Instr
    pends map[string][]*Instr
}

func CreateBuilder() *Builder {
    return newBuilder()
}

func (self *Builder) add(ins *Instr) *Instr {
    self.push(ins)
    return ins
}

func (self *Builder) jmp(p *Instr, to string) *Instr {
    var ok bool
    var lb *Instr

    /* placeholder substitution */
    if strings.Contains(to, "{n}") {
        to = strings.ReplaceAll(to, "{n}", strconv.Itoa(self.i))
    }

    /* check for backward jumps */
    if lb, ok = self.refs[to]; !ok {
        self.pends[to] = append(self.pends[to], p)
    }

    /* add to instruction buffer */
    p.Br = lb
    return self.add(p)
}

func (self *Builder) push(ins *Instr) {
    if self.head == nil {
        self.head = ins
        self.tail = ins
    } else {
        self.tail.Ln = ins
        self.tail    = ins
    }
}

// Next bumps the label placeholder counter, scoping every "{n}" that
// follows to a fresh lexical region.
func (self *Builder) Next() {
    self.i++
}

func (self *Builder) Label(to string) {
    var p *Instr
    var v []*Instr

    /* placeholder substitution */
    if strings.Contains(to, "{n}") {
        to = strings.ReplaceAll(to, "{n}", strconv.Itoa(self.i))
    }

    /* check for duplications */
    if _, ok := self.refs[to]; ok {
        panic("label " + to + " has already been linked")
    }

    /* get the pending links */
    p = self.NOP()
    v = self.pends[to]

    /* patch all the pending jumps */
    for _, q := range v {
        q.Br = p
    }

    /* mark the label as resolved */
    self.refs[to] = p
    delete(self.pends, to)
}

func (self *Builder) Build() (r Program) {
    var n int
    var p *Instr
    var q *Instr

    /* check for unresolved labels */
    for key := range self.pends {
        panic("labels are not fully resolved: " + key)
    }

    /* adjust jumps to point at actual instructions */
    for p = self.head; p != nil; p = p.Ln {
        if p.isBranch() {
            for p.Br.Ln != nil && p.Br.Op == OP_nop {
                p.Br = p.Br.Ln
            }
        }
    }

    /* remove NOPs at the front */
    for self.head != nil && self.head.Op == OP_nop {
        self.head = self.head.Ln
    }

    /* no instructions left, the program was composed entirely by NOPs */
    if self.head == nil {
        self.tail = nil
        return
    }

    /* remove all the NOPs, there should be no jumps pointing to any NOPs */
    for p = self.head; p != nil; p, n = p.Ln, n + 1 {
        for p.Ln != nil && p.Ln.Op == OP_nop {
            q = p.Ln
            p.Ln = q.Ln
            freeInstr(q)
        }
    }

    /* the Builder's life-time ends here */
    r = Program{Head: self.head}
    freeBuilder(self)
    return
}

func (self *Builder) NOP() *Instr {
    return self.add(newInstr(OP_nop))
}

func (self *Builder) IL(v int64, rx GenericRegister) *Instr {
    return self.add(newInstr(OP_il).iv(v).rx(rx))
}

func (self *Builder) IG(sym string, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_ig).sym(sym).pd(pd))
}

func (self *Builder) LL(ps PointerRegister, off int64, rx GenericRegister) *Instr {
    return self.add(newInstr(OP_ll).ps(ps).iv(off).rx(rx))
}

func (self *Builder) LP(ps PointerRegister, off int64, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_lp).ps(ps).iv(off).pd(pd))
}

func (self *Builder) SL(rx GenericRegister, pd PointerRegister, off int64) *Instr {
    return self.add(newInstr(OP_sl).rx(rx).pd(pd).iv(off))
}

func (self *Builder) SP(ps PointerRegister, pd PointerRegister, off int64) *Instr {
    return self.add(newInstr(OP_sp).ps(ps).pd(pd).iv(off))
}

func (self *Builder) MOV(rx GenericRegister, ry GenericRegister) *Instr {
    return self.add(newInstr(OP_mov).rx(rx).ry(ry))
}

func (self *Builder) MOVP(ps PointerRegister, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_movp).ps(ps).pd(pd))
}

func (self *Builder) LDAQ(id int, rx GenericRegister) *Instr {
    return self.add(newInstr(OP_ldaq).iv(int64(id)).rx(rx))
}

func (self *Builder) LDAP(id int, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_ldap).iv(int64(id)).pd(pd))
}

func (self *Builder) STRP(ps PointerRegister, id int) *Instr {
    return self.add(newInstr(OP_strp).ps(ps).iv(int64(id)))
}

func (self *Builder) ADDP(ps PointerRegister, rx GenericRegister, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_addp).ps(ps).rx(rx).pd(pd))
}

func (self *Builder) SUBP(ps PointerRegister, rx GenericRegister, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_subp).ps(ps).rx(rx).pd(pd))
}

func (self *Builder) ADDPI(ps PointerRegister, off int64, pd PointerRegister) *Instr {
    return self.add(newInstr(OP_addpi).ps(ps).iv(off).pd(pd))
}

func (self *Builder) ADD(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_add).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SUB(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_sub).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) ADDI(rx GenericRegister, v int64, ry GenericRegister) *Instr {
    return self.add(newInstr(OP_addi).rx(rx).iv(v).ry(ry))
}

func (self *Builder) MULI(rx GenericRegister, v int64, ry GenericRegister) *Instr {
    return self.add(newInstr(OP_muli).rx(rx).iv(v).ry(ry))
}

func (self *Builder) ANDI(rx GenericRegister, v int64, ry GenericRegister) *Instr {
    return self.add(newInstr(OP_andi).rx(rx).iv(v).ry(ry))
}

func (self *Builder) ORI(rx GenericRegister, v int64, ry GenericRegister) *Instr {
    return self.add(newInstr(OP_ori).rx(rx).iv(v).ry(ry))
}

func (self *Builder) SEQ(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_seq).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SNE(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_sne).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SEQP(ps PointerRegister, pd PointerRegister, rx GenericRegister) *Instr {
    return self.add(newInstr(OP_seqp).ps(ps).pd(pd).rx(rx))
}

func (self *Builder) SNEP(ps PointerRegister, pd PointerRegister, rx GenericRegister) *Instr {
    return self.add(newInstr(OP_snep).ps(ps).pd(pd).rx(rx))
}

func (self *Builder) AND(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_and).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) OR(rx GenericRegister, ry GenericRegister, rz GenericRegister) *Instr {
    return self.add(newInstr(OP_or).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) BEQ(rx GenericRegister, ry GenericRegister, to string) *Instr {
    return self.jmp(newInstr(OP_beq).rx(rx).ry(ry), to)
}

func (self *Builder) BNE(rx GenericRegister, ry GenericRegister, to string) *Instr {
    return self.jmp(newInstr(OP_bne).rx(rx).ry(ry), to)
}

func (self *Builder) BEQN(ps PointerRegister, to string) *Instr {
    return self.jmp(newInstr(OP_beqn).ps(ps), to)
}

func (self *Builder) BNEN(ps PointerRegister, to string) *Instr {
    return self.jmp(newInstr(OP_bnen).ps(ps), to)
}

func (self *Builder) JMP(to string) *Instr {
    return self.jmp(newInstr(OP_jmp), to)
}

func (self *Builder) CALL(sym string) *Instr {
    return self.add(newInstr(OP_call).sym(sym))
}

func (self *Builder) CALLP(ps PointerRegister) *Instr {
    return self.add(newInstr(OP_callp).ps(ps))
}

func (self *Builder) RET() *Instr {
    return self.add(newInstr(OP_ret))
}
