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

type Program struct {
    Head *Instr
}

func (self Program) Free() {
    for p, q := self.Head, self.Head; p != nil; p = q {
        q = p.Ln
        freeInstr(p)
    }
}

// Instrs flattens the instruction list, in program order.
func (self Program) Instrs() (r []*Instr) {
    for p := self.Head; p != nil; p = p.Ln {
        r = append(r, p)
    }
    return
}

// Disassemble renders the entire program as pseudo-assembly, one
// instruction per line, with synthesized labels at branch targets.
func (self Program) Disassemble() string {
    ret  := make([]string, 0, 64)
    refs := make(map[*Instr]string)

    /* assign labels to branch targets */
    for p := self.Head; p != nil; p = p.Ln {
        if p.isBranch() && p.Br != nil {
            if _, ok := refs[p.Br]; !ok {
                refs[p.Br] = fmt.Sprintf("L_%d", len(refs))
            }
        }
    }

    /* disassemble each instruction */
    for p := self.Head; p != nil; p = p.Ln {
        if lb, ok := refs[p]; ok {
            ret = append(ret, lb + ":")
        }
        ret = append(ret, "    " + p.disassemble(refs))
    }

    /* join them together */
    return strings.Join(ret, "\n")
}
