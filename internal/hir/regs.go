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
    `strconv`
)

const (
    ArgMask    = 0x7f
    ArgGeneric = 0x00
    ArgPointer = 0x80
)

type Register interface {
    fmt.Stringer
    A() uint8
    Z() bool
}

type (
    GenericRegister uint8
    PointerRegister uint8
)

const (
    R0 GenericRegister = iota
    R1
    R2
    R3
    R4
    R5
    R6
    R7
    R8
    R9
    R10
    R11
    R12
    R13
    R14
    R15
    Rz      // zero register, reads as zero, writes are discarded
)

const (
    P0 PointerRegister = iota
    P1
    P2
    P3
    P4
    P5
    P6
    P7
    P8
    P9
    P10
    P11
    P12
    P13
    P14
    P15
    Pn      // nil register, reads as nil, writes are discarded
)

func (self GenericRegister) A() uint8 { return uint8(self) | ArgGeneric }
func (self PointerRegister) A() uint8 { return uint8(self) | ArgPointer }

func (self GenericRegister) Z() bool { return self == Rz }
func (self PointerRegister) Z() bool { return self == Pn }

func (self GenericRegister) String() string {
    if self == Rz {
        return "z"
    } else {
        return "r" + strconv.Itoa(int(self))
    }
}

func (self PointerRegister) String() string {
    if self == Pn {
        return "nil"
    } else {
        return "p" + strconv.Itoa(int(self))
    }
}
