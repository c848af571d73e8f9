// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compiler walks a filter AST and emits bytecode for the stack
// VM (§4.G), applying a fixed sequence of idempotent optimization passes.
package compiler

import "netwatch/internal/filter/parser"

// Opcode enumerates the VM's instruction set.
type Opcode int

const (
	OpPushField Opcode = iota
	OpPushString
	OpPushNumber
	OpPop
	OpEQ
	OpNE
	OpLT
	OpGT
	OpLE
	OpGE
	OpMatch
	OpNMatch
	OpIn
	OpAnd
	OpOr
	OpNot
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpReturn
	OpNop
)

// Instr is one bytecode instruction: an opcode plus at most one 64-bit
// operand (field id, string table index, integer literal, relative jump
// offset, or IN operand count).
type Instr struct {
	Op      Opcode
	Operand int64
	HasOper bool
}

// Bytecode is the compiled form of a filter expression: instructions, a
// deduplicated string constant table, and counters.
type Bytecode struct {
	Instrs    []Instr
	Strings   []string
	Optimized int // count of optimization rewrites applied
}

// InstrCount returns the number of emitted instructions.
func (b *Bytecode) InstrCount() int { return len(b.Instrs) }

// fieldIDOf maps a parser.FieldID to the operand stored in OpPushField;
// kept as a named conversion so the compiler package does not leak a
// direct numeric dependency on parser internals elsewhere.
func fieldIDOf(f parser.FieldID) int64 { return int64(f) }
