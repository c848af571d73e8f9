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

package compiler

import (
	"fmt"

	"netwatch/internal/filter/parser"
)

// Error is a compile-time error (§7 CompileError).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

type compiler struct {
	instrs  []Instr
	strings []string
	strIdx  map[string]int64
}

// Compile walks ast and emits bytecode, then runs the fixed-order
// optimization passes (peephole, dead-code, constant-folding). ast must
// come from a parser.Result with Valid=true.
func Compile(ast *parser.Node) (*Bytecode, error) {
	bc, err := CompileUnoptimized(ast)
	if err != nil {
		return nil, err
	}
	bc.Optimized = optimize(bc)
	if err := validateJumps(bc); err != nil {
		return nil, err
	}
	return bc, nil
}

// CompileUnoptimized emits bytecode straight from the AST with none of
// the optimization passes applied. It exists so the optimizer's output
// can be checked for semantic equivalence against the unoptimized form,
// and as a debugging aid when inspecting what the compiler emitted
// before rewriting.
func CompileUnoptimized(ast *parser.Node) (*Bytecode, error) {
	if ast == nil {
		return nil, &Error{Message: "cannot compile a nil AST"}
	}
	c := &compiler{strIdx: make(map[string]int64)}
	if err := c.emit(ast); err != nil {
		return nil, err
	}
	c.instrs = append(c.instrs, Instr{Op: OpReturn})

	bc := &Bytecode{Instrs: c.instrs, Strings: c.strings}
	if err := validateJumps(bc); err != nil {
		return nil, err
	}
	return bc, nil
}

func (c *compiler) internString(s string) int64 {
	if idx, ok := c.strIdx[s]; ok {
		return idx
	}
	idx := int64(len(c.strings))
	c.strings = append(c.strings, s)
	c.strIdx[s] = idx
	return idx
}

func (c *compiler) push(i Instr) int { c.instrs = append(c.instrs, i); return len(c.instrs) - 1 }

func (c *compiler) emit(n *parser.Node) error {
	switch n.Kind {
	case parser.NodeField:
		c.push(Instr{Op: OpPushField, Operand: fieldIDOf(n.Field), HasOper: true})
		return nil
	case parser.NodeString:
		c.push(Instr{Op: OpPushString, Operand: c.internString(n.Str), HasOper: true})
		return nil
	case parser.NodeNumber:
		c.push(Instr{Op: OpPushNumber, Operand: n.Num, HasOper: true})
		return nil
	case parser.NodeList:
		for _, item := range n.Items {
			if err := c.emit(item); err != nil {
				return err
			}
		}
		return nil
	case parser.NodeCompare:
		if n.Left == nil || n.Right == nil {
			return &Error{Message: "comparison node missing an operand"}
		}
		if err := c.emit(n.Left); err != nil {
			return err
		}
		if n.Op == parser.OpIn {
			if err := c.emit(n.Right); err != nil {
				return err
			}
			c.push(Instr{Op: OpIn, Operand: int64(len(n.Right.Items)), HasOper: true})
			return nil
		}
		if err := c.emit(n.Right); err != nil {
			return err
		}
		c.push(Instr{Op: compareOpcode(n.Op)})
		return nil
	case parser.NodeAnd:
		return c.emitAnd(n)
	case parser.NodeOr:
		return c.emitOr(n)
	case parser.NodeNot:
		if n.Left == nil {
			return &Error{Message: "NOT node missing its operand"}
		}
		if err := c.emit(n.Left); err != nil {
			return err
		}
		c.push(Instr{Op: OpNot})
		return nil
	default:
		return &Error{Message: fmt.Sprintf("unknown AST node kind %v", n.Kind)}
	}
}

// emitAnd compiles short-circuit AND as:
//
//	<L>, JUMP_IF_FALSE end, POP, <R>, end:
func (c *compiler) emitAnd(n *parser.Node) error {
	if n.Left == nil || n.Right == nil {
		return &Error{Message: "AND node missing an operand"}
	}
	if err := c.emit(n.Left); err != nil {
		return err
	}
	jfIdx := c.push(Instr{Op: OpJumpIfFalse, HasOper: true})
	c.push(Instr{Op: OpPop})
	if err := c.emit(n.Right); err != nil {
		return err
	}
	end := len(c.instrs)
	c.instrs[jfIdx].Operand = int64(end - jfIdx)
	return nil
}

// emitOr compiles short-circuit OR as:
//
//	<L>, JUMP_IF_TRUE end, POP, <R>, end:
func (c *compiler) emitOr(n *parser.Node) error {
	if n.Left == nil || n.Right == nil {
		return &Error{Message: "OR node missing an operand"}
	}
	if err := c.emit(n.Left); err != nil {
		return err
	}
	jtIdx := c.push(Instr{Op: OpJumpIfTrue, HasOper: true})
	c.push(Instr{Op: OpPop})
	if err := c.emit(n.Right); err != nil {
		return err
	}
	end := len(c.instrs)
	c.instrs[jtIdx].Operand = int64(end - jtIdx)
	return nil
}

func compareOpcode(op parser.CompareOp) Opcode {
	switch op {
	case parser.OpEQ:
		return OpEQ
	case parser.OpNE:
		return OpNE
	case parser.OpLT:
		return OpLT
	case parser.OpGT:
		return OpGT
	case parser.OpLE:
		return OpLE
	case parser.OpGE:
		return OpGE
	case parser.OpMatch:
		return OpMatch
	case parser.OpNotMatch:
		return OpNMatch
	default:
		return OpNop
	}
}

// validateJumps checks that every jump's target lies within instruction
// bounds, per the Bytecode invariant in §3.
func validateJumps(bc *Bytecode) error {
	n := len(bc.Instrs)
	for i, instr := range bc.Instrs {
		switch instr.Op {
		case OpJump, OpJumpIfFalse, OpJumpIfTrue:
			target := i + int(instr.Operand)
			if target < 0 || target > n {
				return &Error{Message: fmt.Sprintf("jump at instruction %d targets out-of-bounds offset %d", i, target)}
			}
		}
	}
	return nil
}
