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

// optimize runs the fixed-order optimization passes over bc in place and
// returns the total number of rewrites applied. Each pass is idempotent:
// running optimize again on its own output applies zero further rewrites.
func optimize(bc *Bytecode) int {
	total := 0
	total += peephole(bc)
	total += deadCode(bc)
	total += constantFold(bc)
	return total
}

// peephole drops JUMP instructions that target the very next instruction
// (a no-op jump left over from compilation) and folds adjacent NOT NOT
// pairs, which cancel out.
func peephole(bc *Bytecode) int {
	changes := 0

	for {
		removed := false
		for i, instr := range bc.Instrs {
			if instr.Op == OpJump && instr.Operand == 1 {
				*bc = *removeAt(bc, i)
				changes++
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}

	for {
		folded := false
		for i := 0; i+1 < len(bc.Instrs); i++ {
			if bc.Instrs[i].Op == OpNot && bc.Instrs[i+1].Op == OpNot {
				*bc = *removeRange(bc, i, i+2)
				changes++
				folded = true
				break
			}
		}
		if !folded {
			break
		}
	}

	return changes
}

// deadCode removes instructions that can never execute: anything
// following an unconditional JUMP or RETURN, up to the next instruction
// that is actually the target of some jump in the program.
func deadCode(bc *Bytecode) int {
	changes := 0
	for {
		targets := jumpTargets(bc)
		remove := make([]bool, len(bc.Instrs))
		unreachable := false
		found := false
		for i, instr := range bc.Instrs {
			if targets[i] {
				unreachable = false
			}
			if unreachable {
				remove[i] = true
				found = true
				continue
			}
			if instr.Op == OpJump || instr.Op == OpReturn {
				unreachable = true
			}
		}
		if !found {
			break
		}
		*bc = *rebuildRemoving(bc, remove)
		changes++
	}
	return changes
}

// constantFold replaces comparisons between two literal operands with the
// already-known boolean result, pushed as a 0/1 number, eliminating the
// comparison at evaluation time.
func constantFold(bc *Bytecode) int {
	changes := 0
	for {
		folded := false
		for i := 0; i+2 < len(bc.Instrs); i++ {
			a, b, op := bc.Instrs[i], bc.Instrs[i+1], bc.Instrs[i+2]
			result, ok := foldCompare(bc, a, b, op)
			if !ok {
				continue
			}
			replacement := Instr{Op: OpPushNumber, Operand: result, HasOper: true}
			bc2 := spliceReplace(bc, i, i+3, replacement)
			*bc = *bc2
			changes++
			folded = true
			break
		}
		if !folded {
			break
		}
	}
	return changes
}

func foldCompare(bc *Bytecode, a, b, op Instr) (int64, bool) {
	switch {
	case a.Op == OpPushNumber && b.Op == OpPushNumber:
		x, y := a.Operand, b.Operand
		return boolOp(op.Op, func() int {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		})
	case a.Op == OpPushString && b.Op == OpPushString:
		if op.Op != OpEQ && op.Op != OpNE {
			return 0, false
		}
		eq := bc.Strings[a.Operand] == bc.Strings[b.Operand]
		if op.Op == OpNE {
			eq = !eq
		}
		return boolInt(eq), true
	default:
		return 0, false
	}
}

func boolOp(op Opcode, cmp func() int) (int64, bool) {
	c := cmp()
	switch op {
	case OpEQ:
		return boolInt(c == 0), true
	case OpNE:
		return boolInt(c != 0), true
	case OpLT:
		return boolInt(c < 0), true
	case OpGT:
		return boolInt(c > 0), true
	case OpLE:
		return boolInt(c <= 0), true
	case OpGE:
		return boolInt(c >= 0), true
	default:
		return 0, false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func jumpTargets(bc *Bytecode) []bool {
	targets := make([]bool, len(bc.Instrs)+1)
	for i, instr := range bc.Instrs {
		switch instr.Op {
		case OpJump, OpJumpIfFalse, OpJumpIfTrue:
			t := i + int(instr.Operand)
			if t >= 0 && t < len(targets) {
				targets[t] = true
			}
		}
	}
	return targets
}

// removeAt removes the single instruction at index i.
func removeAt(bc *Bytecode, i int) *Bytecode {
	return removeRange(bc, i, i+1)
}

// removeRange removes instructions in [from, to) and retargets any jump
// whose destination lay inside or past the removed range.
func removeRange(bc *Bytecode, from, to int) *Bytecode {
	remove := make([]bool, len(bc.Instrs))
	for i := from; i < to; i++ {
		remove[i] = true
	}
	return rebuildRemoving(bc, remove)
}

// spliceReplace replaces instructions in [from, to) with a single
// instruction, retargeting jumps accordingly.
func spliceReplace(bc *Bytecode, from, to int, replacement Instr) *Bytecode {
	n := len(bc.Instrs)
	newIndexOf := make([]int, n+1)
	kept := make([]Instr, 0, n)

	for i := 0; i < from; i++ {
		newIndexOf[i] = len(kept)
		kept = append(kept, bc.Instrs[i])
	}
	replacementIdx := len(kept)
	kept = append(kept, replacement)
	for i := from; i < to; i++ {
		newIndexOf[i] = replacementIdx
	}
	for i := to; i < n; i++ {
		newIndexOf[i] = len(kept)
		kept = append(kept, bc.Instrs[i])
	}
	newIndexOf[n] = len(kept)

	newIdx := 0
	for i := 0; i < n; i++ {
		if i >= from && i < to && i != from {
			continue
		}
		instr := &kept[newIdx]
		switch instr.Op {
		case OpJump, OpJumpIfFalse, OpJumpIfTrue:
			oldTarget := i + int(instr.Operand)
			var newTarget int
			if oldTarget >= n {
				newTarget = len(kept)
			} else {
				newTarget = newIndexOf[oldTarget]
			}
			instr.Operand = int64(newTarget - newIdx)
		}
		newIdx++
	}

	return &Bytecode{Instrs: kept, Strings: bc.Strings, Optimized: bc.Optimized}
}

// rebuildRemoving drops every instruction flagged in remove and retargets
// surviving jumps so they still land on the same logical instruction (or
// the first surviving instruction after it, if that one was removed too).
func rebuildRemoving(bc *Bytecode, remove []bool) *Bytecode {
	n := len(bc.Instrs)
	newIndexOf := make([]int, n+1)
	kept := make([]Instr, 0, n)

	for i := 0; i < n; i++ {
		if !remove[i] {
			newIndexOf[i] = len(kept)
			kept = append(kept, bc.Instrs[i])
		}
	}
	newIndexOf[n] = len(kept)

	next := len(kept)
	for i := n - 1; i >= 0; i-- {
		if !remove[i] {
			next = newIndexOf[i]
		} else {
			newIndexOf[i] = next
		}
	}

	newIdx := 0
	for i := 0; i < n; i++ {
		if remove[i] {
			continue
		}
		instr := &kept[newIdx]
		switch instr.Op {
		case OpJump, OpJumpIfFalse, OpJumpIfTrue:
			oldTarget := i + int(instr.Operand)
			var newTarget int
			if oldTarget >= n {
				newTarget = len(kept)
			} else {
				newTarget = newIndexOf[oldTarget]
			}
			instr.Operand = int64(newTarget - newIdx)
		}
		newIdx++
	}

	return &Bytecode{Instrs: kept, Strings: bc.Strings, Optimized: bc.Optimized}
}
