package formula

import (
	"fmt"
	"strings"
)

// Sort is the type of a variable.
type Sort int

const (
	SortBool Sort = iota
	SortInt
)

func (s Sort) String() string {
	switch s {
	case SortBool:
		return "bool"
	case SortInt:
		return "int"
	default:
		return "?"
	}
}

// NoIndex marks a variable that is not bound to an SSA version.
const NoIndex = -1

// Formula is a boolean-valued expression.
type Formula interface {
	isFormula()
	String() string
}

// Term is an integer-valued expression.
type Term interface {
	isTerm()
	String() string
}

// BoolConst is the constant true or false.
type BoolConst struct {
	Val bool
}

func (BoolConst) isFormula() {}
func (c BoolConst) String() string {
	if c.Val {
		return "true"
	}
	return "false"
}

// Var is a program variable, optionally instantiated at an SSA index.
// A Var of sort SortBool is a Formula, a Var of sort SortInt is a Term.
type Var struct {
	Name  string
	Index int
	Sort  Sort
}

func (Var) isFormula() {}
func (Var) isTerm()    {}
func (v Var) String() string {
	if v.Index == NoIndex {
		return v.Name
	}
	return fmt.Sprintf("%s@%d", v.Name, v.Index)
}

// Uninstantiated returns v without its SSA index.
func (v Var) Uninstantiated() Var {
	v.Index = NoIndex
	return v
}

// IntConst is an integer literal.
type IntConst struct {
	Val int64
}

func (IntConst) isTerm() {}
func (c IntConst) String() string {
	return fmt.Sprintf("%d", c.Val)
}

// NotExpr is a negation.
type NotExpr struct {
	Operand Formula
}

func (NotExpr) isFormula() {}
func (e NotExpr) String() string {
	return "!" + e.Operand.String()
}

// AndExpr is an n-ary conjunction.
type AndExpr struct {
	Operands []Formula
}

func (AndExpr) isFormula() {}
func (e AndExpr) String() string {
	return joinFormulas(e.Operands, " && ")
}

// OrExpr is an n-ary disjunction.
type OrExpr struct {
	Operands []Formula
}

func (OrExpr) isFormula() {}
func (e OrExpr) String() string {
	return joinFormulas(e.Operands, " || ")
}

// IffExpr is boolean equality.
type IffExpr struct {
	Left  Formula
	Right Formula
}

func (IffExpr) isFormula() {}
func (e IffExpr) String() string {
	return "(" + e.Left.String() + " == " + e.Right.String() + ")"
}

// CmpOp is a comparison operator on terms.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Negate returns the operator of the negated comparison.
func (op CmpOp) Negate() CmpOp {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	default:
		return op
	}
}

// CmpExpr compares two terms.
type CmpExpr struct {
	Op    CmpOp
	Left  Term
	Right Term
}

func (CmpExpr) isFormula() {}
func (e CmpExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	default:
		return "?"
	}
}

// ArithExpr is a binary arithmetic term.
type ArithExpr struct {
	Op    ArithOp
	Left  Term
	Right Term
}

func (ArithExpr) isTerm() {}
func (e ArithExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

// NegExpr is arithmetic negation.
type NegExpr struct {
	Operand Term
}

func (NegExpr) isTerm() {}
func (e NegExpr) String() string {
	return "-" + e.Operand.String()
}

// BitExpr holds when bit Index of the two's-complement encoding of Operand
// is set. Bit 0 is the least significant bit.
type BitExpr struct {
	Operand Term
	Index   int
}

func (BitExpr) isFormula() {}
func (e BitExpr) String() string {
	return fmt.Sprintf("bit(%s, %d)", e.Operand.String(), e.Index)
}

func joinFormulas(fs []Formula, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
