// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	errExprSyntax     = errors.New("expression syntax error")
	errDivideByZero   = errors.New("division by zero")
	errExprCharacters = errors.New("invalid character in expression")
)

type tokenKind byte

const (
	tokenNumber tokenKind = iota
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	kind  tokenKind
	value int64     // tokenNumber only
	op    *operator // tokenOp only
}

type operator struct {
	symbol string
	prec   byte
	unary  bool
	eval   func(a, b int64) (int64, error)
}

// Binary operators, from lowest to highest precedence. All of them are
// left-associative.
var binaryOps = map[string]*operator{
	"|":  {"|", 1, false, func(a, b int64) (int64, error) { return a | b, nil }},
	"^":  {"^", 2, false, func(a, b int64) (int64, error) { return a ^ b, nil }},
	"&":  {"&", 3, false, func(a, b int64) (int64, error) { return a & b, nil }},
	"<<": {"<<", 4, false, func(a, b int64) (int64, error) { return a << uint(b&63), nil }},
	">>": {">>", 4, false, func(a, b int64) (int64, error) { return a >> uint(b&63), nil }},
	"+":  {"+", 5, false, func(a, b int64) (int64, error) { return a + b, nil }},
	"-":  {"-", 5, false, func(a, b int64) (int64, error) { return a - b, nil }},
	"*":  {"*", 6, false, func(a, b int64) (int64, error) { return a * b, nil }},
	"/":  {"/", 6, false, divide},
	"%":  {"%", 6, false, modulo},
}

// Prefix operators bind tighter than any binary operator.
var unaryOps = map[string]*operator{
	"-": {"-", 7, true, func(a, _ int64) (int64, error) { return -a, nil }},
	"+": {"+", 7, true, func(a, _ int64) (int64, error) { return a, nil }},
	"~": {"~", 7, true, func(a, _ int64) (int64, error) { return ^a, nil }},
}

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a / b, nil
}

func modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a % b, nil
}

// An exprEvaluator computes the value of a monitor argument such as
// "$0200+x*2" or "pc-3". Identifiers are looked up with the resolve
// function. In hex mode, a bare word made only of hex digits is a number.
type exprEvaluator struct {
	hexMode bool
	resolve func(id string) (int64, error)
}

func (e *exprEvaluator) evaluate(expr string) (int64, error) {
	tokens, err := e.tokenize(expr)
	if err != nil {
		return 0, err
	}
	rpn, err := toPostfix(tokens)
	if err != nil {
		return 0, err
	}
	return evalPostfix(rpn)
}

// Split the expression into tokens, resolving numbers and identifiers to
// values and deciding which operators are prefix operators.
func (e *exprEvaluator) tokenize(s string) ([]token, error) {
	var tokens []token
	operandNext := true

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
			continue

		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen})
			i++
			operandNext = true
			continue

		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen})
			i++
			operandNext = false
			continue

		case c == '\'':
			if i+2 >= len(s) || s[i+2] != '\'' {
				return nil, errExprSyntax
			}
			tokens = append(tokens, token{kind: tokenNumber, value: int64(s[i+1])})
			i += 3

		case c == '$' || isDecimal(c):
			v, n, err := e.scanNumber(s[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenNumber, value: v})
			i += n

		case isIdentifier(c):
			n := scanWhile(s[i:], isIdentifier)
			word := s[i : i+n]
			v, err := e.word(word)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenNumber, value: v})
			i += n

		default:
			sym := s[i : i+1]
			if (c == '<' || c == '>') && i+1 < len(s) && s[i+1] == c {
				sym = s[i : i+2]
			}
			var op *operator
			if operandNext {
				op = unaryOps[sym]
			} else {
				op = binaryOps[sym]
			}
			if op == nil {
				if binaryOps[sym] == nil && unaryOps[sym] == nil {
					return nil, errExprCharacters
				}
				return nil, errExprSyntax
			}
			tokens = append(tokens, token{kind: tokenOp, op: op})
			i += len(sym)
			operandNext = true
			continue
		}

		// A value was just consumed.
		if !operandNext {
			return nil, errExprSyntax
		}
		operandNext = false
	}
	return tokens, nil
}

// Scan a number starting at the beginning of 's', returning its value and
// the number of bytes it occupies.
func (e *exprEvaluator) scanNumber(s string) (int64, int, error) {
	base, digits, prefix := 10, isDecimal, 0
	if e.hexMode {
		base, digits = 16, isHexadecimal
	}

	switch {
	case s[0] == '$':
		base, digits, prefix = 16, isHexadecimal, 1
	case len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X'):
		base, digits, prefix = 16, isHexadecimal, 2
	case !e.hexMode && len(s) > 2 && s[0] == '0' && (s[1] == 'b' || s[1] == 'B'):
		base, digits, prefix = 2, isBinary, 2
	}

	n := prefix + scanWhile(s[prefix:], digits)
	if n == prefix {
		return 0, 0, errExprSyntax
	}

	// A number running straight into a word ("12ab") is malformed.
	if n < len(s) && isIdentifier(s[n]) {
		return 0, 0, errExprSyntax
	}

	v, err := strconv.ParseInt(s[prefix:n], base, 64)
	if err != nil {
		return 0, 0, errExprSyntax
	}
	return v, n, nil
}

// Evaluate a bare word, which is either a hex number in hex mode or an
// identifier.
func (e *exprEvaluator) word(w string) (int64, error) {
	if e.hexMode && scanWhile(w, isHexadecimal) == len(w) {
		return strconv.ParseInt(w, 16, 64)
	}
	if e.resolve == nil {
		return 0, fmt.Errorf("identifier '%s' not found", w)
	}
	return e.resolve(w)
}

// Reorder tokens into postfix order using the shunting-yard algorithm.
func toPostfix(tokens []token) ([]token, error) {
	var output, stack []token

	for _, tok := range tokens {
		switch tok.kind {
		case tokenNumber:
			output = append(output, tok)

		case tokenLParen:
			stack = append(stack, tok)

		case tokenRParen:
			for {
				if len(stack) == 0 {
					return nil, errExprSyntax
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokenLParen {
					break
				}
				output = append(output, top)
			}

		case tokenOp:
			// Prefix operators apply to what follows, so they never pop.
			if !tok.op.unary {
				for len(stack) > 0 {
					top := stack[len(stack)-1]
					if top.kind != tokenOp || top.op.prec < tok.op.prec {
						break
					}
					output = append(output, top)
					stack = stack[:len(stack)-1]
				}
			}
			stack = append(stack, tok)
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokenLParen {
			return nil, errExprSyntax
		}
		output = append(output, top)
	}
	return output, nil
}

func evalPostfix(rpn []token) (int64, error) {
	var values []int64
	for _, tok := range rpn {
		if tok.kind == tokenNumber {
			values = append(values, tok.value)
			continue
		}

		args := 2
		if tok.op.unary {
			args = 1
		}
		if len(values) < args {
			return 0, errExprSyntax
		}

		var a, b int64
		if args == 1 {
			a = values[len(values)-1]
		} else {
			a, b = values[len(values)-2], values[len(values)-1]
		}
		values = values[:len(values)-args]

		v, err := tok.op.eval(a, b)
		if err != nil {
			return 0, err
		}
		values = append(values, v)
	}

	if len(values) != 1 {
		return 0, errExprSyntax
	}
	return values[0], nil
}

func scanWhile(s string, fn func(c byte) bool) int {
	i := 0
	for i < len(s) && fn(s[i]) {
		i++
	}
	return i
}

func isDecimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexadecimal(c byte) bool {
	return isDecimal(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isBinary(c byte) bool {
	return c == '0' || c == '1'
}

func isIdentifier(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDecimal(c) || c == '_' || c == '.'
}
