package builtins

// SubstringLabel is the entry label of the substring helper subroutine.
const SubstringLabel = "$substring$helper"

// SubstringHelperSource returns the IFJcode23 subroutine implementing
// substring(of:startingAt:endingBefore:) -> String?. Like a user-defined
// function's own prologue, it creates and pushes its own frame and pops its
// three parameters directly off the data stack in reverse declared order;
// the call site pushes `of`, `startingAt`, `endingBefore` in that order and
// is responsible for the matching POPFRAME once CALL returns. It returns
// the result on the data stack, or nil@nil for any out-of-range or
// malformed request — a partial function, never a runtime error.
//
// Grounded on original_source/parser.c's genSubstring, translated from
// three-address target instructions into their IFJcode23 stack-machine
// equivalents.
func SubstringHelperSource() string {
	return `LABEL ` + SubstringLabel + `
CREATEFRAME
PUSHFRAME
DEFVAR LF@of
DEFVAR LF@startingAt
DEFVAR LF@endingBefore
POPS LF@endingBefore
POPS LF@startingAt
POPS LF@of
DEFVAR LF@len
DEFVAR LF@result
DEFVAR LF@cond
DEFVAR LF@char
STRLEN LF@len LF@of
LT LF@cond LF@startingAt int@0
JUMPIFEQ ` + SubstringLabel + `$nil LF@cond bool@true
LT LF@cond LF@endingBefore LF@startingAt
JUMPIFEQ ` + SubstringLabel + `$nil LF@cond bool@true
GT LF@cond LF@startingAt LF@len
JUMPIFEQ ` + SubstringLabel + `$nil LF@cond bool@true
GT LF@cond LF@endingBefore LF@len
JUMPIFEQ ` + SubstringLabel + `$nil LF@cond bool@true
MOVE LF@result string@
LABEL ` + SubstringLabel + `$loop
JUMPIFEQ ` + SubstringLabel + `$done LF@startingAt LF@endingBefore
GETCHAR LF@char LF@of LF@startingAt
CONCAT LF@result LF@result LF@char
ADD LF@startingAt LF@startingAt int@1
JUMP ` + SubstringLabel + `$loop
LABEL ` + SubstringLabel + `$done
PUSHS LF@result
RETURN
LABEL ` + SubstringLabel + `$nil
PUSHS nil@nil
RETURN
`
}
