package pool

import (
	"fmt"
	"runtime"
)

// Well-known error codes (spec §6).
const (
	CodeSuccess               = 0
	CodeTrace                 = -1
	CodeImproperWrap          = -2
	CodeImproperUnhandledCall = -3
)

// linkState replaces the C source's STOP-sentinel-pointer trick with a
// tagged enum, per spec §9's explicit guidance ("represent as a tagged
// enum Link = Active{prev,next} | Stop | Detached rather than sentinel
// pointer comparison").
type linkState int

const (
	linkActive linkState = iota
	linkStop
	linkDetached
)

// Error is PoCore's chained error object (spec §4.5): it carries a code, a
// pool-duplicated message, an optional wrapped cause (original), an
// optional concurrent/secondary cause (separate), and - when the owning
// Context tracks unhandled errors - a position on the context's unhandled
// list.
type Error struct {
	ctx  *Context
	code int
	msg  string
	file string
	line int

	original *Error
	separate *Error

	state linkState
	prev  *Error
	next  *Error
}

// NewError is error_create: it duplicates msg into the context's error
// pool and, if the context tracks unhandled errors, head-inserts the new
// error onto the unhandled list.
func NewError(ctx *Context, code int, msg string) *Error {
	return newErrorAt(ctx, code, msg, "", 0, nil)
}

// NewErrorf is error_createf: msg is produced with fmt.Sprintf, grounded
// on the teacher's vsprintf_into collaborator (spec §6).
func NewErrorf(ctx *Context, code int, format string, args ...any) *Error {
	return NewError(ctx, code, fmt.Sprintf(format, args...))
}

func newErrorAt(ctx *Context, code int, msg, file string, line int, original *Error) *Error {
	// "Duplicate msg into that pool": the error pool exists so the
	// message storage shares the pool's clear/destroy lifecycle.
	pool := ctx.errorPoolOf()
	buf, _ := pool.Alloc(uint32(len(msg)))
	copy(buf, msg)

	e := &Error{
		ctx:      ctx,
		code:     code,
		msg:      string(buf),
		file:     file,
		line:     line,
		original: original,
	}

	if ctx.cfg.TrackUnhandled {
		ctx.pushUnhandled(e)
	}
	return e
}

func (c *Context) pushUnhandled(e *Error) {
	e.state = linkActive
	e.prev = nil
	e.next = c.unhandled
	if c.unhandled != nil {
		c.unhandled.prev = e
	}
	c.unhandled = e
}

// onUnhandledList reports whether e is still directly linked into
// ctx.unhandled (invariant 5, spec §8): a link is "on the list" precisely
// when it sits in the prev/next chain rooted at ctx.unhandled.
func (e *Error) onUnhandledList() bool {
	return e.ctx.cfg.TrackUnhandled && e.state == linkActive && (e.prev != nil || e.next != nil || e.ctx.unhandled == e)
}

func (c *Context) unlinkUnhandled(e *Error) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.unhandled == e {
		c.unhandled = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev = nil
	e.next = nil
}

// Wrap is error_wrap. It detaches original from the unhandled list (it is
// no longer top-level) and returns a new error whose Original is original,
// placed at the head of the unhandled list. Wrapping an error that is not
// itself on the unhandled list (a double-wrap) is caller error: original
// is marked linkStop and the returned error instead carries code
// CodeImproperWrap, with original attached unchanged so the misuse is
// still inspectable.
func Wrap(ctx *Context, code int, msg string, original *Error) *Error {
	if original != nil && ctx.cfg.TrackUnhandled && !original.onUnhandledList() {
		original.state = linkStop
		e := newErrorAt(ctx, CodeImproperWrap, "error_wrap: original is not on the unhandled list", "", 0, original)
		return e
	}

	if original != nil && ctx.cfg.TrackUnhandled {
		ctx.unlinkUnhandled(original)
	}
	return newErrorAt(ctx, code, msg, "", 0, original)
}

// Join is error_join: it appends separate to the end of error's separate
// chain, detaches separate from the unhandled list, and returns a trace
// wrapper around error recording the join site.
//
// Per spec §9's resolution of the open question over the source's inner
// loop bug, the walk advances via scan.separate (not error.separate) so
// chains of three or more links append correctly.
func Join(ctx *Context, err *Error, separate *Error) *Error {
	if separate != nil && ctx.cfg.TrackUnhandled {
		ctx.unlinkUnhandled(separate)
	}

	if err.separate == nil {
		err.separate = separate
	} else {
		scan := err.separate
		for scan.separate != nil {
			scan = scan.separate
		}
		scan.separate = separate
	}

	_, file, line, _ := runtime.Caller(1)
	return Trace(err, file, line)
}

// Trace is error_trace: if ctx.Tracing() is set, err is wrapped in a
// CodeTrace record annotating file/line and takes err's place on the
// unhandled list, exactly as Wrap detaches the error it wraps; otherwise
// err is returned unchanged (spec §4.5, §7 — trace records are
// transparent to accessors).
func Trace(err *Error, file string, line int) *Error {
	if err == nil || !err.ctx.cfg.Tracing {
		return err
	}
	if err.ctx.cfg.TrackUnhandled && err.onUnhandledList() {
		err.ctx.unlinkUnhandled(err)
	}
	return newErrorAt(err.ctx, CodeTrace, "", file, line, err)
}

// Handled is error_handled. In non-tracking contexts it simply discards
// the error. Otherwise it looks for the first error on the unhandled list
// among e and the errors reached from e through Original links; Separate
// links are not followed, and errors that wrap e are not searched. The
// error found is detached and its whole subtree freed, skipping anything
// already marked linkStop. If none is on the list (e.g. handled twice), e
// is marked linkStop and a fresh CodeImproperUnhandledCall error is pushed
// onto the unhandled list instead of panicking.
func Handled(e *Error) {
	if e == nil {
		return
	}
	if !e.ctx.cfg.TrackUnhandled {
		// "Free error and its inner/separate subtrees": there is no
		// unhandled list to consult or unlink from, and Go has no manual
		// free — dropping the caller's reference is enough for the GC to
		// reclaim the whole subtree once this call returns.
		return
	}

	root := e
	for !root.onUnhandledList() {
		if root.original == nil {
			e.state = linkStop
			NewError(e.ctx, CodeImproperUnhandledCall, "error_handled: error is not on the unhandled list")
			return
		}
		root = root.original
	}

	e.ctx.unlinkUnhandled(root)
	freeSubtree(root)
}

func freeSubtree(e *Error) {
	if e == nil || e.state == linkStop {
		return
	}
	e.state = linkDetached
	freeSubtree(e.original)
	freeSubtree(e.separate)
}

// Code is error_code: accessors skip TRACE records transparently.
func (e *Error) Code() int {
	for e != nil && e.code == CodeTrace {
		e = e.original
	}
	if e == nil {
		return CodeSuccess
	}
	return e.code
}

// Message is error_message.
func (e *Error) Message() string {
	for e != nil && e.code == CodeTrace {
		e = e.original
	}
	if e == nil {
		return ""
	}
	return e.msg
}

// Original is error_original.
func (e *Error) Original() *Error {
	for e != nil && e.code == CodeTrace {
		e = e.original
	}
	if e == nil {
		return nil
	}
	return e.original
}

// Separate is error_separate.
func (e *Error) Separate() *Error {
	for e != nil && e.code == CodeTrace {
		e = e.original
	}
	if e == nil {
		return nil
	}
	return e.separate
}

// TraceInfo is error_trace_info: the file/line recorded by the nearest
// enclosing TRACE record, or ("", 0) if e is not a trace record.
func (e *Error) TraceInfo() (file string, line int) {
	if e == nil || e.code != CodeTrace {
		return "", 0
	}
	return e.file, e.line
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pocore: code=%d: %s", e.Code(), e.Message())
}
