package inventory

import "reflect"

// Kind identifies a type of stackable item. The inventory never constructs or
// mutates kinds; it only needs the stack limit.
//
// Kinds are compared by identity, so implementations should be pointer types
// handed out by a catalog (two kinds are the same only if they are the same
// value).
type Kind interface {
	MaxStackSize() int
}

// same reports whether a and b are the same kind or holder. Values whose
// dynamic type is not comparable are never considered the same.
func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// SameKind reports whether a and b name the same item kind.
func SameKind(a, b Kind) bool { return same(a, b) }

func maxStack(k Kind) int {
	if k == nil {
		return 0
	}
	n := k.MaxStackSize()
	if n < 0 {
		return 0
	}
	return n
}
