package shmem

import (
	"unsafe"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/heap"
)

// Scalar is the set of element types that can cross the fabric: fixed-size
// numeric types with identical layout on every PE.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Word is the set of types accepted by the 8-byte atomics and wait
// primitives.
type Word interface {
	~int64 | ~uint64
}

func bytesOf[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// Put writes src into pe's heap at dst and blocks for local completion; src
// is reusable on return.
func Put[T Scalar](ctx backends.Context, dst heap.Ptr, src []T, pe int) {
	if err := ctx.Put(dst, bytesOf(src), pe); err != nil {
		panic(err)
	}
}

// PutNBI is the non-blocking Put; src may not be reused until Quiet.
func PutNBI[T Scalar](ctx backends.Context, dst heap.Ptr, src []T, pe int) {
	if err := ctx.PutNBI(dst, bytesOf(src), pe); err != nil {
		panic(err)
	}
}

// Get reads len(dst) elements from pe's heap at src into dst.
func Get[T Scalar](ctx backends.Context, dst []T, src heap.Ptr, pe int) {
	if err := ctx.Get(bytesOf(dst), src, pe); err != nil {
		panic(err)
	}
}

// GetNBI is the non-blocking Get; dst contents are undefined until Quiet.
func GetNBI[T Scalar](ctx backends.Context, dst []T, src heap.Ptr, pe int) {
	if err := ctx.GetNBI(bytesOf(dst), src, pe); err != nil {
		panic(err)
	}
}

// P writes the single value v to pe's heap at dst.
func P[T Scalar](ctx backends.Context, dst heap.Ptr, v T, pe int) {
	Put(ctx, dst, []T{v}, pe)
}

// G reads the single value at src on pe.
func G[T Scalar](ctx backends.Context, src heap.Ptr, pe int) T {
	var v [1]T
	Get(ctx, v[:], src, pe)
	return v[0]
}

// AtomicFetchAdd atomically adds delta to the word at p on pe and returns the
// prior value.
func AtomicFetchAdd[T Word](ctx backends.Context, p heap.Ptr, delta T, pe int) T {
	old, err := ctx.AmoFetchAdd(p, int64(delta), pe)
	if err != nil {
		panic(err)
	}
	return T(old)
}

// AtomicCompareSwap atomically replaces the word at p on pe with val if it
// equals cond, returning the prior value.
func AtomicCompareSwap[T Word](ctx backends.Context, p heap.Ptr, cond, val T, pe int) T {
	old, err := ctx.AmoCompareSwap(p, int64(cond), int64(val), pe)
	if err != nil {
		panic(err)
	}
	return T(old)
}

// AtomicSet atomically stores val into the word at p on pe.
func AtomicSet[T Word](ctx backends.Context, p heap.Ptr, val T, pe int) {
	if err := ctx.AmoSet(p, int64(val), pe); err != nil {
		panic(err)
	}
}

// AtomicFetch atomically reads the word at p on pe.
func AtomicFetch[T Word](ctx backends.Context, p heap.Ptr, pe int) T {
	v, err := ctx.AmoFetch(p, pe)
	if err != nil {
		panic(err)
	}
	return T(v)
}

// WaitUntil spins until the local word at p satisfies cmp against val. The
// word is expected to be written by a remote atomic.
func WaitUntil[T Word](ctx backends.Context, p heap.Ptr, cmp backends.Compare, val T) {
	ctx.WaitUntil(p, cmp, int64(val))
}

// Test reports whether the local word at p satisfies cmp against val.
func Test[T Word](ctx backends.Context, p heap.Ptr, cmp backends.Compare, val T) bool {
	return ctx.Test(p, cmp, int64(val))
}
