// Package buffer provides the two-slot state container shared by the flock and its update algorithms.
package buffer

// DoubleBuffer holds the state of the current frame (Read) next to the one being
// computed (Write). Both slots always have the same reserved capacity and never alias.
type DoubleBuffer[T any] struct {
	primary   []T
	secondary []T
	count     int
}

// NewDoubleBuffer returns a buffer of count zero valued elements in each slot.
func NewDoubleBuffer[T any](count int) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{
		primary:   make([]T, count),
		secondary: make([]T, count),
		count:     count,
	}
}

// Write returns the slot the next frame is written into.
func (d *DoubleBuffer[T]) Write() []T {
	return d.primary[:d.count]
}

// Read returns the last fully computed frame.
func (d *DoubleBuffer[T]) Read() []T {
	return d.secondary[:d.count]
}

// Flip publishes the write slot by copying it over the read slot.
func (d *DoubleBuffer[T]) Flip() {
	copy(d.secondary[:d.count], d.primary[:d.count])
}

// Swap exchanges the two slots without copying.
func (d *DoubleBuffer[T]) Swap() {
	d.primary, d.secondary = d.secondary, d.primary
}

// Resize changes the element count. Growing past the reserved capacity reallocates
// both slots and carries the current elements of each over. Shrinking keeps the memory.
func (d *DoubleBuffer[T]) Resize(count int) {
	if count > len(d.primary) {
		primary := make([]T, count)
		secondary := make([]T, count)
		copy(primary, d.primary[:d.count])
		copy(secondary, d.secondary[:d.count])
		d.primary, d.secondary = primary, secondary
	}
	d.count = count
}

// Count returns the number of live elements.
func (d *DoubleBuffer[T]) Count() int {
	return d.count
}

// Reserved returns the allocated capacity of each slot.
func (d *DoubleBuffer[T]) Reserved() int {
	return len(d.primary)
}
