package engine

// DirtyAccumulator is a sticky OR over every mutation in one pass.
//
// Callers mark true only after a real native mutation. A spurious true
// costs one extra render; a lost true is a missed frame, so Mark never
// clears the flag.
type DirtyAccumulator struct {
	dirty bool
	marks int
}

// Mark ORs changed into the flag.
func (d *DirtyAccumulator) Mark(changed bool) {
	d.marks++
	d.dirty = d.dirty || changed
}

// Consume returns the flag and clears it.
func (d *DirtyAccumulator) Consume() bool {
	v := d.dirty
	d.dirty = false
	d.marks = 0
	return v
}

// Pending returns the flag without clearing it.
func (d *DirtyAccumulator) Pending() bool {
	return d.dirty
}

// Marks returns the number of Mark calls since the last Consume.
func (d *DirtyAccumulator) Marks() int {
	return d.marks
}
