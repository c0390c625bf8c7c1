// Package layout computes the row buffer size a prepared statement needs to
// hold one decoded output row.
package layout

import (
	"fmt"

	"github.com/joacominatel/asyncprep/internal/database"
)

// UnknownTypeError is returned when a column type has no layout rule.
type UnknownTypeError struct {
	Column int
	Type   database.TypeTag
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("layout: column %d has unsupported type %s", e.Column, e.Type)
}

// Column is the placement of one output column inside the row buffer.
type Column struct {
	Index  int
	Type   database.TypeTag
	Length int // declared length after the terminator adjustment
	Offset int
	Size   int
}

// Plan is the full row layout. Size is the total buffer size.
type Plan struct {
	Columns []Column
	Size    int
}

type Calculator struct {
	table Table
}

// NewCalculator returns a calculator over table, or DefaultTable when nil.
func NewCalculator(table Table) *Calculator {
	if table == nil {
		table = DefaultTable
	}
	return &Calculator{table: table}
}

// Size returns the aligned byte size of one row of cols.
func (c *Calculator) Size(cols []database.Descriptor) (int, error) {
	plan, err := c.Plan(cols)
	if err != nil {
		return 0, err
	}
	return plan.Size, nil
}

// Plan returns the per-column placement along with the total size.
func (c *Calculator) Plan(cols []database.Descriptor) (Plan, error) {
	plan := Plan{Columns: make([]Column, 0, len(cols))}

	offset := 0
	for i, col := range cols {
		rule, ok := c.table.Lookup(col.Type)
		if !ok {
			return Plan{}, &UnknownTypeError{Column: i, Type: col.Type}
		}
		length := col.Length
		if rule.Terminated {
			length++
		}
		offset = AlignTo(offset, rule.Align)
		size := rule.Size(length)
		plan.Columns = append(plan.Columns, Column{
			Index:  i,
			Type:   col.Type,
			Length: length,
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	plan.Size = offset
	return plan, nil
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align int) int {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}
