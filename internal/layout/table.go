package layout

import "github.com/joacominatel/asyncprep/internal/database"

// Rule describes how values of one column type sit in a row buffer.
type Rule struct {
	// Align is the boundary the column offset is rounded up to.
	Align int
	// Size returns the encoded size for a declared length.
	Size func(length int) int
	// Terminated columns get one extra byte for the trailing NUL the
	// native representation appends. The adjustment is local to a
	// calculation and never written back to the descriptor.
	Terminated bool
}

// Table maps type tags to their layout rules.
type Table map[database.TypeTag]Rule

// Lookup returns the rule for tag.
func (t Table) Lookup(tag database.TypeTag) (Rule, bool) {
	r, ok := t[tag]
	return r, ok
}

func fixed(size, align int) Rule {
	return Rule{Align: align, Size: func(int) int { return size }}
}

func chars(terminated bool, extra int) Rule {
	return Rule{
		Align:      1,
		Size:       func(length int) int { return length + extra },
		Terminated: terminated,
	}
}

// Sizes of the ESQL/C value structs on LP64 targets.
const (
	decimalSize  = 22  // dec_t: 3 shorts + 16 digit bytes
	dateTimeSize = 24  // dtime_t / intrvl_t: qualifier short + dec_t
	int8Size     = 12  // ifx_int8_t: 2 x uint32 + sign short, padded
	locatorSize  = 144 // loc_t
	pointerSize  = 8
)

// DefaultTable mirrors the ESQL/C in-memory row representation
// (rtypalign/rtypmsize) on 64-bit platforms.
var DefaultTable = Table{
	database.TypeChar:       chars(true, 0),
	database.TypeNChar:      chars(false, 0),
	database.TypeVarChar:    chars(false, 1),
	database.TypeNVarChar:   chars(false, 1),
	database.TypeSmallInt:   fixed(2, 2),
	database.TypeInt:        fixed(4, 4),
	database.TypeSerial:     fixed(4, 4),
	database.TypeDate:       fixed(4, 4),
	database.TypeSmallFloat: fixed(4, 4),
	database.TypeFloat:      fixed(8, 8),
	database.TypeBigInt:     fixed(8, 8),
	database.TypeBigSerial:  fixed(8, 8),
	database.TypeInt8:       fixed(int8Size, 4),
	database.TypeSerial8:    fixed(int8Size, 4),
	database.TypeDecimal:    fixed(decimalSize, 2),
	database.TypeMoney:      fixed(decimalSize, 2),
	database.TypeDateTime:   fixed(dateTimeSize, 2),
	database.TypeInterval:   fixed(dateTimeSize, 2),
	database.TypeBoolean:    fixed(1, 1),
	database.TypeNull:       fixed(0, 1),
	database.TypeLVarChar:   fixed(pointerSize, pointerSize),
	database.TypeByte:       fixed(locatorSize, 8),
	database.TypeText:       fixed(locatorSize, 8),
}
