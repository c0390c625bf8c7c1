package database

import "strconv"

// TypeTag identifies a column type in the native row representation.
// Values follow the ESQL/C sqltypes codes.
type TypeTag int16

const (
	TypeChar       TypeTag = 0
	TypeSmallInt   TypeTag = 1
	TypeInt        TypeTag = 2
	TypeFloat      TypeTag = 3
	TypeSmallFloat TypeTag = 4
	TypeDecimal    TypeTag = 5
	TypeSerial     TypeTag = 6
	TypeDate       TypeTag = 7
	TypeMoney      TypeTag = 8
	TypeNull       TypeTag = 9
	TypeDateTime   TypeTag = 10
	TypeByte       TypeTag = 11
	TypeText       TypeTag = 12
	TypeVarChar    TypeTag = 13
	TypeInterval   TypeTag = 14
	TypeNChar      TypeTag = 15
	TypeNVarChar   TypeTag = 16
	TypeInt8       TypeTag = 17
	TypeSerial8    TypeTag = 18
	TypeLVarChar   TypeTag = 43
	TypeBoolean    TypeTag = 45
	TypeBigInt     TypeTag = 52
	TypeBigSerial  TypeTag = 53
)

var typeNames = map[TypeTag]string{
	TypeChar:       "CHAR",
	TypeSmallInt:   "SMALLINT",
	TypeInt:        "INTEGER",
	TypeFloat:      "FLOAT",
	TypeSmallFloat: "SMALLFLOAT",
	TypeDecimal:    "DECIMAL",
	TypeSerial:     "SERIAL",
	TypeDate:       "DATE",
	TypeMoney:      "MONEY",
	TypeNull:       "NULL",
	TypeDateTime:   "DATETIME",
	TypeByte:       "BYTE",
	TypeText:       "TEXT",
	TypeVarChar:    "VARCHAR",
	TypeInterval:   "INTERVAL",
	TypeNChar:      "NCHAR",
	TypeNVarChar:   "NVARCHAR",
	TypeInt8:       "INT8",
	TypeSerial8:    "SERIAL8",
	TypeLVarChar:   "LVARCHAR",
	TypeBoolean:    "BOOLEAN",
	TypeBigInt:     "BIGINT",
	TypeBigSerial:  "BIGSERIAL",
}

func (t TypeTag) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "TYPE(" + strconv.Itoa(int(t)) + ")"
}
