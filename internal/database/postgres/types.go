package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/joacominatel/asyncprep/internal/database"
)

const uuidLength = 36

// descriptorFor maps a result column's OID and type modifier to the
// client's type tags. Types without a native representation are described
// as LVARCHAR, which is how the server can always send them.
func descriptorFor(oid uint32, typmod int32) database.Descriptor {
	switch oid {
	case pgtype.BoolOID:
		return database.Descriptor{Type: database.TypeBoolean, Length: 1}
	case pgtype.Int2OID:
		return database.Descriptor{Type: database.TypeSmallInt, Length: 2}
	case pgtype.Int4OID:
		return database.Descriptor{Type: database.TypeInt, Length: 4}
	case pgtype.Int8OID:
		return database.Descriptor{Type: database.TypeBigInt, Length: 8}
	case pgtype.Float4OID:
		return database.Descriptor{Type: database.TypeSmallFloat, Length: 4}
	case pgtype.Float8OID:
		return database.Descriptor{Type: database.TypeFloat, Length: 8}
	case pgtype.NumericOID:
		return database.Descriptor{Type: database.TypeDecimal, Length: numericPrecision(typmod)}
	case pgtype.BPCharOID:
		return database.Descriptor{Type: database.TypeChar, Length: charLength(typmod, 1)}
	case pgtype.VarcharOID:
		return database.Descriptor{Type: database.TypeVarChar, Length: charLength(typmod, 255)}
	case pgtype.UUIDOID:
		return database.Descriptor{Type: database.TypeChar, Length: uuidLength}
	case pgtype.DateOID:
		return database.Descriptor{Type: database.TypeDate, Length: 4}
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return database.Descriptor{Type: database.TypeDateTime, Length: 8}
	case pgtype.IntervalOID:
		return database.Descriptor{Type: database.TypeInterval, Length: 16}
	case pgtype.ByteaOID:
		return database.Descriptor{Type: database.TypeByte}
	default:
		return database.Descriptor{Type: database.TypeLVarChar}
	}
}

// charLength decodes the declared length of char(n) and varchar(n).
// Unconstrained columns get def.
func charLength(typmod int32, def int) int {
	if typmod < 4 {
		return def
	}
	return int(typmod - 4)
}

func numericPrecision(typmod int32) int {
	if typmod < 4 {
		return 32
	}
	return int(((typmod - 4) >> 16) & 0xffff)
}

// kindOf classifies a statement by its leading keyword.
func kindOf(sql string, outputs int) database.StatementKind {
	switch firstKeyword(sql) {
	case "INSERT":
		return database.KindInsert
	case "UPDATE":
		return database.KindUpdate
	case "DELETE":
		return database.KindDelete
	case "CALL":
		return database.KindProcedure
	}
	if outputs > 0 {
		return database.KindQuery
	}
	return database.KindStatement
}

func firstKeyword(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+2:])
		case strings.HasPrefix(s, "("):
			s = strings.TrimSpace(s[1:])
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// sqlStateCodes maps SQLSTATEs to client codes.
var sqlStateCodes = map[string]int32{
	"42601": database.CodeSyntaxError,
	"42P01": database.CodeTableNotFound,
	"42703": database.CodeColumnNotFound,
	"42501": database.CodeNoPermission,
	"3D000": database.CodeNoPermission,
	"42804": database.CodeConversion,
	"42846": database.CodeConversion,
	"22P02": database.CodeConversion,
	"42P05": database.CodePrepareFailed,
}

// codeFor maps a prepare error to a client code. Server errors without a
// specific code become CodePrepareFailed; anything else means the session
// is gone.
func codeFor(err error) int32 {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := sqlStateCodes[pgErr.Code]; ok {
			return code
		}
		return database.CodePrepareFailed
	}
	return database.CodeConnectFailed
}
