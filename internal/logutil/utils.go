package logutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoravur/sqlbind/pkg/todb"
)

// Values groups a set of zap.Fields under a single "values" object field.
// Zero reflection, same speed as inline fields.
func Values(fields ...zap.Field) zap.Field {
	return zap.Object("values", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for _, f := range fields {
			f.AddTo(enc)
		}
		return nil
	}))
}

// Statement logs a converted statement under "stmt". Parameter values are
// left out; only their names are recorded.
func Statement(st todb.Statement) zap.Field {
	return zap.Object("stmt", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("sql", st.SQL)
		enc.AddInt("params", st.Params.Len())
		return enc.AddArray("names", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
			for _, n := range st.Params.Names() {
				arr.AppendString(n)
			}
			return nil
		}))
	}))
}
