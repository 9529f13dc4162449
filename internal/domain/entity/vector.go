package entity

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
)

// Vector 嵌入向量；读写 pgvector 列时经 pgvector.Vector 编解码，nil 对应 SQL NULL
type Vector []float32

// PG 转为 pgvector 参数，用于 ?::vector 占位符
func (v Vector) PG() pgvector.Vector {
	return pgvector.NewVector(v)
}

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return v.PG().Value()
}

func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}
	var pv pgvector.Vector
	if err := pv.Scan(src); err != nil {
		return err
	}
	*v = pv.Slice()
	return nil
}

// VectorFromFloat64 将 eino embedder 的 float64 输出转为 float32
func VectorFromFloat64(in []float64) Vector {
	if len(in) == 0 {
		return nil
	}
	out := make(Vector, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
