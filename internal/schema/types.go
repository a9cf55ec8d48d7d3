package schema

import (
	"fmt"
	"strings"
)

// ColumnType is the closed set of type shapes the DDL synthesizer knows how
// to render. Values are produced once by ClassifyType during introspection.
type ColumnType interface {
	// Render returns the type as it appears in a column definition.
	Render() string
	isColumnType()
}

// ArrayType renders the catalog's underlying array type name (e.g. "_int4").
type ArrayType struct{ Underlying string }

// UserDefinedType is an enum, domain or composite type referenced by name.
type UserDefinedType struct{ Name string }

// BoundedCharType is a character type with a declared maximum length.
type BoundedCharType struct {
	Name   string
	Length int
}

// NumericType is numeric/decimal with explicit precision and scale.
type NumericType struct {
	Name      string
	Precision int
	Scale     int
}

// SimpleType is any other type, rendered bare.
type SimpleType struct{ Name string }

func (t ArrayType) Render() string       { return t.Underlying }
func (t UserDefinedType) Render() string { return t.Name }
func (t BoundedCharType) Render() string { return fmt.Sprintf("%s(%d)", t.Name, t.Length) }
func (t NumericType) Render() string {
	return fmt.Sprintf("%s(%d,%d)", t.Name, t.Precision, t.Scale)
}
func (t SimpleType) Render() string { return t.Name }

func (ArrayType) isColumnType()       {}
func (UserDefinedType) isColumnType() {}
func (BoundedCharType) isColumnType() {}
func (NumericType) isColumnType()     {}
func (SimpleType) isColumnType()      {}

// RawType is the subset of an information_schema.columns row that decides
// the column's type shape. Nil pointers are SQL NULLs.
type RawType struct {
	DataType  string
	UDTName   string
	MaxLength *int
	Precision *int
	Scale     *int
}

// ClassifyType maps a raw catalog type to its ColumnType variant.
func ClassifyType(raw RawType) ColumnType {
	dataType := strings.ToLower(raw.DataType)

	switch dataType {
	case "array":
		return ArrayType{Underlying: raw.UDTName}
	case "user-defined":
		return UserDefinedType{Name: raw.UDTName}
	case "character varying", "character", "varchar", "char", "bpchar":
		if raw.MaxLength != nil {
			return BoundedCharType{Name: dataType, Length: *raw.MaxLength}
		}
	case "numeric", "decimal":
		// integer types report a precision too, so only numeric/decimal qualify
		if raw.Precision != nil && raw.Scale != nil {
			return NumericType{Name: dataType, Precision: *raw.Precision, Scale: *raw.Scale}
		}
	}
	return SimpleType{Name: dataType}
}
