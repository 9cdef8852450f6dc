package dataset

import (
	"github.com/parquet-go/parquet-go"
)

// Column roles
const (
	RoleMeasure   = "measure"
	RoleDimension = "dimension"
)

// Column describes one column of a dataset snapshot
type Column struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Required     bool   `json:"required"`
}

// DescribeSnapshot returns the kind and column layout of the snapshot at path.
// Role reports whether the field catalog treats the column as a measure or a
// dimension; it is empty for columns outside the catalog.
func DescribeSnapshot(path string) (Kind, []Column, error) {
	file, pqFile, err := openSnapshot(path)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = file.Close() }()

	kind, err := snapshotKind(path, pqFile)
	if err != nil {
		return "", nil, err
	}

	fields := pqFile.Schema().Fields()
	columns := make([]Column, 0, len(fields))
	for _, field := range fields {
		col := Column{
			Name:         field.Name(),
			PhysicalType: physicalType(field),
			Required:     field.Required(),
		}
		if field.Type() != nil {
			if lt := field.Type().LogicalType(); lt != nil {
				col.LogicalType = lt.String()
			}
		}
		switch {
		case IsMeasureField(kind, col.Name):
			col.Role = RoleMeasure
		case IsDimensionField(kind, col.Name):
			col.Role = RoleDimension
		}
		columns = append(columns, col)
	}
	return kind, columns, nil
}

// physicalType returns the physical type name of a parquet field
func physicalType(field parquet.Field) string {
	if field.Type() == nil || len(field.Fields()) > 0 {
		return "GROUP"
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}
