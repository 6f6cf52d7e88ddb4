package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/config"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableResolver names the physical tables backing a product type.
type TableResolver interface {
	MetadataTable(typ *models.ProductType) (string, error)
	ReferenceTable(typ *models.ProductType) (string, error)
}

// ValueEncoder converts an element id into the value bound for the
// element_id column.
type ValueEncoder interface {
	ElementID(id string) (interface{}, error)
}

// DefaultTables derives tables from the type name: <Name>_metadata and
// <Name>_reference.
type DefaultTables struct{}

// MetadataTable implements TableResolver.
func (DefaultTables) MetadataTable(typ *models.ProductType) (string, error) {
	return suffixed(typeName(typ), "_metadata")
}

// ReferenceTable implements TableResolver.
func (DefaultTables) ReferenceTable(typ *models.ProductType) (string, error) {
	return suffixed(typeName(typ), "_reference")
}

// MappedTables remaps type names to table prefixes. Lookups are case
// insensitive; unmapped types fall back to their own name.
type MappedTables struct {
	mapping map[string]string
}

// NewMappedTables wraps an in-memory mapping.
func NewMappedTables(mapping map[string]string) *MappedTables {
	normalized := make(map[string]string, len(mapping))
	for k, v := range mapping {
		normalized[strings.ToLower(k)] = v
	}
	return &MappedTables{mapping: normalized}
}

// LoadMappedTables reads the mapping from a properties file.
func LoadMappedTables(path string) (*MappedTables, error) {
	mapping, err := config.LoadTypeMap(path)
	if err != nil {
		return nil, err
	}
	return NewMappedTables(mapping), nil
}

// TableFor returns the table prefix for typeName.
func (m *MappedTables) TableFor(typeName string) string {
	if table, ok := m.mapping[strings.ToLower(typeName)]; ok && table != "" {
		return table
	}
	return typeName
}

// MetadataTable implements TableResolver.
func (m *MappedTables) MetadataTable(typ *models.ProductType) (string, error) {
	return suffixed(m.TableFor(typeName(typ)), "_metadata")
}

// ReferenceTable implements TableResolver.
func (m *MappedTables) ReferenceTable(typ *models.ProductType) (string, error) {
	return suffixed(m.TableFor(typeName(typ)), "_reference")
}

// QuotedValues binds element ids as strings.
type QuotedValues struct{}

// ElementID implements ValueEncoder.
func (QuotedValues) ElementID(id string) (interface{}, error) {
	return id, nil
}

// NumericValues binds element ids as integers for schemas with numeric
// element_id columns.
type NumericValues struct{}

// ElementID implements ValueEncoder.
func (NumericValues) ElementID(id string) (interface{}, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("element id %q is not numeric", id)
	}
	return n, nil
}

// EncoderFor picks the encoder matching the quoteFields setting.
func EncoderFor(quoteFields bool) ValueEncoder {
	if quoteFields {
		return QuotedValues{}
	}
	return NumericValues{}
}

func typeName(typ *models.ProductType) string {
	if typ == nil {
		return ""
	}
	return typ.Name
}

func suffixed(prefix, suffix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("product type name required to resolve tables")
	}
	name := prefix + suffix
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateIdentifier rejects names that are unsafe to splice into SQL.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid table identifier %q", name)
	}
	return nil
}
