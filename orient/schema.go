package orient

import (
	"context"
	"fmt"
	"strings"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// RecordClassName is the class the workload reads and writes.
const RecordClassName = "Record"

// PropertyDef declares one typed class property.
type PropertyDef struct {
	Name string
	Type string
}

// IndexDef declares one index over class properties.
type IndexDef struct {
	Name       string
	Properties []string
	Type       string
}

// ClassDef declares a class with its properties and indexes.
type ClassDef struct {
	Name       string
	Properties []PropertyDef
	Indexes    []IndexDef
}

// RecordClass returns the workload schema: an id plus one property per
// index flavour, so the workload type selects which write path inside the
// database gets exercised.
//
// Returns:
//   - ClassDef: The Record class definition
func RecordClass() ClassDef {
	return ClassDef{
		Name: RecordClassName,
		Properties: []PropertyDef{
			{Name: "id", Type: "INTEGER"},
			{Name: "prop_uq", Type: "INTEGER"},
			{Name: "prop_nuq", Type: "INTEGER"},
			{Name: "prop_ftx", Type: "STRING"},
		},
		Indexes: []IndexDef{
			{Name: "id", Properties: []string{"id"}, Type: "UNIQUE"},
			{Name: "prop_uq", Properties: []string{"id", "prop_uq"}, Type: "UNIQUE"},
			{Name: "prop_nuq", Properties: []string{"prop_nuq"}, Type: "NOTUNIQUE"},
			{Name: "prop_ftx", Properties: []string{"prop_ftx"}, Type: "FULLTEXT ENGINE LUCENE"},
		},
	}
}

// SchemaManager installs class definitions idempotently.
type SchemaManager struct {
	db     *Database
	logger types.Logger
}

// NewSchemaManager creates a SchemaManager for the database.
//
// Parameters:
//   - db: Target database
//   - logger: Logger, or nil for no-op
//
// Returns:
//   - *SchemaManager: The manager
func NewSchemaManager(db *Database, logger types.Logger) *SchemaManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SchemaManager{db: db, logger: logger}
}

// Ensure creates the database and installs every class definition,
// skipping classes and properties that already exist. Index creation uses
// IF NOT EXISTS so it is always safe to repeat.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - defs: Class definitions to install
//
// Returns:
//   - error: First error encountered
func (m *SchemaManager) Ensure(ctx context.Context, defs ...ClassDef) error {
	m.logger.Info("installing schema", "database", m.db.Name())
	if _, err := m.db.EnsureExists(ctx); err != nil {
		return err
	}
	for _, def := range defs {
		if err := m.ensureClass(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func (m *SchemaManager) ensureClass(ctx context.Context, def ClassDef) error {
	m.logger.Debug("installing class schema", "class", def.Name)

	classes, err := m.db.Classes(ctx)
	if err != nil {
		return err
	}
	exists := false
	for _, c := range classes {
		if c == def.Name {
			exists = true
			break
		}
	}
	if !exists {
		if err := m.db.CreateClass(ctx, def.Name); err != nil {
			return err
		}
	}

	info, err := m.db.Class(ctx, def.Name)
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	if props, ok := info["properties"].([]any); ok {
		for _, p := range props {
			if prop, ok := p.(map[string]any); ok {
				if name, ok := prop["name"].(string); ok {
					existing[name] = true
				}
			}
		}
	}
	for _, prop := range def.Properties {
		if !existing[prop.Name] {
			if err := m.db.CreateProperty(ctx, def.Name, prop.Name, prop.Type); err != nil {
				return err
			}
		}
	}

	for _, idx := range def.Indexes {
		stmt := fmt.Sprintf("CREATE INDEX %s.%s IF NOT EXISTS ON %s (%s) %s",
			def.Name, idx.Name, def.Name, strings.Join(idx.Properties, ","), idx.Type)
		if _, err := m.db.Command(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
