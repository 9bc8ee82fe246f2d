package model

import "time"

// Targets converts typed relation members to entities, skipping nil pointers.
func Targets[T any, P interface {
	*T
	Entity
}](items ...P) []Entity {
	out := make([]Entity, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

// Each returns the non-nil members of items.
func Each(items ...Entity) []Entity {
	out := make([]Entity, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

// Table is a logical dataset. Its columns are its children; Storage lists
// the physical entities (files, directories) that hold its data.
type Table struct {
	Base
	Database string
	Columns  []*Column
	Storage  []Entity
}

var tableSchema = NewSchema(EntityTypeTable,
	[]string{"entityType", "namespace", "database", "name"},
	[]Field{
		{Name: "database", Value: func(e Entity) any { return e.(*Table).Database }},
	},
	[]RelationField{
		{Name: "columns", Kind: ParentChild, Role: RoleChild,
			Targets: func(e Entity) []Entity { return Targets(e.(*Table).Columns...) }},
		{Name: "storage", Kind: LogicalPhysical, Role: RolePhysical,
			Targets: func(e Entity) []Entity { return Each(e.(*Table).Storage...) }},
	},
)

// Schema implements Entity.
func (*Table) Schema() *Schema { return tableSchema }

// Column is a field of a table. ParentPath is the qualified name of the
// owning table and takes part in the column identity.
type Column struct {
	Base
	DataType   string
	ParentPath string
	Position   int
	Table      *Table
}

var columnSchema = NewSchema(EntityTypeField,
	[]string{"entityType", "namespace", "parentPath", "name"},
	[]Field{
		{Name: "dataType", Value: func(e Entity) any { return e.(*Column).DataType }},
		{Name: "parentPath", Value: func(e Entity) any { return e.(*Column).ParentPath }},
		{Name: "position", Value: func(e Entity) any { return e.(*Column).Position }},
	},
	[]RelationField{
		{Name: "table", Kind: ParentChild, Role: RoleParent,
			Targets: func(e Entity) []Entity { return Targets(e.(*Column).Table) }},
	},
)

// Schema implements Entity.
func (*Column) Schema() *Schema { return columnSchema }

// File is a physical file or directory. Set EntityType to
// EntityTypeDirectory for directories.
type File struct {
	Base
	FileSystemPath string
	Size           int64
}

var fileSchema = NewSchema(EntityTypeFile,
	[]string{"entityType", "namespace", "fileSystemPath"},
	[]Field{
		{Name: "fileSystemPath", Required: true, Value: func(e Entity) any { return e.(*File).FileSystemPath }},
		{Name: "size", Value: func(e Entity) any { return e.(*File).Size }},
	},
	nil,
)

// Schema implements Entity.
func (*File) Schema() *Schema { return fileSchema }

// Operation is a job template, such as a script or a query definition.
type Operation struct {
	Base
	ScriptPath string
}

var operationSchema = NewSchema(EntityTypeOperation,
	[]string{"entityType", "namespace", "name"},
	[]Field{
		{Name: "scriptPath", Value: func(e Entity) any { return e.(*Operation).ScriptPath }},
	},
	nil,
)

// Schema implements Entity.
func (*Operation) Schema() *Schema { return operationSchema }

// OperationExecution is one run of an Operation. Data flows from Inputs into
// the execution and from the execution into Outputs.
type OperationExecution struct {
	Base
	Template *Operation
	Inputs   []Entity
	Outputs  []Entity
	Started  time.Time
	Ended    time.Time
}

var executionSchema = NewSchema(EntityTypeOperationExecution,
	[]string{"entityType", "namespace", "name", "started"},
	[]Field{
		{Name: "started", Value: func(e Entity) any { return e.(*OperationExecution).Started }},
		{Name: "ended", Value: func(e Entity) any { return e.(*OperationExecution).Ended }},
	},
	[]RelationField{
		{Name: "template", Kind: InstanceOf, Role: RoleTemplate,
			Targets: func(e Entity) []Entity { return Targets(e.(*OperationExecution).Template) }},
		{Name: "inputs", Kind: DataFlow, Role: RoleSource,
			Targets: func(e Entity) []Entity { return Each(e.(*OperationExecution).Inputs...) }},
		{Name: "outputs", Kind: DataFlow, Role: RoleTarget,
			Targets: func(e Entity) []Entity { return Each(e.(*OperationExecution).Outputs...) }},
	},
)

// Schema implements Entity.
func (*OperationExecution) Schema() *Schema { return executionSchema }
