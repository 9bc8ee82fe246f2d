package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/catalogsync/model"
)

// manifest describes lineage to publish with "push". Executions refer to
// other manifest entries as "table:<database>.<name>", "file:<path>" or
// "operation:<name>".
type manifest struct {
	Namespace  string              `yaml:"namespace"`
	SourceType string              `yaml:"source_type"`
	Tables     []manifestTable     `yaml:"tables"`
	Files      []manifestFile      `yaml:"files"`
	Operations []manifestOperation `yaml:"operations"`
	Executions []manifestExecution `yaml:"executions"`
}

// manifestMeta holds the attributes every manifest entity accepts.
type manifestMeta struct {
	Description string            `yaml:"description"`
	Owner       string            `yaml:"owner"`
	Tags        []string          `yaml:"tags"`
	Properties  map[string]string `yaml:"properties"`
}

type manifestTable struct {
	manifestMeta `yaml:",inline"`
	Name         string           `yaml:"name"`
	Database     string           `yaml:"database"`
	Columns      []manifestColumn `yaml:"columns"`
	Storage      []string         `yaml:"storage"`
}

type manifestColumn struct {
	manifestMeta `yaml:",inline"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
}

type manifestFile struct {
	manifestMeta `yaml:",inline"`
	Path         string `yaml:"path"`
	Directory    bool   `yaml:"directory"`
	Size         int64  `yaml:"size"`
}

type manifestOperation struct {
	manifestMeta `yaml:",inline"`
	Name         string `yaml:"name"`
	Script       string `yaml:"script"`
}

type manifestExecution struct {
	manifestMeta `yaml:",inline"`
	Name         string    `yaml:"name"`
	Operation    string    `yaml:"operation"`
	Started      time.Time `yaml:"started"`
	Ended        time.Time `yaml:"ended"`
	Inputs       []string  `yaml:"inputs"`
	Outputs      []string  `yaml:"outputs"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// manifestGraph turns a manifest into catalog entities.
type manifestGraph struct {
	namespace  string
	sourceType model.SourceType
	byRef      map[string]model.Entity
	roots      []model.Entity
}

// build returns the root entities of m. Everything else is reachable from
// them. defaultNamespace applies when the manifest names none.
func (m *manifest) build(defaultNamespace string) ([]model.Entity, error) {
	g := &manifestGraph{
		namespace:  m.Namespace,
		sourceType: model.SourceTypeSDK,
		byRef:      map[string]model.Entity{},
	}
	if g.namespace == "" {
		g.namespace = defaultNamespace
	}
	if m.SourceType != "" {
		g.sourceType = model.ParseSourceType(m.SourceType)
	}

	for _, f := range m.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("file entry without a path")
		}
		file := &model.File{FileSystemPath: f.Path, Size: f.Size}
		file.Name = f.Path[strings.LastIndex(f.Path, "/")+1:]
		if f.Directory {
			file.EntityType = model.EntityTypeDirectory
		}
		g.apply(&file.Base, f.manifestMeta)
		if err := g.add("file:"+f.Path, file); err != nil {
			return nil, err
		}
	}

	for _, t := range m.Tables {
		if t.Name == "" || t.Database == "" {
			return nil, fmt.Errorf("table entries need a name and a database")
		}
		table := &model.Table{Database: t.Database}
		table.Name = t.Name
		g.apply(&table.Base, t.manifestMeta)

		for i, c := range t.Columns {
			col := &model.Column{
				DataType:   c.Type,
				ParentPath: t.Database + "." + t.Name,
				Position:   i,
				Table:      table,
			}
			col.Name = c.Name
			g.apply(&col.Base, c.manifestMeta)
			table.Columns = append(table.Columns, col)
		}

		for _, path := range t.Storage {
			e, err := g.resolve("file:" + path)
			if err != nil {
				return nil, fmt.Errorf("table %s.%s storage: %w", t.Database, t.Name, err)
			}
			table.Storage = append(table.Storage, e)
		}

		if err := g.add("table:"+t.Database+"."+t.Name, table); err != nil {
			return nil, err
		}
	}

	for _, o := range m.Operations {
		if o.Name == "" {
			return nil, fmt.Errorf("operation entry without a name")
		}
		op := &model.Operation{ScriptPath: o.Script}
		op.Name = o.Name
		g.apply(&op.Base, o.manifestMeta)
		if err := g.add("operation:"+o.Name, op); err != nil {
			return nil, err
		}
	}

	for _, x := range m.Executions {
		if x.Name == "" || x.Started.IsZero() {
			return nil, fmt.Errorf("execution entries need a name and a start time")
		}
		exec := &model.OperationExecution{Started: x.Started, Ended: x.Ended}
		exec.Name = x.Name
		g.apply(&exec.Base, x.manifestMeta)

		if x.Operation != "" {
			e, err := g.resolve("operation:" + x.Operation)
			if err != nil {
				return nil, fmt.Errorf("execution %s: %w", x.Name, err)
			}
			exec.Template = e.(*model.Operation)
		}
		for _, ref := range x.Inputs {
			e, err := g.resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("execution %s input: %w", x.Name, err)
			}
			exec.Inputs = append(exec.Inputs, e)
		}
		for _, ref := range x.Outputs {
			e, err := g.resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("execution %s output: %w", x.Name, err)
			}
			exec.Outputs = append(exec.Outputs, e)
		}
		g.roots = append(g.roots, exec)
	}

	return g.roots, nil
}

func (g *manifestGraph) apply(b *model.Base, meta manifestMeta) {
	b.Namespace = g.namespace
	b.SourceType = g.sourceType
	b.Description = meta.Description
	b.Owner = meta.Owner
	if len(meta.Tags) > 0 {
		b.Tags.Append(meta.Tags...)
	}
	if len(meta.Properties) > 0 {
		b.Properties.Append(meta.Properties)
	}
}

func (g *manifestGraph) add(ref string, e model.Entity) error {
	if _, dup := g.byRef[ref]; dup {
		return fmt.Errorf("duplicate manifest entry %s", ref)
	}
	g.byRef[ref] = e
	g.roots = append(g.roots, e)
	return nil
}

func (g *manifestGraph) resolve(ref string) (model.Entity, error) {
	e, ok := g.byRef[ref]
	if !ok {
		return nil, fmt.Errorf("unknown manifest entry %q", ref)
	}
	return e, nil
}
