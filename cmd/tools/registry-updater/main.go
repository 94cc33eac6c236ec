// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"crm-ai-orchestrator/pkg/registry"
)

const defaultPath = "configs/ai-registry.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	id := fs.String("id", "", "Model ID (e.g., deal-predictor-v2)")
	name := fs.String("name", "", "Display name")
	modelType := fs.String("type", "", "Model type (analysis, prediction, search, generation)")
	endpoint := fs.String("endpoint", "", "Model endpoint (e.g., /api/ai/deal-prediction)")
	priority := fs.Int("priority", 1, "Routing priority, lower is preferred")
	active := fs.Bool("active", true, "Whether the model takes traffic")
	_ = fs.Parse(args)

	if *id == "" || *name == "" || *modelType == "" {
		fs.Usage()
		return errors.New("id, name and type are required for add")
	}

	f, err := readFile(*path)
	if errors.Is(err, os.ErrNotExist) {
		f = &registry.File{Version: "1.0.0"}
	} else if err != nil {
		return err
	}

	for _, m := range f.Models {
		if m.ID == *id {
			return fmt.Errorf("model with ID %s already exists", *id)
		}
	}
	f.Models = append(f.Models, registry.AIModel{
		ID:       *id,
		Name:     *name,
		Type:     registry.ModelType(*modelType),
		Endpoint: *endpoint,
		Priority: *priority,
		IsActive: *active,
	})

	if err := saveFile(f, *path); err != nil {
		return err
	}
	fmt.Printf("Added model: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	id := fs.String("id", "", "Model ID to update")
	field := fs.String("field", "", "Field to update (name, endpoint, priority, active)")
	value := fs.String("value", "", "New value for the field")
	_ = fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return errors.New("id, field and value are required for update")
	}

	f, err := readFile(*path)
	if err != nil {
		return err
	}
	if err := updateModel(f, *id, *field, *value); err != nil {
		return err
	}
	if err := saveFile(f, *path); err != nil {
		return err
	}
	fmt.Printf("Updated model %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func updateModel(f *registry.File, id, field, value string) error {
	for i := range f.Models {
		if f.Models[i].ID != id {
			continue
		}
		m := &f.Models[i]
		switch field {
		case "name":
			m.Name = value
		case "endpoint":
			m.Endpoint = value
		case "priority":
			p, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid priority value: %w", err)
			}
			m.Priority = p
		case "active":
			active, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid active value: %w", err)
			}
			m.IsActive = active
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		return nil
	}
	return fmt.Errorf("model with ID %s not found", id)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	if errs := reg.Validate(); len(errs) > 0 {
		return fmt.Errorf("registry validation failed: %w", errors.Join(errs...))
	}
	fmt.Printf("Registry validation passed. Found %d models and %d pipelines.\n",
		len(reg.Models()), len(reg.Pipelines()))
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	path := fs.String("path", "", "Path to registry file (built-in registry when empty)")
	_ = fs.Parse(args)

	reg := registry.Default()
	if *path != "" {
		var err error
		if reg, err = registry.LoadRegistry(*path); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTYPE\tPRIORITY\tACTIVE\tENDPOINT\n")
	for _, m := range reg.Models() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", m.ID, m.Type, m.Priority, m.IsActive, m.Endpoint)
	}
	return w.Flush()
}

func readFile(path string) (*registry.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f registry.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return &f, nil
}

// saveFile refuses to write a registry the orchestrator would reject.
func saveFile(f *registry.File, path string) error {
	f.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if f.Pipelines == nil {
		f.Pipelines = []registry.Pipeline{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if _, err := registry.Parse(data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add a model to the registry
  update    Update a model's field
  validate  Validate the registry file against its schema and pipeline references
  list      Print the models of a registry
  help      Show this help message

Examples:
  registry-updater add -id deal-predictor-v2 -name "Deal Predictor v2" -type prediction -endpoint /api/ai/deal-prediction-v2 -priority 1
  registry-updater update -id deal-forecaster-legacy -field active -value false
  registry-updater validate -path configs/ai-registry.json
  registry-updater list

Use 'registry-updater <command> -h' for more information about a command.`)
}
