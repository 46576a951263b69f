package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a set of tables.
// Steps mutate and query the tables; assertions check the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Specs lists CUE or YAML spec files declaring tables.
	// Paths are relative to the scenario's base path.
	Specs []string `yaml:"specs,omitempty"`

	// Tables declares tables inline, in the YAML spec layout.
	Tables []TableDecl `yaml:"tables,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// TableDecl is an inline table declaration.
type TableDecl struct {
	Name    string           `yaml:"name"`
	Attrs   []string         `yaml:"attrs"`
	Funcs   []string         `yaml:"funcs,omitempty"`
	Initial []map[string]any `yaml:"initial,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	// Op is one of insert, delete, update, query, listen, mirror.
	Op string `yaml:"op"`

	// Table the step acts on (all ops but query).
	Table string `yaml:"table,omitempty"`

	// Item to insert.
	Item map[string]any `yaml:"item,omitempty"`

	// Func is the public function name for delete and update, e.g.
	// "delete_with_id". Update defaults to "update" (every item).
	Func string `yaml:"func,omitempty"`

	// Args are the function's key arguments.
	Args []any `yaml:"args,omitempty"`

	// Set holds the attributes an update assigns.
	Set map[string]any `yaml:"set,omitempty"`

	// Query text and its $params.
	Query  string         `yaml:"query,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	// Expect lists the items a query step must return, in order.
	Expect []map[string]any `yaml:"expect,omitempty"`

	// DeletionIndex and InitialData configure listen and mirror.
	DeletionIndex string `yaml:"deletion_index,omitempty"`
	InitialData   bool   `yaml:"initial_data,omitempty"`

	// Into names the mirror table fed by a mirror step.
	Into string `yaml:"into,omitempty"`

	// Error, when set, makes the step expect a failure. For query steps
	// it is the error type; otherwise a substring of the error message.
	Error string `yaml:"error,omitempty"`
}

// Step ops.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpUpdate = "update"
	OpQuery  = "query"
	OpListen = "listen"
	OpMirror = "mirror"
)

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "count": table holds exactly Count items
	// - "items": table holds exactly Items, in table order
	// - "query_items": Query returns exactly Items
	// - "query_error": Query fails with error type Error
	// - "consistent": every index of Table agrees
	// - "mirror_equals": Mirror holds the same items as Table
	// - "replay_equals": replaying Table's journal rebuilds Table
	Type string `yaml:"type"`

	Table  string           `yaml:"table,omitempty"`
	Mirror string           `yaml:"mirror,omitempty"`
	Count  int              `yaml:"count,omitempty"`
	Items  []map[string]any `yaml:"items,omitempty"`
	Query  string           `yaml:"query,omitempty"`
	Params map[string]any   `yaml:"params,omitempty"`
	Error  string           `yaml:"error,omitempty"`
}

// Assertion type constants.
const (
	AssertCount        = "count"
	AssertItems        = "items"
	AssertQueryItems   = "query_items"
	AssertQueryError   = "query_error"
	AssertConsistent   = "consistent"
	AssertMirrorEquals = "mirror_equals"
	AssertReplayEquals = "replay_equals"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Relative spec paths are joined to
// basePath when it is set.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 && len(s.Tables) == 0 {
		return fmt.Errorf("specs or tables are required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, td := range s.Tables {
		if td.Name == "" {
			return fmt.Errorf("tables[%d]: name is required", i)
		}
		if len(td.Attrs) == 0 {
			return fmt.Errorf("tables[%d]: attrs is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	needTable := func() error {
		if s.Table == "" {
			return fmt.Errorf("steps[%d]: table is required for %s", index, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpInsert:
		if s.Item == nil {
			return fmt.Errorf("steps[%d]: item is required for insert", index)
		}
		return needTable()
	case OpDelete:
		if s.Func == "" {
			return fmt.Errorf("steps[%d]: func is required for delete", index)
		}
		return needTable()
	case OpUpdate:
		if len(s.Set) == 0 {
			return fmt.Errorf("steps[%d]: set is required for update", index)
		}
		return needTable()
	case OpQuery:
		if s.Query == "" {
			return fmt.Errorf("steps[%d]: query is required", index)
		}
	case OpListen:
		return needTable()
	case OpMirror:
		if s.Into == "" {
			return fmt.Errorf("steps[%d]: into is required for mirror", index)
		}
		return needTable()
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertItems, AssertConsistent, AssertReplayEquals:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for %s", index, a.Type)
		}
	case AssertQueryItems:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for query_items", index)
		}
	case AssertQueryError:
		if a.Query == "" || a.Error == "" {
			return fmt.Errorf("assertions[%d]: query and error are required for query_error", index)
		}
	case AssertMirrorEquals:
		if a.Table == "" || a.Mirror == "" {
			return fmt.Errorf("assertions[%d]: table and mirror are required for mirror_equals", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
