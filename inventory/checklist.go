package inventory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// ITEM ENCODING
// =============================================================================

// ItemState marks a checklist line.
type ItemState string

const (
	ItemChecked   ItemState = "checked"
	ItemUnchecked ItemState = "unchecked"
	ItemExtra     ItemState = "extra"
)

const (
	markChecked   = "✓ "
	markUnchecked = "✗ "
	markExtra     = "• "
)

// ChecklistItem is one verified line of a checklist.
type ChecklistItem struct {
	Text  string
	State ItemState
}

// EncodeItems renders items one per line with their marker.
func EncodeItems(items []ChecklistItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		switch item.State {
		case ItemChecked:
			lines = append(lines, markChecked+text)
		case ItemExtra:
			lines = append(lines, markExtra+text)
		default:
			lines = append(lines, markUnchecked+text)
		}
	}
	return strings.Join(lines, "\n")
}

// DecodeItems parses the stored text back into items. Lines without a
// marker are read as extras.
func DecodeItems(s string) []ChecklistItem {
	var items []ChecklistItem
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, markChecked):
			items = append(items, ChecklistItem{Text: strings.TrimPrefix(line, markChecked), State: ItemChecked})
		case strings.HasPrefix(line, markUnchecked):
			items = append(items, ChecklistItem{Text: strings.TrimPrefix(line, markUnchecked), State: ItemUnchecked})
		case strings.HasPrefix(line, markExtra):
			items = append(items, ChecklistItem{Text: strings.TrimPrefix(line, markExtra), State: ItemExtra})
		default:
			items = append(items, ChecklistItem{Text: line, State: ItemExtra})
		}
	}
	return items
}

// BuildItems marks each template line as checked or unchecked and appends
// the non-blank extras.
func BuildItems(template []string, checked map[string]bool, extras []string) []ChecklistItem {
	items := make([]ChecklistItem, 0, len(template)+len(extras))
	for _, text := range template {
		state := ItemUnchecked
		if checked[text] {
			state = ItemChecked
		}
		items = append(items, ChecklistItem{Text: text, State: state})
	}
	for _, text := range extras {
		if text = strings.TrimSpace(text); text != "" {
			items = append(items, ChecklistItem{Text: text, State: ItemExtra})
		}
	}
	return items
}

// =============================================================================
// TEMPLATES
// =============================================================================

// Template is a named list of items for one checklist kind.
type Template struct {
	Name    string        `yaml:"name" json:"name"`
	Kind    ChecklistKind `yaml:"kind" json:"kind"`
	Items   []string      `yaml:"items" json:"items"`
	Default bool          `yaml:"default" json:"default"`
}

// TemplateSet holds the default item list per kind plus named templates.
type TemplateSet struct {
	defaults map[ChecklistKind][]string
	named    []Template
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() *TemplateSet {
	return &TemplateSet{
		defaults: map[ChecklistKind][]string{
			ChecklistAssembly: {
				"Base level and stable",
				"Adequate foundation",
				"Tubes in good condition (no corrosion or damage)",
				"Clamps correctly tightened",
				"Bracing between tubes adequate",
				"Work planks secured",
				"Guardrail installed",
				"Toe board installed",
				"Access ladders secure",
				"Signage installed",
			},
			ChecklistDisassembly: {
				"Area isolated and signposted",
				"Materials removed from platform",
				"Checked for stuck equipment",
				"Sequential disassembly (top to bottom)",
				"Components stored in order",
				"Disassembled parts counted",
				"Components checked for damage",
				"Area cleaned after disassembly",
			},
			ChecklistInspection: {
				"Overall condition of the structure",
				"Fixings and clamps",
				"Visible deformation or damage",
				"Structural stability",
				"Collective protection",
				"Access and exits",
				"Documentation up to date",
				"Conforms to project",
			},
		},
		named: []Template{
			{Name: "Basic assembly", Kind: ChecklistAssembly, Items: []string{
				"Ground checked", "Base level", "Components in good condition",
				"Assembled per project", "Protection installed", "Safe access",
			}},
			{Name: "Weekly inspection", Kind: ChecklistInspection, Items: []string{
				"Overall condition of the structure", "Clamp fixings", "Plank condition",
				"Collective protection", "Signage",
			}},
			{Name: "Safe disassembly", Kind: ChecklistDisassembly, Items: []string{
				"Area isolated", "Materials removed", "Sequential disassembly",
				"Components counted", "Final cleanup",
			}},
		},
	}
}

// DefaultItems returns the default item list for kind.
func (ts *TemplateSet) DefaultItems(kind ChecklistKind) []string {
	return append([]string(nil), ts.defaults[kind]...)
}

// Templates returns the named templates, optionally restricted to kind.
func (ts *TemplateSet) Templates(kind ChecklistKind) []Template {
	var result []Template
	for _, t := range ts.named {
		if kind == "" || t.Kind == kind {
			result = append(result, t)
		}
	}
	return result
}

// Add validates and adds a named template. A template marked Default also
// replaces the default item list of its kind.
func (ts *TemplateSet) Add(t Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid("template name is required")
	}
	if !t.Kind.Valid() {
		return invalid("template %q: unknown kind %q", t.Name, t.Kind)
	}
	items := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return invalid("template %q has no items", t.Name)
	}
	t.Items = items

	for i, existing := range ts.named {
		if strings.EqualFold(existing.Name, t.Name) {
			ts.named[i] = t
			ts.setDefault(t)
			return nil
		}
	}
	ts.named = append(ts.named, t)
	ts.setDefault(t)
	return nil
}

func (ts *TemplateSet) setDefault(t Template) {
	if t.Default {
		ts.defaults[t.Kind] = append([]string(nil), t.Items...)
	}
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates reads templates from a YAML file on top of the built-in set.
//
//	templates:
//	  - name: Facade inspection
//	    kind: inspection
//	    default: true
//	    items:
//	      - Anchors to facade
//	      - Netting intact
func LoadTemplates(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates is LoadTemplates on in-memory YAML.
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	ts := DefaultTemplates()
	for _, t := range f.Templates {
		if err := ts.Add(t); err != nil {
			return nil, err
		}
	}
	return ts, nil
}
