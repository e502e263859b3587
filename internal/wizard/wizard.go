// Package wizard collects a generation request interactively.
package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/utils"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ComponentTypes are the choices offered for the component type.
var ComponentTypes = []string{"hero", "card", "teaser", "carousel", "accordion", "tabs", "list", "form", "custom"}

// FieldTypes are the Granite UI field types a field may declare.
var FieldTypes = []string{
	"textfield", "textarea", "richtext", "pathfield", "fileupload",
	"checkbox", "select", "numberfield", "datepicker", "multifield",
}

const defaultFieldType = "textfield"

var (
	ErrDescriptionRequired = errors.New("description is required")
	ErrUnexpectedEOF       = errors.New("unexpected end of input")
)

var fieldName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Answers holds everything the wizard asks for.
type Answers struct {
	Description      string
	ComponentType    string
	Fields           string
	ImageURL         string
	AppID            string
	Clientlibs       bool
	SecondaryOpinion bool
}

// Request builds the generation request for a.
func (a *Answers) Request() (*models.GenerationRequest, error) {
	if strings.TrimSpace(a.Description) == "" {
		return nil, ErrDescriptionRequired
	}
	fields, err := ParseFields(a.Fields)
	if err != nil {
		return nil, err
	}
	componentType := a.ComponentType
	if componentType == "custom" {
		componentType = ""
	}
	return &models.GenerationRequest{
		Description:   strings.TrimSpace(a.Description),
		ComponentType: componentType,
		Fields:        fields,
		ImageURL:      strings.TrimSpace(a.ImageURL),
		Options: models.GenerationOptions{
			IncludeClientlibs: utils.Ptr(a.Clientlibs),
			SecondaryOpinion:  utils.Ptr(a.SecondaryOpinion),
			AppID:             strings.TrimSpace(a.AppID),
		},
	}, nil
}

// Run asks for a generation request on in/out. Terminals get a huh form;
// anything else is read line by line so the wizard can be scripted.
// initial pre-populates the answers.
func Run(in io.Reader, out io.Writer, initial Answers) (*models.GenerationRequest, error) {
	answers := initial
	if initial.ComponentType == "" {
		answers.ComponentType = "custom"
	}

	var err error
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		err = runForm(in, out, &answers)
	} else {
		err = runLines(in, out, &answers)
	}
	if err != nil {
		return nil, err
	}
	return answers.Request()
}

func runForm(in io.Reader, out io.Writer, a *Answers) error {
	typeOptions := make([]huh.Option[string], 0, len(ComponentTypes))
	for _, t := range ComponentTypes {
		typeOptions = append(typeOptions, huh.NewOption(t, t))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Description").
				Description("What should the component do and show?").
				Placeholder("Hero banner with title, subtitle, background image and a CTA button").
				Value(&a.Description).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return ErrDescriptionRequired
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Component type").
				Options(typeOptions...).
				Value(&a.ComponentType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Fields").
				Description("Comma-separated name:type pairs, * marks a required field").
				Placeholder("title:textfield*, image:fileupload, ctaLink:pathfield").
				Value(&a.Fields).
				Validate(func(s string) error {
					_, err := ParseFields(s)
					return err
				}),
			huh.NewInput().
				Title("Design image URL").
				Description("Optional screenshot or mockup to analyze").
				Value(&a.ImageURL),
			huh.NewInput().
				Title("App ID").
				Placeholder(models.DefaultAppID).
				Value(&a.AppID),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Generate clientlibs?").
				Value(&a.Clientlibs),
			huh.NewConfirm().
				Title("Ask for a secondary review?").
				Value(&a.SecondaryOpinion),
		),
	).
		WithInput(in).
		WithOutput(out)

	if err := form.Run(); err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}
	return nil
}

// runLines asks one question per line. A blank answer keeps the current
// value.
func runLines(in io.Reader, out io.Writer, a *Answers) error {
	scanner := bufio.NewScanner(in)
	ask := func(prompt, current string) (string, error) {
		if current != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, current) //nolint:errcheck
		} else {
			fmt.Fprintf(out, "%s: ", prompt) //nolint:errcheck
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("wizard failed: %w", err)
			}
			return "", ErrUnexpectedEOF
		}
		if v := strings.TrimSpace(scanner.Text()); v != "" {
			return v, nil
		}
		return current, nil
	}
	askBool := func(prompt string, current bool) (bool, error) {
		v, err := ask(prompt+" (y/n)", yesNo(current))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(v) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid answer %q: expected y or n", v)
		}
		return b, nil
	}

	var err error
	if a.Description, err = ask("Description", a.Description); err != nil {
		return err
	}
	if strings.TrimSpace(a.Description) == "" {
		return ErrDescriptionRequired
	}
	if a.ComponentType, err = ask("Component type ("+strings.Join(ComponentTypes, ", ")+")", a.ComponentType); err != nil {
		return err
	}
	if !slices.Contains(ComponentTypes, a.ComponentType) {
		return fmt.Errorf("invalid component type %q", a.ComponentType)
	}
	if a.Fields, err = ask("Fields (name:type, * for required)", a.Fields); err != nil {
		return err
	}
	if _, err := ParseFields(a.Fields); err != nil {
		return err
	}
	if a.ImageURL, err = ask("Design image URL", a.ImageURL); err != nil {
		return err
	}
	if a.AppID, err = ask("App ID", a.AppID); err != nil {
		return err
	}
	if a.Clientlibs, err = askBool("Generate clientlibs?", a.Clientlibs); err != nil {
		return err
	}
	if a.SecondaryOpinion, err = askBool("Ask for a secondary review?", a.SecondaryOpinion); err != nil {
		return err
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// ParseFields parses "name:type" pairs separated by commas. The type
// defaults to textfield and a trailing * marks the field required. Labels
// are derived from the names ("ctaLink" becomes "Cta Link").
func ParseFields(s string) ([]models.ComponentField, error) {
	var fields []models.ComponentField
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		required := strings.HasSuffix(part, "*")
		part = strings.TrimSpace(strings.TrimSuffix(part, "*"))

		name, typ, _ := strings.Cut(part, ":")
		name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
		if typ == "" {
			typ = defaultFieldType
		}
		if !fieldName.MatchString(name) {
			return nil, fmt.Errorf("invalid field name %q", name)
		}
		if !slices.Contains(FieldTypes, typ) {
			return nil, fmt.Errorf("field %s: unknown type %q", name, typ)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true

		fields = append(fields, models.ComponentField{
			Name:     name,
			Label:    labelFor(name),
			Type:     typ,
			Required: required,
		})
	}
	return fields, nil
}

var titleCaser = cases.Title(language.English)

func labelFor(name string) string {
	var words []string
	start := 0
	for i := 1; i < len(name); i++ {
		if name[i] == '_' {
			words = append(words, name[start:i])
			start = i + 1
			continue
		}
		if isUpper(name[i]) && !isUpper(name[i-1]) && name[i-1] != '_' {
			words = append(words, name[start:i])
			start = i
		}
	}
	words = append(words, name[start:])
	words = slices.DeleteFunc(words, func(w string) bool { return w == "" })
	return titleCaser.String(strings.Join(words, " "))
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
