package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spboyer/aemforge/internal/models"
)

// JUnitTestSuites is the document root. CI systems read the totals here.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite reports one generated component. SystemOut lists the
// artifacts in the bundle followed by the reviewer's suggestions.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Timestamp  string          `xml:"timestamp,attr,omitempty"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
	SystemOut  string          `xml:"system-out,omitempty"`
}

// JUnitTestCase is one rubric category, or the overall verdict.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (s *JUnitTestSuite) add(tc JUnitTestCase) {
	s.TestCases = append(s.TestCases, tc)
	s.Tests++
	if tc.Failure != nil {
		s.Failures++
	}
}

// ConvertToJUnit maps a result's validation report onto a single suite: one
// case per rubric category, failing below the pass threshold, and an
// "overall" case carrying the issues. Results that were never validated
// produce an empty suite.
func ConvertToJUnit(res *models.JobResult) *JUnitTestSuites {
	paths := res.Bundle.Paths()
	suite := JUnitTestSuite{
		Name: res.ComponentName,
		Properties: []JUnitProperty{
			{Name: "request_id", Value: res.JobID},
			{Name: "component_type", Value: res.ComponentType},
			{Name: "artifacts", Value: strconv.Itoa(len(paths))},
		},
	}
	if at := res.Metadata.GeneratedAt; !at.IsZero() {
		suite.Timestamp = at.UTC().Format(time.RFC3339)
	}

	var out strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&out, "artifact: %s\n", p)
	}

	if v := res.Validation; v != nil {
		suite.Properties = append(suite.Properties, JUnitProperty{Name: "score", Value: strconv.Itoa(v.Score)})
		rubricClass := res.ComponentName + ".rubric"

		for _, c := range models.Categories {
			tc := JUnitTestCase{Name: string(c), Classname: rubricClass}
			if score := v.Categories[c]; score < models.PassThreshold {
				tc.Failure = &JUnitFailure{
					Type:    "CategoryBelowThreshold",
					Message: fmt.Sprintf("%s: score=%d", c, score),
				}
			}
			suite.add(tc)
		}

		verdict := JUnitTestCase{Name: "overall", Classname: res.ComponentName}
		if v.Status != models.ValidationPass {
			verdict.Failure = &JUnitFailure{
				Type:    "ValidationFailure",
				Message: fmt.Sprintf("validation %s: score=%d", v.Status, v.Score),
				Body:    strings.Join(v.Issues, "\n"),
			}
		}
		suite.add(verdict)

		for _, s := range v.Suggestions {
			fmt.Fprintf(&out, "suggestion: %s\n", s)
		}
	}
	suite.SystemOut = out.String()

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		TestSuites: []JUnitTestSuite{suite},
	}
}

// WriteJUnitXML writes the report for res to path, creating parent
// directories as needed.
func WriteJUnitXML(res *models.JobResult, path string) error {
	body, err := xml.MarshalIndent(ConvertToJUnit(res), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, append([]byte(xml.Header), body...), 0o644)
}
