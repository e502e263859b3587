package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "struct field",
			tmpl: "Component: {{.Name}}",
			data: struct{ Name string }{Name: "hero-banner"},
			want: "Component: hero-banner",
		},
		{
			name: "map values",
			tmpl: "app={{.app}} pkg={{.pkg}}",
			data: map[string]string{"app": "wknd", "pkg": "com.adobe"},
			want: "app=wknd pkg=com.adobe",
		},
		{
			name: "json helper",
			tmpl: "{{json .}}",
			data: map[string]int{"columns": 2},
			want: "{\n  \"columns\": 2\n}",
		},
		{
			name: "join helper",
			tmpl: `{{join .Names ", "}}`,
			data: struct{ Names []string }{Names: []string{"title", "text"}},
			want: "title, text",
		},
		{
			name: "no delimiters is returned as-is",
			tmpl: "plain prompt",
			want: "plain prompt",
		},
		{
			name:    "missing key fails",
			tmpl:    "{{.missing}}",
			data:    map[string]string{},
			wantErr: true,
		},
		{
			name:    "syntax error fails",
			tmpl:    "{{.Name",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bad", "{{if}}") })
	assert.NotPanics(t, func() { MustParse("ok", "{{.X}}") })
}
