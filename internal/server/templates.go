package server

import (
	"embed"
	"errors"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"dict": dict,
}).ParseFS(templateFS, "templates/*.html"))

// dict собирает аргументы для вложенного шаблона: {{template "comment" dict "Node" . "Root" $}}
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict expects key/value pairs")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, errors.New("dict keys must be strings")
		}
		m[key] = kv[i+1]
	}
	return m, nil
}
