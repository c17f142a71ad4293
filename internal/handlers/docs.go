package handlers

import (
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiSpec []byte

var docsTmpl = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
      deepLinking: true,
    });
  </script>
</body>
</html>
`))

// openAPIDocument returns the embedded document with info.version replaced
// by version. The embedded copy is returned as is when version is empty.
func openAPIDocument(version string) ([]byte, error) {
	if version == "" {
		return openapiSpec, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(openapiSpec, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty OpenAPI document")
	}
	info := mappingValue(root.Content[0], "info")
	if info == nil {
		return nil, fmt.Errorf("OpenAPI document has no info section")
	}
	v := mappingValue(info, "version")
	if v == nil {
		return nil, fmt.Errorf("OpenAPI document has no info.version")
	}
	v.Value, v.Tag, v.Style = version, "!!str", yaml.DoubleQuotedStyle
	return yaml.Marshal(&root)
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// OpenAPISpec handles GET /openapi.yaml and reports the running version in
// info.version.
func (h *Handler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc, err := openAPIDocument(h.Version)
	if err != nil {
		slog.Error("failed to render OpenAPI document", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(doc)
}

// Docs handles GET /docs with a Swagger UI page for /openapi.yaml.
func (h *Handler) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Title, SpecURL string }{"Device inventory API docs", "/openapi.yaml"}
	if err := docsTmpl.Execute(w, data); err != nil {
		slog.Error("failed to render docs page", "error", err)
	}
}
