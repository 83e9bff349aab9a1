package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

// registerSwaggerRoutes wires the API documentation endpoints.
func (s *Server) registerSwaggerRoutes(r *mux.Router) {
	r.HandleFunc("/docs/openapi.yaml", s.handleOpenAPIDoc).Methods("GET")
	r.HandleFunc("/docs/openapi.json", s.handleOpenAPIDoc).Methods("GET")
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods("GET")
	r.HandleFunc("/docs/", s.handleSwaggerUI).Methods("GET")
}

func (s *Server) handleOpenAPIDoc(w http.ResponseWriter, r *http.Request) {
	specPath := filepath.Join("docs", "openapi.yaml")

	if strings.HasSuffix(r.URL.Path, ".json") {
		yamlData, err := os.ReadFile(specPath)
		if err != nil {
			http.Error(w, "OpenAPI document not found", http.StatusNotFound)
			return
		}

		var doc interface{}
		if err := yaml.Unmarshal(yamlData, &doc); err != nil {
			http.Error(w, "Error parsing OpenAPI document", http.StatusInternalServerError)
			return
		}

		jsonData, err := json.MarshalIndent(normalizeYAML(doc), "", "  ")
		if err != nil {
			http.Error(w, "Error converting OpenAPI document", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	http.ServeFile(w, r, specPath)
}

// normalizeYAML rewrites yaml.v2's map[interface{}]interface{} trees into
// string-keyed maps so encoding/json can marshal them.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[fmt.Sprintf("%v", key)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		for i := range v {
			v[i] = normalizeYAML(v[i])
		}
		return v
	default:
		return v
	}
}

func (s *Server) handleSwaggerUI(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	specURL := fmt.Sprintf("%s://%s/docs/openapi.yaml", scheme, r.Host)

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>LLM Cost Router - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '%s',
                dom_id: '#swagger-ui',
                deepLinking: true,
                docExpansion: "list",
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`, specURL)
}
