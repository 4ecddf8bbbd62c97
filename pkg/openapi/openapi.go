// Package openapi exports a scanned route tree as an OpenAPI 3.1
// document. Because API routes are TypeScript/JavaScript rather than Go
// source, there are no doc-comment summaries to mine with go/ast; the
// generator works entirely off what the scanner's lexer-level export
// pass already recorded — route pattern, HTTP methods and path parameter
// names.
package openapi

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pyra-dev/pyra/pkg/pyra"
	"gopkg.in/yaml.v3"
)

// Info configures the document's top-level metadata.
type Info struct {
	Title          string
	Version        string
	Description    string
	Servers        []Server
	Contact        *Contact
	License        *License
	OpenAPIVersion string // "3.1.0" or "3.0.3", default "3.1.0"
}

type Server struct {
	URL         string
	Description string
}

type Contact struct {
	Name  string
	Email string
	URL   string
}

type License struct {
	Name string
	URL  string
}

// Generator builds an OpenAPI document from a set of API routes.
type Generator struct {
	info Info
}

// NewGenerator creates a Generator, filling in the same defaults the
// teacher's NewOpenAPIGenerator applies.
func NewGenerator(info Info) *Generator {
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	if info.OpenAPIVersion == "" {
		info.OpenAPIVersion = "3.1.0"
	}
	if info.Title == "" {
		info.Title = "API"
	}
	return &Generator{info: info}
}

// Generate builds the document from every RouteTypeAPI route in routes.
func (g *Generator) Generate(routes []*pyra.Route) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: g.info.OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       g.info.Title,
			Version:     g.info.Version,
			Description: g.info.Description,
		},
		Paths: openapi3.NewPaths(),
	}

	if g.info.Contact != nil {
		doc.Info.Contact = &openapi3.Contact{
			Name:  g.info.Contact.Name,
			Email: g.info.Contact.Email,
			URL:   g.info.Contact.URL,
		}
	}
	if g.info.License != nil {
		doc.Info.License = &openapi3.License{Name: g.info.License.Name, URL: g.info.License.URL}
	}
	if len(g.info.Servers) > 0 {
		doc.Servers = make(openapi3.Servers, 0, len(g.info.Servers))
		for _, s := range g.info.Servers {
			doc.Servers = append(doc.Servers, &openapi3.Server{URL: s.URL, Description: s.Description})
		}
	}

	for _, route := range routes {
		if route.Type != pyra.RouteTypeAPI {
			continue
		}
		doc.Paths.Set(openAPIPath(route.Pattern), g.buildPathItem(route))
	}

	return doc, nil
}

// GenerateJSON renders the document as indented JSON.
func (g *Generator) GenerateJSON(routes []*pyra.Route) ([]byte, error) {
	doc, err := g.Generate(routes)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// GenerateYAML renders the document as YAML.
func (g *Generator) GenerateYAML(routes []*pyra.Route) ([]byte, error) {
	doc, err := g.Generate(routes)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// WriteToFile writes the spec to path in "json" or "yaml" format.
func (g *Generator) WriteToFile(path, format string, routes []*pyra.Route) error {
	var data []byte
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err = g.GenerateYAML(routes)
	case "json":
		data, err = g.GenerateJSON(routes)
	default:
		return fmt.Errorf("openapi: unsupported format %q (use json or yaml)", format)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (g *Generator) buildPathItem(route *pyra.Route) *openapi3.PathItem {
	item := &openapi3.PathItem{}
	methods := route.Exports.Methods
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	for _, method := range methods {
		op := g.buildOperation(route, method)
		switch method {
		case "GET":
			item.Get = op
		case "POST":
			item.Post = op
		case "PUT":
			item.Put = op
		case "PATCH":
			item.Patch = op
		case "DELETE":
			item.Delete = op
		case "HEAD":
			item.Head = op
		case "OPTIONS":
			item.Options = op
		}
	}
	return item
}

func (g *Generator) buildOperation(route *pyra.Route, method string) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:      []string{deriveTag(route.ID)},
		Responses: openapi3.NewResponses(),
	}

	params := buildParameters(route.Params)
	if len(params) > 0 {
		op.Parameters = params
	}

	op.Responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: openapi3.Ptr("Success")},
	})
	if method == "POST" || method == "PUT" || method == "PATCH" {
		op.Responses.Set("400", &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: openapi3.Ptr("Bad Request")},
		})
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Request body",
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchema(&openapi3.Schema{Type: &openapi3.Types{"object"}}),
			},
		}
	}
	if len(params) > 0 && method != "POST" {
		op.Responses.Set("404", &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: openapi3.Ptr("Not Found")},
		})
	}

	return op
}

func buildParameters(names []string) openapi3.Parameters {
	var params openapi3.Parameters
	for _, name := range names {
		params = append(params, &openapi3.ParameterRef{Value: &openapi3.Parameter{
			Name:        name,
			In:          "path",
			Required:    true,
			Description: fmt.Sprintf("%s parameter", name),
			Schema:      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		}})
	}
	return params
}

// openAPIPath converts Pyra's :param/*param pattern syntax to OpenAPI's
// {param} syntax.
func openAPIPath(pattern string) string {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			segments[i] = "{" + seg[1:] + "}"
		case strings.HasPrefix(seg, "*"):
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	if len(segments) == 1 && segments[0] == "" {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// deriveTag picks a tag from a route id by stripping dynamic/group/private
// segments and the leading "api" folder.
func deriveTag(routeID string) string {
	segments := strings.Split(strings.Trim(routeID, "/"), "/")
	var clean []string
	for i, seg := range segments {
		if i == 0 && seg == "api" {
			continue
		}
		if strings.HasPrefix(seg, "[") || strings.HasPrefix(seg, "(") || strings.HasPrefix(seg, "_") {
			continue
		}
		clean = append(clean, seg)
	}
	if len(clean) == 0 {
		return "default"
	}
	return clean[0]
}
