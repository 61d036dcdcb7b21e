package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, required bool, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

var errorResponse = map[string]interface{}{
	"description": "Error",
	"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/Error"}),
}

var yearsParam = queryParam(
	"years",
	"Comma separated years, e.g. 2013,2014. Fractional values are truncated.",
	true,
	map[string]interface{}{"type": "string", "example": "2013,2014,2015"},
)

// OpenAPISpec returns the OpenAPI 3.0 document for the FARS analytics API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	summaryResponses := map[string]interface{}{
		"200": map[string]interface{}{
			"description": "Month by year accident counts. Months with no accidents in any requested year are omitted.",
			"headers": map[string]interface{}{
				"ETag": map[string]interface{}{"schema": map[string]string{"type": "string"}},
			},
			"content": jsonContent(map[string]interface{}{"$ref": "#/components/schemas/SummaryTable"}),
		},
		"304": map[string]interface{}{"description": "Not modified (If-None-Match matched)"},
		"400": errorResponse,
		"500": errorResponse,
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "FARS Analytics API",
			"description": "Monthly fatality counts and per-state accident maps from yearly FARS accident files",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/fars/summary": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Summarize accidents per month and year",
					"description": "Loads accident_<year>.csv.bz2 for each requested year. Years whose file is missing or unreadable are skipped.",
					"parameters":  []map[string]interface{}{yearsParam},
					"responses":   summaryResponses,
				},
			},
			"/api/fars/stored": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Read exported counts from PostgreSQL",
					"description": "Only available when the server runs with DB_ENABLED=true.",
					"parameters":  []map[string]interface{}{yearsParam},
					"responses":   summaryResponses,
				},
			},
			"/api/fars/map": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Render accident locations for one state and year",
					"parameters": []map[string]interface{}{
						queryParam("state", "Numeric FARS state code", true, map[string]interface{}{"type": "number", "example": 1}),
						queryParam("year", "Four digit year", true, map[string]interface{}{"type": "number", "example": 2013}),
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Rendered map",
							"content": map[string]interface{}{
								"image/png":       map[string]interface{}{"schema": map[string]string{"type": "string", "format": "binary"}},
								"image/svg+xml":   map[string]interface{}{"schema": map[string]string{"type": "string"}},
								"application/pdf": map[string]interface{}{"schema": map[string]string{"type": "string", "format": "binary"}},
							},
						},
						"204": map[string]interface{}{"description": "The state has no plottable accidents that year"},
						"304": map[string]interface{}{"description": "Not modified (If-None-Match matched)"},
						"400": errorResponse,
						"404": errorResponse,
						"500": errorResponse,
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is healthy"},
						"503": map[string]interface{}{"description": "Database configured but unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Metrics in Prometheus text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{"schema": map[string]string{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"SummaryTable": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"years": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"type": "integer"},
						},
						"rows": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"month": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 12},
									"counts": map[string]interface{}{
										"type":                 "object",
										"description":          "Accident count keyed by year. Years without accidents that month are absent.",
										"additionalProperties": map[string]string{"type": "integer"},
									},
								},
							},
						},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
