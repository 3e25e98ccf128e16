package api

// openAPIDocument describes the public endpoints. Served in Development only.
var openAPIDocument = map[string]any{
	"openapi": "3.0.1",
	"info": map[string]any{
		"title":   "PortoTechhub.ApiService | v1",
		"version": "1.0.0",
	},
	"paths": map[string]any{
		"/weatherforecast": map[string]any{
			"get": map[string]any{
				"operationId": "GetWeatherForecast",
				"responses": map[string]any{
					"200": jsonResponse("OK", map[string]any{
						"type":  "array",
						"items": ref("WeatherForecast"),
					}),
				},
			},
		},
		"/todos": map[string]any{
			"get": map[string]any{
				"operationId": "GetTodos",
				"responses": map[string]any{
					"200": jsonResponse("OK", map[string]any{
						"type":  "array",
						"items": ref("Todo"),
					}),
				},
			},
		},
		"/todos/{id}": map[string]any{
			"get": map[string]any{
				"operationId": "GetTodo",
				"parameters": []any{
					map[string]any{
						"name":     "id",
						"in":       "path",
						"required": true,
						"schema":   map[string]any{"type": "integer", "format": "int32"},
					},
				},
				"responses": map[string]any{
					"200": jsonResponse("OK", ref("Todo")),
					"404": map[string]any{"description": "Not Found"},
				},
			},
		},
	},
	"components": map[string]any{
		"schemas": map[string]any{
			"WeatherForecast": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":         map[string]any{"type": "string", "format": "date"},
					"temperatureC": map[string]any{"type": "integer", "format": "int32"},
					"temperatureF": map[string]any{"type": "integer", "format": "int32"},
					"summary":      map[string]any{"type": "string", "nullable": true},
				},
			},
			"Todo": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":         map[string]any{"type": "integer", "format": "int32"},
					"title":      map[string]any{"type": "string"},
					"isComplete": map[string]any{"type": "boolean"},
				},
			},
		},
	},
}

func jsonResponse(description string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{"schema": schema},
		},
	}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}
