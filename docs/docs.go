// Package docs holds the OpenAPI description served at /swagger. Regenerate
// with `swag init -g cmd/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "https://github.com/guttosm/volforecast",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/guttosm/volforecast",
            "email": "support@example.com"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/fit": {
            "post": {
                "description": "Optionally refreshes price history, fits GARCH(p, q) on the most recent n_observations closes and saves the model",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Fit and persist a volatility model",
                "parameters": [
                    {
                        "description": "Fit parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.FitRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Outcome (check success)",
                        "schema": {"$ref": "#/definitions/dto.FitResponse"}
                    },
                    "400": {
                        "description": "Malformed body",
                        "schema": {"$ref": "#/definitions/dto.ErrorResponse"}
                    }
                }
            }
        },
        "/predict": {
            "post": {
                "description": "Loads the latest saved model for the ticker and forecasts daily volatility for the next n_days business days",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Forecast volatility",
                "parameters": [
                    {
                        "description": "Forecast parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.PredictRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Outcome (check success)",
                        "schema": {"$ref": "#/definitions/dto.PredictResponse"}
                    },
                    "400": {
                        "description": "Malformed body",
                        "schema": {"$ref": "#/definitions/dto.ErrorResponse"}
                    }
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks the database and the model directory",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "json: cannot unmarshal string into Go struct field"},
                "message": {"type": "string", "example": "invalid request body"},
                "timestamp": {"type": "string", "example": "2025-09-19T14:00:00Z"}
            }
        },
        "dto.FitRequest": {
            "type": "object",
            "properties": {
                "n_observations": {"type": "integer", "example": 500},
                "p": {"type": "integer", "example": 1},
                "q": {"type": "integer", "example": 1},
                "ticker": {"type": "string", "example": "AAPL"},
                "use_new_data": {"type": "boolean", "example": true}
            }
        },
        "dto.FitResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Trained and saved 'AAPL_20250919T140000.000000000Z.yaml'."},
                "n_observations": {"type": "integer", "example": 500},
                "p": {"type": "integer", "example": 1},
                "q": {"type": "integer", "example": 1},
                "success": {"type": "boolean", "example": true},
                "ticker": {"type": "string", "example": "AAPL"},
                "use_new_data": {"type": "boolean", "example": true}
            }
        },
        "dto.PredictRequest": {
            "type": "object",
            "properties": {
                "n_days": {"type": "integer", "example": 5},
                "ticker": {"type": "string", "example": "AAPL"}
            }
        },
        "dto.PredictResponse": {
            "type": "object",
            "properties": {
                "forecast": {"type": "object", "additionalProperties": {"type": "number", "format": "float64"}},
                "message": {"type": "string", "example": ""},
                "n_days": {"type": "integer", "example": 5},
                "success": {"type": "boolean", "example": true},
                "ticker": {"type": "string", "example": "AAPL"}
            }
        }
    },
    "tags": [
        {"description": "Fit and forecast volatility models", "name": "models"},
        {"description": "Liveness and readiness probes", "name": "health"}
    ]
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "volforecast API",
	Description:      "GARCH volatility model fitting and forecasting service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
