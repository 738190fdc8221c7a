// Package docs holds the OpenAPI document served under /swagger/ when the
// server is built with -tags=swagger. Regenerate with `swag init -g cmd/triaged/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "triaged maintainers"
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
        "/info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Front-end texts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InfoResponse"}}
                }
            }
        },
        "/model/reload": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Reload the model",
                "parameters": [
                    {"description": "Settings to apply", "name": "settings", "in": "body", "schema": {"$ref": "#/definitions/types.Settings"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ReloadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Start a conversation",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.SessionResponse"}}
                }
            }
        },
        "/sessions/{id}/messages": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Send a user message",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Stream NDJSON when 1", "name": "stream", "in": "query"},
                    {"description": "User message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/export": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Download the transcript",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ChatRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string", "example": "I have a sharp pain in my lower right abdomen."}
            }
        },
        "types.ChatResponse": {
            "type": "object",
            "properties": {
                "notice": {"type": "string"},
                "reply": {"type": "string", "example": "How long have you had this pain?"},
                "should_stop": {"type": "boolean", "example": false}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.InfoResponse": {
            "type": "object",
            "properties": {
                "caption": {"type": "string"},
                "disclaimer": {"type": "string"},
                "input_hint": {"type": "string", "example": "Describe your symptoms..."},
                "ready_notice": {"type": "string"},
                "title": {"type": "string", "example": "Medical Chatbot"}
            }
        },
        "types.Message": {
            "type": "object",
            "properties": {
                "content": {"type": "string", "example": "I have had a headache for three days."},
                "role": {"type": "string", "example": "user"}
            }
        },
        "types.ReloadResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Model reloaded."},
                "settings": {"$ref": "#/definitions/types.Settings"}
            }
        },
        "types.SessionResponse": {
            "type": "object",
            "properties": {
                "created_at": {"type": "integer", "example": 1700000000},
                "id": {"type": "string", "example": "5b1f0c2e-8a55-4c57-9d0e-3c1a1b5b8e42"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}}
            }
        },
        "types.Settings": {
            "type": "object",
            "properties": {
                "adapter_path": {"type": "string", "example": "/models/adapters/triage-lora.gguf"},
                "max_new_tokens": {"type": "integer", "example": 200},
                "model_id": {"type": "string", "example": "meta-llama/Llama-2-7b-chat-hf"},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.95}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "triaged API",
	Description:      "HTTP API for the medical triage chatbot.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
