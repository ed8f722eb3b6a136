// Package docs registers the OpenAPI document served in development.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "Service is healthy"}}
            }
        },
        "/api/v1/leads": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "List leads",
                "parameters": [
                    {"type": "string", "name": "tab", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"}
                ],
                "responses": {"200": {"description": "Leads retrieved"}, "502": {"description": "Lead API failure"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Create lead",
                "responses": {"201": {"description": "Lead created"}, "400": {"description": "Validation error"}}
            }
        },
        "/api/v1/leads/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Export leads",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "responses": {"200": {"description": "Spreadsheet"}}
            }
        },
        "/api/v1/leads/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Get lead",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Lead retrieved"}, "404": {"description": "Lead not found"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Update lead",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Lead updated"}, "403": {"description": "Field not editable"}, "409": {"description": "Another change in progress"}}
            }
        },
        "/api/v1/leads/{id}/assign": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Assign lead",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Lead assigned"}}
            }
        },
        "/api/v1/leads/{id}/transitions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Transition history",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Transition history retrieved"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Change lead status",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Status changed"}, "409": {"description": "Transition not allowed"}}
            }
        },
        "/api/v1/leads/{id}/follow-ups": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Add follow-up",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Follow-up recorded"}}
            }
        },
        "/api/v1/leads/{id}/call-history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Leads"],
                "summary": "Call history",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Call history retrieved"}}
            }
        },
        "/api/v1/leads/{id}/convert": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data", "application/json"],
                "tags": ["Conversion"],
                "summary": "Submit conversion",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Conversion saved"}, "400": {"description": "Validation error"}}
            }
        },
        "/api/v1/leads/{id}/reason-dialog": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reason Dialog"],
                "summary": "Open reason dialog",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Dialog opened"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reason Dialog"],
                "summary": "Choose reason",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Reason set"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reason Dialog"],
                "summary": "Cancel reason dialog",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Dialog cancelled"}}
            }
        },
        "/api/v1/leads/{id}/reason-dialog/submit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reason Dialog"],
                "summary": "Submit reason dialog",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Lead closed"}}
            }
        },
        "/api/v1/documents": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Documents"],
                "summary": "Open document",
                "parameters": [{"type": "string", "name": "reference", "in": "query", "required": true}],
                "responses": {"200": {"description": "Document"}, "404": {"description": "Document not found"}}
            }
        },
        "/api/v1/documents/url": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Documents"],
                "summary": "Document view URL",
                "parameters": [{"type": "string", "name": "reference", "in": "query", "required": true}],
                "responses": {"200": {"description": "URL issued"}}
            }
        },
        "/api/v1/session/refresh": {
            "post": {
                "tags": ["Session"],
                "summary": "Refresh session",
                "responses": {"200": {"description": "Tokens issued"}, "401": {"description": "Invalid refresh token"}}
            }
        },
        "/api/v1/session/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Session"],
                "summary": "Logout",
                "responses": {"200": {"description": "Token revoked"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Leadflow API",
	Description:      "Lead lifecycle console API: lists, edits, transitions, conversion and documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
