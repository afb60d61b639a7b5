// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/link": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Link"],
                "summary": "Link status",
                "responses": {
                    "200": {"description": "Link status", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/link/open": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Link"],
                "summary": "Open the link",
                "parameters": [
                    {"description": "Settings or profile name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.OpenLinkRequest"}}
                ],
                "responses": {
                    "200": {"description": "Link opened", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Port or profile not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Link already open", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/link/close": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Link"],
                "summary": "Close the link",
                "responses": {
                    "200": {"description": "Link closed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/link/write": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Link"],
                "summary": "Write to the link",
                "parameters": [
                    {"description": "Text to send", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.WriteRequest"}}
                ],
                "responses": {
                    "200": {"description": "Data written", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Link not open", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Device error", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/ports": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Link"],
                "summary": "List serial ports",
                "responses": {
                    "200": {"description": "Ports", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/profiles": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "List profiles",
                "responses": {
                    "200": {"description": "Profiles", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/profiles/reload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "Reload profiles",
                "responses": {
                    "200": {"description": "Profiles", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Profile file rejected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/profiles/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "Get profile",
                "parameters": [{"type": "string", "description": "Profile name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Profile not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "Save profile",
                "parameters": [
                    {"type": "string", "description": "Profile name", "name": "name", "in": "path", "required": true},
                    {"description": "Serial settings", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/serialcfg.RawConfig"}}
                ],
                "responses": {
                    "200": {"description": "Profile saved", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "Delete profile",
                "parameters": [{"type": "string", "description": "Profile name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Profile deleted", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Profile not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/profiles/{name}/rename": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Profiles"],
                "summary": "Rename profile",
                "parameters": [
                    {"type": "string", "description": "Profile name", "name": "name", "in": "path", "required": true},
                    {"description": "New name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RenameProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "Profile renamed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Profile not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Name taken", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.OpenLinkRequest": {
            "type": "object",
            "properties": {
                "profile": {"type": "string", "example": "bench supply"},
                "port": {"type": "string"},
                "baud": {"type": "integer"},
                "dataBits": {"type": "integer"},
                "stopBits": {"type": "number"},
                "parity": {"type": "string", "enum": ["NONE", "ODD", "EVEN", "SPACE", "MARK"]},
                "flowControl": {"type": "string", "enum": ["NONE", "SOFTWARE", "HARDWARE"]}
            }
        },
        "handler.WriteRequest": {
            "type": "object",
            "required": ["data"],
            "properties": {
                "data": {"type": "string"}
            }
        },
        "handler.RenameProfileRequest": {
            "type": "object",
            "required": ["to"],
            "properties": {
                "to": {"type": "string", "example": "lab bench"}
            }
        },
        "serialcfg.RawConfig": {
            "type": "object",
            "properties": {
                "port": {"type": "string"},
                "baud": {"type": "integer"},
                "dataBits": {"type": "integer"},
                "stopBits": {"type": "number"},
                "parity": {"type": "string", "enum": ["NONE", "ODD", "EVEN", "SPACE", "MARK"]},
                "flowControl": {"type": "string", "enum": ["NONE", "SOFTWARE", "HARDWARE"]}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"},
                "records": {"type": "array", "items": {"type": "object"}}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8086",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "super-serial API",
	Description:      "Serial link bridge: open, close and write a serial link, manage connection profiles and stream link events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
