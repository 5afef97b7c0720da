package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const swaggerTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/datastrips/{id}": {
            "get": {
                "description": "Returns the completion record of a datastrip and the tiles completed so far",
                "produces": ["application/json"],
                "tags": ["datastrips"],
                "summary": "Get a datastrip completion record",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Datastrip identifier",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/api.DatastripResponse"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "api.DatastripResponse": {
            "type": "object",
            "properties": {
                "datastrip_id": {"type": "string"},
                "storage_path": {"type": "string"},
                "provisional": {"type": "boolean"},
                "tile_count": {"type": "integer"},
                "tiles": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/api.TileResponse"}
                },
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "api.TileResponse": {
            "type": "object",
            "properties": {
                "tile_id": {"type": "string"},
                "storage_path": {"type": "string"},
                "completed_at": {"type": "string"}
            }
        },
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_code": {"type": "string"},
                "details": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo describes the status API served under /swagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Preparation Worker Status API",
	Description:      "Read-only view of datastrip completion tracking",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// RegisterSwagger serves the API description and its UI.
func RegisterSwagger(router gin.IRouter) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
