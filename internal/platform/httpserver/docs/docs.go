// Package docs holds the OpenAPI document served under /swagger.
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
        "/members": {
            "post": {
                "summary": "Create member",
                "tags": [
                    "members"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateMemberRequest"
                        }
                    }
                ]
            },
            "get": {
                "summary": "List members",
                "tags": [
                    "members"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                }
            }
        },
        "/members/{memberID}": {
            "get": {
                "summary": "Get member",
                "tags": [
                    "members"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "memberID",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "patch": {
                "summary": "Update member",
                "tags": [
                    "members"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "memberID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateMemberRequest"
                        }
                    }
                ]
            }
        },
        "/members/{memberID}/deactivate": {
            "post": {
                "summary": "Deactivate member",
                "tags": [
                    "members"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "memberID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies": {
            "post": {
                "summary": "Create assembly",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateAssemblyRequest"
                        }
                    }
                ]
            },
            "get": {
                "summary": "List assemblies",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                }
            }
        },
        "/assemblies/{assemblyID}": {
            "get": {
                "summary": "Get assembly",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies/{assemblyID}/start": {
            "post": {
                "summary": "Start assembly",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies/{assemblyID}/close": {
            "post": {
                "summary": "Close assembly and freeze open items",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies/{assemblyID}/minutes": {
            "post": {
                "summary": "Render minutes of a closed assembly",
                "tags": [
                    "assemblies"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies/{assemblyID}/items": {
            "post": {
                "summary": "Create voting item",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateVotingItemRequest"
                        }
                    }
                ]
            },
            "get": {
                "summary": "List voting items",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/assemblies/{assemblyID}/delegations": {
            "post": {
                "summary": "Delegate own vote",
                "tags": [
                    "delegations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateDelegationRequest"
                        }
                    }
                ]
            },
            "delete": {
                "summary": "Revoke own delegation",
                "tags": [
                    "delegations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "get": {
                "summary": "Delegations given and received",
                "tags": [
                    "delegations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "assemblyID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "member_id",
                        "in": "query"
                    }
                ]
            }
        },
        "/items/{itemID}": {
            "get": {
                "summary": "Get voting item",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/items/{itemID}/open": {
            "post": {
                "summary": "Open voting item",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/items/{itemID}/close": {
            "post": {
                "summary": "Close voting item and freeze results",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/items/{itemID}/votes": {
            "post": {
                "summary": "Cast own ballot",
                "tags": [
                    "votes"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CastVoteRequest"
                        }
                    }
                ]
            }
        },
        "/items/{itemID}/results": {
            "get": {
                "summary": "Weighted tally, quorum and majority",
                "tags": [
                    "votes"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "default": {
                        "description": "error",
                        "schema": {
                            "$ref": "#/definitions/ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "itemID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "CreateMemberRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "is_admin": {
                    "type": "boolean"
                },
                "is_board": {
                    "type": "boolean"
                }
            }
        },
        "UpdateMemberRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "is_admin": {
                    "type": "boolean"
                },
                "is_board": {
                    "type": "boolean"
                }
            }
        },
        "CreateAssemblyRequest": {
            "type": "object",
            "properties": {
                "title": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "scheduled_at": {
                    "type": "string"
                },
                "location": {
                    "type": "string"
                },
                "quorum_percentage": {
                    "type": "integer"
                },
                "eligibility_rule": {
                    "type": "string"
                }
            }
        },
        "CreateVotingItemRequest": {
            "type": "object",
            "properties": {
                "title": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "majority_type": {
                    "type": "string"
                },
                "quorum_percentage": {
                    "type": "integer"
                }
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {
                "choice": {
                    "type": "string"
                }
            }
        },
        "CreateDelegationRequest": {
            "type": "object",
            "properties": {
                "receiver_id": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Bureau Social assembly voting API",
	Description:      "Member administration, general assemblies, proxy delegation and weighted voting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
