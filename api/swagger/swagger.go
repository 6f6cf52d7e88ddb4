package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "File Manager Catalog API",
        "description": "Product ingest, metadata schema management and paged catalog queries",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Products", "description": "Product ingest and lookup"},
        {"name": "Query", "description": "Paged and counted catalog queries"},
        {"name": "Schema", "description": "Product types, elements and inheritance"},
        {"name": "Exports", "description": "Asynchronous CSV and PDF exports"}
    ],
    "paths": {
        "/products": {
            "post": {
                "tags": ["Products"],
                "summary": "Ingest a product with references and metadata",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "tags": ["Products"],
                "summary": "Get product by id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Products"],
                "summary": "Remove a product with its metadata and references",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/products/by-name/{name}": {
            "get": {
                "tags": ["Products"],
                "summary": "Latest product with the given name",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/products/{id}/transfer-status": {
            "patch": {
                "tags": ["Products"],
                "summary": "Update transfer status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransferStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/products/{id}/metadata": {
            "get": {
                "tags": ["Products"],
                "summary": "Product metadata, optionally reduced to some elements",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "elements", "in": "query", "type": "string", "description": "Comma separated element names"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/products/{id}/references": {
            "get": {
                "tags": ["Products"],
                "summary": "Files of a product",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/types/{name}/products": {
            "get": {
                "tags": ["Query"],
                "summary": "Page through the products of a type matching a query",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "q", "in": "query", "type": "string", "description": "Query expression, e.g. Filename == 'a.txt' AND FileSize > '10'"},
                    {"name": "page", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/types/{name}/count": {
            "get": {
                "tags": ["Query"],
                "summary": "Number of products matching a query",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/types/{name}/query": {
            "post": {
                "tags": ["Query"],
                "summary": "All matching product ids, newest first",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/QueryRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/types": {
            "get": {
                "tags": ["Schema"],
                "summary": "List product types",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schema"],
                "summary": "Register a product type",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProductTypeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/types/{name}/elements": {
            "get": {
                "tags": ["Schema"],
                "summary": "Elements of a product type",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "direct", "in": "query", "type": "boolean", "description": "Skip inherited elements"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schema"],
                "summary": "Map an element to a product type",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MapElementRequest"}}
                ],
                "responses": {"201": {"description": "Mapped", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/types/{name}/parent": {
            "put": {
                "tags": ["Schema"],
                "summary": "Set the parent product type",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetParentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Schema"],
                "summary": "Detach the parent product type",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Detached"}}
            }
        },
        "/elements": {
            "get": {
                "tags": ["Schema"],
                "summary": "List elements",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schema"],
                "summary": "Add a metadata element",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ElementRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export the products matching a query as CSV or PDF",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Metadata": {
            "type": "object",
            "additionalProperties": {"type": "array", "items": {"type": "string"}}
        },
        "Reference": {
            "type": "object",
            "properties": {
                "orig_reference": {"type": "string"},
                "datastore_reference": {"type": "string"},
                "file_size": {"type": "integer"},
                "mime_type": {"type": "string"}
            }
        },
        "IngestRequest": {
            "type": "object",
            "required": ["name", "productType"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "productType": {"type": "string"},
                "structure": {"type": "string", "enum": ["FLAT", "HIERARCHICAL", "STREAM"]},
                "transferStatus": {"type": "string", "enum": ["NONE", "IN_PROGRESS", "DONE", "PARTIAL"]},
                "receivedAt": {"type": "string", "format": "date-time"},
                "references": {"type": "array", "items": {"$ref": "#/definitions/Reference"}},
                "metadata": {"$ref": "#/definitions/Metadata"}
            }
        },
        "TransferStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["NONE", "IN_PROGRESS", "DONE", "PARTIAL"]}}
        },
        "QueryRequest": {
            "type": "object",
            "properties": {"query": {"type": "string"}}
        },
        "CreateProductTypeRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "repositoryPath": {"type": "string"},
                "versioner": {"type": "string"},
                "parent": {"type": "string"}
            }
        },
        "ElementRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "dcElement": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "MapElementRequest": {
            "type": "object",
            "properties": {
                "elementId": {"type": "string"},
                "elementName": {"type": "string"}
            }
        },
        "SetParentRequest": {
            "type": "object",
            "required": ["parent"],
            "properties": {"parent": {"type": "string"}}
        },
        "ExportRequest": {
            "type": "object",
            "required": ["productType", "format"],
            "properties": {
                "productType": {"type": "string"},
                "query": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "delimiter": {"type": "string"},
                "fields": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
