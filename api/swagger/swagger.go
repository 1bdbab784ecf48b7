package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Attendly API",
        "description": "School attendance service with roster ingestion and face-recognition marking",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens and passwords"},
        {"name": "Schools", "description": "School tenant management"},
        {"name": "Classes", "description": "Classroom management"},
        {"name": "Students", "description": "Student roster and bulk imports"},
        {"name": "Attendance", "description": "Attendance sessions and marking"},
        {"name": "Reports", "description": "Attendance exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/bulk-upload": {
            "post": {
                "tags": ["Students"],
                "summary": "Bulk import a class roster",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "class_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Per-row import summary", "schema": {"$ref": "#/definitions/RosterSummary"}},
                    "400": {"description": "Unreadable file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown class", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/bulk-photo-upload": {
            "post": {
                "tags": ["Students"],
                "summary": "Bulk import student photos",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "class_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Per-entry import summary", "schema": {"$ref": "#/definitions/PhotoSummary"}},
                    "400": {"description": "Unreadable archive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown class", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Open attendance session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions/{id}/recognize": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark attendance from classroom photos",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecognizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Marked records", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/attendance/{classId}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export class attendance log",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "xlsx", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "date": {"type": "string", "format": "date-time"}
            },
            "required": ["class_id", "date"]
        },
        "RecognizeRequest": {
            "type": "object",
            "properties": {
                "image_urls": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["image_urls"]
        },
        "RosterSummary": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "created": {"type": "integer"},
                "updated": {"type": "integer"},
                "skippedCount": {"type": "integer"},
                "failedCount": {"type": "integer"},
                "results": {"type": "array", "items": {"type": "object"}},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/ItemError"}}
            }
        },
        "PhotoSummary": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "uploaded": {"type": "integer"},
                "skippedCount": {"type": "integer"},
                "failedCount": {"type": "integer"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/ItemError"}}
            }
        },
        "ItemError": {
            "type": "object",
            "properties": {
                "row": {"type": "integer"},
                "filename": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
