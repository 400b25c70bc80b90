package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CrowdWatch Auth API",
        "description": "Accounts, tokens and sessions for the crowd-monitoring dashboard",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, signup and token lifecycle"},
        {"name": "Admin", "description": "User management for administrators"},
        {"name": "System", "description": "Liveness"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Health"}}
                }
            }
        },
        "/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user by username or email",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TokenPair"}},
                    "400": {"description": "Missing username or password", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Account locked or inactive", "schema": {"$ref": "#/definitions/Error"}},
                    "429": {"description": "Too many login attempts", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin-login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate administrator (also /admin/login)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TokenPair"}},
                    "400": {"description": "Missing username or password", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Invalid admin credentials", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Account locked or inactive", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/signup": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Create a user and log in (also /register)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TokenPair"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Username or email taken", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Exchange a refresh token for an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessToken"}},
                    "400": {"description": "Missing refresh token", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Invalid or expired refresh token", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Message"}},
                    "400": {"description": "Missing refresh token", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Me"}},
                    "401": {"description": "Missing, malformed, expired or invalid token", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Account locked or inactive", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/verify": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Verify"}},
                    "400": {"description": "Missing token", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/verify-admin": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify an admin access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Verify"}},
                    "400": {"description": "Missing token", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Not an admin token", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Admin"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UserList"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Admin access required", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/users/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export the user roster",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "Admin access required", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/admin/users/{userId}": {
            "delete": {
                "tags": ["Admin"],
                "summary": "Delete a user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Message"}},
                    "403": {"description": "Admin access required", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "Message": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "Health": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SignupRequest": {
            "type": "object",
            "required": ["username", "email", "password"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "name": {"type": "string"}
            }
        },
        "RefreshRequest": {
            "type": "object",
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "VerifyRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"}
            }
        },
        "TokenPair": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "string", "example": "15m"},
                "message": {"type": "string"}
            }
        },
        "AccessToken": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "expiresIn": {"type": "string", "example": "15m"}
            }
        },
        "Claims": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "name": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["admin"]},
                "jti": {"type": "string"},
                "iat": {"type": "integer"},
                "exp": {"type": "integer"}
            }
        },
        "Me": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "user": {"$ref": "#/definitions/Claims"}
            }
        },
        "Verify": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "payload": {"$ref": "#/definitions/Claims"}
            }
        },
        "Account": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "locked", "inactive"]},
                "login_attempts": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "UserList": {
            "type": "object",
            "properties": {
                "users": {"type": "array", "items": {"$ref": "#/definitions/Account"}},
                "total": {"type": "integer"}
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
